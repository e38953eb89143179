/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cli

import (
	"context"
	"os"

	autoscale "github.com/gravitational/azfailaway/lib/autoscale/aws"
	"github.com/gravitational/azfailaway/lib/constants"
	"github.com/gravitational/azfailaway/lib/ops"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/tool/common"

	"github.com/gravitational/trace"
)

// execute runs the operation described by event and prints the outcome
func execute(ctx context.Context, env *environment, event storage.OperationEvent, format constants.Format) error {
	if err := event.CheckAndSetDefaults(env.detected); err != nil {
		return trace.Wrap(err)
	}
	exec, err := env.operator.Execute(ctx, event)
	if exec != nil {
		if printErr := printExecution(os.Stdout, exec, format); printErr != nil {
			log.WithError(printErr).Warn("Failed to print execution.")
		}
	}
	if err != nil {
		return trace.Wrap(err)
	}
	if !exec.Succeeded() {
		return trace.Errorf("%v of zone %v failed for %v of %v auto scaling groups",
			event.Operation, event.ZoneID,
			len(exec.FailedBranches())+len(exec.Skipped), len(exec.Branches)+len(exec.Skipped))
	}
	return nil
}

// runRequest executes the operation request read from the specified file
func runRequest(ctx context.Context, env *environment, path string, format constants.Format) error {
	payload, err := common.ReadPayload(path)
	if err != nil {
		return trace.Wrap(err)
	}
	event, err := ops.ParseRequest(payload, env.detected)
	if err != nil {
		return trace.Wrap(err)
	}
	return execute(ctx, env, *event, format)
}

// listen executes operation requests received from the specified queue until ctx is done.
// The configured queue is used if queue is empty
func listen(ctx context.Context, env *environment, queue string) error {
	if queue == "" {
		queue = env.config.Queue.Name
	}
	if queue == "" {
		return trace.BadParameter("specify the queue with --queue or in the configuration file")
	}
	listener, err := autoscale.NewListener(autoscale.ListenerConfig{
		Region:            env.config.Region,
		Handler:           env.operator.RequestHandler(env.detected),
		WaitTime:          env.config.Queue.WaitTime,
		VisibilityTimeout: env.config.Queue.VisibilityTimeout,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	queueURL, err := listener.GetQueueURL(ctx, queue)
	if err != nil {
		return trace.Wrap(err)
	}
	log.WithField("queue", queueURL).Info("Waiting for operation requests.")
	listener.ProcessEvents(ctx, queueURL)
	return nil
}
