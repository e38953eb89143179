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

package ops

import (
	"context"
	"encoding/json"

	"github.com/gravitational/azfailaway/lib/autoscale/aws"
	"github.com/gravitational/azfailaway/lib/storage"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// ParseRequest decodes an operation request payload of the form
//
//	{"operation": "Remove", "zoneId": "use2-az1", "region": "us-east-2", "accountId": "123456789012"}
//
// into a validated operation event. Region, account and timestamp default
// to the values from env. Unknown operations are rejected with trace.BadParameter
func ParseRequest(payload []byte, env storage.Environment) (*storage.OperationEvent, error) {
	var event storage.OperationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		if trace.IsBadParameter(err) {
			return nil, trace.Wrap(err)
		}
		return nil, trace.BadParameter("invalid operation request: %v", err)
	}
	if err := event.CheckAndSetDefaults(env); err != nil {
		return nil, trace.Wrap(err)
	}
	return &event, nil
}

// RequestHandler returns a handler that executes operation requests.
// Invalid requests and aborted executions are returned as errors, failed
// executions are only logged
func (o *Operator) RequestHandler(env storage.Environment) aws.Handler {
	return func(ctx context.Context, payload []byte) error {
		event, err := ParseRequest(payload, env)
		if err != nil {
			return trace.Wrap(err)
		}
		exec, err := o.Execute(ctx, *event)
		if err != nil {
			return trace.Wrap(err)
		}
		if !exec.Succeeded() {
			o.WithFields(logrus.Fields{
				"execution": exec.ID,
				"failed":    len(exec.FailedBranches()),
			}).Warn("Execution failed.")
		}
		return nil
	}
}
