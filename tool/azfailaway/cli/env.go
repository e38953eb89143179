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

	autoscale "github.com/gravitational/azfailaway/lib/autoscale/aws"
	cloudaws "github.com/gravitational/azfailaway/lib/cloudprovider/aws"
	"github.com/gravitational/azfailaway/lib/ops"
	"github.com/gravitational/azfailaway/lib/ops/monitoring"
	"github.com/gravitational/azfailaway/lib/processconfig"
	"github.com/gravitational/azfailaway/lib/recovery"
	"github.com/gravitational/azfailaway/lib/storage"

	awsapi "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/gravitational/trace"
	"github.com/prometheus/client_golang/prometheus"
)

// environment holds the services commands operate with
type environment struct {
	config processconfig.Config
	// detected supplies account and region to operation events
	detected storage.Environment

	autoScaling *autoscaling.AutoScaling
	ec2         *ec2.EC2
	dynamoDB    *dynamodb.DynamoDB

	registry   *prometheus.Registry
	metrics    *monitoring.Metrics
	backend    storage.Backend
	store      *recovery.Store
	autoscaler *autoscale.Autoscaler
	operator   *ops.Operator
}

// newEnvironment detects the account and region and creates
// the services described by config
func newEnvironment(ctx context.Context, config processconfig.Config) (*environment, error) {
	detected, err := cloudaws.DetectEnvironment(ctx, cloudaws.EnvironmentConfig{
		AccountID: config.AccountID,
		Region:    config.Region,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if detected.Region == "" {
		return nil, trace.BadParameter("AWS region is not configured and could not be detected, " +
			"specify it with --region")
	}
	config.Region = detected.Region
	config.AccountID = detected.AccountID
	sess, err := session.NewSession(&awsapi.Config{Region: awsapi.String(config.Region)})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	env := &environment{
		config:      config,
		detected:    *detected,
		autoScaling: autoscaling.New(sess),
		ec2:         ec2.New(sess),
		dynamoDB:    dynamodb.New(sess),
		registry:    prometheus.NewRegistry(),
	}
	env.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	env.metrics, err = monitoring.New(env.registry)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	env.backend, err = config.CreateBackend()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	env.store, err = recovery.New(recovery.Config{
		Backend: env.backend,
		Metrics: env.metrics,
	})
	if err != nil {
		env.Close()
		return nil, trace.Wrap(err)
	}
	env.autoscaler, err = autoscale.New(autoscale.Config{
		Region:       config.Region,
		AutoScaling:  env.autoScaling,
		Cloud:        env.ec2,
		Records:      env.store,
		Metrics:      env.metrics,
		CallTimeout:  config.CallTimeout,
		RetryTimeout: config.RetryTimeout,
	})
	if err != nil {
		env.Close()
		return nil, trace.Wrap(err)
	}
	env.operator, err = ops.New(ops.Config{
		Discoverer: env.autoscaler,
		Mutator:    env.autoscaler,
		Store:      env.store,
		Parallel:   config.Parallel,
		Metrics:    env.metrics,
	})
	if err != nil {
		env.Close()
		return nil, trace.Wrap(err)
	}
	return env, nil
}

// Close releases the resources held by this environment
func (r *environment) Close() error {
	if r.backend == nil {
		return nil
	}
	return trace.Wrap(r.backend.Close())
}
