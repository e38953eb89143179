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

// Package validation probes the permissions the fail-away operations need
package validation

import (
	"context"
	"net/http"
	"strings"

	"github.com/gravitational/azfailaway/lib/autoscale/aws"
	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/storage/dynamo"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Clients groups clients of the services the probes exercise
type Clients struct {
	// AutoScaling is a client for the AWS AutoScaling service
	AutoScaling aws.AutoScaling
	// EC2 is a client for the AWS EC2 service
	EC2 aws.EC2
	// DynamoDB is a client for AWS DynamoDB
	DynamoDB dynamo.DynamoDB
	// TableName is the name of the recovery table
	TableName string
}

// Validate validates the specified clients have access to the resources
// described by probes. None of the probes modifies any resource.
// Returns the list of actions the clients do not have access to.
func Validate(ctx context.Context, clients Clients, probes Probes) (actions Actions, err error) {
	if clients.TableName == "" {
		clients.TableName = defaults.TableName
	}
	actions, err = validateWithContext(ctx, &clients, probes, resourceValidatorFunc(validateResource))
	return actions, trace.Wrap(err)
}

func validateWithContext(ctx context.Context, clients *Clients, probes Probes, validator resourceValidator) (actions Actions, err error) {
	if len(probes) < 1 {
		return actions, nil
	}

	log.Info("Running validation probes...")

	// before running checks on all permissions, quickly try to check the first one
	// to make sure the credentials are valid at all
	if _, err = validator.Do(ctx, clients, probes[0]); err != nil {
		return nil, trace.Wrap(err)
	}

	type result struct {
		ok    bool
		err   error
		probe ResourceProbe
	}

	semaphoreC := make(chan struct{}, defaults.MaxValidationConcurrency)
	resultC := make(chan result, len(probes))

	started := 0
dispatch:
	for _, probe := range probes {
		select {
		case semaphoreC <- struct{}{}:
			started++
			go func(probe ResourceProbe) {
				ok, err := validator.Do(ctx, clients, probe)
				resultC <- result{ok, trace.Wrap(err), probe}
				<-semaphoreC
			}(probe)
		case <-ctx.Done():
			break dispatch
		}
	}

	var errors []error
	for i := 0; i < started; i++ {
		r := <-resultC
		if r.err != nil {
			errors = append(errors, r.err)
			if awsErr, ok := trace.Unwrap(r.err).(awserr.Error); ok {
				log.Infof("Probe failed for %v: %v (Code=%v, Message=%v).",
					r.probe.Action, r.err, awsErr.Code(), awsErr.Message())
			}
			continue
		}
		if !r.ok {
			log.Infof("Permission is missing: %v.", r.probe.Action)
			actions = append(actions, r.probe.Action)
		}
	}
	if started < len(probes) {
		errors = append(errors, trace.Wrap(ctx.Err()))
	}

	return actions, trace.NewAggregate(errors...)
}

// resourceValidator abstract the action of validating access to an AWS resource
// It exists for testing purposes
type resourceValidator interface {
	Do(ctx context.Context, clients *Clients, probe ResourceProbe) (bool, error)
}

// resourceValidatorFunc validates the resource described by probe
// It implements the resourceValidator interface
type resourceValidatorFunc func(ctx context.Context, clients *Clients, probe ResourceProbe) (bool, error)

// Do validates access to the resource specified with probe using clients for API
func (r resourceValidatorFunc) Do(ctx context.Context, clients *Clients, probe ResourceProbe) (bool, error) {
	ok, err := r(ctx, clients, probe)
	return ok, trace.Wrap(err)
}

// validateResource validates access to the resource specified with probe using
// clients for API
func validateResource(ctx context.Context, clients *Clients, probe ResourceProbe) (bool, error) {
	err := probe.probe(ctx, clients)
	if err == nil {
		return true, nil
	}
	return classifyError(err)
}

// classifyError interprets the error of a probe.
//
// Probes are built to fail once the request has passed authorization:
// dry runs, references to missing resources and failed conditions all
// indicate that the action is permitted
func classifyError(err error) (bool, error) {
	srcErr := trace.Unwrap(err)
	if awsErr, ok := srcErr.(awserr.Error); ok {
		switch {
		case awsErr.Code() == "DryRunOperation",
			awsErr.Code() == "ValidationError",
			awsErr.Code() == "ResourceNotFoundException",
			awsErr.Code() == "ConditionalCheckFailedException",
			strings.HasSuffix(awsErr.Code(), ".NotFound"):
			return true, nil
		case awsErr.Code() == "UnauthorizedOperation",
			awsErr.Code() == "AccessDenied",
			awsErr.Code() == "AccessDeniedException":
			return false, nil
		}
	}
	if reqErr, ok := srcErr.(awserr.RequestFailure); ok {
		switch reqErr.StatusCode() {
		case http.StatusForbidden:
			return false, nil
		case http.StatusUnauthorized:
			return false, trace.Wrap(err, "invalid AWS credentials")
		}
	}
	return false, trace.Wrap(err)
}

// ResourceProbe defines an AWS resource probe context
type ResourceProbe struct {
	Action
	probe func(ctx context.Context, clients *Clients) error
}

// Probes is a list of resource probes
type Probes []ResourceProbe

// Without returns the probes of actions outside of the specified context
func (r Probes) Without(c Context) (result Probes) {
	for _, probe := range r {
		if probe.Context != c {
			result = append(result, probe)
		}
	}
	return result
}
