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

package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/gravitational/trace"
)

// ResolutionError is returned when a zone ID does not resolve to a zone name.
// No operation can proceed without the zone name
type ResolutionError struct {
	// ZoneID is the zone ID that failed to resolve
	ZoneID string
	// Region is the region the zone was looked up in
	Region string
}

// Error returns the error message
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve zone name for zone ID %q in region %q", e.ZoneID, e.Region)
}

// IsResolutionError returns true if err is a zone resolution error
func IsResolutionError(err error) bool {
	_, ok := trace.Unwrap(err).(*ResolutionError)
	return ok
}

// PreconditionError is returned when a zone cannot be removed from
// an auto scaling group without leaving it with no zones at all
type PreconditionError struct {
	// Name is the auto scaling group name
	Name string
	// ZoneName is the zone that was about to be removed
	ZoneName string
	// AvailabilityZones lists the group's zones
	AvailabilityZones []string
}

// Error returns the error message
func (e *PreconditionError) Error() string {
	if len(e.AvailabilityZones) == 0 {
		return fmt.Sprintf("auto scaling group %v has no availability zones to remove %v from",
			e.Name, e.ZoneName)
	}
	return fmt.Sprintf("removing %v from auto scaling group %v would leave it with no availability zones (has %v)",
		e.ZoneName, e.Name, e.AvailabilityZones)
}

// IsPreconditionError returns true if err is a precondition error
func IsPreconditionError(err error) bool {
	_, ok := trace.Unwrap(err).(*PreconditionError)
	return ok
}

// ConvertError converts errors specific to AWS to trace-compatible error.
// Throttling errors become trace.LimitExceeded and transient request
// failures become trace.ConnectionProblem
func ConvertError(err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	awsErr, ok := err.(awserr.Error)
	if !ok {
		return err
	}
	switch {
	case request.IsErrorThrottle(err):
		return trace.LimitExceeded(awsErr.Error(), args...)
	case awsErr.Code() == request.CanceledErrorCode:
		return trace.Wrap(err, args...)
	case request.IsErrorRetryable(err):
		return trace.ConnectionProblem(err, awsErr.Error(), args...)
	}
	switch awsErr.Code() {
	case "ValidationError", "InvalidParameterValue", "InvalidSubnetID.NotFound":
		return trace.BadParameter(awsErr.Error(), args...)
	case "AccessDenied", "UnauthorizedOperation":
		return trace.AccessDenied(awsErr.Error(), args...)
	}
	return err
}
