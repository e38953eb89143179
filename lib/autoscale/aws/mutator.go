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
	"context"
	"net/http"
	"strings"

	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// TargetFunc computes the availability zones an auto scaling group
// should be updated with
type TargetFunc func(details storage.AutoScalingGroupDetails) ([]string, error)

// RemoveZone removes the zone from the specified auto scaling group.
// Returns *PreconditionError without calling the API if the group would
// be left with no zones
func (a *Autoscaler) RemoveZone(ctx context.Context, details storage.AutoScalingGroupDetails) (*storage.UpdateAutoScalingGroupEvent, error) {
	return a.Mutate(ctx, details, withoutZone)
}

// RestoreZone adds the zone back to the specified auto scaling group
func (a *Autoscaler) RestoreZone(ctx context.Context, details storage.AutoScalingGroupDetails) (*storage.UpdateAutoScalingGroupEvent, error) {
	return a.Mutate(ctx, details, withZone)
}

// Mutate updates the zones of the specified group to the zones computed by target.
// The subnets of the group are updated to the known subnets of the group that
// reside in the target zones.
//
// Failures to update the group are not returned: the resulting event has
// the Failed status instead. Only errors from target are returned
func (a *Autoscaler) Mutate(ctx context.Context, details storage.AutoScalingGroupDetails, target TargetFunc) (*storage.UpdateAutoScalingGroupEvent, error) {
	zones, err := target(details)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	logger := a.WithFields(log.Fields{
		"asg":   details.Name,
		"zone":  details.ZoneName,
		"zones": zones,
	})
	event := &storage.UpdateAutoScalingGroupEvent{
		AvailabilityZones: zones,
		Status:            storage.StatusFailed,
		Details:           details,
	}
	defer func() {
		a.Metrics.ObserveMutation(string(details.OperationEvent.Operation), string(event.Status))
	}()
	if len(details.SubnetIDs) != 0 {
		subnets, err := a.describeSubnets(ctx, zones, details.SubnetIDs)
		if err != nil {
			logger.WithError(err).Warn("Failed to describe subnets.")
			logger.Debug(trace.DebugReport(err))
			return event, nil
		}
		event.SubnetIDs = subnets
	}
	input := &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(details.Name),
		AvailabilityZones:    aws.StringSlice(zones),
	}
	if len(event.SubnetIDs) != 0 {
		input.VPCZoneIdentifier = aws.String(strings.Join(event.SubnetIDs, defaults.VPCZoneIdentifierSeparator))
	}
	var statusCode int
	callCtx, cancel := context.WithTimeout(ctx, a.CallTimeout)
	defer cancel()
	_, err = a.AutoScaling.UpdateAutoScalingGroupWithContext(callCtx, input, withStatusCode(&statusCode))
	if err != nil {
		logger.WithError(ConvertError(err)).Warn("Failed to update auto scaling group.")
		return event, nil
	}
	if statusCode != http.StatusOK {
		logger.WithField("status", statusCode).Warn("Unexpected response to auto scaling group update.")
		return event, nil
	}
	event.Status = storage.StatusSuccess
	logger.WithField("subnets", event.SubnetIDs).Info("Updated auto scaling group.")
	return event, nil
}

// withoutZone returns the zones of the group without the zone being removed
func withoutZone(details storage.AutoScalingGroupDetails) ([]string, error) {
	zones := utils.Without(details.AvailabilityZones, details.ZoneName)
	if len(zones) == 0 {
		return nil, trace.Wrap(&PreconditionError{
			Name:              details.Name,
			ZoneName:          details.ZoneName,
			AvailabilityZones: details.AvailabilityZones,
		})
	}
	return zones, nil
}

// withZone returns the zones of the group with the zone being restored appended
func withZone(details storage.AutoScalingGroupDetails) ([]string, error) {
	zones := make([]string, 0, len(details.AvailabilityZones)+1)
	zones = append(zones, details.AvailabilityZones...)
	return append(zones, details.ZoneName), nil
}

// withStatusCode returns a request option that captures the HTTP status code
// of the response into code
func withStatusCode(code *int) request.Option {
	return func(r *request.Request) {
		r.Handlers.Complete.PushBack(func(r *request.Request) {
			if r.HTTPResponse != nil {
				*code = r.HTTPResponse.StatusCode
			}
		})
	}
}
