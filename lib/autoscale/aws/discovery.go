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
	"io"

	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Source is a finite sequence of auto scaling group snapshots
type Source interface {
	// Next returns the next snapshot.
	// Returns io.EOF once the sequence is exhausted
	Next(ctx context.Context) (*storage.AutoScalingGroupDetails, error)
}

// Discover returns the auto scaling groups affected by the specified operation
func (a *Autoscaler) Discover(ctx context.Context, event storage.OperationEvent) (Source, error) {
	switch event.Operation {
	case storage.OperationRemove:
		seq, err := a.DiscoverRemove(ctx, event)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		return seq, nil
	case storage.OperationRestore:
		groups, err := a.DiscoverRestore(ctx, event)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		return NewSliceSource(groups), nil
	}
	return nil, trace.Wrap(event.Operation.Check())
}

// DiscoverRemove resolves the zone of the specified event and returns
// the sequence of auto scaling groups that currently use it.
// Groups are listed page by page as the sequence is consumed
func (a *Autoscaler) DiscoverRemove(ctx context.Context, event storage.OperationEvent) (*Sequence, error) {
	zoneName, err := a.Resolve(ctx, event.ZoneID, event.Region)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Sequence{
		a:        a,
		event:    event,
		zoneName: zoneName,
		Entry:    a.WithFields(log.Fields{"zone": zoneName, "key": event.Key()}),
	}, nil
}

// Sequence lists auto scaling groups that use a particular zone.
// It is lazy: a page of groups is requested only when the previous one
// has been consumed. A sequence cannot be restarted
type Sequence struct {
	*log.Entry
	a         *Autoscaler
	event     storage.OperationEvent
	zoneName  string
	buffer    []storage.AutoScalingGroupDetails
	nextToken *string
	pages     int
	done      bool
}

// ZoneName returns the resolved name of the zone
func (r *Sequence) ZoneName() string {
	return r.zoneName
}

// Next returns the next auto scaling group using the zone.
// Returns io.EOF after the last group
func (r *Sequence) Next(ctx context.Context) (*storage.AutoScalingGroupDetails, error) {
	for len(r.buffer) == 0 {
		if r.done {
			return nil, io.EOF
		}
		if err := r.fetch(ctx); err != nil {
			return nil, trace.Wrap(err)
		}
	}
	details := r.buffer[0]
	r.buffer = r.buffer[1:]
	return &details, nil
}

func (r *Sequence) fetch(ctx context.Context) error {
	var out *autoscaling.DescribeAutoScalingGroupsOutput
	err := r.a.retryRead(ctx, func(ctx context.Context) (err error) {
		out, err = r.a.AutoScaling.DescribeAutoScalingGroupsWithContext(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
			MaxRecords: aws.Int64(r.a.PageSize),
			NextToken:  r.nextToken,
		})
		return ConvertError(err)
	})
	if err != nil {
		return trace.Wrap(err, "failed to list auto scaling groups")
	}
	r.pages++
	for _, group := range out.AutoScalingGroups {
		if utils.StringInSlice(aws.StringValueSlice(group.AvailabilityZones), r.zoneName) {
			r.buffer = append(r.buffer, newDetails(group, r.zoneName, r.event))
		}
	}
	r.WithField("page", r.pages).Debugf("Found %v of %v groups using zone.",
		len(r.buffer), len(out.AutoScalingGroups))
	r.nextToken = out.NextToken
	if aws.StringValue(r.nextToken) == "" {
		r.done = true
	}
	return nil
}

// DiscoverRestore returns the live configuration of every auto scaling group
// recorded as modified by a removal of the event's zone.
//
// The subnets the group had in the zone at removal time are added back
// to its live subnets, restricted to subnets that still exist in the zone.
// Groups that no longer exist or cannot be described are skipped.
// Groups are returned in name order
func (a *Autoscaler) DiscoverRestore(ctx context.Context, event storage.OperationEvent) ([]storage.AutoScalingGroupDetails, error) {
	logger := a.WithField("key", event.Key())
	record, err := a.Records.Get(ctx, event.AccountID, event.ZoneID)
	if err != nil {
		if trace.IsNotFound(err) {
			logger.Info("No recovery record, nothing to restore.")
			return nil, nil
		}
		return nil, trace.Wrap(err)
	}
	var result []storage.AutoScalingGroupDetails
	for _, name := range record.Names() {
		saved := record.Events[name].Details
		details, err := a.recoverDetails(ctx, saved, event)
		if err != nil {
			if trace.IsNotFound(err) {
				logger.WithField("asg", name).Warn("Auto scaling group no longer exists, skipping.")
				continue
			}
			return nil, trace.Wrap(err)
		}
		if details == nil {
			continue
		}
		result = append(result, *details)
	}
	return result, nil
}

// recoverDetails returns the live configuration of the group described by saved
// with the subnets recovered from the saved snapshot
func (a *Autoscaler) recoverDetails(ctx context.Context, saved storage.AutoScalingGroupDetails, event storage.OperationEvent) (*storage.AutoScalingGroupDetails, error) {
	logger := a.WithFields(log.Fields{"asg": saved.Name, "zone": saved.ZoneName})
	group, err := a.DescribeGroup(ctx, saved.Name)
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, trace.Wrap(err)
		}
		logger.WithError(err).Warn("Failed to describe auto scaling group, skipping.")
		return nil, nil
	}
	details := newDetails(group, saved.ZoneName, event)
	zoneSubnets, err := a.describeSubnets(ctx, []string{saved.ZoneName}, nil)
	if err != nil {
		return nil, trace.Wrap(err, "failed to describe subnets in %v", saved.ZoneName)
	}
	recovered := utils.Intersect(saved.SubnetIDs, zoneSubnets)
	if len(recovered) == 0 {
		logger.Warn("No subnets to recover in zone.")
	}
	details.SubnetIDs = utils.Union(details.SubnetIDs, recovered)
	return &details, nil
}

// NewSliceSource returns a source over the specified snapshots
func NewSliceSource(groups []storage.AutoScalingGroupDetails) Source {
	return &sliceSource{groups: groups}
}

type sliceSource struct {
	groups []storage.AutoScalingGroupDetails
}

// Next returns the next snapshot or io.EOF
func (r *sliceSource) Next(context.Context) (*storage.AutoScalingGroupDetails, error) {
	if len(r.groups) == 0 {
		return nil, io.EOF
	}
	details := r.groups[0]
	r.groups = r.groups[1:]
	return &details, nil
}
