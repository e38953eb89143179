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
	"strings"
	"time"

	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/ops/monitoring"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Autoscaler resolves zones, discovers affected auto scaling groups
// and updates their zone configuration
type Autoscaler struct {
	// Config is Autoscaler config
	Config
	*log.Entry
}

// Config is autoscaler config
type Config struct {
	// Region is the AWS region. Used to create clients that are not set explicitly
	Region string
	// AutoScaling is a client for the AWS AutoScaling service
	AutoScaling AutoScaling
	// Cloud is Elastic Compute Cloud, AWS cloud service
	Cloud EC2
	// Records reads recovery records when discovering groups to restore
	Records RecordReader
	// Metrics optionally counts mutations
	Metrics *monitoring.Metrics
	// CallTimeout bounds every individual AWS API call
	CallTimeout time.Duration
	// RetryTimeout bounds the retries of read-only AWS API calls
	RetryTimeout time.Duration
	// PageSize is the number of auto scaling groups requested per page
	PageSize int64
}

// CheckAndSetDefaults checks and sets default values
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.Records == nil {
		return trace.BadParameter("missing parameter Records")
	}
	if (cfg.AutoScaling == nil || cfg.Cloud == nil) && cfg.Region == "" {
		return trace.BadParameter("missing parameter Region")
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if cfg.RetryTimeout == 0 {
		cfg.RetryTimeout = defaults.RetryTimeout
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaults.DescribePageSize
	}
	return nil
}

// New returns new instance of AWS autoscaler
func New(cfg Config) (*Autoscaler, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if cfg.AutoScaling == nil || cfg.Cloud == nil {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.Region),
		})
		if err != nil {
			return nil, trace.Wrap(err)
		}
		if cfg.AutoScaling == nil {
			cfg.AutoScaling = autoscaling.New(sess)
		}
		if cfg.Cloud == nil {
			cfg.Cloud = ec2.New(sess)
		}
	}
	return &Autoscaler{
		Config: cfg,
		Entry:  log.WithFields(log.Fields{trace.Component: "autoscale"}),
	}, nil
}

// Resolve returns the name of the zone with the specified zone ID, e.g. us-east-2a for use2-az1.
// If region is not empty, the lookup is restricted to the region.
// Returns *ResolutionError if the zone ID does not match any zone
func (a *Autoscaler) Resolve(ctx context.Context, zoneID, region string) (string, error) {
	filters := []*ec2.Filter{{
		Name:   aws.String("zone-id"),
		Values: aws.StringSlice([]string{zoneID}),
	}}
	if region != "" {
		filters = append(filters, &ec2.Filter{
			Name:   aws.String("region-name"),
			Values: aws.StringSlice([]string{region}),
		})
	}
	var out *ec2.DescribeAvailabilityZonesOutput
	err := a.retryRead(ctx, func(ctx context.Context) (err error) {
		out, err = a.Cloud.DescribeAvailabilityZonesWithContext(ctx, &ec2.DescribeAvailabilityZonesInput{
			Filters: filters,
		})
		return ConvertError(err)
	})
	if err != nil {
		return "", trace.Wrap(err, "failed to describe availability zone %v", zoneID)
	}
	for _, zone := range out.AvailabilityZones {
		if name := aws.StringValue(zone.ZoneName); name != "" {
			a.WithFields(log.Fields{"zone-id": zoneID, "zone": name}).Debug("Resolved zone.")
			return name, nil
		}
	}
	return "", trace.Wrap(&ResolutionError{ZoneID: zoneID, Region: region})
}

// DescribeGroup returns the live configuration of the auto scaling group
// with the specified name.
// Returns trace.NotFound if the group does not exist
func (a *Autoscaler) DescribeGroup(ctx context.Context, name string) (*autoscaling.Group, error) {
	var out *autoscaling.DescribeAutoScalingGroupsOutput
	err := a.retryRead(ctx, func(ctx context.Context) (err error) {
		out, err = a.AutoScaling.DescribeAutoScalingGroupsWithContext(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
			AutoScalingGroupNames: aws.StringSlice([]string{name}),
		})
		return ConvertError(err)
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	for _, group := range out.AutoScalingGroups {
		if aws.StringValue(group.AutoScalingGroupName) == name {
			return group, nil
		}
	}
	return nil, trace.NotFound("auto scaling group %v not found", name)
}

// describeSubnets returns IDs of subnets in the specified zones.
// If subnetIDs is not empty, only these subnets are considered
func (a *Autoscaler) describeSubnets(ctx context.Context, zones, subnetIDs []string) ([]string, error) {
	input := &ec2.DescribeSubnetsInput{
		Filters: []*ec2.Filter{{
			Name:   aws.String("availability-zone"),
			Values: aws.StringSlice(zones),
		}},
	}
	if len(subnetIDs) != 0 {
		input.SubnetIds = aws.StringSlice(subnetIDs)
	}
	var out *ec2.DescribeSubnetsOutput
	err := a.retryRead(ctx, func(ctx context.Context) (err error) {
		out, err = a.Cloud.DescribeSubnetsWithContext(ctx, input)
		return ConvertError(err)
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	subnets := make([]string, 0, len(out.Subnets))
	for _, subnet := range out.Subnets {
		if id := aws.StringValue(subnet.SubnetId); id != "" {
			subnets = append(subnets, id)
		}
	}
	return subnets, nil
}

// retryRead runs the read-only call fn bounding every attempt with the call timeout
// and retrying throttling and transient errors
func (a *Autoscaler) retryRead(ctx context.Context, fn func(context.Context) error) error {
	return utils.RetryTransient(ctx, utils.NewExponentialBackOff(a.RetryTimeout), func() error {
		ctx, cancel := context.WithTimeout(ctx, a.CallTimeout)
		defer cancel()
		return fn(ctx)
	})
}

// newDetails returns the zone configuration snapshot of the specified group
func newDetails(group *autoscaling.Group, zoneName string, event storage.OperationEvent) storage.AutoScalingGroupDetails {
	return storage.AutoScalingGroupDetails{
		Name:              aws.StringValue(group.AutoScalingGroupName),
		ARN:               aws.StringValue(group.AutoScalingGroupARN),
		ZoneName:          zoneName,
		SubnetIDs:         splitZoneIdentifier(aws.StringValue(group.VPCZoneIdentifier)),
		AvailabilityZones: aws.StringValueSlice(group.AvailabilityZones),
		OperationEvent:    event,
	}
}

// splitZoneIdentifier returns subnet IDs from a VPC zone identifier
func splitZoneIdentifier(identifier string) (subnets []string) {
	for _, subnet := range strings.Split(identifier, defaults.VPCZoneIdentifierSeparator) {
		if subnet = strings.TrimSpace(subnet); subnet != "" {
			subnets = append(subnets, subnet)
		}
	}
	return subnets
}
