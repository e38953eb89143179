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
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gravitational/azfailaway/lib/autoscale/aws"
	"github.com/gravitational/azfailaway/lib/compare"
	"github.com/gravitational/azfailaway/lib/recovery"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/storage/keyval"
	"github.com/gravitational/azfailaway/lib/utils"

	awsapi "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/gravitational/trace"
	check "gopkg.in/check.v1"
)

// ScenarioSuite runs operations against the real autoscaler
// backed by in-memory AWS services
type ScenarioSuite struct {
	dir        string
	backend    *keyval.Bolt
	store      *recovery.Store
	groups     *cloudGroups
	autoscaler *aws.Autoscaler
	operator   *Operator
}

var _ = check.Suite(&ScenarioSuite{})

func (s *ScenarioSuite) SetUpTest(c *check.C) {
	var err error
	s.dir, err = ioutil.TempDir("", "azfailaway-scenario")
	c.Assert(err, check.IsNil)
	s.backend, err = keyval.NewBolt(keyval.BoltConfig{Path: filepath.Join(s.dir, "bolt.db")})
	c.Assert(err, check.IsNil)
	s.store, err = recovery.New(recovery.Config{Backend: s.backend})
	c.Assert(err, check.IsNil)
	s.groups = &cloudGroups{groups: map[string]*autoscaling.Group{
		"test-asg-01": {
			AutoScalingGroupName: awsapi.String("test-asg-01"),
			AvailabilityZones:    awsapi.StringSlice([]string{"us-east-2a", "us-east-2b", "us-east-2c"}),
			VPCZoneIdentifier:    awsapi.String("s1,s2,s3"),
		},
	}}
	s.autoscaler, err = aws.New(aws.Config{
		AutoScaling: s.groups,
		Cloud:       cloudNetwork{},
		Records:     s.store,
	})
	c.Assert(err, check.IsNil)
	s.operator, err = New(Config{
		Discoverer: s.autoscaler,
		Mutator:    s.autoscaler,
		Store:      s.store,
	})
	c.Assert(err, check.IsNil)
}

func (s *ScenarioSuite) TearDownTest(c *check.C) {
	c.Assert(s.backend.Close(), check.IsNil)
	c.Assert(os.RemoveAll(s.dir), check.IsNil)
}

func (s *ScenarioSuite) TestRemoveThenRestore(c *check.C) {
	ctx := context.TODO()
	removal := removeEvent()
	exec, err := s.operator.Execute(ctx, removal)
	c.Assert(err, check.IsNil)
	c.Assert(exec.State, check.Equals, ExecutionSucceeded)
	c.Assert(exec.Branches, check.HasLen, 1)
	mutation := exec.Branches[0].Mutation
	c.Assert(mutation.Status, check.Equals, storage.StatusSuccess)
	c.Assert(mutation.AvailabilityZones, check.DeepEquals, []string{"us-east-2b", "us-east-2c"})
	c.Assert(mutation.SubnetIDs, check.DeepEquals, []string{"s2", "s3"})
	c.Assert(mutation.Details.SubnetIDs, check.DeepEquals, []string{"s1", "s2", "s3"})

	record, err := s.store.Get(ctx, removal.AccountID, removal.ZoneID)
	c.Assert(err, check.IsNil)
	c.Assert(record.Key, check.Equals, "123456789012::use2-az1")
	compare.DeepCompare(c, record.Events["test-asg-01"], *mutation)
	c.Assert(s.groups.zones("test-asg-01"), check.DeepEquals, []string{"us-east-2b", "us-east-2c"})

	exec, err = s.operator.Execute(ctx, restoreEvent())
	c.Assert(err, check.IsNil)
	c.Assert(exec.State, check.Equals, ExecutionSucceeded)
	c.Assert(exec.Branches, check.HasLen, 1)
	c.Assert(exec.Branches[0].State, check.Equals, BranchDeleteSucceeded)
	restored := exec.Branches[0].Mutation
	c.Assert(restored.AvailabilityZones, check.DeepEquals, []string{"us-east-2b", "us-east-2c", "us-east-2a"})
	c.Assert(restored.SubnetIDs, compare.SameStrings, []string{"s1", "s2", "s3"})
	c.Assert(awsapi.StringValue(s.groups.groups["test-asg-01"].VPCZoneIdentifier), check.Equals, "s2,s3,s1")

	record, err = s.store.Get(ctx, removal.AccountID, removal.ZoneID)
	c.Assert(err, check.IsNil)
	c.Assert(record.Events, check.HasLen, 0)
}

func (s *ScenarioSuite) TestRestoreWithoutRecordIsTrivial(c *check.C) {
	exec, err := s.operator.Execute(context.TODO(), restoreEvent())
	c.Assert(err, check.IsNil)
	c.Assert(exec.State, check.Equals, ExecutionSucceeded)
	c.Assert(exec.Branches, check.HasLen, 0)
	c.Assert(s.groups.updates, check.Equals, 0)
}

func (s *ScenarioSuite) TestRemovingLastZoneAborts(c *check.C) {
	s.groups.groups["test-asg-01"].AvailabilityZones = awsapi.StringSlice([]string{"us-east-2a"})
	exec, err := s.operator.Execute(context.TODO(), removeEvent())
	c.Assert(aws.IsPreconditionError(err), check.Equals, true, check.Commentf("%v", err))
	c.Assert(exec.State, check.Equals, ExecutionFailed)
	c.Assert(s.groups.updates, check.Equals, 0)
	_, err = s.store.Get(context.TODO(), "123456789012", "use2-az1")
	c.Assert(trace.IsNotFound(err), check.Equals, true)
}

func (s *ScenarioSuite) TestAuditsRecordedGroups(c *check.C) {
	ctx := context.TODO()
	s.groups.groups["test-asg-02"] = &autoscaling.Group{
		AutoScalingGroupName: awsapi.String("test-asg-02"),
		AvailabilityZones:    awsapi.StringSlice([]string{"us-east-2a", "us-east-2b"}),
		VPCZoneIdentifier:    awsapi.String("s1,s2"),
	}
	s.groups.groups["test-asg-03"] = &autoscaling.Group{
		AutoScalingGroupName: awsapi.String("test-asg-03"),
		AvailabilityZones:    awsapi.StringSlice([]string{"us-east-2a", "us-east-2c"}),
		VPCZoneIdentifier:    awsapi.String("s1,s3"),
	}
	_, err := s.operator.Execute(ctx, removeEvent())
	c.Assert(err, check.IsNil)

	auditor, err := NewAuditor(AuditConfig{Records: s.store, Groups: s.autoscaler})
	c.Assert(err, check.IsNil)
	entries, err := auditor.Audit(ctx, "123456789012", "use2-az1")
	c.Assert(err, check.IsNil)
	c.Assert(entries, check.HasLen, 3)
	for _, entry := range entries {
		c.Assert(entry.Drift, check.Equals, DriftConsistent, check.Commentf("%v", entry))
	}

	// one group is gone, one got its zone back outside of the service,
	// and one was scaled into another zone
	delete(s.groups.groups, "test-asg-01")
	s.groups.groups["test-asg-02"].AvailabilityZones = awsapi.StringSlice([]string{"us-east-2b", "us-east-2a"})
	s.groups.groups["test-asg-03"].AvailabilityZones = awsapi.StringSlice([]string{"us-east-2b", "us-east-2c"})
	entries, err = auditor.Audit(ctx, "123456789012", "use2-az1")
	c.Assert(err, check.IsNil)
	c.Assert(entries[0].ASG, check.Equals, "test-asg-01")
	c.Assert(entries[0].Drift, check.Equals, DriftMissing)
	c.Assert(entries[1].Drift, check.Equals, DriftAlreadyRestored)
	c.Assert(entries[2].Drift, check.Equals, DriftModified)
	c.Assert(entries[2].Recorded, check.DeepEquals, []string{"us-east-2c"})

	_, err = auditor.Audit(ctx, "123456789012", "use2-az2")
	c.Assert(trace.IsNotFound(err), check.Equals, true)
}

// cloudGroups is an in-memory auto scaling service that applies updates
type cloudGroups struct {
	sync.Mutex
	groups  map[string]*autoscaling.Group
	updates int
}

func (m *cloudGroups) zones(name string) []string {
	m.Lock()
	defer m.Unlock()
	return awsapi.StringValueSlice(m.groups[name].AvailabilityZones)
}

func (m *cloudGroups) DescribeAutoScalingGroupsWithContext(ctx awsapi.Context, input *autoscaling.DescribeAutoScalingGroupsInput, opts ...request.Option) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	m.Lock()
	defer m.Unlock()
	var out autoscaling.DescribeAutoScalingGroupsOutput
	for _, name := range groupNames(m.groups) {
		if len(input.AutoScalingGroupNames) != 0 &&
			!utils.StringInSlice(awsapi.StringValueSlice(input.AutoScalingGroupNames), name) {
			continue
		}
		group := *m.groups[name]
		out.AutoScalingGroups = append(out.AutoScalingGroups, &group)
	}
	return &out, nil
}

func (m *cloudGroups) UpdateAutoScalingGroupWithContext(ctx awsapi.Context, input *autoscaling.UpdateAutoScalingGroupInput, opts ...request.Option) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	m.Lock()
	defer m.Unlock()
	m.updates++
	group := m.groups[awsapi.StringValue(input.AutoScalingGroupName)]
	group.AvailabilityZones = input.AvailabilityZones
	if input.VPCZoneIdentifier != nil {
		group.VPCZoneIdentifier = input.VPCZoneIdentifier
	}
	req := &request.Request{HTTPResponse: &http.Response{StatusCode: http.StatusOK}}
	req.ApplyOptions(opts...)
	req.Handlers.Complete.Run(req)
	return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
}

func groupNames(groups map[string]*autoscaling.Group) (names []string) {
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cloudNetwork serves zones use2-az1..3 and subnets s1..s3, one per zone
type cloudNetwork struct{}

var cloudSubnets = map[string]string{
	"s1": "us-east-2a",
	"s2": "us-east-2b",
	"s3": "us-east-2c",
}

func (cloudNetwork) DescribeAvailabilityZonesWithContext(ctx awsapi.Context, input *ec2.DescribeAvailabilityZonesInput, opts ...request.Option) (*ec2.DescribeAvailabilityZonesOutput, error) {
	var out ec2.DescribeAvailabilityZonesOutput
	for _, filter := range input.Filters {
		if awsapi.StringValue(filter.Name) != "zone-id" {
			continue
		}
		for _, id := range awsapi.StringValueSlice(filter.Values) {
			if !strings.HasPrefix(id, "use2-az") || len(id) != len("use2-az1") {
				continue
			}
			out.AvailabilityZones = append(out.AvailabilityZones, &ec2.AvailabilityZone{
				ZoneId:     awsapi.String(id),
				ZoneName:   awsapi.String("us-east-2" + string(rune('a'+id[len(id)-1]-'1'))),
				RegionName: awsapi.String("us-east-2"),
			})
		}
	}
	return &out, nil
}

func (cloudNetwork) DescribeSubnetsWithContext(ctx awsapi.Context, input *ec2.DescribeSubnetsInput, opts ...request.Option) (*ec2.DescribeSubnetsOutput, error) {
	var zones []string
	for _, filter := range input.Filters {
		if awsapi.StringValue(filter.Name) == "availability-zone" {
			zones = awsapi.StringValueSlice(filter.Values)
		}
	}
	ids := awsapi.StringValueSlice(input.SubnetIds)
	if len(ids) == 0 {
		ids = []string{"s1", "s2", "s3"}
	}
	var out ec2.DescribeSubnetsOutput
	for _, id := range ids {
		if utils.StringInSlice(zones, cloudSubnets[id]) {
			out.Subnets = append(out.Subnets, &ec2.Subnet{
				SubnetId:         awsapi.String(id),
				AvailabilityZone: awsapi.String(cloudSubnets[id]),
			})
		}
	}
	return &out, nil
}
