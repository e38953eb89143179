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

package validation

import (
	"context"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/gravitational/trace"
	. "gopkg.in/check.v1"
)

func TestValidation(t *testing.T) { TestingT(t) }

type ValidationSuite struct{}

var _ = Suite(&ValidationSuite{})

func (r *ValidationSuite) TestReportsMissingActions(c *C) {
	validator := fakeValidator{
		denied: map[string]bool{"autoscaling:UpdateAutoScalingGroup": true},
	}
	actions, err := validateWithContext(context.TODO(), &Clients{}, AllProbes, validator)
	c.Assert(err, IsNil)
	c.Assert(actions, DeepEquals, Actions{{AutoScaling, "UpdateAutoScalingGroup"}})
}

func (r *ValidationSuite) TestEmptyStatementAlwaysValidates(c *C) {
	validator := fakeValidator{}
	var probes Probes
	actions, err := validateWithContext(context.TODO(), &Clients{}, probes, validator)
	c.Assert(err, IsNil)
	c.Assert(actions, IsNil)
}

func (r *ValidationSuite) TestFirstProbeErrorIsFatal(c *C) {
	validator := fakeValidator{err: trace.AccessDenied("invalid AWS credentials")}
	_, err := validateWithContext(context.TODO(), &Clients{}, AllProbes, validator)
	c.Assert(trace.IsAccessDenied(err), Equals, true)
}

func (r *ValidationSuite) TestClassifiesErrors(c *C) {
	testCases := []struct {
		err     error
		ok      bool
		fails   bool
		comment string
	}{
		{err: awserr.New("DryRunOperation", "would have succeeded", nil), ok: true, comment: "dry run"},
		{err: awserr.New("ValidationError", "AutoScalingGroup name not found", nil), ok: true, comment: "missing group"},
		{err: awserr.New("ResourceNotFoundException", "table not found", nil), ok: true, comment: "missing table"},
		{err: awserr.New("ConditionalCheckFailedException", "condition failed", nil), ok: true, comment: "condition"},
		{err: awserr.New("InvalidSubnetID.NotFound", "no subnet", nil), ok: true, comment: "missing subnet"},
		{err: awserr.New("UnauthorizedOperation", "not allowed", nil), comment: "ec2 denied"},
		{err: awserr.New("AccessDenied", "not allowed", nil), comment: "autoscaling denied"},
		{err: awserr.New("AccessDeniedException", "not allowed", nil), comment: "dynamodb denied"},
		{
			err:     awserr.NewRequestFailure(awserr.New("Forbidden", "forbidden", nil), http.StatusForbidden, "id"),
			comment: "forbidden",
		},
		{
			err:     awserr.NewRequestFailure(awserr.New("Unauthorized", "unauthorized", nil), http.StatusUnauthorized, "id"),
			fails:   true,
			comment: "bad credentials",
		},
		{err: awserr.New("InternalFailure", "oops", nil), fails: true, comment: "unknown error"},
	}
	for _, tc := range testCases {
		comment := Commentf(tc.comment)
		ok, err := classifyError(trace.Wrap(tc.err))
		if tc.fails {
			c.Assert(err, NotNil, comment)
			continue
		}
		c.Assert(err, IsNil, comment)
		c.Assert(ok, Equals, tc.ok, comment)
	}
}

func (r *ValidationSuite) TestFiltersProbesByContext(c *C) {
	probes := AllProbes.Without(DynamoDB)
	c.Assert(len(probes), Not(Equals), 0)
	c.Assert(len(probes) < len(AllProbes), Equals, true)
	for _, probe := range probes {
		c.Assert(probe.Context, Not(Equals), DynamoDB, Commentf(probe.String()))
	}
}

func (r *ValidationSuite) TestProbeNamesDoNotRepeat(c *C) {
	c.Assert(*dummyValue("azfailaway-probe-"), Not(Equals), *dummyValue("azfailaway-probe-"))
	c.Assert(*dummyValue("az"), HasLen, len("az")+dummyNameLen)
}

type fakeValidator struct {
	denied map[string]bool
	err    error
}

func (r fakeValidator) Do(ctx context.Context, clients *Clients, probe ResourceProbe) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return !r.denied[probe.Action.String()], nil
}
