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

package utils

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gravitational/trace"
	. "gopkg.in/check.v1"
)

func TestUtils(t *testing.T) { TestingT(t) }

type UtilsSuite struct{}

var _ = Suite(&UtilsSuite{})

func (s *UtilsSuite) TestWithoutPreservesOrder(c *C) {
	c.Assert(Without([]string{"a", "b", "c"}, "b"), DeepEquals, []string{"a", "c"})
	c.Assert(Without([]string{"a"}, "a"), DeepEquals, []string{})
	c.Assert(Without([]string{"a", "c"}, "b"), DeepEquals, []string{"a", "c"})
}

func (s *UtilsSuite) TestUnionKeepsFirstOccurrence(c *C) {
	c.Assert(Union([]string{"s2", "s3"}, []string{"s1", "s3"}), DeepEquals, []string{"s2", "s3", "s1"})
	c.Assert(Union(nil, []string{"s1", "s1"}), DeepEquals, []string{"s1"})
	c.Assert(Union(nil, nil), DeepEquals, []string{})
}

func (s *UtilsSuite) TestIntersectUsesFirstOrder(c *C) {
	c.Assert(Intersect([]string{"s3", "s1", "s2"}, []string{"s1", "s3"}), DeepEquals, []string{"s3", "s1"})
	c.Assert(Intersect([]string{"s1"}, nil), DeepEquals, []string{})
}

func (s *UtilsSuite) TestRetriesTransientErrors(c *C) {
	var attempts int
	err := RetryTransient(context.TODO(), fastBackOff(), func() error {
		attempts++
		if attempts < 3 {
			return trace.LimitExceeded("slow down")
		}
		return nil
	})
	c.Assert(err, IsNil)
	c.Assert(attempts, Equals, 3)
}

func (s *UtilsSuite) TestDoesNotRetryPermanentErrors(c *C) {
	var attempts int
	err := RetryTransient(context.TODO(), fastBackOff(), func() error {
		attempts++
		return trace.NotFound("no such zone")
	})
	c.Assert(trace.IsNotFound(err), Equals, true)
	c.Assert(attempts, Equals, 1)
}

func (s *UtilsSuite) TestStringSet(c *C) {
	set := NewStringSetFromSlice([]string{"two", "one", "two"})
	c.Assert(set, HasLen, 2)
	c.Assert(set.Has("one"), Equals, true)
	c.Assert(set.Has("three"), Equals, false)
	set.Add("three")
	c.Assert(set.Slice(), DeepEquals, []string{"one", "three", "two"})
	c.Assert(set.Equals(NewStringSetFromSlice([]string{"three", "two", "one"})), Equals, true)
	c.Assert(set.Equals(NewStringSetFromSlice([]string{"three", "two", "four"})), Equals, false)
	c.Assert(set.Equals(NewStringSet()), Equals, false)
}

func fastBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxElapsedTime = time.Second
	return b
}
