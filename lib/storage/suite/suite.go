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

// package suite contains a storage acceptance test suite that is backend
// implementation independent each storage will use the suite to test itself
package suite

import (
	"context"
	"fmt"
	"sync"

	"github.com/gravitational/azfailaway/lib/compare"
	"github.com/gravitational/azfailaway/lib/storage"

	"github.com/gravitational/trace"
	. "gopkg.in/check.v1"
)

// StorageSuite verifies recovery record backend semantics
type StorageSuite struct {
	Backend storage.Backend
}

// RecordsCRUD verifies basic record lifecycle
func (s *StorageSuite) RecordsCRUD(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")

	_, err := s.Backend.GetRecord(ctx, key)
	c.Assert(trace.IsNotFound(err), Equals, true, Commentf("%v", err))

	c.Assert(s.Backend.CreateRecord(ctx, key), IsNil)
	err = s.Backend.CreateRecord(ctx, key)
	c.Assert(trace.IsAlreadyExists(err), Equals, true, Commentf("%v", err))

	record, err := s.Backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	c.Assert(record.Key, Equals, key)
	c.Assert(record.Events, HasLen, 0)

	event := newEvent("test-asg-01", "us-east-2a")
	c.Assert(s.Backend.UpsertEntry(ctx, key, event), IsNil)

	record, err = s.Backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	compare.DeepCompare(c, record, &storage.RecoveryRecord{
		Key:    key,
		Events: map[string]storage.UpdateAutoScalingGroupEvent{"test-asg-01": event},
	})

	c.Assert(s.Backend.RemoveEntry(ctx, key, "test-asg-01"), IsNil)
	record, err = s.Backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	c.Assert(record.Events, HasLen, 0)
}

// UpsertsEntries verifies that entries are replaced and that a repeated
// upsert of the same event leaves the record unchanged
func (s *StorageSuite) UpsertsEntries(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")
	c.Assert(s.Backend.CreateRecord(ctx, key), IsNil)

	first := newEvent("test-asg-01", "us-east-2a")
	c.Assert(s.Backend.UpsertEntry(ctx, key, first), IsNil)

	second := newEvent("test-asg-01", "us-east-2a")
	second.SubnetIDs = []string{"subnet-2"}
	second.Details.OperationEvent.Timestamp = first.Details.OperationEvent.Timestamp + 1000
	c.Assert(s.Backend.UpsertEntry(ctx, key, second), IsNil)
	c.Assert(s.Backend.UpsertEntry(ctx, key, second), IsNil)

	other := newEvent("test-asg-02", "us-east-2a")
	c.Assert(s.Backend.UpsertEntry(ctx, key, other), IsNil)

	record, err := s.Backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	compare.DeepCompare(c, record, &storage.RecoveryRecord{
		Key: key,
		Events: map[string]storage.UpdateAutoScalingGroupEvent{
			"test-asg-01": second,
			"test-asg-02": other,
		},
	})
	c.Assert(record.Names(), DeepEquals, []string{"test-asg-01", "test-asg-02"})
}

// RemovesAbsentEntries verifies that removing absent entries is not an error
func (s *StorageSuite) RemovesAbsentEntries(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az2")

	c.Assert(s.Backend.RemoveEntry(ctx, key, "test-asg-01"), IsNil)

	c.Assert(s.Backend.CreateRecord(ctx, key), IsNil)
	c.Assert(s.Backend.RemoveEntry(ctx, key, "test-asg-01"), IsNil)
	c.Assert(s.Backend.RemoveEntry(ctx, key, "test-asg-01"), IsNil)

	record, err := s.Backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	c.Assert(record.Events, HasLen, 0)
}

// IsolatesRecords verifies that records for different zones and accounts
// do not share entries
func (s *StorageSuite) IsolatesRecords(c *C) {
	ctx := context.TODO()
	keys := []string{
		storage.RecordKey("123456789012", "use2-az1"),
		storage.RecordKey("123456789012", "use2-az2"),
		storage.RecordKey("210987654321", "use2-az1"),
	}
	for i, key := range keys {
		c.Assert(s.Backend.CreateRecord(ctx, key), IsNil)
		event := newEvent(fmt.Sprintf("asg-%v", i), "us-east-2a")
		event.Details.OperationEvent.AccountID, event.Details.OperationEvent.ZoneID, _ = storage.ParseRecordKey(key)
		c.Assert(s.Backend.UpsertEntry(ctx, key, event), IsNil)
	}
	for i, key := range keys {
		record, err := s.Backend.GetRecord(ctx, key)
		c.Assert(err, IsNil)
		c.Assert(record.Names(), DeepEquals, []string{fmt.Sprintf("asg-%v", i)})
	}
}

// ConcurrentUpserts verifies that concurrent writers of different entries
// in the same record do not lose updates
func (s *StorageSuite) ConcurrentUpserts(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")
	const count = 10

	var wg sync.WaitGroup
	errC := make(chan error, 2*count)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			err := s.Backend.CreateRecord(ctx, key)
			if err != nil && !trace.IsAlreadyExists(err) {
				errC <- err
				return
			}
			errC <- s.Backend.UpsertEntry(ctx, key, newEvent(name, "us-east-2a"))
		}(fmt.Sprintf("asg-%02d", i))
	}
	wg.Wait()
	close(errC)
	for err := range errC {
		c.Assert(err, IsNil)
	}

	record, err := s.Backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	c.Assert(record.Events, HasLen, count)
}

func newEvent(name, zoneName string) storage.UpdateAutoScalingGroupEvent {
	return storage.UpdateAutoScalingGroupEvent{
		AvailabilityZones: []string{"us-east-2b", "us-east-2c"},
		SubnetIDs:         []string{"subnet-0778ab3187fdbfe37", "subnet-09e77b41e33b9b69d"},
		Status:            storage.StatusSuccess,
		Details: storage.AutoScalingGroupDetails{
			Name:     name,
			ZoneName: zoneName,
			SubnetIDs: []string{
				"subnet-0778ab3187fdbfe37",
				"subnet-0c775f4df04b75521",
				"subnet-09e77b41e33b9b69d",
			},
			AvailabilityZones: []string{"us-east-2a", "us-east-2b", "us-east-2c"},
			OperationEvent: storage.OperationEvent{
				Operation: storage.OperationRemove,
				ZoneID:    "use2-az1",
				Region:    "us-east-2",
				AccountID: "123456789012",
				Timestamp: 1640707455663,
			},
		},
	}
}
