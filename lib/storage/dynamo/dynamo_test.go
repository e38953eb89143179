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

package dynamo

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/storage/suite"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/gravitational/trace"
	. "gopkg.in/check.v1"
)

func TestDynamo(t *testing.T) { TestingT(t) }

type DynamoSuite struct {
	client  *fakeDynamo
	backend *Backend
	suite   suite.StorageSuite
}

var _ = Suite(&DynamoSuite{})

func (s *DynamoSuite) SetUpTest(c *C) {
	s.client = newFakeDynamo()
	var err error
	s.backend, err = New(Config{
		TableName: "az-fail-away-test",
		Client:    s.client,
	})
	c.Assert(err, IsNil)
	s.suite.Backend = s.backend
}

func (s *DynamoSuite) TestRecordsCRUD(c *C) {
	s.suite.RecordsCRUD(c)
}

func (s *DynamoSuite) TestUpsertsEntries(c *C) {
	s.suite.UpsertsEntries(c)
}

func (s *DynamoSuite) TestRemovesAbsentEntries(c *C) {
	s.suite.RemovesAbsentEntries(c)
}

func (s *DynamoSuite) TestIsolatesRecords(c *C) {
	s.suite.IsolatesRecords(c)
}

func (s *DynamoSuite) TestConcurrentUpserts(c *C) {
	s.suite.ConcurrentUpserts(c)
}

func (s *DynamoSuite) TestRequiresTableName(c *C) {
	_, err := New(Config{Client: s.client})
	c.Assert(trace.IsBadParameter(err), Equals, true)
}

func (s *DynamoSuite) TestUsesConsistentReads(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")
	c.Assert(s.backend.CreateRecord(ctx, key), IsNil)
	_, err := s.backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	c.Assert(s.client.consistentReads, Equals, 1)
	c.Assert(s.client.tables, DeepEquals, map[string]bool{"az-fail-away-test": true})
}

func (s *DynamoSuite) TestStoresEventsAsJSON(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")
	c.Assert(s.backend.CreateRecord(ctx, key), IsNil)
	event := storage.UpdateAutoScalingGroupEvent{
		AvailabilityZones: []string{"us-east-2b"},
		SubnetIDs:         []string{"subnet-2"},
		Status:            storage.StatusSuccess,
		Details: storage.AutoScalingGroupDetails{
			Name:     "test-asg-01",
			ZoneName: "us-east-2a",
			OperationEvent: storage.OperationEvent{
				Operation: storage.OperationRemove,
				ZoneID:    "use2-az1",
				AccountID: "123456789012",
			},
		},
	}
	c.Assert(s.backend.UpsertEntry(ctx, key, event), IsNil)

	stored := s.client.items[key]["events"].M["test-asg-01"]
	c.Assert(stored, NotNil)
	decoded, err := storage.UnmarshalEvent(aws.StringValue(stored.S))
	c.Assert(err, IsNil)
	c.Assert(*decoded, DeepEquals, event)
}

func (s *DynamoSuite) TestCreatesRecordWithEmptyEventsMap(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")
	c.Assert(s.backend.CreateRecord(ctx, key), IsNil)

	events := s.client.items[key]["events"]
	c.Assert(events, NotNil)
	c.Assert(aws.BoolValue(events.NULL), Equals, false)
	c.Assert(events.M, NotNil)
	c.Assert(events.M, HasLen, 0)
	c.Assert(aws.StringValue(s.client.items[key]["pk"].S), Equals, key)

	record, err := s.backend.GetRecord(ctx, key)
	c.Assert(err, IsNil)
	c.Assert(record.Events, HasLen, 0)
}

func (s *DynamoSuite) TestUpsertIntoNullEventsIsRejected(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")
	s.client.items[key] = map[string]*dynamodb.AttributeValue{
		"pk":     {S: aws.String(key)},
		"events": {NULL: aws.Bool(true)},
	}
	err := s.backend.UpsertEntry(ctx, key, storage.UpdateAutoScalingGroupEvent{
		Status: storage.StatusSuccess,
		Details: storage.AutoScalingGroupDetails{
			Name: "test-asg-01",
			OperationEvent: storage.OperationEvent{
				ZoneID:    "use2-az1",
				AccountID: "123456789012",
			},
		},
	})
	c.Assert(err, NotNil)
}

func (s *DynamoSuite) TestConvertsErrors(c *C) {
	ctx := context.TODO()
	key := storage.RecordKey("123456789012", "use2-az1")

	s.client.err = awserr.New(dynamodb.ErrCodeProvisionedThroughputExceededException, "slow down", nil)
	_, err := s.backend.GetRecord(ctx, key)
	c.Assert(trace.IsLimitExceeded(err), Equals, true, Commentf("%v", err))

	s.client.err = awserr.New(dynamodb.ErrCodeResourceNotFoundException, "no table", nil)
	err = s.backend.CreateRecord(ctx, key)
	c.Assert(trace.IsNotFound(err), Equals, true, Commentf("%v", err))

	s.client.err = awserr.New("AccessDeniedException", "denied", nil)
	err = s.backend.UpsertEntry(ctx, key, storage.UpdateAutoScalingGroupEvent{
		Details: storage.AutoScalingGroupDetails{
			Name: "test-asg-01",
			OperationEvent: storage.OperationEvent{
				ZoneID:    "use2-az1",
				AccountID: "123456789012",
			},
		},
	})
	c.Assert(trace.IsAccessDenied(err), Equals, true, Commentf("%v", err))
}

// fakeDynamo is an in-memory DynamoDB table that understands
// the expressions issued by Backend
type fakeDynamo struct {
	sync.Mutex
	items           map[string]map[string]*dynamodb.AttributeValue
	tables          map[string]bool
	consistentReads int
	err             error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		items:  make(map[string]map[string]*dynamodb.AttributeValue),
		tables: make(map[string]bool),
	}
}

func (f *fakeDynamo) GetItemWithContext(ctx aws.Context, input *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tables[aws.StringValue(input.TableName)] = true
	if aws.BoolValue(input.ConsistentRead) {
		f.consistentReads++
	}
	item, ok := f.items[aws.StringValue(input.Key["pk"].S)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tables[aws.StringValue(input.TableName)] = true
	key := aws.StringValue(input.Item["pk"].S)
	if existing, ok := f.items[key]; ok && aws.StringValue(input.ConditionExpression) == "attribute_not_exists(#events)" {
		if _, ok := existing[aws.StringValue(input.ExpressionAttributeNames["#events"])]; ok {
			return nil, conditionalCheckFailed()
		}
	}
	f.items[key] = copyItem(input.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItemWithContext(ctx aws.Context, input *dynamodb.UpdateItemInput, opts ...request.Option) (*dynamodb.UpdateItemOutput, error) {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tables[aws.StringValue(input.TableName)] = true
	key := aws.StringValue(input.Key["pk"].S)
	attr := aws.StringValue(input.ExpressionAttributeNames["#events"])
	name := aws.StringValue(input.ExpressionAttributeNames["#asg"])
	item, ok := f.items[key]
	if !ok || item[attr] == nil {
		return nil, conditionalCheckFailed()
	}
	if item[attr].M == nil {
		return nil, awserr.New("ValidationException",
			"The document path provided in the update expression is invalid for update", nil)
	}
	expr := aws.StringValue(input.UpdateExpression)
	switch {
	case strings.HasPrefix(expr, "SET "):
		item[attr].M[name] = input.ExpressionAttributeValues[":event"]
	case strings.HasPrefix(expr, "REMOVE "):
		delete(item[attr].M, name)
	default:
		return nil, awserr.New("ValidationException", "unsupported expression "+expr, nil)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func conditionalCheckFailed() error {
	return awserr.New(dynamodb.ErrCodeConditionalCheckFailedException, "The conditional request failed", nil)
}

func copyItem(item map[string]*dynamodb.AttributeValue) map[string]*dynamodb.AttributeValue {
	out := make(map[string]*dynamodb.AttributeValue, len(item))
	for k, v := range item {
		value := *v
		if v.M != nil {
			value.M = copyItem(v.M)
		}
		out[k] = &value
	}
	return out
}
