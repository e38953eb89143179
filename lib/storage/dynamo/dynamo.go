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

// Package dynamo implements the recovery record backend on top of an AWS DynamoDB table.
//
// Every recovery record is a single item keyed by the partition key attribute
// with a map attribute holding the JSON-encoded update event per auto scaling group.
// Per-group entries are written with attribute paths so concurrent writers
// of different groups never overwrite each other.
package dynamo

import (
	"context"
	"time"

	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/storage"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// DynamoDB is the subset of the DynamoDB API used by the backend
type DynamoDB interface {
	// GetItemWithContext returns a single item
	GetItemWithContext(aws.Context, *dynamodb.GetItemInput, ...request.Option) (*dynamodb.GetItemOutput, error)
	// PutItemWithContext creates or replaces an item
	PutItemWithContext(aws.Context, *dynamodb.PutItemInput, ...request.Option) (*dynamodb.PutItemOutput, error)
	// UpdateItemWithContext updates item attributes
	UpdateItemWithContext(aws.Context, *dynamodb.UpdateItemInput, ...request.Option) (*dynamodb.UpdateItemOutput, error)
}

// Config configures the DynamoDB backend
type Config struct {
	// TableName is the name of the table with recovery records
	TableName string
	// Client is the DynamoDB API client
	Client DynamoDB
	// CallTimeout bounds every individual API call
	CallTimeout time.Duration
	// FieldLogger is used for logging
	logrus.FieldLogger
}

// CheckAndSetDefaults validates this configuration and sets defaults
func (c *Config) CheckAndSetDefaults() error {
	if c.TableName == "" {
		return trace.BadParameter("missing TableName")
	}
	if c.Client == nil {
		return trace.BadParameter("missing Client")
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = defaults.CallTimeout
	}
	if c.FieldLogger == nil {
		c.FieldLogger = logrus.WithFields(logrus.Fields{
			trace.Component: "dynamodb",
			"table":         c.TableName,
		})
	}
	return nil
}

// New returns a new DynamoDB backend
func New(config Config) (*Backend, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Backend{Config: config}, nil
}

// Backend stores recovery records in a DynamoDB table
type Backend struct {
	// Config is the backend configuration
	Config
}

// GetRecord returns the recovery record with the specified key using a strongly consistent read
func (b *Backend) GetRecord(ctx context.Context, key string) (*storage.RecoveryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, b.CallTimeout)
	defer cancel()
	out, err := b.Client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.TableName),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, trace.Wrap(ConvertError(err))
	}
	if len(out.Item) == 0 {
		return nil, trace.NotFound("recovery record %v not found", key)
	}
	var rec item
	if err := dynamodbattribute.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, trace.Wrap(err, "failed to decode recovery record %v", key)
	}
	record := storage.RecoveryRecord{
		Key:    key,
		Events: make(map[string]storage.UpdateAutoScalingGroupEvent, len(rec.Events)),
	}
	for name, data := range rec.Events {
		event, err := storage.UnmarshalEvent(data)
		if err != nil {
			return nil, trace.Wrap(err, "invalid entry %v in record %v", name, key)
		}
		record.Events[name] = *event
	}
	return &record, nil
}

// CreateRecord creates an empty recovery record.
// Returns trace.AlreadyExists if the record already has the events attribute
func (b *Backend) CreateRecord(ctx context.Context, key string) error {
	// events must be stored as an empty map, not NULL, for the nested
	// SET in UpsertEntry to find a valid document path
	attrs := itemKey(key)
	attrs[defaults.TableEventsAttribute] = &dynamodb.AttributeValue{
		M: map[string]*dynamodb.AttributeValue{},
	}
	ctx, cancel := context.WithTimeout(ctx, b.CallTimeout)
	defer cancel()
	_, err := b.Client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(b.TableName),
		Item:                attrs,
		ConditionExpression: aws.String("attribute_not_exists(#events)"),
		ExpressionAttributeNames: map[string]*string{
			"#events": aws.String(defaults.TableEventsAttribute),
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return trace.AlreadyExists("recovery record %v already exists", key)
		}
		return trace.Wrap(ConvertError(err))
	}
	b.WithField("key", key).Debug("Created recovery record.")
	return nil
}

// UpsertEntry sets the entry of the event's auto scaling group in the record.
// Returns trace.NotFound if the record does not exist
func (b *Backend) UpsertEntry(ctx context.Context, key string, event storage.UpdateAutoScalingGroupEvent) error {
	if err := event.Check(); err != nil {
		return trace.Wrap(err)
	}
	data, err := storage.MarshalEvent(event)
	if err != nil {
		return trace.Wrap(err)
	}
	ctx, cancel := context.WithTimeout(ctx, b.CallTimeout)
	defer cancel()
	_, err = b.Client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.TableName),
		Key:                 itemKey(key),
		UpdateExpression:    aws.String("SET #events.#asg = :event"),
		ConditionExpression: aws.String("attribute_exists(#events)"),
		ExpressionAttributeNames: map[string]*string{
			"#events": aws.String(defaults.TableEventsAttribute),
			"#asg":    aws.String(event.Details.Name),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":event": {S: aws.String(data)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return trace.NotFound("recovery record %v not found", key)
		}
		return trace.Wrap(ConvertError(err))
	}
	return nil
}

// RemoveEntry removes the entry of the specified auto scaling group.
// Removing an entry from a missing record is a no-op
func (b *Backend) RemoveEntry(ctx context.Context, key, asgName string) error {
	if asgName == "" {
		return trace.BadParameter("missing auto scaling group name")
	}
	ctx, cancel := context.WithTimeout(ctx, b.CallTimeout)
	defer cancel()
	_, err := b.Client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.TableName),
		Key:                 itemKey(key),
		UpdateExpression:    aws.String("REMOVE #events.#asg"),
		ConditionExpression: aws.String("attribute_exists(#events)"),
		ExpressionAttributeNames: map[string]*string{
			"#events": aws.String(defaults.TableEventsAttribute),
			"#asg":    aws.String(asgName),
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil
		}
		return trace.Wrap(ConvertError(err))
	}
	return nil
}

// Close is a no-op for this backend
func (b *Backend) Close() error {
	return nil
}

// ConvertError converts errors specific to DynamoDB to trace-compatible error
func ConvertError(err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	awsErr, ok := err.(awserr.Error)
	if !ok {
		return err
	}
	switch awsErr.Code() {
	case dynamodb.ErrCodeConditionalCheckFailedException:
		return trace.CompareFailed(awsErr.Error(), args...)
	case dynamodb.ErrCodeResourceNotFoundException:
		return trace.NotFound(awsErr.Error(), args...)
	case dynamodb.ErrCodeProvisionedThroughputExceededException,
		dynamodb.ErrCodeRequestLimitExceeded, "ThrottlingException":
		return trace.LimitExceeded(awsErr.Error(), args...)
	case "AccessDeniedException":
		return trace.AccessDenied(awsErr.Error(), args...)
	case request.CanceledErrorCode:
		return trace.ConnectionProblem(awsErr, awsErr.Error(), args...)
	}
	return err
}

func isConditionalCheckFailed(err error) bool {
	awsErr, ok := err.(awserr.Error)
	return ok && awsErr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func itemKey(key string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		defaults.TablePartitionKey: {S: aws.String(key)},
	}
}

// item is the stored representation of a recovery record.
// Events are stored as JSON strings
type item struct {
	Key    string            `dynamodbav:"pk"`
	Events map[string]string `dynamodbav:"events"`
}
