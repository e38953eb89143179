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
	"fmt"

	"github.com/gravitational/azfailaway/lib/defaults"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/gravitational/trace"
)

// AllProbes lists probes for every action the fail-away operations use
var AllProbes = Probes{
	{Action{EC2, "DescribeAvailabilityZones"}, validateDescribeAvailabilityZones},
	{Action{EC2, "DescribeSubnets"}, validateDescribeSubnets},
	{Action{AutoScaling, "DescribeAutoScalingGroups"}, validateDescribeAutoScalingGroups},
	{Action{AutoScaling, "UpdateAutoScalingGroup"}, validateUpdateAutoScalingGroup},
	{Action{DynamoDB, "GetItem"}, validateGetItem},
	{Action{DynamoDB, "PutItem"}, validatePutItem},
	{Action{DynamoDB, "UpdateItem"}, validateUpdateItem},
}

// dryRun turns on dry run operation for the EC2 API calls
var dryRun = aws.Bool(true)

func validateDescribeAvailabilityZones(ctx context.Context, clients *Clients) error {
	_, err := clients.EC2.DescribeAvailabilityZonesWithContext(ctx, &ec2.DescribeAvailabilityZonesInput{
		DryRun: dryRun,
	})
	return trace.Wrap(err)
}

func validateDescribeSubnets(ctx context.Context, clients *Clients) error {
	_, err := clients.EC2.DescribeSubnetsWithContext(ctx, &ec2.DescribeSubnetsInput{
		DryRun: dryRun,
	})
	return trace.Wrap(err)
}

func validateDescribeAutoScalingGroups(ctx context.Context, clients *Clients) error {
	_, err := clients.AutoScaling.DescribeAutoScalingGroupsWithContext(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		MaxRecords: aws.Int64(1),
	})
	return trace.Wrap(err)
}

// validateUpdateAutoScalingGroup updates a group that does not exist.
// The API answers with a validation error once the caller is authorized
func validateUpdateAutoScalingGroup(ctx context.Context, clients *Clients) error {
	_, err := clients.AutoScaling.UpdateAutoScalingGroupWithContext(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: dummyValue("azfailaway-probe-"),
	})
	return trace.Wrap(err)
}

func validateGetItem(ctx context.Context, clients *Clients) error {
	_, err := clients.DynamoDB.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(clients.TableName),
		Key:       probeKey(),
	})
	return trace.Wrap(err)
}

// validatePutItem writes an item on condition that it exists which never holds
// for a random key
func validatePutItem(ctx context.Context, clients *Clients) error {
	_, err := clients.DynamoDB.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(clients.TableName),
		Item:                probeKey(),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]*string{
			"#pk": aws.String(defaults.TablePartitionKey),
		},
	})
	return trace.Wrap(err)
}

func validateUpdateItem(ctx context.Context, clients *Clients) error {
	_, err := clients.DynamoDB.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(clients.TableName),
		Key:                 probeKey(),
		UpdateExpression:    aws.String("REMOVE #events"),
		ConditionExpression: aws.String("attribute_exists(#events)"),
		ExpressionAttributeNames: map[string]*string{
			"#events": aws.String(defaults.TableEventsAttribute),
		},
	})
	return trace.Wrap(err)
}

// probeKey returns the key of a recovery record that does not exist
func probeKey() map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		defaults.TablePartitionKey: {
			S: aws.String(fmt.Sprintf("probe%v%v", defaults.RecordKeySeparator, aws.StringValue(dummyValue("az")))),
		},
	}
}
