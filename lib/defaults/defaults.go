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

package defaults

import (
	"time"
)

const (
	// MaxConcurrentMutations is the maximum number of auto scaling group
	// updates in flight for a single operation execution.
	// It acts as a bulkhead against AWS API throttling
	MaxConcurrentMutations = 3

	// CallTimeout bounds every individual AWS API call
	CallTimeout = 30 * time.Second

	// DescribePageSize is the page size used when listing auto scaling groups
	DescribePageSize = 100

	// RetryTimeout is the maximum amount of time read-only AWS calls are retried
	// on throttling and transient errors
	RetryTimeout = 1 * time.Minute

	// RetryInitialInterval is the first retry interval for read-only AWS calls
	RetryInitialInterval = 500 * time.Millisecond

	// RecordKeySeparator separates account ID and zone ID in recovery record keys
	RecordKeySeparator = "::"

	// TableName is the default name of the DynamoDB table with recovery records
	TableName = "az-fail-away"

	// TablePartitionKey is the name of the partition key attribute of the recovery table
	TablePartitionKey = "pk"

	// TableEventsAttribute is the name of the map attribute holding
	// per-ASG events in a recovery record
	TableEventsAttribute = "events"

	// VPCZoneIdentifierSeparator separates subnet IDs in an ASG VPC zone identifier
	VPCZoneIdentifierSeparator = ","

	// BackendDynamoDB names the DynamoDB recovery store backend
	BackendDynamoDB = "dynamodb"

	// BackendBolt names the local BoltDB recovery store backend
	BackendBolt = "bolt"

	// Backend is the default recovery store backend
	Backend = BackendDynamoDB

	// BoltPath is the default location of the local BoltDB recovery store
	BoltPath = "/var/lib/azfailaway/recovery.db"

	// DBOpenTimeout is a default timeout for opening the DB
	DBOpenTimeout = 30 * time.Second

	// PrivateFileMask is a mask for private files
	PrivateFileMask = 0600

	// SharedDirMask is a mask for shared directories
	SharedDirMask = 0755

	// ConfigFile is the default location of the configuration file
	ConfigFile = "/etc/azfailaway/azfailaway.yaml"

	// MetricsNamespace prefixes all exported prometheus metrics
	MetricsNamespace = "azfailaway"

	// RegionEnv is the environment variable with the AWS region
	RegionEnv = "AWS_REGION"

	// DefaultRegionEnv is the fallback environment variable with the AWS region
	DefaultRegionEnv = "AWS_DEFAULT_REGION"
)

const (
	// QueueWaitTime is the long polling interval when receiving operation requests
	QueueWaitTime = 20 * time.Second

	// QueueVisibilityTimeout hides a received operation request from other
	// consumers while it is being executed
	QueueVisibilityTimeout = 15 * time.Minute

	// QueueRetryInterval is the pause after a failed attempt to receive messages
	QueueRetryInterval = 5 * time.Second
)

const (
	// MaxValidationConcurrency limits the number of permission probes in flight
	MaxValidationConcurrency = 5

	// PolicyVersion is the IAM policy language version used for generated policies
	PolicyVersion = "2012-10-17"
)
