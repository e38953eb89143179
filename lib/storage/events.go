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

package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

// Operation identifies the kind of fail-away operation
type Operation string

const (
	// OperationRemove removes a zone from all auto scaling groups using it
	OperationRemove Operation = "Remove"
	// OperationRestore restores a previously removed zone
	OperationRestore Operation = "Restore"
)

// ParseOperation parses the operation from the specified string.
// Only the exact values Remove and Restore are accepted
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if err := op.Check(); err != nil {
		return "", trace.Wrap(err)
	}
	return op, nil
}

// Check makes sure this operation is one of the supported values
func (r Operation) Check() error {
	switch r {
	case OperationRemove, OperationRestore:
		return nil
	case "":
		return trace.BadParameter("missing operation, expected one of %v or %v",
			OperationRemove, OperationRestore)
	default:
		return trace.BadParameter("unsupported operation %q, expected one of %v or %v",
			string(r), OperationRemove, OperationRestore)
	}
}

// UnmarshalJSON rejects unsupported operation values
func (r *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return trace.Wrap(err)
	}
	op, err := ParseOperation(s)
	if err != nil {
		return trace.Wrap(err)
	}
	*r = op
	return nil
}

// Status is the outcome of a mutation or a store write
type Status string

const (
	// StatusSuccess indicates a successful step
	StatusSuccess Status = "Success"
	// StatusFailed indicates a failed step
	StatusFailed Status = "Failed"
)

// IsSuccess returns true if this status indicates success
func (r Status) IsSuccess() bool {
	return r == StatusSuccess
}

// OperationEvent requests a fail-away operation for a single zone.
// Together, account and zone ID identify the operation; the timestamp is informational
type OperationEvent struct {
	// Operation is the operation to perform
	Operation Operation `json:"operation"`
	// ZoneID is the provider zone identifier, e.g. use2-az1
	ZoneID string `json:"zoneId"`
	// Region is the region of the zone
	Region string `json:"region,omitempty"`
	// AccountID is the account that owns the auto scaling groups
	AccountID string `json:"accountId,omitempty"`
	// Timestamp is the request time in milliseconds since epoch
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Environment describes the execution context an operation event is
// triggered in and supplies defaults for missing event attributes
type Environment struct {
	// AccountID is the account the process is running with
	AccountID string
	// Region is the region the process is running in
	Region string
	// Clock provides the request timestamp
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates this event and fills in missing
// account, region and timestamp from the specified environment
func (r *OperationEvent) CheckAndSetDefaults(env Environment) error {
	if err := r.Operation.Check(); err != nil {
		return trace.Wrap(err)
	}
	if r.ZoneID == "" {
		return trace.BadParameter("missing parameter zoneId")
	}
	if r.AccountID == "" {
		r.AccountID = env.AccountID
	}
	if r.Region == "" {
		r.Region = env.Region
	}
	if r.AccountID == "" {
		return trace.BadParameter("missing parameter accountId and no account could be detected")
	}
	if r.Region == "" {
		return trace.BadParameter("missing parameter region and no region could be detected")
	}
	if r.Timestamp == 0 {
		clock := env.Clock
		if clock == nil {
			clock = clockwork.NewRealClock()
		}
		r.Timestamp = clock.Now().UnixNano() / int64(time.Millisecond)
	}
	return nil
}

// Key returns the key of the recovery record for this event
func (r OperationEvent) Key() string {
	return RecordKey(r.AccountID, r.ZoneID)
}

// Time returns the event timestamp as time
func (r OperationEvent) Time() time.Time {
	return time.Unix(0, r.Timestamp*int64(time.Millisecond)).UTC()
}

// String returns a string representation of this event
func (r OperationEvent) String() string {
	return fmt.Sprintf("OperationEvent(%v, zone=%v, region=%v, account=%v)",
		r.Operation, r.ZoneID, r.Region, r.AccountID)
}

// AutoScalingGroupDetails is a snapshot of the zone configuration
// of a single auto scaling group
type AutoScalingGroupDetails struct {
	// Name is the auto scaling group name
	Name string `json:"autoScalingGroupName"`
	// ARN is the auto scaling group ARN
	ARN string `json:"autoScalingGroupARN,omitempty"`
	// ZoneName is the name of the zone the operation applies to, e.g. us-east-2a
	ZoneName string `json:"zoneName"`
	// SubnetIDs lists subnets from the group's VPC zone identifier
	SubnetIDs []string `json:"subnetIds,omitempty"`
	// AvailabilityZones lists the group's availability zones
	AvailabilityZones []string `json:"availabilityZones,omitempty"`
	// OperationEvent is the operation that produced this snapshot
	OperationEvent OperationEvent `json:"operationEvent"`
}

// String returns a string representation of these details
func (r AutoScalingGroupDetails) String() string {
	return fmt.Sprintf("AutoScalingGroup(%v, zone=%v, zones=%v, subnets=%v)",
		r.Name, r.ZoneName, r.AvailabilityZones, r.SubnetIDs)
}

// UpdateAutoScalingGroupEvent is the outcome of a zone mutation
// of a single auto scaling group
type UpdateAutoScalingGroupEvent struct {
	// AvailabilityZones lists the zones the group was updated with
	AvailabilityZones []string `json:"availabilityZones"`
	// SubnetIDs lists the subnets the group was updated with
	SubnetIDs []string `json:"subnetIds"`
	// Status is the mutation status
	Status Status `json:"status"`
	// Details is the configuration snapshot the mutation was computed from
	Details AutoScalingGroupDetails `json:"details"`
}

// Key returns the key of the recovery record this event belongs to
func (r UpdateAutoScalingGroupEvent) Key() string {
	return r.Details.OperationEvent.Key()
}

// Check makes sure this event can be stored
func (r UpdateAutoScalingGroupEvent) Check() error {
	if r.Details.Name == "" {
		return trace.BadParameter("missing auto scaling group name")
	}
	if r.Details.OperationEvent.AccountID == "" || r.Details.OperationEvent.ZoneID == "" {
		return trace.BadParameter("missing account or zone of auto scaling group %v", r.Details.Name)
	}
	return nil
}

// String returns a string representation of this event
func (r UpdateAutoScalingGroupEvent) String() string {
	return fmt.Sprintf("UpdateAutoScalingGroupEvent(%v, status=%v, zones=%v, subnets=%v)",
		r.Details.Name, r.Status, r.AvailabilityZones, r.SubnetIDs)
}

// MarshalEvent serializes the specified event into its stored representation
func MarshalEvent(event UpdateAutoScalingGroupEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", trace.Wrap(err)
	}
	return string(data), nil
}

// UnmarshalEvent decodes an event from its stored representation
func UnmarshalEvent(data string) (*UpdateAutoScalingGroupEvent, error) {
	var event UpdateAutoScalingGroupEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, trace.Wrap(err, "failed to decode stored event")
	}
	return &event, nil
}

// SaveAzInfo is the outcome of a recovery store write
type SaveAzInfo struct {
	// Status is the write status
	Status Status `json:"status"`
	// Event is the event that was written
	Event UpdateAutoScalingGroupEvent `json:"event"`
}
