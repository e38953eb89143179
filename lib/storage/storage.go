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

// Package storage defines the fail-away data model and the storage
// backend interface for recovery records.
// Backend implementations are supposed to be dumb - no business logic,
// just storage logic, to keep them small.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gravitational/azfailaway/lib/defaults"

	"github.com/gravitational/trace"
)

// Backend stores recovery records.
//
// A recovery record is keyed by account and zone (see RecordKey) and maps
// auto scaling group names to the last successfully applied zone removal.
// Every method must be safe for concurrent use from multiple goroutines
// operating on the same record.
type Backend interface {
	// GetRecord returns the recovery record for the specified key
	// using a strongly consistent read.
	// Returns trace.NotFound if the record does not exist
	GetRecord(ctx context.Context, key string) (*RecoveryRecord, error)
	// CreateRecord creates an empty recovery record with the specified key.
	// Returns trace.AlreadyExists if the record already exists
	CreateRecord(ctx context.Context, key string) error
	// UpsertEntry creates or replaces the entry for the specified auto scaling
	// group in the record with the specified key
	UpsertEntry(ctx context.Context, key string, event UpdateAutoScalingGroupEvent) error
	// RemoveEntry removes the entry for the specified auto scaling group
	// from the record with the specified key.
	// Removing an absent entry is not an error
	RemoveEntry(ctx context.Context, key, asgName string) error
	// Close releases the resources held by this backend
	Close() error
}

// RecoveryRecord lists auto scaling groups modified by a zone removal
// for a particular account and zone
type RecoveryRecord struct {
	// Key is the record key, see RecordKey
	Key string `json:"pk"`
	// Events maps auto scaling group name to the most recently
	// recorded update event for that group
	Events map[string]UpdateAutoScalingGroupEvent `json:"events"`
}

// Names returns the names of the auto scaling groups in this record in sorted order
func (r RecoveryRecord) Names() []string {
	names := make([]string, 0, len(r.Events))
	for name := range r.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns a string representation of this record
func (r RecoveryRecord) String() string {
	return fmt.Sprintf("RecoveryRecord(key=%v, groups=%v)", r.Key, r.Names())
}

// RecordKey returns the key of the recovery record for the specified account and zone
func RecordKey(accountID, zoneID string) string {
	return fmt.Sprintf("%v%v%v", accountID, defaults.RecordKeySeparator, zoneID)
}

// ParseRecordKey splits the specified record key into account ID and zone ID
func ParseRecordKey(key string) (accountID, zoneID string, err error) {
	parts := strings.SplitN(key, defaults.RecordKeySeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", trace.BadParameter("invalid record key %q, expected <account>%v<zone>",
			key, defaults.RecordKeySeparator)
	}
	return parts[0], parts[1], nil
}
