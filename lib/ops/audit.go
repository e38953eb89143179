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
	"fmt"

	"github.com/gravitational/azfailaway/lib/autoscale/aws"
	"github.com/gravitational/azfailaway/lib/storage"
	"github.com/gravitational/azfailaway/lib/utils"

	awsapi "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// GroupDescriber returns the live configuration of auto scaling groups
type GroupDescriber interface {
	// DescribeGroup returns the group with the specified name.
	// Returns trace.NotFound if the group does not exist
	DescribeGroup(ctx context.Context, name string) (*autoscaling.Group, error)
}

// AuditConfig is the auditor configuration
type AuditConfig struct {
	// Records reads recovery records
	Records aws.RecordReader
	// Groups describes live groups
	Groups GroupDescriber
	// FieldLogger is used for logging
	logrus.FieldLogger
}

// CheckAndSetDefaults validates the configuration and sets defaults
func (c *AuditConfig) CheckAndSetDefaults() error {
	if c.Records == nil {
		return trace.BadParameter("missing Records")
	}
	if c.Groups == nil {
		return trace.BadParameter("missing Groups")
	}
	if c.FieldLogger == nil {
		c.FieldLogger = logrus.WithField(trace.Component, "audit")
	}
	return nil
}

// NewAuditor returns a new auditor
func NewAuditor(config AuditConfig) (*Auditor, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Auditor{AuditConfig: config}, nil
}

// Auditor compares recovery records with the live configuration of the
// recorded groups. It only reports and never changes anything
type Auditor struct {
	AuditConfig
}

// Drift classifies a recorded group
type Drift string

const (
	// DriftConsistent means the group still has the zones it was updated with
	DriftConsistent Drift = "Consistent"
	// DriftMissing means the group no longer exists
	DriftMissing Drift = "Missing"
	// DriftAlreadyRestored means the group uses the removed zone again
	// although the removal is still recorded
	DriftAlreadyRestored Drift = "AlreadyRestored"
	// DriftModified means the zones of the group have changed since the removal
	DriftModified Drift = "Modified"
)

// AuditEntry is the audit result of a single recorded group
type AuditEntry struct {
	// ASG is the group name
	ASG string `json:"asg"`
	// ZoneName is the removed zone
	ZoneName string `json:"zoneName"`
	// Drift classifies the group
	Drift Drift `json:"drift"`
	// Recorded lists the zones the group was updated with
	Recorded []string `json:"recorded"`
	// Live lists the current zones of the group
	Live []string `json:"live,omitempty"`
}

// String returns a string representation of this entry
func (r AuditEntry) String() string {
	return fmt.Sprintf("AuditEntry(%v, %v, recorded=%v, live=%v)", r.ASG, r.Drift, r.Recorded, r.Live)
}

// Audit reports the drift of every group recorded for the specified account
// and zone. Entries are returned in group name order.
// Returns trace.NotFound if there is no record
func (a *Auditor) Audit(ctx context.Context, accountID, zoneID string) ([]AuditEntry, error) {
	record, err := a.Records.Get(ctx, accountID, zoneID)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	entries := make([]AuditEntry, 0, len(record.Events))
	for _, name := range record.Names() {
		event := record.Events[name]
		entry := AuditEntry{
			ASG:      name,
			ZoneName: event.Details.ZoneName,
			Recorded: event.AvailabilityZones,
		}
		group, err := a.Groups.DescribeGroup(ctx, name)
		if err != nil && !trace.IsNotFound(err) {
			return nil, trace.Wrap(err)
		}
		if err != nil {
			entry.Drift = DriftMissing
		} else {
			entry.Live = awsapi.StringValueSlice(group.AvailabilityZones)
			entry.Drift = classifyDrift(event, entry.Live)
		}
		a.WithFields(logrus.Fields{
			"asg":   name,
			"drift": entry.Drift,
		}).Debug("Audited group.")
		entries = append(entries, entry)
	}
	return entries, nil
}

func classifyDrift(event storage.UpdateAutoScalingGroupEvent, live []string) Drift {
	if utils.StringInSlice(live, event.Details.ZoneName) {
		return DriftAlreadyRestored
	}
	if utils.NewStringSetFromSlice(live).Equals(utils.NewStringSetFromSlice(event.AvailabilityZones)) {
		return DriftConsistent
	}
	return DriftModified
}
