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

// Package recovery implements the event-sourced recovery store.
//
// The store remembers every auto scaling group a successful zone removal
// was applied to, so that a later restore can reverse it, and forgets
// the group once the zone has been restored.
package recovery

import (
	"context"

	"github.com/gravitational/azfailaway/lib/ops/monitoring"
	"github.com/gravitational/azfailaway/lib/storage"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// Config configures the recovery store
type Config struct {
	// Backend persists recovery records
	Backend storage.Backend
	// Metrics optionally counts store writes
	Metrics *monitoring.Metrics
	// FieldLogger is used for logging
	logrus.FieldLogger
}

// CheckAndSetDefaults validates this configuration and sets defaults
func (c *Config) CheckAndSetDefaults() error {
	if c.Backend == nil {
		return trace.BadParameter("missing Backend")
	}
	if c.FieldLogger == nil {
		c.FieldLogger = logrus.WithField(trace.Component, "recovery")
	}
	return nil
}

// New returns a new recovery store
func New(config Config) (*Store, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Store{Config: config}, nil
}

// Store records and forgets zone mutations of auto scaling groups
type Store struct {
	// Config is the store configuration
	Config
}

// Record remembers the successful zone removal described by event.
//
// A failed mutation is never remembered: the result is Failed and storage
// is not touched. Otherwise the zone record is created if absent and the
// group's entry is upserted; both steps are safe to repeat and to race
// with writers of other groups in the same record.
// Storage errors of the upsert are reported as a Failed result, while
// unexpected errors of the record creation are returned
func (s *Store) Record(ctx context.Context, event storage.UpdateAutoScalingGroupEvent) (*storage.SaveAzInfo, error) {
	logger := s.WithFields(logrus.Fields{
		"asg": event.Details.Name,
		"key": event.Key(),
	})
	if !event.Status.IsSuccess() {
		logger.Info("Mutation failed, will not record.")
		return &storage.SaveAzInfo{Status: storage.StatusFailed, Event: event}, nil
	}
	if err := event.Check(); err != nil {
		return nil, trace.Wrap(err)
	}
	key := event.Key()
	err := s.Backend.CreateRecord(ctx, key)
	if err != nil && !trace.IsAlreadyExists(err) {
		s.Metrics.ObserveStoreWrite(string(storage.OperationRemove), string(storage.StatusFailed))
		return nil, trace.Wrap(err, "failed to create recovery record %v", key)
	}
	if err := s.Backend.UpsertEntry(ctx, key, event); err != nil {
		logger.WithError(err).Warn("Failed to record zone removal.")
		logger.Debug(trace.DebugReport(err))
		return s.result(storage.OperationRemove, storage.StatusFailed, event), nil
	}
	logger.Info("Recorded zone removal.")
	return s.result(storage.OperationRemove, storage.StatusSuccess, event), nil
}

// Forget removes the entry of the group restored by event from the zone record.
//
// A failed mutation is never forgotten. Removing an absent entry succeeds.
// Storage errors are reported as a Failed result
func (s *Store) Forget(ctx context.Context, event storage.UpdateAutoScalingGroupEvent) (*storage.SaveAzInfo, error) {
	logger := s.WithFields(logrus.Fields{
		"asg": event.Details.Name,
		"key": event.Key(),
	})
	if !event.Status.IsSuccess() {
		logger.Info("Mutation failed, will not forget.")
		return &storage.SaveAzInfo{Status: storage.StatusFailed, Event: event}, nil
	}
	if err := event.Check(); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.Backend.RemoveEntry(ctx, event.Key(), event.Details.Name); err != nil {
		logger.WithError(err).Warn("Failed to forget zone removal.")
		logger.Debug(trace.DebugReport(err))
		return s.result(storage.OperationRestore, storage.StatusFailed, event), nil
	}
	logger.Info("Forgot zone removal.")
	return s.result(storage.OperationRestore, storage.StatusSuccess, event), nil
}

// Get returns the recovery record for the specified account and zone.
// Returns trace.NotFound if there is none
func (s *Store) Get(ctx context.Context, accountID, zoneID string) (*storage.RecoveryRecord, error) {
	record, err := s.Backend.GetRecord(ctx, storage.RecordKey(accountID, zoneID))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return record, nil
}

func (s *Store) result(op storage.Operation, status storage.Status, event storage.UpdateAutoScalingGroupEvent) *storage.SaveAzInfo {
	s.Metrics.ObserveStoreWrite(string(op), string(status))
	return &storage.SaveAzInfo{
		Status: status,
		Event:  event,
	}
}
