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

// Package ops executes fail-away operations.
//
// An execution discovers the auto scaling groups affected by an operation,
// fans out a branch per group with bounded concurrency and aggregates the
// branch outcomes. Every branch mutates its group first and writes the
// recovery store only after the mutation succeeded.
package ops

import (
	"context"
	"io"
	"time"

	"github.com/gravitational/azfailaway/lib/autoscale/aws"
	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/ops/monitoring"
	"github.com/gravitational/azfailaway/lib/run"
	"github.com/gravitational/azfailaway/lib/storage"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
)

// Discoverer finds the auto scaling groups affected by an operation
type Discoverer interface {
	// Discover returns the groups affected by the specified operation
	Discover(ctx context.Context, event storage.OperationEvent) (aws.Source, error)
}

// Mutator updates the zones of auto scaling groups.
// Mutation failures are reported as events with the Failed status
type Mutator interface {
	// RemoveZone removes the zone from the specified group
	RemoveZone(ctx context.Context, details storage.AutoScalingGroupDetails) (*storage.UpdateAutoScalingGroupEvent, error)
	// RestoreZone adds the zone back to the specified group
	RestoreZone(ctx context.Context, details storage.AutoScalingGroupDetails) (*storage.UpdateAutoScalingGroupEvent, error)
}

// Store remembers which auto scaling groups had a zone removed
type Store interface {
	// Record remembers the successful removal described by event
	Record(ctx context.Context, event storage.UpdateAutoScalingGroupEvent) (*storage.SaveAzInfo, error)
	// Forget discards the removal of the group restored by event
	Forget(ctx context.Context, event storage.UpdateAutoScalingGroupEvent) (*storage.SaveAzInfo, error)
}

// Config is the operator configuration
type Config struct {
	// Discoverer finds affected groups
	Discoverer Discoverer
	// Mutator updates groups
	Mutator Mutator
	// Store is the recovery store
	Store Store
	// Parallel caps the number of branches in flight
	Parallel int
	// Metrics optionally counts executions
	Metrics *monitoring.Metrics
	// Clock provides execution timestamps
	Clock clockwork.Clock
	// FieldLogger is used for logging
	logrus.FieldLogger
}

// CheckAndSetDefaults validates the configuration and sets defaults
func (c *Config) CheckAndSetDefaults() error {
	if c.Discoverer == nil {
		return trace.BadParameter("missing Discoverer")
	}
	if c.Mutator == nil {
		return trace.BadParameter("missing Mutator")
	}
	if c.Store == nil {
		return trace.BadParameter("missing Store")
	}
	if c.Parallel < 0 {
		return trace.BadParameter("Parallel must not be negative")
	}
	if c.Parallel == 0 {
		c.Parallel = defaults.MaxConcurrentMutations
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.FieldLogger == nil {
		c.FieldLogger = logrus.WithField(trace.Component, "operator")
	}
	return nil
}

// New returns a new operator
func New(config Config) (*Operator, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Operator{Config: config}, nil
}

// Operator executes fail-away operations
type Operator struct {
	// Config is the operator configuration
	Config
}

// Execute runs the operation described by event to completion.
//
// The returned execution is never nil and reflects every dispatched branch.
// Once a branch fails, no further branches are dispatched while branches
// already in flight run to completion. The error is not nil if the execution
// was aborted: the zone did not resolve, discovery failed, a group could not
// lose its last zone or the recovery store failed
func (o *Operator) Execute(ctx context.Context, event storage.OperationEvent) (*Execution, error) {
	exec := &Execution{
		ID:      uuid.New(),
		Event:   event,
		State:   ExecutionRunning,
		Started: o.Clock.Now().UTC(),
	}
	logger := o.WithFields(logrus.Fields{
		"execution": exec.ID,
		"operation": event.Operation,
		"key":       event.Key(),
	})
	if err := event.Operation.Check(); err != nil {
		return o.finish(logger, exec, err)
	}
	logger.Info("Start.")
	source, err := o.Discoverer.Discover(ctx, event)
	if err != nil {
		return o.finish(logger, exec, err)
	}
	// Branches must not be interrupted between the mutation and the store write
	branchCtx := detach(ctx)
	group := run.New(run.WithParallel(o.Parallel))
	var abortErr error
	for {
		details, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			abortErr = trace.Wrap(err)
			break
		}
		branch := &Branch{ASG: details.Name, State: BranchRunning}
		target := *details
		if !group.Go(ctx, func() error {
			return o.runBranch(branchCtx, logger, event.Operation, branch, target)
		}) {
			exec.Skipped = append(exec.Skipped, details.Name)
			if ctx.Err() != nil {
				abortErr = trace.Wrap(ctx.Err())
				break
			}
			exec.Skipped = append(exec.Skipped, o.drain(ctx, logger, source)...)
			break
		}
		exec.Branches = append(exec.Branches, branch)
	}
	group.Wait()
	var errors []error
	if abortErr != nil {
		errors = append(errors, abortErr)
	}
	for _, branch := range exec.Branches {
		if branch.Err != nil {
			errors = append(errors, branch.Err)
		}
	}
	return o.finish(logger, exec, aggregate(errors))
}

// drain returns the names of the groups left in source.
// A listing error ends the list early: the execution has already failed
func (o *Operator) drain(ctx context.Context, logger logrus.FieldLogger, source aws.Source) (names []string) {
	for {
		details, err := source.Next(ctx)
		if err == io.EOF {
			return names
		}
		if err != nil {
			logger.WithError(err).Warn("Failed to list skipped groups.")
			return names
		}
		names = append(names, details.Name)
	}
}

// aggregate returns the only error from errors as is so that its type
// can still be inspected, or an aggregate of all errors
func aggregate(errors []error) error {
	if len(errors) == 1 {
		return errors[0]
	}
	return trace.NewAggregate(errors...)
}

// runBranch mutates the group and writes the store once the mutation has succeeded.
// Returns an error if the branch did not succeed
func (o *Operator) runBranch(ctx context.Context, logger logrus.FieldLogger, op storage.Operation, branch *Branch, details storage.AutoScalingGroupDetails) error {
	logger = logger.WithField("asg", details.Name)
	steps := branchStepsFor(op)
	mutation, err := steps.mutate(o.Mutator)(ctx, details)
	if err != nil {
		branch.State = steps.mutateFailed
		branch.Err = trace.Wrap(err)
		logger.WithError(err).Warn("Branch aborted.")
		return branch.Err
	}
	branch.Mutation = mutation
	if !mutation.Status.IsSuccess() {
		branch.State = steps.mutateFailed
		logger.Warnf("%v.", branch.State)
		return trace.CompareFailed("auto scaling group %v: %v", details.Name, branch.State)
	}
	save, err := steps.save(o.Store)(ctx, *mutation)
	if err != nil {
		branch.State = steps.saveFailed
		branch.Err = trace.Wrap(err)
		logger.WithError(err).Warn("Branch aborted.")
		return branch.Err
	}
	branch.Save = save
	if !save.Status.IsSuccess() {
		branch.State = steps.saveFailed
		logger.Warnf("%v.", branch.State)
		return trace.CompareFailed("auto scaling group %v: %v", details.Name, branch.State)
	}
	branch.State = steps.succeeded
	logger.Infof("%v.", branch.State)
	return nil
}

func (o *Operator) finish(logger logrus.FieldLogger, exec *Execution, err error) (*Execution, error) {
	exec.Finished = o.Clock.Now().UTC()
	if err != nil {
		exec.State = ExecutionFailed
	} else {
		exec.State = exec.aggregate()
	}
	o.Metrics.ObserveExecution(string(exec.Event.Operation), string(exec.State), exec.Duration())
	logger = logger.WithFields(logrus.Fields{
		"state":    exec.State,
		"branches": len(exec.Branches),
		"skipped":  len(exec.Skipped),
		"duration": exec.Duration(),
	})
	if err != nil {
		logger.WithError(err).Error("Execution aborted.")
		logger.Debug(trace.DebugReport(err))
		return exec, trace.Wrap(err)
	}
	logger.Info("Finished.")
	return exec, nil
}

// branchSteps binds the branch steps and terminal states of an operation
type branchSteps struct {
	mutate       func(Mutator) mutateFunc
	save         func(Store) saveFunc
	mutateFailed BranchState
	saveFailed   BranchState
	succeeded    BranchState
}

type mutateFunc func(context.Context, storage.AutoScalingGroupDetails) (*storage.UpdateAutoScalingGroupEvent, error)

type saveFunc func(context.Context, storage.UpdateAutoScalingGroupEvent) (*storage.SaveAzInfo, error)

func branchStepsFor(op storage.Operation) branchSteps {
	if op == storage.OperationRemove {
		return removeSteps
	}
	return restoreSteps
}

var removeSteps = branchSteps{
	mutate:       func(m Mutator) mutateFunc { return m.RemoveZone },
	save:         func(s Store) saveFunc { return s.Record },
	mutateFailed: BranchRemoveFailed,
	saveFailed:   BranchAddFailed,
	succeeded:    BranchAddSucceeded,
}

var restoreSteps = branchSteps{
	mutate:       func(m Mutator) mutateFunc { return m.RestoreZone },
	save:         func(s Store) saveFunc { return s.Forget },
	mutateFailed: BranchRestoreFailed,
	saveFailed:   BranchDeleteFailed,
	succeeded:    BranchDeleteSucceeded,
}

// detach returns a context that carries the values of ctx
// but is never canceled
func detach(ctx context.Context) context.Context {
	return detachedContext{parent: ctx}
}

type detachedContext struct {
	parent context.Context
}

func (detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }

func (detachedContext) Done() <-chan struct{} { return nil }

func (detachedContext) Err() error { return nil }

func (c detachedContext) Value(key interface{}) interface{} { return c.parent.Value(key) }
