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
	"fmt"
	"time"

	"github.com/gravitational/azfailaway/lib/storage"
)

// ExecutionState is the overall state of an operation execution
type ExecutionState string

const (
	// ExecutionRunning is the state of an execution that has not finished yet
	ExecutionRunning ExecutionState = "Running"
	// ExecutionSucceeded indicates that every branch succeeded
	ExecutionSucceeded ExecutionState = "Succeeded"
	// ExecutionFailed indicates that at least one branch failed,
	// was not dispatched, or that the execution was aborted
	ExecutionFailed ExecutionState = "Failed"
)

// BranchState is the state of a single auto scaling group branch
type BranchState string

const (
	// BranchRunning is the state of a dispatched branch that has not finished yet
	BranchRunning BranchState = "Running"
	// BranchRemoveFailed indicates that the zone could not be removed from the group
	BranchRemoveFailed BranchState = "AZ removal failed"
	// BranchAddFailed indicates that the removal could not be recorded
	BranchAddFailed BranchState = "Add failed"
	// BranchAddSucceeded indicates that the removal was applied and recorded
	BranchAddSucceeded BranchState = "Add succeeded"
	// BranchRestoreFailed indicates that the zone could not be restored to the group
	BranchRestoreFailed BranchState = "Restore failed"
	// BranchDeleteFailed indicates that the restored group could not be forgotten
	BranchDeleteFailed BranchState = "Delete failed"
	// BranchDeleteSucceeded indicates that the restore was applied and forgotten
	BranchDeleteSucceeded BranchState = "Delete succeeded"
)

// IsSuccess returns true if this is a successful terminal state
func (r BranchState) IsSuccess() bool {
	return r == BranchAddSucceeded || r == BranchDeleteSucceeded
}

// Execution is the outcome of a single fail-away operation: the tree of
// per-group statuses rooted at the overall state
type Execution struct {
	// ID uniquely identifies this execution
	ID string `json:"id"`
	// Event is the operation event that started this execution
	Event storage.OperationEvent `json:"event"`
	// State is the overall execution state
	State ExecutionState `json:"state"`
	// Branches lists dispatched branches in dispatch order
	Branches []*Branch `json:"branches,omitempty"`
	// Skipped lists groups that were discovered but never dispatched
	// because a sibling branch had already failed
	Skipped []string `json:"skipped,omitempty"`
	// Started is the execution start time
	Started time.Time `json:"started"`
	// Finished is the execution completion time
	Finished time.Time `json:"finished"`
}

// Branch is the outcome of processing a single auto scaling group
type Branch struct {
	// ASG is the auto scaling group name
	ASG string `json:"asg"`
	// State is the branch state
	State BranchState `json:"state"`
	// Mutation is the result of the zone mutation
	Mutation *storage.UpdateAutoScalingGroupEvent `json:"mutation,omitempty"`
	// Save is the result of the recovery store write
	Save *storage.SaveAzInfo `json:"save,omitempty"`
	// Err is the error that aborted this branch
	Err error `json:"-"`
}

// Succeeded returns true if the execution succeeded
func (r *Execution) Succeeded() bool {
	return r.State == ExecutionSucceeded
}

// FailedBranches returns the branches that did not succeed
func (r *Execution) FailedBranches() (failed []*Branch) {
	for _, branch := range r.Branches {
		if !branch.State.IsSuccess() {
			failed = append(failed, branch)
		}
	}
	return failed
}

// Duration returns the duration of the execution
func (r *Execution) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// String returns a string representation of this execution
func (r *Execution) String() string {
	return fmt.Sprintf("Execution(%v, %v, state=%v, branches=%v, skipped=%v)",
		r.ID, r.Event, r.State, len(r.Branches), len(r.Skipped))
}

// String returns a string representation of this branch
func (r *Branch) String() string {
	return fmt.Sprintf("Branch(%v, state=%v)", r.ASG, r.State)
}

// aggregate computes the overall state from the branches
func (r *Execution) aggregate() ExecutionState {
	if len(r.Skipped) != 0 {
		return ExecutionFailed
	}
	for _, branch := range r.Branches {
		if !branch.State.IsSuccess() {
			return ExecutionFailed
		}
	}
	return ExecutionSucceeded
}
