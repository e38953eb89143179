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

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Package run provides synchronization and error propagation for groups
// of goroutines working on subtasks of a common task.
// The package is based on golang.org/x/sync/errgroup and adds concurrency limits
// on top. Unlike errgroup, a failure does not cancel running tasks: it only
// stops the group from dispatching new ones.
package run

import (
	"context"
	"sync"
)

// A Group is a collection of goroutines working on subtasks that are part of
// the same overall task.
// The parallelization of tasks is controlled by a semaphore that is either
// unrestricted (allows unlimited number of concurrent tasks) or limits
// them to a certain amount.
//
// A zero Group is valid and does not limit concurrency.
type Group struct {
	wg       sync.WaitGroup
	errOnce  sync.Once
	err      error
	initOnce sync.Once
	failed   chan struct{}
	semaphoreStore
}

// New returns a new group with the specified concurrency configuration
func New(options ...Option) *Group {
	group := &Group{}
	for _, opt := range options {
		opt(group)
	}
	return group
}

// Wait blocks until all dispatched function calls have returned, then
// returns the first non-nil error (if any) from them.
func (r *Group) Wait() error {
	r.wg.Wait()
	return r.err
}

// Go calls the given function in a new goroutine.
// The call to Go might block if there're already as many tasks
// running as configured by WithParallel.
//
// Once a task has returned a non-nil error, the group stops dispatching:
// Go returns false without calling fn. Tasks that are already running
// are not interrupted. Go also returns false if ctx is done before
// a slot becomes available.
func (r *Group) Go(ctx context.Context, fn func() error) bool {
	failed := r.failedC()
	if !r.alloc(ctx, failed) {
		return false
	}
	select {
	case <-failed:
		r.free()
		return false
	default:
	}

	r.wg.Add(1)
	go func() {
		defer func() {
			r.free()
			r.wg.Done()
		}()
		if err := fn(); err != nil {
			r.errOnce.Do(func() {
				r.err = err
				close(failed)
			})
		}
	}()
	return true
}

// Failed returns a channel that is closed once a task has failed
func (r *Group) Failed() <-chan struct{} {
	return r.failedC()
}

func (r *Group) failedC() chan struct{} {
	r.initOnce.Do(func() {
		r.failed = make(chan struct{})
	})
	return r.failed
}

// Option is a configuration option for Group
type Option func(group *Group)

// WithParallel creates a new semaphore that caps the number of tasks to the
// specified value.
//
// If parallel < 0, then the tasks are not capped.
// If parallel == 0, then the behaviour is as with parallel == 1
// If parallel > 0, then the specified number of tasks is allowed to run concurrently
func WithParallel(parallel int) Option {
	return func(group *Group) {
		if parallel < 0 {
			// No explicit semaphore
			return
		}

		switch parallel {
		case 0, 1:
			group.semaphore = make(chanSemaphore, 1)
		default:
			group.semaphore = make(chanSemaphore, parallel)
		}
	}
}

type semaphore interface {
	alloc(ctx context.Context, failed <-chan struct{}) bool
	free()
}

func (r chanSemaphore) alloc(ctx context.Context, failed <-chan struct{}) bool {
	select {
	case r <- struct{}{}:
		return true
	case <-failed:
		return false
	case <-ctx.Done():
		return false
	}
}

func (r chanSemaphore) free() {
	<-r
}

type chanSemaphore chan struct{}

func (r semaphoreStore) alloc(ctx context.Context, failed <-chan struct{}) bool {
	if r.semaphore != nil {
		return r.semaphore.alloc(ctx, failed)
	}
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

func (r semaphoreStore) free() {
	if r.semaphore != nil {
		r.semaphore.free()
	}
}

// semaphoreStore wraps a semaphore implementation.
// It implements semaphore and does nothing if the underlying semaphore
// has not been initialized
type semaphoreStore struct {
	semaphore
}
