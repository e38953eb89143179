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
package run

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestZeroGroup(t *testing.T) {
	err1 := errors.New("run_test: 1")
	err2 := errors.New("run_test: 2")

	cases := []struct {
		errs []error
	}{
		{errs: []error{}},
		{errs: []error{nil}},
		{errs: []error{err1}},
		{errs: []error{err1, nil}},
		{errs: []error{err1, nil, err2}},
	}

	ctx := context.Background()
	for _, tc := range cases {
		var g Group

		var firstErr error
		for i, err := range tc.errs {
			err := err
			g.Go(ctx, func() error { return err })

			if firstErr == nil && err != nil {
				firstErr = err
			}

			if gErr := g.Wait(); gErr != firstErr {
				t.Errorf("after Group.Go(func() error { return err }) for err in %v\n"+
					"g.Wait() = %v; want %v",
					tc.errs[:i+1], gErr, firstErr)
			}
		}
	}
}

func TestStopsDispatchAfterFailure(t *testing.T) {
	errDoom := errors.New("run_test: doomed")
	g := New(WithParallel(1))
	ctx := context.Background()

	if !g.Go(ctx, func() error { return errDoom }) {
		t.Fatal("Expected first task to be dispatched.")
	}
	var called int32
	if g.Go(ctx, func() error {
		atomic.AddInt32(&called, 1)
		return nil
	}) {
		t.Error("Expected dispatch to stop after failure.")
	}
	if err := g.Wait(); err != errDoom {
		t.Errorf("g.Wait() = %v; want %v", err, errDoom)
	}
	if atomic.LoadInt32(&called) != 0 {
		t.Error("Expected second task not to run.")
	}
	select {
	case <-g.Failed():
	default:
		t.Error("Expected failed channel to be closed.")
	}
}

func TestDoesNotInterruptRunningTasks(t *testing.T) {
	errDoom := errors.New("run_test: doomed")
	g := New(WithParallel(2))
	ctx := context.Background()

	release := make(chan struct{})
	var finished int32
	g.Go(ctx, func() error {
		<-release
		atomic.AddInt32(&finished, 1)
		return nil
	})
	g.Go(ctx, func() error {
		return errDoom
	})
	<-g.Failed()
	close(release)

	if err := g.Wait(); err != errDoom {
		t.Errorf("g.Wait() = %v; want %v", err, errDoom)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Error("Expected running task to complete.")
	}
}

func TestWithLimit(t *testing.T) {
	g := New(WithParallel(1))
	ctx := context.Background()

	var store slice
	for _, text := range []string{"first", "second", "third"} {
		text := text
		g.Go(ctx, func() error {
			_, err := store.append(text)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		t.Errorf("Expected no errors but got %v.", err)
	}

	if store.String() != "firstsecondthird" {
		t.Errorf("Expected appends in a sequence but got %q.", store.String())
	}
}

func TestCapsConcurrency(t *testing.T) {
	const parallel = 3
	g := New(WithParallel(parallel))
	ctx := context.Background()

	var inflight, peak int32
	for i := 0; i < 12; i++ {
		g.Go(ctx, func() error {
			n := atomic.AddInt32(&inflight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inflight, -1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Errorf("Expected no errors but got %v.", err)
	}
	if peak > parallel {
		t.Errorf("Expected at most %v tasks in flight but got %v.", parallel, peak)
	}
}

func TestStopsDispatchOnCancel(t *testing.T) {
	g := New(WithParallel(1))
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	g.Go(ctx, func() error {
		<-release
		return nil
	})
	cancel()
	if g.Go(ctx, func() error { return nil }) {
		t.Error("Expected dispatch to stop after cancel.")
	}
	close(release)
	if err := g.Wait(); err != nil {
		t.Errorf("Expected no errors but got %v.", err)
	}
}

func (r *slice) append(s string) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Buffer.WriteString(s)
}

type slice struct {
	mu sync.Mutex
	bytes.Buffer
}
