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

package utils

import (
	"context"
	"time"

	"github.com/gravitational/azfailaway/lib/defaults"

	"github.com/cenkalti/backoff"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// RetryTransient retries the specified operation fn using the specified backoff interval
// if the operation is experiencing transient errors.
// Throttling and connection errors are considered transient.
// Returns any non-transient error or nil if the operation is successful.
func RetryTransient(ctx context.Context, interval backoff.BackOff, fn func() error) error {
	return trace.Wrap(RetryWithInterval(ctx, interval, func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if IsTransientError(err) {
			return trace.Wrap(err)
		}
		return &backoff.PermanentError{Err: err}
	}))
}

// IsTransientError returns true if the specified error indicates a condition
// that is likely to go away when the operation is retried
func IsTransientError(err error) bool {
	return trace.IsLimitExceeded(err) || trace.IsConnectionProblem(err)
}

// RetryWithInterval retries the specified operation fn using the specified backoff interval.
// fn should return backoff.PermanentError if the error
// should not be retried and returned directly.
// Returns nil on success or the last received error upon exhausting the interval.
func RetryWithInterval(ctx context.Context, interval backoff.BackOff, fn func() error) error {
	b := backoff.WithContext(interval, ctx)
	err := backoff.RetryNotify(func() (err error) {
		err = fn()
		return err
	}, b, func(err error, d time.Duration) {
		log.WithError(err).Infof("Retrying at %v.", d)
	})
	if perr, ok := err.(*backoff.PermanentError); ok {
		err = perr.Err
	}
	if err != nil {
		log.Debugf("All attempts failed: %v.", trace.DebugReport(err))
		return trace.Wrap(err)
	}
	return nil
}

// NewExponentialBackOff creates a new backoff interval with the specified timeout
func NewExponentialBackOff(timeout time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaults.RetryInitialInterval
	b.MaxElapsedTime = timeout
	b.Reset()
	return b
}
