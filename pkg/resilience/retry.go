/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 100 * time.Millisecond
	defaultFactor       = 2.0
	defaultMaxDelay     = 2 * time.Second
)

// RetryPolicy bounds how often and how patiently an operation is retried.
// The zero value is usable and takes the package defaults.
type RetryPolicy struct {
	// MaxAttempts counts every try, the first one included.
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
	// Fixed waits InitialDelay between every attempt instead of growing the delay.
	Fixed bool
	// Retryable reports whether a failed attempt is worth repeating. Nil retries everything.
	Retryable func(error) bool
	// OnRetry, if set, observes each failed attempt that will be retried.
	OnRetry func(err error, next time.Duration)
}

// DefaultRetryPolicy returns three exponential attempts starting at 100ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  defaultMaxAttempts,
		InitialDelay: defaultInitialDelay,
		Factor:       defaultFactor,
		MaxDelay:     defaultMaxDelay,
	}
}

// Do calls op until it succeeds, fails with a non-retryable error, the attempts run out or ctx is done.
// The error of the last attempt is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	operation := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(p.backOff(), ctx), notify)
	if err == nil {
		return nil
	}

	// ctx was done before the first attempt
	if lastErr == nil {
		return err
	}

	return lastErr
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}

	return p.MaxAttempts
}

// backOff builds the delay schedule for one call of Do.
func (p RetryPolicy) backOff() backoff.BackOff {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = defaultInitialDelay
	}

	retries := uint64(p.attempts() - 1)

	if p.Fixed {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(initial), retries)
	}

	factor := p.Factor
	if factor < 1 {
		factor = defaultFactor
	}

	maxDelay := p.MaxDelay
	if maxDelay < initial {
		maxDelay = initial
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = factor
	b.MaxInterval = maxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithMaxRetries(b, retries)
}
