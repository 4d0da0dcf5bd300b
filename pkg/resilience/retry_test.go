/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the last error after max attempts", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Fixed: true}

		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++

			return fmt.Errorf("attempt %d", calls)
		})

		require.EqualError(t, err, "attempt 3")
		require.Equal(t, 3, calls)
	})

	t.Run("stops at first success", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond}

		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			if calls < 2 {
				return errBackend
			}

			return nil
		})

		require.NoError(t, err)
		require.Equal(t, 2, calls)
	})

	t.Run("non retryable stops immediately", func(t *testing.T) {
		errDenied := errors.New("denied")
		p := RetryPolicy{
			MaxAttempts:  5,
			InitialDelay: time.Millisecond,
			Retryable:    func(err error) bool { return !errors.Is(err, errDenied) },
		}

		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++

			return errDenied
		})

		require.Equal(t, errDenied, err)
		require.Equal(t, 1, calls)
	})

	t.Run("single attempt", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 1}

		calls := 0
		require.ErrorIs(t, p.Do(ctx, func(context.Context) error {
			calls++

			return errBackend
		}), errBackend)
		require.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		p := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}

		calls := 0
		err := p.Do(cctx, func(context.Context) error {
			calls++

			return errBackend
		})

		require.Error(t, err)
		require.LessOrEqual(t, calls, 1)
	})

	t.Run("observes retries", func(t *testing.T) {
		var delays []time.Duration

		p := RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			Fixed:        true,
			OnRetry:      func(_ error, next time.Duration) { delays = append(delays, next) },
		}

		require.Error(t, p.Do(ctx, func(context.Context) error { return errBackend }))
		require.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, delays)
	})
}

func TestRetryPolicy_backOff(t *testing.T) {
	t.Run("exponential capped", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 6, InitialDelay: 100 * time.Millisecond, Factor: 2, MaxDelay: 500 * time.Millisecond}
		b := p.backOff()

		var got []time.Duration

		for d := b.NextBackOff(); d != backoff.Stop; d = b.NextBackOff() {
			got = append(got, d)
		}

		require.Equal(t, []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond,
			500 * time.Millisecond,
		}, got)
	})

	t.Run("fixed", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond, Factor: 3, Fixed: true}
		b := p.backOff()

		require.Equal(t, 50*time.Millisecond, b.NextBackOff())
		require.Equal(t, 50*time.Millisecond, b.NextBackOff())
		require.Equal(t, backoff.Stop, b.NextBackOff())
	})

	t.Run("defaults", func(t *testing.T) {
		p := DefaultRetryPolicy()
		require.Equal(t, 3, p.attempts())
		require.Equal(t, 3, RetryPolicy{}.attempts())

		b := RetryPolicy{}.backOff()
		require.Equal(t, defaultInitialDelay, b.NextBackOff())
	})
}
