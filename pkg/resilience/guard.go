/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resilience

import (
	"context"
)

// Guard runs operations through a breaker wrapping a retry loop.
type Guard struct {
	breaker *Breaker
	policy  RetryPolicy
}

// NewGuard composes breaker and policy. A nil breaker gets a default one named name.
func NewGuard(name string, breaker *Breaker, policy RetryPolicy) *Guard {
	if breaker == nil {
		breaker = NewBreaker(name)
	}

	return &Guard{breaker: breaker, policy: policy}
}

// Breaker returns the guard's breaker.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Do runs op. The breaker records a single outcome whatever the number of attempts.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.policy.Do(ctx, op)
	})
}

// Call is Do for operations that produce a value.
func Call[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}

		result = v

		return nil
	})

	return result, err
}
