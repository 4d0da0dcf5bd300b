/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resilience guards calls into resolvers and storage with a circuit breaker and bounded retry.
//
// Guard composes the two with the breaker outside and the retry loop inside, so the breaker counts one outcome per
// logical operation however many attempts the retry policy spent on it.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
)

var logger = log.New("didcomm-mediator/resilience")

// ErrCircuitOpen is returned without calling the protected operation while the breaker is open,
// or while another caller holds the half-open trial call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of a Breaker.
type State int

// Breaker states.
const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	defaultFailureThreshold = 5
	defaultResetTimeout     = 30 * time.Second
)

// BreakerOption configures a Breaker.
type BreakerOption func(b *Breaker)

// WithFailureThreshold sets the count of consecutive failures that opens the breaker.
func WithFailureThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithResetTimeout sets how long the breaker stays open before allowing a trial call.
func WithResetTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.resetTimeout = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) BreakerOption {
	return func(b *Breaker) {
		b.clock = c
	}
}

// WithFailurePredicate decides which errors count as failures. Errors it rejects are still returned to the
// caller but leave the breaker untouched, as a success would.
func WithFailurePredicate(isFailure func(error) bool) BreakerOption {
	return func(b *Breaker) {
		b.isFailure = isFailure
	}
}

// Breaker is a circuit breaker protecting one downstream dependency.
type Breaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	clock            Clock
	isFailure        func(error) bool

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool
}

// NewBreaker returns a closed breaker. name identifies the dependency in logs.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		resetTimeout:     defaultResetTimeout,
		clock:            realClock{},
		isFailure:        func(err error) bool { return err != nil },
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name returns the dependency name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// ConsecutiveFailures returns the current failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.consecutiveFailures
}

// Execute runs fn unless the breaker is open. In the closed state fn's error is always returned as is.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := b.acquire()
	if err != nil {
		return err
	}

	returned := false

	// a panicking fn counts as a failure; the panic goes on to the caller
	defer func() {
		if !returned {
			b.record(trial, true)
		}
	}()

	err = fn(ctx)
	returned = true

	b.record(trial, err != nil && b.isFailure(err))

	return err
}

// acquire decides whether the caller may run. trial is true for the single half-open caller.
func (b *Breaker) acquire() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return false, nil
	case Open:
		if b.clock.Now().Sub(b.openedAt) >= b.resetTimeout {
			b.state = HalfOpen
			b.openedAt = time.Time{}

			logger.Infof("breaker [%s] half-open, next call is a trial", b.name)
		}

		return false, ErrCircuitOpen
	case HalfOpen:
		if b.trialInFlight {
			return false, ErrCircuitOpen
		}

		b.trialInFlight = true

		return true, nil
	}

	return false, ErrCircuitOpen
}

func (b *Breaker) record(trial, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialInFlight = false

		if failed {
			b.trip()

			return
		}

		b.state = Closed
		b.consecutiveFailures = 0

		logger.Infof("breaker [%s] closed after successful trial call", b.name)

		return
	}

	// a call admitted while closed may finish after another caller changed the state
	if b.state != Closed {
		return
	}

	if !failed {
		b.consecutiveFailures = 0

		return
	}

	b.consecutiveFailures++

	if b.consecutiveFailures >= b.failureThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.clock.Now()
	b.consecutiveFailures = 0

	logger.Warnf("breaker [%s] open for %s", b.name, b.resetTimeout)
}
