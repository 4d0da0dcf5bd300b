/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package problem classifies the errors protocol services return so transports can answer without knowing which
// service failed.
package problem

import (
	"errors"
	"fmt"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
)

var (
	// ErrMissingSenderDID is the cause of requests without a from field.
	ErrMissingSenderDID = errors.New("message has no sender DID")
	// ErrMissingClientConnection is the cause of requests from senders the mediator has not granted.
	ErrMissingClientConnection = errors.New("sender has no mediation connection")
)

// Kind is the class of a failure.
type Kind int

// Failure kinds.
const (
	// Internal is a broken invariant or an unclassified error.
	Internal Kind = iota
	// Malformed input is never retried.
	Malformed
	// Denied requests are well formed but not allowed in the current protocol state.
	Denied
	// Unavailable means a dependency failed. The caller may try again later.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Denied:
		return "denied"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Problem report codes.
const (
	CodeMalformed              = "e.p.msg.malformed"
	CodeDenied                 = "e.p.req.denied"
	CodeUnavailable            = "e.m.unavailable"
	CodeTemporarilyUnavailable = "e.m.temporarily-unavailable"
	CodeInternal               = "e.p.me.internal"
	CodeLiveModeUnsupported    = "e.m.live-mode-not-supported"
)

// Error is a classified error.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}

	return e.Err.Error()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New classifies err as kind. The code defaults to the kind's code.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Code: DefaultCode(kind), Err: err}
}

// Newf classifies a formatted error. %w is honoured.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

// Unavailablef wraps a dependency failure. An open breaker keeps its own code.
func Unavailablef(err error, format string, args ...interface{}) *Error {
	e := New(Unavailable, fmt.Errorf(format+": %w", append(args, err)...))
	if errors.Is(err, resilience.ErrCircuitOpen) {
		e.Code = CodeTemporarilyUnavailable
	}

	return e
}

// KindOf returns the kind of err. An open breaker is Unavailable and anything unclassified is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return Unavailable
	}

	return Internal
}

// CodeOf returns the problem report code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return CodeTemporarilyUnavailable
	}

	return DefaultCode(KindOf(err))
}

// DefaultCode returns the code used for kind when none is given.
func DefaultCode(kind Kind) string {
	switch kind {
	case Malformed:
		return CodeMalformed
	case Denied:
		return CodeDenied
	case Unavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
