/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package store holds what the typed repositories share: guards tuned for storage errors, tag value encoding and
// iteration.
package store

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

var logger = log.New("didcomm-mediator/store")

// IsFault reports whether err points at a failing backend rather than at the data asked for.
func IsFault(err error) bool {
	return err != nil &&
		!errors.Is(err, storage.ErrDataNotFound) &&
		!errors.Is(err, storage.ErrDuplicateKey) &&
		!errors.Is(err, storage.ErrInvalidQuery)
}

// NewGuard returns a guard for storage calls. Answers such as a missing record neither trip the breaker nor get
// retried.
func NewGuard(name string, policy resilience.RetryPolicy, opts ...resilience.BreakerOption) *resilience.Guard {
	policy.Retryable = IsFault

	opts = append([]resilience.BreakerOption{resilience.WithFailurePredicate(IsFault)}, opts...)

	return resilience.NewGuard(name, resilience.NewBreaker(name, opts...), policy)
}

// EncodeTag makes v usable as a tag value. DIDs contain ':' which tags do not allow.
func EncodeTag(v string) string {
	return base58.Encode([]byte(v))
}

// DecodeTag reverses EncodeTag.
func DecodeTag(v string) string {
	return string(base58.Decode(v))
}

// Query builds a query expression matching records tagged name with the encoded value.
func Query(name, value string) string {
	return fmt.Sprintf("%s:%s", name, EncodeTag(value))
}

// Entry is one record read from an iterator.
type Entry struct {
	Key   string
	Value []byte
	Tags  []storage.Tag
}

// Collect drains the records matching expression.
func Collect(s storage.Store, expression string) ([]Entry, error) {
	iter, err := s.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", expression, err)
	}

	defer storage.Close(iter, logger)

	var entries []Entry

	for {
		more, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate %s: %w", expression, err)
		}

		if !more {
			return entries, nil
		}

		var e Entry

		if e.Key, err = iter.Key(); err != nil {
			return nil, err
		}

		if e.Value, err = iter.Value(); err != nil {
			return nil, err
		}

		if e.Tags, err = iter.Tags(); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}
}
