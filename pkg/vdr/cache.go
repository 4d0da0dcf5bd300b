/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vdr

import (
	"context"
	"time"

	"github.com/bluele/gcache"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
)

const (
	defaultCacheSize = 100
	defaultCacheTTL  = 5 * time.Minute
)

// CachedResolver keeps recently resolved documents and guards calls to the resolver it wraps.
type CachedResolver struct {
	next  Resolver
	guard *resilience.Guard
	cache gcache.Cache
	ttl   time.Duration
}

// NewCachedResolver wraps next. A nil guard gets one that neither retries nor trips on unknown DIDs.
func NewCachedResolver(next Resolver, guard *resilience.Guard, size int, ttl time.Duration) *CachedResolver {
	if size <= 0 {
		size = defaultCacheSize
	}

	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	if guard == nil {
		policy := resilience.DefaultRetryPolicy()
		policy.Retryable = IsFault

		guard = resilience.NewGuard("resolver",
			resilience.NewBreaker("resolver", resilience.WithFailurePredicate(IsFault)), policy)
	}

	return &CachedResolver{next: next, guard: guard, cache: gcache.New(size).LRU().Build(), ttl: ttl}
}

// Resolve returns the cached document of did or resolves it.
func (c *CachedResolver) Resolve(ctx context.Context, did string) (*Document, error) {
	if v, err := c.cache.Get(did); err == nil {
		if doc, ok := v.(*Document); ok {
			return doc, nil
		}
	}

	doc, err := resilience.Call(ctx, c.guard, func(ctx context.Context) (*Document, error) {
		return c.next.Resolve(ctx, did)
	})
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetWithExpire(did, doc, c.ttl); err != nil {
		logger.Warnf("cache document of %s: %s", did, err)
	}

	return doc, nil
}
