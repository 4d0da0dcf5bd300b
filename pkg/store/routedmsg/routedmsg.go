/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package routedmsg queues forwarded messages until their recipient picks them up.
package routedmsg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

const (
	// Namespace is the name of the routed message store.
	Namespace = "routed_message"

	keyPrefix    = "msg_"
	recipientTag = "recipient_did"
)

// Record is a queued message. Payload is opaque and kept byte for byte.
type Record struct {
	ID           string    `json:"id"`
	RecipientDID string    `json:"recipient_did"`
	Payload      []byte    `json:"payload"`
	AddedAt      time.Time `json:"added_at"`
}

// Stats summarizes the queue of a set of recipients.
type Stats struct {
	Count      int
	TotalBytes int
	Oldest     time.Time
	Newest     time.Time
}

// Repository reads and writes queued messages. Every storage call runs through the guard.
type Repository struct {
	store storage.Store
	guard *resilience.Guard
	now   func() time.Time
}

// New opens the routed message store of p.
func New(p storage.Provider, guard *resilience.Guard) (*Repository, error) {
	s, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("open routed message store: %w", err)
	}

	return &Repository{store: s, guard: guard, now: time.Now}, nil
}

// Store queues payload for recipientDID.
func (r *Repository) Store(ctx context.Context, recipientDID string, payload []byte) (*Record, error) {
	if recipientDID == "" {
		return nil, errors.New("recipient DID is mandatory")
	}

	rec := &Record{
		ID:           uuid.New().String(),
		RecipientDID: recipientDID,
		Payload:      append([]byte(nil), payload...),
		AddedAt:      r.now().UTC(),
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal routed message: %w", err)
	}

	err = r.guard.Do(ctx, func(context.Context) error {
		return r.store.Put(keyPrefix+rec.ID, value, storage.Tag{Name: recipientTag, Value: store.EncodeTag(recipientDID)})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// StatsFor summarizes the messages waiting for any of recipients.
func (r *Repository) StatsFor(ctx context.Context, recipients ...string) (*Stats, error) {
	recs, err := r.listFor(ctx, recipients)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Count: len(recs)}

	for i, rec := range recs {
		stats.TotalBytes += len(rec.Payload)

		if i == 0 {
			stats.Oldest = rec.AddedAt
		}

		stats.Newest = rec.AddedAt
	}

	return stats, nil
}

// ListOldestFirst returns up to limit messages waiting for any of recipients, oldest first. Nothing is removed.
func (r *Repository) ListOldestFirst(ctx context.Context, limit int, recipients ...string) ([]*Record, error) {
	recs, err := r.listFor(ctx, recipients)
	if err != nil {
		return nil, err
	}

	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	return recs, nil
}

// DeleteOwned removes the messages among ids addressed to one of recipients. The ids it leaves in place, missing
// or addressed elsewhere, are returned in notRemoved.
func (r *Repository) DeleteOwned(ctx context.Context, ids []string, recipients ...string) (removed, notRemoved []string,
	err error) {
	owned := make(map[string]struct{}, len(recipients))
	for _, did := range recipients {
		owned[did] = struct{}{}
	}

	var ops []storage.Operation

	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}

		rec, err := r.get(ctx, id)

		switch {
		case errors.Is(err, storage.ErrDataNotFound):
			notRemoved = append(notRemoved, id)

			continue
		case err != nil:
			return nil, nil, err
		}

		if _, ok := owned[rec.RecipientDID]; !ok {
			notRemoved = append(notRemoved, id)

			continue
		}

		ops = append(ops, storage.Operation{Key: keyPrefix + id})
		removed = append(removed, id)
	}

	if len(ops) == 0 {
		return removed, notRemoved, nil
	}

	err = r.guard.Do(ctx, func(context.Context) error {
		return r.store.Batch(ops)
	})
	if err != nil {
		return nil, nil, err
	}

	return removed, notRemoved, nil
}

func (r *Repository) get(ctx context.Context, id string) (*Record, error) {
	value, err := resilience.Call(ctx, r.guard, func(context.Context) ([]byte, error) {
		return r.store.Get(keyPrefix + id)
	})
	if err != nil {
		return nil, err
	}

	var rec Record

	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal routed message %s: %w", id, err)
	}

	return &rec, nil
}

// listFor returns the messages of recipients sorted by arrival.
func (r *Repository) listFor(ctx context.Context, recipients []string) ([]*Record, error) {
	var recs []*Record

	seen := make(map[string]struct{}, len(recipients))

	for _, did := range recipients {
		if _, dup := seen[did]; dup || did == "" {
			continue
		}

		seen[did] = struct{}{}

		entries, err := resilience.Call(ctx, r.guard, func(context.Context) ([]store.Entry, error) {
			return store.Collect(r.store, store.Query(recipientTag, did))
		})
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			var rec Record

			if err := json.Unmarshal(e.Value, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal routed message %s: %w", e.Key, err)
			}

			recs = append(recs, &rec)
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].AddedAt.Equal(recs[j].AddedAt) {
			return recs[i].ID < recs[j].ID
		}

		return recs[i].AddedAt.Before(recs[j].AddedAt)
	})

	return recs, nil
}
