/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package connection persists mediation relationships. A Record ties a client DID to the mediator, the routing
// DID handed out at grant time and the keys the client receives messages for.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

const (
	// Namespace is the name of the connection store.
	Namespace = "mediation_connection"

	keyPrefix     = "conn_"
	clientTag     = "client_did"
	routingTag    = "routing_did"
	keylistTag    = "keylist"
	updateTimeout = 30 * time.Second
)

var logger = log.New("didcomm-mediator/store/connection")

var (
	// ErrNotFound is returned when no connection matches.
	ErrNotFound = errors.New("connection not found")
	// ErrInvariant is returned when stored connections contradict each other, such as two records for one client.
	ErrInvariant = errors.New("connection store invariant violated")
	// ErrRecipientTaken is returned when a client DID is already a keylist entry of another connection.
	ErrRecipientTaken = errors.New("DID is routed to another connection")
)

// Keylist update actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Keylist update results.
const (
	ResultSuccess     = "success"
	ResultNoChange    = "no_change"
	ResultClientError = "client_error"
	ResultServerError = "server_error"
)

// Record is a mediation relationship.
type Record struct {
	ID          string    `json:"id"`
	ClientDID   string    `json:"client_did"`
	MediatorDID string    `json:"mediator_did"`
	Keylist     []string  `json:"keylist"`
	RoutingDID  string    `json:"routing_did"`
	CreatedAt   time.Time `json:"created_at"`
}

// Owns reports whether did is the client DID or one of the keys.
func (r *Record) Owns(did string) bool {
	if did == r.ClientDID {
		return true
	}

	return r.hasKey(did)
}

// Recipients returns the client DID followed by the keylist.
func (r *Record) Recipients() []string {
	return append([]string{r.ClientDID}, r.Keylist...)
}

func (r *Record) hasKey(key string) bool {
	for _, k := range r.Keylist {
		if k == key {
			return true
		}
	}

	return false
}

func (r *Record) clone() *Record {
	c := *r
	c.Keylist = append([]string(nil), r.Keylist...)

	return &c
}

func (r *Record) tags() []storage.Tag {
	tags := []storage.Tag{
		{Name: clientTag, Value: store.EncodeTag(r.ClientDID)},
		{Name: routingTag, Value: store.EncodeTag(r.RoutingDID)},
	}

	for _, k := range r.Keylist {
		tags = append(tags, storage.Tag{Name: keylistTag, Value: store.EncodeTag(k)})
	}

	return tags
}

// KeyUpdate is one requested keylist change.
type KeyUpdate struct {
	Action       string
	RecipientDID string
}

// KeyUpdateResult is the outcome of one KeyUpdate.
type KeyUpdateResult struct {
	Action       string
	RecipientDID string
	Result       string
}

// Repository reads and writes connection records. Every storage call runs through the guard.
type Repository struct {
	store storage.Store
	guard *resilience.Guard
	locks *lockbox
	now   func() time.Time
}

// New opens the connection store of p.
func New(p storage.Provider, guard *resilience.Guard) (*Repository, error) {
	s, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("open connection store: %w", err)
	}

	return &Repository{store: s, guard: guard, locks: newLockBox(), now: time.Now}, nil
}

// CreateIfAbsent returns the connection of clientDID, building and storing one with build if there is none.
// created is true when build ran. Calls for one client DID are serialized. A client DID listed in the keylist of
// another connection gets ErrRecipientTaken.
func (r *Repository) CreateIfAbsent(ctx context.Context, clientDID string,
	build func() (*Record, error)) (rec *Record, created bool, err error) {
	r.locks.with(clientKey(clientDID), func() {
		rec, err = r.FindByClientDID(ctx, clientDID)
		if err == nil {
			return
		}

		if !errors.Is(err, ErrNotFound) {
			return
		}

		r.locks.with(recipientKey(clientDID), func() {
			rec, created, err = r.create(ctx, clientDID, build)
		})
	})

	return rec, created, err
}

// create runs with the client and recipient locks of clientDID held.
func (r *Repository) create(ctx context.Context, clientDID string,
	build func() (*Record, error)) (*Record, bool, error) {
	owner, err := r.findOne(ctx, store.Query(keylistTag, clientDID))

	switch {
	case err == nil:
		logger.Debugf("client DID %s already routed to connection %s", clientDID, owner.ID)

		return nil, false, fmt.Errorf("%w: %s", ErrRecipientTaken, clientDID)
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	rec, err := build()
	if err != nil {
		return nil, false, err
	}

	rec.ClientDID = clientDID
	rec.ID = uuid.New().String()
	rec.CreatedAt = r.now().UTC()

	if err := r.put(ctx, rec, true); err != nil {
		return nil, false, err
	}

	return rec, true, nil
}

// FindByClientDID returns the connection of clientDID.
func (r *Repository) FindByClientDID(ctx context.Context, clientDID string) (*Record, error) {
	return r.findOne(ctx, store.Query(clientTag, clientDID))
}

// FindByRecipient returns the connection owning did, either as its client DID or as a keylist entry.
func (r *Repository) FindByRecipient(ctx context.Context, did string) (*Record, error) {
	rec, err := r.FindByClientDID(ctx, did)
	if !errors.Is(err, ErrNotFound) {
		return rec, err
	}

	return r.findOne(ctx, store.Query(keylistTag, did))
}

// List returns every connection.
func (r *Repository) List(ctx context.Context) ([]*Record, error) {
	return r.query(ctx, clientTag)
}

// UpdateKeylist applies updates in order to the connection of clientDID and reports each outcome.
// Each key is persisted on its own: a failure on one key leaves earlier keys applied.
func (r *Repository) UpdateKeylist(ctx context.Context, clientDID string,
	updates []KeyUpdate) (results []KeyUpdateResult, err error) {
	r.locks.with(clientKey(clientDID), func() {
		var rec *Record

		rec, err = r.FindByClientDID(ctx, clientDID)
		if err != nil {
			return
		}

		results = make([]KeyUpdateResult, 0, len(updates))

		for _, u := range updates {
			result := ResultServerError

			if ctx.Err() == nil {
				r.locks.with(recipientKey(u.RecipientDID), func() {
					result = r.applyUpdate(ctx, rec, u)
				})
			}

			results = append(results, KeyUpdateResult{Action: u.Action, RecipientDID: u.RecipientDID, Result: result})
		}
	})

	return results, err
}

// applyUpdate changes rec in place only when the change was persisted.
func (r *Repository) applyUpdate(ctx context.Context, rec *Record, u KeyUpdate) string {
	if u.RecipientDID == "" {
		return ResultClientError
	}

	next := rec.clone()

	switch u.Action {
	case ActionAdd:
		if rec.hasKey(u.RecipientDID) {
			return ResultNoChange
		}

		owner, err := r.FindByRecipient(ctx, u.RecipientDID)

		switch {
		case err == nil && owner.ID != rec.ID:
			logger.Debugf("key %s already routed to connection %s", u.RecipientDID, owner.ID)

			return ResultClientError
		case err != nil && !errors.Is(err, ErrNotFound):
			logger.Warnf("ownership lookup of key %s: %s", u.RecipientDID, err)

			return ResultServerError
		}

		next.Keylist = append(next.Keylist, u.RecipientDID)
	case ActionRemove:
		if !rec.hasKey(u.RecipientDID) {
			return ResultNoChange
		}

		next.Keylist = next.Keylist[:0]

		for _, k := range rec.Keylist {
			if k != u.RecipientDID {
				next.Keylist = append(next.Keylist, k)
			}
		}
	default:
		return ResultClientError
	}

	if err := r.put(ctx, next, false); err != nil {
		logger.Warnf("persist keylist %s of connection %s: %s", u.Action, rec.ID, err)

		return ResultServerError
	}

	rec.Keylist = next.Keylist

	return ResultSuccess
}

// put writes the record and its tags in one batch.
func (r *Repository) put(ctx context.Context, rec *Record, isNew bool) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}

	op := storage.Operation{Key: keyPrefix + rec.ID, Value: value, Tags: rec.tags()}
	if isNew {
		op.PutOptions = &storage.PutOptions{IsNewKey: true}
	}

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	return r.guard.Do(ctx, func(context.Context) error {
		return r.store.Batch([]storage.Operation{op})
	})
}

func (r *Repository) findOne(ctx context.Context, expression string) (*Record, error) {
	recs, err := r.query(ctx, expression)
	if err != nil {
		return nil, err
	}

	switch len(recs) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return recs[0], nil
	default:
		logger.Errorf("%d connections match %s", len(recs), expression)

		return nil, fmt.Errorf("%w: %d connections match %s", ErrInvariant, len(recs), expression)
	}
}

func (r *Repository) query(ctx context.Context, expression string) ([]*Record, error) {
	entries, err := resilience.Call(ctx, r.guard, func(context.Context) ([]store.Entry, error) {
		return store.Collect(r.store, expression)
	})
	if err != nil {
		return nil, err
	}

	recs := make([]*Record, 0, len(entries))

	for _, e := range entries {
		var rec Record

		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal connection %s: %w", e.Key, err)
		}

		recs = append(recs, &rec)
	}

	return recs, nil
}
