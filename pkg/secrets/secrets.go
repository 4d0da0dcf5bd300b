/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package secrets keeps the private keys of the DIDs the mediator owns: its own DID and the routing DIDs it hands
// out. Keys are stored as is; protecting them at rest is left to the storage backend.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

const (
	// Namespace is the name of the secrets store.
	Namespace = "secrets"

	didTag = "did"
)

// ErrNotFound is returned when no key matches.
var ErrNotFound = errors.New("secret not found")

// Key types.
const (
	X25519KeyAgreementKey2020  = "X25519KeyAgreementKey2020"
	Ed25519VerificationKey2020 = "Ed25519VerificationKey2020"
)

// KeyMaterial is a key pair of a DID.
type KeyMaterial struct {
	KID        string `json:"kid"`
	DID        string `json:"did"`
	Type       string `json:"type"`
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"private_key"`
}

// Resolver finds key material by key ID.
type Resolver interface {
	Find(ctx context.Context, kid string) (*KeyMaterial, error)
}

// Store is a storage backed Resolver.
type Store struct {
	store storage.Store
	guard *resilience.Guard
}

// New opens the secrets store of p.
func New(p storage.Provider, guard *resilience.Guard) (*Store, error) {
	s, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("open secrets store: %w", err)
	}

	return &Store{store: s, guard: guard}, nil
}

// Put saves km under its key ID.
func (s *Store) Put(ctx context.Context, km *KeyMaterial) error {
	if km.KID == "" || km.DID == "" {
		return errors.New("key material needs a kid and a did")
	}

	value, err := json.Marshal(km)
	if err != nil {
		return fmt.Errorf("marshal key material: %w", err)
	}

	return s.guard.Do(ctx, func(context.Context) error {
		return s.store.Put(km.KID, value, storage.Tag{Name: didTag, Value: store.EncodeTag(km.DID)})
	})
}

// Find returns the key material of kid. A bare DID selects the first key stored for it.
func (s *Store) Find(ctx context.Context, kid string) (*KeyMaterial, error) {
	if !strings.Contains(kid, "#") {
		return s.findByDID(ctx, kid)
	}

	value, err := resilience.Call(ctx, s.guard, func(context.Context) ([]byte, error) {
		return s.store.Get(kid)
	})
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, kid)
	}

	if err != nil {
		return nil, err
	}

	return unmarshal(value)
}

// Delete removes every key stored for did. Deleting a DID without keys is not an error.
func (s *Store) Delete(ctx context.Context, did string) error {
	entries, err := resilience.Call(ctx, s.guard, func(context.Context) ([]store.Entry, error) {
		return store.Collect(s.store, store.Query(didTag, did))
	})
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	ops := make([]storage.Operation, len(entries))
	for i, e := range entries {
		ops[i] = storage.Operation{Key: e.Key}
	}

	return s.guard.Do(ctx, func(context.Context) error {
		return s.store.Batch(ops)
	})
}

func (s *Store) findByDID(ctx context.Context, did string) (*KeyMaterial, error) {
	entries, err := resilience.Call(ctx, s.guard, func(context.Context) ([]store.Entry, error) {
		return store.Collect(s.store, store.Query(didTag, did))
	})
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, did)
	}

	return unmarshal(entries[0].Value)
}

func unmarshal(value []byte) (*KeyMaterial, error) {
	var km KeyMaterial

	if err := json.Unmarshal(value, &km); err != nil {
		return nil, fmt.Errorf("unmarshal key material: %w", err)
	}

	return &km, nil
}
