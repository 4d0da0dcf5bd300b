/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package key

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/secrets"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/vdr/fingerprint"
)

type secretsStore interface {
	Put(ctx context.Context, km *secrets.KeyMaterial) error
	Delete(ctx context.Context, did string) error
}

// Creator generates did:key identifiers and keeps their private keys in a secrets store.
type Creator struct {
	secrets secretsStore
	rand    io.Reader
}

// NewCreator returns a Creator saving keys to s.
func NewCreator(s secretsStore) *Creator {
	return &Creator{secrets: s, rand: rand.Reader}
}

// Create generates an X25519 key agreement DID, the kind handed out as routing DID.
func (c *Creator) Create(ctx context.Context) (string, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(c.rand, priv); err != nil {
		return "", fmt.Errorf("generate X25519 key: %w", err)
	}

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive X25519 public key: %w", err)
	}

	didKey, kid := fingerprint.CreateDIDKeyByCode(fingerprint.X25519PubKeyMultiCodec, pub)

	err = c.secrets.Put(ctx, &secrets.KeyMaterial{
		KID:        kid,
		DID:        didKey,
		Type:       secrets.X25519KeyAgreementKey2020,
		PublicKey:  pub,
		PrivateKey: priv,
	})
	if err != nil {
		return "", fmt.Errorf("save key of %s: %w", didKey, err)
	}

	return didKey, nil
}

// Remove deletes the saved keys of did.
func (c *Creator) Remove(ctx context.Context, did string) error {
	return c.secrets.Delete(ctx, did)
}

// CreateEd25519 returns the Ed25519 did:key of seed, or of a random key when seed is empty, and saves its key.
func (c *Creator) CreateEd25519(ctx context.Context, seed []byte) (string, error) {
	if len(seed) == 0 {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := io.ReadFull(c.rand, seed); err != nil {
			return "", fmt.Errorf("generate Ed25519 seed: %w", err)
		}
	}

	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("Ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey) //nolint:forcetypeassert

	didKey, kid := fingerprint.CreateDIDKey(pub)

	err := c.secrets.Put(ctx, &secrets.KeyMaterial{
		KID:        kid,
		DID:        didKey,
		Type:       secrets.Ed25519VerificationKey2020,
		PublicKey:  pub,
		PrivateKey: priv,
	})
	if err != nil {
		return "", fmt.Errorf("save key of %s: %w", didKey, err)
	}

	return didKey, nil
}
