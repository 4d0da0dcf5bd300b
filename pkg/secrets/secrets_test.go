/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mock"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/resilience"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/store"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	guard := store.NewGuard("secrets", resilience.RetryPolicy{MaxAttempts: 1})

	km := &KeyMaterial{
		KID:        "did:key:z6LSabc#z6LSabc",
		DID:        "did:key:z6LSabc",
		Type:       X25519KeyAgreementKey2020,
		PublicKey:  []byte{1, 2, 3},
		PrivateKey: []byte{4, 5, 6},
	}

	t.Run("put and find", func(t *testing.T) {
		s, err := New(mem.NewProvider(), guard)
		require.NoError(t, err)

		require.NoError(t, s.Put(ctx, km))

		got, err := s.Find(ctx, km.KID)
		require.NoError(t, err)
		require.Equal(t, km, got)

		got, err = s.Find(ctx, km.DID)
		require.NoError(t, err)
		require.Equal(t, km.KID, got.KID)

		_, err = s.Find(ctx, "did:key:z6LSother#z6LSother")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = s.Find(ctx, "did:key:z6LSother")
		require.ErrorIs(t, err, ErrNotFound)

		require.Error(t, s.Put(ctx, &KeyMaterial{}))
	})

	t.Run("delete", func(t *testing.T) {
		s, err := New(mem.NewProvider(), guard)
		require.NoError(t, err)

		require.NoError(t, s.Put(ctx, km))
		require.NoError(t, s.Delete(ctx, km.DID))

		_, err = s.Find(ctx, km.KID)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Delete(ctx, km.DID))
	})

	t.Run("storage errors", func(t *testing.T) {
		p := mock.NewStoreProvider()

		s, err := New(p, guard)
		require.NoError(t, err)

		p.Store(Namespace).ErrPut = errors.New("put failed")
		require.ErrorContains(t, s.Put(ctx, km), "put failed")

		p.Store(Namespace).ErrGet = errors.New("get failed")
		_, err = s.Find(ctx, km.KID)
		require.ErrorContains(t, err, "get failed")

		p.Store(Namespace).ErrQuery = errors.New("query failed")
		require.ErrorContains(t, s.Delete(ctx, km.DID), "query failed")

		p.FailNamespace = Namespace
		_, err = New(p, guard)
		require.Error(t, err)
	})
}
