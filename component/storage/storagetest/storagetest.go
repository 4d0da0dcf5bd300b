/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package storagetest holds the behaviour every storage provider must share. Providers call TestAll from their
// own tests.
package storagetest

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	spi "github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

// TestAll tests common storage functionality.
// These tests demonstrate behaviour that is expected to be consistent across store implementations.
func TestAll(t *testing.T, provider spi.Provider) {
	t.Run("Store", func(t *testing.T) {
		t.Run("Put and Get", func(t *testing.T) {
			TestPutGet(t, provider)
		})
		t.Run("GetTags", func(t *testing.T) {
			TestStoreGetTags(t, provider)
		})
		t.Run("Delete", func(t *testing.T) {
			TestStoreDelete(t, provider)
		})
		t.Run("Query", func(t *testing.T) {
			TestStoreQuery(t, provider)
		})
		t.Run("Batch", func(t *testing.T) {
			TestStoreBatch(t, provider)
		})
	})
	// Run this last since it may render the provider object unusable afterwards, depending on the implementation.
	t.Run("Provider: close", func(t *testing.T) {
		require.NoError(t, provider.Close())
	})
}

// TestPutGet tests common Store Put and Get functionality.
func TestPutGet(t *testing.T, provider spi.Provider) {
	store, err := provider.OpenStore(randomStoreName())
	require.NoError(t, err)

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, store.Put("did:example:alice", []byte("value")))

		value, err := store.Get("did:example:alice")
		require.NoError(t, err)
		require.Equal(t, []byte("value"), value)
	})

	t.Run("put overwrites value and tags", func(t *testing.T) {
		require.NoError(t, store.Put("k", []byte("one"), spi.Tag{Name: "old"}))
		require.NoError(t, store.Put("k", []byte("two"), spi.Tag{Name: "new", Value: "v"}))

		value, err := store.Get("k")
		require.NoError(t, err)
		require.Equal(t, []byte("two"), value)

		tags, err := store.GetTags("k")
		require.NoError(t, err)
		require.Equal(t, []spi.Tag{{Name: "new", Value: "v"}}, tags)
	})

	t.Run("same store name shares data", func(t *testing.T) {
		name := randomStoreName()

		first, err := provider.OpenStore(name)
		require.NoError(t, err)
		require.NoError(t, first.Put("shared", []byte("x")))

		second, err := provider.OpenStore(name)
		require.NoError(t, err)

		value, err := second.Get("shared")
		require.NoError(t, err)
		require.Equal(t, []byte("x"), value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get("missing")
		require.True(t, errors.Is(err, spi.ErrDataNotFound), "got %v", err)
	})

	t.Run("invalid input", func(t *testing.T) {
		require.Error(t, store.Put("", []byte("v")))
		require.Error(t, store.Put("k", nil))
		require.Error(t, store.Put("k", []byte("v"), spi.Tag{Name: "n", Value: "did:example:1"}))

		_, err := store.Get("")
		require.Error(t, err)
	})

	_, err = provider.OpenStore("")
	require.Error(t, err)
}

// TestStoreGetTags tests common Store GetTags functionality.
func TestStoreGetTags(t *testing.T, provider spi.Provider) {
	store, err := provider.OpenStore(randomStoreName())
	require.NoError(t, err)

	tags := []spi.Tag{{Name: "keylist", Value: "a"}, {Name: "keylist", Value: "b"}, {Name: "client"}}
	require.NoError(t, store.Put("conn", []byte("{}"), tags...))

	got, err := store.GetTags("conn")
	require.NoError(t, err)
	require.ElementsMatch(t, tags, got)

	_, err = store.GetTags("missing")
	require.True(t, errors.Is(err, spi.ErrDataNotFound), "got %v", err)
}

// TestStoreDelete tests common Store Delete functionality.
func TestStoreDelete(t *testing.T, provider spi.Provider) {
	store, err := provider.OpenStore(randomStoreName())
	require.NoError(t, err)

	require.NoError(t, store.Put("k", []byte("v"), spi.Tag{Name: "t"}))
	require.NoError(t, store.Delete("k"))

	_, err = store.Get("k")
	require.True(t, errors.Is(err, spi.ErrDataNotFound), "got %v", err)

	it, err := store.Query("t")
	require.NoError(t, err)
	require.Empty(t, collectKeys(t, it))

	require.NoError(t, store.Delete("never-existed"))
	require.Error(t, store.Delete(""))
}

// TestStoreQuery tests common Store Query functionality.
func TestStoreQuery(t *testing.T, provider spi.Provider) {
	store, err := provider.OpenStore(randomStoreName())
	require.NoError(t, err)

	require.NoError(t, store.Put("m1", []byte("1"), spi.Tag{Name: "recipient", Value: "alice"}))
	require.NoError(t, store.Put("m2", []byte("2"), spi.Tag{Name: "recipient", Value: "bob"}))
	require.NoError(t, store.Put("m3", []byte("3"), spi.Tag{Name: "recipient", Value: "alice"},
		spi.Tag{Name: "urgent"}))
	require.NoError(t, store.Put("c1", []byte("c"), spi.Tag{Name: "keylist", Value: "k1"},
		spi.Tag{Name: "keylist", Value: "k2"}))

	t.Run("name and value", func(t *testing.T) {
		it, err := store.Query("recipient:alice")
		require.NoError(t, err)
		require.Equal(t, []string{"m1", "m3"}, collectKeys(t, it))
	})

	t.Run("name only", func(t *testing.T) {
		it, err := store.Query("recipient")
		require.NoError(t, err)
		require.Equal(t, []string{"m1", "m2", "m3"}, collectKeys(t, it))
	})

	t.Run("AND", func(t *testing.T) {
		it, err := store.Query("recipient:alice&&urgent")
		require.NoError(t, err)
		require.Equal(t, []string{"m3"}, collectKeys(t, it))
	})

	t.Run("repeated tag name", func(t *testing.T) {
		it, err := store.Query("keylist:k2")
		require.NoError(t, err)
		require.Equal(t, []string{"c1"}, collectKeys(t, it))
	})

	t.Run("values and tags through iterator", func(t *testing.T) {
		it, err := store.Query("recipient:bob")
		require.NoError(t, err)

		defer spi.Close(it, nil)

		more, err := it.Next()
		require.NoError(t, err)
		require.True(t, more)

		value, err := it.Value()
		require.NoError(t, err)
		require.Equal(t, []byte("2"), value)

		tags, err := it.Tags()
		require.NoError(t, err)
		require.Equal(t, []spi.Tag{{Name: "recipient", Value: "bob"}}, tags)

		more, err = it.Next()
		require.NoError(t, err)
		require.False(t, more)
	})

	t.Run("no match", func(t *testing.T) {
		it, err := store.Query("recipient:carol")
		require.NoError(t, err)
		require.Empty(t, collectKeys(t, it))
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := store.Query("")
		require.Error(t, err)

		_, err = store.Query("a:b:c")
		require.Error(t, err)
	})
}

// TestStoreBatch tests common Store Batch functionality.
func TestStoreBatch(t *testing.T, provider spi.Provider) {
	store, err := provider.OpenStore(randomStoreName())
	require.NoError(t, err)

	require.NoError(t, store.Put("stale", []byte("x")))

	err = store.Batch([]spi.Operation{
		{Key: "a", Value: []byte("1"), Tags: []spi.Tag{{Name: "group", Value: "g"}}},
		{Key: "b", Value: []byte("2"), Tags: []spi.Tag{{Name: "group", Value: "g"}}},
		{Key: "stale"},
	})
	require.NoError(t, err)

	it, err := store.Query("group:g")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, collectKeys(t, it))

	_, err = store.Get("stale")
	require.True(t, errors.Is(err, spi.ErrDataNotFound), "got %v", err)

	t.Run("new key conflict applies nothing", func(t *testing.T) {
		err = store.Batch([]spi.Operation{
			{Key: "c", Value: []byte("3")},
			{Key: "a", Value: []byte("overwrite"), PutOptions: &spi.PutOptions{IsNewKey: true}},
		})
		require.True(t, errors.Is(err, spi.ErrDuplicateKey), "got %v", err)

		_, err = store.Get("c")
		require.True(t, errors.Is(err, spi.ErrDataNotFound), "got %v", err)

		value, err := store.Get("a")
		require.NoError(t, err)
		require.Equal(t, []byte("1"), value)
	})

	require.Error(t, store.Batch(nil))
	require.Error(t, store.Batch([]spi.Operation{{Key: ""}}))
}

func collectKeys(t *testing.T, it spi.Iterator) []string {
	t.Helper()

	defer spi.Close(it, nil)

	var keys []string

	for {
		more, err := it.Next()
		require.NoError(t, err)

		if !more {
			break
		}

		key, err := it.Key()
		require.NoError(t, err)

		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func randomStoreName() string {
	return "store_" + uuid.New().String()[:8]
}
