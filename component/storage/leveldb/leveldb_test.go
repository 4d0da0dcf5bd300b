/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package leveldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/storagetest"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

func TestCommon(t *testing.T) {
	storagetest.TestAll(t, NewProvider(filepath.Join(t.TempDir(), "db")))
}

func TestIndexFollowsOverwrites(t *testing.T) {
	prov := NewProvider(filepath.Join(t.TempDir(), "db"))

	defer func() { require.NoError(t, prov.Close()) }()

	s, err := prov.OpenStore("mediator")
	require.NoError(t, err)

	require.NoError(t, s.Put("did:example:conn", []byte("v1"), storage.Tag{Name: "keylist", Value: "a"}))
	require.NoError(t, s.Put("did:example:conn", []byte("v2"), storage.Tag{Name: "keylist", Value: "b"}))

	it, err := s.Query("keylist:a")
	require.NoError(t, err)

	more, err := it.Next()
	require.NoError(t, err)
	require.False(t, more)

	it, err = s.Query("keylist:b")
	require.NoError(t, err)

	more, err = it.Next()
	require.NoError(t, err)
	require.True(t, more)

	key, err := it.Key()
	require.NoError(t, err)
	require.Equal(t, "did:example:conn", key)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	prov := NewProvider(path)

	s, err := prov.OpenStore("Mediator")
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v"), storage.Tag{Name: "n", Value: "x"}))
	require.NoError(t, prov.Close())

	prov = NewProvider(path)

	defer func() { require.NoError(t, prov.Close()) }()

	s, err = prov.OpenStore("mediator")
	require.NoError(t, err)

	value, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}
