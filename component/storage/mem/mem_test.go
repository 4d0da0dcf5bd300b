/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mem_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/storagetest"
	spi "github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

func TestCommon(t *testing.T) {
	storagetest.TestAll(t, mem.NewProvider())
}

func TestIteratorBeforeNext(t *testing.T) {
	store, err := mem.NewProvider().OpenStore("iter")
	require.NoError(t, err)

	require.NoError(t, store.Put("k", []byte("v"), spi.Tag{Name: "t"}))

	it, err := store.Query("t")
	require.NoError(t, err)

	_, err = it.Key()
	require.EqualError(t, err, "iterator is exhausted")
}
