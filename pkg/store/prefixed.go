/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

type prefixedProvider struct {
	storage.Provider
	prefix string
}

// Prefixed returns a provider opening every store of p under prefix, so that several mediators can share one
// database. The SQL providers use store names as table names: prefix must be a valid identifier fragment there.
func Prefixed(p storage.Provider, prefix string) storage.Provider {
	if prefix == "" {
		return p
	}

	return &prefixedProvider{Provider: p, prefix: prefix}
}

func (p *prefixedProvider) OpenStore(name string) (storage.Store, error) {
	return p.Provider.OpenStore(p.prefix + name)
}
