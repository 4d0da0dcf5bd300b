/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vdr resolves DIDs through the method resolvers registered with a Registry.
package vdr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
)

var logger = log.New("didcomm-mediator/vdr")

// Option is a vdr instance option.
type Option func(opts *Registry)

// Registry vdr registry.
type Registry struct {
	vdr []MethodResolver
}

// New return new instance of vdr.
func New(opts ...Option) *Registry {
	baseVDR := &Registry{}

	// Apply options
	for _, opt := range opts {
		opt(baseVDR)
	}

	return baseVDR
}

// WithVDR adds did method implementation for store.
func WithVDR(method MethodResolver) Option {
	return func(opts *Registry) {
		opts.vdr = append(opts.vdr, method)
	}
}

// Resolve did document.
func (r *Registry) Resolve(ctx context.Context, did string) (*Document, error) {
	didMethod, err := GetDidMethod(did)
	if err != nil {
		return nil, err
	}

	// resolve did method
	method, err := r.resolveVDR(didMethod)
	if err != nil {
		return nil, err
	}

	// Obtain the DID Document
	doc, err := method.Resolve(ctx, did)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("did method read failed: %w", err)
	}

	return doc, nil
}

func (r *Registry) resolveVDR(method string) (MethodResolver, error) {
	for _, v := range r.vdr {
		if v.Accept(method) {
			return v, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
}

// GetDidMethod get did method.
func GetDidMethod(didID string) (string, error) {
	const numPartsDID = 3

	didParts := strings.Split(didID, ":")
	if len(didParts) < numPartsDID || didParts[0] != "did" {
		return "", fmt.Errorf("wrong format did input: %s", didID)
	}

	return didParts[1], nil
}

// IsFault reports whether err is a resolver failure rather than an answer about the DID.
func IsFault(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrMethodNotSupported)
}
