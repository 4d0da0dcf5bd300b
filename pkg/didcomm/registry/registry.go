/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registry maps DIDComm message types to the protocol that handles them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/didcomm/common/model"
)

var logger = log.New("didcomm-mediator/registry")

var (
	// ErrDuplicateEntry is returned when two protocols share a name or a message type.
	ErrDuplicateEntry = errors.New("duplicate registry entry")
	// ErrUnloaded is returned by Dispatch before a successful Load.
	ErrUnloaded = errors.New("protocol registry is not loaded")
	// ErrUnknownType is returned by Dispatch for a message type no protocol handles.
	ErrUnknownType = errors.New("no protocol handles message type")
)

// Protocol handles the message types of one DIDComm protocol.
type Protocol interface {
	Name() string
	Accept(msgType string) bool
	MessageTypes() []string
	Handle(ctx context.Context, msg *model.Message) (*model.Message, error)
}

type table struct {
	handlers  map[string]Protocol
	protocols []string
}

// Registry dispatches messages to loaded protocols. The zero value is an unloaded registry.
type Registry struct {
	current atomic.Pointer[table]
}

// New returns an unloaded registry.
func New() *Registry {
	return &Registry{}
}

// Load replaces the loaded protocols with plugins. On error the previous table stays in place.
func (r *Registry) Load(plugins ...Protocol) error {
	t := &table{handlers: map[string]Protocol{}}
	names := map[string]struct{}{}

	for _, p := range plugins {
		if p == nil {
			return errors.New("registry: nil protocol")
		}

		if _, ok := names[p.Name()]; ok {
			return fmt.Errorf("%w: protocol %s", ErrDuplicateEntry, p.Name())
		}

		names[p.Name()] = struct{}{}
		t.protocols = append(t.protocols, p.Name())

		for _, msgType := range p.MessageTypes() {
			if other, ok := t.handlers[msgType]; ok {
				return fmt.Errorf("%w: message type %s of %s already handled by %s",
					ErrDuplicateEntry, msgType, p.Name(), other.Name())
			}

			t.handlers[msgType] = p
		}
	}

	sort.Strings(t.protocols)

	r.current.Store(t)

	logger.Infof("protocol registry loaded: %v", t.protocols)

	return nil
}

// Unload removes every protocol. Dispatch fails with ErrUnloaded until the next Load.
func (r *Registry) Unload() {
	r.current.Store(nil)
}

// Loaded reports whether a table is in place.
func (r *Registry) Loaded() bool {
	return r.current.Load() != nil
}

// Protocols returns the names of the loaded protocols, sorted.
func (r *Registry) Protocols() []string {
	t := r.current.Load()
	if t == nil {
		return nil
	}

	return append([]string(nil), t.protocols...)
}

// MessageTypes returns every message type the loaded protocols handle, sorted.
func (r *Registry) MessageTypes() []string {
	t := r.current.Load()
	if t == nil {
		return nil
	}

	types := make([]string, 0, len(t.handlers))
	for msgType := range t.handlers {
		types = append(types, msgType)
	}

	sort.Strings(types)

	return types
}

// Dispatch hands msg to the protocol of msgType and returns what it returns.
func (r *Registry) Dispatch(ctx context.Context, msgType string, msg *model.Message) (*model.Message, error) {
	t := r.current.Load()
	if t == nil {
		return nil, ErrUnloaded
	}

	p, ok := t.handlers[msgType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}

	return p.Handle(ctx, msg)
}
