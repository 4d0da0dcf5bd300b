/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package mock provides a store that behaves like the in-memory store but whose calls can be made to fail.
package mock

import (
	"fmt"
	"sync"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/storage/mem"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

// StoreProvider hands out MockStores backed by an in-memory provider.
type StoreProvider struct {
	ErrOpenStore  error
	FailNamespace string

	backing *mem.Provider
	stores  map[string]*MockStore
	lock    sync.Mutex
}

// NewStoreProvider returns a provider whose stores work until told otherwise.
func NewStoreProvider() *StoreProvider {
	return &StoreProvider{backing: mem.NewProvider(), stores: map[string]*MockStore{}}
}

// OpenStore opens and returns a store for given name space.
func (p *StoreProvider) OpenStore(name string) (storage.Store, error) {
	if p.ErrOpenStore != nil {
		return nil, p.ErrOpenStore
	}

	if name == p.FailNamespace {
		return nil, fmt.Errorf("failed to open store for name space %s", name)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if s, ok := p.stores[name]; ok {
		return s, nil
	}

	inner, err := p.backing.OpenStore(name)
	if err != nil {
		return nil, err
	}

	s := &MockStore{inner: inner}
	p.stores[name] = s

	return s, nil
}

// Store returns the store opened under name, opening it if needed.
func (p *StoreProvider) Store(name string) *MockStore {
	s, err := p.OpenStore(name)
	if err != nil {
		panic(err)
	}

	return s.(*MockStore) //nolint:forcetypeassert
}

// Close closes the backing provider.
func (p *StoreProvider) Close() error {
	return p.backing.Close()
}

// MockStore forwards to an in-memory store unless an error is set for the operation.
// FailNext injects a run of failures that ends on its own.
type MockStore struct {
	ErrPut    error
	ErrGet    error
	ErrQuery  error
	ErrDelete error
	ErrBatch  error

	inner    storage.Store
	lock     sync.Mutex
	failNext int
	failErr  error
	calls    int
}

// FailNext makes the next n calls return err.
func (s *MockStore) FailNext(n int, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failNext = n
	s.failErr = err
}

// Calls returns how many calls reached the store.
func (s *MockStore) Calls() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.calls
}

func (s *MockStore) check(opErr error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.calls++

	if s.failNext > 0 {
		s.failNext--

		return s.failErr
	}

	return opErr
}

// Put stores the key and the record.
func (s *MockStore) Put(k string, v []byte, tags ...storage.Tag) error {
	if err := s.check(s.ErrPut); err != nil {
		return err
	}

	return s.inner.Put(k, v, tags...)
}

// Get fetches the record based on key.
func (s *MockStore) Get(k string) ([]byte, error) {
	if err := s.check(s.ErrGet); err != nil {
		return nil, err
	}

	return s.inner.Get(k)
}

// GetTags fetches the record tags based on key.
func (s *MockStore) GetTags(k string) ([]storage.Tag, error) {
	if err := s.check(s.ErrGet); err != nil {
		return nil, err
	}

	return s.inner.GetTags(k)
}

// Query returns the records matching expression.
func (s *MockStore) Query(expression string) (storage.Iterator, error) {
	if err := s.check(s.ErrQuery); err != nil {
		return nil, err
	}

	return s.inner.Query(expression)
}

// Delete deletes the record based on key.
func (s *MockStore) Delete(k string) error {
	if err := s.check(s.ErrDelete); err != nil {
		return err
	}

	return s.inner.Delete(k)
}

// Batch applies the operations.
func (s *MockStore) Batch(operations []storage.Operation) error {
	if err := s.check(s.ErrBatch); err != nil {
		return err
	}

	return s.inner.Batch(operations)
}

// Close closes the store.
func (s *MockStore) Close() error {
	return nil
}
