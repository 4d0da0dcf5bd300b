/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mem is an in-memory storage provider. Data lives as long as the provider.
package mem

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	spi "github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

var (
	errEmptyKey          = errors.New("key cannot be empty")
	errIteratorExhausted = errors.New("iterator is exhausted")
)

// Provider represents an in-memory implementation of the spi.Provider interface.
type Provider struct {
	dbs  map[string]*memStore
	lock sync.RWMutex
}

// NewProvider instantiates a new in-memory storage Provider.
func NewProvider() *Provider {
	return &Provider{dbs: make(map[string]*memStore)}
}

// OpenStore opens a store with the given name and returns a handle.
// If the store has never been opened before, then it is created.
func (p *Provider) OpenStore(name string) (spi.Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}

	storeName := strings.ToLower(name)

	p.lock.Lock()
	defer p.lock.Unlock()

	store := p.dbs[storeName]
	if store == nil {
		store = &memStore{db: make(map[string]dbEntry)}
		p.dbs[storeName] = store
	}

	return store, nil
}

// Close drops every store created under this provider.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.dbs = make(map[string]*memStore)

	return nil
}

type dbEntry struct {
	value []byte
	tags  []spi.Tag
}

type memStore struct {
	db map[string]dbEntry
	sync.RWMutex
}

// Put stores the key + value pair along with the (optional) tags.
func (m *memStore) Put(key string, value []byte, tags ...spi.Tag) error {
	if key == "" {
		return errEmptyKey
	}

	if value == nil {
		return errors.New("value cannot be nil")
	}

	if err := spi.CheckTags(tags); err != nil {
		return err
	}

	m.Lock()
	defer m.Unlock()

	m.db[key] = newEntry(value, tags)

	return nil
}

// Get fetches the value associated with the given key.
func (m *memStore) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	m.RLock()
	defer m.RUnlock()

	entry, ok := m.db[key]
	if !ok {
		return nil, spi.ErrDataNotFound
	}

	return append([]byte(nil), entry.value...), nil
}

// GetTags fetches all tags associated with the given key.
func (m *memStore) GetTags(key string) ([]spi.Tag, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	m.RLock()
	defer m.RUnlock()

	entry, ok := m.db[key]
	if !ok {
		return nil, spi.ErrDataNotFound
	}

	return append([]spi.Tag(nil), entry.tags...), nil
}

// Query returns a snapshot of all entries matching expression, ordered by key.
func (m *memStore) Query(expression string) (spi.Iterator, error) {
	query, err := spi.ParseQuery(expression)
	if err != nil {
		return nil, err
	}

	m.RLock()
	defer m.RUnlock()

	it := &memIterator{}

	for key, entry := range m.db {
		if spi.MatchesAll(query, entry.tags) {
			it.keys = append(it.keys, key)
		}
	}

	sort.Strings(it.keys)

	for _, key := range it.keys {
		it.dbEntries = append(it.dbEntries, m.db[key])
	}

	return it, nil
}

// Delete deletes the key + value pair (and all tags) associated with key.
func (m *memStore) Delete(k string) error {
	if k == "" {
		return errEmptyKey
	}

	m.Lock()
	defer m.Unlock()

	delete(m.db, k)

	return nil
}

// Batch validates every operation before applying any, under one lock.
func (m *memStore) Batch(operations []spi.Operation) error {
	if len(operations) == 0 {
		return errors.New("batch requires at least one operation")
	}

	m.Lock()
	defer m.Unlock()

	for _, operation := range operations {
		if operation.Key == "" {
			return errEmptyKey
		}

		if err := spi.CheckTags(operation.Tags); err != nil {
			return err
		}

		if operation.PutOptions != nil && operation.PutOptions.IsNewKey {
			if _, exists := m.db[operation.Key]; exists {
				return fmt.Errorf("%w: %s", spi.ErrDuplicateKey, operation.Key)
			}
		}
	}

	for _, operation := range operations {
		if operation.Value == nil {
			delete(m.db, operation.Key)

			continue
		}

		m.db[operation.Key] = newEntry(operation.Value, operation.Tags)
	}

	return nil
}

// Close is a no-op; the data stays with the provider.
func (m *memStore) Close() error {
	return nil
}

func newEntry(value []byte, tags []spi.Tag) dbEntry {
	return dbEntry{
		value: append([]byte(nil), value...),
		tags:  append([]spi.Tag(nil), tags...),
	}
}

// memIterator represents a snapshot of some set of entries in a memStore.
type memIterator struct {
	currentIndex int
	keys         []string
	dbEntries    []dbEntry
}

// Next moves the pointer to the next entry in the iterator. It returns false if the iterator is exhausted.
func (m *memIterator) Next() (bool, error) {
	if m.currentIndex >= len(m.keys) {
		m.currentIndex = len(m.keys) + 1

		return false, nil
	}

	m.currentIndex++

	return true, nil
}

func (m *memIterator) current() (string, dbEntry, error) {
	if m.currentIndex == 0 || m.currentIndex > len(m.keys) {
		return "", dbEntry{}, errIteratorExhausted
	}

	return m.keys[m.currentIndex-1], m.dbEntries[m.currentIndex-1], nil
}

// Key returns the key of the current entry.
func (m *memIterator) Key() (string, error) {
	key, _, err := m.current()

	return key, err
}

// Value returns the value of the current entry.
func (m *memIterator) Value() ([]byte, error) {
	_, entry, err := m.current()

	return entry.value, err
}

// Tags returns the tags associated with the key of the current entry.
func (m *memIterator) Tags() ([]spi.Tag, error) {
	_, entry, err := m.current()

	return entry.tags, err
}

// Close is a no-op, since there's nothing to close for a memIterator.
func (m *memIterator) Close() error {
	return nil
}
