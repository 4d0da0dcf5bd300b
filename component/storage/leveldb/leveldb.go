/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package leveldb is a LevelDB storage provider. Each store is its own database directory.
//
// Records are kept under "d:<key>" and every tag adds an index entry "t:<name>:<value>:<key>". Tag names and values
// cannot contain ':' so the index prefix is unambiguous even though keys may.
package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

const (
	pathPattern = "%s-%s"
	dataPrefix  = "d:"
	tagPrefix   = "t:"
)

// Provider is a LevelDB implementation of the storage.Provider interface.
type Provider struct {
	dbPath string
	dbs    map[string]*store
	lock   sync.RWMutex
}

type dbEntry struct {
	Value []byte        `json:"value,omitempty"`
	Tags  []storage.Tag `json:"tags,omitempty"`
}

// NewProvider instantiates Provider. Stores are created as directories named "<dbPath>-<store name>".
func NewProvider(dbPath string) *Provider {
	return &Provider{dbs: make(map[string]*store), dbPath: dbPath}
}

// OpenStore opens and returns a store for given name space.
func (p *Provider) OpenStore(name string) (storage.Store, error) {
	if name == "" {
		return nil, errors.New("store name cannot be blank")
	}

	name = strings.ToLower(name)

	p.lock.Lock()
	defer p.lock.Unlock()

	if s, ok := p.dbs[name]; ok {
		return s, nil
	}

	db, err := leveldb.OpenFile(fmt.Sprintf(pathPattern, p.dbPath, name), nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb store %s: %w", name, err)
	}

	s := &store{db: db, name: name}
	p.dbs[name] = s

	return s, nil
}

// Close closes all open stores.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	for name, s := range p.dbs {
		if err := s.db.Close(); err != nil && !errors.Is(err, leveldb.ErrClosed) {
			return fmt.Errorf(`failed to close open store with name "%s": %w`, name, err)
		}

		delete(p.dbs, name)
	}

	return nil
}

type store struct {
	db   *leveldb.DB
	name string
	// serializes writers so that index maintenance sees a stable previous entry
	lock sync.Mutex
}

func (s *store) Put(key string, value []byte, tags ...storage.Tag) error {
	if value == nil {
		return errors.New("value cannot be nil")
	}

	return s.Batch([]storage.Operation{{Key: key, Value: value, Tags: tags}})
}

func (s *store) Get(key string) ([]byte, error) {
	entry, err := s.getDBEntry(key)
	if err != nil {
		return nil, err
	}

	return entry.Value, nil
}

func (s *store) GetTags(key string) ([]storage.Tag, error) {
	entry, err := s.getDBEntry(key)
	if err != nil {
		return nil, err
	}

	return entry.Tags, nil
}

func (s *store) Query(expression string) (storage.Iterator, error) {
	query, err := storage.ParseQuery(expression)
	if err != nil {
		return nil, err
	}

	// the first pair narrows the candidates through the index, the rest are checked against the entry
	prefix := tagPrefix + query[0].Name + ":"
	if query[0].Value != "" {
		prefix += query[0].Value + ":"
	}

	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()

	candidates := map[string]struct{}{}

	for it.Next() {
		// t:<name>:<value>:<key>
		parts := strings.SplitN(string(it.Key()), ":", 4) //nolint:gomnd
		if len(parts) == 4 {                               //nolint:gomnd
			candidates[parts[3]] = struct{}{}
		}
	}

	if err = it.Error(); err != nil {
		return nil, fmt.Errorf("iterate tag index: %w", err)
	}

	result := &iterator{}

	for key := range candidates {
		entry, err := s.getDBEntry(key)
		if errors.Is(err, storage.ErrDataNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		if storage.MatchesAll(query, entry.Tags) {
			result.keys = append(result.keys, key)
			result.entries = append(result.entries, entry)
		}
	}

	sort.Sort(result)

	return result, nil
}

func (s *store) Delete(key string) error {
	if key == "" {
		return errors.New("key cannot be blank")
	}

	return s.Batch([]storage.Operation{{Key: key}})
}

// Batch writes all operations, together with their index changes, as one leveldb.Batch.
func (s *store) Batch(operations []storage.Operation) error {
	if len(operations) == 0 {
		return errors.New("batch requires at least one operation")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	batch := new(leveldb.Batch)
	// entries as they will look after the preceding operations of this batch
	pending := map[string]*dbEntry{}

	for _, op := range operations {
		if op.Key == "" {
			return errors.New("key cannot be blank")
		}

		if err := storage.CheckTags(op.Tags); err != nil {
			return err
		}

		previous, exists := pending[op.Key]
		if !exists {
			entry, err := s.getDBEntry(op.Key)

			switch {
			case err == nil:
				previous = &entry
			case errors.Is(err, storage.ErrDataNotFound):
			default:
				return err
			}
		}

		if previous != nil {
			if op.PutOptions != nil && op.PutOptions.IsNewKey {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, op.Key)
			}

			for _, tag := range previous.Tags {
				batch.Delete(indexKey(tag, op.Key))
			}
		}

		if op.Value == nil {
			batch.Delete([]byte(dataPrefix + op.Key))
			pending[op.Key] = nil

			continue
		}

		entry := &dbEntry{Value: op.Value, Tags: op.Tags}

		entryBytes, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal new DB entry: %w", err)
		}

		batch.Put([]byte(dataPrefix+op.Key), entryBytes)

		for _, tag := range op.Tags {
			batch.Put(indexKey(tag, op.Key), nil)
		}

		pending[op.Key] = entry
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write batch to %s: %w", s.name, err)
	}

	return nil
}

func (s *store) Close() error {
	return nil
}

func (s *store) getDBEntry(key string) (dbEntry, error) {
	if key == "" {
		return dbEntry{}, errors.New("key cannot be blank")
	}

	raw, err := s.db.Get([]byte(dataPrefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return dbEntry{}, fmt.Errorf("%s: %w", key, storage.ErrDataNotFound)
		}

		return dbEntry{}, err
	}

	var entry dbEntry

	if err = json.Unmarshal(raw, &entry); err != nil {
		return dbEntry{}, fmt.Errorf("failed to unmarshal retrieved DB entry: %w", err)
	}

	return entry, nil
}

func indexKey(tag storage.Tag, key string) []byte {
	return []byte(tagPrefix + tag.Name + ":" + tag.Value + ":" + key)
}

type iterator struct {
	keys         []string
	entries      []dbEntry
	currentIndex int
}

func (i *iterator) Len() int           { return len(i.keys) }
func (i *iterator) Less(a, b int) bool { return i.keys[a] < i.keys[b] }
func (i *iterator) Swap(a, b int) {
	i.keys[a], i.keys[b] = i.keys[b], i.keys[a]
	i.entries[a], i.entries[b] = i.entries[b], i.entries[a]
}

func (i *iterator) Next() (bool, error) {
	if i.currentIndex >= len(i.keys) {
		return false, nil
	}

	i.currentIndex++

	return true, nil
}

func (i *iterator) Key() (string, error) {
	if i.currentIndex == 0 || i.currentIndex > len(i.keys) {
		return "", errors.New("iterator is exhausted")
	}

	return i.keys[i.currentIndex-1], nil
}

func (i *iterator) Value() ([]byte, error) {
	if i.currentIndex == 0 || i.currentIndex > len(i.keys) {
		return nil, errors.New("iterator is exhausted")
	}

	return i.entries[i.currentIndex-1].Value, nil
}

func (i *iterator) Tags() ([]storage.Tag, error) {
	if i.currentIndex == 0 || i.currentIndex > len(i.keys) {
		return nil, errors.New("iterator is exhausted")
	}

	return i.entries[i.currentIndex-1].Tags, nil
}

func (i *iterator) Close() error {
	return nil
}
