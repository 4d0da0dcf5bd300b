/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sqlite is a storage provider over a single SQLite database file. Each store is a pair of tables
// holding the records and their tags.
package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/adorsys/didcomm-mediator-rs-sub002/component/log"
	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

var logger = log.New("didcomm-mediator/storage/sqlite")

const minPoolSize = 4

var validStoreName = regexp.MustCompile(`^[a-z0-9_]+$`)

// Provider is a SQLite implementation of the storage.Provider interface.
type Provider struct {
	pool *sqlitex.Pool
	path string
	dbs  map[string]*store
	lock sync.Mutex
}

// NewProvider opens (creating if needed) the database file at path. poolSize <= 0 picks a size from the CPU count.
func NewProvider(path string, poolSize int) (*Provider, error) {
	if path == "" {
		return nil, errors.New("sqlite database path is required")
	}

	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < minPoolSize {
			poolSize = minPoolSize
		}
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite database %s", path)
	}

	logger.Debugf("sqlite pool opened path=[%s] size=[%d]", path, poolSize)

	return &Provider{pool: pool, path: path, dbs: map[string]*store{}}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return errors.Wrap(err, pragma)
		}
	}

	return nil
}

// OpenStore creates the tables of the store on first use.
func (p *Provider) OpenStore(name string) (storage.Store, error) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	if !validStoreName.MatchString(name) {
		return nil, fmt.Errorf("invalid store name %q", name)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if s, ok := p.dbs[name]; ok {
		return s, nil
	}

	s := &store{pool: p.pool, data: name + "_data", tags: name + "_tags"}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (key TEXT PRIMARY KEY, value BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS %[2]s (key TEXT NOT NULL, name TEXT NOT NULL, value TEXT NOT NULL);
CREATE INDEX IF NOT EXISTS %[2]s_name_value ON %[2]s (name, value);
CREATE INDEX IF NOT EXISTS %[2]s_key ON %[2]s (key);
`, s.data, s.tags)

	err := s.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create tables for store %s", name)
	}

	p.dbs[name] = s

	return s, nil
}

// Close closes the connection pool. Blocks until borrowed connections are returned.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.dbs = map[string]*store{}

	if err := p.pool.Close(); err != nil {
		return errors.Wrapf(err, "close sqlite database %s", p.path)
	}

	return nil
}

type store struct {
	pool *sqlitex.Pool
	data string
	tags string
}

func (s *store) withConn(fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return errors.Wrap(err, "take sqlite connection")
	}

	defer s.pool.Put(conn)

	return fn(conn)
}

func (s *store) Put(key string, value []byte, tags ...storage.Tag) error {
	if value == nil {
		return errors.New("value cannot be nil")
	}

	return s.Batch([]storage.Operation{{Key: key, Value: value, Tags: tags}})
}

func (s *store) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be blank")
	}

	var (
		value []byte
		found bool
	)

	err := s.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM "+s.data+" WHERE key = ?", &sqlitex.ExecOptions{
			Args: []interface{}{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, value)
				found = true

				return nil
			},
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}

	if !found {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrDataNotFound)
	}

	return value, nil
}

func (s *store) GetTags(key string) ([]storage.Tag, error) {
	if _, err := s.Get(key); err != nil {
		return nil, err
	}

	var tags []storage.Tag

	err := s.withConn(func(conn *sqlite.Conn) error {
		var err error

		tags, err = s.loadTags(conn, key)

		return err
	})

	return tags, err
}

func (s *store) loadTags(conn *sqlite.Conn, key string) ([]storage.Tag, error) {
	var tags []storage.Tag

	err := sqlitex.Execute(conn, "SELECT name, value FROM "+s.tags+" WHERE key = ? ORDER BY rowid",
		&sqlitex.ExecOptions{
			Args: []interface{}{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tags = append(tags, storage.Tag{Name: stmt.ColumnText(0), Value: stmt.ColumnText(1)})

				return nil
			},
		})
	if err != nil {
		return nil, errors.Wrapf(err, "load tags of %s", key)
	}

	return tags, nil
}

func (s *store) Query(expression string) (storage.Iterator, error) {
	query, err := storage.ParseQuery(expression)
	if err != nil {
		return nil, err
	}

	var (
		clauses []string
		args    []interface{}
	)

	for _, q := range query {
		clause := "EXISTS (SELECT 1 FROM " + s.tags + " t WHERE t.key = d.key AND t.name = ?"
		args = append(args, q.Name)

		if q.Value != "" {
			clause += " AND t.value = ?"

			args = append(args, q.Value)
		}

		clauses = append(clauses, clause+")")
	}

	sqlQuery := "SELECT d.key, d.value FROM " + s.data + " d WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY d.key"

	result := &iterator{}

	err = s.withConn(func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, sqlQuery, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, value)

				result.rows = append(result.rows, row{key: stmt.ColumnText(0), value: value})

				return nil
			},
		})
		if err != nil {
			return err
		}

		for i := range result.rows {
			result.rows[i].tags, err = s.loadTags(conn, result.rows[i].key)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", expression)
	}

	sort.Slice(result.rows, func(i, j int) bool { return result.rows[i].key < result.rows[j].key })

	return result, nil
}

func (s *store) Delete(key string) error {
	if key == "" {
		return errors.New("key cannot be blank")
	}

	return s.Batch([]storage.Operation{{Key: key}})
}

// Batch applies all operations inside one immediate transaction.
func (s *store) Batch(operations []storage.Operation) error {
	if len(operations) == 0 {
		return errors.New("batch requires at least one operation")
	}

	for _, op := range operations {
		if op.Key == "" {
			return errors.New("key cannot be blank")
		}

		if err := storage.CheckTags(op.Tags); err != nil {
			return err
		}
	}

	return s.withConn(func(conn *sqlite.Conn) error {
		return s.applyBatch(conn, operations)
	})
}

func (s *store) applyBatch(conn *sqlite.Conn, operations []storage.Operation) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer endTransaction(&err)

	for _, op := range operations {
		if op.PutOptions != nil && op.PutOptions.IsNewKey {
			exists := false

			err = sqlitex.Execute(conn, "SELECT 1 FROM "+s.data+" WHERE key = ?", &sqlitex.ExecOptions{
				Args:       []interface{}{op.Key},
				ResultFunc: func(*sqlite.Stmt) error { exists = true; return nil },
			})
			if err != nil {
				return err
			}

			if exists {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, op.Key)
			}
		}

		if err = sqlitex.Execute(conn, "DELETE FROM "+s.tags+" WHERE key = ?",
			&sqlitex.ExecOptions{Args: []interface{}{op.Key}}); err != nil {
			return err
		}

		if op.Value == nil {
			if err = sqlitex.Execute(conn, "DELETE FROM "+s.data+" WHERE key = ?",
				&sqlitex.ExecOptions{Args: []interface{}{op.Key}}); err != nil {
				return err
			}

			continue
		}

		if err = sqlitex.Execute(conn,
			"INSERT INTO "+s.data+" (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			&sqlitex.ExecOptions{Args: []interface{}{op.Key, op.Value}}); err != nil {
			return err
		}

		for _, tag := range op.Tags {
			if err = sqlitex.Execute(conn, "INSERT INTO "+s.tags+" (key, name, value) VALUES (?, ?, ?)",
				&sqlitex.ExecOptions{Args: []interface{}{op.Key, tag.Name, tag.Value}}); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *store) Close() error {
	return nil
}

type row struct {
	key   string
	value []byte
	tags  []storage.Tag
}

type iterator struct {
	rows    []row
	current int
}

func (i *iterator) Next() (bool, error) {
	if i.current >= len(i.rows) {
		return false, nil
	}

	i.current++

	return true, nil
}

func (i *iterator) row() (row, error) {
	if i.current == 0 || i.current > len(i.rows) {
		return row{}, errors.New("iterator is exhausted")
	}

	return i.rows[i.current-1], nil
}

func (i *iterator) Key() (string, error) {
	r, err := i.row()

	return r.key, err
}

func (i *iterator) Value() ([]byte, error) {
	r, err := i.row()

	return r.value, err
}

func (i *iterator) Tags() ([]storage.Tag, error) {
	r, err := i.row()

	return r.tags, err
}

func (i *iterator) Close() error {
	return nil
}
