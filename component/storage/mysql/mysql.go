/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package mysql is a MySQL storage provider. Each store maps to a record table and a tag table in the database
// named by the connection URL.
package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	// Add as per the documentation - https://github.com/go-sql-driver/mysql
	_ "github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"

	"github.com/adorsys/didcomm-mediator-rs-sub002/spi/storage"
)

const (
	blankDBURLErrMsg = "DB URL for new mySQL DB provider can't be blank"
	tablePrefix      = "t_"
)

var validStoreName = regexp.MustCompile(`^[a-z0-9_]+$`)

// Provider represents a MySQL DB implementation of the storage.Provider interface.
type Provider struct {
	db  *sql.DB
	dbs map[string]*sqlDBStore
	sync.RWMutex
}

// NewProvider instantiates Provider. dbURL is a go-sql-driver DSN such as
// root:my-secret-pw@tcp(127.0.0.1:3306)/mediator.
func NewProvider(dbURL string) (*Provider, error) {
	if dbURL == "" {
		return nil, errors.New(blankDBURLErrMsg)
	}

	db, err := sql.Open("mysql", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	return newProvider(db), nil
}

func newProvider(db *sql.DB) *Provider {
	return &Provider{db: db, dbs: map[string]*sqlDBStore{}}
}

// OpenStore creates the tables of the store on first use.
func (p *Provider) OpenStore(name string) (storage.Store, error) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	if !validStoreName.MatchString(name) {
		return nil, fmt.Errorf("invalid store name %q", name)
	}

	p.Lock()
	defer p.Unlock()

	if s, ok := p.dbs[name]; ok {
		return s, nil
	}

	s := &sqlDBStore{db: p.db, tableName: tablePrefix + name, tagTableName: tablePrefix + name + "_tags"}

	createTableStmt := "CREATE TABLE IF NOT EXISTS " + s.tableName +
		" (`key` VARCHAR(255) NOT NULL, `value` BLOB NOT NULL, PRIMARY KEY (`key`))"
	if _, err := p.db.Exec(createTableStmt); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", s.tableName, err)
	}

	createTagTableStmt := "CREATE TABLE IF NOT EXISTS " + s.tagTableName +
		" (`key` VARCHAR(255) NOT NULL, `name` VARCHAR(255) NOT NULL, `value` VARCHAR(255) NOT NULL," +
		" INDEX (`name`, `value`), INDEX (`key`))"
	if _, err := p.db.Exec(createTagTableStmt); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", s.tagTableName, err)
	}

	p.dbs[name] = s

	return s, nil
}

// Close closes the provider.
func (p *Provider) Close() error {
	p.Lock()
	defer p.Unlock()

	p.dbs = map[string]*sqlDBStore{}

	return p.db.Close()
}

type sqlDBStore struct {
	db           *sql.DB
	tableName    string
	tagTableName string
}

// Put stores the key, the record and its tags.
func (s *sqlDBStore) Put(k string, v []byte, tags ...storage.Tag) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}

	return s.Batch([]storage.Operation{{Key: k, Value: v, Tags: tags}})
}

// Get fetches the record based on key.
func (s *sqlDBStore) Get(k string) ([]byte, error) {
	if k == "" {
		return nil, errors.New("key is mandatory")
	}

	var value []byte

	err := s.db.QueryRow("SELECT `value` FROM "+s.tableName+" WHERE `key` = ?", k).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", k, storage.ErrDataNotFound)
		}

		return nil, pkgerrors.Wrapf(err, "select %s from %s", k, s.tableName)
	}

	return value, nil
}

// GetTags fetches the tags of the record based on key.
func (s *sqlDBStore) GetTags(k string) ([]storage.Tag, error) {
	if _, err := s.Get(k); err != nil {
		return nil, err
	}

	return s.tagsOf(k)
}

func (s *sqlDBStore) tagsOf(k string) ([]storage.Tag, error) {
	rows, err := s.db.Query("SELECT `name`, `value` FROM "+s.tagTableName+" WHERE `key` = ?", k)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "select tags of %s", k)
	}

	defer rows.Close() //nolint:errcheck

	var tags []storage.Tag

	for rows.Next() {
		var tag storage.Tag

		if err = rows.Scan(&tag.Name, &tag.Value); err != nil {
			return nil, pkgerrors.Wrap(err, "scan tag")
		}

		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// Query returns every record tagged as the expression requires, ordered by key.
func (s *sqlDBStore) Query(expression string) (storage.Iterator, error) {
	query, err := storage.ParseQuery(expression)
	if err != nil {
		return nil, err
	}

	var (
		clauses []string
		args    []interface{}
	)

	for _, q := range query {
		clause := "EXISTS (SELECT 1 FROM " + s.tagTableName + " t WHERE t.`key` = d.`key` AND t.`name` = ?"
		args = append(args, q.Name)

		if q.Value != "" {
			clause += " AND t.`value` = ?"

			args = append(args, q.Value)
		}

		clauses = append(clauses, clause+")")
	}

	rows, err := s.db.Query("SELECT d.`key`, d.`value` FROM "+s.tableName+" d WHERE "+
		strings.Join(clauses, " AND ")+" ORDER BY d.`key`", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows %w", err)
	}

	var results []result

	for rows.Next() {
		var r result

		if err = rows.Scan(&r.key, &r.value); err != nil {
			rows.Close() //nolint:errcheck,gosec

			return nil, fmt.Errorf("failed to scan row %w", err)
		}

		results = append(results, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get resulted rows %w", err)
	}

	if err = rows.Close(); err != nil {
		return nil, err
	}

	for i := range results {
		results[i].tags, err = s.tagsOf(results[i].key)
		if err != nil {
			return nil, err
		}
	}

	return &sqlDBResultsIterator{results: results}, nil
}

// Delete will delete record with k key.
func (s *sqlDBStore) Delete(k string) error {
	if k == "" {
		return errors.New("key is mandatory")
	}

	return s.Batch([]storage.Operation{{Key: k}})
}

// Batch applies the operations in one transaction.
func (s *sqlDBStore) Batch(operations []storage.Operation) error {
	if len(operations) == 0 {
		return errors.New("batch requires at least one operation")
	}

	for _, op := range operations {
		if op.Key == "" {
			return errors.New("key is mandatory")
		}

		if err := storage.CheckTags(op.Tags); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err = s.applyBatch(tx, operations); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			return fmt.Errorf("%w (rollback failed: %s)", err, errRollback.Error())
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *sqlDBStore) applyBatch(tx *sql.Tx, operations []storage.Operation) error {
	for _, op := range operations {
		if op.PutOptions != nil && op.PutOptions.IsNewKey {
			var exists int

			err := tx.QueryRow("SELECT COUNT(*) FROM "+s.tableName+" WHERE `key` = ?", op.Key).Scan(&exists)
			if err != nil {
				return pkgerrors.Wrap(err, "check existing key")
			}

			if exists > 0 {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, op.Key)
			}
		}

		if _, err := tx.Exec("DELETE FROM "+s.tagTableName+" WHERE `key` = ?", op.Key); err != nil {
			return fmt.Errorf("failed to delete tags %w", err)
		}

		if op.Value == nil {
			if _, err := tx.Exec("DELETE FROM "+s.tableName+" WHERE `key` = ?", op.Key); err != nil {
				return fmt.Errorf("failed to delete row %w", err)
			}

			continue
		}

		_, err := tx.Exec("INSERT INTO "+s.tableName+" (`key`, `value`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `value` = ?",
			op.Key, op.Value, op.Value)
		if err != nil {
			return fmt.Errorf("failed to insert key and value record into %s %w", s.tableName, err)
		}

		for _, tag := range op.Tags {
			_, err = tx.Exec("INSERT INTO "+s.tagTableName+" (`key`, `name`, `value`) VALUES (?, ?, ?)",
				op.Key, tag.Name, tag.Value)
			if err != nil {
				return fmt.Errorf("failed to insert tag into %s %w", s.tagTableName, err)
			}
		}
	}

	return nil
}

// Close is a no-op; the connection pool belongs to the provider.
func (s *sqlDBStore) Close() error {
	return nil
}

type result struct {
	key   string
	value []byte
	tags  []storage.Tag
}

type sqlDBResultsIterator struct {
	results []result
	current int
}

func (i *sqlDBResultsIterator) Next() (bool, error) {
	if i.current >= len(i.results) {
		return false, nil
	}

	i.current++

	return true, nil
}

func (i *sqlDBResultsIterator) result() (result, error) {
	if i.current == 0 || i.current > len(i.results) {
		return result{}, errors.New("iterator is exhausted")
	}

	return i.results[i.current-1], nil
}

// Key returns the key of the current key-value pair.
func (i *sqlDBResultsIterator) Key() (string, error) {
	r, err := i.result()

	return r.key, err
}

// Value returns the value of the current key-value pair.
func (i *sqlDBResultsIterator) Value() ([]byte, error) {
	r, err := i.result()

	return r.value, err
}

// Tags returns the tags of the current key-value pair.
func (i *sqlDBResultsIterator) Tags() ([]storage.Tag, error) {
	r, err := i.result()

	return r.tags, err
}

func (i *sqlDBResultsIterator) Close() error {
	return nil
}
