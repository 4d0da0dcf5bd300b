/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package storage is the persistence port of the mediator. Backends live under component/storage.
package storage

import (
	"errors"
	"fmt"
	standardlog "log"
	"strings"

	spi "github.com/adorsys/didcomm-mediator-rs-sub002/spi/log"
)

var (
	// ErrDataNotFound is returned when data is not found.
	ErrDataNotFound = errors.New("data not found")
	// ErrDuplicateKey is returned by Batch when an operation flagged IsNewKey targets an existing key.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidQuery is returned by Query for an expression it cannot parse.
	ErrInvalidQuery = errors.New("invalid query expression")
)

// Tag represents a Name + Value pair that can be associated with a key + value pair for querying later.
// Neither Name nor Value may contain ':'. Several tags of one record may share a Name.
type Tag struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// PutOptions represents options for a Put Operation.
type PutOptions struct {
	// IsNewKey asks the store to fail with ErrDuplicateKey instead of overwriting.
	IsNewKey bool `json:"isNewKey,omitempty"`
}

// Operation represents an operation to be performed in the Batch method.
type Operation struct {
	Key        string      `json:"key,omitempty"`
	Value      []byte      `json:"value,omitempty"` // A nil value will result in a delete operation.
	Tags       []Tag       `json:"tags,omitempty"`
	PutOptions *PutOptions `json:"putOptions,omitempty"`
}

// Provider represents a storage provider.
type Provider interface {
	// OpenStore opens a Store with the given name and returns it.
	// Store names are not case-sensitive. If name is blank, then an error will be returned.
	OpenStore(name string) (Store, error)

	// Close closes all open Stores in this Provider.
	// For persistent Store implementations, this does not delete any data in the underlying databases.
	Close() error
}

// Store represents a storage database.
type Store interface {
	// Put stores the key + value pair along with the (optional) tags. An existing key has its value and tags
	// overwritten. If key is empty or value is nil, then an error will be returned.
	Put(key string, value []byte, tags ...Tag) error

	// Get fetches the value associated with the given key.
	// If key cannot be found, then an error wrapping ErrDataNotFound will be returned.
	Get(key string) ([]byte, error)

	// GetTags fetches all tags associated with the given key.
	// If key cannot be found, then an error wrapping ErrDataNotFound will be returned.
	GetTags(key string) ([]Tag, error)

	// Query returns all data that satisfies the expression. Expression format: TagName:TagValue.
	// If TagValue is not provided, then all data associated with the TagName will be returned.
	// Several pairs joined with && must all match.
	Query(expression string) (Iterator, error)

	// Delete deletes the key + value pair (and all tags) associated with key.
	// Deleting a missing key is not an error.
	Delete(key string) error

	// Batch performs multiple Put and/or Delete operations in order and atomically: either every operation is
	// applied or none is.
	Batch(operations []Operation) error

	// Close closes this store object, freeing resources.
	Close() error
}

// Iterator allows for iteration over a collection of entries in a store.
type Iterator interface {
	// Next moves the pointer to the next entry in the iterator.
	// Note that it must be called before accessing the first entry.
	// It returns false if the iterator is exhausted - this is not considered an error.
	Next() (bool, error)

	// Key returns the key of the current entry.
	Key() (string, error)

	// Value returns the value of the current entry.
	Value() ([]byte, error)

	// Tags returns the tags associated with the key of the current entry.
	Tags() ([]Tag, error)

	// Close closes this iterator object, freeing resources.
	Close() error
}

// ParseQuery splits a query expression into the tags it requires. A tag with an empty Value matches any value.
func ParseQuery(expression string) ([]Tag, error) {
	if expression == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidQuery)
	}

	var tags []Tag

	for _, part := range strings.Split(expression, "&&") {
		split := strings.Split(part, ":")

		switch len(split) {
		case 1:
			tags = append(tags, Tag{Name: split[0]})
		case 2: //nolint:gomnd
			tags = append(tags, Tag{Name: split[0], Value: split[1]})
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, part)
		}

		if tags[len(tags)-1].Name == "" {
			return nil, fmt.Errorf("%w: missing tag name in %s", ErrInvalidQuery, part)
		}
	}

	return tags, nil
}

// CheckTags rejects tag names or values containing ':'.
func CheckTags(tags []Tag) error {
	for _, tag := range tags {
		if tag.Name == "" || strings.Contains(tag.Name, ":") {
			return fmt.Errorf("%q is an invalid tag name", tag.Name)
		}

		if strings.Contains(tag.Value, ":") {
			return fmt.Errorf("%q is an invalid tag value since it contains one or more ':' characters", tag.Value)
		}
	}

	return nil
}

// MatchesAll reports whether tags satisfies every query tag.
func MatchesAll(query, tags []Tag) bool {
	for _, q := range query {
		found := false

		for _, t := range tags {
			if t.Name == q.Name && (q.Value == "" || t.Value == q.Value) {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

// Close closes iterator and logs any error that occurs.
// Is logger is nil, then the standard Go logger will be used.
func Close(iterator Iterator, logger spi.Logger) {
	errClose := iterator.Close()
	if errClose != nil {
		if logger == nil {
			standardlog.Printf("failed to close iterator: %s", errClose.Error())
		} else {
			logger.Errorf("failed to close iterator: %s", errClose.Error())
		}
	}
}
