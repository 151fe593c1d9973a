// Package store is the opaque key-value persistence collaborator. The client
// treats it as fire-and-forget; today it only remembers the login token
// across restarts.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Store is the opaque get/set/remove contract the client depends on.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key string, value string) error
	Remove(key string) error
	Close() error
}

// Badger is a Store backed by BadgerDB.
type Badger struct {
	db *badger.DB
}

// Open creates or opens a badger-backed store at path.
func Open(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	// Small-footprint tuning: this store holds a handful of tiny blobs.
	opts.NumMemtables = 2
	opts.NumLevelZeroTables = 2
	opts.NumLevelZeroTablesStall = 3
	opts.NumCompactors = 2
	opts.ValueLogFileSize = 16 << 20
	opts.MemTableSize = 8 << 20
	opts.BlockCacheSize = 8 << 20
	opts.IndexCacheSize = 8 << 20
	opts.CompactL0OnClose = true
	opts.DetectConflicts = false
	opts.SyncWrites = false
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Badger{db: db}, nil
}

// Get returns the blob stored under key, and whether it existed.
func (b *Badger) Get(key string) (string, bool, error) {
	var value string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous blob.
func (b *Badger) Set(key string, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

// Remove deletes the blob under key. Removing a missing key is not an error.
func (b *Badger) Remove(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close releases the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Memory is an in-process Store for tests and callers that opt out of
// persistence.
type Memory struct {
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key string, value string) error {
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	delete(m.values, key)
	return nil
}

func (m *Memory) Close() error { return nil }
