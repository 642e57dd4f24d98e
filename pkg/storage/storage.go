// Package storage implements the plain (non-versioned) transactional
// key-value store: a single RocksDB transaction database, its column
// families, and transactions with nested savepoints over it.
package storage

import (
	"fmt"
	"sync"

	"github.com/mnohosten/ckv/pkg/engine"
	"github.com/mnohosten/ckv/pkg/reader"
)

// Config configures a Storage's on-disk location.
type Config struct {
	// Path is the directory the engine is opened in.
	Path string
	// CreateIfMissing controls whether Open may create a database that
	// does not already exist at Path. Defaults to false (the Go zero
	// value): Open fails rather than silently creating one.
	CreateIfMissing bool
}

// DefaultConfig returns a Config pointing at path, creating the database
// if it does not already exist.
func DefaultConfig(path string) Config {
	return Config{Path: path, CreateIfMissing: true}
}

// Storage is a single RocksDB transaction database plus its column
// families. CreateTransaction, Reader, Checkpoint and Close take an
// internal lock; the manager returned by ColumnFamilies does not, and
// SetColumnFamily updates the engine's handle map without locking.
type Storage struct {
	mu     sync.RWMutex
	cfg    Config
	eng    *engine.Engine
	cf     *ColumnFamilies
	isOpen bool
}

// Open opens the database described by cfg, creating it only if
// cfg.CreateIfMissing is set.
func Open(cfg Config) (*Storage, error) {
	eng, err := engine.Open(engine.Config{Path: cfg.Path, CreateIfMissing: cfg.CreateIfMissing})
	if err != nil {
		return nil, fmt.Errorf("open storage at %q: %w", cfg.Path, err)
	}
	return &Storage{cfg: cfg, eng: eng, cf: newColumnFamilies(eng), isOpen: true}, nil
}

// ColumnFamilies returns the column family manager for this storage.
func (s *Storage) ColumnFamilies() *ColumnFamilies {
	return s.cf
}

// Reader returns a read-only view of the live database, independent of any
// in-flight transaction. Callers must call Close on it once done.
func (s *Storage) Reader() *reader.Reader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader.FromDB(s.eng.DB())
}

// CreateTransaction begins a new pessimistic transaction against the live
// database.
func (s *Storage) CreateTransaction() (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isOpen {
		return nil, fmt.Errorf("storage is closed")
	}
	return newTransaction(s.eng.BeginTransaction()), nil
}

// Checkpoint writes a filesystem-level snapshot of the live database to
// destDir, which must not already exist.
func (s *Storage) Checkpoint(destDir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.Checkpoint(destDir)
}

// Engine exposes the underlying engine for packages (pkg/versioned) that
// need to layer version management on top of a plain Storage.
func (s *Storage) Engine() *engine.Engine {
	return s.eng
}

// OpenExistingTransaction begins a transaction directly against an
// already-open engine, bypassing Storage. Used by pkg/versioned to read a
// past version's checkpoint, which it opens as its own standalone engine
// rather than through a Storage.
func OpenExistingTransaction(eng *engine.Engine) (*Transaction, error) {
	return newTransaction(eng.BeginTransaction()), nil
}

// Close closes the underlying database. Safe to call once.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOpen {
		return nil
	}
	s.isOpen = false
	return s.eng.Close()
}
