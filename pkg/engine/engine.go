// Package engine adapts github.com/linxGnu/grocksdb's pessimistic
// TransactionDB into the small surface the rest of ckv depends on:
// multi-CF open, transactions with native savepoints, filesystem
// checkpoints, and CF-scoped iteration. Databases are opened, transactions
// begun and checkpoints created only here; other packages still import
// grocksdb for column family handles and iterators, and pkg/reader reads a
// TransactionDB directly.
package engine

import (
	"os"
	"path/filepath"

	"github.com/linxGnu/grocksdb"
	"github.com/rs/zerolog/log"

	"github.com/mnohosten/ckv/pkg/kverr"
)

// DefaultCF is the column family every RocksDB database has implicitly.
const DefaultCF = "default"

// Engine owns one open RocksDB TransactionDB and its column family handles.
type Engine struct {
	path      string
	opts      *grocksdb.Options
	txnDBOpts *grocksdb.TransactionDBOptions
	db        *grocksdb.TransactionDB
	cfs       map[string]*grocksdb.ColumnFamilyHandle
}

// Config configures where and how Open opens a TransactionDB.
type Config struct {
	// Path is the directory the database lives in.
	Path string
	// CreateIfMissing controls whether Open may create a database that
	// does not already exist at Path. If false and no database exists
	// there, Open fails instead of creating one.
	CreateIfMissing bool
}

// Open opens a TransactionDB at cfg.Path, creating it (and its default
// column family) only if cfg.CreateIfMissing is set. If the path already
// contains a database, every column family it was last closed with is
// discovered and reopened regardless of CreateIfMissing.
func Open(cfg Config) (*Engine, error) {
	path := cfg.Path
	exists := dbExists(path)
	if !exists && !cfg.CreateIfMissing {
		return nil, kverr.Newf(kverr.NotFound, "database at %q does not exist and create_if_missing is false", path)
	}

	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(cfg.CreateIfMissing)
	opts.SetCreateIfMissingColumnFamilies(cfg.CreateIfMissing)
	txnDBOpts := grocksdb.NewDefaultTransactionDBOptions()

	names, err := discoverColumnFamilies(path, opts)
	if err != nil {
		return nil, kverr.Wrap(kverr.Engine, "list column families", err)
	}

	cfOpts := make([]*grocksdb.Options, len(names))
	for i := range names {
		cfOpts[i] = opts
	}

	db, handles, err := grocksdb.OpenTransactionDbColumnFamilies(opts, path, names, cfOpts, txnDBOpts)
	if err != nil {
		return nil, kverr.Wrap(kverr.Engine, "open transaction db", err)
	}

	cfs := make(map[string]*grocksdb.ColumnFamilyHandle, len(names))
	for i, name := range names {
		cfs[name] = handles[i]
	}

	return &Engine{path: path, opts: opts, txnDBOpts: txnDBOpts, db: db, cfs: cfs}, nil
}

// dbExists reports whether path already contains a RocksDB database.
func dbExists(path string) bool {
	_, err := os.Stat(filepath.Join(path, "CURRENT"))
	return err == nil
}

func discoverColumnFamilies(path string, opts *grocksdb.Options) ([]string, error) {
	if !dbExists(path) {
		return []string{DefaultCF}, nil
	}
	names, err := grocksdb.ListColumnFamilies(opts, path)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Path returns the directory this engine was opened from.
func (e *Engine) Path() string { return e.path }

// DB returns the underlying TransactionDB. Exported for the reader package,
// which must bind directly to it without copying.
func (e *Engine) DB() *grocksdb.TransactionDB { return e.db }

// CF looks up an already-open column family handle by name.
func (e *Engine) CF(name string) (*grocksdb.ColumnFamilyHandle, bool) {
	h, ok := e.cfs[name]
	return h, ok
}

// CFNames lists every column family currently open on this engine.
func (e *Engine) CFNames() []string {
	names := make([]string, 0, len(e.cfs))
	for name := range e.cfs {
		names = append(names, name)
	}
	return names
}

// CreateCF creates a new column family if it does not already exist and
// returns its handle. Idempotent: calling it twice with the same name
// returns the same handle.
func (e *Engine) CreateCF(name string) (*grocksdb.ColumnFamilyHandle, error) {
	if h, ok := e.cfs[name]; ok {
		return h, nil
	}
	h, err := e.db.CreateColumnFamily(e.opts, name)
	if err != nil {
		return nil, kverr.Wrapf(kverr.Engine, err, "create column family %q", name)
	}
	e.cfs[name] = h
	return h, nil
}

// BeginTransaction starts a new pessimistic transaction bound to this engine.
func (e *Engine) BeginTransaction() *Transaction {
	writeOpts := grocksdb.NewDefaultWriteOptions()
	txnOpts := grocksdb.NewDefaultTransactionOptions()
	txn := e.db.TransactionBegin(writeOpts, txnOpts, nil)
	return &Transaction{txn: txn, readOpts: grocksdb.NewDefaultReadOptions()}
}

// Checkpoint writes a consistent, point-in-time filesystem snapshot of the
// database to destDir, which must not already exist.
func (e *Engine) Checkpoint(destDir string) error {
	cp, err := e.db.NewCheckpoint()
	if err != nil {
		return kverr.Wrap(kverr.Engine, "create checkpoint object", err)
	}
	defer cp.Destroy()
	if err := cp.CreateCheckpoint(destDir, 0); err != nil {
		return kverr.Wrapf(kverr.Engine, err, "create checkpoint at %q", destDir)
	}
	return nil
}

// Close releases the column family handles and closes the underlying
// database. Safe to call once; callers must not use the Engine afterward.
func (e *Engine) Close() error {
	for _, h := range e.cfs {
		h.Destroy()
	}
	e.db.Close()
	e.opts.Destroy()
	e.txnDBOpts.Destroy()
	log.Debug().Str("path", e.path).Msg("engine closed")
	return nil
}
