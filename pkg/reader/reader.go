// Package reader implements the polymorphic read surface shared by a live
// database handle and a transaction handle. Exactly one of the two is ever
// populated in a given Reader; every read method dispatches on whichever
// is set.
package reader

import (
	"github.com/linxGnu/grocksdb"

	"github.com/mnohosten/ckv/pkg/engine"
	"github.com/mnohosten/ckv/pkg/kverr"
)

// Direction controls which way an iterator moves from its starting point.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// IterMode selects where a cursor-backed iterator starts.
type IterMode int

const (
	// Start positions the iterator at the first key.
	Start IterMode = iota
	// End positions the iterator at the last key.
	End
	// From positions the iterator at a given key and moves in Direction.
	From
)

// Reader is implemented once and backed by either a live TransactionDB
// handle or a transaction handle, never both.
type Reader struct {
	db       *grocksdb.TransactionDB
	txn      *engine.Transaction
	readOpts *grocksdb.ReadOptions // only used when db is set
}

// FromDB builds a Reader backed by a live database handle.
func FromDB(db *grocksdb.TransactionDB) *Reader {
	return &Reader{db: db, readOpts: grocksdb.NewDefaultReadOptions()}
}

// FromTransaction builds a Reader backed by an in-flight transaction,
// seeing that transaction's own uncommitted writes.
func FromTransaction(txn *engine.Transaction) *Reader {
	return &Reader{txn: txn}
}

// Close releases resources owned by a DB-backed Reader. A no-op for a
// transaction-backed Reader, whose read options belong to the transaction.
func (r *Reader) Close() {
	if r.readOpts != nil {
		r.readOpts.Destroy()
	}
}

// which panics if neither handle is populated; this is the one invariant
// violation in this package that is not a recoverable error, matching the
// source system's own "unreachable" guard for the same condition.
func (r *Reader) which() {
	if r.db == nil && r.txn == nil {
		panic("reader: neither db nor transaction handle is set")
	}
}

// Get reads key from the default column family. A missing key returns a
// nil slice and a nil error.
func (r *Reader) Get(key []byte) ([]byte, error) {
	r.which()
	if r.txn != nil {
		return r.txn.Get(key)
	}
	slice, err := r.db.Get(r.readOpts, key)
	if err != nil {
		return nil, kverr.Wrap(kverr.Engine, "get", err)
	}
	defer slice.Free()
	if !slice.Exists() {
		return nil, nil
	}
	return append([]byte(nil), slice.Data()...), nil
}

// GetCF reads key from the named column family.
func (r *Reader) GetCF(cf *grocksdb.ColumnFamilyHandle, key []byte) ([]byte, error) {
	r.which()
	if r.txn != nil {
		return r.txn.GetCF(cf, key)
	}
	slice, err := r.db.GetCF(r.readOpts, cf, key)
	if err != nil {
		return nil, kverr.Wrap(kverr.Engine, "get_cf", err)
	}
	defer slice.Free()
	if !slice.Exists() {
		return nil, nil
	}
	return append([]byte(nil), slice.Data()...), nil
}

// MultiGet reads several keys from the default column family in one call,
// deduplicating repeated keys in the result the way the upstream system's
// itertools-based multi_get does.
func (r *Reader) MultiGet(keys [][]byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		ks := string(k)
		if _, seen := out[ks]; seen {
			continue
		}
		v, err := r.Get(k)
		if err != nil {
			return nil, err
		}
		out[ks] = v
	}
	return out, nil
}

// MultiGetCF reads several keys from the named column family in one call.
func (r *Reader) MultiGetCF(cf *grocksdb.ColumnFamilyHandle, keys [][]byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		ks := string(k)
		if _, seen := out[ks]; seen {
			continue
		}
		v, err := r.GetCF(cf, k)
		if err != nil {
			return nil, err
		}
		out[ks] = v
	}
	return out, nil
}

func (r *Reader) newIterator() *grocksdb.Iterator {
	if r.txn != nil {
		return r.txn.NewIterator()
	}
	return r.db.NewIterator(r.readOpts)
}

func (r *Reader) newIteratorCF(cf *grocksdb.ColumnFamilyHandle) *grocksdb.Iterator {
	if r.txn != nil {
		return r.txn.NewIteratorCF(cf)
	}
	return r.db.NewIteratorCF(r.readOpts, cf)
}

// GetIter returns an iterator over the default column family positioned by
// mode/from/direction. Fails with InvalidArgument if mode is From and from
// is nil.
func (r *Reader) GetIter(mode IterMode, from []byte, dir Direction) (*Iterator, error) {
	if err := validateIterArgs(mode, from); err != nil {
		return nil, err
	}
	r.which()
	return newPositioned(r.newIterator(), mode, from, dir), nil
}

// GetIterCF returns an iterator over the named column family, starting
// from the first key moving forward.
func (r *Reader) GetIterCF(cf *grocksdb.ColumnFamilyHandle) (*Iterator, error) {
	return r.GetIterCFMode(cf, Start, nil, Forward)
}

// GetIterCFMode returns an iterator over the named column family
// positioned by mode/from/direction. Fails with InvalidArgument if mode is
// From and from is nil.
func (r *Reader) GetIterCFMode(cf *grocksdb.ColumnFamilyHandle, mode IterMode, from []byte, dir Direction) (*Iterator, error) {
	if err := validateIterArgs(mode, from); err != nil {
		return nil, err
	}
	r.which()
	return newPositioned(r.newIteratorCF(cf), mode, from, dir), nil
}

// validateIterArgs rejects the one combination get_iter_cf_mode must
// reject: From mode with no key to seek from.
func validateIterArgs(mode IterMode, from []byte) error {
	if mode == From && from == nil {
		return kverr.New(kverr.InvalidArgument, "iterator mode From requires a non-nil key")
	}
	return nil
}

// IsEmpty reports whether the default column family has no keys.
func (r *Reader) IsEmpty() (bool, error) {
	it, err := r.GetIter(Start, nil, Forward)
	if err != nil {
		return false, err
	}
	defer it.Close()
	return !it.Valid(), it.Err()
}

// IsEmptyCF reports whether the named column family has no keys.
func (r *Reader) IsEmptyCF(cf *grocksdb.ColumnFamilyHandle) (bool, error) {
	it, err := r.GetIterCF(cf)
	if err != nil {
		return false, err
	}
	defer it.Close()
	return !it.Valid(), it.Err()
}

// Collect materializes every key/value pair of the default column family.
// Test-only helper; not meant for production hot paths.
func (r *Reader) Collect() (map[string][]byte, error) {
	out := map[string][]byte{}
	it, err := r.GetIter(Start, nil, Forward)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		k, v := it.Key(), it.Value()
		out[string(k)] = append([]byte(nil), v...)
	}
	return out, it.Err()
}

// CollectCF materializes every key/value pair of the named column family.
func (r *Reader) CollectCF(cf *grocksdb.ColumnFamilyHandle) (map[string][]byte, error) {
	out := map[string][]byte{}
	it, err := r.GetIterCF(cf)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		k, v := it.Key(), it.Value()
		out[string(k)] = append([]byte(nil), v...)
	}
	return out, it.Err()
}
