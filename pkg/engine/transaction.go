package engine

import (
	"github.com/linxGnu/grocksdb"

	"github.com/mnohosten/ckv/pkg/kverr"
)

// Transaction wraps a grocksdb pessimistic transaction. Savepoints,
// rollback and commit all forward straight to the native RocksDB
// implementation; this type adds nothing but error-kind translation.
type Transaction struct {
	txn      *grocksdb.Transaction
	readOpts *grocksdb.ReadOptions
}

// Put writes key/value into the default column family.
func (t *Transaction) Put(key, value []byte) error {
	if err := t.txn.Put(key, value); err != nil {
		return kverr.Wrap(kverr.Engine, "put", err)
	}
	return nil
}

// PutCF writes key/value into the named column family.
func (t *Transaction) PutCF(cf *grocksdb.ColumnFamilyHandle, key, value []byte) error {
	if err := t.txn.PutCF(cf, key, value); err != nil {
		return kverr.Wrap(kverr.Engine, "put_cf", err)
	}
	return nil
}

// Delete removes key from the default column family.
func (t *Transaction) Delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil {
		return kverr.Wrap(kverr.Engine, "delete", err)
	}
	return nil
}

// DeleteCF removes key from the named column family.
func (t *Transaction) DeleteCF(cf *grocksdb.ColumnFamilyHandle, key []byte) error {
	if err := t.txn.DeleteCF(cf, key); err != nil {
		return kverr.Wrap(kverr.Engine, "delete_cf", err)
	}
	return nil
}

// Get reads key from the default column family, including this
// transaction's own uncommitted writes.
func (t *Transaction) Get(key []byte) ([]byte, error) {
	slice, err := t.txn.Get(t.readOpts, key)
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
func (t *Transaction) GetCF(cf *grocksdb.ColumnFamilyHandle, key []byte) ([]byte, error) {
	slice, err := t.txn.GetCF(t.readOpts, cf, key)
	if err != nil {
		return nil, kverr.Wrap(kverr.Engine, "get_cf", err)
	}
	defer slice.Free()
	if !slice.Exists() {
		return nil, nil
	}
	return append([]byte(nil), slice.Data()...), nil
}

// NewIterator returns an iterator over the default column family.
func (t *Transaction) NewIterator() *grocksdb.Iterator {
	return t.txn.NewIterator(t.readOpts)
}

// NewIteratorCF returns an iterator over the named column family.
func (t *Transaction) NewIteratorCF(cf *grocksdb.ColumnFamilyHandle) *grocksdb.Iterator {
	return t.txn.NewIteratorCF(t.readOpts, cf)
}

// SetSavepoint pushes a new savepoint onto the transaction's native LIFO
// savepoint stack.
func (t *Transaction) SetSavepoint() {
	t.txn.SetSavePoint()
}

// RollbackToSavepoint undoes every write since the most recent savepoint
// and pops it off the stack. Fails with FailedPrecondition if the stack is
// empty.
func (t *Transaction) RollbackToSavepoint() error {
	if err := t.txn.RollbackToSavePoint(); err != nil {
		return kverr.Wrap(kverr.FailedPrecondition, "rollback to savepoint", err)
	}
	return nil
}

// Rollback discards every write the transaction has made.
func (t *Transaction) Rollback() error {
	if err := t.txn.Rollback(); err != nil {
		return kverr.Wrap(kverr.Engine, "rollback", err)
	}
	return nil
}

// Commit makes every write visible to subsequent readers.
func (t *Transaction) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return kverr.Wrap(kverr.Engine, "commit", err)
	}
	return nil
}

// Destroy releases the native resources held by the transaction. Safe to
// call after Commit or Rollback; required even then.
func (t *Transaction) Destroy() {
	t.readOpts.Destroy()
	t.txn.Destroy()
}
