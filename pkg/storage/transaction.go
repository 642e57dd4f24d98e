package storage

import (
	"github.com/linxGnu/grocksdb"

	"github.com/mnohosten/ckv/pkg/engine"
	"github.com/mnohosten/ckv/pkg/kverr"
	"github.com/mnohosten/ckv/pkg/reader"
)

// KV is a single key/value pair, used by the batch Update/UpdateCF calls.
type KV struct {
	Key   []byte
	Value []byte
}

// Transaction is a pessimistic, savepoint-capable transaction against the
// live database. Every write is forwarded straight to the engine's native
// transaction object, which also owns the savepoint stack; this type adds
// no buffering of its own.
type Transaction struct {
	*reader.Reader
	txn  *engine.Transaction
	done bool // set by Commit or Rollback; guards against touching a destroyed txn
}

func newTransaction(txn *engine.Transaction) *Transaction {
	return &Transaction{Reader: reader.FromTransaction(txn), txn: txn}
}

// errAlreadyFinalized is returned by Commit, Rollback and
// RollbackToSavepoint once the transaction has already been committed or
// rolled back; the native transaction object is destroyed at that point,
// so forwarding to it any further would be a use-after-free.
func errAlreadyFinalized() error {
	return kverr.New(kverr.FailedPrecondition, "transaction already committed or rolled back")
}

// Put writes a single key/value into the default column family.
func (t *Transaction) Put(key, value []byte) error {
	return t.txn.Put(key, value)
}

// PutCF writes a single key/value into the named column family.
func (t *Transaction) PutCF(cf *grocksdb.ColumnFamilyHandle, key, value []byte) error {
	return t.txn.PutCF(cf, key, value)
}

// Delete removes a key from the default column family.
func (t *Transaction) Delete(key []byte) error {
	return t.txn.Delete(key)
}

// DeleteCF removes a key from the named column family.
func (t *Transaction) DeleteCF(cf *grocksdb.ColumnFamilyHandle, key []byte) error {
	return t.txn.DeleteCF(cf, key)
}

// Update applies a batch of puts followed by a batch of deletes to the
// default column family within this transaction.
func (t *Transaction) Update(puts []KV, deletes [][]byte) error {
	for _, kv := range puts {
		if err := t.Put(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	for _, k := range deletes {
		if err := t.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCF applies a batch of puts followed by a batch of deletes to the
// named column family within this transaction.
func (t *Transaction) UpdateCF(cf *grocksdb.ColumnFamilyHandle, puts []KV, deletes [][]byte) error {
	for _, kv := range puts {
		if err := t.PutCF(cf, kv.Key, kv.Value); err != nil {
			return err
		}
	}
	for _, k := range deletes {
		if err := t.DeleteCF(cf, k); err != nil {
			return err
		}
	}
	return nil
}

// Save pushes a new savepoint.
func (t *Transaction) Save() {
	t.txn.SetSavepoint()
}

// RollbackToSavepoint undoes every write since the most recently pushed,
// not-yet-popped savepoint, and pops it. Calling it with no outstanding
// savepoint fails with FailedPrecondition, as does calling it after the
// transaction has already committed or rolled back.
func (t *Transaction) RollbackToSavepoint() error {
	if t.done {
		return errAlreadyFinalized()
	}
	return t.txn.RollbackToSavepoint()
}

// Rollback discards every write this transaction has made, savepoints
// included, and releases the transaction's native resources. A second
// call, or a call after Commit, fails with FailedPrecondition instead of
// touching the already-destroyed native transaction.
func (t *Transaction) Rollback() error {
	if t.done {
		return errAlreadyFinalized()
	}
	t.done = true
	defer t.txn.Destroy()
	return t.txn.Rollback()
}

// Commit makes every write visible to subsequent readers and releases the
// transaction's native resources. A second call, or a call after Rollback,
// fails with FailedPrecondition instead of touching the already-destroyed
// native transaction.
func (t *Transaction) Commit() error {
	if t.done {
		return errAlreadyFinalized()
	}
	t.done = true
	defer t.txn.Destroy()
	return t.txn.Commit()
}
