package versioned

import (
	"github.com/linxGnu/grocksdb"

	"github.com/mnohosten/ckv/pkg/engine"
	"github.com/mnohosten/ckv/pkg/kverr"
	"github.com/mnohosten/ckv/pkg/storage"
)

// Transaction is a tagged union of exactly two variants, matching the
// live/snapshot split in Storage: a Live transaction is bound to
// CurrentState and can commit, minting a new version; a Snapshot
// transaction is bound to an already-opened past version and can never
// commit. owner is set in both cases, snapshotEngine only in the Snapshot
// case; live records which case this is.
type Transaction struct {
	*storage.Transaction
	live           bool
	owner          *Storage
	snapshotEngine *engine.Engine // set only for Snapshot transactions
}

// Commit is only valid for a Live transaction: it commits the underlying
// write and then checkpoints the live database as a new version named
// versionID. A Snapshot transaction always fails with
// FailedPrecondition, regardless of versionID.
func (t *Transaction) Commit(versionID string) error {
	if !t.live {
		return kverr.New(kverr.FailedPrecondition, "a transaction opened against a past version cannot be committed")
	}
	if err := t.Transaction.Commit(); err != nil {
		return err
	}
	return t.owner.createVersion(versionID)
}

// Rollback discards every write. Valid for either variant.
func (t *Transaction) Rollback() error {
	return t.Transaction.Rollback()
}

// GetColumnFamily returns a snapshot transaction's column family handle by
// name. Fails with FailedPrecondition on a Live transaction: the live
// database's column families are reached through Storage's own
// ColumnFamilies manager instead, never through the transaction.
func (t *Transaction) GetColumnFamily(name string) (*grocksdb.ColumnFamilyHandle, error) {
	if t.live {
		return nil, kverr.New(kverr.FailedPrecondition, "column families of a live transaction are reached through the owning Storage, not the transaction")
	}
	h, ok := t.snapshotEngine.CF(name)
	if !ok {
		return nil, kverr.Newf(kverr.NotFound, "column family %q does not exist in this version", name)
	}
	return h, nil
}

// Close releases resources held directly by this transaction. For a
// Snapshot transaction this also closes the standalone engine opened for
// the version; for a Live transaction the underlying engine is owned by
// Storage and outlives the transaction, so only the native transaction
// object is released (via the embedded Destroy path triggered by Commit
// or Rollback).
func (t *Transaction) Close() {
	if t.snapshotEngine != nil {
		t.snapshotEngine.Close()
	}
}
