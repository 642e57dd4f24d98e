package storage

import (
	"github.com/linxGnu/grocksdb"

	"github.com/mnohosten/ckv/pkg/engine"
)

// ColumnFamilies exposes lookup-or-create access to an engine's column
// families. Column family deletion is not supported: RocksDB's
// TransactionDB has no safe DropColumnFamily path, so this type, like the
// system it is modeled on, only ever grows the set of open families.
type ColumnFamilies struct {
	eng *engine.Engine
}

func newColumnFamilies(eng *engine.Engine) *ColumnFamilies {
	return &ColumnFamilies{eng: eng}
}

// GetColumnFamily looks up an already-open column family by name. The
// second return value is false if no such family has been created.
func (c *ColumnFamilies) GetColumnFamily(name string) (*grocksdb.ColumnFamilyHandle, bool) {
	return c.eng.CF(name)
}

// SetColumnFamily creates the named column family if it does not already
// exist, and returns its handle either way. Idempotent.
func (c *ColumnFamilies) SetColumnFamily(name string) (*grocksdb.ColumnFamilyHandle, error) {
	return c.eng.CreateCF(name)
}

// Names lists every column family currently open.
func (c *ColumnFamilies) Names() []string {
	return c.eng.CFNames()
}
