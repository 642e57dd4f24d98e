package reader

import "github.com/linxGnu/grocksdb"

// Iterator walks a column family in one direction from a starting point,
// mirroring RocksDB's own Start/End/From(key, direction) iterator modes.
type Iterator struct {
	it  *grocksdb.Iterator
	dir Direction
}

func newPositioned(it *grocksdb.Iterator, mode IterMode, from []byte, dir Direction) *Iterator {
	switch mode {
	case Start:
		it.SeekToFirst()
	case End:
		it.SeekToLast()
	case From:
		if dir == Reverse {
			it.SeekForPrev(from)
		} else {
			it.Seek(from)
		}
	}
	return &Iterator{it: it, dir: dir}
}

// Valid reports whether the iterator currently points at an entry.
func (i *Iterator) Valid() bool { return i.it.Valid() }

// Next advances the iterator one step in its configured direction.
func (i *Iterator) Next() {
	if i.dir == Reverse {
		i.it.Prev()
	} else {
		i.it.Next()
	}
}

// Key returns a copy of the current entry's key.
func (i *Iterator) Key() []byte {
	s := i.it.Key()
	defer s.Free()
	return append([]byte(nil), s.Data()...)
}

// Value returns a copy of the current entry's value.
func (i *Iterator) Value() []byte {
	s := i.it.Value()
	defer s.Free()
	return append([]byte(nil), s.Data()...)
}

// Err returns any error the iterator accumulated while walking.
func (i *Iterator) Err() error { return i.it.Err() }

// Close releases the native iterator. Must be called exactly once.
func (i *Iterator) Close() { i.it.Close() }
