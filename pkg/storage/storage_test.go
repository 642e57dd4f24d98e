package storage

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/mnohosten/ckv/pkg/kverr"
)

func TestBasicPutGetCommit(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	txn, err := s.CreateTransaction()
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := txn.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.Reader().Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("Get = %q, want %q", got, "v1")
	}
}

func TestUncommittedWritesAreNotVisibleToOtherReaders(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	txn, err := s.CreateTransaction()
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := txn.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Reader().Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected uncommitted write to be invisible, got %q", got)
	}

	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
}

func TestNestedSavepointRollbackIsLIFO(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	txn, err := s.CreateTransaction()
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := txn.Put([]byte("k"), []byte("base")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	txn.Save() // sp1

	if err := txn.Put([]byte("k"), []byte("sp1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	txn.Save() // sp2

	if err := txn.Put([]byte("k"), []byte("sp2")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := txn.RollbackToSavepoint(); err != nil { // back to sp2's start == after sp1's write
		t.Fatalf("RollbackToSavepoint: %v", err)
	}
	got, err := txn.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("sp1")) {
		t.Fatalf("after first rollback, Get = %q, want %q", got, "sp1")
	}

	if err := txn.RollbackToSavepoint(); err != nil { // back to sp1's start == after base write
		t.Fatalf("RollbackToSavepoint: %v", err)
	}
	got, err = txn.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("base")) {
		t.Fatalf("after second rollback, Get = %q, want %q", got, "base")
	}

	if err := txn.RollbackToSavepoint(); err == nil {
		t.Fatalf("expected RollbackToSavepoint to fail with no outstanding savepoint")
	}

	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
}

func TestColumnFamilies(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, ok := s.ColumnFamilies().GetColumnFamily("widgets"); ok {
		t.Fatalf("expected column family widgets to not exist yet")
	}

	cf, err := s.ColumnFamilies().SetColumnFamily("widgets")
	if err != nil {
		t.Fatalf("SetColumnFamily: %v", err)
	}

	txn, err := s.CreateTransaction()
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := txn.PutCF(cf, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("PutCF: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.Reader().GetCF(cf, []byte("k"))
	if err != nil {
		t.Fatalf("GetCF: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("GetCF = %q, want %q", got, "v")
	}
}

func TestReopenDiscoversExistingColumnFamilies(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.ColumnFamilies().SetColumnFamily("widgets"); err != nil {
		t.Fatalf("SetColumnFamily: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if _, ok := s2.ColumnFamilies().GetColumnFamily("widgets"); !ok {
		t.Fatalf("expected widgets column family to be discovered on reopen")
	}
}

func TestOpenFailsWhenMissingAndCreateIfMissingIsFalse(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := Open(Config{Path: dir}); err == nil {
		t.Fatalf("expected Open to fail when the database does not exist and CreateIfMissing is false")
	}
}

func TestDoubleCommitFailsWithFailedPrecondition(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	txn, err := s.CreateTransaction()
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := txn.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := txn.Commit(); !kverr.Is(err, kverr.FailedPrecondition) {
		t.Fatalf("expected second Commit to fail with FailedPrecondition, got %v", err)
	}
}

func TestDoubleRollbackFailsWithFailedPrecondition(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	txn, err := s.CreateTransaction()
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if err := txn.Rollback(); !kverr.Is(err, kverr.FailedPrecondition) {
		t.Fatalf("expected second Rollback to fail with FailedPrecondition, got %v", err)
	}
}

func TestCommitThenRollbackFailsWithFailedPrecondition(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	txn, err := s.CreateTransaction()
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := txn.Rollback(); !kverr.Is(err, kverr.FailedPrecondition) {
		t.Fatalf("expected Rollback after Commit to fail with FailedPrecondition, got %v", err)
	}
	if err := txn.RollbackToSavepoint(); !kverr.Is(err, kverr.FailedPrecondition) {
		t.Fatalf("expected RollbackToSavepoint after Commit to fail with FailedPrecondition, got %v", err)
	}
}

func TestOpenWithCreateIfMissingFalseSucceedsOnExistingDB(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen with CreateIfMissing false: %v", err)
	}
	defer s2.Close()
}
