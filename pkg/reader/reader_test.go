package reader

import (
	"bytes"
	"testing"

	"github.com/mnohosten/ckv/pkg/engine"
	"github.com/mnohosten/ckv/pkg/kverr"
)

func seeded(t *testing.T, keys ...string) (*engine.Engine, *Reader) {
	t.Helper()
	dir := t.TempDir()
	eng, err := engine.Open(engine.Config{Path: dir, CreateIfMissing: true})
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	txn := eng.BeginTransaction()
	for _, k := range keys {
		if err := txn.Put([]byte(k), []byte("v-"+k)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	return eng, FromDB(eng.DB())
}

func TestGetIterFromModeRequiresAKey(t *testing.T) {
	_, r := seeded(t, "a", "b", "c")
	defer r.Close()

	if _, err := r.GetIter(From, nil, Forward); !kverr.Is(err, kverr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for From mode with a nil key, got %v", err)
	}
}

func TestGetIterCFModeFromModeRequiresAKey(t *testing.T) {
	eng, r := seeded(t, "a")
	defer r.Close()

	cf, ok := eng.CF(engine.DefaultCF)
	if !ok {
		t.Fatalf("expected default column family to exist")
	}
	if _, err := r.GetIterCFMode(cf, From, nil, Forward); !kverr.Is(err, kverr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for From mode with a nil key, got %v", err)
	}
}

func TestGetIterFromModeForwardSeeksAtOrAfterKey(t *testing.T) {
	_, r := seeded(t, "a", "b", "c", "d")
	defer r.Close()

	it, err := r.GetIter(From, []byte("b"), Forward)
	if err != nil {
		t.Fatalf("GetIter: %v", err)
	}
	defer it.Close()

	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestGetIterFromModeReverseSeeksAtOrBeforeKey(t *testing.T) {
	_, r := seeded(t, "a", "b", "c", "d")
	defer r.Close()

	it, err := r.GetIter(From, []byte("c"), Reverse)
	if err != nil {
		t.Fatalf("GetIter: %v", err)
	}
	defer it.Close()

	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCollectReturnsEveryKey(t *testing.T) {
	_, r := seeded(t, "a", "b")
	defer r.Close()

	got, err := r.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !bytes.Equal(got["a"], []byte("v-a")) || !bytes.Equal(got["b"], []byte("v-b")) {
		t.Fatalf("Collect = %v", got)
	}
}
