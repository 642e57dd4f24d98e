// Package versioned layers point-in-time version checkpoints on top of
// pkg/storage: a sliding window of named snapshots, transactions that
// either write to the live database and mint a new version on commit, or
// read a past version and can never commit, and rollback of the live
// database to any retained version.
package versioned

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mnohosten/ckv/pkg/engine"
	"github.com/mnohosten/ckv/pkg/kverr"
	"github.com/mnohosten/ckv/pkg/storage"
	"github.com/mnohosten/ckv/pkg/version"
)

// UnsetVersionsStored is the Config.VersionsStored sentinel meaning "not
// specified, use DefaultVersionsStored". It is distinct from the zero
// value: K=0 is a legal retention window (no version is ever created, see
// createVersion) and must pass through untouched rather than being
// silently promoted to the default.
const UnsetVersionsStored = -1

// Config configures a Storage's on-disk location and retention window.
type Config struct {
	// Path is the base directory; it holds CurrentState/ and Versions/.
	Path string
	// VersionsStored is the retention window size K: after a version is
	// created, every version numbered below max-K+1 is deleted. K=0
	// means no version is ever retained. UnsetVersionsStored means
	// DefaultVersionsStored.
	VersionsStored int
	// CreateIfMissing controls whether Open may create a database that
	// does not already exist at Path. Defaults to false (the Go zero
	// value), matching create_if_missing's documented default of "fail
	// if missing" rather than "create".
	CreateIfMissing bool
}

// DefaultConfig returns a Config pointing at path with the default
// retention window, creating the database if it does not already exist.
func DefaultConfig(path string) Config {
	return Config{Path: path, VersionsStored: UnsetVersionsStored, CreateIfMissing: true}
}

// Storage is a plain storage.Storage (the live database, "CurrentState")
// plus a managed set of point-in-time version checkpoints under
// Versions/.
type Storage struct {
	mu             sync.RWMutex
	base           string
	versionsStored int
	live           *storage.Storage
}

// Open opens the versioned storage rooted at cfg.Path, creating it only if
// cfg.CreateIfMissing is set. It fails with Corruption if a stranded
// rollback staging directory is found or the version numbers on disk are
// not contiguous, and trims the version set to the retention window.
func Open(cfg Config) (*Storage, error) {
	versionsStored := cfg.VersionsStored
	if versionsStored == UnsetVersionsStored {
		versionsStored = version.DefaultVersionsStored
	}
	if versionsStored < 0 {
		return nil, kverr.Newf(kverr.InvalidArgument, "versions stored must be >= 0, got %d", versionsStored)
	}

	if err := detectInterruptedRollback(cfg.Path); err != nil {
		return nil, err
	}

	if cfg.CreateIfMissing {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, kverr.Wrapf(kverr.Io, err, "create base dir %q", cfg.Path)
		}
	} else if _, err := os.Stat(version.CurrentStateDir(cfg.Path)); os.IsNotExist(err) {
		return nil, kverr.Newf(kverr.NotFound, "versioned storage at %q does not exist and create_if_missing is false", cfg.Path)
	} else if err != nil {
		return nil, kverr.Wrapf(kverr.Io, err, "stat %q", cfg.Path)
	}

	liveCfg := storage.DefaultConfig(version.CurrentStateDir(cfg.Path))
	liveCfg.CreateIfMissing = cfg.CreateIfMissing
	live, err := storage.Open(liveCfg)
	if err != nil {
		return nil, err
	}

	entries, err := version.List(cfg.Path)
	if err == nil && !version.IsConsecutive(entries) {
		err = kverr.Newf(kverr.Corruption, "version numbers under %q are not contiguous", version.VersionsDir(cfg.Path))
	}
	if err == nil {
		err = version.Trim(cfg.Path, versionsStored)
	}
	if err != nil {
		live.Close()
		return nil, err
	}

	return &Storage{base: cfg.Path, versionsStored: versionsStored, live: live}, nil
}

// detectInterruptedRollback reports, as a Corruption error, a
// "<N>__<id>.rollback-tmp" directory sitting directly under base: the
// staging copy a crash during Rollback can leave behind before it is
// renamed into place as CurrentState. It does not attempt automatic repair.
func detectInterruptedRollback(base string) error {
	infos, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return kverr.Wrapf(kverr.Io, err, "read base dir %q", base)
	}
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		name := info.Name()
		if name == version.CurrentStateDirName || name == version.VersionsDirName {
			continue
		}
		if filepath.Ext(name) == rollbackTmpSuffix {
			return kverr.Newf(kverr.Corruption,
				"found a stranded rollback staging directory %q under %q; a previous rollback was interrupted and must be completed by hand",
				name, base)
		}
	}
	return nil
}

const rollbackTmpSuffix = ".rollback-tmp"

// CreateTransaction begins a transaction. With versionID nil it is a Live
// transaction against the live database, committable with a version name
// of its own; with versionID non-nil it opens that past version's
// checkpoint read-only and can never be committed.
func (s *Storage) CreateTransaction(versionID *string) (*Transaction, error) {
	if versionID != nil {
		return s.OpenVersion(*versionID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, err := s.live.CreateTransaction()
	if err != nil {
		return nil, err
	}
	return &Transaction{Transaction: txn, live: true, owner: s}, nil
}

// OpenVersion begins a read-only transaction against a past version's
// checkpoint, opened as its own database. It can never be committed.
func (s *Storage) OpenVersion(versionID string) (*Transaction, error) {
	s.mu.RLock()
	entries, err := version.List(s.base)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	entry, ok := version.ByID(entries, versionID)
	if !ok {
		return nil, kverr.Newf(kverr.NotFound, "version %q does not exist", versionID)
	}

	eng, err := engine.Open(engine.Config{Path: entry.Path, CreateIfMissing: false})
	if err != nil {
		return nil, err
	}
	txn, err := storage.OpenExistingTransaction(eng)
	if err != nil {
		eng.Close()
		return nil, err
	}
	return &Transaction{Transaction: txn, live: false, owner: s, snapshotEngine: eng}, nil
}

// createVersion checkpoints the live database as a new version named
// versionID, then trims the retention window. Called only from a Live
// transaction's successful Commit.
func (s *Storage) createVersion(versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versionsStored == 0 {
		// K=0: no version is ever retained, so minting one is a no-op.
		// Skip the checkpoint entirely rather than create one only to
		// immediately trim it away.
		return nil
	}

	entries, err := version.List(s.base)
	if err != nil {
		return err
	}
	if _, exists := version.ByID(entries, versionID); exists {
		return kverr.Newf(kverr.AlreadyExists, "version %q already exists", versionID)
	}

	number := version.NextNumber(entries)
	dest := version.ComposePath(s.base, number, versionID)
	if err := os.MkdirAll(version.VersionsDir(s.base), 0o755); err != nil {
		return kverr.Wrapf(kverr.Io, err, "create versions dir")
	}
	if err := s.live.Checkpoint(dest); err != nil {
		return err
	}

	if err := version.Trim(s.base, s.versionsStored); err != nil {
		return err
	}
	log.Debug().Str("version_id", versionID).Int64("number", number).Msg("created version")
	return nil
}

// Versions lists every retained version, oldest first.
func (s *Storage) Versions() ([]version.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return version.List(s.base)
}

// LastVersion returns the most recently created retained version.
func (s *Storage) LastVersion() (version.Entry, bool, error) {
	entries, err := s.Versions()
	if err != nil {
		return version.Entry{}, false, err
	}
	if len(entries) == 0 {
		return version.Entry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

// Rollback restores the live database to the contents of versionID,
// discarding every version created after it. This is not atomic: a crash
// between removing CurrentState and renaming the staged copy into place
// leaves a stranded "<N>__<id>.rollback-tmp" directory under base, which
// Open reports as a Corruption error on the next open rather than
// silently repairing.
func (s *Storage) Rollback(versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := version.List(s.base)
	if err != nil {
		return err
	}
	entry, ok := version.ByID(entries, versionID)
	if !ok {
		return kverr.Newf(kverr.NotFound, "version %q does not exist", versionID)
	}

	staging := filepath.Join(s.base, entry.DirName()+rollbackTmpSuffix)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return kverr.Wrapf(kverr.Io, err, "create rollback staging dir %q", staging)
	}
	if err := copyDir(entry.Path, staging); err != nil {
		os.RemoveAll(staging)
		return err
	}

	if err := s.live.Close(); err != nil {
		os.RemoveAll(staging)
		return err
	}

	currentState := version.CurrentStateDir(s.base)
	if err := os.RemoveAll(currentState); err != nil {
		return kverr.Wrapf(kverr.Io, err, "remove current state %q", currentState)
	}
	if err := os.Rename(staging, currentState); err != nil {
		return kverr.Wrapf(kverr.Io, err, "stage rollback into place")
	}

	live, err := storage.Open(storage.DefaultConfig(currentState))
	if err != nil {
		return err
	}
	s.live = live

	return version.DeleteNewerThan(s.base, entry.Number)
}

// Close closes the live database. Retained versions are plain directories
// and need no explicit close.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live.Close()
}
