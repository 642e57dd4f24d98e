// Package version manages the <base>/Versions/<N>__<id> directory layout
// used by pkg/versioned: parsing the version set on disk, checking its
// contiguity invariant, computing the next version number, composing
// paths, and trimming old versions out of the retention window.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mnohosten/ckv/pkg/kverr"
)

// Delimiter separates a version's monotonic number from its caller-chosen
// id in a version directory's name.
const Delimiter = "__"

// VersionsDirName is the subdirectory of a versioned storage's base path
// that holds every version's checkpoint directory.
const VersionsDirName = "Versions"

// CurrentStateDirName is the subdirectory holding the live database.
const CurrentStateDirName = "CurrentState"

// DefaultVersionsStored is the retention window size used when a caller
// does not specify one explicitly.
const DefaultVersionsStored = 10

// Entry describes one version directory: its monotonic number, its
// caller-chosen id, and its absolute path.
type Entry struct {
	Number int64
	ID     string
	Path   string
}

// DirName returns the "<N>__<id>" name this entry is stored under.
func (e Entry) DirName() string {
	return ComposeDirName(e.Number, e.ID)
}

// ComposeDirName builds a version directory name from its number and id.
func ComposeDirName(number int64, id string) string {
	return fmt.Sprintf("%d%s%s", number, Delimiter, id)
}

// ComposePath builds the absolute path of a version directory under base.
func ComposePath(base string, number int64, id string) string {
	return filepath.Join(base, VersionsDirName, ComposeDirName(number, id))
}

// VersionsDir returns the Versions directory under base.
func VersionsDir(base string) string {
	return filepath.Join(base, VersionsDirName)
}

// CurrentStateDir returns the CurrentState directory under base.
func CurrentStateDir(base string) string {
	return filepath.Join(base, CurrentStateDirName)
}

// List reads every version directory under base, in ascending order by
// number. A directory name that does not parse as "<N>__<id>" is treated
// as corruption: the whole read fails rather than silently skipping it,
// since an unparseable entry means the on-disk invariant has already been
// violated and the version set cannot be trusted.
func List(base string) ([]Entry, error) {
	dir := VersionsDir(base)
	infos, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, kverr.Wrapf(kverr.Io, err, "read versions dir %q", dir)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		e, err := parseDirName(dir, info.Name())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Number < entries[j].Number })
	return entries, nil
}

func parseDirName(parent, name string) (Entry, error) {
	idx := strings.Index(name, Delimiter)
	if idx <= 0 || idx == len(name)-len(Delimiter) {
		return Entry{}, kverr.Newf(kverr.Corruption, "version directory name %q is not of the form <N>%s<id>", name, Delimiter)
	}
	numPart, idPart := name[:idx], name[idx+len(Delimiter):]
	num, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil || num < 0 {
		return Entry{}, kverr.Newf(kverr.Corruption, "version directory name %q has a non-numeric or negative version number", name)
	}
	return Entry{Number: num, ID: idPart, Path: filepath.Join(parent, name)}, nil
}

// IsConsecutive reports whether a set of entries already sorted ascending
// by Number has no gaps: every number differs from its predecessor by
// exactly 1.
func IsConsecutive(entries []Entry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].Number != entries[i-1].Number+1 {
			return false
		}
	}
	return true
}

// MaxNumber returns the highest version number present, and false if
// entries is empty.
func MaxNumber(entries []Entry) (int64, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	return entries[len(entries)-1].Number, true
}

// NextNumber returns the version number to use for the next checkpoint:
// one past the current maximum, or 0 if there are no versions yet.
func NextNumber(entries []Entry) int64 {
	if max, ok := MaxNumber(entries); ok {
		return max + 1
	}
	return 0
}

// ByID finds the entry with the given id, if any.
func ByID(entries []Entry, id string) (Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Trim removes every version directory older than the retention window:
// with versionsStored = K and the current maximum version number M, every
// version numbered below M-K+1 is deleted. A small M (fewer than K
// versions exist yet) leaves the whole set untouched.
func Trim(base string, versionsStored int) error {
	entries, err := List(base)
	if err != nil {
		return err
	}
	max, ok := MaxNumber(entries)
	if !ok {
		return nil
	}
	minKeep := max - int64(versionsStored) + 1
	if minKeep <= 0 {
		return nil
	}
	for _, e := range entries {
		if e.Number >= minKeep {
			continue
		}
		if err := os.RemoveAll(e.Path); err != nil {
			return kverr.Wrapf(kverr.Io, err, "trim version %q", e.Path)
		}
	}
	return nil
}

// DeleteNewerThan removes every version directory numbered greater than
// keepNumber. Used after a rollback to discard history that is now past
// the restored point.
func DeleteNewerThan(base string, keepNumber int64) error {
	entries, err := List(base)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Number <= keepNumber {
			continue
		}
		if err := os.RemoveAll(e.Path); err != nil {
			return kverr.Wrapf(kverr.Io, err, "remove version %q", e.Path)
		}
	}
	return nil
}
