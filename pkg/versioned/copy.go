package versioned

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mnohosten/ckv/pkg/kverr"
)

// copyDir recursively copies src onto dst. dst may already exist: missing
// directories are created and existing files are overwritten. Used by Rollback to stage a version's checkpoint files before they are
// renamed into place as the new CurrentState.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return kverr.Wrapf(kverr.Io, err, "open %q", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return kverr.Wrapf(kverr.Io, err, "stat %q", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return kverr.Wrapf(kverr.Io, err, "create %q", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return kverr.Wrapf(kverr.Io, err, "copy %q to %q", src, dst)
	}
	return nil
}
