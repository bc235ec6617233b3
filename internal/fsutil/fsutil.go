// Package fsutil holds billy filesystem helpers shared by the repository
// metadata writers and the worktree.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

type syncer interface {
	Sync() error
}

// WriteFileAtomic writes data to name atomically: tempfile -> fsync -> rename.
// The tempfile is created next to name so the rename stays on one filesystem.
func WriteFileAtomic(fs billy.Filesystem, name string, data []byte) (err error) {
	dir := path.Dir(name)
	if dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
	}

	f, err := util.TempFile(fs, dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	// Clean up on any error
	defer func() {
		if err != nil {
			fs.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if s, ok := f.(syncer); ok {
		if err = s.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("fsync temp file: %w", err)
		}
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = fs.Rename(tmp, name); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	return nil
}

// Exists reports whether name exists on fs.
func Exists(fs billy.Filesystem, name string) (bool, error) {
	_, err := fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// PruneEmptyDirs removes dir and then each parent while they are empty,
// stopping at the filesystem root.
func PruneEmptyDirs(fs billy.Filesystem, dir string) error {
	for dir != "." && dir != "/" && dir != "" {
		entries, err := fs.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				dir = path.Dir(dir)
				continue
			}
			return err
		}
		if len(entries) > 0 {
			return nil
		}
		if err := fs.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		dir = path.Dir(dir)
	}
	return nil
}
