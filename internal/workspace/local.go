// internal/workspace/local.go
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	gerrors "gible/internal/errors"
	"gible/internal/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

// RepoDir is the repository metadata directory inside the worktree.
const RepoDir = ".gible"

// FindRoot searches startDir and its parents for a directory holding RepoDir.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, RepoDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", gerrors.NotARepository(startDir)
}

// LocalWorkspace is the working tree: every file under the root except the
// repository directory.
type LocalWorkspace struct {
	fs     billy.Filesystem
	logger *zap.Logger
}

// NewLocalWorkspace opens the worktree rooted at root on the OS filesystem.
func NewLocalWorkspace(root string, logger *zap.Logger) (*LocalWorkspace, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	return New(osfs.New(absRoot), logger), nil
}

// New wraps an existing filesystem whose root is the worktree root.
func New(fs billy.Filesystem, logger *zap.Logger) *LocalWorkspace {
	return &LocalWorkspace{fs: fs, logger: logger}
}

// Root returns the worktree root as seen by the underlying filesystem.
func (w *LocalWorkspace) Root() string {
	return w.fs.Root()
}

// Filesystem returns the worktree filesystem.
func (w *LocalWorkspace) Filesystem() billy.Filesystem {
	return w.fs
}

// RepoFS returns a filesystem rooted at the repository directory.
func (w *LocalWorkspace) RepoFS() (billy.Filesystem, error) {
	return w.fs.Chroot(RepoDir)
}

// HasRepo reports whether the repository directory exists.
func (w *LocalWorkspace) HasRepo() (bool, error) {
	return fsutil.Exists(w.fs, RepoDir)
}

// Normalize turns a user supplied path into a clean slash-separated path
// relative to the root. Paths leaving the worktree are rejected.
func (w *LocalWorkspace) Normalize(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(w.fs.Root(), p)
		if err != nil {
			return "", gerrors.ValidationError(fmt.Sprintf("path %s is outside the worktree", p), nil)
		}
		p = rel
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", gerrors.ValidationError(fmt.Sprintf("path %s is outside the worktree", p), nil)
	}
	return clean, nil
}

// ShouldIgnore reports whether path lies inside the repository directory.
func ShouldIgnore(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == RepoDir {
			return true
		}
	}
	return false
}

// Files returns every regular file in the worktree, sorted.
func (w *LocalWorkspace) Files() ([]string, error) {
	return w.walk(".")
}

// Expand resolves a file or directory argument to the files it names.
// A missing path is NOT_FOUND.
func (w *LocalWorkspace) Expand(p string) ([]string, error) {
	clean, err := w.Normalize(p)
	if err != nil {
		return nil, err
	}
	if clean != "." && ShouldIgnore(clean) {
		return nil, nil
	}

	info, err := w.fs.Stat(clean)
	if errors.Is(err, os.ErrNotExist) {
		return nil, gerrors.NotFound(fmt.Sprintf("path not found: %s", p))
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", clean, err)
	}
	if !info.IsDir() {
		return []string{clean}, nil
	}
	return w.walk(clean)
}

func (w *LocalWorkspace) walk(root string) ([]string, error) {
	var files []string
	err := util.Walk(w.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		rel := filepath.ToSlash(p)
		if info.IsDir() {
			if path.Base(rel) == RepoDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			w.logger.Debug("skipping non-regular file", zap.String("path", rel))
			return nil
		}
		files = append(files, path.Clean(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// FilesIn returns the regular files directly inside dir.
func (w *LocalWorkspace) FilesIn(dir string) ([]string, error) {
	entries, err := w.fs.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Mode().IsRegular() {
			files = append(files, path.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// Read returns the content of path, or ok=false when it does not exist.
func (w *LocalWorkspace) Read(p string) ([]byte, bool, error) {
	data, err := util.ReadFile(w.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", p, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Write replaces path with data, creating parent directories.
func (w *LocalWorkspace) Write(p string, data []byte) error {
	if dir := path.Dir(p); dir != "." {
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(w.fs, p, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

// Remove deletes path and prunes parent directories left empty. Removing a
// missing file is not an error.
func (w *LocalWorkspace) Remove(p string) error {
	if err := w.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	if dir := path.Dir(p); dir != "." {
		if err := fsutil.PruneEmptyDirs(w.fs, dir); err != nil {
			w.logger.Warn("failed to prune empty directories", zap.String("dir", dir), zap.Error(err))
		}
	}
	return nil
}

// DestroyRepo removes the repository directory and everything in it.
func (w *LocalWorkspace) DestroyRepo() error {
	if err := util.RemoveAll(w.fs, RepoDir); err != nil {
		return fmt.Errorf("removing %s: %w", RepoDir, err)
	}
	return nil
}
