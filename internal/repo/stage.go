package repo

import (
	"fmt"

	"gible/internal/content"
	gerrors "gible/internal/errors"
	"gible/shared/types"

	"go.uber.org/zap"
)

// Add stages files. Directories are walked recursively, skipping the
// repository directory. A path that does not exist is NOT_FOUND and nothing
// is staged.
func (r *Repository) Add(paths ...string) (*shared.AddResult, error) {
	if len(paths) == 0 {
		return nil, gerrors.ValidationError("no paths specified", nil)
	}

	result := &shared.AddResult{}
	err := r.mutate(func() error {
		result.Warnings = r.loadWarnings()

		var files []string
		for _, p := range paths {
			expanded, err := r.work.Expand(p)
			if err != nil {
				return err
			}
			files = append(files, expanded...)
		}

		seen := make(map[string]bool, len(files))
		for _, path := range files {
			if seen[path] {
				continue
			}
			seen[path] = true

			data, ok, err := r.work.Read(path)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			hash := r.addr.Hash(data)
			mode := content.Classify(data)
			r.index.Add(path, hash, mode)
			result.Staged = append(result.Staged, shared.StagedFile{Path: path, Hash: hash, Mode: string(mode)})
			r.logger.Debug("staged", zap.String("path", path), zap.String("mode", string(mode)))
		}

		return r.index.Save()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Remove unstages paths and deletes them from the worktree, pruning
// directories left empty. The next commit records a deletion for any of
// them that were tracked.
func (r *Repository) Remove(paths ...string) (*shared.RemoveResult, error) {
	if len(paths) == 0 {
		return nil, gerrors.ValidationError("no paths specified", nil)
	}

	result := &shared.RemoveResult{}
	err := r.mutate(func() error {
		result.Warnings = r.loadWarnings()

		tracked, err := r.trackedSet(r.graph.Head())
		if err != nil {
			return err
		}

		for _, p := range paths {
			clean, err := r.work.Normalize(p)
			if err != nil {
				return err
			}

			targets, err := r.work.Expand(clean)
			if gerrors.HasType(err, gerrors.ErrorTypeNotFound) {
				// Already gone from disk; it may still be staged or tracked.
				_, staged := r.index.Get(clean)
				if !staged && !tracked[clean] {
					return gerrors.NotFound(fmt.Sprintf("path not found: %s", p))
				}
				targets = []string{clean}
			} else if err != nil {
				return err
			}

			for _, path := range targets {
				r.index.Remove(path)
				if err := r.work.Remove(path); err != nil {
					return err
				}
				result.Removed = append(result.Removed, path)
			}
		}

		return r.index.Save()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// trackedSet returns the paths present at commit id.
func (r *Repository) trackedSet(id string) (map[string]bool, error) {
	paths, err := r.engine.Tree(id)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set, nil
}

// Unstage drops paths from the index and leaves the worktree alone. Paths
// that are not staged are ignored.
func (r *Repository) Unstage(paths ...string) (*shared.RemoveResult, error) {
	result := &shared.RemoveResult{Removed: []string{}}
	err := r.mutate(func() error {
		result.Warnings = r.loadWarnings()
		for _, p := range paths {
			clean, err := r.work.Normalize(p)
			if err != nil {
				return err
			}
			if r.index.Remove(clean) {
				result.Removed = append(result.Removed, clean)
			}
		}
		return r.index.Save()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
