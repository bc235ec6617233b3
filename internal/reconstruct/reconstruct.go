// Package reconstruct replays the entry chain of a path along the
// first-parent history to recover its exact bytes at any commit.
package reconstruct

import (
	"fmt"
	"sort"

	"gible/internal/diff"
	gerrors "gible/internal/errors"
	"gible/internal/graph"
	"gible/internal/safe"

	"go.uber.org/zap"
)

// Commits resolves commit ids. *graph.Graph satisfies it.
type Commits interface {
	Get(id string) (*graph.Commit, error)
}

// Engine rebuilds file contents from stored entries.
type Engine struct {
	commits Commits
	store   safe.Store
	logger  *zap.Logger
}

func New(commits Commits, store safe.Store, logger *zap.Logger) *Engine {
	return &Engine{commits: commits, store: store, logger: logger}
}

// Chain returns the first-parent history of id, newest first. An empty id
// is the empty history.
func (e *Engine) Chain(id string) ([]*graph.Commit, error) {
	var chain []*graph.Commit
	seen := make(map[string]bool)
	for id != "" {
		if seen[id] {
			return nil, gerrors.CorruptMetadata("first-parent history loops at %s", id)
		}
		seen[id] = true

		c, err := e.commits.Get(id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
		id = c.FirstParent()
	}
	return chain, nil
}

// File returns the bytes of path at commit id. present is false when the
// path was deleted and not reintroduced. A path with no entry anywhere on
// the chain is PATH_NEVER_TRACKED.
func (e *Engine) File(id, path string) ([]byte, bool, error) {
	chain, err := e.Chain(id)
	if err != nil {
		return nil, false, err
	}

	var entries []graph.FileEntry
	for _, c := range chain {
		if entry, ok := c.Files[path]; ok {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return nil, false, gerrors.PathNeverTracked(path)
	}

	// oldest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if entries[0].Kind == graph.EntryDiff {
		return nil, false, gerrors.UnsupportedEntryKind("oldest entry for %s is a diff", path)
	}

	var (
		buf     []byte
		present bool
	)
	for _, entry := range entries {
		switch entry.Kind {
		case graph.EntryBase:
			if buf, err = e.store.Load(entry.OID, safe.KindBase); err != nil {
				return nil, false, fmt.Errorf("loading base of %s: %w", path, err)
			}
			present = true

		case graph.EntryDeleted:
			buf, present = nil, false

		case graph.EntryDiff:
			if !present {
				return nil, false, gerrors.UnsupportedEntryKind("diff entry for %s applies to a deleted file", path)
			}
			patch, err := e.store.Load(entry.OID, safe.KindDiff)
			if err != nil {
				return nil, false, fmt.Errorf("loading diff of %s: %w", path, err)
			}
			// The codec is re-derived from the buffer at every step.
			if buf, err = diff.For(buf).Apply(buf, patch); err != nil {
				return nil, false, fmt.Errorf("applying diff %s to %s: %w", entry.OID, path, err)
			}

		default:
			return nil, false, gerrors.UnsupportedEntryKind("unknown entry kind %q for %s", entry.Kind, path)
		}
	}

	if buf == nil && present {
		buf = []byte{}
	}
	return buf, present, nil
}

// Tree returns the paths present at commit id, sorted.
func (e *Engine) Tree(id string) ([]string, error) {
	chain, err := e.Chain(id)
	if err != nil {
		return nil, err
	}

	newest := make(map[string]graph.EntryKind)
	for _, c := range chain {
		for path, entry := range c.Files {
			if _, ok := newest[path]; !ok {
				newest[path] = entry.Kind
			}
		}
	}

	paths := make([]string, 0, len(newest))
	for path, kind := range newest {
		if kind != graph.EntryDeleted {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Snapshot returns the full contents of every path present at commit id.
func (e *Engine) Snapshot(id string) (map[string][]byte, error) {
	paths, err := e.Tree(id)
	if err != nil {
		return nil, err
	}

	snap := make(map[string][]byte, len(paths))
	for _, path := range paths {
		data, present, err := e.File(id, path)
		if err != nil {
			return nil, err
		}
		if present {
			snap[path] = data
		}
	}
	e.logger.Debug("reconstructed snapshot", zap.String("commit", id), zap.Int("files", len(snap)))
	return snap, nil
}
