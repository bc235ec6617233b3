package repo

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"gible/internal/diff"
	gerrors "gible/internal/errors"
	"gible/internal/graph"
	"gible/internal/safe"
	"gible/internal/workspace"
	"gible/shared/types"

	"go.uber.org/zap"
)

// contentFunc returns the new value of a path, ok=false meaning absent.
type contentFunc func(path string) (data []byte, ok bool, err error)

// prior returns the value of path at commit id, treating a path that was
// never tracked as absent.
func (r *Repository) prior(id, path string) ([]byte, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	data, ok, err := r.engine.File(id, path)
	if gerrors.HasType(err, gerrors.ErrorTypePathNeverTracked) {
		return nil, false, nil
	}
	return data, ok, err
}

// buildEntries compares each path's value at parent with now and stores what
// changed. Unchanged paths get no entry so they are inherited.
func (r *Repository) buildEntries(parent string, paths []string, now contentFunc) (map[string]graph.FileEntry, []shared.Change, error) {
	entries := make(map[string]graph.FileEntry)
	var changes []shared.Change

	for _, p := range paths {
		before, had, err := r.prior(parent, p)
		if err != nil {
			return nil, nil, fmt.Errorf("reconstructing %s: %w", p, err)
		}
		after, has, err := now(p)
		if err != nil {
			return nil, nil, err
		}

		switch {
		case had && !has:
			entries[p] = graph.Deleted()
			changes = append(changes, shared.Change{Path: p, Action: shared.ActionDeleted})

		case !had && has:
			oid, err := r.store.Save(after, safe.KindBase)
			if err != nil {
				return nil, nil, fmt.Errorf("storing %s: %w", p, err)
			}
			entries[p] = graph.Base(oid)
			changes = append(changes, shared.Change{Path: p, Action: shared.ActionAdded, Storage: string(diff.StorageBase), OID: oid})

		case had && has:
			if bytes.Equal(before, after) {
				continue
			}
			storage, payload, err := diff.StoreOrBase(before, after)
			if err != nil {
				return nil, nil, fmt.Errorf("encoding %s: %w", p, err)
			}
			kind, entry := safe.KindBase, graph.Base
			if storage.IsDiff() {
				kind, entry = safe.KindDiff, graph.Diff
			}
			oid, err := r.store.Save(payload, kind)
			if err != nil {
				return nil, nil, fmt.Errorf("storing %s: %w", p, err)
			}
			entries[p] = entry(oid)
			changes = append(changes, shared.Change{Path: p, Action: shared.ActionModified, Storage: string(storage), OID: oid})
		}
	}
	return entries, changes, nil
}

// commitScope returns the paths a commit evaluates: those tracked at head,
// those staged, and files sitting directly in a non-root directory that
// holds a tracked file. New files in the root need an explicit add.
func (r *Repository) commitScope(head string) ([]string, error) {
	tracked, err := r.engine.Tree(head)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, p := range tracked {
		set[p] = struct{}{}
		if dir := path.Dir(p); dir != "." {
			dirs[dir] = struct{}{}
		}
	}
	for _, p := range r.index.Paths() {
		set[p] = struct{}{}
	}
	for dir := range dirs {
		files, err := r.work.FilesIn(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !workspace.ShouldIgnore(f) {
				set[f] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Commit records the worktree state of every path in scope. With a pending
// merge the commit gets the other side as second parent and may carry no
// entries at all.
func (r *Repository) Commit(message string) (*shared.CommitResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, gerrors.ValidationError("commit message is empty", nil)
	}

	var result *shared.CommitResult
	err := r.mutate(func() error {
		warnings := r.loadWarnings()

		other, merging, err := r.state.Load()
		if err != nil {
			return err
		}

		head := r.graph.Head()
		scope, err := r.commitScope(head)
		if err != nil {
			return err
		}

		disk := func(p string) ([]byte, bool, error) {
			data, ok, err := r.work.Read(p)
			if err != nil || !ok {
				return nil, false, err
			}
			if staged, isStaged := r.index.Get(p); isStaged && staged.Hash != r.addr.Hash(data) {
				msg := fmt.Sprintf("%s changed after it was staged; committing the working copy", p)
				r.logger.Warn(msg)
				warnings = append(warnings, msg)
			}
			return data, true, nil
		}

		entries, changes, err := r.buildEntries(head, scope, disk)
		if err != nil {
			return err
		}
		if len(entries) == 0 && !merging {
			return gerrors.NothingToCommit("no changes to commit")
		}

		var parents []string
		if head != "" {
			parents = append(parents, head)
		}
		if merging {
			parents = append(parents, other)
		}

		id, err := r.writeCommit(parents, entries, message)
		if err != nil {
			return err
		}

		if merging {
			if err := r.state.Clear(); err != nil {
				return err
			}
			if err := r.conflicts.Clear(); err != nil {
				return err
			}
		}

		result = &shared.CommitResult{
			CommitID: id,
			Branch:   r.graph.CurrentBranch(),
			Parents:  parents,
			Message:  message,
			Changes:  changes,
			Warnings: warnings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// writeCommit stores the commit object, moves head and the current branch,
// and clears the staging index. Objects are written before any pointer so a
// failure leaves at most orphans.
func (r *Repository) writeCommit(parents []string, entries map[string]graph.FileEntry, message string) (string, error) {
	c := &graph.Commit{
		Parents:   parents,
		Files:     entries,
		Message:   message,
		Author:    r.cfg.Author,
		Timestamp: r.now().Format(time.RFC3339Nano),
	}
	id, err := r.graph.Write(c)
	if err != nil {
		return "", err
	}

	r.graph.Advance(id)
	if err := r.graph.Save(); err != nil {
		return "", err
	}

	r.index.Clear()
	if err := r.index.Save(); err != nil {
		return "", err
	}

	r.logger.Info("committed",
		zap.String("commit", id),
		zap.String("branch", r.graph.CurrentBranch()),
		zap.Int("files", len(entries)),
		zap.Int("parents", len(parents)))
	return id, nil
}
