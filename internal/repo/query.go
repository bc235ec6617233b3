package repo

import (
	"bytes"
	"fmt"

	"gible/internal/content"
	"gible/internal/diff"
	gerrors "gible/internal/errors"
	"gible/internal/graph"
	"gible/shared/types"
	"gible/shared/utils"
)

const diffContext = 3

// Status compares the index and worktree against head.
func (r *Repository) Status() (*shared.Status, error) {
	if err := r.reload(); err != nil {
		return nil, err
	}

	st := &shared.Status{
		Branch:    r.graph.CurrentBranch(),
		Head:      r.graph.Head(),
		Detached:  r.graph.Detached() && r.graph.Head() != "",
		Staged:    []shared.StagedFile{},
		Modified:  []string{},
		Deleted:   []string{},
		Untracked: []string{},
		Warnings:  r.loadWarnings(),
	}

	mergeHead, merging, err := r.state.Load()
	if err != nil {
		return nil, err
	}
	if merging {
		st.MergeInProgress = true
		st.MergeHead = mergeHead
		records, err := r.conflicts.List()
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			st.Conflicts = append(st.Conflicts, rec.File)
		}
	}

	for _, p := range r.index.Paths() {
		e, _ := r.index.Get(p)
		st.Staged = append(st.Staged, shared.StagedFile{Path: p, Hash: e.Hash, Mode: string(e.Mode)})
	}

	snap, err := r.engine.Snapshot(r.graph.Head())
	if err != nil {
		return nil, err
	}
	for _, p := range utils.SortedKeys(snap) {
		data, ok, err := r.work.Read(p)
		if err != nil {
			return nil, err
		}
		switch {
		case !ok:
			st.Deleted = append(st.Deleted, p)
		case !bytes.Equal(data, snap[p]):
			st.Modified = append(st.Modified, p)
		}
	}

	files, err := r.work.Files()
	if err != nil {
		return nil, err
	}
	for _, p := range files {
		if _, tracked := snap[p]; tracked {
			continue
		}
		if _, staged := r.index.Get(p); staged {
			continue
		}
		st.Untracked = append(st.Untracked, p)
	}
	return st, nil
}

func commitInfo(c *graph.Commit) shared.CommitInfo {
	parents := c.Parents
	if parents == nil {
		parents = []string{}
	}
	return shared.CommitInfo{
		ID:        c.ID,
		Parents:   parents,
		Message:   c.Message,
		Author:    c.Author,
		Timestamp: c.Timestamp,
		Merge:     c.IsMerge(),
	}
}

// ListCommits walks first-parent history from head, newest first. A limit
// of zero or less means no limit. A head that does not resolve is reset to
// null and reported as a warning.
func (r *Repository) ListCommits(limit int) (*shared.Log, error) {
	log := &shared.Log{Commits: []shared.CommitInfo{}}
	err := r.mutate(func() error {
		before := len(r.graph.Warnings())
		r.graph.RepairHead()
		if len(r.graph.Warnings()) > before {
			if err := r.graph.Save(); err != nil {
				return err
			}
		}
		log.Warnings = r.loadWarnings()

		seen := make(map[string]bool)
		for id := r.graph.Head(); id != ""; {
			if limit > 0 && len(log.Commits) >= limit {
				break
			}
			if seen[id] {
				return gerrors.CorruptMetadata("commit %s is its own ancestor", id)
			}
			seen[id] = true

			c, err := r.graph.Get(id)
			if err != nil {
				return err
			}
			log.Commits = append(log.Commits, commitInfo(c))
			id = c.FirstParent()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

// ReadFile reconstructs path at ref.
func (r *Repository) ReadFile(ref, path string) ([]byte, error) {
	if err := r.reload(); err != nil {
		return nil, err
	}
	id, err := r.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	clean, err := r.work.Normalize(path)
	if err != nil {
		return nil, err
	}
	data, ok, err := r.engine.File(id, clean)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, gerrors.NotFound(fmt.Sprintf("%s is deleted at %s", clean, utils.ShortID(id)))
	}
	return data, nil
}

// Tree lists the paths present at ref.
func (r *Repository) Tree(ref string) ([]string, error) {
	if err := r.reload(); err != nil {
		return nil, err
	}
	id, err := r.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	return r.engine.Tree(id)
}

// Diff compares head with the worktree. With no paths it covers every path
// tracked at head or staged.
func (r *Repository) Diff(paths ...string) ([]shared.FileDiff, error) {
	if err := r.reload(); err != nil {
		return nil, err
	}
	snap, err := r.engine.Snapshot(r.graph.Head())
	if err != nil {
		return nil, err
	}

	scope := make(map[string]struct{})
	if len(paths) == 0 {
		for p := range snap {
			scope[p] = struct{}{}
		}
		for _, p := range r.index.Paths() {
			scope[p] = struct{}{}
		}
	}
	for _, p := range paths {
		clean, err := r.work.Normalize(p)
		if err != nil {
			return nil, err
		}
		scope[clean] = struct{}{}
	}

	out := []shared.FileDiff{}
	for _, p := range utils.SortedKeys(scope) {
		before, had := snap[p]
		after, has, err := r.work.Read(p)
		if err != nil {
			return nil, err
		}

		var entry string
		switch {
		case had && has:
			if bytes.Equal(before, after) {
				continue
			}
			entry = shared.ActionModified
		case has:
			entry = shared.ActionAdded
		case had:
			entry = shared.ActionDeleted
		default:
			continue
		}

		fd, err := fileDiff(p, entry, before, after)
		if err != nil {
			return nil, err
		}
		out = append(out, fd)
	}
	return out, nil
}

// Show returns a commit with each recorded path diffed against the first
// parent.
func (r *Repository) Show(ref string) (*shared.CommitDetail, error) {
	if err := r.reload(); err != nil {
		return nil, err
	}
	id, err := r.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	c, err := r.graph.Get(id)
	if err != nil {
		return nil, err
	}

	detail := &shared.CommitDetail{CommitInfo: commitInfo(c), Files: []shared.FileDiff{}}
	for _, p := range c.Paths() {
		before, _, err := r.prior(c.FirstParent(), p)
		if err != nil {
			return nil, err
		}
		after, _, err := r.engine.File(id, p)
		if err != nil {
			return nil, err
		}
		fd, err := fileDiff(p, string(c.Files[p].Kind), before, after)
		if err != nil {
			return nil, err
		}
		detail.Files = append(detail.Files, fd)
	}
	return detail, nil
}

func fileDiff(path, entry string, before, after []byte) (shared.FileDiff, error) {
	fd := shared.FileDiff{Path: path, Entry: entry}
	if !content.IsText(before) || !content.IsText(after) {
		fd.Binary = true
		return fd, nil
	}

	res, err := diff.NewEngine(diffContext).Diff(before, after)
	if err != nil {
		return fd, err
	}
	fd.Additions = res.Stats.Additions
	fd.Deletions = res.Stats.Deletions
	fd.Diff = res.Format()
	for _, h := range res.Hunks {
		hunk := shared.DiffHunk{
			OldStart: h.OldStart,
			OldLines: h.OldLines,
			NewStart: h.NewStart,
			NewLines: h.NewLines,
		}
		for _, l := range h.Lines {
			prefix := " "
			switch l.Type {
			case diff.Addition:
				prefix = "+"
			case diff.Deletion:
				prefix = "-"
			}
			hunk.Lines = append(hunk.Lines, prefix+l.Content)
		}
		fd.DiffHunks = append(fd.DiffHunks, hunk)
	}
	return fd, nil
}
