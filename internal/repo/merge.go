package repo

import (
	"bytes"
	"fmt"
	"path"

	"gible/internal/content"
	gerrors "gible/internal/errors"
	"gible/internal/merge"
	"gible/internal/workspace"
	"gible/shared/types"
	"gible/shared/utils"

	"go.uber.org/zap"
)

// Merge merges branch into the current branch. Conflicts are a normal
// outcome: the result is conflicted, MERGE_HEAD is set and the resolving
// commit becomes the merge commit.
func (r *Repository) Merge(branch string) (*shared.MergeResult, error) {
	var result *shared.MergeResult
	err := r.mutate(func() error {
		var err error
		result, err = r.mergeLocked(branch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) mergeLocked(branch string) (*shared.MergeResult, error) {
	other, err := r.graph.BranchTip(branch)
	if err != nil {
		return nil, err
	}
	if _, merging, err := r.state.Load(); err != nil {
		return nil, err
	} else if merging {
		return nil, gerrors.MergeInProgress("a merge is already in progress; resolve the conflicts and commit")
	}
	if r.graph.Detached() {
		return nil, gerrors.DetachedHead("cannot merge with a detached head; switch to a branch first")
	}

	current := r.graph.CurrentBranch()
	head := r.graph.Head()
	result := &shared.MergeResult{Branch: branch, Into: current, Warnings: r.loadWarnings()}
	log := r.logger.With(zap.String("branch", branch), zap.String("into", current))

	switch {
	case head == other, other == "":
		result.Outcome = shared.MergeUpToDate
		return result, nil

	case head != "" && r.ancestry.IsAncestor(other, head):
		result.Outcome = shared.MergeAlreadyMerged
		return result, nil

	case head == "" || r.ancestry.IsAncestor(head, other):
		restored, err := r.restoreTo(other)
		if err != nil {
			return nil, err
		}
		r.graph.Advance(other)
		if err := r.graph.Save(); err != nil {
			return nil, err
		}
		result.Outcome = shared.MergeFastForward
		result.CommitID = other
		result.Updated = restored.Written
		result.Deleted = restored.Removed
		log.Info("fast-forwarded", zap.String("to", other))
		return result, nil
	}

	base := r.ancestry.CommonAncestor(head, other)
	result.Base = base
	log.Info("three-way merge", zap.String("base", base), zap.String("ours", head), zap.String("theirs", other))

	baseSnap, err := r.engine.Snapshot(base)
	if err != nil {
		return nil, err
	}
	ours, err := r.engine.Snapshot(head)
	if err != nil {
		return nil, err
	}
	theirs, err := r.engine.Snapshot(other)
	if err != nil {
		return nil, err
	}

	r.index.Clear()
	if err := r.conflicts.Clear(); err != nil {
		return nil, err
	}

	all := make(map[string]struct{})
	for _, snap := range []map[string][]byte{baseSnap, ours, theirs} {
		for p := range snap {
			all[p] = struct{}{}
		}
	}
	paths := utils.SortedKeys(all)

	mergeID := merge.NewMergeID()
	merged := make(map[string][]byte)
	for _, p := range paths {
		d := merge.Classify(baseSnap[p], ours[p], theirs[p], branch)
		switch d.Action {
		case merge.ActionDelete:
			if _, exists, err := r.work.Read(p); err != nil {
				return nil, err
			} else if exists {
				if err := r.work.Remove(p); err != nil {
					return nil, err
				}
				result.Deleted = append(result.Deleted, p)
			}

		case merge.ActionTake:
			merged[p] = d.Content
			if err := r.writeIfChanged(p, d.Content, result); err != nil {
				return nil, err
			}
			if ours[p] == nil || !bytes.Equal(d.Content, ours[p]) {
				r.index.Add(p, r.addr.Hash(d.Content), content.Classify(d.Content))
			}

		case merge.ActionConflict:
			if err := r.writeIfChanged(p, d.Content, result); err != nil {
				return nil, err
			}
			record := merge.NewRecord(p, d.Kind, mergeID, baseSnap[p], ours[p], theirs[p])
			if err := r.conflicts.Write(record); err != nil {
				return nil, err
			}
			// We deleted it and they changed it: the file is back on disk but
			// untracked at head, so the resolving commit only sees it if staged.
			// Deleting it again before committing keeps the deletion.
			if d.Kind == merge.ConflictDeleteModify && ours[p] == nil {
				r.index.Add(p, r.addr.Hash(d.Content), content.Classify(d.Content))
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s was deleted here and changed on %s; their version is staged, remove it to keep the deletion", p, branch))
			}
			result.Conflicts = append(result.Conflicts, p)
			log.Warn("merge conflict", zap.String("path", p), zap.String("kind", string(d.Kind)))
		}
	}

	if len(result.Conflicts) > 0 {
		if err := r.state.Save(other); err != nil {
			return nil, err
		}
		if err := r.index.Save(); err != nil {
			return nil, err
		}
		result.Outcome = shared.MergeConflicted
		result.ConflictDir = path.Join(workspace.RepoDir, r.conflicts.Dir())
		return result, nil
	}

	entries, _, err := r.buildEntries(head, paths, func(p string) ([]byte, bool, error) {
		data, ok := merged[p]
		return data, ok, nil
	})
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Merge branch '%s' into '%s'", branch, current)
	id, err := r.writeCommit([]string{head, other}, entries, message)
	if err != nil {
		return nil, err
	}
	result.Outcome = shared.MergeMerged
	result.CommitID = id
	return result, nil
}

func (r *Repository) writeIfChanged(p string, data []byte, result *shared.MergeResult) error {
	current, ok, err := r.work.Read(p)
	if err != nil {
		return err
	}
	if ok && bytes.Equal(current, data) {
		return nil
	}
	if err := r.work.Write(p, data); err != nil {
		return err
	}
	result.Updated = append(result.Updated, p)
	return nil
}
