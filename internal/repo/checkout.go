package repo

import (
	"bytes"
	"fmt"

	gerrors "gible/internal/errors"
	"gible/shared/types"
	"gible/shared/utils"

	"go.uber.org/zap"
)

// CreateBranch points a new branch at head.
func (r *Repository) CreateBranch(name string) (*shared.BranchInfo, error) {
	var info *shared.BranchInfo
	err := r.mutate(func() error {
		if err := r.graph.CreateBranch(name); err != nil {
			return err
		}
		if err := r.graph.Save(); err != nil {
			return err
		}
		info = &shared.BranchInfo{Name: name, Tip: r.graph.Head()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ListBranches returns every branch with its tip.
func (r *Repository) ListBranches() ([]shared.BranchInfo, error) {
	if err := r.reload(); err != nil {
		return nil, err
	}
	var out []shared.BranchInfo
	for _, name := range r.graph.Branches() {
		tip, err := r.graph.BranchTip(name)
		if err != nil {
			return nil, err
		}
		out = append(out, shared.BranchInfo{
			Name:    name,
			Tip:     tip,
			Current: !r.graph.Detached() && name == r.graph.CurrentBranch(),
		})
	}
	return out, nil
}

func (r *Repository) refuseDuringMerge(action string) error {
	_, merging, err := r.state.Load()
	if err != nil {
		return err
	}
	if merging {
		return gerrors.MergeInProgress(fmt.Sprintf("cannot %s while a merge is in progress; resolve the conflicts and commit", action))
	}
	return nil
}

// SwitchBranch attaches to name and restores its tip into the worktree.
func (r *Repository) SwitchBranch(name string) (*shared.RestoreResult, error) {
	var result *shared.RestoreResult
	err := r.mutate(func() error {
		var err error
		result, err = r.switchLocked(name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) switchLocked(name string) (*shared.RestoreResult, error) {
	tip, err := r.graph.BranchTip(name)
	if err != nil {
		return nil, err
	}
	if err := r.refuseDuringMerge("switch branches"); err != nil {
		return nil, err
	}

	result, err := r.restoreTo(tip)
	if err != nil {
		return nil, err
	}
	if err := r.graph.Attach(name); err != nil {
		return nil, err
	}
	if err := r.graph.Save(); err != nil {
		return nil, err
	}
	result.Branch = name
	r.logger.Info("switched branch", zap.String("branch", name), zap.String("head", tip))
	return result, nil
}

// Checkout switches to a branch, or, given a commit id or a unique prefix of
// one, restores that commit and detaches head.
func (r *Repository) Checkout(target string) (*shared.RestoreResult, error) {
	var result *shared.RestoreResult
	err := r.mutate(func() error {
		if r.graph.HasBranch(target) {
			var err error
			result, err = r.switchLocked(target)
			return err
		}

		id, err := r.graph.Resolve(target)
		if err != nil {
			return err
		}
		if err := r.refuseDuringMerge("check out"); err != nil {
			return err
		}
		if result, err = r.restoreTo(id); err != nil {
			return err
		}
		r.graph.Detach(id)
		if err := r.graph.Save(); err != nil {
			return err
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("head is detached at %s", utils.ShortID(id)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Restore makes the worktree match a commit without moving any pointer.
// ref may be a branch name, a commit id or a unique prefix.
func (r *Repository) Restore(ref string) (*shared.RestoreResult, error) {
	var result *shared.RestoreResult
	err := r.mutate(func() error {
		id, err := r.resolveRef(ref)
		if err != nil {
			return err
		}
		if err := r.refuseDuringMerge("restore"); err != nil {
			return err
		}
		result, err = r.restoreTo(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveRef maps "", "HEAD", a branch name, a commit id or a unique prefix
// to a commit id.
func (r *Repository) resolveRef(ref string) (string, error) {
	switch {
	case ref == "" || ref == "HEAD":
		if r.graph.Head() == "" {
			return "", gerrors.NotFound("no commits yet")
		}
		return r.graph.Head(), nil
	case r.graph.HasBranch(ref):
		tip, _ := r.graph.BranchTip(ref)
		if tip == "" {
			return "", gerrors.NotFound(fmt.Sprintf("branch %s has no commits", ref))
		}
		return tip, nil
	}
	return r.graph.Resolve(ref)
}

// restoreTo writes the snapshot of target into the worktree, removes files
// tracked at the current head that target lacks, and clears the index.
// Untracked files are left alone.
func (r *Repository) restoreTo(target string) (*shared.RestoreResult, error) {
	previous, err := r.engine.Tree(r.graph.Head())
	if err != nil {
		return nil, err
	}
	snap, err := r.engine.Snapshot(target)
	if err != nil {
		return nil, err
	}

	result := &shared.RestoreResult{
		CommitID: target,
		Written:  []string{},
		Removed:  []string{},
		Warnings: r.loadWarnings(),
	}

	for _, p := range utils.SortedKeys(snap) {
		current, ok, err := r.work.Read(p)
		if err != nil {
			return nil, err
		}
		if ok && bytes.Equal(current, snap[p]) {
			continue
		}
		if err := r.work.Write(p, snap[p]); err != nil {
			return nil, err
		}
		result.Written = append(result.Written, p)
	}

	for _, p := range previous {
		if _, keep := snap[p]; keep {
			continue
		}
		if err := r.work.Remove(p); err != nil {
			return nil, err
		}
		result.Removed = append(result.Removed, p)
	}

	r.index.Clear()
	if err := r.index.Save(); err != nil {
		return nil, err
	}
	return result, nil
}
