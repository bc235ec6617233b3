// Package shared holds the result types returned by repository operations
// to the CLI and the API server.
package shared

// Change is one path recorded by a commit.
type Change struct {
	Path    string `json:"path"`
	Action  string `json:"action"`  // added, modified, deleted
	Storage string `json:"storage"` // base, text-diff, binary-diff, binary-base; empty for deletions
	OID     string `json:"oid,omitempty"`
}

const (
	ActionAdded    = "added"
	ActionModified = "modified"
	ActionDeleted  = "deleted"
)

type StagedFile struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Mode string `json:"mode"`
}

type AddResult struct {
	Staged   []StagedFile `json:"staged"`
	Warnings []string     `json:"warnings,omitempty"`
}

type RemoveResult struct {
	Removed  []string `json:"removed"`
	Warnings []string `json:"warnings,omitempty"`
}

type CommitResult struct {
	CommitID string   `json:"commit_id"`
	Branch   string   `json:"branch,omitempty"`
	Parents  []string `json:"parents"`
	Message  string   `json:"message"`
	Changes  []Change `json:"changes"`
	Warnings []string `json:"warnings,omitempty"`
}

// MergeOutcome is the branch the merge state machine took.
type MergeOutcome string

const (
	MergeUpToDate      MergeOutcome = "up_to_date"
	MergeAlreadyMerged MergeOutcome = "already_merged"
	MergeFastForward   MergeOutcome = "fast_forward"
	MergeConflicted    MergeOutcome = "conflicted"
	MergeMerged        MergeOutcome = "merged"
)

type MergeResult struct {
	Outcome     MergeOutcome `json:"outcome"`
	Branch      string       `json:"branch"`
	Into        string       `json:"into"`
	Base        string       `json:"base,omitempty"`
	CommitID    string       `json:"commit_id,omitempty"`
	ConflictDir string       `json:"conflict_dir,omitempty"`
	Conflicts   []string     `json:"conflicts,omitempty"`
	Updated     []string     `json:"updated,omitempty"`
	Deleted     []string     `json:"deleted,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

type RestoreResult struct {
	CommitID string   `json:"commit_id"`
	Branch   string   `json:"branch,omitempty"`
	Written  []string `json:"written"`
	Removed  []string `json:"removed"`
	Warnings []string `json:"warnings,omitempty"`
}

type Status struct {
	Branch          string       `json:"branch,omitempty"`
	Head            string       `json:"head,omitempty"`
	Detached        bool         `json:"detached"`
	MergeInProgress bool         `json:"merge_in_progress"`
	MergeHead       string       `json:"merge_head,omitempty"`
	Conflicts       []string     `json:"conflicts,omitempty"`
	Staged          []StagedFile `json:"staged"`
	Modified        []string     `json:"modified"`
	Deleted         []string     `json:"deleted"`
	Untracked       []string     `json:"untracked"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// Clean reports whether nothing is staged, changed or untracked.
func (s *Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Modified) == 0 && len(s.Deleted) == 0 && len(s.Untracked) == 0
}

type BranchInfo struct {
	Name    string `json:"name"`
	Tip     string `json:"tip,omitempty"`
	Current bool   `json:"current"`
}

type CommitInfo struct {
	ID        string   `json:"id"`
	Parents   []string `json:"parents"`
	Message   string   `json:"message"`
	Author    string   `json:"author"`
	Timestamp string   `json:"timestamp"`
	Merge     bool     `json:"merge"`
}

// FileDiff is the presentation diff of one path in a commit or worktree.
type FileDiff struct {
	Path      string     `json:"path"`
	Entry     string     `json:"entry"` // base, diff, deleted, or worktree status
	Binary    bool       `json:"binary"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Diff      string     `json:"diff,omitempty"`
	DiffHunks []DiffHunk `json:"diff_hunks,omitempty"`
}

// DiffHunk represents a section of changes
type DiffHunk struct {
	OldStart int      `json:"old_start"`
	OldLines int      `json:"old_lines"`
	NewStart int      `json:"new_start"`
	NewLines int      `json:"new_lines"`
	Lines    []string `json:"lines"`
}

type CommitDetail struct {
	CommitInfo
	Files []FileDiff `json:"files"`
}

// Log is first-parent history, newest first.
type Log struct {
	Commits  []CommitInfo `json:"commits"`
	Warnings []string     `json:"warnings,omitempty"`
}
