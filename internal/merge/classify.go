package merge

import (
	"bytes"

	"gible/internal/content"
)

// Action is what a three-way merge does with one path.
type Action int

const (
	// ActionDelete removes the path from the merged tree and the worktree.
	ActionDelete Action = iota
	// ActionTake writes Decision.Content.
	ActionTake
	// ActionConflict writes Decision.Content (markers, or the kept side) and
	// records a conflict.
	ActionConflict
)

func (a Action) String() string {
	switch a {
	case ActionDelete:
		return "delete"
	case ActionTake:
		return "take"
	case ActionConflict:
		return "conflict"
	}
	return "unknown"
}

// ConflictKind says why a path could not be merged automatically.
type ConflictKind string

const (
	ConflictContent      ConflictKind = "content"
	ConflictDeleteModify ConflictKind = "delete_modify"
	ConflictBinary       ConflictKind = "binary"
)

// Decision is the outcome for one path.
type Decision struct {
	Action  Action
	Content []byte
	Kind    ConflictKind
}

func take(data []byte) Decision { return Decision{Action: ActionTake, Content: data} }

// Classify decides one path given its bytes at the merge base, ours and
// theirs. A nil slice means the path is absent on that side; an empty file
// is a non-nil empty slice.
func Classify(base, ours, theirs []byte, label string) Decision {
	switch {
	case ours == nil && theirs == nil:
		return Decision{Action: ActionDelete}

	case ours == nil:
		if base == nil {
			return take(theirs)
		}
		if bytes.Equal(theirs, base) {
			return Decision{Action: ActionDelete}
		}
		return Decision{Action: ActionConflict, Content: theirs, Kind: ConflictDeleteModify}

	case theirs == nil:
		if base == nil {
			return take(ours)
		}
		if bytes.Equal(ours, base) {
			return Decision{Action: ActionDelete}
		}
		return Decision{Action: ActionConflict, Content: ours, Kind: ConflictDeleteModify}
	}

	switch {
	case bytes.Equal(ours, theirs):
		return take(ours)
	case base != nil && bytes.Equal(ours, base):
		return take(theirs)
	case base != nil && bytes.Equal(theirs, base):
		return take(ours)
	}

	if content.IsText(ours) && content.IsText(theirs) && content.IsText(base) {
		merged, conflicted := MergeText(base, ours, theirs, label)
		if conflicted {
			return Decision{Action: ActionConflict, Content: merged, Kind: ConflictContent}
		}
		return take(merged)
	}
	return Decision{Action: ActionConflict, Content: ours, Kind: ConflictBinary}
}
