package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gible/internal/content"
	gerrors "gible/internal/errors"
)

// EntryKind tags a FileEntry.
type EntryKind string

const (
	EntryBase    EntryKind = "base"
	EntryDiff    EntryKind = "diff"
	EntryDeleted EntryKind = "deleted"
)

// FileEntry is what a commit records for one path: a full snapshot, a patch
// against the first parent's value, or a deletion.
type FileEntry struct {
	Kind EntryKind
	OID  string
}

func Base(oid string) FileEntry { return FileEntry{Kind: EntryBase, OID: oid} }
func Diff(oid string) FileEntry { return FileEntry{Kind: EntryDiff, OID: oid} }
func Deleted() FileEntry        { return FileEntry{Kind: EntryDeleted} }

func (e FileEntry) String() string {
	if e.Kind == EntryDeleted {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s:%s", e.Kind, e.OID)
}

// MarshalJSON writes ["base", oid], ["diff", oid] or ["deleted", null].
func (e FileEntry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EntryBase, EntryDiff:
		return json.Marshal([]any{e.Kind, e.OID})
	case EntryDeleted:
		return json.Marshal([]any{e.Kind, nil})
	}
	return nil, gerrors.UnsupportedEntryKind("unknown file entry kind %q", e.Kind)
}

func (e *FileEntry) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return gerrors.UnsupportedEntryKind("file entry is not a list: %s", data)
	}
	if len(fields) != 2 {
		return gerrors.UnsupportedEntryKind("file entry has %d fields, want 2", len(fields))
	}

	var kind EntryKind
	if err := json.Unmarshal(fields[0], &kind); err != nil {
		return gerrors.UnsupportedEntryKind("file entry tag is not a string: %s", fields[0])
	}

	switch kind {
	case EntryBase, EntryDiff:
		var oid string
		if err := json.Unmarshal(fields[1], &oid); err != nil || !content.ValidOID(oid) {
			return gerrors.UnsupportedEntryKind("%s entry has invalid oid %s", kind, fields[1])
		}
		*e = FileEntry{Kind: kind, OID: oid}
	case EntryDeleted:
		if !isNull(fields[1]) {
			return gerrors.UnsupportedEntryKind("deleted entry carries a value: %s", fields[1])
		}
		*e = Deleted()
	default:
		return gerrors.UnsupportedEntryKind("unknown file entry kind %q", kind)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Commit is an immutable history record. Files only holds paths whose value
// changed relative to the first parent.
type Commit struct {
	ID        string
	Parents   []string
	Files     map[string]FileEntry
	Message   string
	Author    string
	Timestamp string
}

// FirstParent returns the parent followed by reconstruction, or "" for a root.
func (c *Commit) FirstParent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// Paths returns the paths with an entry in this commit, sorted.
func (c *Commit) Paths() []string {
	paths := make([]string, 0, len(c.Files))
	for p := range c.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// commitJSON is the stored shape. Field order is fixed so the encoding, and
// with it the commit id, is deterministic.
type commitJSON struct {
	Parent    json.RawMessage      `json:"parent"`
	Files     map[string]FileEntry `json:"files"`
	Message   string               `json:"message"`
	Author    string               `json:"author"`
	Timestamp string               `json:"timestamp"`
}

func (c *Commit) MarshalJSON() ([]byte, error) {
	var parent any
	switch len(c.Parents) {
	case 0:
		parent = nil
	case 1:
		parent = c.Parents[0]
	default:
		parent = c.Parents
	}
	rawParent, err := json.Marshal(parent)
	if err != nil {
		return nil, err
	}

	files := c.Files
	if files == nil {
		files = map[string]FileEntry{}
	}
	return json.Marshal(commitJSON{
		Parent:    rawParent,
		Files:     files,
		Message:   c.Message,
		Author:    c.Author,
		Timestamp: c.Timestamp,
	})
}

func (c *Commit) UnmarshalJSON(data []byte) error {
	var wire commitJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		if gerrors.HasType(err, gerrors.ErrorTypeUnsupportedEntry) {
			return err
		}
		return gerrors.CorruptMetadata("commit record: %v", err)
	}

	parents, err := decodeParents(wire.Parent)
	if err != nil {
		return err
	}

	*c = Commit{
		ID:        c.ID,
		Parents:   parents,
		Files:     wire.Files,
		Message:   wire.Message,
		Author:    wire.Author,
		Timestamp: wire.Timestamp,
	}
	if c.Files == nil {
		c.Files = map[string]FileEntry{}
	}
	return nil
}

// decodeParents normalizes the stored parent field (null, a string or a list
// of strings) to a slice.
func decodeParents(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}

	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, gerrors.CorruptMetadata("commit parent is neither a string nor a list of strings: %s", raw)
	}
	parents := many[:0]
	for _, p := range many {
		if p == "" {
			return nil, gerrors.CorruptMetadata("commit parent list holds an empty id")
		}
		parents = append(parents, p)
	}
	if len(parents) > 2 {
		return nil, gerrors.CorruptMetadata("commit has %d parents", len(parents))
	}
	return parents, nil
}

// Encode returns the bytes stored as the commit object.
func (c *Commit) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Decode parses a stored commit object.
func Decode(id string, data []byte) (*Commit, error) {
	c := &Commit{ID: id}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
