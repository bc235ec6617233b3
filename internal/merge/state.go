package merge

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"

	"gible/internal/content"
	gerrors "gible/internal/errors"
	"gible/internal/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

const (
	HeadFile     = "MERGE_HEAD"
	ConflictsDir = "merge_conflicts"

	EncodingText   = "text"
	EncodingBase64 = "base64"
)

// State is the MERGE_HEAD marker: it exists while a conflicted merge waits
// for the resolving commit.
type State struct {
	fs billy.Filesystem
}

func NewState(fs billy.Filesystem) *State {
	return &State{fs: fs}
}

// Load returns the other parent of the pending merge, if any.
func (s *State) Load() (string, bool, error) {
	data, err := util.ReadFile(s.fs, HeadFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", HeadFile, err)
	}
	id := strings.TrimSpace(string(data))
	if !content.ValidOID(id) {
		return "", false, gerrors.CorruptMetadata("%s holds %q", HeadFile, id)
	}
	return id, true, nil
}

func (s *State) Save(otherParent string) error {
	return fsutil.WriteFileAtomic(s.fs, HeadFile, []byte(otherParent+"\n"))
}

func (s *State) Clear() error {
	if err := s.fs.Remove(HeadFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", HeadFile, err)
	}
	return nil
}

// Record is the inspection copy of one conflicted path.
type Record struct {
	File     string       `json:"file"`
	Status   string       `json:"status"`
	Kind     ConflictKind `json:"kind"`
	MergeID  string       `json:"merge_id"`
	Encoding string       `json:"encoding"`
	Base     *string      `json:"base"`
	Ours     *string      `json:"ours"`
	Theirs   *string      `json:"theirs"`
}

// NewRecord builds a record for path. Payloads are stored as text when every
// present side is valid UTF-8 and as base64 otherwise; a nil side is null.
func NewRecord(file string, kind ConflictKind, mergeID string, base, ours, theirs []byte) Record {
	encoding := EncodingText
	for _, side := range [][]byte{base, ours, theirs} {
		if side != nil && !content.IsText(side) {
			encoding = EncodingBase64
		}
	}
	encode := func(data []byte) *string {
		if data == nil {
			return nil
		}
		s := string(data)
		if encoding == EncodingBase64 {
			s = base64.StdEncoding.EncodeToString(data)
		}
		return &s
	}
	return Record{
		File:     file,
		Status:   "conflict",
		Kind:     kind,
		MergeID:  mergeID,
		Encoding: encoding,
		Base:     encode(base),
		Ours:     encode(ours),
		Theirs:   encode(theirs),
	}
}

// NewMergeID returns a fresh id grouping the records of one merge.
func NewMergeID() string {
	return uuid.New().String()
}

// Decode returns the raw bytes of a payload field.
func (r Record) Decode(field *string) ([]byte, error) {
	if field == nil {
		return nil, nil
	}
	if r.Encoding == EncodingBase64 {
		return base64.StdEncoding.DecodeString(*field)
	}
	return []byte(*field), nil
}

// ConflictStore keeps one JSON record per conflicted path under
// merge_conflicts/, named by the path-escaped file path.
type ConflictStore struct {
	fs billy.Filesystem
}

func NewConflictStore(fs billy.Filesystem) *ConflictStore {
	return &ConflictStore{fs: fs}
}

// Dir returns the record directory relative to the repository dir.
func (c *ConflictStore) Dir() string {
	return ConflictsDir
}

func recordName(file string) string {
	return path.Join(ConflictsDir, url.PathEscape(file)+".json")
}

func (c *ConflictStore) Clear() error {
	if err := util.RemoveAll(c.fs, ConflictsDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing %s: %w", ConflictsDir, err)
	}
	return nil
}

func (c *ConflictStore) Write(r Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling conflict record for %s: %w", r.File, err)
	}
	return fsutil.WriteFileAtomic(c.fs, recordName(r.File), data)
}

// List returns the stored records sorted by file.
func (c *ConflictStore) List() ([]Record, error) {
	entries, err := c.fs.ReadDir(ConflictsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", ConflictsDir, err)
	}

	var records []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := util.ReadFile(c.fs, path.Join(ConflictsDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading conflict record %s: %w", e.Name(), err)
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, gerrors.CorruptMetadata("conflict record %s: %v", e.Name(), err)
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].File < records[j].File })
	return records, nil
}
