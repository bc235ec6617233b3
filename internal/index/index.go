// Package index is the staging area: paths waiting to be committed, with the
// hash and text/binary mode they had when staged.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"gible/internal/content"
	"gible/internal/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

const FileName = "index.json"

// Entry is one staged path.
type Entry struct {
	Hash string       `json:"hash"`
	Mode content.Mode `json:"mode"`
}

// Index is the in-memory staging map, persisted to index.json.
type Index struct {
	fs       billy.Filesystem
	entries  map[string]Entry
	logger   *zap.Logger
	warnings []string
}

// Load reads index.json. A missing file is an empty index; an unreadable
// one is reset to empty with a warning.
func Load(fs billy.Filesystem, logger *zap.Logger) (*Index, error) {
	idx := &Index{
		fs:      fs,
		entries: make(map[string]Entry),
		logger:  logger,
	}

	data, err := util.ReadFile(fs, FileName)
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	if err := json.Unmarshal(data, &idx.entries); err != nil {
		idx.entries = make(map[string]Entry)
		idx.warn("staging index was unreadable and has been reset", zap.Error(err))
		return idx, nil
	}

	for path, e := range idx.entries {
		if !content.ValidOID(e.Hash) || !e.Mode.Valid() {
			delete(idx.entries, path)
			idx.warn("dropped malformed staging entry", zap.String("path", path))
		}
	}

	return idx, nil
}

func (idx *Index) warn(msg string, fields ...zap.Field) {
	idx.logger.Warn(msg, fields...)
	idx.warnings = append(idx.warnings, msg)
}

// Warnings returns problems repaired while loading.
func (idx *Index) Warnings() []string {
	return idx.warnings
}

func (idx *Index) Add(path, hash string, mode content.Mode) {
	idx.entries[path] = Entry{Hash: hash, Mode: mode}
}

// Remove drops path and reports whether it was staged.
func (idx *Index) Remove(path string) bool {
	_, ok := idx.entries[path]
	delete(idx.entries, path)
	return ok
}

func (idx *Index) Get(path string) (Entry, bool) {
	e, ok := idx.entries[path]
	return e, ok
}

// Paths returns the staged paths in sorted order.
func (idx *Index) Paths() []string {
	paths := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

func (idx *Index) Clear() {
	idx.entries = make(map[string]Entry)
}

// Save writes index.json atomically.
func (idx *Index) Save() error {
	data, err := json.MarshalIndent(idx.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	return fsutil.WriteFileAtomic(idx.fs, FileName, data)
}
