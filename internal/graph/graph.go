// Package graph owns the commit DAG: immutable commit objects plus the
// mutable branch table kept in metadata.json.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gible/internal/content"
	gerrors "gible/internal/errors"
	"gible/internal/fsutil"
	"gible/internal/safe"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	MetadataFile  = "metadata.json"
	DefaultBranch = "master"

	commitCacheSize = 512
	minPrefixLen    = 4
)

// Graph is the in-memory view of metadata.json for one session. Changes are
// kept in memory until Save.
type Graph struct {
	fs     billy.Filesystem
	store  safe.Store
	logger *zap.Logger

	head     string
	current  string // "" when detached
	branches map[string]string
	commits  map[string]*Commit

	cache    *lru.Cache[string, *Commit]
	warnings []string
}

type metadataIn struct {
	Head          json.RawMessage            `json:"head"`
	CurrentBranch json.RawMessage            `json:"current_branch"`
	Branches      json.RawMessage            `json:"branches"`
	Commits       map[string]json.RawMessage `json:"commits"`
}

type metadataOut struct {
	Head          *string            `json:"head"`
	CurrentBranch *string            `json:"current_branch"`
	Branches      map[string]*string `json:"branches"`
	Commits       map[string]*Commit `json:"commits"`
}

// Init writes the metadata of an empty repository.
func Init(fs billy.Filesystem) error {
	master := DefaultBranch
	data, err := json.MarshalIndent(metadataOut{
		CurrentBranch: &master,
		Branches:      map[string]*string{DefaultBranch: nil},
		Commits:       map[string]*Commit{},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return fsutil.WriteFileAtomic(fs, MetadataFile, data)
}

// Load reads metadata.json. Malformed pointers are reset to null and
// malformed commit index entries are dropped; both are reported through
// Warnings.
func Load(fs billy.Filesystem, store safe.Store, logger *zap.Logger) (*Graph, error) {
	cache, err := lru.New[string, *Commit](commitCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating commit cache: %w", err)
	}

	g := &Graph{
		fs:       fs,
		store:    store,
		logger:   logger,
		branches: make(map[string]string),
		commits:  make(map[string]*Commit),
		cache:    cache,
	}

	data, err := util.ReadFile(fs, MetadataFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, gerrors.NotARepository(fmt.Sprintf("%s is missing", MetadataFile))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", MetadataFile, err)
	}

	var raw metadataIn
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, gerrors.CorruptMetadata("%s is not a JSON object: %v", MetadataFile, err)
	}

	g.head = g.stringPointer("head", raw.Head)
	g.current = g.stringPointer("current_branch", raw.CurrentBranch)
	g.loadBranches(raw.Branches)
	g.loadCommits(raw.Commits)
	g.reconcile()

	return g, nil
}

func (g *Graph) warn(msg string, fields ...zap.Field) {
	g.logger.Warn(msg, fields...)
	g.warnings = append(g.warnings, msg)
}

// stringPointer decodes a null-or-string field, repairing anything else to
// null.
func (g *Graph) stringPointer(field string, raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		g.warn(fmt.Sprintf("malformed %s reset to null", field), zap.ByteString("value", raw))
		return ""
	}
	return s
}

func (g *Graph) loadBranches(raw json.RawMessage) {
	if len(raw) == 0 || isNull(raw) {
		g.warn("branch table missing, starting empty")
		return
	}
	var table map[string]json.RawMessage
	if err := json.Unmarshal(raw, &table); err != nil {
		g.warn("malformed branch table reset to empty", zap.Error(err))
		return
	}
	for name, tip := range table {
		g.branches[name] = g.stringPointer("branch "+name, tip)
	}
}

func (g *Graph) loadCommits(raw map[string]json.RawMessage) {
	for id, entry := range raw {
		c, err := Decode(id, entry)
		if err != nil {
			g.warn("dropped malformed commit index entry", zap.String("commit", id), zap.Error(err))
			continue
		}
		g.commits[id] = c
	}
}

// reconcile restores head == branches[current] and picks a sane state when
// the pointers disagree.
func (g *Graph) reconcile() {
	if g.current == "" {
		if g.head == "" {
			if _, ok := g.branches[DefaultBranch]; ok {
				g.current = DefaultBranch
				g.head = g.branches[DefaultBranch]
				g.warn("no current branch or head, attached to " + DefaultBranch)
			}
		}
		return
	}

	tip, ok := g.branches[g.current]
	if !ok {
		g.branches[g.current] = g.head
		g.warn(fmt.Sprintf("current branch %s was missing from the branch table", g.current))
		return
	}
	if tip != g.head {
		g.head = tip
		g.warn(fmt.Sprintf("head disagreed with branch %s, reset to its tip", g.current))
	}
}

// Warnings returns the repairs made while loading.
func (g *Graph) Warnings() []string {
	return g.warnings
}

// Head returns the current commit id, "" before the first commit.
func (g *Graph) Head() string { return g.head }

// CurrentBranch returns the attached branch, "" when detached.
func (g *Graph) CurrentBranch() string { return g.current }

func (g *Graph) Detached() bool { return g.current == "" }

// Branches returns the branch names in sorted order.
func (g *Graph) Branches() []string {
	names := make([]string, 0, len(g.branches))
	for name := range g.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) HasBranch(name string) bool {
	_, ok := g.branches[name]
	return ok
}

// BranchTip returns the commit a branch points at ("" when it has none).
func (g *Graph) BranchTip(name string) (string, error) {
	tip, ok := g.branches[name]
	if !ok {
		return "", gerrors.BranchNotFound(name)
	}
	return tip, nil
}

// Get returns a commit, reading the object store first and falling back to
// the metadata index when the object file is gone.
func (g *Graph) Get(id string) (*Commit, error) {
	if c, ok := g.cache.Get(id); ok {
		return c, nil
	}

	data, err := g.store.Load(id, safe.KindCommit)
	switch {
	case err == nil:
		c, err := Decode(id, data)
		if err != nil {
			return nil, fmt.Errorf("decoding commit %s: %w", id, err)
		}
		g.cache.Add(id, c)
		return c, nil
	case gerrors.HasType(err, gerrors.ErrorTypeObjectNotFound):
		if c, ok := g.commits[id]; ok {
			g.logger.Debug("commit object missing, using metadata index", zap.String("commit", id))
			g.cache.Add(id, c)
			return c, nil
		}
		return nil, gerrors.ObjectNotFound(id, string(safe.KindCommit))
	default:
		return nil, fmt.Errorf("loading commit %s: %w", id, err)
	}
}

// Parents returns the parent ids of a commit.
func (g *Graph) Parents(id string) ([]string, error) {
	c, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	return c.Parents, nil
}

// Resolve maps a full commit id or a unique prefix of at least four
// characters to a commit id.
func (g *Graph) Resolve(ref string) (string, error) {
	if _, ok := g.commits[ref]; ok {
		return ref, nil
	}
	if content.ValidOID(ref) {
		if ok, err := g.store.Has(ref, safe.KindCommit); err != nil {
			return "", err
		} else if ok {
			return ref, nil
		}
	}
	if len(ref) < minPrefixLen {
		return "", gerrors.NotFound(fmt.Sprintf("no commit matches %q", ref))
	}

	var match string
	for id := range g.commits {
		if !strings.HasPrefix(id, ref) {
			continue
		}
		if match != "" {
			return "", gerrors.ValidationError(fmt.Sprintf("commit prefix %q is ambiguous", ref), nil)
		}
		match = id
	}
	if match == "" {
		return "", gerrors.NotFound(fmt.Sprintf("no commit matches %q", ref))
	}
	return match, nil
}

// Write stores c as a commit object, indexes it and returns its id. Pointers
// are not moved.
func (g *Graph) Write(c *Commit) (string, error) {
	data, err := c.Encode()
	if err != nil {
		return "", fmt.Errorf("encoding commit: %w", err)
	}
	id, err := g.store.Save(data, safe.KindCommit)
	if err != nil {
		return "", fmt.Errorf("saving commit: %w", err)
	}
	c.ID = id
	g.commits[id] = c
	g.cache.Add(id, c)
	return id, nil
}

// ValidateBranchName rejects names that cannot be used as a branch.
func ValidateBranchName(name string) error {
	invalid := func(reason string) error {
		return gerrors.ValidationError(fmt.Sprintf("invalid branch name %q: %s", name, reason), map[string]string{"branch": name})
	}
	switch {
	case strings.TrimSpace(name) == "":
		return invalid("empty")
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return invalid("bad leading or trailing character")
	case strings.Contains(name, ".."):
		return invalid("contains ..")
	case strings.ContainsAny(name, " \t\n\r~^:?*[\\"):
		return invalid("contains a reserved character")
	}
	return nil
}

// CreateBranch points a new branch at head.
func (g *Graph) CreateBranch(name string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	if g.HasBranch(name) {
		return gerrors.BranchExists(name)
	}
	g.branches[name] = g.head
	return nil
}

// Advance moves head, and the current branch unless detached.
func (g *Graph) Advance(id string) {
	g.head = id
	if g.current != "" {
		g.branches[g.current] = id
	}
}

// Attach makes name the current branch and moves head to its tip.
func (g *Graph) Attach(name string) error {
	tip, ok := g.branches[name]
	if !ok {
		return gerrors.BranchNotFound(name)
	}
	g.current = name
	g.head = tip
	return nil
}

// Detach points head at id without a current branch.
func (g *Graph) Detach(id string) {
	g.current = ""
	g.head = id
}

// Save writes metadata.json atomically.
func (g *Graph) Save() error {
	out := metadataOut{
		Branches: make(map[string]*string, len(g.branches)),
		Commits:  g.commits,
	}
	if g.head != "" {
		head := g.head
		out.Head = &head
	}
	if g.current != "" {
		current := g.current
		out.CurrentBranch = &current
	}
	for name, tip := range g.branches {
		if tip == "" {
			out.Branches[name] = nil
			continue
		}
		tip := tip
		out.Branches[name] = &tip
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return fsutil.WriteFileAtomic(g.fs, MetadataFile, data)
}

// RepairHead resets an unresolvable head (and the current branch with it)
// to null and records a warning.
func (g *Graph) RepairHead() {
	if g.head == "" {
		return
	}
	if _, err := g.Get(g.head); err == nil {
		return
	}
	g.warn("head does not resolve to a commit, reset to null", zap.String("head", g.head))
	g.head = ""
	if g.current != "" {
		g.branches[g.current] = ""
	}
}
