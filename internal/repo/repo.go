// Package repo is the repository session: it owns the loaded metadata and
// staging index and exposes the operations front ends call.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gible/internal/ancestry"
	"gible/internal/config"
	"gible/internal/content"
	gerrors "gible/internal/errors"
	"gible/internal/graph"
	"gible/internal/index"
	"gible/internal/lock"
	"gible/internal/merge"
	"gible/internal/reconstruct"
	"gible/internal/safe"
	"gible/internal/workspace"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

const dbDir = "db"

// Options tunes how a repository is created or opened. The zero value is
// usable.
type Options struct {
	Logger *zap.Logger
	Now    func() time.Time

	// DBDir is the OS directory of the badger object backend. Open sets it
	// under the repository dir; OpenFS leaves it empty, which keeps the
	// backend in memory.
	DBDir string

	// Used by Init only.
	HashAlgorithm string
	ObjectBackend string
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Repository is one open repository.
type Repository struct {
	work   *workspace.LocalWorkspace
	fs     billy.Filesystem // the .gible directory
	cfg    *config.RepoConfig
	addr   *content.Addressor
	store  safe.Store
	logger *zap.Logger
	now    func() time.Time

	graph     *graph.Graph
	index     *index.Index
	engine    *reconstruct.Engine
	ancestry  *ancestry.Resolver
	state     *merge.State
	conflicts *merge.ConflictStore
}

// Init creates a repository in root, which must exist.
func Init(root string, opts Options) (*Repository, error) {
	opts.defaults()
	work, err := workspace.NewLocalWorkspace(root, opts.Logger)
	if err != nil {
		return nil, err
	}
	if opts.DBDir == "" {
		opts.DBDir = filepath.Join(work.Root(), workspace.RepoDir, dbDir)
	}
	return initWorkspace(work, opts)
}

// InitFS creates a repository on fs, whose root is the worktree root.
func InitFS(fs billy.Filesystem, opts Options) (*Repository, error) {
	opts.defaults()
	return initWorkspace(workspace.New(fs, opts.Logger), opts)
}

func initWorkspace(work *workspace.LocalWorkspace, opts Options) (*Repository, error) {
	exists, err := work.HasRepo()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, gerrors.AlreadyInitialized(filepath.Join(work.Root(), workspace.RepoDir))
	}

	fs, err := work.RepoFS()
	if err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(safe.ObjectsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating repository directory: %w", err)
	}

	cfg := config.NewRepoConfig(opts.Now())
	cfg.HashAlgorithm = opts.HashAlgorithm
	cfg.ObjectBackend = opts.ObjectBackend
	if err := cfg.Validate(); err != nil {
		return nil, gerrors.ValidationError(err.Error(), nil)
	}
	if err := config.SaveRepo(fs, cfg); err != nil {
		return nil, err
	}
	if err := graph.Init(fs); err != nil {
		return nil, err
	}

	idx, err := index.Load(fs, opts.Logger)
	if err != nil {
		return nil, err
	}
	if err := idx.Save(); err != nil {
		return nil, err
	}

	opts.Logger.Info("initialized repository", zap.String("root", work.Root()))
	return openWorkspace(work, opts)
}

// Open opens the repository containing dir, searching parent directories.
func Open(dir string, opts Options) (*Repository, error) {
	opts.defaults()
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	work, err := workspace.NewLocalWorkspace(root, opts.Logger)
	if err != nil {
		return nil, err
	}
	if opts.DBDir == "" {
		opts.DBDir = filepath.Join(root, workspace.RepoDir, dbDir)
	}
	return openWorkspace(work, opts)
}

// OpenFS opens the repository on fs, whose root is the worktree root.
func OpenFS(fs billy.Filesystem, opts Options) (*Repository, error) {
	opts.defaults()
	return openWorkspace(workspace.New(fs, opts.Logger), opts)
}

func openWorkspace(work *workspace.LocalWorkspace, opts Options) (*Repository, error) {
	exists, err := work.HasRepo()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, gerrors.NotARepository(work.Root())
	}

	fs, err := work.RepoFS()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadRepo(fs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, gerrors.NotARepository(work.Root())
	}
	if err != nil {
		return nil, gerrors.CorruptMetadata("%v", err)
	}

	addr, err := content.NewAddressor(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	store, err := safe.Open(fs, addr, safe.Options{
		Backend:   cfg.ObjectBackend,
		CacheSize: cfg.CacheSize,
		DBDir:     opts.DBDir,
	}, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		work:      work,
		fs:        fs,
		cfg:       cfg,
		addr:      addr,
		store:     store,
		logger:    opts.Logger,
		now:       opts.Now,
		state:     merge.NewState(fs),
		conflicts: merge.NewConflictStore(fs),
	}
	if err := r.reload(); err != nil {
		store.Close()
		return nil, err
	}
	r.logger.Debug("opened repository",
		zap.String("root", work.Root()),
		zap.String("hash", addr.Algorithm()),
		zap.String("backend", cfg.ObjectBackend))
	return r, nil
}

// reload rereads metadata.json and index.json.
func (r *Repository) reload() error {
	g, err := graph.Load(r.fs, r.store, r.logger)
	if err != nil {
		return err
	}
	idx, err := index.Load(r.fs, r.logger)
	if err != nil {
		return err
	}
	r.graph = g
	r.index = idx
	r.engine = reconstruct.New(g, r.store, r.logger)
	r.ancestry = ancestry.New(g, r.logger)
	return nil
}

// mutate runs fn under the repository lock on freshly loaded state.
func (r *Repository) mutate(fn func() error) error {
	l, err := lock.Acquire(r.fs, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			r.logger.Warn("failed to release repository lock", zap.Error(err))
		}
	}()

	if err := r.reload(); err != nil {
		return err
	}
	return fn()
}

// loadWarnings returns the repairs made while loading the session state.
func (r *Repository) loadWarnings() []string {
	var out []string
	out = append(out, r.graph.Warnings()...)
	out = append(out, r.index.Warnings()...)
	return out
}

// Root returns the worktree root.
func (r *Repository) Root() string {
	return r.work.Root()
}

// Config returns the repository configuration.
func (r *Repository) Config() *config.RepoConfig {
	return r.cfg
}

// Close releases the object store.
func (r *Repository) Close() error {
	return r.store.Close()
}

// Destroy removes the repository directory. The worktree is left alone and
// the Repository must not be used afterwards.
func (r *Repository) Destroy() error {
	if err := r.store.Close(); err != nil {
		r.logger.Warn("closing object store", zap.Error(err))
	}
	if err := r.work.DestroyRepo(); err != nil {
		return err
	}
	r.logger.Info("destroyed repository", zap.String("root", r.work.Root()))
	return nil
}
