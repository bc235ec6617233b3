package safe

import (
	"fmt"

	"gible/internal/config"
	"gible/internal/content"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

// Options selects and tunes the object backend.
type Options struct {
	Backend   string // config.BackendFiles or config.BackendBadger
	CacheSize int    // Number of objects to cache
	DBDir     string // OS directory for the badger backend, "" for in-memory
}

// Open builds the configured object store over the repository dir fs.
func Open(fs billy.Filesystem, addr *content.Addressor, opts Options, logger *zap.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch opts.Backend {
	case "", config.BackendFiles:
		store, err = NewFileStore(fs, addr, logger)
	case config.BackendBadger:
		store, err = NewBadgerStore(opts.DBDir, addr, logger)
	default:
		return nil, fmt.Errorf("unknown object backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s object store: %w", opts.Backend, err)
	}

	if opts.CacheSize <= 0 {
		return store, nil
	}

	cached, err := NewCached(store, opts.CacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	return cached, nil
}
