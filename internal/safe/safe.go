// internal/safe/safe.go
package safe

import (
	"errors"
	"fmt"
	"os"
	"path"

	"gible/internal/content"
	gerrors "gible/internal/errors"
	"gible/internal/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

// Kind tags a stored object.
type Kind string

const (
	KindBase   Kind = "base"
	KindDiff   Kind = "diff"
	KindCommit Kind = "commit"

	ObjectsDir = "objects"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBase, KindDiff, KindCommit:
		return true
	}
	return false
}

var ErrHashMismatch = errors.New("object hash mismatch")

// Store is an append-only, content-addressed object store. There is no
// update or delete.
type Store interface {
	// Save stores data and returns its oid. Saving identical bytes again
	// is a no-op returning the same oid.
	Save(data []byte, kind Kind) (string, error)
	// Load returns the raw bytes of an object or an OBJECT_NOT_FOUND error.
	Load(oid string, kind Kind) ([]byte, error)
	Has(oid string, kind Kind) (bool, error)
	Close() error
}

// FileStore keeps each object as a zlib-compressed file
// objects/<oid>.<kind> on a billy filesystem rooted at the repository dir.
type FileStore struct {
	fs     billy.Filesystem
	addr   *content.Addressor
	logger *zap.Logger
}

func NewFileStore(fs billy.Filesystem, addr *content.Addressor, logger *zap.Logger) (*FileStore, error) {
	if err := fs.MkdirAll(ObjectsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating objects directory: %w", err)
	}

	return &FileStore{
		fs:     fs,
		addr:   addr,
		logger: logger,
	}, nil
}

func (s *FileStore) objectPath(oid string, kind Kind) string {
	return path.Join(ObjectsDir, oid+"."+string(kind))
}

func (s *FileStore) Save(data []byte, kind Kind) (string, error) {
	if !kind.Valid() {
		return "", gerrors.UnsupportedEntryKind("unknown object kind %q", kind)
	}

	oid := s.addr.Hash(data)
	exists, err := s.Has(oid, kind)
	if err != nil {
		return "", err
	}
	if exists {
		return oid, nil
	}

	packed, err := s.addr.Compress(data)
	if err != nil {
		return "", err
	}

	// Temp file plus rename, so a crash never leaves a truncated object
	// under its final name.
	if err := fsutil.WriteFileAtomic(s.fs, s.objectPath(oid, kind), packed); err != nil {
		return "", fmt.Errorf("writing object %s: %w", oid, err)
	}

	s.logger.Debug("stored object",
		zap.String("oid", oid),
		zap.String("kind", string(kind)),
		zap.Int("size", len(data)),
		zap.Int("stored", len(packed)))

	return oid, nil
}

func (s *FileStore) Load(oid string, kind Kind) ([]byte, error) {
	if !content.ValidOID(oid) || !kind.Valid() {
		return nil, gerrors.ObjectNotFound(oid, string(kind))
	}

	packed, err := util.ReadFile(s.fs, s.objectPath(oid, kind))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, gerrors.ObjectNotFound(oid, string(kind))
		}
		return nil, fmt.Errorf("reading object %s: %w", oid, err)
	}

	data, err := s.addr.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("object %s.%s: %w", oid, kind, err)
	}

	// Verify hash
	if s.addr.Hash(data) != oid {
		return nil, fmt.Errorf("object %s.%s: %w", oid, kind, ErrHashMismatch)
	}

	return data, nil
}

func (s *FileStore) Has(oid string, kind Kind) (bool, error) {
	ok, err := fsutil.Exists(s.fs, s.objectPath(oid, kind))
	if err != nil {
		return false, fmt.Errorf("checking object %s: %w", oid, err)
	}
	return ok, nil
}

func (s *FileStore) Close() error {
	return nil
}
