package safe

import (
	"errors"
	"fmt"

	"gible/internal/content"
	gerrors "gible/internal/errors"
	"gible/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerStore keeps objects in an embedded badger DB, one key prefix per
// kind, with values framed by the zstd compression manager.
type BadgerStore struct {
	db     *badger.DB
	kinds  map[Kind]*storage.BadgerStore
	addr   *content.Addressor
	cm     *compressionManager
	logger *zap.Logger
}

// NewBadgerStore opens the object DB at dir ("" for in-memory).
func NewBadgerStore(dir string, addr *content.Addressor, logger *zap.Logger) (*BadgerStore, error) {
	db, err := storage.Open(dir)
	if err != nil {
		return nil, err
	}

	cm, err := newCompressionManager(DefaultCompressionOptions())
	if err != nil {
		db.Close()
		return nil, err
	}

	kinds := make(map[Kind]*storage.BadgerStore, 3)
	for _, k := range []Kind{KindBase, KindDiff, KindCommit} {
		kinds[k] = storage.NewBadgerStore(db, "object:"+string(k))
	}

	return &BadgerStore{
		db:     db,
		kinds:  kinds,
		addr:   addr,
		cm:     cm,
		logger: logger,
	}, nil
}

func (s *BadgerStore) Save(data []byte, kind Kind) (string, error) {
	kv, ok := s.kinds[kind]
	if !ok {
		return "", gerrors.UnsupportedEntryKind("unknown object kind %q", kind)
	}

	oid := s.addr.Hash(data)
	written, err := kv.PutIfAbsent(oid, s.cm.encode(data))
	if err != nil {
		return "", err
	}
	if written {
		s.logger.Debug("stored object",
			zap.String("oid", oid),
			zap.String("kind", string(kind)),
			zap.Int("size", len(data)))
	}
	return oid, nil
}

func (s *BadgerStore) Load(oid string, kind Kind) ([]byte, error) {
	kv, ok := s.kinds[kind]
	if !ok || !content.ValidOID(oid) {
		return nil, gerrors.ObjectNotFound(oid, string(kind))
	}

	framed, err := kv.Get(oid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, gerrors.ObjectNotFound(oid, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", oid, err)
	}

	data, err := s.cm.decode(framed)
	if err != nil {
		return nil, fmt.Errorf("object %s.%s: %w", oid, kind, err)
	}
	if s.addr.Hash(data) != oid {
		return nil, fmt.Errorf("object %s.%s: %w", oid, kind, ErrHashMismatch)
	}
	return data, nil
}

func (s *BadgerStore) Has(oid string, kind Kind) (bool, error) {
	kv, ok := s.kinds[kind]
	if !ok {
		return false, nil
	}
	return kv.Has(oid)
}

func (s *BadgerStore) Close() error {
	s.cm.close()
	return s.db.Close()
}
