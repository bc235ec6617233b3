// internal/storage/badger_store.go
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("key not found")

// BadgerStore is a prefixed, write-once byte store over a shared badger DB.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

// Open opens (or creates) a badger DB at dir. An empty dir opens an
// in-memory DB.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), fmt.Sprintf("%s:", s.prefix))
}

// PutIfAbsent stores value under id unless the key exists. It reports
// whether a write happened.
func (s *BadgerStore) PutIfAbsent(id string, value []byte) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("key cannot be empty")
	}

	written := false
	key := s.makeKey(id)
	err := s.db.Update(func(txn *badger.Txn) error {
		// Check if key already exists
		_, err := txn.Get(key)
		if err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		written = true
		return txn.Set(key, value)
	})
	if err != nil {
		return false, fmt.Errorf("storing %s: %w", id, err)
	}
	return written, nil
}

func (s *BadgerStore) Get(id string) ([]byte, error) {
	var out []byte
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		out, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	return out, err
}

func (s *BadgerStore) Has(id string) (bool, error) {
	key := s.makeKey(id)
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Keys lists the ids stored under this prefix.
func (s *BadgerStore) Keys() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, s.stripPrefix(it.Item().Key()))
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return ids, nil
}
