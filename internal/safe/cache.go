package safe

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached decorates a Store with an LRU of recently saved or loaded
// objects. Objects are immutable, so entries never go stale.
type Cached struct {
	Store
	cache *lru.Cache[string, []byte]
}

func NewCached(store Store, size int) (*Cached, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &Cached{Store: store, cache: cache}, nil
}

func cacheKey(oid string, kind Kind) string {
	return oid + "." + string(kind)
}

func (c *Cached) Save(data []byte, kind Kind) (string, error) {
	oid, err := c.Store.Save(data, kind)
	if err != nil {
		return "", err
	}
	c.cache.Add(cacheKey(oid, kind), data)
	return oid, nil
}

func (c *Cached) Load(oid string, kind Kind) ([]byte, error) {
	// Check cache first
	if data, ok := c.cache.Get(cacheKey(oid, kind)); ok {
		return data, nil
	}

	data, err := c.Store.Load(oid, kind)
	if err != nil {
		return nil, err
	}
	c.cache.Add(cacheKey(oid, kind), data)
	return data, nil
}

func (c *Cached) Has(oid string, kind Kind) (bool, error) {
	if c.cache.Contains(cacheKey(oid, kind)) {
		return true, nil
	}
	return c.Store.Has(oid, kind)
}
