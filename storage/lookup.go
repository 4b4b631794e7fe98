package storage

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cryarchy/fiverr-tools/models"
)

const (
	lookupCacheSize = 256
	sellerCacheSize = 4096
)

// CachedLookup memoises GetOrCreate results. Lookup rows are never deleted,
// so a cached id stays valid for the life of the process.
type CachedLookup struct {
	next  LookupRepository
	cache *lru.Cache[string, int64]
	mu    sync.Mutex
}

func NewCachedLookup(next LookupRepository) *CachedLookup {
	cache, err := lru.New[string, int64](lookupCacheSize)
	if err != nil {
		panic(err)
	}
	return &CachedLookup{next: next, cache: cache}
}

func (c *CachedLookup) GetOrCreate(ctx context.Context, name string) (int64, error) {
	if id, ok := c.cache.Get(name); ok {
		return id, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.cache.Get(name); ok {
		return id, nil
	}

	id, err := c.next.GetOrCreate(ctx, name)
	if err != nil {
		return 0, err
	}
	c.cache.Add(name, id)
	return id, nil
}

// cachedSellers remembers username -> id for sellers already seen. Misses are
// not cached so a seller created later is still found.
type cachedSellers struct {
	next  SellerRepository
	cache *lru.Cache[string, int64]
}

func newCachedSellers(next SellerRepository) *cachedSellers {
	cache, err := lru.New[string, int64](sellerCacheSize)
	if err != nil {
		panic(err)
	}
	return &cachedSellers{next: next, cache: cache}
}

func (c *cachedSellers) GetIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	if id, ok := c.cache.Get(username); ok {
		return id, true, nil
	}
	id, found, err := c.next.GetIDByUsername(ctx, username)
	if err != nil || !found {
		return id, found, err
	}
	c.cache.Add(username, id)
	return id, true, nil
}

func (c *cachedSellers) Create(ctx context.Context, s models.NewSeller) (int64, error) {
	id, err := c.next.Create(ctx, s)
	if err != nil {
		return 0, err
	}
	c.cache.Add(s.Username, id)
	return id, nil
}
