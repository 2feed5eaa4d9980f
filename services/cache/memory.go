package cachesvc

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/studenttracker/tracker/core"
)

// MemoryCache is an in-process LRU cache whose entries expire ttl after being written.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

var _ core.Cache = (*MemoryCache)(nil)

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := c.lru.Get(key)
	if !ok {
		return nil, core.ErrCacheMiss
	}
	return value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

func (c *MemoryCache) Purge(context.Context) error {
	c.lru.Purge()
	return nil
}
