package link

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
)

type (
	Repository interface {
		// FilterLinks applies AND on the non-empty Filter fields, each a case-insensitive substring match.
		FilterLinks(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]TableLink, error)
		GetLink(ctx context.Context, stream, subject string, exec ...core.DBExecutor) (TableLink, error)
		CreateLink(ctx context.Context, l TableLink, exec ...core.DBExecutor) (TableLink, error)
		DeleteAllLinks(ctx context.Context, exec ...core.DBExecutor) (int64, error)
	}

	Service struct {
		repo   Repository
		cache  core.Cache
		logger core.Logger
		// generation is bumped by InvalidateCache; results read under an older one are never cached.
		generation atomic.Uint64
	}
)

func NewService(repo Repository, cache core.Cache, logger core.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Filter returns the links matching filter, served from the cache when possible.
func (svc *Service) Filter(ctx context.Context, filter Filter) ([]TableLink, error) {
	gen := svc.generation.Load()
	key := filter.cacheKey(gen)

	if data, err := svc.cache.Get(ctx, key); err == nil {
		var links []TableLink
		if err = json.Unmarshal(data, &links); err == nil {
			return links, nil
		}
		svc.logger.Warn(fmt.Sprintf("dropping corrupt cache entry %q", key), err)
	} else if !errors.Is(err, core.ErrCacheMiss) {
		svc.logger.Warn("link cache unavailable", err)
	}

	links, err := svc.repo.FilterLinks(ctx, filter)
	if err != nil {
		return nil, core.NewDatabaseError("filtering links", err)
	}
	if links == nil {
		links = []TableLink{}
	}
	if svc.generation.Load() != gen {
		return links, nil
	}

	if data, err := json.Marshal(links); err == nil {
		if err = svc.cache.Set(ctx, key, data); err != nil {
			svc.logger.Warn("caching links", err)
		}
	}
	return links, nil
}

// InvalidateCache drops every cached query result. Call after links are created or deleted.
func (svc *Service) InvalidateCache(ctx context.Context) {
	svc.generation.Add(1)
	if err := svc.cache.Purge(ctx); err != nil {
		svc.logger.Warn("purging link cache", err)
	}
}
