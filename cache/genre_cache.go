package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	genreCatalogKey = "catalog:genres"
	genreCatalogTTL = 10 * time.Minute
)

// GenreCache caches the normalized genre name -> id mapping so the resolver
// does not hit MySQL on every ingestion run.
type GenreCache struct {
	client *redis.Client
}

// NewGenreCache creates a genre cache on top of the given Redis client.
func NewGenreCache(client *redis.Client) *GenreCache {
	return &GenreCache{client: client}
}

// Get returns the cached mapping, or ok=false on a miss or Redis error.
// A Redis failure degrades to a catalog reload, never to a pipeline failure.
func (c *GenreCache) Get(ctx context.Context) (map[string]int64, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.HGetAll(ctx, genreCatalogKey).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	ids := make(map[string]int64, len(raw))
	for name, idStr := range raw {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, false
		}
		ids[name] = id
	}
	return ids, true
}

// Set stores the mapping with a TTL.
func (c *GenreCache) Set(ctx context.Context, ids map[string]int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(ids))
	for name, id := range ids {
		fields[name] = strconv.FormatInt(id, 10)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, genreCatalogKey)
	pipe.HSet(ctx, genreCatalogKey, fields)
	pipe.Expire(ctx, genreCatalogKey, genreCatalogTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache genre catalog: %w", err)
	}
	return nil
}

// Invalidate drops the cached mapping.
func (c *GenreCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, genreCatalogKey).Err()
}
