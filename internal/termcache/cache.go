// Package termcache caches encoded fast-terms responses in Redis so
// repeated enumerations of a hot field skip the shard broadcast.
package termcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jmfrees/zombodb/internal/broadcast"
	"github.com/jmfrees/zombodb/internal/fastterms"
	"github.com/jmfrees/zombodb/pkg/config"
	"github.com/jmfrees/zombodb/pkg/logger"
	pkgredis "github.com/jmfrees/zombodb/pkg/redis"
)

const keyPrefix = "fastterms:"

// Loader produces a response on a cache miss.
type Loader func(ctx context.Context) (*fastterms.TermsResponse, error)

// Cache fronts the broadcast path with a Redis-backed result cache.
// Concurrent misses for the same key are collapsed with singleflight.
type Cache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *Cache {
	return &Cache{
		client: client,
		cfg:    cfg,
		logger: logger.WithComponent("term-cache"),
	}
}

// Fetch returns the cached response for req, or runs load, caching the
// result. Only fully successful responses are cached; partial results must
// not mask a later healthy broadcast.
func (c *Cache) Fetch(ctx context.Context, req broadcast.TermsRequest, load Loader) (*fastterms.TermsResponse, error) {
	key := Key(req)

	if data, err := c.client.GetBytes(ctx, key); err == nil {
		resp, decErr := fastterms.DecodeTermsResponse(bytes.NewReader(data))
		if decErr == nil {
			c.hits.Add(1)
			c.logger.Debug("cache hit", "key", key)
			return resp, nil
		}
		c.logger.Error("cache entry undecodable, evicting", "key", key, "error", decErr)
		_ = c.client.Del(ctx, key)
	} else if !pkgredis.IsNilError(err) {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if resp.Status() == fastterms.StatusOK {
			var buf bytes.Buffer
			if encErr := resp.EncodeTo(&buf); encErr != nil {
				c.logger.Error("cache encode failed", "key", key, "error", encErr)
			} else if setErr := c.client.Set(ctx, key, buf.Bytes(), c.cfg.CacheTTL); setErr != nil {
				c.logger.Error("cache set failed", "key", key, "error", setErr)
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fastterms.TermsResponse), nil
}

// Hits returns the number of cache hits served.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of cache misses taken.
func (c *Cache) Misses() int64 { return c.misses.Load() }

// Key derives the deterministic cache key for a request.
func Key(req broadcast.TermsRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d", req.Index, req.Field, req.Query, req.DataType)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
