// Package cache is the content-addressed normalization cache: keyed by file
// checksum, with two parallel values per checksum — norm:<hex>
// (canonicalized text) and tokens:<hex> (serialized token sequence) — and
// shared across scans. It wraps github.com/redis/go-redis/v9.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Cache is the normalizer worker's shared cache collaborator.
type Cache struct {
	rdb *redis.Client
}

// New parses a redis URL and builds a client.
func New(url string) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}
	return &Cache{rdb: redis.NewClient(opt)}, nil
}

func normKey(checksum string) string   { return "norm:" + checksum }
func tokensKey(checksum string) string { return "tokens:" + checksum }

// Has reports whether both norm:<checksum> and tokens:<checksum> are
// present — the normalizer worker's cache-hit condition.
func (c *Cache) Has(ctx context.Context, checksum string) (bool, error) {
	n, err := c.rdb.Exists(ctx, normKey(checksum), tokensKey(checksum)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: exists: %w", err)
	}
	return n == 2, nil
}

// GetTokens loads the cached token sequence for checksum.
func (c *Cache) GetTokens(ctx context.Context, checksum string) ([]string, error) {
	raw, err := c.rdb.Get(ctx, tokensKey(checksum)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("cache: tokens miss for %s", checksum)
		}
		return nil, fmt.Errorf("cache: get tokens: %w", err)
	}
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("cache: decode tokens: %w", err)
	}
	return tokens, nil
}

// GetNormalized loads the cached canonicalized text for checksum.
func (c *Cache) GetNormalized(ctx context.Context, checksum string) (string, error) {
	v, err := c.rdb.Get(ctx, normKey(checksum)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("cache: norm miss for %s", checksum)
		}
		return "", fmt.Errorf("cache: get norm: %w", err)
	}
	return v, nil
}

// Set writes both cache entries for checksum. No TTL is applied: entries
// are shared cross-scan and may be aged out separately — that aging is an
// operational concern, not this adapter's.
func (c *Cache) Set(ctx context.Context, checksum, normalized string, tokens []string) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("cache: encode tokens: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, normKey(checksum), normalized, 0)
	pipe.Set(ctx, tokensKey(checksum), raw, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
