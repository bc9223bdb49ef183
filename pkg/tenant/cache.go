package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SharedCache is an optional second-level directory cache shared between
// processes. Implementations must treat a missing key as (Entry{}, false, nil).
type SharedCache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// DefaultRedisPrefix namespaces directory keys in Redis.
const DefaultRedisPrefix = "tenantmux:tenant:"

// RedisCache is a SharedCache backed by Redis. Entries are stored as JSON
// and the tenant address is never written in plaintext: with an
// AddressSealer it is stored encrypted, without one it is omitted and
// positive entries read back as misses so the directory asks the store.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	sealer *AddressSealer
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithAddressSealer stores tenant addresses encrypted with s.
func WithAddressSealer(s *AddressSealer) RedisCacheOption {
	return func(c *RedisCache) {
		c.sealer = s
	}
}

// NewRedisCache creates a RedisCache. An empty prefix uses DefaultRedisPrefix.
func NewRedisCache(client redis.UniversalClient, prefix string, opts ...RedisCacheOption) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	c := &RedisCache{client: client, prefix: prefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// redisEntry is the stored form of an Entry.
type redisEntry struct {
	Tenant        *Tenant   `json:"tenant,omitempty"`
	SealedAddress string    `json:"sealed_address,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get tenant entry: %w", err)
	}

	var stored redisEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		// Drop undecodable payloads rather than failing every lookup.
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return Entry{}, false, nil
	}
	e := Entry{Tenant: stored.Tenant, FetchedAt: stored.FetchedAt}
	if e.Tenant == nil {
		return e, true, nil
	}

	// Without a usable address the record cannot back a connection.
	if c.sealer == nil || stored.SealedAddress == "" {
		return Entry{}, false, nil
	}
	addr, err := c.sealer.Open(stored.SealedAddress)
	if err != nil {
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return Entry{}, false, nil
	}
	e.Tenant.Address = addr
	return e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	stored := redisEntry{FetchedAt: entry.FetchedAt}
	if entry.Tenant != nil {
		t := *entry.Tenant
		t.Address = ""
		if c.sealer != nil {
			sealed, err := c.sealer.Seal(entry.Tenant.Address)
			if err != nil {
				return fmt.Errorf("seal tenant address: %w", err)
			}
			stored.SealedAddress = sealed
		}
		stored.Tenant = &t
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode tenant entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set tenant entry: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis delete tenant entries: %w", err)
	}
	return nil
}
