// Package cache keeps a short-lived projection of user records so that
// authenticated requests do not hit the database every time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached projection can get when an
// invalidation is lost.
const DefaultTTL = 300 * time.Second

// UserCache is the identity cache. Implementations are best-effort: a failed
// read is reported as a miss.
//
// Fills are versioned. A reader takes Version before loading the user from the
// store and passes it to Fill; any Invalidate in between bumps the version and
// the fill is dropped, so a projection read before a write never outlives it.
type UserCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, id int64) (*domain.CachedUser, error)
	// Version returns the user's invalidation counter, zero if never bumped.
	Version(ctx context.Context, id int64) (int64, error)
	// Fill stores u only if the counter still equals version. It reports
	// whether the entry was written.
	Fill(ctx context.Context, u domain.CachedUser, version int64) (bool, error)
	Invalidate(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Key returns the cache key for a user id.
func Key(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

// VersionKey returns the key of the user's invalidation counter.
func VersionKey(id int64) string {
	return Key(id) + ":v"
}

// versionTTL keeps counters well past any entry they guard.
const versionTTL = 24 * time.Hour

// RedisUserCache stores JSON projections in Redis.
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

var (
	_ UserCache = (*RedisUserCache)(nil)
	_ UserCache = NopUserCache{}
)

// NewRedisUserCache wraps client. A zero ttl means DefaultTTL.
func NewRedisUserCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisUserCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisUserCache{client: client, ttl: ttl, log: log}
}

func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.CachedUser, error) {
	raw, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var u domain.CachedUser
	if err := json.Unmarshal(raw, &u); err != nil {
		c.log.WarnContext(ctx, "dropping undecodable cache entry",
			slog.String("key", Key(id)),
			slog.Any("error", err),
		)
		_ = c.client.Del(ctx, Key(id)).Err()
		return nil, nil
	}
	return &u, nil
}

func (c *RedisUserCache) Version(ctx context.Context, id int64) (int64, error) {
	return readVersion(ctx, c.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, g getter, id int64) (int64, error) {
	v, err := g.Get(ctx, VersionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *RedisUserCache) Fill(ctx context.Context, u domain.CachedUser, version int64) (bool, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return false, err
	}

	written := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key(u.ID), raw, c.ttl)
			return nil
		})
		written = err == nil
		return err
	}, VersionKey(u.ID))

	if errors.Is(err, redis.TxFailedErr) {
		// The counter moved while we were watching it.
		return false, nil
	}
	return written, err
}

func (c *RedisUserCache) Invalidate(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, VersionKey(id))
		pipe.Expire(ctx, VersionKey(id), versionTTL)
		pipe.Del(ctx, Key(id))
		return nil
	})
	return err
}

func (c *RedisUserCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NopUserCache is used when Redis is not configured. Every read misses.
type NopUserCache struct{}

func (NopUserCache) Get(context.Context, int64) (*domain.CachedUser, error)       { return nil, nil }
func (NopUserCache) Version(context.Context, int64) (int64, error)                { return 0, nil }
func (NopUserCache) Fill(context.Context, domain.CachedUser, int64) (bool, error) { return false, nil }
func (NopUserCache) Invalidate(context.Context, int64) error                      { return nil }
func (NopUserCache) Ping(context.Context) error                                   { return nil }
