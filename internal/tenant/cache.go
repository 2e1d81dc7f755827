package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// CachedDirectory is a Redis read-through cache in front of a Directory.
// Misses and not-found results always go to the source.
type CachedDirectory struct {
	source Directory
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedDirectory wraps source. A nil redis client disables caching.
func NewCachedDirectory(source Directory, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedDirectory {
	if source == nil {
		panic("tenant: source directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{source: source, redis: redisClient, ttl: ttl, logger: logger}
}

func profileKey(id uuid.UUID) string {
	return fmt.Sprintf("tenant:profile:%s", id)
}

func routeKey(routingKey string) string {
	return fmt.Sprintf("tenant:route:%s", routingKey)
}

// ByRoutingKey implements Directory.
func (c *CachedDirectory) ByRoutingKey(ctx context.Context, routingKey string) (*Profile, error) {
	key := NormalizeRoutingKey(routingKey)
	if c.redis != nil && key != "" {
		id, err := c.redis.Get(ctx, routeKey(key)).Result()
		if err == nil {
			if parsed, perr := uuid.Parse(id); perr == nil {
				if profile, ok := c.cached(ctx, parsed); ok {
					return profile, nil
				}
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("tenant cache route lookup failed", "error", err)
		}
	}

	profile, err := c.source.ByRoutingKey(ctx, key)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

// ByID implements Directory.
func (c *CachedDirectory) ByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	if profile, ok := c.cached(ctx, id); ok {
		return profile, nil
	}
	profile, err := c.source.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

// Refresh drops the cached entries of a tenant and reloads it from the source.
// The stale routing key is dropped too, so a changed number stops resolving.
func (c *CachedDirectory) Refresh(ctx context.Context, id uuid.UUID) (*Profile, error) {
	stale, ok := c.cached(ctx, id)
	if !ok {
		stale = &Profile{ID: id}
	}
	if err := c.invalidate(ctx, stale); err != nil {
		return nil, err
	}
	profile, err := c.source.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

func (c *CachedDirectory) invalidate(ctx context.Context, profile *Profile) error {
	if c.redis == nil || profile == nil {
		return nil
	}
	keys := []string{profileKey(profile.ID)}
	if key := NormalizeRoutingKey(profile.RoutingKey); key != "" {
		keys = append(keys, routeKey(key))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("tenant: invalidate cache: %w", err)
	}
	return nil
}

func (c *CachedDirectory) cached(ctx context.Context, id uuid.UUID) (*Profile, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("tenant cache read failed", "tenant_id", id, "error", err)
		}
		return nil, false
	}
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		c.logger.Warn("tenant cache entry corrupt", "tenant_id", id, "error", err)
		return nil, false
	}
	return &profile, true
}

func (c *CachedDirectory) store(ctx context.Context, profile *Profile) {
	if c.redis == nil || profile == nil {
		return
	}
	data, err := json.Marshal(profile)
	if err != nil {
		c.logger.Warn("tenant cache encode failed", "tenant_id", profile.ID, "error", err)
		return
	}
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, profileKey(profile.ID), data, c.ttl)
	if key := NormalizeRoutingKey(profile.RoutingKey); key != "" {
		pipe.Set(ctx, routeKey(key), profile.ID.String(), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("tenant cache write failed", "tenant_id", profile.ID, "error", err)
	}
}
