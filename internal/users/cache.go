package users

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docflow/docflow/server/internal/models"
	"github.com/docflow/docflow/server/pkg/logger"
	"github.com/docflow/docflow/server/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Resolver is the directory contract shared with the document workflow.
type Resolver interface {
	ResolveByEmail(ctx context.Context, email string) (models.UserRef, error)
	ResolveByID(ctx context.Context, id string) (models.UserRef, error)
}

// CachedResolver fronts a Resolver with a Redis read-through cache of user
// refs keyed by id. Email lookups always go to the backing resolver so a
// receiver is resolved against current data on every write.
type CachedResolver struct {
	next   Resolver
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedResolver wraps next. A nil client disables caching.
func NewCachedResolver(next Resolver, client *redis.Client, prefix string, ttl time.Duration) *CachedResolver {
	if prefix == "" {
		prefix = "userref:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedResolver{next: next, client: client, prefix: prefix, ttl: ttl}
}

func (c *CachedResolver) ResolveByEmail(ctx context.Context, email string) (models.UserRef, error) {
	return c.next.ResolveByEmail(ctx, email)
}

func (c *CachedResolver) ResolveByID(ctx context.Context, id string) (models.UserRef, error) {
	if c.client == nil {
		return c.next.ResolveByID(ctx, id)
	}
	key := c.prefix + id
	if b, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var ref models.UserRef
		if err := json.Unmarshal(b, &ref); err == nil {
			metrics.UserCacheLookups.WithLabelValues("hit").Inc()
			return ref, nil
		}
	} else if err != redis.Nil {
		logger.Warnf("user cache get %s: %v", key, err)
	}
	metrics.UserCacheLookups.WithLabelValues("miss").Inc()

	ref, err := c.next.ResolveByID(ctx, id)
	if err != nil {
		return ref, err
	}
	if b, err := json.Marshal(ref); err == nil {
		if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
			logger.Warnf("user cache set %s: %v", key, err)
		}
	}
	return ref, nil
}

// Invalidate drops the cached ref for id.
func (c *CachedResolver) Invalidate(ctx context.Context, id string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.prefix+id).Err()
}
