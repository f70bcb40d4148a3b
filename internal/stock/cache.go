package stock

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache keeps a short-lived availability snapshot per variant for read
// traffic. The engines never consult it; mutations always go to Postgres and
// invalidate the snapshot after commit.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func availabilityKey(variantID uuid.UUID) string {
	return "stock:available:" + variantID.String()
}

// FetchAvailability loads the cached availability or populates it using the
// loader. Without a redis client it degrades to calling the loader directly.
func (c *Cache) FetchAvailability(ctx context.Context, variantID uuid.UUID, loader func(context.Context) (int64, error)) (int64, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := availabilityKey(variantID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if value, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			return value, nil
		}
	} else if err != redis.Nil {
		return 0, err
	}
	value, err := loader(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.client.Set(ctx, key, strconv.FormatInt(value, 10), c.ttl).Err(); err != nil {
		return 0, err
	}
	return value, nil
}

// Invalidate drops the snapshot for a variant.
func (c *Cache) Invalidate(ctx context.Context, variantID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, availabilityKey(variantID)).Err()
}

// HandleStockMoved implements IntegrationHandler. A failed invalidation is
// logged, never surfaced: the stock mutation has already committed and the
// snapshot expires on its own TTL.
func (c *Cache) HandleStockMoved(ctx context.Context, evt StockMovedEvent) error {
	if err := c.Invalidate(ctx, evt.VariantID); err != nil {
		if c != nil && c.logger != nil {
			c.logger.Warn("invalidate availability cache",
				slog.String("variant_id", evt.VariantID.String()),
				slog.Any("error", err))
		}
	}
	return nil
}
