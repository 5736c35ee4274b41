package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sellergate/sellergate_api/internal/models"
)

// attributeTTL bounds staleness of cached attribute sets. Marketplaces
// change category attributes rarely; an hour keeps diagnostics cheap
// without serving stale definitions for long.
const attributeTTL = time.Hour

// AttributeCache stores resolved attribute definitions per
// (marketplace, category) in Redis, so repeated category scans do not
// hammer the upstream attribute endpoints.
type AttributeCache struct {
	redis *RedisClient
}

// NewAttributeCache creates a new AttributeCache.
func NewAttributeCache(redis *RedisClient) *AttributeCache {
	return &AttributeCache{redis: redis}
}

func (c *AttributeCache) key(marketplace models.Marketplace, categoryID int) string {
	return fmt.Sprintf("attrs:%s:%d", marketplace, categoryID)
}

// Set stores an attribute set. Failures are returned but callers treat
// them as advisory; the cache is a derived artifact.
func (c *AttributeCache) Set(ctx context.Context, marketplace models.Marketplace, categoryID int, attrs []models.AttributeDefinition) error {
	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return c.redis.Set(ctx, c.key(marketplace, categoryID), string(payload), attributeTTL)
}

// Get retrieves a cached attribute set; (nil, nil) on a miss.
func (c *AttributeCache) Get(ctx context.Context, marketplace models.Marketplace, categoryID int) ([]models.AttributeDefinition, error) {
	payload, err := c.redis.Get(ctx, c.key(marketplace, categoryID))
	if err != nil || payload == "" {
		return nil, err
	}

	var attrs []models.AttributeDefinition
	if err := json.Unmarshal([]byte(payload), &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached attributes: %w", err)
	}
	return attrs, nil
}

// Invalidate drops the cached set for one category.
func (c *AttributeCache) Invalidate(ctx context.Context, marketplace models.Marketplace, categoryID int) error {
	return c.redis.Delete(ctx, c.key(marketplace, categoryID))
}
