package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"domus/internal/regulation/models"
	id "domus/pkg/domain"
)

// defaultActiveTTL bounds staleness if an invalidation is ever lost; normal
// operation invalidates explicitly on every lifecycle mutation.
const defaultActiveTTL = 10 * time.Minute

// ActiveCache is a Redis read-through cache for the per-residence active
// regulation. Every portal session resolves the active regulation, so this is
// the hottest read path in the system.
type ActiveCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewActiveCache(client *redis.Client, ttl time.Duration) *ActiveCache {
	if ttl <= 0 {
		ttl = defaultActiveTTL
	}
	return &ActiveCache{client: client, ttl: ttl}
}

func activeKey(residenceID id.ResidenceID) string {
	return "regulation:active:" + residenceID.String()
}

// Get returns the cached active regulation and whether the key was present.
func (c *ActiveCache) Get(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, bool, error) {
	raw, err := c.client.Get(ctx, activeKey(residenceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var regulation models.Regulation
	if err := json.Unmarshal(raw, &regulation); err != nil {
		// Treat a corrupt entry as a miss; the read path will repopulate it.
		return nil, false, nil
	}
	return &regulation, true, nil
}

func (c *ActiveCache) Set(ctx context.Context, residenceID id.ResidenceID, regulation *models.Regulation) error {
	raw, err := json.Marshal(regulation)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, activeKey(residenceID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// SetIfAbsent stores the regulation only when no value is cached. Read-path
// repopulation uses this so a reader that fetched before a swap committed
// cannot overwrite the value the swap wrote after invalidating.
func (c *ActiveCache) SetIfAbsent(ctx context.Context, residenceID id.ResidenceID, regulation *models.Regulation) error {
	raw, err := json.Marshal(regulation)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.SetNX(ctx, activeKey(residenceID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *ActiveCache) Invalidate(ctx context.Context, residenceID id.ResidenceID) error {
	if err := c.client.Del(ctx, activeKey(residenceID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
