// internal/store/profile_cache.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reviewdesk/internal/common/database"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

const profileKeyPrefix = "store_profile:"

// ProfileCache reads store profiles from Redis. Profiles are written by
// the onboarding tooling; the engine only reads, fills defaults and
// caches nothing back.
type ProfileCache struct {
	redis *database.RedisClient
	ttl   time.Duration
	log   logger.Logger
}

func NewProfileCache(redis *database.RedisClient, ttl time.Duration, log logger.Logger) *ProfileCache {
	return &ProfileCache{
		redis: redis,
		ttl:   ttl,
		log: log.With(map[string]interface{}{
			"component": "profileCache",
		}),
	}
}

// Get returns the profile for a store with defaults applied, or nil
// when the store is unknown.
func (c *ProfileCache) Get(ctx context.Context, storeID string) (*models.StoreProfile, error) {
	raw, err := c.redis.Get(ctx, profileKeyPrefix+storeID)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}

	var profile models.StoreProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("profile unmarshal failed: %w", err)
	}
	if profile.StoreID == "" {
		profile.StoreID = storeID
	}
	profile.ApplyDefaults()
	return &profile, nil
}

// Put stores a profile. Used by onboarding and by tests.
func (c *ProfileCache) Put(ctx context.Context, profile *models.StoreProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("profile marshal failed: %w", err)
	}
	if err := c.redis.Set(ctx, profileKeyPrefix+profile.StoreID, data, c.ttl); err != nil {
		return fmt.Errorf("profile write failed: %w", err)
	}
	return nil
}
