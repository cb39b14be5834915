package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camagru/camagru/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Sticker Cache Operations

const stickerListKey = "stickers:all"

// SetSticker caches a sticker
func (c *Cache) SetSticker(ctx context.Context, sticker *models.Sticker, ttl time.Duration) error {
	return c.setJSON(ctx, fmt.Sprintf("sticker:%d", sticker.ID), sticker, ttl)
}

// GetSticker retrieves a sticker from cache. A miss returns nil, nil.
func (c *Cache) GetSticker(ctx context.Context, id int64) (*models.Sticker, error) {
	var sticker models.Sticker
	hit, err := c.getJSON(ctx, fmt.Sprintf("sticker:%d", id), &sticker)
	if err != nil || !hit {
		return nil, err
	}
	return &sticker, nil
}

// SetStickers caches the sticker catalogue
func (c *Cache) SetStickers(ctx context.Context, stickers []*models.Sticker, ttl time.Duration) error {
	return c.setJSON(ctx, stickerListKey, stickers, ttl)
}

// GetStickers retrieves the sticker catalogue. A miss returns nil, nil.
func (c *Cache) GetStickers(ctx context.Context) ([]*models.Sticker, error) {
	var stickers []*models.Sticker
	hit, err := c.getJSON(ctx, stickerListKey, &stickers)
	if err != nil || !hit {
		return nil, err
	}
	return stickers, nil
}

// Session Operations

// RevokeToken marks a session token id as revoked until it would have expired
func (c *Cache) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := fmt.Sprintf("revoked:%s", tokenID)
	if err := c.client.Set(ctx, key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a session token id has been revoked
func (c *Cache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, fmt.Sprintf("revoked:%s", tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// Rate Limiting Operations

// CheckRateLimit increments the counter for key and reports whether it is
// still within limit for the current window
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	// INCR and EXPIRE NX run in one transaction so a counter never lives
	// without a TTL
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, rateLimitKey)
		pipe.ExpireNX(ctx, rateLimitKey, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	return incr.Val() <= limit, nil
}

func (c *Cache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get value from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return true, nil
}
