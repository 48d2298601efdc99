package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/captionflow/captionflow/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
	tipTTL time.Duration
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int, tipTTL time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if tipTTL <= 0 {
		tipTTL = 5 * time.Minute
	}

	return &Cache{client: client, tipTTL: tipTTL}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Tip Cache Operations
//
// The cached value wraps the version so that "no tip" is cached distinctly
// from a cache miss. The pipeline invalidates both tip keys of a language
// before any write returns; a stale read is a bug, not an inconvenience.

// cachedTip carries the payload in its own field: the version's JSON codec
// omits SerializedSubtitles, and a cached tip without content would be lossy.
type cachedTip struct {
	Version *models.SubtitleVersion `json:"version"`
	Payload []byte                  `json:"payload,omitempty"`
}

func tipKey(languageID string, public bool) string {
	if public {
		return fmt.Sprintf("tip:public:%s", languageID)
	}
	return fmt.Sprintf("tip:private:%s", languageID)
}

// SetTip caches the resolved tip for a language. version may be nil.
func (c *Cache) SetTip(ctx context.Context, languageID string, public bool, version *models.SubtitleVersion) error {
	entry := cachedTip{Version: version}
	if version != nil {
		entry.Payload = version.SerializedSubtitles
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal tip: %w", err)
	}

	return c.client.Set(ctx, tipKey(languageID, public), data, c.tipTTL).Err()
}

// GetTip retrieves a cached tip. The second return value reports whether the
// cache held an entry at all; a nil version with ok=true means "no tip".
func (c *Cache) GetTip(ctx context.Context, languageID string, public bool) (*models.SubtitleVersion, bool, error) {
	data, err := c.client.Get(ctx, tipKey(languageID, public)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("failed to get tip from cache: %w", err)
	}

	var entry cachedTip
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal tip: %w", err)
	}

	if entry.Version != nil {
		entry.Version.SerializedSubtitles = entry.Payload
	}
	return entry.Version, true, nil
}

// DeleteTips removes both tip entries of a language
func (c *Cache) DeleteTips(ctx context.Context, languageID string) error {
	return c.client.Del(ctx, tipKey(languageID, true), tipKey(languageID, false)).Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
