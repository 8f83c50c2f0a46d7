package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

const (
	redisPrefix      = "radiosync:"
	redisTrackPrefix = redisPrefix + "track:"
	redisPagePrefix  = redisPrefix + "page:"
	redisScanCount   = 100
)

// NewRedisClient parses a redis:// URL and verifies the server answers a PING.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %v", shared.ErrInvalidConfig, err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, unavailable("ping redis", err)
	}
	return client, nil
}

// redisTrack is the stored form of one track cache row.
type redisTrack struct {
	ID           string    `json:"id"`
	URI          string    `json:"uri,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// RedisTrackCache implements [models.TrackCache] with one Redis list per key.
//
// Put appends to the tail, so the tail is always the newest row.
type RedisTrackCache struct {
	client *redis.Client
	now    Clock
}

// NewRedisTrackCache creates a track cache over client.
func NewRedisTrackCache(client *redis.Client) *RedisTrackCache {
	return &RedisTrackCache{client: client, now: utcNow}
}

// SetClock replaces the time source used for created and last-accessed timestamps.
func (c *RedisTrackCache) SetClock(now Clock) {
	c.now = now
}

func (c *RedisTrackCache) Get(ctx context.Context, key string) (*models.CachedTrack, error) {
	raw, err := c.client.LIndex(ctx, redisTrackPrefix+key, -1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, unavailable("get track", err)
	}

	var stored redisTrack
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, unavailable("decode track", err)
	}

	return &models.CachedTrack{
		ID:           stored.ID,
		Key:          key,
		URI:          stored.URI,
		Resolved:     stored.URI != "",
		CreatedAt:    stored.CreatedAt,
		LastAccessed: stored.LastAccessed,
	}, nil
}

func (c *RedisTrackCache) Put(ctx context.Context, key, uri string) error {
	now := c.now()
	encoded, err := json.Marshal(redisTrack{ID: shared.GenerateID(), URI: uri, CreatedAt: now, LastAccessed: now})
	if err != nil {
		return fmt.Errorf("failed to encode track: %w", err)
	}

	if err := c.client.RPush(ctx, redisTrackPrefix+key, encoded).Err(); err != nil {
		return unavailable("push track", err)
	}
	return nil
}

// Touch rewrites the tail entry when it is still entry. A newer row written in between is left alone.
func (c *RedisTrackCache) Touch(ctx context.Context, entry *models.CachedTrack, at time.Time) error {
	current, err := c.Get(ctx, entry.Key)
	if err != nil {
		return err
	}
	if current.ID != entry.ID {
		return nil
	}

	encoded, err := json.Marshal(redisTrack{ID: entry.ID, URI: entry.URI, CreatedAt: entry.CreatedAt, LastAccessed: at})
	if err != nil {
		return fmt.Errorf("failed to encode track: %w", err)
	}

	if err := c.client.LSet(ctx, redisTrackPrefix+entry.Key, -1, encoded).Err(); err != nil {
		return unavailable("touch track", err)
	}
	entry.LastAccessed = at
	return nil
}

// Compact trims every list to its tail entry and returns the number of entries removed.
func (c *RedisTrackCache) Compact(ctx context.Context) (int, error) {
	keys, err := scanKeys(ctx, c.client, redisTrackPrefix+"*")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		length, err := c.client.LLen(ctx, key).Result()
		if err != nil {
			return removed, unavailable("compact tracks", err)
		}
		if length <= 1 {
			continue
		}
		if err := c.client.LTrim(ctx, key, -1, -1).Err(); err != nil {
			return removed, unavailable("compact tracks", err)
		}
		removed += int(length - 1)
	}
	return removed, nil
}

// Stats counts entries across the Redis track lists and page keys.
func (c *RedisTrackCache) Stats(ctx context.Context) (*models.CacheStats, error) {
	keys, err := scanKeys(ctx, c.client, redisTrackPrefix+"*")
	if err != nil {
		return nil, err
	}

	stats := models.CacheStats{DistinctKeys: len(keys)}
	for _, key := range keys {
		values, err := c.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, unavailable("count tracks", err)
		}
		for _, raw := range values {
			var stored redisTrack
			if err := json.Unmarshal([]byte(raw), &stored); err != nil {
				return nil, unavailable("decode track", err)
			}
			stats.Entries++
			if stored.URI == "" {
				stats.Negative++
			}
		}
	}

	pages, err := scanKeys(ctx, c.client, redisPagePrefix+"*")
	if err != nil {
		return nil, err
	}
	stats.Pages = len(pages)

	return &stats, nil
}

// redisPage is the stored form of a playlist page.
type redisPage struct {
	URIs []string `json:"uris"`
	Next string   `json:"next,omitempty"`
}

// RedisPageCache implements [models.PageCache] with one JSON value per cursor.
type RedisPageCache struct {
	client *redis.Client
}

// NewRedisPageCache creates a page cache over client.
func NewRedisPageCache(client *redis.Client) *RedisPageCache {
	return &RedisPageCache{client: client}
}

func (c *RedisPageCache) Get(ctx context.Context, cursor string) (*models.PlaylistPage, error) {
	raw, err := c.client.Get(ctx, redisPagePrefix+cursor).Result()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, unavailable("get page", err)
	}
	return decodePage(cursor, raw)
}

func (c *RedisPageCache) Put(ctx context.Context, page models.PlaylistPage) error {
	if page.Cursor == "" {
		return fmt.Errorf("%w: page cursor is empty", shared.ErrCacheUnavailable)
	}

	uris := page.URIs
	if uris == nil {
		uris = []string{}
	}
	encoded, err := json.Marshal(redisPage{URIs: uris, Next: page.Next})
	if err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}

	if err := c.client.Set(ctx, redisPagePrefix+page.Cursor, encoded, 0).Err(); err != nil {
		return unavailable("put page", err)
	}
	return nil
}

func (c *RedisPageCache) Delete(ctx context.Context, cursor string) error {
	if err := c.client.Del(ctx, redisPagePrefix+cursor).Err(); err != nil {
		return unavailable("delete page", err)
	}
	return nil
}

// LastPage scans the playlist's cursors for a page without a next cursor.
func (c *RedisPageCache) LastPage(ctx context.Context, playlistID string) (*models.PlaylistPage, error) {
	keys, err := scanKeys(ctx, c.client, redisPagePrefix+playlistID+"/*")
	if err != nil {
		return nil, err
	}

	var last *models.PlaylistPage
	for _, key := range keys {
		cursor := strings.TrimPrefix(key, redisPagePrefix)
		page, err := c.Get(ctx, cursor)
		if errors.Is(err, shared.ErrCacheMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !page.Terminal() {
			continue
		}
		if last == nil || page.Cursor > last.Cursor {
			last = page
		}
	}

	if last == nil {
		return nil, shared.ErrCacheMiss
	}
	return last, nil
}

func (c *RedisPageCache) Clear(ctx context.Context, playlistID string) (int, error) {
	keys, err := scanKeys(ctx, c.client, redisPagePrefix+playlistID+"/*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable("clear pages", err)
	}
	return int(removed), nil
}

func decodePage(cursor, raw string) (*models.PlaylistPage, error) {
	var stored redisPage
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, unavailable("decode page", err)
	}
	return &models.PlaylistPage{Cursor: cursor, URIs: stored.URIs, Next: stored.Next}, nil
}

// scanKeys collects every key matching pattern with SCAN.
func scanKeys(ctx context.Context, client *redis.Client, pattern string) ([]string, error) {
	var keys []string
	iter := client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan keys", err)
	}
	return keys, nil
}
