package stops

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/transit"
)

// LineCache keeps the serving lines of a post between batch runs.
type LineCache struct {
	Cache *cache.Cache[string]
}

func NewLineCache(client *redis.Client, ttl time.Duration) *LineCache {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &LineCache{
		Cache: cache.New[string](redisStore),
	}
}

func cacheKey(key transit.StopKey) string {
	return fmt.Sprintf("transitgeo/timetable/%s", key)
}

func (l *LineCache) Get(ctx context.Context, key transit.StopKey) ([]string, bool) {
	value, err := l.Cache.Get(ctx, cacheKey(key))
	if err != nil {
		return nil, false
	}

	var lines []string
	if err := json.Unmarshal([]byte(value), &lines); err != nil {
		return nil, false
	}

	return lines, true
}

func (l *LineCache) Set(ctx context.Context, key transit.StopKey, lines []string) {
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return
	}

	if err := l.Cache.Set(ctx, cacheKey(key), string(linesJSON)); err != nil {
		log.Debug().Err(err).Str("stop", key.String()).Msg("Failed to cache stop lines")
	}
}
