package queue

import (
	"context"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/redis_client"
)

const DefaultCleanInterval = 5 * time.Minute

// RunCleaner returns deliveries held by dead consumers to their queues until the context
// is cancelled.
func RunCleaner(ctx context.Context, connection *redis_client.Connection, interval time.Duration) {
	cleaner := rmq.NewCleaner(connection.Queue)

	log.Info().Str("interval", interval.String()).Msg("Starting queue cleaner process")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		CleanOnce(cleaner)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func CleanOnce(cleaner *rmq.Cleaner) int64 {
	returned, err := cleaner.Clean()
	if err != nil {
		log.Error().Err(err).Msg("Failed to clean")
		return 0
	}

	if returned != 0 {
		log.Info().Msgf("Cleaned %d records", returned)
	}
	return returned
}
