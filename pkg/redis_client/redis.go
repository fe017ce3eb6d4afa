package redis_client

import (
	"context"
	"fmt"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/config"
)

const connectionTag = "transitgeo"

type Connection struct {
	Client *redis.Client
	Queue  rmq.Connection
}

func Connect(cfg config.QueueConfig) (*Connection, error) {
	options := &redis.Options{
		Addr: cfg.RedisAddress,
		DB:   cfg.RedisDatabase,
	}
	if cfg.RedisPassword != "" {
		options.Password = cfg.RedisPassword
	}

	client := redis.NewClient(options)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddress, err)
	}

	errChan := make(chan error, 10)
	go logQueueErrors(errChan)

	queueConnection, err := rmq.OpenConnectionWithRedisClient(connectionTag, client, errChan)
	if err != nil {
		return nil, err
	}

	log.Info().Str("address", cfg.RedisAddress).Msg("Redis client setup")

	return &Connection{
		Client: client,
		Queue:  queueConnection,
	}, nil
}

// Close stops every consumer and waits for running deliveries before closing the client.
func (c *Connection) Close() error {
	<-c.Queue.StopAllConsuming()
	return c.Client.Close()
}

func logQueueErrors(errChan <-chan error) {
	for err := range errChan {
		switch err := err.(type) {
		case *rmq.HeartbeatError:
			if err.Count == rmq.HeartbeatErrorLimit {
				log.Error().Err(err).Msg("Queue heartbeat failed, consumers will stop")
			} else {
				log.Warn().Err(err).Msg("Queue heartbeat error")
			}
		case *rmq.ConsumeError:
			log.Warn().Err(err).Msg("Queue consume error")
		case *rmq.DeliveryError:
			log.Warn().Err(err).Msg("Queue delivery error")
		default:
			log.Error().Err(err).Msg("Queue error")
		}
	}
}
