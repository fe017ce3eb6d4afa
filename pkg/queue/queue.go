package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/transitgeo/transitgeo/pkg/config"
	"github.com/transitgeo/transitgeo/pkg/redis_client"
)

// ErrPollTimeout is returned by Poll when nothing arrived within the timeout.
var ErrPollTimeout = errors.New("poll timed out")

var ErrClosed = errors.New("queue closed")

type Message interface {
	Payload() []byte

	Ack() error

	// Reject hands the message to the backend's dead letter handling.
	Reject() error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type Consumer interface {
	Poll(ctx context.Context, timeout time.Duration) (Message, error)
	Close() error
}

type Broker interface {
	Publisher

	Name() string
	Subscribe(topic string) (Consumer, error)
	Close() error
}

// Open connects to the configured backend.
func Open(cfg config.QueueConfig) (Broker, error) {
	switch cfg.Backend {
	case "redis":
		connection, err := redis_client.Connect(cfg)
		if err != nil {
			return nil, err
		}
		return NewRMQBroker(connection), nil
	case "nats":
		return DialNATS(cfg.NATSURL)
	case "stomp":
		return DialSTOMP(cfg.STOMPAddress, cfg.STOMPUsername, cfg.STOMPPassword)
	case "memory":
		return NewMemoryBroker(), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
