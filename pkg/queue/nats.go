package queue

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// RejectedSuffix is appended to a subject to form its dead letter subject.
const RejectedSuffix = ".rejected"

// NATSBroker uses core NATS subjects. Core NATS has no acknowledgements, so Ack is a
// no-op and Reject republishes the payload to <subject>.rejected.
type NATSBroker struct {
	conn *nats.Conn
}

func DialNATS(url string) (*NATSBroker, error) {
	conn, err := nats.Connect(url,
		nats.Name("transitgeo"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS closed")
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", url).Msg("NATS client setup")

	return NewNATSBroker(conn), nil
}

func NewNATSBroker(conn *nats.Conn) *NATSBroker {
	return &NATSBroker{conn: conn}
}

func (n *NATSBroker) Name() string {
	return "nats"
}

func (n *NATSBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return n.conn.Publish(topic, payload)
}

func (n *NATSBroker) Subscribe(topic string) (Consumer, error) {
	subscription, err := n.conn.SubscribeSync(topic)
	if err != nil {
		return nil, err
	}

	return &natsConsumer{broker: n, subscription: subscription}, nil
}

func (n *NATSBroker) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

type natsConsumer struct {
	broker       *NATSBroker
	subscription *nats.Subscription
}

func (c *natsConsumer) Poll(ctx context.Context, timeout time.Duration) (Message, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.subscription.NextMsgWithContext(pollCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return nil, ErrPollTimeout
		}
		if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}

	return &natsMessage{broker: c.broker, msg: msg}, nil
}

func (c *natsConsumer) Close() error {
	return c.subscription.Unsubscribe()
}

type natsMessage struct {
	broker *NATSBroker
	msg    *nats.Msg
}

func (m *natsMessage) Payload() []byte {
	return m.msg.Data
}

func (m *natsMessage) Ack() error {
	return nil
}

func (m *natsMessage) Reject() error {
	return m.broker.conn.Publish(m.msg.Subject+RejectedSuffix, m.msg.Data)
}
