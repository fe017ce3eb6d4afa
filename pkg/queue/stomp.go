package queue

import (
	"context"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"
)

// STOMPBroker subscribes in client-ack mode. Reject sends a NACK and leaves dead
// lettering to the broker's redelivery policy.
type STOMPBroker struct {
	conn *stomp.Conn
}

func DialSTOMP(address string, username string, password string) (*STOMPBroker, error) {
	var stompOptions []func(*stomp.Conn) error = []func(*stomp.Conn) error{
		stomp.ConnOpt.Login(username, password),
		stomp.ConnOpt.HeartBeat(30*time.Second, 30*time.Second),
	}
	conn, err := stomp.Dial("tcp", address, stompOptions...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("address", address).Msg("STOMP client setup")

	return &STOMPBroker{conn: conn}, nil
}

func (s *STOMPBroker) Name() string {
	return "stomp"
}

// destination maps a bare topic name onto a queue destination.
func destination(topic string) string {
	if strings.HasPrefix(topic, "/") {
		return topic
	}
	return "/queue/" + topic
}

func (s *STOMPBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return s.conn.Send(destination(topic), "application/json", payload)
}

func (s *STOMPBroker) Subscribe(topic string) (Consumer, error) {
	subscription, err := s.conn.Subscribe(destination(topic), stomp.AckClientIndividual)
	if err != nil {
		return nil, err
	}

	return &stompConsumer{conn: s.conn, subscription: subscription}, nil
}

func (s *STOMPBroker) Close() error {
	return s.conn.Disconnect()
}

type stompConsumer struct {
	conn         *stomp.Conn
	subscription *stomp.Subscription
}

func (c *stompConsumer) Poll(ctx context.Context, timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-c.subscription.C:
		if !ok {
			return nil, ErrClosed
		}
		if msg.Err != nil {
			return nil, msg.Err
		}
		return &stompMessage{conn: c.conn, msg: msg}, nil
	case <-timer.C:
		return nil, ErrPollTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *stompConsumer) Close() error {
	return c.subscription.Unsubscribe()
}

type stompMessage struct {
	conn *stomp.Conn
	msg  *stomp.Message
}

func (m *stompMessage) Payload() []byte {
	return m.msg.Body
}

func (m *stompMessage) Ack() error {
	return m.conn.Ack(m.msg)
}

func (m *stompMessage) Reject() error {
	return m.conn.Nack(m.msg)
}
