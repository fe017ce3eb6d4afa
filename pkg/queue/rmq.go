package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/redis_client"
)

const (
	rmqPrefetchLimit = 10
	rmqPollDuration  = time.Second
)

// RMQBroker keeps one redis list per topic. Rejected deliveries land in the queue's
// rejected list and unacked ones are returned by the cleaner.
type RMQBroker struct {
	Connection *redis_client.Connection

	PollDuration time.Duration

	mutex     sync.Mutex
	queues    map[string]rmq.Queue
	consumers []*rmqConsumer
}

func NewRMQBroker(connection *redis_client.Connection) *RMQBroker {
	return &RMQBroker{
		Connection:   connection,
		PollDuration: rmqPollDuration,
		queues:       map[string]rmq.Queue{},
	}
}

func (r *RMQBroker) Name() string {
	return "redis"
}

func (r *RMQBroker) openQueue(topic string) (rmq.Queue, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if queue, exists := r.queues[topic]; exists {
		return queue, nil
	}

	queue, err := r.Connection.Queue.OpenQueue(topic)
	if err != nil {
		return nil, err
	}
	r.queues[topic] = queue
	return queue, nil
}

func (r *RMQBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	queue, err := r.openQueue(topic)
	if err != nil {
		return err
	}

	return queue.PublishBytes(payload)
}

func (r *RMQBroker) Subscribe(topic string) (Consumer, error) {
	queue, err := r.openQueue(topic)
	if err != nil {
		return nil, err
	}

	if err := queue.StartConsuming(rmqPrefetchLimit, r.PollDuration); err != nil {
		return nil, err
	}

	consumer := &rmqConsumer{
		queue:      queue,
		deliveries: make(chan rmq.Delivery),
		done:       make(chan struct{}),
	}

	tag := fmt.Sprintf("%s-consumer", topic)
	if _, err := queue.AddConsumerFunc(tag, consumer.consume); err != nil {
		<-queue.StopConsuming()
		return nil, err
	}

	r.mutex.Lock()
	r.consumers = append(r.consumers, consumer)
	r.mutex.Unlock()

	log.Info().Str("queue", topic).Msg("Started queue consumer")

	return consumer, nil
}

func (r *RMQBroker) Close() error {
	r.mutex.Lock()
	for _, consumer := range r.consumers {
		consumer.release()
	}
	r.mutex.Unlock()

	return r.Connection.Close()
}

// Stats renders the rmq overview page for all open queues.
func (r *RMQBroker) Stats(layout string, refresh string) (string, error) {
	queues, err := r.Connection.Queue.GetOpenQueues()
	if err != nil {
		return "", err
	}

	stats, err := r.Connection.Queue.CollectStats(queues)
	if err != nil {
		return "", err
	}

	return stats.GetHtml(layout, refresh), nil
}

type rmqConsumer struct {
	queue      rmq.Queue
	deliveries chan rmq.Delivery
	done       chan struct{}
	closeOnce  sync.Once
}

// consume runs on the rmq consumer goroutine and hands each delivery to Poll. A delivery
// still waiting when the consumer closes stays unacked for the cleaner.
func (c *rmqConsumer) consume(delivery rmq.Delivery) {
	select {
	case c.deliveries <- delivery:
	case <-c.done:
	}
}

func (c *rmqConsumer) Poll(ctx context.Context, timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case delivery := <-c.deliveries:
		return rmqMessage{delivery: delivery}, nil
	case <-timer.C:
		return nil, ErrPollTimeout
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *rmqConsumer) release() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *rmqConsumer) Close() error {
	c.release()
	<-c.queue.StopConsuming()
	return nil
}

type rmqMessage struct {
	delivery rmq.Delivery
}

func (m rmqMessage) Payload() []byte {
	return []byte(m.delivery.Payload())
}

func (m rmqMessage) Ack() error {
	return m.delivery.Ack()
}

func (m rmqMessage) Reject() error {
	return m.delivery.Reject()
}
