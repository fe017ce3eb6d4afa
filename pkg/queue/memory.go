package queue

import (
	"context"
	"sync"
	"time"
)

const memoryTopicBuffer = 64

// MemoryBroker is an in-process queue with one buffered channel per topic.
type MemoryBroker struct {
	mutex    sync.Mutex
	topics   map[string]chan []byte
	rejected map[string][][]byte
	acked    map[string]int
	closed   bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		topics:   map[string]chan []byte{},
		rejected: map[string][][]byte{},
		acked:    map[string]int{},
	}
}

func (m *MemoryBroker) Name() string {
	return "memory"
}

func (m *MemoryBroker) topic(name string) chan []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	channel, exists := m.topics[name]
	if !exists {
		channel = make(chan []byte, memoryTopicBuffer)
		m.topics[name] = channel
	}
	return channel
}

func (m *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mutex.Lock()
	closed := m.closed
	m.mutex.Unlock()
	if closed {
		return ErrClosed
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	select {
	case m.topic(topic) <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MemoryBroker) Subscribe(topic string) (Consumer, error) {
	return &memoryConsumer{broker: m, name: topic, channel: m.topic(topic)}, nil
}

func (m *MemoryBroker) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.closed = true
	return nil
}

// Rejected returns the payloads rejected on a topic.
func (m *MemoryBroker) Rejected(topic string) [][]byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([][]byte(nil), m.rejected[topic]...)
}

func (m *MemoryBroker) Acked(topic string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.acked[topic]
}

type memoryConsumer struct {
	broker  *MemoryBroker
	name    string
	channel chan []byte
}

func (c *memoryConsumer) Poll(ctx context.Context, timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-c.channel:
		return &memoryMessage{consumer: c, payload: payload}, nil
	case <-timer.C:
		return nil, ErrPollTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memoryConsumer) Close() error {
	return nil
}

type memoryMessage struct {
	consumer *memoryConsumer
	payload  []byte
}

func (m *memoryMessage) Payload() []byte {
	return m.payload
}

func (m *memoryMessage) Ack() error {
	broker := m.consumer.broker
	broker.mutex.Lock()
	defer broker.mutex.Unlock()

	broker.acked[m.consumer.name]++
	return nil
}

func (m *memoryMessage) Reject() error {
	broker := m.consumer.broker
	broker.mutex.Lock()
	defer broker.mutex.Unlock()

	broker.rejected[m.consumer.name] = append(broker.rejected[m.consumer.name], m.payload)
	return nil
}
