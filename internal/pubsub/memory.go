package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/khunphaen/syncserver/internal/metrics"
)

// DefaultSubscriberBuffer is the per-subscriber in-flight capacity used when
// a topic's fan-out bus overflows. Matches the room fan-out bus bound.
const DefaultSubscriberBuffer = 256

// memorySubscription is a subscription to a topic. Messages are delivered
// through a bounded queue drained by a dedicated goroutine: a slow or stuck
// handler can only ever backlog its own queue, never the publisher or other
// subscribers, and once the queue is full the oldest-style overflow drops
// the newest message rather than blocking (at-most-once, best-effort).
type memorySubscription struct {
	ps      *MemoryPubSub
	topic   string
	handler Handler
	id      uint64
	queue   chan *Message
	done    chan struct{}
}

func newMemorySubscription(ps *MemoryPubSub, topic string, id uint64, handler Handler, bufSize int) *memorySubscription {
	s := &memorySubscription{
		ps:      ps,
		topic:   topic,
		handler: handler,
		id:      id,
		queue:   make(chan *Message, bufSize),
		done:    make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *memorySubscription) drain() {
	for {
		select {
		case msg := <-s.queue:
			s.handler(context.Background(), msg)
		case <-s.done:
			return
		}
	}
}

// deliver enqueues msg without blocking; if the subscriber's queue is full
// the message is dropped and the drop is logged, never queued unboundedly.
func (s *memorySubscription) deliver(msg *Message, logger *slog.Logger) {
	select {
	case s.queue <- msg:
	default:
		metrics.BusMessagesDroppedTotal.Inc()
		logger.Warn("subscriber queue full, dropping message", "topic", s.topic, "msg_type", msg.Type)
	}
}

func (s *memorySubscription) Unsubscribe() error {
	s.ps.unsubscribe(s.topic, s.id)
	close(s.done)
	return nil
}

// MemoryPubSub implements PubSub using an in-memory map.
// Suitable for single-instance deployments.
type MemoryPubSub struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]*memorySubscription
	nextID      uint64
	closed      bool
	bufSize     int
	logger      *slog.Logger
}

// NewMemoryPubSub creates a new in-memory pub/sub instance with the default
// per-subscriber buffer size.
func NewMemoryPubSub() *MemoryPubSub {
	return NewMemoryPubSubWithBuffer(DefaultSubscriberBuffer)
}

// NewMemoryPubSubWithBuffer creates an in-memory pub/sub instance with a
// custom per-subscriber buffer size, mainly useful in tests that want to
// force overflow deterministically.
func NewMemoryPubSubWithBuffer(bufSize int) *MemoryPubSub {
	return &MemoryPubSub{
		subscribers: make(map[string]map[uint64]*memorySubscription),
		bufSize:     bufSize,
		logger:      slog.Default().With("component", "pubsub"),
	}
}

// Publish sends a message to all subscribers of the topic
func (ps *MemoryPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
	ps.mu.RLock()
	if ps.closed {
		ps.mu.RUnlock()
		return ErrClosed
	}

	subs, ok := ps.subscribers[topic]
	if !ok || len(subs) == 0 {
		ps.mu.RUnlock()
		return nil
	}

	// Copy the subscriber list to avoid holding the lock during delivery.
	targets := make([]*memorySubscription, 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, sub)
	}
	ps.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(msg, ps.logger)
	}

	return nil
}

// Subscribe registers a handler for the given topic
func (ps *MemoryPubSub) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, ErrClosed
	}

	ps.nextID++
	id := ps.nextID

	sub := newMemorySubscription(ps, topic, id, handler, ps.bufSize)

	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[uint64]*memorySubscription)
	}
	ps.subscribers[topic][id] = sub

	return sub, nil
}

func (ps *MemoryPubSub) unsubscribe(topic string, id uint64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if subs, ok := ps.subscribers[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(ps.subscribers, topic)
		}
	}
}

// Close shuts down the pub/sub and prevents new operations
func (ps *MemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil
	}
	ps.closed = true
	for _, subs := range ps.subscribers {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	ps.subscribers = make(map[string]map[uint64]*memorySubscription)
	return nil
}

// SubscriberCount returns the number of subscribers for a topic (useful for testing)
func (ps *MemoryPubSub) SubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// TopicCount returns the number of active topics (useful for testing)
func (ps *MemoryPubSub) TopicCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers)
}
