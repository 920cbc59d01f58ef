// Package bus carries the detection pipeline's events: ingested
// transactions, completed detections and alerts. A channel bus serves
// single-binary deployments, a NATS bus serves the Pro tier.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/talon/internal/domain"
)

// ChannelBus is the in-process event bus for the Community tier. Every
// subscriber gets its own buffered inbox; a slow subscriber drops
// messages rather than stalling the scoring pipeline, and the drop
// count is surfaced for the metrics endpoint.
type ChannelBus struct {
	mu      sync.RWMutex
	bufSize int
	subs    map[string][]*chanSub
	closed  bool
	dropped atomic.Int64
}

type chanSub struct {
	id     string
	topic  string
	inbox  chan *domain.Message
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChannelBus creates an in-process bus. bufSize caps each
// subscriber's inbox.
func NewChannelBus(bufSize int) *ChannelBus {
	if bufSize <= 0 {
		bufSize = 1000
	}
	return &ChannelBus{
		bufSize: bufSize,
		subs:    make(map[string][]*chanSub),
	}
}

// Publish fans a message out to every subscriber of the tenant's topic.
// Full inboxes drop the message instead of blocking the caller.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	subs := b.subs[subjectFor(tenantID, topic)]
	b.mu.RUnlock()

	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	for _, sub := range subs {
		select {
		case sub.inbox <- msg:
		default:
			b.dropped.Add(1)
		}
	}

	return nil
}

// Subscribe registers a handler for a tenant's topic. The handler runs
// on a dedicated goroutine until Unsubscribe or Close.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &chanSub{
		id:     uuid.New().String(),
		topic:  topic,
		inbox:  make(chan *domain.Message, b.bufSize),
		ctx:    subCtx,
		cancel: cancel,
	}

	go pump(sub, handler)

	key := subjectFor(tenantID, topic)
	b.subs[key] = append(b.subs[key], sub)

	return sub, nil
}

// pump drains one subscriber's inbox into its handler.
func pump(sub *chanSub, handler domain.MessageHandler) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg := <-sub.inbox:
			if msg != nil {
				_ = handler(sub.ctx, msg)
			}
		}
	}
}

// Request publishes a message and waits for one reply on a throwaway
// reply topic.
func (b *ChannelBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, tenantID, topic, payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("request timeout")
	}
}

// Dropped reports how many messages were discarded because a
// subscriber's inbox was full.
func (b *ChannelBus) Dropped() int64 {
	return b.dropped.Load()
}

// Ping reports bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close cancels every subscription and rejects further operations.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.cancel()
			close(sub.inbox)
		}
	}
	b.subs = make(map[string][]*chanSub)
	return nil
}

// subjectFor scopes a topic to one tenant.
func subjectFor(tenantID, topic string) string {
	return tenantID + ":" + topic
}

// Unsubscribe stops the subscriber's pump.
func (s *chanSub) Unsubscribe() error {
	s.cancel()
	return nil
}

// Topic returns the subscribed topic.
func (s *chanSub) Topic() string {
	return s.topic
}
