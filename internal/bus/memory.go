package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Compile-time checks.
var (
	_ Publisher = (*NoopPublisher)(nil)
	_ Publisher = (*MemoryBus)(nil)
	_ Consumer  = (*MemoryBus)(nil)
)

// NoopPublisher logs events and drops them. Used when no broker is
// configured so the engine stays runnable on a laptop.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	zap.L().Info("Event dropped (no broker configured)",
		zap.String("routing_key", routingKey),
		zap.Any("event", event))
	return nil
}

func (*NoopPublisher) Close() {}

// PublishedEvent is one message captured by the MemoryBus.
type PublishedEvent struct {
	RoutingKey string
	Body       []byte
}

// MemoryBus is an in-process publisher/consumer pair for tests: Publish
// records the message and forwards it to a blocked Consume loop.
type MemoryBus struct {
	mu         sync.Mutex
	published  []PublishedEvent
	deliveries chan PublishedEvent
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{deliveries: make(chan PublishedEvent, 64)}
}

func (b *MemoryBus) Publish(_ context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("unable to marshal event: %w", err)
	}

	message := PublishedEvent{RoutingKey: routingKey, Body: body}
	b.mu.Lock()
	b.published = append(b.published, message)
	b.mu.Unlock()

	select {
	case b.deliveries <- message:
	default:
		return fmt.Errorf("memory bus full")
	}
	return nil
}

func (b *MemoryBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-b.deliveries:
			if err := safeHandle(ctx, handler, message.RoutingKey, message.Body); err != nil {
				zap.L().Error("Event handler failed; acknowledging without requeue",
					zap.String("routing_key", message.RoutingKey),
					zap.Error(err))
			}
		}
	}
}

// Published returns a copy of everything published so far.
func (b *MemoryBus) Published() []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PublishedEvent, len(b.published))
	copy(out, b.published)
	return out
}

// PublishedKeys returns the routing keys in publish order.
func (b *MemoryBus) PublishedKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, len(b.published))
	for i, message := range b.published {
		keys[i] = message.RoutingKey
	}
	return keys
}

func (b *MemoryBus) Close() {}
