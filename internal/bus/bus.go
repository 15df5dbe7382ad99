package bus

import (
	"context"
	"fmt"
)

// Publisher emits domain events onto the topic bus. Publishing is
// post-commit and at-least-once: a failure after the store write is logged
// by the caller with the committed row id, never rolled back.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close()
}

// Handler processes one delivery. A non-nil error marks the message as
// poison: the consumer records it and acknowledges without requeue, so one
// bad payload cannot wedge the queue.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// Consumer feeds queue deliveries to a handler until the context ends.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close()
}

// safeHandle runs the handler, converting a panic into a poison error so one
// bad payload cannot take the consume loop down.
func safeHandle(ctx context.Context, handler Handler, routingKey string, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", routingKey, r)
		}
	}()
	return handler(ctx, routingKey, body)
}
