package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Compile-time checks.
var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Consumer  = (*AMQPConsumer)(nil)
)

// declareExchange sets up the shared durable topic exchange. Publisher and
// consumer both declare it so either side can start first.
func declareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

func closeQuietly(conn *amqp.Connection) {
	if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		zap.L().Warn("Failed to close AMQP connection", zap.Error(err))
	}
}

// AMQPPublisher publishes persistent JSON messages to the topic exchange.
type AMQPPublisher struct {
	exchange string
	url      string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url cannot be empty")
	}
	if exchange == "" {
		return nil, fmt.Errorf("exchange name cannot be empty")
	}

	p := &AMQPPublisher{exchange: exchange, url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}

	zap.L().Info("AMQP publisher connected", zap.String("exchange", exchange))
	return p, nil
}

// connect (re)establishes the connection and channel. Callers hold p.mu or
// are inside the constructor.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("unable to dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		closeQuietly(conn)
		return fmt.Errorf("unable to open amqp channel: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		closeQuietly(conn)
		return fmt.Errorf("unable to declare exchange: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("unable to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		zap.L().Warn("AMQP channel closed, reconnecting")
		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("unable to publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		closeQuietly(p.conn)
	}
}

// AMQPConsumer owns a durable queue bound to the topic exchange and pumps
// its deliveries through a Handler.
type AMQPConsumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPConsumer(url, exchange, queue string, bindingKeys []string) (*AMQPConsumer, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url cannot be empty")
	}
	if queue == "" {
		return nil, fmt.Errorf("queue name cannot be empty")
	}
	if len(bindingKeys) == 0 {
		return nil, fmt.Errorf("at least one binding key is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("unable to dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("unable to open amqp channel: %w", err)
	}

	if err := declareExchange(ch, exchange); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("unable to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("unable to declare queue: %w", err)
	}
	for _, key := range bindingKeys {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			closeQuietly(conn)
			return nil, fmt.Errorf("unable to bind %s: %w", key, err)
		}
	}
	if err := ch.Qos(16, 0, false); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("unable to set qos: %w", err)
	}

	zap.L().Info("AMQP consumer ready",
		zap.String("queue", queue),
		zap.Strings("bindings", bindingKeys))
	return &AMQPConsumer{conn: conn, ch: ch, queue: queue}, nil
}

// Consume blocks until the context ends or the broker drops the channel.
// Deliveries are acknowledged after the handler runs, success or not; the
// upstream record is the source of truth, so a skipped message is recovered
// by reconciliation rather than redelivery.
func (c *AMQPConsumer) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("unable to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			if err := safeHandle(ctx, handler, delivery.RoutingKey, delivery.Body); err != nil {
				zap.L().Error("Event handler failed; acknowledging without requeue",
					zap.String("routing_key", delivery.RoutingKey),
					zap.String("message_id", delivery.MessageId),
					zap.Error(err))
			}
			if err := delivery.Ack(false); err != nil {
				zap.L().Error("Failed to acknowledge delivery", zap.Error(err))
			}
		}
	}
}

func (c *AMQPConsumer) Close() {
	if c.conn != nil {
		closeQuietly(c.conn)
	}
}
