package reactor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"moneybee/internal/bus"
	"moneybee/internal/models"
	"moneybee/internal/transfer"
)

// touchedRetention bounds how long a customer stays in the periodic
// reconciliation set after their last block/delete event.
const touchedRetention = 24 * time.Hour

// Config wires the reactor's dependencies.
type Config struct {
	Engine   *transfer.Service
	Consumer bus.Consumer
	// ReconcileInterval > 0 enables the periodic sweep over recently
	// affected customers; zero disables it.
	ReconcileInterval time.Duration
}

// Reactor consumes customer lifecycle events and cascade-cancels pending
// transfers for blocked or deleted customers. Delivery is at-least-once:
// a replayed event finds no pending rows and does nothing.
type Reactor struct {
	engine            *transfer.Service
	consumer          bus.Consumer
	reconcileInterval time.Duration

	// Customers whose block/delete events were seen, kept for the periodic
	// reconciliation sweep against missed or reordered deliveries.
	mutex   sync.Mutex
	touched map[uuid.UUID]time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg Config) (*Reactor, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("transfer engine cannot be nil")
	}
	if cfg.Consumer == nil {
		return nil, fmt.Errorf("bus consumer cannot be nil")
	}
	return &Reactor{
		engine:            cfg.Engine,
		consumer:          cfg.Consumer,
		reconcileInterval: cfg.ReconcileInterval,
		touched:           make(map[uuid.UUID]time.Time),
		stopChan:          make(chan struct{}),
		doneChan:          make(chan struct{}),
	}, nil
}

// Start launches the consume loop and, when configured, the reconciliation
// ticker. It returns immediately; Stop blocks until both wind down.
func (r *Reactor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	go func() {
		<-r.stopChan
		cancel()
	}()

	go func() {
		defer close(r.doneChan)

		if r.reconcileInterval > 0 {
			go r.reconcileLoop(runCtx)
		}

		zap.L().Info("Reactor consuming customer events")
		if err := r.consumer.Consume(runCtx, r.Handle); err != nil && runCtx.Err() == nil {
			zap.L().Error("Reactor consume loop exited", zap.Error(err))
		}
	}()
}

// Stop signals shutdown and waits for the consume loop to drain.
func (r *Reactor) Stop() {
	close(r.stopChan)
	<-r.doneChan
}

// Handle processes one delivery. A returned error marks the message as
// poison: the consumer logs it and acknowledges without requeue, because the
// customer record itself is the source of truth and a reconciliation sweep
// can recover anything a bad payload hid.
func (r *Reactor) Handle(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case models.RoutingKeyCustomerStatusChanged:
		return r.handleStatusChanged(ctx, body)
	case models.RoutingKeyCustomerDeleted:
		return r.handleDeleted(ctx, body)
	case models.RoutingKeyCustomerCreated:
		return r.handleCreated(body)
	default:
		zap.L().Info("Ignoring event with unknown routing key",
			zap.String("routing_key", routingKey))
		return nil
	}
}

func (r *Reactor) handleStatusChanged(ctx context.Context, body []byte) error {
	var event models.CustomerStatusChangedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed customer.status.changed payload: %w", err)
	}

	if event.NewStatus != models.CustomerBlocked {
		zap.L().Debug("Customer status change needs no cascade",
			zap.String("customer_id", event.CustomerID.String()),
			zap.String("new_status", string(event.NewStatus)))
		return nil
	}

	r.markTouched(event.CustomerID)
	reason := fmt.Sprintf("customer %s was blocked", event.CustomerID)
	cancelled, err := r.engine.CascadeCancel(ctx, event.CustomerID, reason)
	if err != nil {
		return fmt.Errorf("cascade for blocked customer %s failed: %w", event.CustomerID, err)
	}
	zap.L().Info("Processed customer block",
		zap.String("customer_id", event.CustomerID.String()),
		zap.Int("cancelled", cancelled))
	return nil
}

func (r *Reactor) handleDeleted(ctx context.Context, body []byte) error {
	var event models.CustomerDeletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed customer.deleted payload: %w", err)
	}

	r.markTouched(event.CustomerID)
	reason := fmt.Sprintf("customer %s was deleted", event.CustomerID)
	cancelled, err := r.engine.CascadeCancel(ctx, event.CustomerID, reason)
	if err != nil {
		return fmt.Errorf("cascade for deleted customer %s failed: %w", event.CustomerID, err)
	}
	zap.L().Info("Processed customer deletion",
		zap.String("customer_id", event.CustomerID.String()),
		zap.Int("cancelled", cancelled))
	return nil
}

func (r *Reactor) handleCreated(body []byte) error {
	var event models.CustomerCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed customer.created payload: %w", err)
	}
	zap.L().Info("Observed customer creation",
		zap.String("customer_id", event.CustomerID.String()))
	return nil
}

// reconcileLoop periodically re-checks recently affected customers against
// their current status, closing the window left by missed deliveries.
func (r *Reactor) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(r.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcileTouched(ctx)
		}
	}
}

func (r *Reactor) reconcileTouched(ctx context.Context) {
	for _, customerID := range r.touchedCustomers() {
		cancelled, err := r.engine.ReconcileCustomer(ctx, customerID)
		if err != nil {
			zap.L().Error("Reconciliation sweep failed for customer",
				zap.String("customer_id", customerID.String()),
				zap.Error(err))
			continue
		}
		if cancelled > 0 {
			zap.L().Warn("Reconciliation sweep found stragglers",
				zap.String("customer_id", customerID.String()),
				zap.Int("cancelled", cancelled))
		}
	}
}

func (r *Reactor) markTouched(customerID uuid.UUID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.touched[customerID] = time.Now()
}

// touchedCustomers snapshots the sweep set, dropping entries past retention.
func (r *Reactor) touchedCustomers() []uuid.UUID {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cutoff := time.Now().Add(-touchedRetention)
	customers := make([]uuid.UUID, 0, len(r.touched))
	for customerID, seen := range r.touched {
		if seen.Before(cutoff) {
			delete(r.touched, customerID)
			continue
		}
		customers = append(customers, customerID)
	}
	return customers
}
