package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/parcelwatch/fraud-screening/pkg/logger"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
)

// Subjects published by the screening service.
const (
	SubjectReturnEvaluated = "screening.return.evaluated"
	SubjectOrderEvaluated  = "screening.order.evaluated"
	SubjectOrderCreated    = "orders.created"
)

// Event is the wire envelope for every message on the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ReturnEvaluatedData is emitted after a return shipment has been
// scored.
type ReturnEvaluatedData struct {
	TrackingNumber  string    `json:"tracking_number"`
	Carrier         string    `json:"carrier"`
	IsFraud         bool      `json:"is_fraud"`
	DistanceFlagged bool      `json:"distance_flagged"`
	WeightFlagged   bool      `json:"weight_flagged"`
	DistanceMiles   float64   `json:"distance_miles"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}

// OrderEvaluatedData is emitted after an order has been checked for
// duplicate-address abuse.
type OrderEvaluatedData struct {
	OrderID          string    `json:"order_id"`
	PostalCode       string    `json:"postal_code"`
	IsFraud          bool      `json:"is_fraud"`
	MatchedEntries   int       `json:"matched_entries"`
	NormalizedStreet string    `json:"normalized_street"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// OrderCreatedData is consumed from the order service so new orders are
// registered for duplicate detection as they are placed.
type OrderCreatedData struct {
	OrderID    string    `json:"order_id"`
	Address    string    `json:"address"`
	PostalCode string    `json:"postal_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// Bus is a thin NATS wrapper carrying typed events between services.
type Bus struct {
	conn   *nats.Conn
	source string
	retry  resilience.RetryConfig
}

// NewBus connects to NATS. The source name is stamped on every
// published event.
func NewBus(url, source string) (*Bus, error) {
	conn, err := nats.Connect(url,
		nats.Name(source),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("event bus disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("event bus reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	return &Bus{
		conn:   conn,
		source: source,
		retry:  resilience.DefaultRetryConfig(),
	}, nil
}

// Publish wraps the payload in an Event envelope and sends it, retrying
// transient failures.
func (b *Bus) Publish(ctx context.Context, subject, eventType string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    b.source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = resilience.Retry(ctx, b.retry, func(ctx context.Context) (interface{}, error) {
		return nil, b.conn.Publish(subject, payload)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers events on the subject to the handler. Subscribers
// sharing a queue name split the work; a handler error leaves the
// message unacknowledged for core NATS, so it is logged and dropped.
func (b *Bus) Subscribe(ctx context.Context, subject, queue string, handler func(ctx context.Context, event *Event) error) error {
	_, err := b.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("event bus: malformed event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}

		if err := handler(ctx, &event); err != nil {
			logger.Error("event bus: handler failed",
				zap.String("subject", msg.Subject),
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return nil
}

// Drain flushes pending messages and closes the connection.
func (b *Bus) Drain() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}

// Close closes the connection immediately.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
