package screening

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/parcelwatch/fraud-screening/internal/address"
	"github.com/parcelwatch/fraud-screening/pkg/eventbus"
	"github.com/parcelwatch/fraud-screening/pkg/logger"
)

// EventSubscriber registers queue-group handlers on the event bus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, queue string, handler func(ctx context.Context, event *eventbus.Event) error) error
}

// orderEventQueue is the queue group name, so each order event is processed
// by exactly one screening instance.
const orderEventQueue = "screening"

// SubscribeOrderEvents feeds orders placed elsewhere in the platform into
// duplicate detection as they happen, so the API check is not the only way
// addresses get recorded.
func SubscribeOrderEvents(ctx context.Context, bus EventSubscriber, engine *Engine) error {
	return bus.Subscribe(ctx, eventbus.SubjectOrderCreated, orderEventQueue, func(ctx context.Context, event *eventbus.Event) error {
		var data eventbus.OrderCreatedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			logger.Warn("Dropping malformed order event",
				zap.Error(err),
				zap.String("event_id", event.ID),
			)
			return nil
		}

		req := &OrderCheckRequest{
			OrderID: data.OrderID,
			Street:  data.Address,
			Zip:     data.PostalCode,
		}

		if _, err := engine.CheckOrder(ctx, req); err != nil {
			// Unparseable addresses will not parse on redelivery either.
			if errors.Is(err, address.ErrInvalidFormat) {
				logger.Warn("Dropping order event with unparseable address",
					zap.String("order_id", data.OrderID),
					zap.String("address", data.Address),
				)
				return nil
			}
			return err
		}
		return nil
	})
}
