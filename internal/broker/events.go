package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"stock-ledger/internal/models"
	"stock-ledger/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of Producer the publisher needs
type MessageWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing ledger events
type EventPublisher struct {
	producer MessageWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer MessageWriter) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish writes event keyed by its partition key
func (ep *EventPublisher) Publish(ctx context.Context, event models.Event) error {
	return ep.producer.PublishEvent(ctx, event.PartitionKey(), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onReservation func(context.Context, *models.ReservationEvent) error
	onStockAdded  func(context.Context, *models.StockAddedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnReservation registers a handler for every reservation event type
func (eh *EventHandler) OnReservation(handler func(context.Context, *models.ReservationEvent) error) {
	eh.onReservation = handler
}

// OnStockAdded registers a handler for StockAdded events
func (eh *EventHandler) OnStockAdded(handler func(context.Context, *models.StockAddedEvent) error) {
	eh.onStockAdded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	util.GetLogger().Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeReservationCreated,
		models.EventTypeReservationUpdated,
		models.EventTypeReservationCancelled,
		models.EventTypeReservationDeleted,
		models.EventTypeReservationDelivered,
		models.EventTypeReservationDeliveryReverted:
		if eh.onReservation != nil {
			var event models.ReservationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onReservation(ctx, &event)
		}

	case models.EventTypeStockAdded:
		if eh.onStockAdded != nil {
			var event models.StockAddedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockAdded event: %w", err)
			}
			return eh.onStockAdded(ctx, &event)
		}

	default:
		util.GetLogger().Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
