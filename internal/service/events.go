package service

import (
	"context"
	"time"

	"stock-ledger/internal/models"
	"stock-ledger/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now,
	}
}

func newReservationEvent(eventType string, r *models.Reservation, onHand int, now time.Time) *models.ReservationEvent {
	return &models.ReservationEvent{
		BaseEvent:     newBaseEvent(eventType, now),
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		CustomerID:    r.CustomerID,
		PackageLabel:  r.PackageLabel,
		Quantity:      r.Quantity,
		Status:        r.Status,
		OnHand:        onHand,
	}
}

// publish sends event after the state change has been committed. Failures are
// logged and counted, never returned: the ledger write already happened.
func publish(ctx context.Context, publisher EventPublisher, logger *zap.Logger, event models.Event) {
	if publisher == nil {
		return
	}
	header := event.Header()
	if err := publisher.Publish(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(header.EventType).Inc()
		logger.Error("Failed to publish event",
			zap.String("event_type", header.EventType),
			zap.String("event_id", header.EventID),
			zap.Error(err))
	}
}
