package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"stock-ledger/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	keys   []string
	events []interface{}
}

func (w *recordingWriter) PublishEvent(ctx context.Context, key string, event interface{}) error {
	w.keys = append(w.keys, key)
	w.events = append(w.events, event)
	return nil
}

func TestPublishUsesProductPartitionKey(t *testing.T) {
	w := &recordingWriter{}
	pub := NewEventPublisher(w)

	ev := &models.StockAddedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeStockAdded, Timestamp: time.Now()},
		ProductID: "amendoado",
	}
	require.NoError(t, pub.Publish(context.Background(), ev))

	assert.Equal(t, []string{"product-amendoado"}, w.keys)
	assert.Same(t, ev, w.events[0])
}

func TestHandleMessageRoutesByType(t *testing.T) {
	eh := NewEventHandler()

	var gotReservation *models.ReservationEvent
	var gotStock *models.StockAddedEvent
	eh.OnReservation(func(ctx context.Context, e *models.ReservationEvent) error {
		gotReservation = e
		return nil
	})
	eh.OnStockAdded(func(ctx context.Context, e *models.StockAddedEvent) error {
		gotStock = e
		return nil
	})

	delivered, err := json.Marshal(&models.ReservationEvent{
		BaseEvent:     models.BaseEvent{EventID: "e1", EventType: models.EventTypeReservationDelivered},
		ReservationID: "r1",
		Quantity:      20,
		Status:        models.ReservationStatusDelivered,
	})
	require.NoError(t, err)
	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: delivered}))

	require.NotNil(t, gotReservation)
	assert.Equal(t, "r1", gotReservation.ReservationID)
	assert.Equal(t, 20, gotReservation.Quantity)
	assert.Nil(t, gotStock)

	added, err := json.Marshal(&models.StockAddedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeStockAdded},
		Count:     8,
	})
	require.NoError(t, err)
	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: added}))
	require.NotNil(t, gotStock)
	assert.Equal(t, 8, gotStock.Count)
}

func TestHandleMessageIgnoresUnknownAndRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()

	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"ORDER_PAID"}`)}))
	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)}))
}
