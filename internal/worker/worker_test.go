package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"stock-ledger/internal/broker"
	"stock-ledger/internal/models"
	"stock-ledger/internal/notify"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockLookup) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyReservation(ctx context.Context, c *models.Customer, productName string, e *models.ReservationEvent) (bool, error) {
	args := m.Called(ctx, c, productName, e)
	return args.Bool(0), args.Error(1)
}

type stubSource struct {
	messages []kafka.Message
	errs     []error
}

func (s *stubSource) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, msg := range s.messages {
		s.errs = append(s.errs, handler(ctx, msg))
	}
	return nil
}

func (s *stubSource) Close() error { return nil }

func reservationEvent(eventType string) *models.ReservationEvent {
	return &models.ReservationEvent{
		BaseEvent:     models.BaseEvent{EventID: "e1", EventType: eventType},
		ReservationID: "r1",
		ProductID:     "p1",
		CustomerID:    "c1",
		PackageLabel:  "250g",
		Quantity:      2,
	}
}

func TestNotifiesOnDelivery(t *testing.T) {
	lookup := &mockLookup{}
	notifier := &mockNotifier{}
	customer := &models.Customer{ID: "c1", Name: "Maria", Email: "maria@example.com"}
	lookup.On("GetCustomer", mock.Anything, "c1").Return(customer, nil)
	lookup.On("GetProduct", mock.Anything, "p1").Return(&models.Product{ID: "p1", Name: "Amendoado"}, nil)
	notifier.On("NotifyReservation", mock.Anything, customer, "Amendoado", mock.Anything).Return(true, nil)

	w := NewNotificationWorker(&stubSource{}, lookup, notifier)
	require.NoError(t, w.HandleReservationEvent(context.Background(), reservationEvent(models.EventTypeReservationDelivered)))

	lookup.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestIgnoresOtherReservationEvents(t *testing.T) {
	lookup := &mockLookup{}
	notifier := &mockNotifier{}

	w := NewNotificationWorker(&stubSource{}, lookup, notifier)
	require.NoError(t, w.HandleReservationEvent(context.Background(), reservationEvent(models.EventTypeReservationCancelled)))

	lookup.AssertNotCalled(t, "GetCustomer", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "NotifyReservation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSkipsDeletedCustomerAndMissingEmail(t *testing.T) {
	lookup := &mockLookup{}
	notifier := &mockNotifier{}
	w := NewNotificationWorker(&stubSource{}, lookup, notifier)
	ctx := context.Background()

	lookup.On("GetCustomer", mock.Anything, "c1").Return(nil, models.ErrCustomerNotFound).Once()
	assert.NoError(t, w.HandleReservationEvent(ctx, reservationEvent(models.EventTypeReservationCreated)))

	customer := &models.Customer{ID: "c1", Name: "Sem email"}
	lookup.On("GetCustomer", mock.Anything, "c1").Return(customer, nil)
	lookup.On("GetProduct", mock.Anything, "p1").Return(nil, models.ErrProductNotFound)
	notifier.On("NotifyReservation", mock.Anything, customer, "p1", mock.Anything).Return(false, notify.ErrNoEmail)
	assert.NoError(t, w.HandleReservationEvent(ctx, reservationEvent(models.EventTypeReservationCreated)))
}

func TestReturnsMailerFailure(t *testing.T) {
	lookup := &mockLookup{}
	notifier := &mockNotifier{}
	customer := &models.Customer{ID: "c1", Email: "maria@example.com"}
	lookup.On("GetCustomer", mock.Anything, "c1").Return(customer, nil)
	lookup.On("GetProduct", mock.Anything, "p1").Return(&models.Product{Name: "Amendoado"}, nil)
	boom := errors.New("sendgrid down")
	notifier.On("NotifyReservation", mock.Anything, customer, "Amendoado", mock.Anything).Return(false, boom)

	w := NewNotificationWorker(&stubSource{}, lookup, notifier)
	err := w.HandleReservationEvent(context.Background(), reservationEvent(models.EventTypeReservationCreated))
	assert.ErrorIs(t, err, boom)
}

func TestStartRoutesMessages(t *testing.T) {
	lookup := &mockLookup{}
	notifier := &mockNotifier{}
	customer := &models.Customer{ID: "c1", Email: "maria@example.com"}
	lookup.On("GetCustomer", mock.Anything, "c1").Return(customer, nil)
	lookup.On("GetProduct", mock.Anything, "p1").Return(&models.Product{Name: "Amendoado"}, nil)
	notifier.On("NotifyReservation", mock.Anything, customer, "Amendoado", mock.Anything).Return(true, nil).Once()

	created, err := json.Marshal(reservationEvent(models.EventTypeReservationCreated))
	require.NoError(t, err)
	stock, err := json.Marshal(&models.StockAddedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeStockAdded},
		ProductID: "p1",
		Count:     3,
	})
	require.NoError(t, err)

	source := &stubSource{messages: []kafka.Message{{Value: created}, {Value: stock}}}
	w := NewNotificationWorker(source, lookup, notifier)
	require.NoError(t, w.Start(context.Background()))

	assert.Equal(t, []error{nil, nil}, source.errs)
	notifier.AssertExpectations(t)
	assert.NoError(t, w.Stop())
}
