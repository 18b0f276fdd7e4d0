package worker

import (
	"context"
	"errors"
	"fmt"

	"stock-ledger/internal/broker"
	"stock-ledger/internal/models"
	"stock-ledger/internal/notify"
	"stock-ledger/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Lookup resolves the customer and product an event refers to
type Lookup interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// ReservationNotifier sends the customer-facing message for an event
type ReservationNotifier interface {
	NotifyReservation(ctx context.Context, c *models.Customer, productName string, e *models.ReservationEvent) (bool, error)
}

// MessageSource is the consumer side of the broker
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// NotificationWorker emails customers about their reservations
type NotificationWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	lookup       Lookup
	notifier     ReservationNotifier
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer MessageSource, lookup Lookup, notifier ReservationNotifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		lookup:   lookup,
		notifier: notifier,
		logger:   util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnReservation(w.HandleReservationEvent)
	w.eventHandler.OnStockAdded(w.HandleStockAdded)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// HandleMessage routes a raw broker message
func (w *NotificationWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// HandleReservationEvent notifies the customer of created and delivered
// reservations. Customers or products deleted since the event are skipped.
func (w *NotificationWorker) HandleReservationEvent(ctx context.Context, e *models.ReservationEvent) error {
	ctx, span := util.StartSpan(ctx, "NotificationWorker.HandleReservationEvent")
	defer span.End()

	if e.EventType != models.EventTypeReservationCreated && e.EventType != models.EventTypeReservationDelivered {
		return nil
	}

	customer, err := w.lookup.GetCustomer(ctx, e.CustomerID)
	if errors.Is(err, models.ErrCustomerNotFound) {
		w.logger.Info("Skipping notification for deleted customer", zap.String("customer_id", e.CustomerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}

	productName := e.ProductID
	product, err := w.lookup.GetProduct(ctx, e.ProductID)
	switch {
	case err == nil:
		productName = product.Name
	case !errors.Is(err, models.ErrProductNotFound):
		return fmt.Errorf("failed to load product: %w", err)
	}

	sent, err := w.notifier.NotifyReservation(ctx, customer, productName, e)
	if errors.Is(err, notify.ErrNoEmail) {
		util.NotificationsSentTotal.WithLabelValues("no_email").Inc()
		return nil
	}
	if err != nil {
		util.NotificationsSentTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to notify customer %s: %w", customer.ID, err)
	}
	if sent {
		util.NotificationsSentTotal.WithLabelValues("sent").Inc()
		w.logger.Info("Customer notified",
			zap.String("customer_id", customer.ID),
			zap.String("reservation_id", e.ReservationID),
			zap.String("event_type", e.EventType))
	}
	return nil
}

// HandleStockAdded logs restocks; there is no customer to notify
func (w *NotificationWorker) HandleStockAdded(ctx context.Context, e *models.StockAddedEvent) error {
	w.logger.Info("Stock added",
		zap.String("product_id", e.ProductID),
		zap.String("package_label", e.PackageLabel),
		zap.Int("count", e.Count),
		zap.Int("on_hand", e.OnHand))
	return nil
}
