package service

import (
	"context"
	"time"

	"stock-ledger/internal/ledger"
	"stock-ledger/internal/models"
	"stock-ledger/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Deliver marks an Active reservation delivered and takes its packages out of
// stock. The reservation and product rows are written in one transaction.
func (s *ReservationService) Deliver(ctx context.Context, id string, confirm bool) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Deliver")
	defer span.End()

	if !confirm {
		return nil, ledger.ErrConfirmationRequired
	}

	now := s.clock.Now()
	r, onHand, err := s.transition(ctx, "deliver", id, func(p *models.Product, r *models.Reservation) error {
		return ledger.Deliver(p, r, now)
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	util.ReservationTransitionsTotal.WithLabelValues(string(models.ReservationStatusDelivered)).Inc()
	util.PackagesDeliveredTotal.WithLabelValues(r.PackageLabel).Add(float64(r.Quantity))
	s.logger.Info("Reservation delivered",
		zap.String("reservation_id", r.ID),
		zap.String("product_id", r.ProductID),
		zap.String("package_label", r.PackageLabel),
		zap.Int("quantity", r.Quantity),
		zap.Int("on_hand", onHand))

	publish(ctx, s.publisher, s.logger, newReservationEvent(models.EventTypeReservationDelivered, r, onHand, now))
	return r, nil
}

// RevertDelivery puts a Delivered reservation back to Active and returns its
// quantity to stock
func (s *ReservationService) RevertDelivery(ctx context.Context, id string, confirm bool) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.RevertDelivery")
	defer span.End()

	if !confirm {
		return nil, ledger.ErrConfirmationRequired
	}

	r, onHand, err := s.transition(ctx, "revert_delivery", id, ledger.RevertDelivery)
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	util.ReservationTransitionsTotal.WithLabelValues(string(models.ReservationStatusActive)).Inc()
	s.logger.Info("Reservation delivery reverted",
		zap.String("reservation_id", r.ID),
		zap.Int("on_hand", onHand))

	publish(ctx, s.publisher, s.logger, newReservationEvent(models.EventTypeReservationDeliveryReverted, r, onHand, s.clock.Now()))
	return r, nil
}

// transition locks the reservation and its product, applies fn to both and
// persists both. It returns the committed reservation and the product's new
// on-hand count for the reservation's package.
func (s *ReservationService) transition(
	ctx context.Context,
	operation, id string,
	fn func(p *models.Product, r *models.Reservation) error,
) (*models.Reservation, int, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.transition",
		attribute.String("operation", operation),
		attribute.String("reservation.id", id))
	defer span.End()

	var result *models.Reservation
	var onHand int
	start := time.Now()
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.store.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p, err := s.store.GetProductForUpdate(ctx, r.ProductID)
		if err != nil {
			return err
		}
		if err := fn(p, r); err != nil {
			return err
		}
		if err := s.store.UpdateProductStock(ctx, p); err != nil {
			return err
		}
		if err := s.store.UpdateReservation(ctx, r); err != nil {
			return err
		}
		result = r
		onHand = p.StockByPackage[r.PackageLabel]
		return nil
	})
	util.LedgerTxLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return result, onHand, util.RecordError(span, err)
}
