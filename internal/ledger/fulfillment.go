package ledger

import (
	"fmt"
	"time"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/models"
)

// Deliver marks r delivered and takes its packages out of p's stock, clamping
// the count at zero. Both values are mutated in place; the caller persists
// them together.
func Deliver(p *models.Product, r *models.Reservation, now time.Time) error {
	if err := checkTransition(r.Status, models.ReservationStatusDelivered); err != nil {
		return err
	}
	if r.ProductID != p.ID {
		return ErrProductMismatch
	}
	if err := catalog.Validate(r.PackageLabel); err != nil {
		return err
	}

	remaining := onHand(p, r.PackageLabel) - r.Quantity
	if remaining < 0 {
		remaining = 0
	}
	if err := setCount(p, r.PackageLabel, remaining); err != nil {
		return err
	}

	day := models.TruncateDay(now)
	r.Status = models.ReservationStatusDelivered
	r.DeliveryDate = &day
	return nil
}

// RevertDelivery puts a delivered reservation back to active and returns its
// full quantity to stock. When Deliver had to clamp, this does not restore
// the previous count.
func RevertDelivery(p *models.Product, r *models.Reservation) error {
	if err := checkTransition(r.Status, models.ReservationStatusActive); err != nil {
		return err
	}
	if r.ProductID != p.ID {
		return ErrProductMismatch
	}
	if err := catalog.Validate(r.PackageLabel); err != nil {
		return err
	}

	current := onHand(p, r.PackageLabel)
	if r.Quantity > MaxCount-current {
		return fmt.Errorf("%w: %s stock would exceed %d", ErrInvalidQuantity, r.PackageLabel, MaxCount)
	}
	if err := setCount(p, r.PackageLabel, current+r.Quantity); err != nil {
		return err
	}

	r.Status = models.ReservationStatusActive
	r.DeliveryDate = nil
	return nil
}

// Cancel moves an active reservation to cancelled. Stock is untouched.
func Cancel(r *models.Reservation) error {
	if err := checkTransition(r.Status, models.ReservationStatusCancelled); err != nil {
		return err
	}
	r.Status = models.ReservationStatusCancelled
	return nil
}
