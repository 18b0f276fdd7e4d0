package ledger

import (
	"stock-ledger/internal/catalog"
	"stock-ledger/internal/models"
)

// ReservedQuantity sums the Active reservations on the exact
// (productID, label) pair, skipping excludingID when it is set.
func ReservedQuantity(productID, label string, reservations []models.Reservation, excludingID string) int {
	reserved := 0
	for i := range reservations {
		r := &reservations[i]
		if r.ProductID != productID || r.PackageLabel != label {
			continue
		}
		if r.Status != models.ReservationStatusActive {
			continue
		}
		if excludingID != "" && r.ID == excludingID {
			continue
		}
		reserved += r.Quantity
	}
	return reserved
}

// Available returns how many packages of label can still be reserved on p.
// Availability is never pooled across package sizes.
func Available(p *models.Product, label string, reservations []models.Reservation, excludingID string) int {
	avail := onHand(p, label) - ReservedQuantity(p.ID, label, reservations, excludingID)
	if avail < 0 {
		return 0
	}
	return avail
}

// AvailabilityByLabel returns Available for every catalog label.
func AvailabilityByLabel(p *models.Product, reservations []models.Reservation) map[string]int {
	out := make(map[string]int, len(catalog.Labels()))
	for _, label := range catalog.Labels() {
		out[label] = Available(p, label, reservations, "")
	}
	return out
}

// CheckAvailability rejects a request for more packages than available.
func CheckAvailability(productID, label string, requested, available int) error {
	if err := ValidateQuantity(requested); err != nil {
		return err
	}
	if requested > available {
		return &InsufficientStockError{
			ProductID:    productID,
			PackageLabel: label,
			Requested:    requested,
			Available:    available,
		}
	}
	return nil
}

// Clamp lowers requested to available. Callers opt into it explicitly.
func Clamp(requested, available int) int {
	if requested > available {
		return available
	}
	return requested
}
