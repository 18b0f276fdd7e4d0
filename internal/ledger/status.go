package ledger

import "stock-ledger/internal/models"

var validNext = map[models.ReservationStatus]map[models.ReservationStatus]bool{
	models.ReservationStatusActive: {
		models.ReservationStatusDelivered: true,
		models.ReservationStatusCancelled: true,
	},
	// Delivered -> Active is the explicit delivery reversal.
	models.ReservationStatusDelivered: {models.ReservationStatusActive: true},
	models.ReservationStatusCancelled: {},
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from, to models.ReservationStatus) bool {
	return validNext[from][to]
}

func checkTransition(from, to models.ReservationStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
