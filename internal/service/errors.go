package service

import (
	"errors"

	"stock-ledger/internal/ledger"
	"stock-ledger/internal/models"
)

var (
	ErrNameRequired                  = errors.New("name is required")
	ErrInvalidForm                   = errors.New("form must be whole_bean or ground")
	ErrInvalidDate                   = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidStatus                 = errors.New("unknown reservation status")
	ErrRequestInProgress             = errors.New("a request with this idempotency key is still in progress")
	ErrGroupBusy                     = errors.New("reservation group is being edited by another request")
	ErrCustomerHasActiveReservations = errors.New("customer has active reservations")
)

// rejectReason labels a failed write for metrics
func rejectReason(err error) string {
	var insufficient *ledger.InsufficientStockError
	var transition *ledger.InvalidTransitionError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	case errors.As(err, &transition):
		return "invalid_transition"
	case errors.Is(err, ledger.ErrUnknownPackageLabel):
		return "unknown_package"
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ledger.ErrReservationNotEditable):
		return "not_editable"
	case errors.Is(err, models.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrReservationNotFound),
		errors.Is(err, models.ErrCustomerNotFound):
		return "not_found"
	}
	return "other"
}
