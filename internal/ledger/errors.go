package ledger

import (
	"errors"
	"fmt"
	"strings"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/models"
)

var (
	ErrUnknownPackageLabel    = catalog.ErrUnknownPackageLabel
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrConfirmationRequired   = errors.New("confirmation required")
	ErrProductMismatch        = errors.New("reservation does not belong to product")
	ErrNegativeStock          = errors.New("stock counts must not be negative")
	ErrUnknownGroupMember     = errors.New("reservation is not a member of the group")
	ErrDuplicateGroupMember   = errors.New("reservation listed more than once")
	ErrReservationNotEditable = errors.New("only active reservations can be edited")
)

// InsufficientStockError is returned when a reservation asks for more
// packages than are available for its (product, package) pair.
type InsufficientStockError struct {
	ProductID    string
	PackageLabel string
	Requested    int
	Available    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (%s): requested=%d, available=%d",
		e.ProductID, e.PackageLabel, e.Requested, e.Available)
}

// InvalidTransitionError is returned for a status change the lifecycle does
// not allow.
type InvalidTransitionError struct {
	From models.ReservationStatus
	To   models.ReservationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid reservation transition: %s -> %s", e.From, e.To)
}

// PartialGroupUpdateError reports a group edit that failed after some of its
// member operations had already been committed.
type PartialGroupUpdateError struct {
	// Committed lists member ids whose change is still in effect.
	Committed []string
	// Failed lists the member ids whose operation failed.
	Failed []string
	// RolledBack lists member ids whose change was compensated.
	RolledBack []string
	Err        error
}

func (e *PartialGroupUpdateError) Error() string {
	return fmt.Sprintf("group update partially applied: committed=[%s] failed=[%s] rolled_back=[%s]: %v",
		strings.Join(e.Committed, ","), strings.Join(e.Failed, ","), strings.Join(e.RolledBack, ","), e.Err)
}

func (e *PartialGroupUpdateError) Unwrap() error {
	return e.Err
}
