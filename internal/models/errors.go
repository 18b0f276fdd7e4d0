package models

import "errors"

// Persistence errors shared by every store implementation
var (
	ErrProductNotFound     = errors.New("product not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrVersionConflict     = errors.New("version conflict: record was modified concurrently")
)
