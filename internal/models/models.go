package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product forms
const (
	FormWholeBean = "whole_bean"
	FormGround    = "ground"
)

// StockByPackage maps a package label to the number of packages on hand.
// It is stored as a JSONB column.
type StockByPackage map[string]int

// Value implements driver.Valuer
func (s StockByPackage) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *StockByPackage) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = StockByPackage{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StockByPackage", src)
	}

	m := StockByPackage{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("decode stock_by_package: %w", err)
	}
	*s = m
	return nil
}

// Clone returns an independent copy of the map.
func (s StockByPackage) Clone() StockByPackage {
	out := make(StockByPackage, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Product represents a coffee product ("café") and its stock record
type Product struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Form           string         `db:"form" json:"form"`
	StockByPackage StockByPackage `db:"stock_by_package" json:"stock_by_package"`
	// LegacyQuantity250g is the redundant 250g-equivalent package count kept
	// for older consumers. Recomputed on every stock change.
	LegacyQuantity250g int       `db:"legacy_quantity_250g" json:"legacy_quantity_250g"`
	Notes              string    `db:"notes" json:"notes"`
	Version            int64     `db:"version" json:"version"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

// Reservation statuses
const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusDelivered ReservationStatus = "delivered"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusActive, ReservationStatusDelivered, ReservationStatusCancelled:
		return true
	}
	return false
}

// Reservation is a customer's claim on packages of one product and size
type Reservation struct {
	ID              string            `db:"id" json:"id"`
	ProductID       string            `db:"product_id" json:"product_id"`
	PackageLabel    string            `db:"package_label" json:"package_label"`
	Quantity        int               `db:"quantity" json:"quantity"`
	CustomerID      string            `db:"customer_id" json:"customer_id"`
	ReservationDate time.Time         `db:"reservation_date" json:"reservation_date"`
	Notes           string            `db:"notes" json:"notes"`
	Status          ReservationStatus `db:"status" json:"status"`
	DeliveryDate    *time.Time        `db:"delivery_date" json:"delivery_date,omitempty"`
	Version         int64             `db:"version" json:"version"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// Customer represents a café customer
type Customer struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReservationFilter selects reservations by field equality. Zero values are
// ignored.
type ReservationFilter struct {
	ProductID    string
	PackageLabel string
	CustomerID   string
	Status       ReservationStatus
	Date         *time.Time
}

// Matches reports whether r satisfies every set field of f.
func (f ReservationFilter) Matches(r *Reservation) bool {
	if f.ProductID != "" && r.ProductID != f.ProductID {
		return false
	}
	if f.PackageLabel != "" && r.PackageLabel != f.PackageLabel {
		return false
	}
	if f.CustomerID != "" && r.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Date != nil && !SameDay(*f.Date, r.ReservationDate) {
		return false
	}
	return true
}

// DateLayout is the wire format of reservation dates.
const DateLayout = "2006-01-02"

// TruncateDay drops the clock part of t, keeping its calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return TruncateDay(a).Equal(TruncateDay(b))
}
