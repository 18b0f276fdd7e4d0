package models

import "time"

// Event types
const (
	EventTypeReservationCreated          = "RESERVATION_CREATED"
	EventTypeReservationUpdated          = "RESERVATION_UPDATED"
	EventTypeReservationCancelled        = "RESERVATION_CANCELLED"
	EventTypeReservationDeleted          = "RESERVATION_DELETED"
	EventTypeReservationDelivered        = "RESERVATION_DELIVERED"
	EventTypeReservationDeliveryReverted = "RESERVATION_DELIVERY_REVERTED"
	EventTypeStockAdded                  = "STOCK_ADDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Header returns the base fields, so any event can be routed by type.
func (e BaseEvent) Header() BaseEvent { return e }

// Event is implemented by every ledger event
type Event interface {
	Header() BaseEvent
	PartitionKey() string
}

// ReservationEvent is published on every reservation lifecycle change
type ReservationEvent struct {
	BaseEvent
	ReservationID string            `json:"reservation_id"`
	ProductID     string            `json:"product_id"`
	CustomerID    string            `json:"customer_id"`
	PackageLabel  string            `json:"package_label"`
	Quantity      int               `json:"quantity"`
	Status        ReservationStatus `json:"status"`
	// OnHand is the product's stock for PackageLabel after the change.
	OnHand int `json:"on_hand"`
}

// PartitionKey keeps every event of one product on the same partition
func (e *ReservationEvent) PartitionKey() string { return "product-" + e.ProductID }

// StockAddedEvent is published when packages are added to a product
type StockAddedEvent struct {
	BaseEvent
	ProductID    string `json:"product_id"`
	PackageLabel string `json:"package_label"`
	Count        int    `json:"count"`
	OnHand       int    `json:"on_hand"`
}

// PartitionKey keeps every event of one product on the same partition
func (e *StockAddedEvent) PartitionKey() string { return "product-" + e.ProductID }
