package service

import (
	"context"
	"time"

	"stock-ledger/internal/models"
)

// Store is the persistence the ledger services need. Methods called with the
// context passed to a WithTx callback run inside that transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductForUpdate(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProductStock(ctx context.Context, p *models.Product) error

	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, id string) error
	ListReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error)

	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerForUpdate(ctx context.Context, id string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}

// EventPublisher publishes ledger events after commit
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// IdempotencyStore remembers which reservation a client request key produced
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (result string, claimed bool, err error)
	CompleteIdempotencyKey(ctx context.Context, key, result string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Locker provides short-lived mutual exclusion across instances
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}
