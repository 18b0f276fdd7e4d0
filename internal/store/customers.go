package store

import (
	"context"
	"fmt"

	"stock-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateCustomer inserts a customer
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (id, name, email, phone, location)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return sqlx.GetContext(ctx, s.ext(ctx), c, query, c.ID, c.Name, c.Email, c.Phone, c.Location)
}

// GetCustomer retrieves a customer by ID
func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return s.getCustomer(ctx, "SELECT * FROM customers WHERE id = $1", id)
}

// GetCustomerForUpdate retrieves a customer and locks its row.
// Callers must be inside WithTx.
func (s *Store) GetCustomerForUpdate(ctx context.Context, id string) (*models.Customer, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("GetCustomerForUpdate called outside a transaction")
	}
	return s.getCustomer(ctx, "SELECT * FROM customers WHERE id = $1 FOR UPDATE", id)
}

func (s *Store) getCustomer(ctx context.Context, query, id string) (*models.Customer, error) {
	var c models.Customer
	err := sqlx.GetContext(ctx, s.ext(ctx), &c, query, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomers retrieves all customers
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &customers, "SELECT * FROM customers ORDER BY name, id")
	return customers, err
}

// DeleteCustomer removes a customer together with their reservation history.
// Callers check for Active reservations first.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.ext(ctx).ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	return nil
}
