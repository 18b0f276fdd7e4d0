package store

import (
	"context"
	"fmt"

	"stock-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateReservation inserts a reservation. The ID is assigned by the caller.
func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		INSERT INTO reservations
			(id, product_id, package_label, quantity, customer_id, reservation_date, notes, status, delivery_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING version, created_at, updated_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), r, query,
		r.ID, r.ProductID, r.PackageLabel, r.Quantity, r.CustomerID,
		r.ReservationDate, r.Notes, r.Status, r.DeliveryDate)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("reservation references a missing product or customer: %w", err)
	}
	return err
}

// GetReservation retrieves a reservation by ID
func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return s.getReservation(ctx, "SELECT * FROM reservations WHERE id = $1", id)
}

// GetReservationForUpdate retrieves a reservation and locks its row.
// Callers must be inside WithTx.
func (s *Store) GetReservationForUpdate(ctx context.Context, id string) (*models.Reservation, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("GetReservationForUpdate called outside a transaction")
	}
	return s.getReservation(ctx, "SELECT * FROM reservations WHERE id = $1 FOR UPDATE", id)
}

func (s *Store) getReservation(ctx context.Context, query, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := sqlx.GetContext(ctx, s.ext(ctx), &r, query, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", models.ErrReservationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReservation writes every mutable field if the stored version still
// matches r.Version. On success r carries the new version.
func (s *Store) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		UPDATE reservations
		SET product_id = $1, package_label = $2, quantity = $3, reservation_date = $4,
			notes = $5, status = $6, delivery_date = $7,
			version = version + 1, updated_at = NOW()
		WHERE id = $8 AND version = $9
		RETURNING version, updated_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), r, query,
		r.ProductID, r.PackageLabel, r.Quantity, r.ReservationDate,
		r.Notes, r.Status, r.DeliveryDate, r.ID, r.Version)
	if isNoRows(err) {
		return s.conflictOr(ctx, "reservations", r.ID, models.ErrReservationNotFound)
	}
	return err
}

// DeleteReservation removes a reservation
func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	res, err := s.ext(ctx).ExecContext(ctx, "DELETE FROM reservations WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", models.ErrReservationNotFound, id)
	}
	return nil
}

// ListReservations retrieves reservations matching every set filter field,
// newest reservation date first
func (s *Store) ListReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	query := "SELECT * FROM reservations WHERE 1 = 1"
	var args []interface{}
	where := func(column string, v interface{}) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}

	if f.ProductID != "" {
		where("product_id", f.ProductID)
	}
	if f.PackageLabel != "" {
		where("package_label", f.PackageLabel)
	}
	if f.CustomerID != "" {
		where("customer_id", f.CustomerID)
	}
	if f.Status != "" {
		where("status", f.Status)
	}
	if f.Date != nil {
		where("reservation_date", models.TruncateDay(*f.Date))
	}
	query += " ORDER BY reservation_date DESC, created_at, id"

	reservations := []models.Reservation{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &reservations, query, args...)
	return reservations, err
}
