package store

import (
	"context"
	"fmt"

	"stock-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateProduct inserts a product with its initial stock record
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, form, stock_by_package, legacy_quantity_250g, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version, created_at, updated_at`

	return sqlx.GetContext(ctx, s.ext(ctx), p, query,
		p.ID, p.Name, p.Form, p.StockByPackage, p.LegacyQuantity250g, p.Notes)
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.getProduct(ctx, "SELECT * FROM products WHERE id = $1", id)
}

// GetProductForUpdate retrieves a product and locks its row until the
// surrounding transaction ends. Callers must be inside WithTx.
func (s *Store) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("GetProductForUpdate called outside a transaction")
	}
	return s.getProduct(ctx, "SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
}

func (s *Store) getProduct(ctx context.Context, query, id string) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.ext(ctx), &product, query, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &products, "SELECT * FROM products ORDER BY name, id")
	return products, err
}

// UpdateProductStock writes the stock record, legacy count and notes if the
// stored version still matches p.Version. On success p carries the new version.
func (s *Store) UpdateProductStock(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET stock_by_package = $1, legacy_quantity_250g = $2, notes = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
		RETURNING version, updated_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), p, query,
		p.StockByPackage, p.LegacyQuantity250g, p.Notes, p.ID, p.Version)
	if isNoRows(err) {
		return s.conflictOr(ctx, "products", p.ID, models.ErrProductNotFound)
	}
	return err
}

// conflictOr distinguishes a lost version race from a missing row
func (s *Store) conflictOr(ctx context.Context, table, id string, notFound error) error {
	var exists bool
	err := sqlx.GetContext(ctx, s.ext(ctx), &exists,
		"SELECT EXISTS(SELECT 1 FROM "+table+" WHERE id = $1)", id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return models.ErrVersionConflict
}
