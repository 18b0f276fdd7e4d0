package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/clock"
	"stock-ledger/internal/ledger"
	"stock-ledger/internal/models"
	"stock-ledger/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductService manages products and their stock records
type ProductService struct {
	store     Store
	publisher EventPublisher
	clock     clock.Clock
	logger    *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store Store, publisher EventPublisher, clk clock.Clock) *ProductService {
	return &ProductService{
		store:     store,
		publisher: publisher,
		clock:     clk,
		logger:    util.GetLogger(),
	}
}

// CreateProductRequest represents a request to register a product
type CreateProductRequest struct {
	Name           string                `json:"name" binding:"required"`
	Form           string                `json:"form" binding:"required"`
	StockByPackage models.StockByPackage `json:"stock_by_package"`
	Notes          string                `json:"notes"`
}

// AddStockRequest represents packages received into stock
type AddStockRequest struct {
	PackageLabel string `json:"package_label" binding:"required"`
	Count        int    `json:"count" binding:"required"`
}

// ProductSummary is a product with its derived stock figures
type ProductSummary struct {
	Product            *models.Product `json:"product"`
	TotalKg            decimal.Decimal `json:"total_kg"`
	Packages250gEquiv  int             `json:"packages_250g_equivalent"`
	AvailableByPackage map[string]int  `json:"available_by_package"`
	ReservedByPackage  map[string]int  `json:"reserved_by_package"`
}

// CreateProduct registers a product with its initial stock
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if req.Form != models.FormWholeBean && req.Form != models.FormGround {
		return nil, ErrInvalidForm
	}
	stock := req.StockByPackage.Clone()
	if err := ledger.ValidateStock(stock); err != nil {
		return nil, err
	}

	p := &models.Product{
		ID:             uuid.New().String(),
		Name:           name,
		Form:           req.Form,
		StockByPackage: stock,
		Notes:          req.Notes,
	}
	if err := ledger.RecomputeLegacy(p); err != nil {
		return nil, err
	}

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// GetProduct retrieves a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts retrieves all products
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx)
}

// GetSummary returns the product with total weight, the legacy 250g count and
// per-package availability
func (s *ProductService) GetSummary(ctx context.Context, id string) (*ProductSummary, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetSummary")
	defer span.End()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := s.store.ListReservations(ctx, models.ReservationFilter{
		ProductID: id,
		Status:    models.ReservationStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	total, err := ledger.TotalKg(p)
	if err != nil {
		return nil, err
	}
	legacy, err := ledger.TotalPackages250gEquivalent(p)
	if err != nil {
		return nil, err
	}

	reserved := make(map[string]int, len(catalog.Labels()))
	for _, label := range catalog.Labels() {
		reserved[label] = ledger.ReservedQuantity(id, label, active, "")
	}

	return &ProductSummary{
		Product:            p,
		TotalKg:            total,
		Packages250gEquiv:  legacy,
		AvailableByPackage: ledger.AvailabilityByLabel(p, active),
		ReservedByPackage:  reserved,
	}, nil
}

// AddStock records packages received for a product
func (s *ProductService) AddStock(ctx context.Context, productID string, req *AddStockRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.AddStock")
	defer span.End()

	now := s.clock.Now()
	start := time.Now()

	var product *models.Product
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := ledger.AddStock(p, req.PackageLabel, req.Count, now); err != nil {
			return err
		}
		if err := s.store.UpdateProductStock(ctx, p); err != nil {
			return err
		}
		product = p
		return nil
	})
	util.LedgerTxLatency.WithLabelValues("add_stock").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	util.StockAddedPackagesTotal.WithLabelValues(req.PackageLabel).Add(float64(req.Count))
	s.logger.Info("Stock added",
		zap.String("product_id", productID),
		zap.String("package_label", req.PackageLabel),
		zap.Int("count", req.Count))

	publish(ctx, s.publisher, s.logger, &models.StockAddedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeStockAdded, now),
		ProductID:    productID,
		PackageLabel: req.PackageLabel,
		Count:        req.Count,
		OnHand:       product.StockByPackage[req.PackageLabel],
	})
	return product, nil
}
