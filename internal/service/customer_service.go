package service

import (
	"context"
	"fmt"
	"strings"

	"stock-ledger/internal/models"
	"stock-ledger/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerService manages customers
type CustomerService struct {
	store  Store
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store Store) *CustomerService {
	return &CustomerService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateCustomerRequest represents a request to register a customer
type CreateCustomerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// Create registers a customer
func (s *CustomerService) Create(ctx context.Context, req *CreateCustomerRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Create")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	c := &models.Customer{
		ID:       uuid.New().String(),
		Name:     name,
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Location: strings.TrimSpace(req.Location),
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("Customer created", zap.String("customer_id", c.ID))
	return c, nil
}

// Get retrieves a customer by ID
func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

// List retrieves all customers
func (s *CustomerService) List(ctx context.Context) ([]models.Customer, error) {
	return s.store.ListCustomers(ctx)
}

// Delete removes a customer who has no Active reservations
func (s *CustomerService) Delete(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "CustomerService.Delete")
	defer span.End()

	// The row lock conflicts with the key-share lock a concurrent reservation
	// insert takes on the customer, so no Active reservation can slip in
	// between the check and the delete.
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetCustomerForUpdate(ctx, id); err != nil {
			return err
		}
		active, err := s.store.ListReservations(ctx, models.ReservationFilter{
			CustomerID: id,
			Status:     models.ReservationStatusActive,
		})
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return fmt.Errorf("%w: %d", ErrCustomerHasActiveReservations, len(active))
		}
		return s.store.DeleteCustomer(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Customer deleted", zap.String("customer_id", id))
	return nil
}
