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
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReservationService handles the reservation ledger: creation against
// availability, edits, cancellation and the delivery transition
type ReservationService struct {
	store          Store
	idempotency    IdempotencyStore
	publisher      EventPublisher
	clock          clock.Clock
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewReservationService creates a new reservation service. idempotency may
// be nil, in which case Idempotency-Key headers are ignored.
func NewReservationService(
	store Store,
	idempotency IdempotencyStore,
	publisher EventPublisher,
	clk clock.Clock,
	idempotencyTTL time.Duration,
) *ReservationService {
	return &ReservationService{
		store:          store,
		idempotency:    idempotency,
		publisher:      publisher,
		clock:          clk,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// CreateReservationRequest represents a request to reserve packages
type CreateReservationRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	PackageLabel string `json:"package_label" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required"`
	CustomerID   string `json:"customer_id" binding:"required"`
	// ReservationDate is YYYY-MM-DD; today when empty.
	ReservationDate string `json:"reservation_date,omitempty"`
	Notes           string `json:"notes"`

	// ClampToAvailable reserves what is available instead of rejecting.
	ClampToAvailable bool   `json:"-"`
	IdempotencyKey   string `json:"-"`
}

// CreateReservationResponse reports the stored reservation and whether the
// quantity was reduced
type CreateReservationResponse struct {
	Reservation *models.Reservation `json:"reservation"`
	Requested   int                 `json:"requested"`
	Clamped     bool                `json:"clamped"`
	Replayed    bool                `json:"replayed"`
}

// UpdateReservationRequest carries the fields to change. Version must be the
// version the caller read.
type UpdateReservationRequest struct {
	Version         int64   `json:"version" binding:"required"`
	ProductID       *string `json:"product_id,omitempty"`
	PackageLabel    *string `json:"package_label,omitempty"`
	Quantity        *int    `json:"quantity,omitempty"`
	ReservationDate *string `json:"reservation_date,omitempty"`
	Notes           *string `json:"notes,omitempty"`

	ClampToAvailable bool `json:"-"`
}

// Create reserves packages of one (product, package) pair for a customer.
// The product row is locked for the duration of the check and insert.
func (s *ReservationService) Create(ctx context.Context, req *CreateReservationRequest) (*CreateReservationResponse, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Create",
		attribute.String("product.id", req.ProductID),
		attribute.String("package.label", req.PackageLabel))
	defer span.End()

	if err := catalog.Validate(req.PackageLabel); err != nil {
		s.rejected(err)
		return nil, err
	}
	if err := ledger.ValidateQuantity(req.Quantity); err != nil {
		s.rejected(err)
		return nil, err
	}
	now := s.clock.Now()
	date, err := parseDate(req.ReservationDate, now)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		existingID, claimed, err := s.idempotency.ClaimIdempotencyKey(ctx, req.IdempotencyKey, s.idempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if !claimed {
			return s.replay(ctx, req.IdempotencyKey, existingID)
		}
	}

	r := &models.Reservation{
		ID:              uuid.New().String(),
		ProductID:       req.ProductID,
		PackageLabel:    req.PackageLabel,
		CustomerID:      req.CustomerID,
		ReservationDate: date,
		Notes:           req.Notes,
		Status:          models.ReservationStatusActive,
	}

	var clamped bool
	var onHand int
	start := time.Now()
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetCustomer(ctx, req.CustomerID); err != nil {
			return err
		}
		p, err := s.store.GetProductForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}
		avail, err := s.available(ctx, p, req.PackageLabel, "")
		if err != nil {
			return err
		}

		qty := req.Quantity
		if req.ClampToAvailable && avail > 0 && qty > avail {
			qty = ledger.Clamp(qty, avail)
			clamped = true
		}
		if err := ledger.CheckAvailability(p.ID, req.PackageLabel, qty, avail); err != nil {
			return err
		}

		r.Quantity = qty
		onHand = p.StockByPackage[req.PackageLabel]
		return s.store.CreateReservation(ctx, r)
	})
	util.LedgerTxLatency.WithLabelValues("create_reservation").Observe(time.Since(start).Seconds())
	if err := util.RecordError(span, err); err != nil {
		s.releaseKey(ctx, req.IdempotencyKey)
		s.rejected(err)
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CompleteIdempotencyKey(ctx, req.IdempotencyKey, r.ID, s.idempotencyTTL); err != nil {
			s.logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}

	util.ReservationsCreatedTotal.Inc()
	if clamped {
		util.ReservationsClampedTotal.Inc()
	}
	s.logger.Info("Reservation created",
		zap.String("reservation_id", r.ID),
		zap.String("product_id", r.ProductID),
		zap.String("package_label", r.PackageLabel),
		zap.Int("quantity", r.Quantity),
		zap.Bool("clamped", clamped))

	publish(ctx, s.publisher, s.logger, newReservationEvent(models.EventTypeReservationCreated, r, onHand, now))

	return &CreateReservationResponse{
		Reservation: r,
		Requested:   req.Quantity,
		Clamped:     clamped,
	}, nil
}

// replay answers a repeated request with the reservation the first one made
func (s *ReservationService) replay(ctx context.Context, key, reservationID string) (*CreateReservationResponse, error) {
	if reservationID == "" {
		return nil, ErrRequestInProgress
	}
	r, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation for idempotency key: %w", err)
	}
	s.logger.Info("Duplicate reservation request detected",
		zap.String("idempotency_key", key),
		zap.String("reservation_id", r.ID))
	return &CreateReservationResponse{
		Reservation: r,
		Requested:   r.Quantity,
		Replayed:    true,
	}, nil
}

func (s *ReservationService) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.ReleaseIdempotencyKey(ctx, key); err != nil {
		s.logger.Error("Failed to release idempotency key",
			zap.String("idempotency_key", key),
			zap.Error(err))
	}
}

// Update edits a reservation. Changes to product, package, quantity or date
// are only allowed while Active and are re-validated against availability
// without the reservation's own prior claim. Notes can change in any status.
func (s *ReservationService) Update(ctx context.Context, id string, req *UpdateReservationRequest) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Update")
	defer span.End()

	now := s.clock.Now()
	var updated *models.Reservation
	var onHand int
	start := time.Now()
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.store.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Version != req.Version {
			return models.ErrVersionConflict
		}
		before := *r

		if req.ProductID != nil {
			r.ProductID = *req.ProductID
		}
		if req.PackageLabel != nil {
			r.PackageLabel = *req.PackageLabel
		}
		if req.Quantity != nil {
			r.Quantity = *req.Quantity
		}
		if req.ReservationDate != nil {
			date, err := parseDate(*req.ReservationDate, now)
			if err != nil {
				return err
			}
			r.ReservationDate = date
		}
		if req.Notes != nil {
			r.Notes = *req.Notes
		}

		claimChanged := r.ProductID != before.ProductID ||
			r.PackageLabel != before.PackageLabel ||
			r.Quantity != before.Quantity
		dateChanged := !models.SameDay(r.ReservationDate, before.ReservationDate)

		if (claimChanged || dateChanged) && before.Status != models.ReservationStatusActive {
			return ledger.ErrReservationNotEditable
		}

		if claimChanged {
			if err := catalog.Validate(r.PackageLabel); err != nil {
				return err
			}
			if err := ledger.ValidateQuantity(r.Quantity); err != nil {
				return err
			}
			p, err := s.store.GetProductForUpdate(ctx, r.ProductID)
			if err != nil {
				return err
			}
			avail, err := s.available(ctx, p, r.PackageLabel, r.ID)
			if err != nil {
				return err
			}
			if req.ClampToAvailable && avail > 0 && r.Quantity > avail {
				r.Quantity = ledger.Clamp(r.Quantity, avail)
				util.ReservationsClampedTotal.Inc()
			}
			if err := ledger.CheckAvailability(p.ID, r.PackageLabel, r.Quantity, avail); err != nil {
				return err
			}
			onHand = p.StockByPackage[r.PackageLabel]
		}

		if err := s.store.UpdateReservation(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	util.LedgerTxLatency.WithLabelValues("update_reservation").Observe(time.Since(start).Seconds())
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	s.logger.Info("Reservation updated",
		zap.String("reservation_id", updated.ID),
		zap.Int64("version", updated.Version))
	publish(ctx, s.publisher, s.logger, newReservationEvent(models.EventTypeReservationUpdated, updated, onHand, now))
	return updated, nil
}

// Cancel moves an Active reservation to Cancelled. Stock is not touched.
func (s *ReservationService) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Cancel")
	defer span.End()

	var cancelled *models.Reservation
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.store.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := ledger.Cancel(r); err != nil {
			return err
		}
		if err := s.store.UpdateReservation(ctx, r); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	util.ReservationTransitionsTotal.WithLabelValues(string(models.ReservationStatusCancelled)).Inc()
	s.logger.Info("Reservation cancelled", zap.String("reservation_id", id))
	publish(ctx, s.publisher, s.logger, newReservationEvent(models.EventTypeReservationCancelled, cancelled, 0, s.clock.Now()))
	return cancelled, nil
}

// Delete removes a reservation in any status. Stock is not touched.
func (s *ReservationService) Delete(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Delete")
	defer span.End()

	var deleted *models.Reservation
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.store.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.DeleteReservation(ctx, id); err != nil {
			return err
		}
		deleted = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reservation deleted", zap.String("reservation_id", id))
	publish(ctx, s.publisher, s.logger, newReservationEvent(models.EventTypeReservationDeleted, deleted, 0, s.clock.Now()))
	return deleted, nil
}

// Get retrieves a reservation by ID
func (s *ReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

// List retrieves reservations matching the filter
func (s *ReservationService) List(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.store.ListReservations(ctx, f)
}

// Availability returns how many packages of label can still be reserved on
// productID, ignoring excludingID's own claim when set
func (s *ReservationService) Availability(ctx context.Context, productID, label, excludingID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Availability")
	defer span.End()

	if err := catalog.Validate(label); err != nil {
		return 0, err
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return s.available(ctx, p, label, excludingID)
}

func (s *ReservationService) available(ctx context.Context, p *models.Product, label, excludingID string) (int, error) {
	active, err := s.store.ListReservations(ctx, models.ReservationFilter{
		ProductID:    p.ID,
		PackageLabel: label,
		Status:       models.ReservationStatusActive,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list active reservations: %w", err)
	}
	return ledger.Available(p, label, active, excludingID), nil
}

// restore writes prev's fields back over the current row. Used to compensate
// group edit steps; it bypasses availability because it reinstates a claim
// that was valid before the step ran.
func (s *ReservationService) restore(ctx context.Context, prev models.Reservation) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.GetReservationForUpdate(ctx, prev.ID)
		if err != nil {
			return err
		}
		prev.Version = cur.Version
		return s.store.UpdateReservation(ctx, &prev)
	})
}

// recreate inserts a deleted reservation again under its original ID
func (s *ReservationService) recreate(ctx context.Context, prev models.Reservation) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		return s.store.CreateReservation(ctx, &prev)
	})
}

func (s *ReservationService) rejected(err error) {
	util.ReservationsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
}

// parseDate reads a YYYY-MM-DD date, defaulting to the day of now
func parseDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return models.TruncateDay(now), nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}
