package service

import (
	"context"
	"fmt"
	"time"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/ledger"
	"stock-ledger/internal/models"
	"stock-ledger/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GroupService lists reservations grouped by (customer, date) and applies
// bulk edits to a group
type GroupService struct {
	store        Store
	reservations *ReservationService
	locker       Locker
	lockTTL      time.Duration
	logger       *zap.Logger
}

// NewGroupService creates a new group service. locker may be nil, in which
// case concurrent edits of one group are not serialized.
func NewGroupService(store Store, reservations *ReservationService, locker Locker, lockTTL time.Duration) *GroupService {
	return &GroupService{
		store:        store,
		reservations: reservations,
		locker:       locker,
		lockTTL:      lockTTL,
		logger:       util.GetLogger(),
	}
}

// EditGroupRequest is the desired state of a group. Members replaces the
// member list; Status and Notes, when set, are applied to every member.
type EditGroupRequest struct {
	Members []ledger.DesiredMember    `json:"members"`
	Status  *models.ReservationStatus `json:"status,omitempty"`
	Notes   *string                   `json:"notes,omitempty"`
	// Confirm must be set when the edit delivers or reverts a delivery.
	Confirm bool `json:"confirm"`
}

// ListGroups returns reservations matching f grouped by customer and date,
// newest date first
func (s *GroupService) ListGroups(ctx context.Context, f models.ReservationFilter) ([]ledger.Group, error) {
	ctx, span := util.StartSpan(ctx, "GroupService.ListGroups")
	defer span.End()

	rs, err := s.reservations.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return ledger.GroupReservations(rs), nil
}

// GetGroup returns one group. A group with no members is returned empty.
func (s *GroupService) GetGroup(ctx context.Context, customerID, date string) (*ledger.Group, error) {
	day, err := parseGroupDate(date)
	if err != nil {
		return nil, err
	}
	return s.loadGroup(ctx, customerID, day)
}

func (s *GroupService) loadGroup(ctx context.Context, customerID string, day time.Time) (*ledger.Group, error) {
	rs, err := s.store.ListReservations(ctx, models.ReservationFilter{CustomerID: customerID, Date: &day})
	if err != nil {
		return nil, err
	}
	group := &ledger.Group{
		Key:          ledger.GroupKey{CustomerID: customerID, Date: day},
		Reservations: rs,
	}
	return group, nil
}

// EditGroup reconciles the group with req. Every step runs in its own
// transaction; when a step fails the steps already applied are compensated in
// reverse order and a *ledger.PartialGroupUpdateError describes the outcome.
func (s *GroupService) EditGroup(ctx context.Context, customerID, date string, req *EditGroupRequest) (*ledger.Group, error) {
	ctx, span := util.StartSpan(ctx, "GroupService.EditGroup",
		attribute.String("customer.id", customerID),
		attribute.String("group.date", date))
	defer span.End()

	day, err := parseGroupDate(date)
	if err != nil {
		return nil, err
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	for _, d := range req.Members {
		if err := catalog.Validate(d.PackageLabel); err != nil {
			return nil, err
		}
	}

	key := ledger.GroupKey{CustomerID: customerID, Date: day}
	release, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.loadGroup(ctx, customerID, day)
	if err != nil {
		return nil, err
	}
	plan, err := ledger.PlanGroupEdit(current.Reservations, req.Members)
	if err != nil {
		return nil, err
	}
	if err := checkStatusChange(plan, req); err != nil {
		return nil, err
	}

	saga := &groupSaga{}
	if err := s.applyPlan(ctx, saga, key, plan); err != nil {
		return nil, util.RecordError(span, s.abort(ctx, saga, key, err))
	}
	if err := s.applyUniform(ctx, saga, key, req); err != nil {
		return nil, util.RecordError(span, s.abort(ctx, saga, key, err))
	}

	util.GroupEditsTotal.WithLabelValues("applied").Inc()
	s.logger.Info("Reservation group edited",
		zap.String("group", key.String()),
		zap.Int("steps", len(saga.steps)))
	return s.loadGroup(ctx, customerID, day)
}

// lock serializes edits of one group across instances
func (s *GroupService) lock(ctx context.Context, key ledger.GroupKey) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lockKey := "group:" + key.String()
	token, ok, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock group: %w", err)
	}
	if !ok {
		util.GroupEditsTotal.WithLabelValues("busy").Inc()
		return nil, ErrGroupBusy
	}
	return func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Error("Failed to release group lock", zap.String("group", key.String()), zap.Error(err))
		}
	}, nil
}

// checkStatusChange rejects a uniform status the lifecycle cannot reach from
// some member's status, before anything is written
func checkStatusChange(plan ledger.GroupPlan, req *EditGroupRequest) error {
	if req.Status == nil {
		return nil
	}
	target := *req.Status

	statuses := make([]models.ReservationStatus, 0, len(plan.Updates)+len(plan.Creates))
	for _, u := range plan.Updates {
		statuses = append(statuses, u.Existing.Status)
	}
	for range plan.Creates {
		statuses = append(statuses, models.ReservationStatusActive)
	}

	for _, from := range statuses {
		if from == target {
			continue
		}
		if !ledger.CanTransition(from, target) {
			return &ledger.InvalidTransitionError{From: from, To: target}
		}
		if from == models.ReservationStatusDelivered || target == models.ReservationStatusDelivered {
			if !req.Confirm {
				return ledger.ErrConfirmationRequired
			}
		}
	}
	return nil
}

// applyPlan runs deletes first so freed packages are available to the
// updates and creates that follow
func (s *GroupService) applyPlan(ctx context.Context, saga *groupSaga, key ledger.GroupKey, plan ledger.GroupPlan) error {
	for _, existing := range plan.Deletes {
		deleted, err := s.reservations.Delete(ctx, existing.ID)
		if err != nil {
			return saga.fail(existing.ID, err)
		}
		saga.done(existing.ID, func(ctx context.Context) error {
			return s.reservations.recreate(ctx, *deleted)
		})
	}

	for _, u := range plan.Updates {
		if !u.Changed() {
			continue
		}
		prev := u.Existing
		d := u.Desired
		_, err := s.reservations.Update(ctx, prev.ID, &UpdateReservationRequest{
			Version:      prev.Version,
			ProductID:    &d.ProductID,
			PackageLabel: &d.PackageLabel,
			Quantity:     &d.Quantity,
		})
		if err != nil {
			return saga.fail(prev.ID, err)
		}
		saga.done(prev.ID, func(ctx context.Context) error {
			return s.reservations.restore(ctx, prev)
		})
	}

	for _, d := range plan.Creates {
		resp, err := s.reservations.Create(ctx, &CreateReservationRequest{
			ProductID:       d.ProductID,
			PackageLabel:    d.PackageLabel,
			Quantity:        d.Quantity,
			CustomerID:      key.CustomerID,
			ReservationDate: key.Date.Format(models.DateLayout),
		})
		if err != nil {
			return saga.fail(fmt.Sprintf("new:%s/%s", d.ProductID, d.PackageLabel), err)
		}
		id := resp.Reservation.ID
		saga.done(id, func(ctx context.Context) error {
			_, err := s.reservations.Delete(ctx, id)
			return err
		})
	}
	return nil
}

// applyUniform sets notes and status on every current member
func (s *GroupService) applyUniform(ctx context.Context, saga *groupSaga, key ledger.GroupKey, req *EditGroupRequest) error {
	if req.Notes == nil && req.Status == nil {
		return nil
	}
	group, err := s.loadGroup(ctx, key.CustomerID, key.Date)
	if err != nil {
		return err
	}

	for _, m := range group.Reservations {
		m := m
		if req.Notes != nil && m.Notes != *req.Notes {
			prev := m
			updated, err := s.reservations.Update(ctx, m.ID, &UpdateReservationRequest{
				Version: m.Version,
				Notes:   req.Notes,
			})
			if err != nil {
				return saga.fail(m.ID, err)
			}
			saga.done(m.ID, func(ctx context.Context) error {
				return s.reservations.restore(ctx, prev)
			})
			m = *updated
		}

		if req.Status == nil || m.Status == *req.Status {
			continue
		}
		if err := s.setStatus(ctx, saga, m, *req.Status, req.Confirm); err != nil {
			return saga.fail(m.ID, err)
		}
	}
	return nil
}

func (s *GroupService) setStatus(ctx context.Context, saga *groupSaga, m models.Reservation, target models.ReservationStatus, confirm bool) error {
	switch {
	case m.Status == models.ReservationStatusActive && target == models.ReservationStatusDelivered:
		if _, err := s.reservations.Deliver(ctx, m.ID, confirm); err != nil {
			return err
		}
		saga.done(m.ID, func(ctx context.Context) error {
			_, err := s.reservations.RevertDelivery(ctx, m.ID, true)
			return err
		})

	case m.Status == models.ReservationStatusDelivered && target == models.ReservationStatusActive:
		if _, err := s.reservations.RevertDelivery(ctx, m.ID, confirm); err != nil {
			return err
		}
		saga.done(m.ID, func(ctx context.Context) error {
			_, err := s.reservations.Deliver(ctx, m.ID, true)
			return err
		})

	case m.Status == models.ReservationStatusActive && target == models.ReservationStatusCancelled:
		if _, err := s.reservations.Cancel(ctx, m.ID); err != nil {
			return err
		}
		prev := m
		saga.done(m.ID, func(ctx context.Context) error {
			return s.reservations.restore(ctx, prev)
		})

	default:
		return &ledger.InvalidTransitionError{From: m.Status, To: target}
	}
	return nil
}

// abort compensates applied steps newest first and reports the outcome
func (s *GroupService) abort(ctx context.Context, saga *groupSaga, key ledger.GroupKey, cause error) error {
	ctx = context.WithoutCancel(ctx)
	perr := &ledger.PartialGroupUpdateError{Err: cause}
	if saga.failedID != "" {
		perr.Failed = []string{saga.failedID}
	}

	for i := len(saga.steps) - 1; i >= 0; i-- {
		step := saga.steps[i]
		if err := step.compensate(ctx); err != nil {
			s.logger.Error("Failed to compensate group edit step",
				zap.String("group", key.String()),
				zap.String("reservation_id", step.id),
				zap.Error(err))
			perr.Committed = appendUnique(perr.Committed, step.id)
			continue
		}
		perr.RolledBack = appendUnique(perr.RolledBack, step.id)
	}

	outcome := "rolled_back"
	if len(perr.Committed) > 0 {
		outcome = "partial"
	}
	util.GroupEditsTotal.WithLabelValues(outcome).Inc()
	s.logger.Warn("Reservation group edit failed",
		zap.String("group", key.String()),
		zap.String("outcome", outcome),
		zap.Strings("rolled_back", perr.RolledBack),
		zap.Strings("committed", perr.Committed),
		zap.Error(cause))
	return perr
}

type sagaStep struct {
	id         string
	compensate func(ctx context.Context) error
}

// groupSaga records the committed steps of one group edit
type groupSaga struct {
	steps    []sagaStep
	failedID string
}

func (g *groupSaga) done(id string, compensate func(ctx context.Context) error) {
	g.steps = append(g.steps, sagaStep{id: id, compensate: compensate})
}

func (g *groupSaga) fail(id string, err error) error {
	g.failedID = id
	return err
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func parseGroupDate(date string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}
