package ledger

import (
	"testing"
	"time"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupReservations(t *testing.T) {
	yesterday := today.AddDate(0, 0, -1)
	mk := func(id, customer string, at time.Time) models.Reservation {
		r := active(id, catalog.Label250g, 1)
		r.CustomerID = customer
		r.ReservationDate = at
		return r
	}

	groups := GroupReservations([]models.Reservation{
		mk("1", "bia", yesterday),
		mk("2", "ana", today),
		mk("3", "bia", yesterday.Add(3*time.Hour)),
		mk("4", "bia", today),
	})

	require.Len(t, groups, 3)
	assert.Equal(t, "ana", groups[0].Key.CustomerID)
	assert.Equal(t, "bia", groups[1].Key.CustomerID)
	assert.True(t, groups[1].Key.Date.Equal(models.TruncateDay(today)))
	assert.Equal(t, "bia|2026-10-16", groups[2].Key.String())
	require.Len(t, groups[2].Reservations, 2)
	assert.Equal(t, "1", groups[2].Reservations[0].ID)
	assert.Equal(t, "3", groups[2].Reservations[1].ID)
}

func TestPlanGroupEdit(t *testing.T) {
	existing := []models.Reservation{
		active("keep", catalog.Label250g, 2),
		active("change", catalog.Label500g, 1),
		active("drop", catalog.Label1kg, 1),
	}

	plan, err := PlanGroupEdit(existing, []DesiredMember{
		{ID: "keep", ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: 2},
		{ID: "change", ProductID: "amendoado", PackageLabel: catalog.Label500g, Quantity: 4},
		{ProductID: "amendoado", PackageLabel: catalog.Label100g, Quantity: 6},
	})
	require.NoError(t, err)

	require.Len(t, plan.Updates, 2)
	assert.False(t, plan.Updates[0].Changed())
	assert.True(t, plan.Updates[1].Changed())
	require.Len(t, plan.Creates, 1)
	assert.Equal(t, catalog.Label100g, plan.Creates[0].PackageLabel)
	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "drop", plan.Deletes[0].ID)
}

func TestPlanGroupEditMatchesUnidentifiedLines(t *testing.T) {
	desired := []DesiredMember{
		{ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: 3},
		{ProductID: "amendoado", PackageLabel: catalog.Label500g, Quantity: 1},
	}

	first, err := PlanGroupEdit(nil, desired)
	require.NoError(t, err)
	require.Len(t, first.Creates, 2)

	// Members as they exist after the first application.
	after := []models.Reservation{
		active("n1", catalog.Label250g, 3),
		active("n2", catalog.Label500g, 1),
	}
	second, err := PlanGroupEdit(after, desired)
	require.NoError(t, err)

	assert.Empty(t, second.Creates)
	assert.Empty(t, second.Deletes)
	require.Len(t, second.Updates, 2)
	for _, u := range second.Updates {
		assert.False(t, u.Changed())
		assert.Equal(t, u.Existing.ID, u.Desired.ID)
	}
}

func TestPlanGroupEditErrors(t *testing.T) {
	existing := []models.Reservation{active("a", catalog.Label250g, 1)}

	_, err := PlanGroupEdit(existing, []DesiredMember{{ID: "ghost", ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownGroupMember)

	_, err = PlanGroupEdit(existing, []DesiredMember{
		{ID: "a", ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: 1},
		{ID: "a", ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: 2},
	})
	assert.ErrorIs(t, err, ErrDuplicateGroupMember)

	_, err = PlanGroupEdit(existing, []DesiredMember{{ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPlanGroupEditIgnoresInactiveMembersForUnidentifiedLines(t *testing.T) {
	cancelled := active("old", catalog.Label250g, 3)
	cancelled.Status = models.ReservationStatusCancelled
	delivered := active("done", catalog.Label500g, 1)
	delivered.Status = models.ReservationStatusDelivered

	plan, err := PlanGroupEdit([]models.Reservation{cancelled, delivered}, []DesiredMember{
		{ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: 3},
		{ProductID: "amendoado", PackageLabel: catalog.Label500g, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Empty(t, plan.Updates)
	require.Len(t, plan.Creates, 2)
	assert.Equal(t, catalog.Label250g, plan.Creates[0].PackageLabel)
	require.Len(t, plan.Deletes, 2)
	assert.Equal(t, "old", plan.Deletes[0].ID)
	assert.Equal(t, "done", plan.Deletes[1].ID)
}

func TestPlanGroupEditRejectsOversizedQuantity(t *testing.T) {
	_, err := PlanGroupEdit(nil, []DesiredMember{
		{ProductID: "amendoado", PackageLabel: catalog.Label250g, Quantity: MaxCount + 1},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}
