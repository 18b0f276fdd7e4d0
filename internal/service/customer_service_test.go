package service

import (
	"context"
	"testing"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCustomerRequiresName(t *testing.T) {
	f := newFixture(t)

	_, err := f.customers.Create(context.Background(), &CreateCustomerRequest{Name: " "})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestDeleteCustomerBlockedByActiveReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Bourbon", models.StockByPackage{catalog.Label250g: 10})
	c := f.customer(t, "ana")
	r := f.reserve(t, p, c, catalog.Label250g, 2)

	assert.ErrorIs(t, f.customers.Delete(ctx, c.ID), ErrCustomerHasActiveReservations)

	_, err := f.reservations.Deliver(ctx, r.ID, true)
	require.NoError(t, err)

	require.NoError(t, f.customers.Delete(ctx, c.ID))
	_, err = f.customers.Get(ctx, c.ID)
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
	assert.ErrorIs(t, f.customers.Delete(ctx, c.ID), models.ErrCustomerNotFound)
}
