package catalog

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryLabelHasPositiveWeight(t *testing.T) {
	labels := Labels()
	require.Len(t, labels, 6)

	for _, label := range labels {
		w, err := WeightKg(label)
		require.NoError(t, err, label)
		assert.True(t, w.GreaterThan(decimal.Zero), "weight for %s must be positive", label)
	}
}

func TestWeightKg(t *testing.T) {
	w, err := WeightKg(Label250g)
	require.NoError(t, err)
	assert.True(t, w.Equal(decimal.RequireFromString("0.25")))

	w, err = WeightKg(Label1kg)
	require.NoError(t, err)
	assert.True(t, w.Equal(decimal.NewFromInt(1)))
}

func TestUnknownLabelIsRejected(t *testing.T) {
	_, err := WeightKg("2kg")
	assert.True(t, errors.Is(err, ErrUnknownPackageLabel))

	assert.Error(t, Validate(""))
	assert.NoError(t, Validate(Label18g))
}

func TestSizesReturnsCopy(t *testing.T) {
	s := Sizes()
	s[0].Label = "mutated"
	assert.Equal(t, Label10g, Labels()[0])
}
