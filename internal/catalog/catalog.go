// Package catalog holds the fixed table of package sizes coffee is sold in.
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownPackageLabel is returned for a label outside the fixed catalog.
var ErrUnknownPackageLabel = errors.New("unknown package label")

// PackageSize is a sellable packaging unit and its net weight.
type PackageSize struct {
	Label    string          `json:"label"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}

// Package labels.
const (
	Label10g  = "10g"
	Label18g  = "18g"
	Label100g = "100g"
	Label250g = "250g"
	Label500g = "500g"
	Label1kg  = "1kg"
)

var sizes = []PackageSize{
	{Label: Label10g, WeightKg: decimal.RequireFromString("0.010")},
	{Label: Label18g, WeightKg: decimal.RequireFromString("0.018")},
	{Label: Label100g, WeightKg: decimal.RequireFromString("0.100")},
	{Label: Label250g, WeightKg: decimal.RequireFromString("0.250")},
	{Label: Label500g, WeightKg: decimal.RequireFromString("0.500")},
	{Label: Label1kg, WeightKg: decimal.RequireFromString("1.000")},
}

var byLabel = func() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(sizes))
	for _, s := range sizes {
		m[s.Label] = s.WeightKg
	}
	return m
}()

// WeightKg returns the weight of one package of the given label.
func WeightKg(label string) (decimal.Decimal, error) {
	w, ok := byLabel[label]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownPackageLabel, label)
	}
	return w, nil
}

// Validate reports whether label belongs to the catalog.
func Validate(label string) error {
	_, err := WeightKg(label)
	return err
}

// Sizes returns a copy of the catalog, smallest package first.
func Sizes() []PackageSize {
	out := make([]PackageSize, len(sizes))
	copy(out, sizes)
	return out
}

// Labels returns the catalog labels, smallest package first.
func Labels() []string {
	out := make([]string, len(sizes))
	for i, s := range sizes {
		out[i] = s.Label
	}
	return out
}
