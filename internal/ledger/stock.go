// Package ledger implements the stock and reservation rules: package weights,
// on-hand counts, availability per (product, package) pair, the delivery
// transition and reservation group reconciliation. Everything here is pure and
// operates on values handed in by the service layer.
package ledger

import (
	"fmt"
	"math"
	"time"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// MaxCount bounds package counts, reservation quantities and the legacy
// 250g-equivalent total. All of them are stored in INTEGER columns.
const MaxCount = math.MaxInt32

var (
	legacyUnitKg = decimal.RequireFromString("0.25")
	maxCountDec  = decimal.NewFromInt(MaxCount)
)

// ValidateQuantity checks that q is in 1..MaxCount.
func ValidateQuantity(q int) error {
	if q <= 0 {
		return ErrInvalidQuantity
	}
	if q > MaxCount {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidQuantity, q, MaxCount)
	}
	return nil
}

// TotalKg returns the product's on-hand stock in kilograms.
func TotalKg(p *models.Product) (decimal.Decimal, error) {
	total := decimal.Zero
	for label, count := range p.StockByPackage {
		w, err := catalog.WeightKg(label)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(w.Mul(decimal.NewFromInt(int64(count))))
	}
	return total, nil
}

// TotalPackages250gEquivalent sums, per package size, the number of 250g
// packages needed to hold that size's stock. The ceiling is taken per entry,
// so the result can exceed ceil(TotalKg / 0.25). A total above MaxCount is
// rejected with ErrInvalidQuantity.
func TotalPackages250gEquivalent(p *models.Product) (int, error) {
	total := decimal.Zero
	for label, count := range p.StockByPackage {
		w, err := catalog.WeightKg(label)
		if err != nil {
			return 0, err
		}
		kg := w.Mul(decimal.NewFromInt(int64(count)))
		total = total.Add(kg.Div(legacyUnitKg).Ceil())
	}
	if total.GreaterThan(maxCountDec) {
		return 0, fmt.Errorf("%w: 250g-equivalent total %s exceeds %d", ErrInvalidQuantity, total, MaxCount)
	}
	return int(total.IntPart()), nil
}

// RecomputeLegacy refreshes p.LegacyQuantity250g from the stock record.
func RecomputeLegacy(p *models.Product) error {
	n, err := TotalPackages250gEquivalent(p)
	if err != nil {
		return err
	}
	p.LegacyQuantity250g = n
	return nil
}

// ValidateStock checks that every label is known, every count is in
// 0..MaxCount and the legacy total fits.
func ValidateStock(stock models.StockByPackage) error {
	for label, count := range stock {
		if err := catalog.Validate(label); err != nil {
			return err
		}
		if count < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeStock, label, count)
		}
		if count > MaxCount {
			return fmt.Errorf("%w: %s=%d exceeds %d", ErrInvalidQuantity, label, count, MaxCount)
		}
	}
	_, err := TotalPackages250gEquivalent(&models.Product{StockByPackage: stock})
	return err
}

// AddStock adds count packages of label to the product and logs a dated note.
func AddStock(p *models.Product, label string, count int, now time.Time) error {
	if err := ValidateQuantity(count); err != nil {
		return err
	}
	if err := catalog.Validate(label); err != nil {
		return err
	}

	current := onHand(p, label)
	if count > MaxCount-current {
		return fmt.Errorf("%w: %s stock would exceed %d", ErrInvalidQuantity, label, MaxCount)
	}
	if err := setCount(p, label, current+count); err != nil {
		return err
	}

	line := fmt.Sprintf("%s: +%d x %s", now.Format(models.DateLayout), count, label)
	if p.Notes == "" {
		p.Notes = line
	} else {
		p.Notes += "\n" + line
	}
	return nil
}

// setCount sets the label's count and refreshes the legacy field. p is left
// unchanged when the new stock does not fit.
func setCount(p *models.Product, label string, n int) error {
	if p.StockByPackage == nil {
		p.StockByPackage = models.StockByPackage{}
	}
	prev, had := p.StockByPackage[label]
	p.StockByPackage[label] = n
	if err := RecomputeLegacy(p); err != nil {
		if had {
			p.StockByPackage[label] = prev
		} else {
			delete(p.StockByPackage, label)
		}
		return err
	}
	return nil
}

func onHand(p *models.Product, label string) int {
	return p.StockByPackage[label]
}
