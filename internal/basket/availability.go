// Package basket holds the availability rules shared by basket edits and
// checkout. The store calls into it while it holds row locks, so these
// functions see the need rows as they are at commit time.
package basket

import (
	"github.com/shopspring/decimal"

	"needsmatch/pkg/types"
)

// CheckQuantity verifies that a basket line of the given absolute quantity
// fits in what is left of need.
func CheckQuantity(need *types.Need, quantity int) error {
	if quantity <= 0 {
		return types.NewValidationError("quantity", "must be greater than zero")
	}

	available := need.Remaining()
	if available == 0 || quantity > available {
		return &types.AvailabilityError{
			NeedID:    need.ID,
			NeedTitle: need.Title,
			Requested: quantity,
			Available: available,
		}
	}

	return nil
}

// CheckAdd combines an existing basket quantity with a requested delta and
// returns the new line quantity when it still fits.
func CheckAdd(need *types.Need, existing, delta int) (int, error) {
	if delta <= 0 {
		return 0, types.NewValidationError("quantity", "must be greater than zero")
	}

	combined := existing + delta
	if err := CheckQuantity(need, combined); err != nil {
		return 0, err
	}

	return combined, nil
}

// Line is one basket row paired with the current state of its need. Need is
// nil when the need has been deleted since it was basketed.
type Line struct {
	Item *types.BasketItem
	Need *types.Need
}

// ValidateCheckout checks every line before anything is written. The first
// line that fails stops validation and its error is returned.
func ValidateCheckout(lines []Line) error {
	if len(lines) == 0 {
		return types.ErrEmptyBasket
	}

	for _, line := range lines {
		if line.Need == nil {
			return types.NewValidationError("need_id", "need %s no longer exists", line.Item.NeedID)
		}
		if err := CheckQuantity(line.Need, line.Item.Quantity); err != nil {
			return err
		}
	}

	return nil
}

// LineAmount is what a helper pays for quantity units of a need.
func LineAmount(unitCost decimal.Decimal, quantity int) decimal.Decimal {
	return unitCost.Mul(decimal.NewFromInt(int64(quantity)))
}

// Summarize fills in line totals and returns the basket total.
func Summarize(entries []*types.BasketEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		entry.LineTotal = LineAmount(entry.UnitCost, entry.Quantity)
		total = total.Add(entry.LineTotal)
	}
	return total
}
