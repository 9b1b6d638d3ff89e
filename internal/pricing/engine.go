// Package pricing computes cart totals. Every function is pure.
package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Namsummo/Lego-store/internal/entity"
)

var hundred = decimal.NewFromInt(100)

// ErrInsufficientCash is returned by Change when the tendered amount is below the total.
var ErrInsufficientCash = errors.New("cash given is less than the total")

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// UnitEffectivePrice is the promo price when it is set, positive and below the unit price.
func UnitEffectivePrice(line entity.CartLine) decimal.Decimal {
	if line.PromoPrice.Valid && line.PromoPrice.Decimal.IsPositive() && line.PromoPrice.Decimal.LessThan(line.UnitPrice) {
		return line.PromoPrice.Decimal
	}
	return line.UnitPrice
}

func Subtotal(lines []entity.CartLine) decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(UnitEffectivePrice(l).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return subtotal
}

// Discount never goes below zero nor above subtotal. A nil voucher yields zero.
func Discount(subtotal decimal.Decimal, v *entity.Voucher) decimal.Decimal {
	if v == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}

	switch v.Kind {
	case entity.VoucherPercentage:
		raw := subtotal.Mul(v.Value).Div(hundred)
		candidates := []decimal.Decimal{raw, subtotal}
		if v.MaxDiscount.Valid {
			candidates = append(candidates, v.MaxDiscount.Decimal)
		}
		return decimal.Max(decimal.Zero, decimal.Min(candidates[0], candidates[1:]...))
	case entity.VoucherFixedAmount:
		return decimal.Max(decimal.Zero, decimal.Min(v.Value, subtotal))
	default:
		return decimal.Zero
	}
}

func Total(subtotal, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount)
}

// Compute calculates cart totals for the given lines and optional voucher.
func Compute(lines []entity.CartLine, v *entity.Voucher) Summary {
	subtotal := Subtotal(lines)
	discount := Discount(subtotal, v)
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Total:    Total(subtotal, discount),
	}
}

// CheckVoucher gates voucher selection. It does not affect submission of a cart
// that already carries a voucher.
func CheckVoucher(v entity.Voucher, subtotal decimal.Decimal, now time.Time) error {
	if subtotal.LessThan(v.MinOrderValue) {
		return &entity.VoucherNotApplicableError{
			VoucherID:     v.ID,
			Reason:        "order value below minimum " + v.MinOrderValue.String(),
			MinOrderValue: v.MinOrderValue,
		}
	}
	if v.Quantity <= 0 {
		return &entity.VoucherNotApplicableError{VoucherID: v.ID, Reason: "no uses left"}
	}
	if !v.ActiveAt(now) {
		return &entity.VoucherNotApplicableError{VoucherID: v.ID, Reason: "outside validity period"}
	}
	return nil
}

// Change returns what to hand back for a cash payment.
func Change(total, cashGiven decimal.Decimal) (decimal.Decimal, error) {
	if cashGiven.LessThan(total) {
		return decimal.Zero, ErrInsufficientCash
	}
	return cashGiven.Sub(total), nil
}
