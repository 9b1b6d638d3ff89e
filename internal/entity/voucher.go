package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Voucher is a discount instrument. It is treated as immutable once selected for a cart.
type Voucher struct {
	ID            string              `json:"id"`
	Code          string              `json:"code"`
	Kind          VoucherKind         `json:"kind"`
	Value         decimal.Decimal     `json:"value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	MinOrderValue decimal.Decimal     `json:"min_order_value"`
	// Quantity is the number of remaining uses.
	Quantity int       `json:"quantity"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Validate checks the voucher schema. It says nothing about whether the voucher
// applies to a particular cart; see pricing.CheckVoucher for that.
func (v Voucher) Validate() error {
	invalid := func(format string, args ...any) error {
		return &ValidationError{Reason: ReasonInvalidVoucher, Detail: fmt.Sprintf(format, args...)}
	}

	if v.ID == "" {
		return invalid("voucher id is required")
	}
	if v.Quantity < 0 {
		return invalid("quantity must not be negative")
	}
	if !v.Value.IsPositive() {
		return invalid("value must be greater than 0")
	}
	if v.MaxDiscount.Valid && !v.MaxDiscount.Decimal.IsPositive() {
		return invalid("max discount must be greater than 0")
	}
	if v.MinOrderValue.IsNegative() {
		return invalid("min order value must not be negative")
	}
	if !v.StartsAt.IsZero() && !v.EndsAt.IsZero() && !v.EndsAt.After(v.StartsAt) {
		return invalid("end date must be after start date")
	}

	switch v.Kind {
	case VoucherPercentage:
		if v.Value.GreaterThanOrEqual(hundred) {
			return invalid("percentage must be below 100")
		}
		if !v.MaxDiscount.Valid {
			return invalid("percentage voucher requires a max discount")
		}
	case VoucherFixedAmount:
		if v.MaxDiscount.Valid && v.Value.GreaterThan(v.MaxDiscount.Decimal) {
			return invalid("fixed amount must not exceed max discount")
		}
	default:
		return invalid("unknown voucher kind %q", v.Kind)
	}
	return nil
}

// ActiveAt reports whether now falls inside the voucher validity window.
// A zero bound is open.
func (v Voucher) ActiveAt(now time.Time) bool {
	if !v.StartsAt.IsZero() && now.Before(v.StartsAt) {
		return false
	}
	if !v.EndsAt.IsZero() && now.After(v.EndsAt) {
		return false
	}
	return true
}
