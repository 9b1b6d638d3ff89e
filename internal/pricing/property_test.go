package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/Namsummo/Lego-store/internal/entity"
)

func drawVoucher(t *rapid.T) *entity.Voucher {
	switch rapid.IntRange(0, 2).Draw(t, "kind") {
	case 0:
		return nil
	case 1:
		return &entity.Voucher{
			ID:          "pct",
			Kind:        entity.VoucherPercentage,
			Value:       d(rapid.Int64Range(1, 99).Draw(t, "percent")),
			MaxDiscount: decimal.NewNullDecimal(d(rapid.Int64Range(1, 10_000_000).Draw(t, "cap"))),
		}
	default:
		return &entity.Voucher{
			ID:    "fixed",
			Kind:  entity.VoucherFixedAmount,
			Value: d(rapid.Int64Range(1, 50_000_000).Draw(t, "amount")),
		}
	}
}

func drawLines(t *rapid.T) []entity.CartLine {
	n := rapid.IntRange(0, 6).Draw(t, "lines")
	lines := make([]entity.CartLine, 0, n)
	for i := 0; i < n; i++ {
		l := entity.CartLine{
			ProductID:      string(rune('a' + i)),
			UnitPrice:      d(rapid.Int64Range(0, 30_000_000).Draw(t, "price")),
			Quantity:       rapid.IntRange(1, 20).Draw(t, "qty"),
			StockAvailable: 20,
		}
		if rapid.Bool().Draw(t, "promo") {
			l.PromoPrice = decimal.NewNullDecimal(d(rapid.Int64Range(0, 30_000_000).Draw(t, "promo-price")))
		}
		lines = append(lines, l)
	}
	return lines
}

func TestProperty_SummaryBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lines := drawLines(rt)
		v := drawVoucher(rt)
		s := Compute(lines, v)

		if s.Discount.IsNegative() {
			rt.Fatalf("negative discount %s", s.Discount)
		}
		if s.Discount.GreaterThan(s.Subtotal) {
			rt.Fatalf("discount %s above subtotal %s", s.Discount, s.Subtotal)
		}
		if !s.Total.Equal(s.Subtotal.Sub(s.Discount)) {
			rt.Fatalf("total %s != %s - %s", s.Total, s.Subtotal, s.Discount)
		}
		if s.Total.IsNegative() {
			rt.Fatalf("negative total %s", s.Total)
		}
		if v != nil && v.MaxDiscount.Valid && s.Discount.GreaterThan(v.MaxDiscount.Decimal) {
			rt.Fatalf("discount %s above cap %s", s.Discount, v.MaxDiscount.Decimal)
		}
	})
}

func TestProperty_EffectivePriceNeverAboveUnitPrice(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		for _, l := range drawLines(rt) {
			p := UnitEffectivePrice(l)
			if p.GreaterThan(l.UnitPrice) {
				rt.Fatalf("effective %s above unit %s", p, l.UnitPrice)
			}
		}
	})
}
