package cart

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/Namsummo/Lego-store/internal/entity"
)

func TestProperty_QuantitiesStayWithinStock(t *testing.T) {
	shelf := []entity.Product{
		{ID: "a", Stock: 0},
		{ID: "b", Stock: 1},
		{ID: "c", Stock: 5},
		{ID: "d", Stock: 12},
	}

	rapid.Check(t, func(rt *rapid.T) {
		c := New()
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for _i := 0; _i < steps; _i++ {
			p := rapid.SampledFrom(shelf).Draw(rt, "product")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				_, _ = c.AddLine(p, rapid.IntRange(-2, 15).Draw(rt, "add"))
			case 1:
				_, _ = c.UpdateQuantity(p.ID, rapid.IntRange(-15, 15).Draw(rt, "delta"))
			default:
				c.RemoveLine(p.ID)
			}

			seen := make(map[string]bool)
			for _, l := range c.Lines() {
				if seen[l.ProductID] {
					rt.Fatalf("duplicate line for %s", l.ProductID)
				}
				seen[l.ProductID] = true
				if l.Quantity < 1 || l.Quantity > l.StockAvailable {
					rt.Fatalf("line %s has quantity %d with stock %d", l.ProductID, l.Quantity, l.StockAvailable)
				}
			}
			if c.Len() != len(seen) {
				rt.Fatalf("Len %d but %d lines", c.Len(), len(seen))
			}
		}
	})
}
