// Package cart holds the counter cart: product lines whose quantity is
// always clamped to the stock available when the line was added.
package cart

import (
	"github.com/Namsummo/Lego-store/internal/entity"
)

// Cart is not safe for concurrent use; the owning session serializes access.
type Cart struct {
	items map[string]*entity.CartLine
	order []string
}

func New() *Cart {
	return &Cart{items: make(map[string]*entity.CartLine)}
}

// AddLine adds requestedQty of product, merging into an existing line.
// A StockExceededError is returned when the quantity had to be clamped; the
// clamped line is kept. A product with no stock never gets a line.
func (c *Cart) AddLine(product entity.Product, requestedQty int) (entity.CartLine, error) {
	if requestedQty < 1 {
		requestedQty = 1
	}

	if line, exists := c.items[product.ID]; exists {
		wanted := line.Quantity + requestedQty
		line.Quantity = min(wanted, line.StockAvailable)
		if wanted > line.StockAvailable {
			return *line, &entity.StockExceededError{ProductID: product.ID, Requested: wanted, Available: line.StockAvailable}
		}
		return *line, nil
	}

	line := entity.LineFromProduct(product)
	if line.StockAvailable < 0 {
		line.StockAvailable = 0
	}
	line.Quantity = min(requestedQty, line.StockAvailable)
	if line.Quantity == 0 {
		return line, &entity.StockExceededError{ProductID: product.ID, Requested: requestedQty, Available: 0}
	}

	c.items[product.ID] = &line
	c.order = append(c.order, product.ID)
	if requestedQty > line.StockAvailable {
		return line, &entity.StockExceededError{ProductID: product.ID, Requested: requestedQty, Available: line.StockAvailable}
	}
	return line, nil
}

// UpdateQuantity applies delta to a line. A result of zero or less removes it.
func (c *Cart) UpdateQuantity(productID string, delta int) (entity.CartLine, error) {
	line, exists := c.items[productID]
	if !exists {
		return entity.CartLine{}, &entity.NotFoundError{Kind: "cart line", ID: productID}
	}

	wanted := line.Quantity + delta
	switch {
	case wanted <= 0:
		c.RemoveLine(productID)
		return entity.CartLine{ProductID: productID}, nil
	case wanted > line.StockAvailable:
		line.Quantity = line.StockAvailable
		return *line, &entity.StockExceededError{ProductID: productID, Requested: wanted, Available: line.StockAvailable}
	default:
		line.Quantity = wanted
		return *line, nil
	}
}

// RemoveLine is a no-op when the product is not in the cart.
func (c *Cart) RemoveLine(productID string) {
	if _, exists := c.items[productID]; !exists {
		return
	}
	delete(c.items, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Lines returns a copy of the lines in the order they were first added.
func (c *Cart) Lines() []entity.CartLine {
	lines := make([]entity.CartLine, 0, len(c.order))
	for _, id := range c.order {
		lines = append(lines, *c.items[id])
	}
	return lines
}

func (c *Cart) Len() int { return len(c.order) }

func (c *Cart) IsEmpty() bool { return len(c.order) == 0 }

func (c *Cart) Clear() {
	c.items = make(map[string]*entity.CartLine)
	c.order = nil
}

// Restore replaces the cart content with a snapshot, for example a resumed
// pending order. Quantities are re-clamped and empty lines dropped.
func (c *Cart) Restore(lines []entity.CartLine) {
	c.Clear()
	for _, l := range lines {
		if _, dup := c.items[l.ProductID]; dup {
			continue
		}
		l.Quantity = min(l.Quantity, l.StockAvailable)
		if l.Quantity <= 0 {
			continue
		}
		line := l
		c.items[l.ProductID] = &line
		c.order = append(c.order, l.ProductID)
	}
}
