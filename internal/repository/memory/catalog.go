// Package memory provides in-process repositories for tests and single-counter demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/repository"
)

// Catalog holds products and vouchers behind one lock so an order can take
// stock and redeem a voucher atomically.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]entity.Product
	vouchers map[string]entity.Voucher
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]entity.Product),
		vouchers: make(map[string]entity.Voucher),
	}
}

type productRepository struct{ c *Catalog }

type voucherRepository struct{ c *Catalog }

func NewProductRepository(c *Catalog) repository.ProductRepository {
	return &productRepository{c: c}
}

func NewVoucherRepository(c *Catalog) repository.VoucherRepository {
	return &voucherRepository{c: c}
}

func (r *productRepository) FindAll(_ context.Context) ([]entity.Product, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	products := make([]entity.Product, 0, len(r.c.products))
	for _, p := range r.c.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (r *productRepository) FindByID(_ context.Context, id string) (*entity.Product, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	p, ok := r.c.products[id]
	if !ok {
		return nil, &entity.NotFoundError{Kind: "product", ID: id}
	}
	return &p, nil
}

func (r *productRepository) Seed(_ context.Context, products []entity.Product) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if len(r.c.products) > 0 {
		return nil
	}
	for _, p := range products {
		r.c.products[p.ID] = p
	}
	return nil
}

func (r *voucherRepository) FindAll(_ context.Context) ([]entity.Voucher, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	vouchers := make([]entity.Voucher, 0, len(r.c.vouchers))
	for _, v := range r.c.vouchers {
		vouchers = append(vouchers, v)
	}
	sort.Slice(vouchers, func(i, j int) bool { return vouchers[i].ID < vouchers[j].ID })
	return vouchers, nil
}

func (r *voucherRepository) FindByID(_ context.Context, id string) (*entity.Voucher, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	v, ok := r.c.vouchers[id]
	if !ok {
		return nil, &entity.NotFoundError{Kind: "voucher", ID: id}
	}
	return &v, nil
}

func (r *voucherRepository) Seed(_ context.Context, vouchers []entity.Voucher) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	for _, v := range vouchers {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("failed to seed voucher %s: %w", v.ID, err)
		}
		if _, exists := r.c.vouchers[v.ID]; !exists {
			r.c.vouchers[v.ID] = v
		}
	}
	return nil
}

// reserve takes stock for every line and one use of the voucher, or nothing at all.
func (c *Catalog) reserve(req entity.OrderRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range req.Lines {
		p, ok := c.products[line.ProductID]
		if !ok {
			return &entity.NotFoundError{Kind: "product", ID: line.ProductID}
		}
		if p.Stock < line.Quantity {
			return &entity.StockExceededError{ProductID: p.ID, Requested: line.Quantity, Available: p.Stock}
		}
	}
	if req.VoucherID != "" {
		v, ok := c.vouchers[req.VoucherID]
		if !ok || v.Quantity <= 0 {
			return &entity.VoucherNotApplicableError{VoucherID: req.VoucherID, Reason: "unknown or no uses left"}
		}
		v.Quantity--
		c.vouchers[v.ID] = v
	}

	for _, line := range req.Lines {
		p := c.products[line.ProductID]
		p.Stock -= line.Quantity
		c.products[p.ID] = p
	}
	return nil
}
