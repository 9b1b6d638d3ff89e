package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/fulfillment"
	"github.com/Namsummo/Lego-store/internal/report"
	"github.com/Namsummo/Lego-store/internal/repository"
)

type orderRepository struct {
	mu      sync.RWMutex
	catalog *Catalog
	orders  map[string]entity.Order
	now     func() time.Time
}

// NewOrderRepository keeps orders in memory and draws stock from catalog.
func NewOrderRepository(catalog *Catalog) repository.OrderRepository {
	return &orderRepository{
		catalog: catalog,
		orders:  make(map[string]entity.Order),
		now:     time.Now,
	}
}

func (r *orderRepository) Create(_ context.Context, req entity.OrderRequest) (*entity.Order, error) {
	if err := r.catalog.reserve(req); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	o := entity.Order{
		ID:                uuid.NewString(),
		Lines:             slices.Clone(req.Lines),
		Subtotal:          req.Subtotal,
		DiscountAmount:    req.DiscountAmount,
		Total:             req.Total,
		PaymentMethod:     req.PaymentMethod,
		Status:            entity.StatusPending,
		ShippingCode:      req.ShippingCode,
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		CustomerEmail:     req.CustomerEmail,
		CustomerAccountID: req.CustomerAccountID,
		VoucherID:         req.VoucherID,
		DeliveryAddress:   req.DeliveryAddress,
		OperatorID:        req.OperatorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	r.mu.Lock()
	r.orders[o.ID] = o
	r.mu.Unlock()

	return &o, nil
}

func (r *orderRepository) Get(_ context.Context, id string) (*entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, &entity.NotFoundError{Kind: "order", ID: id}
	}
	return &o, nil
}

func (r *orderRepository) UpdateStatus(_ context.Context, id string, next entity.Status, operatorID string, expected entity.Status) (*entity.Order, error) {
	if err := fulfillment.Validate(expected, next); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, &entity.NotFoundError{Kind: "order", ID: id}
	}
	if o.Status != expected {
		return nil, &entity.ConflictError{OrderID: id, Expected: expected, Actual: o.Status}
	}

	o.Status = next
	o.OperatorID = operatorID
	o.UpdatedAt = r.now().UTC()
	r.orders[id] = o
	return &o, nil
}

func (r *orderRepository) List(ctx context.Context, page, size int, criteria report.Criteria) (entity.Page, error) {
	all, err := r.All(ctx)
	if err != nil {
		return entity.Page{}, err
	}
	return report.Paginate(report.Filter(all, criteria), page, size), nil
}

// All returns every order, newest first.
func (r *orderRepository) All(_ context.Context) ([]entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]entity.Order, 0, len(r.orders))
	for _, o := range r.orders {
		orders = append(orders, o)
	}
	slices.SortFunc(orders, func(a, b entity.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return orders, nil
}
