package repository

import (
	"context"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/report"
)

// ProductRepository handles persistence for Products.
type ProductRepository interface {
	FindAll(ctx context.Context) ([]entity.Product, error)
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
}

// VoucherRepository handles persistence for Vouchers.
type VoucherRepository interface {
	FindAll(ctx context.Context) ([]entity.Voucher, error)
	FindByID(ctx context.Context, id string) (*entity.Voucher, error)
	Seed(ctx context.Context, vouchers []entity.Voucher) error
}

// OrderRepository is the system of record for orders.
type OrderRepository interface {
	// Create persists a new PENDING order, decrementing product stock and the
	// voucher's remaining uses in the same transaction.
	Create(ctx context.Context, req entity.OrderRequest) (*entity.Order, error)
	Get(ctx context.Context, id string) (*entity.Order, error)
	// UpdateStatus writes next only if the stored status equals expected.
	UpdateStatus(ctx context.Context, id string, next entity.Status, operatorID string, expected entity.Status) (*entity.Order, error)
	List(ctx context.Context, page, size int, criteria report.Criteria) (entity.Page, error)
	All(ctx context.Context) ([]entity.Order, error)
}

// EventStore handles appending and loading events for an aggregate stream.
type EventStore interface {
	SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error
	LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error)
}
