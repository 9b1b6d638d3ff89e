// Package pending parks in-progress counter carts so staff can serve another
// customer and recall the cart later. Entries live only in the local store.
package pending

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/shopspring/decimal"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/pricing"
)

const (
	idPrefix   = "HDC"
	idLength   = 6
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// maxIDAttempts bounds the retry loop when a generated id collides.
	maxIDAttempts = 16
)

// Entry is the persisted record of a suspended cart.
type Entry struct {
	ID                string            `json:"id"`
	Lines             []entity.CartLine `json:"lines"`
	CustomerName      string            `json:"customerName"`
	CustomerEmail     string            `json:"customerEmail"`
	CustomerPhone     string            `json:"customerPhone"`
	CustomerAccountID string            `json:"customerAccountId,omitempty"`
	VoucherID         string            `json:"voucherId,omitempty"`
	Voucher           *entity.Voucher   `json:"voucher,omitempty"`
	DiscountAmount    decimal.Decimal   `json:"discountAmount"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	CreatedAt         time.Time         `json:"createdAt"`
}

func (e Entry) Customer() entity.Customer {
	return entity.Customer{
		Name:      e.CustomerName,
		Email:     e.CustomerEmail,
		Phone:     e.CustomerPhone,
		AccountID: e.CustomerAccountID,
	}
}

// Snapshot is the session state handed to Suspend.
type Snapshot struct {
	Lines    []entity.CartLine
	Customer entity.Customer
	Voucher  *entity.Voucher
}

// Store loads and saves the whole queue, most-recent-first.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// Queue serializes access within one process. Separate processes sharing a
// store can still race; the queue is convenience state, not a system of record.
type Queue struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
	newID func() string
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(q *Queue) { q.newID = gen }
}

func NewQueue(store Store, opts ...Option) *Queue {
	q := &Queue{store: store, now: time.Now, newID: NewID}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewID returns a short human-readable id such as HDC4K7Q2Z.
func NewID() string {
	s := shortuuid.NewWithAlphabet(idAlphabet)
	return idPrefix + s[len(s)-idLength:]
}

// Suspend snapshots the cart with its pricing and puts it at the head of the queue.
// The caller is responsible for clearing its own cart, customer and voucher.
func (q *Queue) Suspend(ctx context.Context, snap Snapshot) (Entry, error) {
	if len(snap.Lines) == 0 {
		return Entry{}, &entity.ValidationError{Reason: entity.ReasonEmptyCart, Detail: "nothing to suspend"}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Load(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to load pending orders: %w", err)
	}

	id, err := q.uniqueID(entries)
	if err != nil {
		return Entry{}, err
	}

	summary := pricing.Compute(snap.Lines, snap.Voucher)
	entry := Entry{
		ID:                id,
		Lines:             slices.Clone(snap.Lines),
		CustomerName:      snap.Customer.Name,
		CustomerEmail:     snap.Customer.Email,
		CustomerPhone:     snap.Customer.Phone,
		CustomerAccountID: snap.Customer.AccountID,
		DiscountAmount:    summary.Discount,
		TotalAmount:       summary.Total,
		CreatedAt:         q.now(),
	}
	if snap.Voucher != nil {
		v := *snap.Voucher
		entry.Voucher = &v
		entry.VoucherID = v.ID
	}

	entries = append([]Entry{entry}, entries...)
	if err := q.store.Save(ctx, entries); err != nil {
		return Entry{}, fmt.Errorf("failed to save pending orders: %w", err)
	}

	slog.Info("Pending order suspended", "pending_id", id, "lines", len(entry.Lines), "total", entry.TotalAmount.String())
	return entry, nil
}

// Resume returns the entry and removes it from the queue in one step.
func (q *Queue) Resume(ctx context.Context, id string) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Load(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to load pending orders: %w", err)
	}

	idx := slices.IndexFunc(entries, func(e Entry) bool { return e.ID == id })
	if idx < 0 {
		return Entry{}, &entity.NotFoundError{Kind: "pending order", ID: id}
	}
	entry := entries[idx]

	if err := q.store.Save(ctx, slices.Delete(entries, idx, idx+1)); err != nil {
		return Entry{}, fmt.Errorf("failed to save pending orders: %w", err)
	}

	slog.Info("Pending order resumed", "pending_id", id)
	return entry, nil
}

// Discard drops the entry if present.
func (q *Queue) Discard(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending orders: %w", err)
	}

	idx := slices.IndexFunc(entries, func(e Entry) bool { return e.ID == id })
	if idx < 0 {
		return nil
	}

	if err := q.store.Save(ctx, slices.Delete(entries, idx, idx+1)); err != nil {
		return fmt.Errorf("failed to save pending orders: %w", err)
	}
	return nil
}

// List returns the queue most-recent-first.
func (q *Queue) List(ctx context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending orders: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (q *Queue) uniqueID(entries []Entry) (string, error) {
	for _i := 0; _i < maxIDAttempts; _i++ {
		id := q.newID()
		if !slices.ContainsFunc(entries, func(e Entry) bool { return e.ID == id }) {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique pending order id after %d attempts", maxIDAttempts)
}
