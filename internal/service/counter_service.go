package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Namsummo/Lego-store/internal/cart"
	"github.com/Namsummo/Lego-store/internal/checkout"
	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/pending"
	"github.com/Namsummo/Lego-store/internal/pricing"
	"github.com/Namsummo/Lego-store/internal/repository"
)

// PendingStoreFactory opens the suspended-cart store for one operator.
type PendingStoreFactory func(operatorID string) (pending.Store, error)

// CounterView is the state of one operator's counter after an operation.
type CounterView struct {
	OperatorID    string               `json:"operator_id"`
	Lines         []entity.CartLine    `json:"lines"`
	Customer      entity.Customer      `json:"customer"`
	Voucher       *entity.Voucher      `json:"voucher,omitempty"`
	PaymentMethod entity.PaymentMethod `json:"payment_method,omitempty"`
	Summary       pricing.Summary      `json:"summary"`
}

// CheckoutResult carries the created order and, for cash payments, the change due.
type CheckoutResult struct {
	Order  *entity.Order       `json:"order"`
	Change decimal.NullDecimal `json:"change"`
}

type session struct {
	mu       sync.Mutex
	cart     *cart.Cart
	customer entity.Customer
	voucher  *entity.Voucher
	payment  entity.PaymentMethod
	queue    *pending.Queue
}

func (s *session) reset() {
	s.cart.Clear()
	s.customer = entity.Customer{}
	s.voucher = nil
	s.payment = ""
}

// CounterService holds one in-memory counter session per operator. Sessions
// are never shared: operator A cannot see or change operator B's cart.
type CounterService struct {
	products repository.ProductRepository
	vouchers repository.VoucherRepository
	orders   *OrderService
	newStore PendingStoreFactory
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewCounterService(
	products repository.ProductRepository,
	vouchers repository.VoucherRepository,
	orders *OrderService,
	newStore PendingStoreFactory,
) *CounterService {
	return &CounterService{
		products: products,
		vouchers: vouchers,
		orders:   orders,
		newStore: newStore,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// acquire returns the operator's session locked. Callers must unlock it.
func (s *CounterService) acquire(operatorID string) (*session, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, &entity.ValidationError{Reason: entity.ReasonInvalidRequest, Detail: "operator id is required"}
	}

	s.mu.Lock()
	sess, ok := s.sessions[operatorID]
	if !ok {
		store, err := s.newStore(operatorID)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to open pending store for %s: %w", operatorID, err)
		}
		sess = &session{cart: cart.New(), queue: pending.NewQueue(store)}
		s.sessions[operatorID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	return sess, nil
}

func (s *CounterService) view(operatorID string, sess *session) CounterView {
	lines := sess.cart.Lines()
	v := CounterView{
		OperatorID:    operatorID,
		Lines:         lines,
		Customer:      sess.customer,
		PaymentMethod: sess.payment,
		Summary:       pricing.Compute(lines, sess.voucher),
	}
	if sess.voucher != nil {
		voucher := *sess.voucher
		v.Voucher = &voucher
	}
	return v
}

func (s *CounterService) View(operatorID string) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()
	return s.view(operatorID, sess), nil
}

// AddProduct looks the product up for current stock and adds it to the cart.
// A StockExceededError is returned together with the clamped view.
func (s *CounterService) AddProduct(ctx context.Context, operatorID, productID string, qty int) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	if strings.TrimSpace(productID) == "" {
		return s.view(operatorID, sess), &entity.ValidationError{Reason: entity.ReasonMissingProductID}
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return s.view(operatorID, sess), remote("find product", err)
	}

	_, err = sess.cart.AddLine(*product, qty)
	return s.view(operatorID, sess), err
}

// UpdateQuantity adds delta to a line; the line is removed at zero.
func (s *CounterService) UpdateQuantity(operatorID, productID string, delta int) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	_, err = sess.cart.UpdateQuantity(productID, delta)
	return s.view(operatorID, sess), err
}

func (s *CounterService) RemoveLine(operatorID, productID string) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	sess.cart.RemoveLine(productID)
	return s.view(operatorID, sess), nil
}

// SetCustomer stores trimmed customer details. The phone is checked at checkout.
func (s *CounterService) SetCustomer(operatorID string, c entity.Customer) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	sess.customer = entity.Customer{
		Name:      strings.TrimSpace(c.Name),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
		AccountID: strings.TrimSpace(c.AccountID),
	}
	return s.view(operatorID, sess), nil
}

// SelectVoucher applies the voucher if the current subtotal qualifies. It
// replaces any voucher already selected; a rejected voucher leaves the
// previous selection untouched.
func (s *CounterService) SelectVoucher(ctx context.Context, operatorID, voucherID string) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	v, err := s.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		return s.view(operatorID, sess), remote("find voucher", err)
	}
	if err := v.Validate(); err != nil {
		return s.view(operatorID, sess), &entity.DataIntegrityError{Detail: err.Error()}
	}
	if err := pricing.CheckVoucher(*v, pricing.Subtotal(sess.cart.Lines()), s.now()); err != nil {
		return s.view(operatorID, sess), err
	}

	sess.voucher = v
	return s.view(operatorID, sess), nil
}

func (s *CounterService) ClearVoucher(operatorID string) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	sess.voucher = nil
	return s.view(operatorID, sess), nil
}

func (s *CounterService) SetPaymentMethod(operatorID, raw string) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	method, ok := entity.ParsePaymentMethod(raw)
	if !ok {
		return s.view(operatorID, sess), &entity.ValidationError{Reason: entity.ReasonMissingPaymentMethod, Detail: fmt.Sprintf("unsupported payment method %q", raw)}
	}
	sess.payment = method
	return s.view(operatorID, sess), nil
}

// Clear empties the cart, customer, voucher and payment method.
func (s *CounterService) Clear(operatorID string) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	sess.reset()
	return s.view(operatorID, sess), nil
}

// Suspend parks the current cart and clears the counter.
func (s *CounterService) Suspend(ctx context.Context, operatorID string) (pending.Entry, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return pending.Entry{}, err
	}
	defer sess.mu.Unlock()

	entry, err := sess.queue.Suspend(ctx, pending.Snapshot{
		Lines:    sess.cart.Lines(),
		Customer: sess.customer,
		Voucher:  sess.voucher,
	})
	if err != nil {
		return pending.Entry{}, err
	}
	sess.reset()
	return entry, nil
}

// Resume restores a parked cart into an empty counter. Stock is refreshed
// from the catalog and quantities re-clamped, so a resumed cart never
// exceeds what is on the shelf now.
func (s *CounterService) Resume(ctx context.Context, operatorID, pendingID string) (CounterView, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CounterView{}, err
	}
	defer sess.mu.Unlock()

	if !sess.cart.IsEmpty() {
		return s.view(operatorID, sess), &entity.ValidationError{Reason: entity.ReasonInvalidRequest, Detail: "counter cart is not empty; suspend or clear it first"}
	}

	entry, err := sess.queue.Resume(ctx, pendingID)
	if err != nil {
		return s.view(operatorID, sess), err
	}

	lines := slices.Clone(entry.Lines)
	for i, l := range lines {
		p, err := s.products.FindByID(ctx, l.ProductID)
		if err != nil {
			slog.Warn("Could not refresh stock for resumed line", "pending_id", pendingID, "product_id", l.ProductID, "err", err)
			continue
		}
		lines[i].StockAvailable = p.Stock
	}

	sess.cart.Restore(lines)
	sess.customer = entry.Customer()
	sess.voucher = entry.Voucher
	return s.view(operatorID, sess), nil
}

func (s *CounterService) Discard(ctx context.Context, operatorID, pendingID string) error {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	return sess.queue.Discard(ctx, pendingID)
}

func (s *CounterService) ListPending(ctx context.Context, operatorID string) ([]pending.Entry, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return sess.queue.List(ctx)
}

// Checkout submits the counter as an order. On success the counter is cleared;
// on any failure it is left as is so the operator can fix it and retry.
// cashGiven is only consulted for CASH payments.
func (s *CounterService) Checkout(ctx context.Context, operatorID string, cashGiven decimal.NullDecimal) (CheckoutResult, error) {
	sess, err := s.acquire(operatorID)
	if err != nil {
		return CheckoutResult{}, err
	}
	defer sess.mu.Unlock()

	lines := sess.cart.Lines()
	summary := pricing.Compute(lines, sess.voucher)
	req, err := checkout.BuildRequest(checkout.Draft{
		Lines:         lines,
		Customer:      sess.customer,
		Voucher:       sess.voucher,
		PaymentMethod: sess.payment,
		OperatorID:    operatorID,
	}, summary)
	if err != nil {
		return CheckoutResult{}, err
	}

	var result CheckoutResult
	if sess.payment == entity.PaymentCash && cashGiven.Valid {
		change, err := pricing.Change(summary.Total, cashGiven.Decimal)
		if errors.Is(err, pricing.ErrInsufficientCash) {
			return CheckoutResult{}, &entity.ValidationError{
				Reason: entity.ReasonInvalidRequest,
				Detail: fmt.Sprintf("cash %s is less than total %s", cashGiven.Decimal, summary.Total),
			}
		}
		result.Change = decimal.NewNullDecimal(change)
	}

	order, err := s.orders.PlaceOrder(ctx, req)
	if err != nil {
		slog.Error("Checkout failed", "operator_id", operatorID, "err", err)
		return CheckoutResult{}, err
	}

	sess.reset()
	result.Order = order
	return result, nil
}
