package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/fulfillment"
	"github.com/Namsummo/Lego-store/internal/messaging"
	"github.com/Namsummo/Lego-store/internal/metrics"
	"github.com/Namsummo/Lego-store/internal/report"
	"github.com/Namsummo/Lego-store/internal/repository"
)

const orderStreamType = "order"

// OrderService owns the order lifecycle after checkout: placement, fulfillment
// transitions and the read side used by the back office.
type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	voucherRepo repository.VoucherRepository
	eventStore  repository.EventStore
	publisher   messaging.Publisher
	machine     *fulfillment.Machine
	metrics     *metrics.ServerMetrics
	now         func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	voucherRepo repository.VoucherRepository,
	eventStore repository.EventStore,
	publisher messaging.Publisher,
	m *metrics.ServerMetrics,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		voucherRepo: voucherRepo,
		eventStore:  eventStore,
		publisher:   publisher,
		machine:     fulfillment.NewMachine(orderRepo),
		metrics:     m,
		now:         time.Now,
	}
}

// GetProducts returns the catalog.
func (s *OrderService) GetProducts(ctx context.Context) ([]entity.Product, error) {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, remote("list products", err)
	}
	return products, nil
}

// GetVouchers returns every voucher, including ones outside their window.
func (s *OrderService) GetVouchers(ctx context.Context) ([]entity.Voucher, error) {
	vouchers, err := s.voucherRepo.FindAll(ctx)
	if err != nil {
		return nil, remote("list vouchers", err)
	}
	return vouchers, nil
}

// PlaceOrder persists the request as a PENDING order. The order row is the
// system of record; the event stream and the broker are best effort after it.
func (s *OrderService) PlaceOrder(ctx context.Context, req entity.OrderRequest) (*entity.Order, error) {
	slog.Info("Service: Placing order", "lines", len(req.Lines), "operator_id", req.OperatorID, "total", req.Total.String())

	order, err := s.orderRepo.Create(ctx, req)
	if err != nil {
		return nil, remote("create order", err)
	}

	placed := placedEvent(order, order.OperatorID)
	if err := s.eventStore.SaveEvents(ctx, order.ID, orderStreamType, 0, []entity.Event{placed}); err != nil {
		slog.Error("Failed to save OrderPlaced event", "order_id", order.ID, "err", err)
	}
	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderPlaced, order.ID, placed); err != nil {
		slog.Error("Failed to publish OrderPlaced event", "order_id", order.ID, "err", err)
	}

	if s.metrics != nil {
		s.metrics.OrdersPlaced.WithLabelValues(string(order.PaymentMethod)).Inc()
	}
	slog.Info("Order placed", "order_id", order.ID, "shipping_code", order.ShippingCode)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	order, err := s.orderRepo.Get(ctx, id)
	if err != nil {
		return nil, remote("get order", err)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, page, size int, criteria report.Criteria) (entity.Page, error) {
	page, size = report.Normalize(page, size)
	p, err := s.orderRepo.List(ctx, page, size, criteria)
	if err != nil {
		return entity.Page{}, remote("list orders", err)
	}
	return p, nil
}

// StatusCounts fails rather than dropping an order whose status it does not know.
func (s *OrderService) StatusCounts(ctx context.Context) (report.Counts, error) {
	orders, err := s.orderRepo.All(ctx)
	if err != nil {
		return report.Counts{}, remote("load orders", err)
	}
	return report.CountsByStatus(orders)
}

// AllowedTransitions lists the statuses the order may move to next.
func (s *OrderService) AllowedTransitions(ctx context.Context, id string) ([]entity.Status, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return fulfillment.Allowed(order.Status), nil
}

// Transition moves order id to next. expected is the status the operator last
// saw; the move fails with a conflict when the stored status differs.
func (s *OrderService) Transition(ctx context.Context, id string, next entity.Status, operatorID string, expected entity.Status) (*entity.Order, error) {
	if expected == "" {
		return nil, &entity.ValidationError{Reason: entity.ReasonInvalidRequest, Detail: "expected status is required"}
	}
	observed := entity.Order{ID: id, Status: expected}

	updated, err := s.machine.Transition(ctx, observed, next, operatorID)
	s.observeTransition(observed.Status, next, err)
	if err != nil {
		return nil, err
	}

	changed := entity.OrderStatusChanged{
		OrderID:    id,
		From:       observed.Status,
		To:         next,
		OperatorID: operatorID,
		ChangedAt:  updated.UpdatedAt,
	}
	if err := s.appendStatusChange(ctx, updated, changed); err != nil {
		slog.Error("Failed to save OrderStatusChanged event", "order_id", id, "err", err)
	}
	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderStatusChanged, id, changed); err != nil {
		slog.Error("Failed to publish OrderStatusChanged event", "order_id", id, "err", err)
	}
	return updated, nil
}

// appendStatusChange adds changed to the order stream. A stream that placement
// never wrote is started from the order row first, so replay always begins with
// OrderPlaced.
func (s *OrderService) appendStatusChange(ctx context.Context, order *entity.Order, changed entity.OrderStatusChanged) error {
	records, err := s.eventStore.LoadEvents(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order events: %w", err)
	}

	if len(records) == 0 {
		// The operator on the row is the one who just moved it; who placed it is lost.
		placed := placedEvent(order, "")
		err := s.eventStore.SaveEvents(ctx, order.ID, orderStreamType, 0, []entity.Event{placed, changed})
		if !errors.Is(err, entity.ErrConflict) {
			if err == nil {
				slog.Warn("Order stream started from order row", "order_id", order.ID)
			}
			return err
		}
		// The projection backfilled it meanwhile.
	}
	return s.eventStore.SaveEvents(ctx, order.ID, orderStreamType, -1, []entity.Event{changed})
}

func placedEvent(order *entity.Order, operatorID string) entity.OrderPlaced {
	return entity.OrderPlaced{
		OrderID:       order.ID,
		Lines:         order.Lines,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		OperatorID:    operatorID,
		PlacedAt:      order.CreatedAt,
	}
}

func (s *OrderService) observeTransition(from, to entity.Status, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrInvalidTransition):
		result = "invalid"
	case errors.Is(err, entity.ErrConflict):
		result = "conflict"
	case errors.Is(err, entity.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	s.metrics.Transitions.WithLabelValues(string(from), string(to), result).Inc()
}

// History replays the order's event stream.
func (s *OrderService) History(ctx context.Context, id string) ([]entity.StatusChange, error) {
	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}

	records, err := s.eventStore.LoadEvents(ctx, id)
	if err != nil {
		return nil, remote("load order history", err)
	}

	agg := entity.NewOrderAggregate(id)
	if err := entity.Rehydrate(agg, records); err != nil {
		return nil, &entity.DataIntegrityError{Detail: err.Error()}
	}
	if agg.History == nil {
		return []entity.StatusChange{}, nil
	}
	return agg.History, nil
}

// HandleOrderPlaced backfills the order stream when placement could not write it.
func (s *OrderService) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event entity.OrderPlaced
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
	}

	records, err := s.eventStore.LoadEvents(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order events: %w", err)
	}
	if len(records) > 0 {
		return nil
	}

	err = s.eventStore.SaveEvents(ctx, event.OrderID, orderStreamType, 0, []entity.Event{event})
	if err != nil && !errors.Is(err, entity.ErrConflict) {
		return fmt.Errorf("failed to backfill OrderPlaced event: %w", err)
	}
	slog.Info("Projection: order stream backfilled", "order_id", event.OrderID)
	return nil
}

// HandleOrderStatusChanged records the change in the log for the audit trail.
func (s *OrderService) HandleOrderStatusChanged(_ context.Context, payload []byte) error {
	var event entity.OrderStatusChanged
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %w", err)
	}
	slog.Info("Audit: order status changed", "order_id", event.OrderID, "from", event.From, "to", event.To, "operator_id", event.OperatorID, "at", event.ChangedAt)
	return nil
}

// remote passes typed domain errors through and wraps everything else as a remote failure.
func remote(op string, err error) error {
	for _, kind := range []error{
		entity.ErrValidation,
		entity.ErrStockExceeded,
		entity.ErrVoucherNotApplicable,
		entity.ErrInvalidTransition,
		entity.ErrConflict,
		entity.ErrNotFound,
		entity.ErrDataIntegrity,
		entity.ErrRemoteFailure,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return &entity.RemoteFailureError{Op: op, Err: err}
}
