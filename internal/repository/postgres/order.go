package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/fulfillment"
	"github.com/Namsummo/Lego-store/internal/report"
	"github.com/Namsummo/Lego-store/internal/repository"
)

const (
	uniqueViolation = pq.ErrorCode("23505")

	orderColumns = `id, subtotal, discount_amount, total, payment_method, status, shipping_code,
		customer_name, customer_phone, customer_email, customer_account_id, voucher_id,
		delivery_address, operator_id, created_at, updated_at`
)

type orderRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db, now: time.Now}
}

func (r *orderRepository) Create(ctx context.Context, req entity.OrderRequest) (*entity.Order, error) {
	now := r.now().UTC()
	order := &entity.Order{
		ID:                uuid.NewString(),
		Lines:             req.Lines,
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)",
		order.ID, order.Subtotal, order.DiscountAmount, order.Total, string(order.PaymentMethod), string(order.Status), order.ShippingCode,
		order.CustomerName, order.CustomerPhone, order.CustomerEmail, order.CustomerAccountID, order.VoucherID,
		order.DeliveryAddress, order.OperatorID, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("shipping code %s already used: %w", order.ShippingCode, err)
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, line := range req.Lines {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, name, unit_price, quantity) VALUES ($1, $2, $3, $4, $5)",
			order.ID, line.ProductID, line.Name, line.UnitPrice, line.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
			line.Quantity, line.ProductID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update product stock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read stock update result: %w", err)
		}
		if n == 0 {
			return nil, r.stockShortage(ctx, tx, line)
		}
	}

	if req.VoucherID != "" {
		res, err := tx.ExecContext(ctx, "UPDATE vouchers SET quantity = quantity - 1 WHERE id = $1 AND quantity > 0", req.VoucherID)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem voucher: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read voucher update result: %w", err)
		}
		if n == 0 {
			return nil, &entity.VoucherNotApplicableError{VoucherID: req.VoucherID, Reason: "unknown or no uses left"}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return order, nil
}

func (r *orderRepository) stockShortage(ctx context.Context, tx *sql.Tx, line entity.OrderLine) error {
	var stock int
	err := tx.QueryRowContext(ctx, "SELECT stock FROM products WHERE id = $1", line.ProductID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return &entity.NotFoundError{Kind: "product", ID: line.ProductID}
	}
	if err != nil {
		return fmt.Errorf("failed to read product stock: %w", err)
	}
	return &entity.StockExceededError{ProductID: line.ProductID, Requested: line.Quantity, Available: stock}
}

func scanOrder(row interface{ Scan(...any) error }) (entity.Order, error) {
	var (
		o      entity.Order
		method string
		status string
	)
	err := row.Scan(&o.ID, &o.Subtotal, &o.DiscountAmount, &o.Total, &method, &status, &o.ShippingCode,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.CustomerAccountID, &o.VoucherID,
		&o.DeliveryAddress, &o.OperatorID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return entity.Order{}, err
	}
	o.PaymentMethod = entity.PaymentMethod(method)
	// Unknown statuses are kept verbatim so reporting can flag them.
	if s, perr := entity.ParseStatus(status); perr == nil {
		o.Status = s
	} else {
		o.Status = entity.Status(status)
	}
	return o, nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*entity.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entity.NotFoundError{Kind: "order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order %s: %w", id, err)
	}

	orders := []entity.Order{o}
	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, next entity.Status, operatorID string, expected entity.Status) (*entity.Order, error) {
	if err := fulfillment.Validate(expected, next); err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, operator_id = $2, updated_at = $3 WHERE id = $4 AND status = $5",
		string(next), operatorID, r.now().UTC(), id, string(expected),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read status update result: %w", err)
	}
	if n == 0 {
		var actual string
		err := r.db.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = $1", id).Scan(&actual)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &entity.NotFoundError{Kind: "order", ID: id}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read order status: %w", err)
		}
		return nil, &entity.ConflictError{OrderID: id, Expected: expected, Actual: entity.Status(actual)}
	}

	return r.Get(ctx, id)
}

// whereClause renders criteria as SQL predicates with positional args.
func whereClause(c report.Criteria) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c.Status != "" && !strings.EqualFold(c.Status, report.All) {
		add("status = UPPER($%d)", c.Status)
	}
	if c.PaymentMethod != "" && !strings.EqualFold(c.PaymentMethod, report.All) {
		add("payment_method = UPPER($%d)", c.PaymentMethod)
	}
	if kw := strings.TrimSpace(c.Keyword); kw != "" {
		args = append(args, "%"+kw+"%")
		conds = append(conds, fmt.Sprintf("(customer_name ILIKE $%[1]d OR delivery_address ILIKE $%[1]d)", len(args)))
	}
	if !c.From.IsZero() {
		add("created_at >= $%d", c.From)
	}
	if !c.To.IsZero() {
		add("created_at <= $%d", c.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *orderRepository) List(ctx context.Context, page, size int, criteria report.Criteria) (entity.Page, error) {
	page, size = report.Normalize(page, size)
	where, args := whereClause(criteria)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return entity.Page{}, fmt.Errorf("failed to count orders: %w", err)
	}

	p := entity.Page{
		Items:         []entity.Order{},
		Page:          page,
		Size:          size,
		TotalPages:    report.TotalPages(total, size),
		TotalElements: total,
	}
	offset, ok := report.Offset(page, size, total)
	if !ok {
		return p, nil
	}

	query := fmt.Sprintf("SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)+1, len(args)+2)
	orders, err := r.query(ctx, query, append(args, size, offset)...)
	if err != nil {
		return entity.Page{}, err
	}
	p.Items = orders
	return p, nil
}

func (r *orderRepository) All(ctx context.Context) ([]entity.Order, error) {
	return r.query(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []entity.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadLines fetches the items of all orders in one round trip.
func (r *orderRepository) loadLines(ctx context.Context, orders []entity.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT order_id, product_id, name, unit_price, quantity FROM order_items WHERE order_id = ANY($1) ORDER BY id",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			line    entity.OrderLine
		)
		if err := rows.Scan(&orderID, &line.ProductID, &line.Name, &line.UnitPrice, &line.Quantity); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return rows.Err()
}
