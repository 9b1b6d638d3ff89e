package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item that can be sold at the counter.
type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	PromoPrice  decimal.NullDecimal `json:"promo_price"`
	Category    string              `json:"category"`
	Stock       int                 `json:"stock"`
}

// CartLine is one product in the counter cart. Quantity never exceeds StockAvailable.
type CartLine struct {
	ProductID      string              `json:"product_id"`
	Name           string              `json:"name"`
	UnitPrice      decimal.Decimal     `json:"unit_price"`
	PromoPrice     decimal.NullDecimal `json:"promo_price"`
	Quantity       int                 `json:"quantity"`
	StockAvailable int                 `json:"stock_available"`
}

// LineFromProduct builds a cart line for the given product with zero quantity.
func LineFromProduct(p Product) CartLine {
	return CartLine{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPrice:      p.Price,
		PromoPrice:     p.PromoPrice,
		StockAvailable: p.Stock,
	}
}

// Customer holds the buyer details captured at the counter.
// AccountID is set only when the operator picked an existing customer record.
type Customer struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AccountID string `json:"account_id,omitempty"`
}

// OrderLine is a line item within a persisted order.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is the store-of-record transaction. After creation only Status,
// OperatorID and UpdatedAt change.
type Order struct {
	ID                string          `json:"id"`
	Lines             []OrderLine     `json:"lines"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	Total             decimal.Decimal `json:"total"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	Status            Status          `json:"status"`
	ShippingCode      string          `json:"shipping_code"`
	CustomerName      string          `json:"customer_name"`
	CustomerPhone     string          `json:"customer_phone,omitempty"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	CustomerAccountID string          `json:"customer_account_id,omitempty"`
	VoucherID         string          `json:"voucher_id,omitempty"`
	DeliveryAddress   string          `json:"delivery_address"`
	OperatorID        string          `json:"operator_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderRequest is what the counter submits to the backing store.
type OrderRequest struct {
	Lines             []OrderLine     `json:"lines"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	Total             decimal.Decimal `json:"total"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	ShippingCode      string          `json:"shipping_code"`
	CustomerName      string          `json:"customer_name"`
	CustomerPhone     string          `json:"customer_phone,omitempty"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	CustomerAccountID string          `json:"customer_account_id,omitempty"`
	VoucherID         string          `json:"voucher_id,omitempty"`
	DeliveryAddress   string          `json:"delivery_address"`
	OperatorID        string          `json:"operator_id"`
}

// Page is one slice of a paged order listing.
type Page struct {
	Items         []Order `json:"items"`
	Page          int     `json:"page"`
	Size          int     `json:"size"`
	TotalPages    int     `json:"total_pages"`
	TotalElements int     `json:"total_elements"`
}

// --- Events ---

// OrderPlaced is emitted once an order has been persisted.
type OrderPlaced struct {
	OrderID       string          `json:"order_id"`
	Lines         []OrderLine     `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	OperatorID    string          `json:"operator_id"`
	PlacedAt      time.Time       `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// OrderStatusChanged is emitted after a successful fulfillment transition.
type OrderStatusChanged struct {
	OrderID    string    `json:"order_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	OperatorID string    `json:"operator_id"`
	ChangedAt  time.Time `json:"changed_at"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }
