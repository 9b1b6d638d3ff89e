package entity

import (
	"fmt"
	"strings"
)

// Status is the fulfillment status of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus maps a raw, case-insensitive value onto a Status.
// Anything unknown is a data integrity problem, never a default bucket.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", &DataIntegrityError{Detail: fmt.Sprintf("unknown order status %q", raw)}
	}
	return s, nil
}

// PaymentMethod is how the customer settles an order.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "CASH"
	PaymentBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentCashOnDelivery:
		return true
	}
	return false
}

// ParsePaymentMethod accepts upper or lower case input.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	return m, m.Valid()
}

// VoucherKind selects how a voucher's value is interpreted.
type VoucherKind string

const (
	VoucherPercentage  VoucherKind = "PERCENTAGE"
	VoucherFixedAmount VoucherKind = "FIXED_AMOUNT"
)
