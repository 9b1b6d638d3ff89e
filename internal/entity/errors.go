package entity

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinels for errors.Is. Every typed error below matches exactly one.
var (
	ErrValidation           = errors.New("validation failed")
	ErrStockExceeded        = errors.New("stock exceeded")
	ErrVoucherNotApplicable = errors.New("voucher not applicable")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrConflict             = errors.New("conflict")
	ErrNotFound             = errors.New("not found")
	ErrRemoteFailure        = errors.New("remote failure")
	ErrDataIntegrity        = errors.New("data integrity")
)

// ValidationReason tells the operator which precondition failed.
type ValidationReason string

const (
	ReasonEmptyCart            ValidationReason = "EMPTY_CART"
	ReasonMissingProductID     ValidationReason = "MISSING_PRODUCT_ID"
	ReasonMissingPaymentMethod ValidationReason = "MISSING_PAYMENT_METHOD"
	ReasonInvalidPhone         ValidationReason = "INVALID_PHONE"
	ReasonInvalidVoucher       ValidationReason = "INVALID_VOUCHER"
	ReasonInvalidRequest       ValidationReason = "INVALID_REQUEST"
)

type ValidationError struct {
	Reason ValidationReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StockExceededError is a warning: the mutation was applied with the quantity clamped.
type StockExceededError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("product %s: requested %d, only %d in stock", e.ProductID, e.Requested, e.Available)
}

func (e *StockExceededError) Is(target error) bool { return target == ErrStockExceeded }

type VoucherNotApplicableError struct {
	VoucherID string
	Reason    string
	// MinOrderValue is set when the subtotal was below the voucher threshold.
	MinOrderValue decimal.Decimal
}

func (e *VoucherNotApplicableError) Error() string {
	return fmt.Sprintf("voucher %s not applicable: %s", e.VoucherID, e.Reason)
}

func (e *VoucherNotApplicableError) Is(target error) bool { return target == ErrVoucherNotApplicable }

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ConflictError means the stored status moved since the caller last read it.
type ConflictError struct {
	OrderID  string
	Expected Status
	Actual   Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s changed concurrently: expected %s, found %s", e.OrderID, e.Expected, e.Actual)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RemoteFailureError wraps a backing store or broker failure. It is surfaced once, never retried.
type RemoteFailureError struct {
	Op  string
	Err error
}

func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *RemoteFailureError) Is(target error) bool { return target == ErrRemoteFailure }

func (e *RemoteFailureError) Unwrap() error { return e.Err }

type DataIntegrityError struct {
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return "data integrity: " + e.Detail
}

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }
