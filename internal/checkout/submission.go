// Package checkout turns a composed counter cart into an order request.
package checkout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lithammer/shortuuid/v4"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/pricing"
)

const (
	// CounterDeliveryAddress marks orders handed over at the counter.
	CounterDeliveryAddress = "Tại quầy"
	shippingCodePrefix     = "QUAY_"
	shippingCodeLength     = 6
	codeAlphabet           = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// phonePattern is the national mobile format: 10 digits starting with 0.
var phonePattern = regexp.MustCompile(`^0\d{9}$`)

// Draft is everything the operator has composed at checkout time.
type Draft struct {
	Lines         []entity.CartLine
	Customer      entity.Customer
	Voucher       *entity.Voucher
	PaymentMethod entity.PaymentMethod
	OperatorID    string
}

// Validate returns the first failed precondition as a *entity.ValidationError.
func Validate(d Draft) error {
	if len(d.Lines) == 0 {
		return &entity.ValidationError{Reason: entity.ReasonEmptyCart}
	}
	for i, l := range d.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return &entity.ValidationError{Reason: entity.ReasonMissingProductID, Detail: fmt.Sprintf("line %d", i+1)}
		}
	}
	if d.PaymentMethod == "" {
		return &entity.ValidationError{Reason: entity.ReasonMissingPaymentMethod}
	}
	if !d.PaymentMethod.Valid() {
		return &entity.ValidationError{Reason: entity.ReasonMissingPaymentMethod, Detail: fmt.Sprintf("unsupported payment method %q", d.PaymentMethod)}
	}
	if phone := strings.TrimSpace(d.Customer.Phone); phone != "" && !phonePattern.MatchString(phone) {
		return &entity.ValidationError{Reason: entity.ReasonInvalidPhone, Detail: phone}
	}
	return nil
}

// NewShippingCode returns a counter shipping code such as QUAY_7KD2PX.
func NewShippingCode() string {
	s := shortuuid.NewWithAlphabet(codeAlphabet)
	return shippingCodePrefix + s[len(s)-shippingCodeLength:]
}

// BuildRequest validates the draft and maps it onto an order request priced by summary.
func BuildRequest(d Draft, summary pricing.Summary) (entity.OrderRequest, error) {
	if err := Validate(d); err != nil {
		return entity.OrderRequest{}, err
	}

	lines := make([]entity.OrderLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, entity.OrderLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: pricing.UnitEffectivePrice(l),
			Quantity:  l.Quantity,
		})
	}

	req := entity.OrderRequest{
		Lines:             lines,
		Subtotal:          summary.Subtotal,
		DiscountAmount:    summary.Discount,
		Total:             summary.Total,
		PaymentMethod:     d.PaymentMethod,
		ShippingCode:      NewShippingCode(),
		CustomerName:      strings.TrimSpace(d.Customer.Name),
		CustomerEmail:     strings.TrimSpace(d.Customer.Email),
		CustomerPhone:     strings.TrimSpace(d.Customer.Phone),
		CustomerAccountID: d.Customer.AccountID,
		DeliveryAddress:   CounterDeliveryAddress,
		OperatorID:        d.OperatorID,
	}
	if d.Voucher != nil {
		req.VoucherID = d.Voucher.ID
	}
	return req, nil
}
