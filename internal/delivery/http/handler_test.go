package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/messaging"
	"github.com/Namsummo/Lego-store/internal/metrics"
	"github.com/Namsummo/Lego-store/internal/pending"
	"github.com/Namsummo/Lego-store/internal/repository/memory"
	"github.com/Namsummo/Lego-store/internal/service"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	catalog := memory.NewCatalog()
	products := memory.NewProductRepository(catalog)
	vouchers := memory.NewVoucherRepository(catalog)
	require.NoError(t, products.Seed(ctx, []entity.Product{
		{ID: "p1", Name: "Titanic", Price: decimal.NewFromInt(15000000), Stock: 2},
		{ID: "p2", Name: "Polaroid Camera", Price: decimal.NewFromInt(2000000), Stock: 10},
	}))
	require.NoError(t, vouchers.Seed(ctx, []entity.Voucher{
		{ID: "v10", Kind: entity.VoucherPercentage, Value: decimal.NewFromInt(10), MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(1000000)), Quantity: 3},
	}))

	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(reg)
	pub := messaging.NewNopBroker()
	orders := service.NewOrderService(memory.NewOrderRepository(catalog), products, vouchers, memory.NewEventStore(), pub, m)
	counter := service.NewCounterService(products, vouchers, orders, func(string) (pending.Store, error) {
		return pending.NewMemoryStore(), nil
	})
	return NewHandler(orders, counter, m, reg, nil).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any, operator string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if operator != "" {
		req.Header.Set(OperatorHeader, operator)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndCatalog(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	products := decodeBody[[]entity.Product](t, rec)
	assert.Len(t, products, 2)

	rec = do(t, h, http.MethodGet, "/api/vouchers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]entity.Voucher](t, rec), 1)
}

func TestCounterCheckoutAndFulfillment(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/counter/lines", AddLineRequest{ProductID: "p1", Quantity: 1}, "staff-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/counter/voucher", SelectVoucherRequest{VoucherID: "v10"}, "staff-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeBody[CounterResponse](t, rec)
	assert.True(t, decimal.NewFromInt(1000000).Equal(view.Summary.Discount))
	assert.True(t, decimal.NewFromInt(14000000).Equal(view.Summary.Total))

	rec = do(t, h, http.MethodPut, "/api/counter/payment", SetPaymentRequest{PaymentMethod: "bank_transfer"}, "staff-1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/counter/checkout", nil, "staff-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[service.CheckoutResult](t, rec)
	require.NotNil(t, res.Order)
	assert.Equal(t, entity.StatusPending, res.Order.Status)
	assert.False(t, res.Change.Valid)
	id := res.Order.ID

	rec = do(t, h, http.MethodGet, "/api/orders?status=pending&keyword=", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[struct {
		TotalElements int `json:"total_elements"`
	}](t, rec)
	assert.Equal(t, 1, page.TotalElements)

	rec = do(t, h, http.MethodGet, "/api/orders/"+id+"/transitions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"allowed":["PROCESSING","CANCELLED"]}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/orders/"+id+"/status", UpdateStatusRequest{Status: "PROCESSING", ExpectedStatus: "PENDING"}, "manager-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[entity.Order](t, rec)
	assert.Equal(t, entity.StatusProcessing, updated.Status)
	assert.Equal(t, "manager-1", updated.OperatorID)

	rec = do(t, h, http.MethodPut, "/api/orders/"+id+"/status", UpdateStatusRequest{Status: "CANCELLED", ExpectedStatus: "PENDING"}, "manager-2")
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "CONFLICT", conflict.Error)
	assert.Equal(t, entity.StatusProcessing, conflict.Current)

	rec = do(t, h, http.MethodPut, "/api/orders/"+id+"/status", UpdateStatusRequest{Status: "DELIVERED", ExpectedStatus: "PROCESSING"}, "manager-1")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	invalid := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_TRANSITION", invalid.Error)
	assert.Equal(t, []entity.Status{entity.StatusShipped}, invalid.Allowed)

	rec = do(t, h, http.MethodGet, "/api/orders/"+id+"/history", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]entity.StatusChange](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/api/reports/status-counts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"by_status":{"PENDING":0,"PROCESSING":1,"SHIPPED":0,"DELIVERED":0,"CANCELLED":0},"total":1}`, rec.Body.String())
}

func TestStockWarningIsNotAnError(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/counter/lines", AddLineRequest{ProductID: "p1", Quantity: 5}, "staff-1")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[CounterResponse](t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Len(t, view.Warnings, 1)
}

func TestSuspendAndResume(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/counter/lines", AddLineRequest{ProductID: "p2", Quantity: 2}, "staff-1")
	rec := do(t, h, http.MethodPost, "/api/counter/pending", nil, "staff-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decodeBody[pending.Entry](t, rec)

	rec = do(t, h, http.MethodGet, "/api/counter/pending", nil, "staff-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]pending.Entry](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/api/counter/pending/"+entry.ID+"/resume", nil, "staff-1")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[CounterResponse](t, rec)
	assert.True(t, decimal.NewFromInt(4000000).Equal(view.Summary.Total))

	rec = do(t, h, http.MethodDelete, "/api/counter/pending/"+entry.ID, nil, "staff-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/counter/pending/"+entry.ID+"/resume", nil, "staff-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		operator string
		status   int
		code     string
	}{
		{"missing operator", http.MethodGet, "/api/counter", nil, "", http.StatusBadRequest, "INVALID_REQUEST"},
		{"empty cart checkout", http.MethodPost, "/api/counter/checkout", nil, "staff-1", http.StatusBadRequest, "EMPTY_CART"},
		{"bad payment method", http.MethodPut, "/api/counter/payment", SetPaymentRequest{PaymentMethod: "crypto"}, "staff-1", http.StatusBadRequest, "MISSING_PAYMENT_METHOD"},
		{"unknown product", http.MethodPost, "/api/counter/lines", AddLineRequest{ProductID: "ghost"}, "staff-1", http.StatusNotFound, "NOT_FOUND"},
		{"unknown voucher", http.MethodPut, "/api/counter/voucher", SelectVoucherRequest{VoucherID: "missing"}, "staff-1", http.StatusNotFound, "NOT_FOUND"},
		{"unknown order", http.MethodGet, "/api/orders/ghost", nil, "", http.StatusNotFound, "NOT_FOUND"},
		{"status without operator", http.MethodPut, "/api/orders/ghost/status", UpdateStatusRequest{Status: "SHIPPED"}, "", http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown target status", http.MethodPut, "/api/orders/ghost/status", UpdateStatusRequest{Status: "LOST"}, "manager-1", http.StatusBadRequest, "INVALID_REQUEST"},
		{"status without expected status", http.MethodPut, "/api/orders/ghost/status", UpdateStatusRequest{Status: "SHIPPED"}, "manager-1", http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown expected status", http.MethodPut, "/api/orders/ghost/status", UpdateStatusRequest{Status: "SHIPPED", ExpectedStatus: "LOST"}, "manager-1", http.StatusBadRequest, "INVALID_REQUEST"},
		{"huge page", http.MethodGet, "/api/orders?page=9223372036854775807&size=9223372036854775807", nil, "", http.StatusOK, ""},
		{"bad list filter", http.MethodGet, "/api/orders?status=lost", nil, "", http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad date", http.MethodGet, "/api/orders?from=yesterday", nil, "", http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body, tt.operator)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodGet, "/api/products", nil, "")

	rec := do(t, h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pos_http_requests_total{handler="/api/products",status="200"} 1`)
}

func TestDateParam(t *testing.T) {
	from, err := dateParam("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, 0, from.Hour())

	to, err := dateParam("2024-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, 23, to.Hour())

	zero, err := dateParam("", true)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}
