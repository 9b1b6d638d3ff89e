package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/Namsummo/Lego-store/internal/delivery/ws"
	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/fulfillment"
	"github.com/Namsummo/Lego-store/internal/metrics"
	"github.com/Namsummo/Lego-store/internal/report"
	"github.com/Namsummo/Lego-store/internal/service"
)

// OperatorHeader identifies the staff member driving a request.
const OperatorHeader = "X-Operator-ID"

// Handler handles HTTP requests for the application.
type Handler struct {
	orderSvc   *service.OrderService
	counterSvc *service.CounterService
	metrics    *metrics.ServerMetrics
	gatherer   prometheus.Gatherer
	liveFeed   *ws.Hub
}

// NewHandler wires the routes. liveFeed may be nil, in which case /ws/orders is not served.
func NewHandler(orderSvc *service.OrderService, counterSvc *service.CounterService, m *metrics.ServerMetrics, g prometheus.Gatherer, liveFeed *ws.Hub) *Handler {
	return &Handler{
		orderSvc:   orderSvc,
		counterSvc: counterSvc,
		metrics:    m,
		gatherer:   g,
		liveFeed:   liveFeed,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(EnableCORS)
	r.Use(h.instrument)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(h.gatherer))
	if h.liveFeed != nil {
		r.Method(http.MethodGet, "/ws/orders", h.liveFeed)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.handleGetProducts)
		r.Get("/vouchers", h.handleGetVouchers)

		r.Route("/counter", func(r chi.Router) {
			r.Get("/", h.handleGetCounter)
			r.Delete("/", h.handleClearCounter)
			r.Post("/lines", h.handleAddLine)
			r.Patch("/lines/{productID}", h.handleUpdateLine)
			r.Delete("/lines/{productID}", h.handleRemoveLine)
			r.Put("/customer", h.handleSetCustomer)
			r.Put("/voucher", h.handleSelectVoucher)
			r.Delete("/voucher", h.handleClearVoucher)
			r.Put("/payment", h.handleSetPayment)
			r.Post("/checkout", h.handleCheckout)

			r.Get("/pending", h.handleListPending)
			r.Post("/pending", h.handleSuspend)
			r.Post("/pending/{pendingID}/resume", h.handleResume)
			r.Delete("/pending/{pendingID}", h.handleDiscard)
		})

		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Get("/orders/{id}/transitions", h.handleAllowedTransitions)
		r.Put("/orders/{id}/status", h.handleUpdateStatus)
		r.Get("/orders/{id}/history", h.handleHistory)

		r.Get("/reports/status-counts", h.handleStatusCounts)
	})
	return r
}

type ErrorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message,omitempty"`
	Current entity.Status   `json:"current_status,omitempty"`
	Allowed []entity.Status `json:"allowed,omitempty"`
}

// CounterResponse is the counter state plus any non-fatal warnings, such as a
// quantity clamped to stock.
type CounterResponse struct {
	service.CounterView
	Warnings []string `json:"warnings,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps the typed error kinds onto status codes so clients can
// branch on the error field rather than the message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *entity.ValidationError
		conflict *entity.ConflictError
		invalid  *entity.InvalidTransitionError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, string(verr.Reason), err.Error())
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "CONFLICT", Message: err.Error(), Current: conflict.Actual})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "INVALID_TRANSITION",
			Message: err.Error(),
			Current: invalid.From,
			Allowed: fulfillment.Allowed(invalid.From),
		})
	case errors.Is(err, entity.ErrStockExceeded):
		writeError(w, http.StatusConflict, "STOCK_EXCEEDED", err.Error())
	case errors.Is(err, entity.ErrVoucherNotApplicable):
		writeError(w, http.StatusUnprocessableEntity, "VOUCHER_NOT_APPLICABLE", err.Error())
	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, entity.ErrRemoteFailure):
		slog.Error("Backing store failure", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, "REMOTE_FAILURE", "the backing store is unavailable, try again")
	case errors.Is(err, entity.ErrDataIntegrity):
		slog.Error("Data integrity failure", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "DATA_INTEGRITY", err.Error())
	default:
		slog.Error("Unhandled error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "Invalid JSON body")
		return false
	}
	return true
}

func operatorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(OperatorHeader))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.orderSvc.GetProducts(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.orderSvc.GetVouchers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vouchers)
}

// --- Counter ---

// writeCounter turns a StockExceeded into a warning on a successful response.
func writeCounter(w http.ResponseWriter, r *http.Request, view service.CounterView, err error) {
	if err != nil && !errors.Is(err, entity.ErrStockExceeded) {
		writeDomainError(w, r, err)
		return
	}
	resp := CounterResponse{CounterView: view}
	if err != nil {
		resp.Warnings = []string{err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	view, err := h.counterSvc.View(operatorID(r))
	writeCounter(w, r, view, err)
}

func (h *Handler) handleClearCounter(w http.ResponseWriter, r *http.Request) {
	view, err := h.counterSvc.Clear(operatorID(r))
	writeCounter(w, r, view, err)
}

type AddLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.counterSvc.AddProduct(r.Context(), operatorID(r), req.ProductID, req.Quantity)
	writeCounter(w, r, view, err)
}

type UpdateLineRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.counterSvc.UpdateQuantity(operatorID(r), chi.URLParam(r, "productID"), req.Delta)
	writeCounter(w, r, view, err)
}

func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	view, err := h.counterSvc.RemoveLine(operatorID(r), chi.URLParam(r, "productID"))
	writeCounter(w, r, view, err)
}

func (h *Handler) handleSetCustomer(w http.ResponseWriter, r *http.Request) {
	var req entity.Customer
	if !decode(w, r, &req) {
		return
	}
	view, err := h.counterSvc.SetCustomer(operatorID(r), req)
	writeCounter(w, r, view, err)
}

type SelectVoucherRequest struct {
	VoucherID string `json:"voucher_id"`
}

func (h *Handler) handleSelectVoucher(w http.ResponseWriter, r *http.Request) {
	var req SelectVoucherRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.counterSvc.SelectVoucher(r.Context(), operatorID(r), req.VoucherID)
	writeCounter(w, r, view, err)
}

func (h *Handler) handleClearVoucher(w http.ResponseWriter, r *http.Request) {
	view, err := h.counterSvc.ClearVoucher(operatorID(r))
	writeCounter(w, r, view, err)
}

type SetPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) handleSetPayment(w http.ResponseWriter, r *http.Request) {
	var req SetPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.counterSvc.SetPaymentMethod(operatorID(r), req.PaymentMethod)
	writeCounter(w, r, view, err)
}

type CheckoutRequest struct {
	CashGiven decimal.NullDecimal `json:"cash_given"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	res, err := h.counterSvc.Checkout(r.Context(), operatorID(r), req.CashGiven)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	entries, err := h.counterSvc.ListPending(r.Context(), operatorID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	entry, err := h.counterSvc.Suspend(r.Context(), operatorID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	view, err := h.counterSvc.Resume(r.Context(), operatorID(r), chi.URLParam(r, "pendingID"))
	writeCounter(w, r, view, err)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.counterSvc.Discard(r.Context(), operatorID(r), chi.URLParam(r, "pendingID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Orders ---

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "page must be a number")
		return
	}
	size, err := intParam(q.Get("size"), report.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "size must be a number")
		return
	}

	criteria := report.Criteria{
		Status:        q.Get("status"),
		PaymentMethod: q.Get("payment_method"),
		Keyword:       strings.TrimSpace(q.Get("keyword")),
	}
	if s := criteria.Status; s != "" && !strings.EqualFold(s, report.All) {
		if _, err := entity.ParseStatus(s); err != nil {
			writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "unknown status "+s)
			return
		}
	}
	if criteria.From, err = dateParam(q.Get("from"), false); err != nil {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "from must be a date")
		return
	}
	if criteria.To, err = dateParam(q.Get("to"), true); err != nil {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "to must be a date")
		return
	}

	result, err := h.orderSvc.ListOrders(r.Context(), page, size, criteria)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleAllowedTransitions(w http.ResponseWriter, r *http.Request) {
	allowed, err := h.orderSvc.AllowedTransitions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]entity.Status{"allowed": allowed})
}

type UpdateStatusRequest struct {
	Status         string `json:"status"`
	ExpectedStatus string `json:"expected_status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	operator := operatorID(r)
	if operator == "" {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), OperatorHeader+" header is required")
		return
	}

	var req UpdateStatusRequest
	if !decode(w, r, &req) {
		return
	}
	next, err := entity.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "unknown status "+req.Status)
		return
	}
	if req.ExpectedStatus == "" {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "expected_status is required")
		return
	}
	expected, err := entity.ParseStatus(req.ExpectedStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(entity.ReasonInvalidRequest), "unknown status "+req.ExpectedStatus)
		return
	}

	order, err := h.orderSvc.Transition(r.Context(), chi.URLParam(r, "id"), next, operator, expected)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.orderSvc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleStatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.orderSvc.StatusCounts(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// instrument records request count and latency per route pattern.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		h.metrics.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// EnableCORS is a middleware to allow the counter frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+OperatorHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// dateParam accepts RFC 3339 or a plain date. A plain upper bound covers the whole day.
func dateParam(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
