package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/internal/service"
	"github.com/Papaai2/baladymall-sub000/pkg/httputil"
	"github.com/Papaai2/baladymall-sub000/pkg/middleware"
	"github.com/Papaai2/baladymall-sub000/pkg/pagination"
)

// CheckoutHandler handles checkout and order confirmation endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// PlaceOrderRequest is the checkout form. Field validation happens in the
// service so every problem is reported in one response.
type PlaceOrderRequest struct {
	Shipping domain.ShippingInput `json:"shipping"`
	Payment  domain.PaymentInput  `json:"payment"`
}

// Preview handles GET /api/v1/checkout
func (h *CheckoutHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	preview, err := h.service.Preview(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: preview})
}

// PlaceOrder handles POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	result, err := h.service.PlaceOrder(r.Context(), userID, req.Shipping, req.Payment)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+result.OrderID)
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// GetOrder handles GET /api/v1/orders/{orderId}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	orderID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), userID, orderID.String())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders?page=&per_page=
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, &httputil.ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: err.Error(),
		})
		return
	}

	orders, total, err := h.service.ListOrders(r.Context(), userID, params.Limit(), params.Offset())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(orders, total, params)})
}
