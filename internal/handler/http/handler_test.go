package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/internal/event"
	"github.com/Papaai2/baladymall-sub000/internal/notification"
	"github.com/Papaai2/baladymall-sub000/internal/service"
	apperrors "github.com/Papaai2/baladymall-sub000/pkg/errors"
	"github.com/Papaai2/baladymall-sub000/pkg/health"
	"github.com/Papaai2/baladymall-sub000/pkg/httputil"
	"github.com/Papaai2/baladymall-sub000/pkg/middleware"
)

// ============================================================================
// Fakes
// ============================================================================

type memCarts struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func (m *memCarts) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, apperrors.NotFound("cart", userID)
	}
	return c.Clone(), nil
}

func (m *memCarts) Save(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = cart.Clone()
	return nil
}

func (m *memCarts) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

type staticCatalog map[string]domain.ProductSnapshot

func (c staticCatalog) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.ProductSnapshot, error) {
	out := map[string]domain.ProductSnapshot{}
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, d *domain.OrderDraft) (*domain.Order, error) {
	args := m.Called(ctx, d)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(context.Context, *domain.OrderDraft) *domain.Order:
		return v(ctx, d), args.Error(1)
	default:
		return v.(*domain.Order), args.Error(1)
	}
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.OrderSummary, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.OrderSummary), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type nopNotifier struct{}

func (nopNotifier) OrderPlaced(context.Context, *domain.Order) notification.Report {
	return notification.Report{}
}

// ============================================================================
// Test helpers
// ============================================================================

const (
	testUser  = "3f1c6c5e-8d3a-4f7e-9b1a-2c4d5e6f7a8b"
	productID = "11111111-1111-1111-1111-111111111111"
	orderID   = "7d8f5a5e-2f2a-4b8a-9c43-4bfb3c1f0a11"
)

type fixture struct {
	carts  *memCarts
	orders *mockOrderRepository
	router http.Handler
}

func newFixture(stock int) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		carts:  &memCarts{carts: map[string]*domain.Cart{}},
		orders: new(mockOrderRepository),
	}
	catalog := staticCatalog{productID: {ID: productID, Name: "Copper Lamp", Price: 10000, StockQuantity: stock, IsActive: true, BrandID: "brand-1"}}

	carts := service.NewCartService(f.carts, catalog, event.Noop{}, logger, service.DefaultCartLimits())
	v := service.NewCartValidator(f.carts, catalog, logger)
	checkout := service.NewCheckoutService(carts, v, f.orders, service.Pricing{}, event.Noop{}, nopNotifier{}, logger,
		service.CheckoutConfig{Currency: "EGP", NotifyTimeout: time.Second})

	f.router = NewRouter(carts, v, checkout, health.NewHandler(), logger, RouterConfig{ServiceName: "storefront-test", LoginURL: "/login"})
	return f
}

func (f *fixture) seedCart(qty int) {
	c := domain.NewCart(testUser)
	c.Lines = []domain.CartLine{{ProductID: productID, Quantity: qty, UnitPrice: 10000}}
	f.carts.carts[testUser] = c
}

func (f *fixture) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set(middleware.UserIDHeader, testUser)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// decodeResponse reads the response body into the standard envelope, keeping
// Data as raw JSON for typed decoding.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) httputil.Response {
	t.Helper()
	var raw struct {
		Data  json.RawMessage         `json:"data"`
		Error *httputil.ErrorResponse `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return httputil.Response{Data: data, Error: raw.Error}
}

func validForm() map[string]any {
	return map[string]any{
		"shipping": map[string]any{
			"full_name": "Mona Hassan",
			"phone":     "+20 100 123 4567",
			"line1":     "12 Tahrir St",
			"city":      "Cairo",
			"country":   "EG",
		},
		"payment": map[string]any{"method": "cash_on_delivery"},
	}
}

// ============================================================================
// Session
// ============================================================================

func TestSession_RedirectsToLogin(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", validForm(), false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login?return_to=%2Fcheckout", rec.Header().Get("Location"))
	var details middleware.LoginRedirect
	var raw struct {
		Error struct {
			Code    string          `json:"code"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	require.NoError(t, json.Unmarshal(raw.Error.Details, &details))
	assert.Equal(t, "UNAUTHORIZED", raw.Error.Code)
	assert.Equal(t, "/checkout", details.ReturnTo)
}

func TestSession_GetResumesAtSamePath(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodGet, "/api/v1/cart", nil, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login?return_to=%2Fapi%2Fv1%2Fcart", rec.Header().Get("Location"))
}

func TestSession_NonUUIDUserCannotFillCart(t *testing.T) {
	f := newFixture(3)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items",
		bytes.NewBufferString(`{"product_id":"`+productID+`","quantity":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, "user-a")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login?return_to=%2Fcart", rec.Header().Get("Location"))
	assert.Empty(t, f.carts.carts)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// ============================================================================
// Cart endpoints
// ============================================================================

func TestAddItem_ThenGetCart(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": productID, "quantity": 2}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart domain.Cart
	decodeResponse(t, rec, &cart)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)

	rec = f.do(t, http.MethodGet, "/api/v1/cart", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var validated domain.ValidatedCart
	decodeResponse(t, rec, &validated)
	assert.Equal(t, int64(20000), validated.Subtotal)
	assert.Empty(t, validated.Notices)
}

func TestGetCart_ShowsNotices(t *testing.T) {
	f := newFixture(1)
	f.seedCart(3)

	rec := f.do(t, http.MethodGet, "/api/v1/cart", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var validated domain.ValidatedCart
	decodeResponse(t, rec, &validated)
	require.Len(t, validated.Notices, 1)
	assert.Equal(t, domain.NoticeQuantityClamped, validated.Notices[0].Kind)
	assert.Equal(t, 1, validated.Lines[0].Quantity)
}

func TestAddItem_ValidationError(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "nope", "quantity": 0}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeResponse(t, rec, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Len(t, resp.Error.Fields, 2)
}

func TestAddItem_MalformedBody(t *testing.T) {
	f := newFixture(3)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{"))
	req.Header.Set(middleware.UserIDHeader, testUser)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeResponse(t, rec, nil).Error.Code)
}

func TestAddItem_WrongContentType(t *testing.T) {
	f := newFixture(3)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("product_id=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.UserIDHeader, testUser)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUpdateItem_ZeroRemoves(t *testing.T) {
	f := newFixture(3)
	f.seedCart(2)

	rec := f.do(t, http.MethodPut, "/api/v1/cart/items/"+productID, map[string]any{"quantity": 0}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart domain.Cart
	decodeResponse(t, rec, &cart)
	assert.Empty(t, cart.Lines)
}

func TestUpdateItem_InvalidProductID(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodPut, "/api/v1/cart/items/not-a-uuid", map[string]any{"quantity": 1}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveItem_AbsentIsOK(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodDelete, "/api/v1/cart/items/"+productID, nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClearCart(t *testing.T) {
	f := newFixture(3)
	f.seedCart(2)

	rec := f.do(t, http.MethodDelete, "/api/v1/cart", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, f.carts.carts, testUser)
}

// ============================================================================
// Checkout endpoints
// ============================================================================

func TestPreview(t *testing.T) {
	f := newFixture(3)
	f.seedCart(2)

	rec := f.do(t, http.MethodGet, "/api/v1/checkout", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var preview domain.CheckoutPreview
	decodeResponse(t, rec, &preview)
	assert.True(t, preview.CanProceed)
	assert.Equal(t, int64(20000), preview.Totals.Total)
	assert.Equal(t, "EGP", preview.Currency)
}

func TestPlaceOrder_Created(t *testing.T) {
	f := newFixture(3)
	f.seedCart(2)

	f.orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.OrderDraft")).
		Return(func(_ context.Context, d *domain.OrderDraft) *domain.Order {
			return &domain.Order{ID: orderID, UserID: d.UserID, Status: d.Status(), PaymentMethod: d.PaymentMethod, Totals: d.Totals, Lines: d.Lines}
		}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", validForm(), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/v1/orders/"+orderID, rec.Header().Get("Location"))

	var result domain.CheckoutResult
	decodeResponse(t, rec, &result)
	assert.Equal(t, orderID, result.OrderID)
	assert.Equal(t, domain.StateDone, result.State)
	assert.Equal(t, domain.OrderStatusProcessing, result.Order.Status)
	assert.Equal(t, int64(20000), result.Order.Totals.Total)
	assert.NotContains(t, f.carts.carts, testUser)
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		createErr error
		status    int
		code      string
		retryable bool
	}{
		{"stock conflict", &domain.StockConflictError{ProductID: productID, Requested: 2, Available: 1}, http.StatusConflict, "STOCK_CONFLICT", false},
		{"catalog inconsistency", &domain.CatalogInconsistencyError{ProductID: productID, Reason: "inactive"}, http.StatusConflict, "CATALOG_INCONSISTENCY", false},
		{"retryable persistence", &domain.PersistenceError{Op: "commit", Retryable: true, Err: errors.New("deadlock")}, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE", true},
		{"fatal persistence", &domain.PersistenceError{Op: "insert order", Err: errors.New("syntax")}, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE", false},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(3)
			f.seedCart(2)
			f.orders.On("Create", mock.Anything, mock.Anything).Return(nil, tt.createErr)

			rec := f.do(t, http.MethodPost, "/api/v1/checkout", validForm(), true)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.retryable, resp.Error.Retryable)
		})
	}
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", validForm(), true)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_CART", decodeResponse(t, rec, nil).Error.Code)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_CartChanged(t *testing.T) {
	f := newFixture(1)
	f.seedCart(3)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", validForm(), true)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var raw struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Notices []domain.Notice `json:"notices"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Equal(t, "CART_CHANGED", raw.Error.Code)
	require.Len(t, raw.Error.Details.Notices, 1)
	assert.Equal(t, domain.NoticeQuantityClamped, raw.Error.Details.Notices[0].Kind)
}

func TestPlaceOrder_FieldErrors(t *testing.T) {
	f := newFixture(3)
	f.seedCart(1)

	form := validForm()
	form["shipping"].(map[string]any)["city"] = ""
	form["payment"] = map[string]any{"method": "card"}

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", form, true)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeResponse(t, rec, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	fields := map[string]bool{}
	for _, fe := range resp.Error.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["shipping.city"])
	assert.True(t, fields["payment.method"])
}

// ============================================================================
// Order confirmation
// ============================================================================

func TestGetOrder(t *testing.T) {
	f := newFixture(3)
	f.orders.On("GetByID", mock.Anything, orderID, testUser).
		Return(&domain.Order{ID: orderID, UserID: testUser, Status: domain.OrderStatusProcessing}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var order domain.Order
	decodeResponse(t, rec, &order)
	assert.Equal(t, orderID, order.ID)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(3)
	f.orders.On("GetByID", mock.Anything, orderID, testUser).Return(nil, apperrors.NotFound("order", orderID))

	rec := f.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthLive(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListOrders(t *testing.T) {
	f := newFixture(3)
	f.orders.On("ListByUser", mock.Anything, testUser, 2, 2).
		Return([]domain.OrderSummary{{ID: orderID, Status: domain.OrderStatusProcessing, Total: 20000, LineCount: 1}}, 3, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/orders?page=2&per_page=2", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items      []domain.OrderSummary `json:"items"`
		TotalCount int                   `json:"total_count"`
		TotalPages int                   `json:"total_pages"`
		HasNext    bool                  `json:"has_next"`
	}
	decodeResponse(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, orderID, page.Items[0].ID)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.HasNext)
}

func TestListOrders_BadPage(t *testing.T) {
	f := newFixture(3)

	rec := f.do(t, http.MethodGet, "/api/v1/orders?per_page=1000", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.orders.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
