package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/internal/notification"
	apperrors "github.com/Papaai2/baladymall-sub000/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory cart store ---

type memCarts struct {
	mu      sync.Mutex
	carts   map[string]*domain.Cart
	saves   int
	saveErr error
}

func newMemCarts() *memCarts {
	return &memCarts{carts: map[string]*domain.Cart{}}
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
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.carts[cart.UserID] = cart.Clone()
	return nil
}

func (m *memCarts) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *memCarts) put(c *domain.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
}

func (m *memCarts) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// --- In-memory catalog and order engine sharing one stock table ---

type memStore struct {
	mu       sync.Mutex
	products map[string]domain.ProductSnapshot
	orders   map[string]*domain.Order
	readErr  error
	// beforeCommit runs inside Create before stock is checked.
	beforeCommit func()
}

func newMemStore(products ...domain.ProductSnapshot) *memStore {
	s := &memStore{products: map[string]domain.ProductSnapshot{}, orders: map[string]*domain.Order{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.ProductSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := map[string]domain.ProductSnapshot{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, d *domain.OrderDraft) (*domain.Order, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if s.beforeCommit != nil {
		s.beforeCommit()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range d.Lines {
		p, ok := s.products[l.ProductID]
		if !ok || !p.IsActive {
			return nil, &domain.CatalogInconsistencyError{ProductID: l.ProductID, Reason: "gone"}
		}
		if p.TracksStock() && p.StockQuantity < l.Quantity {
			return nil, &domain.StockConflictError{ProductID: l.ProductID, Requested: l.Quantity, Available: p.StockQuantity}
		}
	}
	for _, l := range d.Lines {
		p := s.products[l.ProductID]
		if p.TracksStock() {
			p.StockQuantity -= l.Quantity
			s.products[l.ProductID] = p
		}
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          d.UserID,
		Status:          d.Status(),
		PaymentMethod:   d.PaymentMethod,
		Currency:        d.Currency,
		Totals:          d.Totals,
		ShippingAddress: d.ShippingAddress,
		Notes:           d.Notes,
		Lines:           d.Lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *memStore) GetByID(_ context.Context, orderID, userID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, apperrors.NotFound("order", orderID)
	}
	return o, nil
}

func (s *memStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.OrderSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.OrderSummary
	for _, o := range s.orders {
		if o.UserID == userID {
			all = append(all, domain.OrderSummary{ID: o.ID, Status: o.Status, Total: o.Totals.Total, LineCount: len(o.Lines), CreatedAt: o.CreatedAt})
		}
	}
	total := len(all)
	if offset >= total {
		return []domain.OrderSummary{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].StockQuantity
}

func (s *memStore) setProduct(p domain.ProductSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// --- Events and notifications ---

type recordedEvents struct {
	mu      sync.Mutex
	topics  []string
	failed  []string
	failErr error
}

func (r *recordedEvents) add(topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return r.failErr
}

func (r *recordedEvents) PublishCartUpdated(context.Context, *domain.Cart) error {
	return r.add("cart.updated")
}

func (r *recordedEvents) PublishCartCleared(_ context.Context, _, reason string) error {
	return r.add("cart.cleared:" + reason)
}

func (r *recordedEvents) PublishOrderCreated(context.Context, *domain.Order) error {
	return r.add("order.created")
}

func (r *recordedEvents) PublishCheckoutFailed(_ context.Context, _, reason, _ string) error {
	r.mu.Lock()
	r.failed = append(r.failed, reason)
	r.mu.Unlock()
	return r.add("checkout.failed")
}

func (r *recordedEvents) has(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu       sync.Mutex
	orders   []string
	ctxAlive []bool
}

func (n *recordingNotifier) OrderPlaced(ctx context.Context, order *domain.Order) notification.Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.ID)
	n.ctxAlive = append(n.ctxAlive, ctx.Err() == nil)
	return notification.Report{Sent: 1}
}

// --- testify mocks ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, d *domain.OrderDraft) (*domain.Order, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
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

// --- Fixtures ---

const (
	testUser = "3f1c6c5e-8d3a-4f7e-9b1a-2c4d5e6f7a8b"
	productP = "11111111-1111-1111-1111-111111111111"
	productQ = "22222222-2222-2222-2222-222222222222"
)

func lamp(stock int) domain.ProductSnapshot {
	return domain.ProductSnapshot{ID: productP, Name: "Copper Lamp", Price: 10000, StockQuantity: stock, IsActive: true, BrandID: "brand-1"}
}

func rug(stock int) domain.ProductSnapshot {
	return domain.ProductSnapshot{ID: productQ, Name: "Wool Rug", Price: 2500, StockQuantity: stock, IsActive: true, BrandID: "brand-2"}
}

func validShipping() domain.ShippingInput {
	return domain.ShippingInput{
		FullName: "Mona Hassan",
		Phone:    "+20 100 123 4567",
		Line1:    "12 Tahrir St",
		City:     "Cairo",
		Country:  "EG",
	}
}

func cod() domain.PaymentInput {
	return domain.PaymentInput{Method: domain.PaymentCashOnDelivery}
}

type harness struct {
	carts    *memCarts
	store    *memStore
	events   *recordedEvents
	notifier *recordingNotifier
	cart     *CartService
	checkout *CheckoutService
}

func newHarness(products ...domain.ProductSnapshot) *harness {
	h := &harness{
		carts:    newMemCarts(),
		store:    newMemStore(products...),
		events:   &recordedEvents{},
		notifier: &recordingNotifier{},
	}
	logger := newTestLogger()
	h.cart = NewCartService(h.carts, h.store, h.events, logger, DefaultCartLimits())
	v := NewCartValidator(h.carts, h.store, logger)
	h.checkout = NewCheckoutService(h.cart, v, h.store, Pricing{}, h.events, h.notifier, logger,
		CheckoutConfig{Currency: "EGP", NotifyTimeout: time.Second})
	return h
}

func mustAdd(h *harness, userID, productID string, qty int) {
	if _, err := h.cart.AddItem(context.Background(), userID, productID, qty); err != nil {
		panic(fmt.Sprintf("add %s: %v", productID, err))
	}
}
