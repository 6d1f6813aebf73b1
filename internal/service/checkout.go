package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/internal/notification"
	"github.com/Papaai2/baladymall-sub000/internal/repository"
	apperrors "github.com/Papaai2/baladymall-sub000/pkg/errors"
	"github.com/Papaai2/baladymall-sub000/pkg/validator"
)

// OrderEvents publishes checkout outcomes.
type OrderEvents interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishCheckoutFailed(ctx context.Context, userID, reason, productID string) error
}

// Notifier tells customers and brands about a committed order.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order) notification.Report
}

// CheckoutConfig holds checkout settings.
type CheckoutConfig struct {
	Currency string
	// NotifyTimeout bounds notification delivery after commit.
	NotifyTimeout time.Duration
}

// CheckoutService drives a checkout attempt from submitted input to a
// committed order.
type CheckoutService struct {
	carts     *CartService
	validator *CartValidator
	orders    repository.OrderRepository
	pricing   Pricing
	events    OrderEvents
	notifier  Notifier
	logger    *slog.Logger
	cfg       CheckoutConfig
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	carts *CartService,
	cartValidator *CartValidator,
	orders repository.OrderRepository,
	pricing Pricing,
	events OrderEvents,
	notifier Notifier,
	logger *slog.Logger,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		validator: cartValidator,
		orders:    orders,
		pricing:   pricing,
		events:    events,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Preview validates the cart and prices it for the checkout page.
func (s *CheckoutService) Preview(ctx context.Context, userID string) (*domain.CheckoutPreview, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to check out")
	}

	validated, err := s.validator.Validate(ctx, userID)
	if err != nil {
		return nil, err
	}
	totals, err := s.pricing.Totals(ctx, validated, domain.Address{})
	if err != nil {
		return nil, err
	}

	return &domain.CheckoutPreview{
		Cart:       validated,
		Totals:     totals,
		Currency:   s.cfg.Currency,
		CanProceed: !validated.Blocking() && !validated.IsEmpty(),
	}, nil
}

// checkoutForm groups the submitted input so field errors carry a
// "shipping." or "payment." prefix.
type checkoutForm struct {
	Shipping domain.ShippingInput `json:"shipping"`
	Payment  domain.PaymentInput  `json:"payment"`
}

// attempt tracks the state of one PlaceOrder call.
type attempt struct {
	userID string
	state  domain.CheckoutState
	start  time.Time
	logger *slog.Logger
}

func (a *attempt) advance(ctx context.Context, next domain.CheckoutState) error {
	if !a.state.CanTransitionTo(next) {
		return fmt.Errorf("checkout cannot move from %s to %s", a.state, next)
	}
	a.logger.DebugContext(ctx, "checkout state changed",
		slog.String("user_id", a.userID),
		slog.String("from", string(a.state)),
		slog.String("to", string(next)),
	)
	a.state = next
	return nil
}

// PlaceOrder turns the user's cart into an order. On success the cart is
// cleared and notifications are sent. On failure nothing is persisted and the
// returned error is one of *validator.ValidationError, domain.ErrEmptyCart,
// *domain.CartChangedError, *domain.StockConflictError,
// *domain.CatalogInconsistencyError or *domain.PersistenceError. The write is
// never retried here.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID string, shipping domain.ShippingInput, payment domain.PaymentInput) (*domain.CheckoutResult, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to check out")
	}

	a := &attempt{userID: userID, state: domain.StateCollectingInput, start: time.Now(), logger: s.logger}

	order, err := s.run(ctx, a, shipping, payment)
	if err != nil {
		return nil, s.fail(ctx, a, err)
	}

	if err := a.advance(ctx, domain.StateDone); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.record(a, OutcomeSuccess)
	s.afterCommit(ctx, order)

	s.logger.InfoContext(ctx, "order placed",
		slog.String("user_id", userID),
		slog.String("order_id", order.ID),
		slog.Int64("total", order.Totals.Total),
		slog.Int("lines", len(order.Lines)),
	)
	return &domain.CheckoutResult{OrderID: order.ID, Order: order, State: a.state}, nil
}

func (s *CheckoutService) run(ctx context.Context, a *attempt, shipping domain.ShippingInput, payment domain.PaymentInput) (*domain.Order, error) {
	cart, err := s.carts.Items(ctx, a.userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	if err := validateForm(shipping, payment); err != nil {
		return nil, err
	}

	if err := a.advance(ctx, domain.StateValidating); err != nil {
		return nil, err
	}
	validated, err := s.validator.Validate(ctx, a.userID)
	if err != nil {
		return nil, err
	}
	if validated.Blocking() {
		return nil, &domain.CartChangedError{Notices: validated.Notices}
	}
	if validated.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	addr := shipping.Address()
	totals, err := s.pricing.Totals(ctx, validated, addr)
	if err != nil {
		return nil, err
	}
	draft := domain.NewOrderDraft(validated, addr, payment.Method, s.cfg.Currency, shipping.Notes, totals)
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	if err := a.advance(ctx, domain.StateCommitting); err != nil {
		return nil, err
	}
	order, err := s.orders.Create(ctx, draft)
	if err != nil {
		return nil, s.repair(ctx, a.userID, err)
	}
	return order, nil
}

// validateForm checks the shipping and payment input and returns every
// problem at once.
func validateForm(shipping domain.ShippingInput, payment domain.PaymentInput) error {
	verr := &validator.ValidationError{}
	if err := validator.Validate(checkoutForm{Shipping: shipping, Payment: payment}); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if _, rejected := verr.Field("payment.method"); !rejected && !payment.Method.Enabled() {
		verr.Errors = append(verr.Errors, validator.FieldError{
			Field:   "payment.method",
			Tag:     "enabled",
			Message: "is not available yet; choose cash on delivery",
		})
	}
	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// repair re-validates the cart after a commit-time conflict so the shopper
// returns to a corrected cart, and attaches the resulting notices to err.
func (s *CheckoutService) repair(ctx context.Context, userID string, err error) error {
	var (
		conflict     *domain.StockConflictError
		inconsistent *domain.CatalogInconsistencyError
	)
	if !errors.As(err, &conflict) && !errors.As(err, &inconsistent) {
		return err
	}

	validated, verr := s.validator.Validate(ctx, userID)
	if verr != nil {
		s.logger.WarnContext(ctx, "cart repair after conflict failed",
			slog.String("user_id", userID),
			slog.String("error", verr.Error()),
		)
		return err
	}
	if conflict != nil {
		conflict.Notices = validated.Notices
	} else {
		inconsistent.Notices = validated.Notices
	}
	return err
}

func (s *CheckoutService) fail(ctx context.Context, a *attempt, err error) error {
	outcome, productID := classify(err)
	if a.state != domain.StateFailed {
		_ = a.advance(ctx, domain.StateFailed)
	}
	s.record(a, outcome)

	attrs := []any{
		slog.String("user_id", a.userID),
		slog.String("outcome", outcome),
		slog.String("error", err.Error()),
	}
	if outcome == OutcomePersistenceFailure || outcome == OutcomeInvalidDraft || outcome == OutcomeError {
		s.logger.ErrorContext(ctx, "checkout failed", attrs...)
	} else {
		s.logger.InfoContext(ctx, "checkout rejected", attrs...)
	}

	if outcome != OutcomeInvalidInput {
		if perr := s.events.PublishCheckoutFailed(ctx, a.userID, outcome, productID); perr != nil {
			s.logger.ErrorContext(ctx, "failed to publish checkout.failed event",
				slog.String("user_id", a.userID),
				slog.String("error", perr.Error()),
			)
		}
	}
	return err
}

// classify maps a checkout error to its outcome label and offending product.
func classify(err error) (outcome, productID string) {
	var (
		verr         *validator.ValidationError
		changed      *domain.CartChangedError
		conflict     *domain.StockConflictError
		inconsistent *domain.CatalogInconsistencyError
		persistence  *domain.PersistenceError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return OutcomeEmptyCart, ""
	case errors.As(err, &verr):
		return OutcomeInvalidInput, ""
	case errors.As(err, &changed):
		return OutcomeCartChanged, ""
	case errors.As(err, &conflict):
		return OutcomeStockConflict, conflict.ProductID
	case errors.As(err, &inconsistent):
		return OutcomeCatalogInconsistency, inconsistent.ProductID
	case errors.As(err, &persistence):
		return OutcomePersistenceFailure, ""
	case errors.Is(err, domain.ErrInvalidDraft):
		return OutcomeInvalidDraft, ""
	default:
		return OutcomeError, ""
	}
}

func (s *CheckoutService) record(a *attempt, outcome string) {
	checkoutAttempts.WithLabelValues(outcome).Inc()
	checkoutDuration.WithLabelValues(outcome).Observe(time.Since(a.start).Seconds())
}

// afterCommit runs the post-commit side effects. None of them can change the
// outcome of a committed order.
func (s *CheckoutService) afterCommit(ctx context.Context, order *domain.Order) {
	// Side effects must finish even if the client has gone away.
	ctx = context.WithoutCancel(ctx)

	if err := s.carts.Clear(ctx, order.UserID, ClearReasonOrderPlaced); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after order",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	nctx := ctx
	if s.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		defer cancel()
	}
	s.notifier.OrderPlaced(nctx, order)
}

// GetOrder returns a confirmed order for its owner.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to view orders")
	}
	order, err := s.orders.GetByID(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns a page of the user's order history, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]domain.OrderSummary, int, error) {
	if userID == "" {
		return nil, 0, apperrors.Unauthorized("sign in to view orders")
	}
	orders, total, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}
