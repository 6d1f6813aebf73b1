package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/internal/repository"
	apperrors "github.com/Papaai2/baladymall-sub000/pkg/errors"
	"github.com/Papaai2/baladymall-sub000/pkg/validator"
)

// Default cart limits. Both are overridable through configuration.
const (
	DefaultMaxQuantityPerLine = 100
	DefaultMaxLinesPerCart    = 50
)

// Cart-cleared reasons carried on cart.cleared events.
const (
	ClearReasonUser        = "user_request"
	ClearReasonOrderPlaced = "order_placed"
)

// CartEvents publishes cart changes. Failures are logged, never returned to
// the shopper.
type CartEvents interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, userID, reason string) error
}

// CartLimits bounds what a single cart may hold.
type CartLimits struct {
	MaxQuantityPerLine int
	MaxLinesPerCart    int
}

// DefaultCartLimits returns the default limits.
func DefaultCartLimits() CartLimits {
	return CartLimits{MaxQuantityPerLine: DefaultMaxQuantityPerLine, MaxLinesPerCart: DefaultMaxLinesPerCart}
}

// CartService implements the cart store operations.
type CartService struct {
	repo    repository.CartRepository
	catalog repository.CatalogReader
	events  CartEvents
	logger  *slog.Logger
	limits  CartLimits
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, catalog repository.CatalogReader, events CartEvents, logger *slog.Logger, limits CartLimits) *CartService {
	return &CartService{
		repo:    repo,
		catalog: catalog,
		events:  events,
		logger:  logger,
		limits:  limits,
	}
}

// Items returns the user's cart. A missing cart is an empty cart.
func (s *CartService) Items(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	return loadCart(ctx, s.repo, userID)
}

// AddItem adds qty units of productID, summing into an existing line. The
// current catalog price is remembered on a new line.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if qty < 1 {
		return nil, fieldError("quantity", "gte", "must be at least 1")
	}

	cart, err := loadCart(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	existing := cart.Quantity(productID)
	if qty > s.limits.MaxQuantityPerLine-existing {
		return nil, fieldError("quantity", "lte",
			fmt.Sprintf("must not bring the line above %d units", s.limits.MaxQuantityPerLine))
	}
	if existing == 0 && len(cart.Lines) >= s.limits.MaxLinesPerCart {
		return nil, fieldError("product_id", "max",
			fmt.Sprintf("cart cannot hold more than %d different products", s.limits.MaxLinesPerCart))
	}

	products, err := s.catalog.GetProductsByIDs(ctx, []string{productID})
	if err != nil {
		return nil, fmt.Errorf("look up product: %w", err)
	}
	product, ok := products[productID]
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	if !product.IsActive {
		return nil, apperrors.Unprocessable("PRODUCT_UNAVAILABLE", "this product is no longer sold")
	}

	cart.Add(productID, qty)
	if existing == 0 {
		cart.Lines[len(cart.Lines)-1].UnitPrice = product.Price
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", cart.Quantity(productID)),
	)
	return cart, nil
}

// UpdateItem sets the quantity of productID. qty <= 0 removes the line, and
// removing an absent line succeeds.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if qty > s.limits.MaxQuantityPerLine {
		return nil, fieldError("quantity", "lte",
			fmt.Sprintf("must be at most %d", s.limits.MaxQuantityPerLine))
	}
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	cart, err := loadCart(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := cart.Line(productID); !ok {
		return nil, apperrors.NotFound("cart item", productID)
	}

	cart.Set(productID, qty)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", qty),
	)
	return cart, nil
}

// RemoveItem deletes productID's line. Removing an absent line is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := loadCart(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if !cart.Remove(productID) {
		return cart, nil
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)
	return cart, nil
}

// Clear deletes the user's cart.
func (s *CartService) Clear(ctx context.Context, userID, reason string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	if err := s.events.PublishCartCleared(ctx, userID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
	return nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) error {
	if err := s.repo.Save(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if err := s.events.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", cart.UserID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// loadCart returns the stored cart or a new empty one.
func loadCart(ctx context.Context, repo repository.CartRepository, userID string) (*domain.Cart, error) {
	cart, err := repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func fieldError(field, tag, msg string) *validator.ValidationError {
	return &validator.ValidationError{Errors: []validator.FieldError{{Field: field, Tag: tag, Message: msg}}}
}
