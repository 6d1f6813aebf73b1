package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/internal/repository"
)

// CartValidator reconciles a stored cart against the live catalog. Every
// correction produces a notice and the corrected cart is written back.
type CartValidator struct {
	carts   repository.CartRepository
	catalog repository.CatalogReader
	logger  *slog.Logger
}

// NewCartValidator creates a new cart validator.
func NewCartValidator(carts repository.CartRepository, catalog repository.CatalogReader, logger *slog.Logger) *CartValidator {
	return &CartValidator{carts: carts, catalog: catalog, logger: logger}
}

// Validate prices the user's cart against one catalog snapshot. A non-empty
// notice list means the shopper must review the cart before checking out.
func (v *CartValidator) Validate(ctx context.Context, userID string) (*domain.ValidatedCart, error) {
	cart, err := loadCart(ctx, v.carts, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return &domain.ValidatedCart{UserID: userID, Lines: []domain.ValidatedLine{}, Notices: []domain.Notice{}}, nil
	}

	products, err := v.catalog.GetProductsByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("load catalog snapshot: %w", err)
	}

	corrected, validated, changed := Reconcile(cart, products)
	if changed {
		if err := v.carts.Save(ctx, corrected); err != nil {
			return nil, fmt.Errorf("save corrected cart: %w", err)
		}
	}

	for _, n := range validated.Notices {
		cartNotices.WithLabelValues(string(n.Kind)).Inc()
		v.logger.InfoContext(ctx, "cart corrected",
			slog.String("user_id", userID),
			slog.String("product_id", n.ProductID),
			slog.String("kind", string(n.Kind)),
		)
	}
	return validated, nil
}

// Reconcile applies the catalog snapshot to cart without touching it. It
// returns the corrected cart, the priced view and whether anything changed.
// Lines with a quantity below 1, missing or inactive products and zero-stock
// lines are dropped; quantities
// above stock are clamped; a changed price is adopted with a notice.
func Reconcile(cart *domain.Cart, products map[string]domain.ProductSnapshot) (*domain.Cart, *domain.ValidatedCart, bool) {
	corrected := cart.Clone()
	corrected.Lines = corrected.Lines[:0:0]

	out := &domain.ValidatedCart{
		UserID:  cart.UserID,
		Lines:   make([]domain.ValidatedLine, 0, len(cart.Lines)),
		Notices: []domain.Notice{},
	}
	changed := false
	notify := func(kind domain.NoticeKind, id, name string, prev, cur int64) {
		out.Notices = append(out.Notices, domain.NewNotice(kind, id, name, prev, cur))
		changed = true
	}

	for _, line := range cart.Lines {
		p, ok := products[line.ProductID]
		switch {
		case line.Quantity < 1:
			notify(domain.NoticeInvalidQuantity, line.ProductID, p.Name, int64(line.Quantity), 0)
			continue
		case !ok:
			notify(domain.NoticeProductUnavailable, line.ProductID, "", 0, 0)
			continue
		case !p.IsActive:
			notify(domain.NoticeProductInactive, p.ID, p.Name, 0, 0)
			continue
		}

		if p.TracksStock() {
			if p.StockQuantity <= 0 {
				notify(domain.NoticeOutOfStock, p.ID, p.Name, int64(line.Quantity), 0)
				continue
			}
			if line.Quantity > p.StockQuantity {
				notify(domain.NoticeQuantityClamped, p.ID, p.Name, int64(line.Quantity), int64(p.StockQuantity))
				line.Quantity = p.StockQuantity
			}
		}

		switch {
		case line.UnitPrice == 0 && p.Price != 0:
			line.UnitPrice = p.Price
			changed = true
		case line.UnitPrice != p.Price:
			notify(domain.NoticePriceChanged, p.ID, p.Name, line.UnitPrice, p.Price)
			line.UnitPrice = p.Price
		}

		corrected.Lines = append(corrected.Lines, line)
		out.AddLine(p, line.Quantity)
	}

	if changed {
		corrected.UpdatedAt = time.Now().UTC()
	}
	return corrected, out, changed
}
