package repository

import (
	"context"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
)

// CartRepository persists session carts.
type CartRepository interface {
	// Get returns the cart for userID, or an error wrapping apperrors.ErrNotFound.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save overwrites the stored cart. Last write wins.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the cart. Deleting a missing cart is not an error.
	Delete(ctx context.Context, userID string) error
}

// CatalogReader is the read-only product catalog.
type CatalogReader interface {
	// GetProductsByIDs returns snapshots keyed by product ID. Unknown IDs are
	// absent from the map.
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.ProductSnapshot, error)
}

// OrderRepository creates and reads orders.
type OrderRepository interface {
	// Create atomically writes the order, its lines and the stock decrements.
	Create(ctx context.Context, draft *domain.OrderDraft) (*domain.Order, error)

	// GetByID returns the order owned by userID.
	GetByID(ctx context.Context, orderID, userID string) (*domain.Order, error)

	// ListByUser returns a page of userID's orders, newest first, and the
	// total number of orders the user has.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.OrderSummary, int, error)
}

// ContactDirectory resolves notification recipients.
type ContactDirectory interface {
	CustomerEmail(ctx context.Context, userID string) (string, error)

	// BrandContacts returns contact emails keyed by brand ID. Brands without
	// a contact address are absent.
	BrandContacts(ctx context.Context, brandIDs []string) (map[string]string, error)
}
