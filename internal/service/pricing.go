package service

import (
	"context"
	"fmt"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
)

// ShippingPolicy prices delivery of a validated cart to addr.
type ShippingPolicy interface {
	Shipping(ctx context.Context, cart *domain.ValidatedCart, addr domain.Address) (int64, error)
}

// TaxPolicy computes tax for a validated cart shipped to addr.
type TaxPolicy interface {
	Tax(ctx context.Context, cart *domain.ValidatedCart, addr domain.Address) (int64, error)
}

// DiscountPolicy computes the discount for a validated cart.
type DiscountPolicy interface {
	Discount(ctx context.Context, cart *domain.ValidatedCart) (int64, error)
}

// FlatShipping charges the same fee for every non-empty cart.
type FlatShipping int64

func (f FlatShipping) Shipping(_ context.Context, cart *domain.ValidatedCart, _ domain.Address) (int64, error) {
	if cart.IsEmpty() {
		return 0, nil
	}
	return int64(f), nil
}

// Pricing combines the pluggable policies. A nil policy contributes zero.
type Pricing struct {
	Shipping ShippingPolicy
	Tax      TaxPolicy
	Discount DiscountPolicy
}

// Totals computes every component for cart. The discount never takes the
// total below zero.
func (p Pricing) Totals(ctx context.Context, cart *domain.ValidatedCart, addr domain.Address) (domain.Totals, error) {
	var shipping, tax, discount int64
	var err error

	if p.Shipping != nil {
		if shipping, err = p.Shipping.Shipping(ctx, cart, addr); err != nil {
			return domain.Totals{}, fmt.Errorf("compute shipping: %w", err)
		}
	}
	if p.Tax != nil {
		if tax, err = p.Tax.Tax(ctx, cart, addr); err != nil {
			return domain.Totals{}, fmt.Errorf("compute tax: %w", err)
		}
	}
	if p.Discount != nil {
		if discount, err = p.Discount.Discount(ctx, cart); err != nil {
			return domain.Totals{}, fmt.Errorf("compute discount: %w", err)
		}
	}
	if shipping < 0 || tax < 0 || discount < 0 {
		return domain.Totals{}, fmt.Errorf("pricing policy returned a negative amount")
	}

	if limit := cart.Subtotal + shipping + tax; discount > limit {
		discount = limit
	}
	return domain.NewTotals(cart.Subtotal, shipping, tax, discount), nil
}
