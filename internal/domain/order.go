package domain

import (
	"errors"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order. This service only ever
// writes the initial status; later transitions belong to order management.
type OrderStatus string

const (
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusPendingPayment OrderStatus = "pending_payment"
)

// PaymentMethod identifies how the customer pays.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

// Enabled reports whether the method can be selected at checkout today.
// Card and bank transfer are reserved for a later payment integration.
func (m PaymentMethod) Enabled() bool {
	return m == PaymentCashOnDelivery
}

// InitialStatus returns the status a new order starts in for method m.
func InitialStatus(m PaymentMethod) OrderStatus {
	if m == PaymentCashOnDelivery {
		return OrderStatusProcessing
	}
	return OrderStatusPendingPayment
}

// Address is the shipping-address snapshot stored on an order.
type Address struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// Totals holds every monetary component of an order in minor units.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// NewTotals derives Total from its components.
func NewTotals(subtotal, shipping, tax, discount int64) Totals {
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal + shipping + tax - discount,
	}
}

// OrderLine is one purchased product. UnitPrice is the price captured at
// commit and is never re-derived.
type OrderLine struct {
	ProductID        string `json:"product_id"`
	ProductName      string `json:"product_name"`
	BrandID          string `json:"brand_id"`
	Quantity         int    `json:"quantity"`
	UnitPrice        int64  `json:"unit_price"`
	Subtotal         int64  `json:"subtotal"`
	RequiresVariants bool   `json:"requires_variants"`
}

// Order is a committed order with its lines.
type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Status          OrderStatus   `json:"status"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	Currency        string        `json:"currency"`
	Totals          Totals        `json:"totals"`
	ShippingAddress Address       `json:"shipping_address"`
	Notes           string        `json:"notes,omitempty"`
	Lines           []OrderLine   `json:"lines"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// OrderSummary is one row of a customer's order history.
type OrderSummary struct {
	ID            string        `json:"id"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Currency      string        `json:"currency"`
	Total         int64         `json:"total"`
	LineCount     int           `json:"line_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

// BrandIDs returns the distinct brand IDs in line order.
func (o *Order) BrandIDs() []string {
	seen := make(map[string]struct{}, len(o.Lines))
	ids := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		if l.BrandID == "" {
			continue
		}
		if _, ok := seen[l.BrandID]; ok {
			continue
		}
		seen[l.BrandID] = struct{}{}
		ids = append(ids, l.BrandID)
	}
	return ids
}

// ErrInvalidDraft is wrapped by every OrderDraft.Validate failure.
var ErrInvalidDraft = errors.New("invalid order draft")

// OrderDraft is everything the transaction engine needs to create an order.
type OrderDraft struct {
	UserID          string
	PaymentMethod   PaymentMethod
	Currency        string
	Totals          Totals
	ShippingAddress Address
	Notes           string
	Lines           []OrderLine
}

// NewOrderDraft builds a draft from a validated cart. Line prices come from
// the validated snapshot.
func NewOrderDraft(cart *ValidatedCart, addr Address, method PaymentMethod, currency, notes string, totals Totals) *OrderDraft {
	lines := make([]OrderLine, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = OrderLine{
			ProductID:        l.ProductID,
			ProductName:      l.Name,
			BrandID:          l.BrandID,
			Quantity:         l.Quantity,
			UnitPrice:        l.UnitPrice,
			Subtotal:         l.Subtotal,
			RequiresVariants: l.RequiresVariants,
		}
	}
	return &OrderDraft{
		UserID:          cart.UserID,
		PaymentMethod:   method,
		Currency:        currency,
		Totals:          totals,
		ShippingAddress: addr,
		Notes:           notes,
		Lines:           lines,
	}
}

// Status returns the initial status for the draft's payment method.
func (d *OrderDraft) Status() OrderStatus {
	return InitialStatus(d.PaymentMethod)
}

// Validate checks the arithmetic and structural invariants of the draft.
func (d *OrderDraft) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidDraft)
	}
	if len(d.Lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrInvalidDraft)
	}

	var sum int64
	seen := make(map[string]struct{}, len(d.Lines))
	for _, l := range d.Lines {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: product %s has quantity %d", ErrInvalidDraft, l.ProductID, l.Quantity)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("%w: product %s has negative price", ErrInvalidDraft, l.ProductID)
		}
		if l.Subtotal != l.UnitPrice*int64(l.Quantity) {
			return fmt.Errorf("%w: product %s subtotal %d != %d x %d", ErrInvalidDraft, l.ProductID, l.Subtotal, l.UnitPrice, l.Quantity)
		}
		if _, dup := seen[l.ProductID]; dup {
			return fmt.Errorf("%w: product %s appears twice", ErrInvalidDraft, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
		sum += l.Subtotal
	}

	t := d.Totals
	if sum != t.Subtotal {
		return fmt.Errorf("%w: line sum %d != subtotal %d", ErrInvalidDraft, sum, t.Subtotal)
	}
	if t.Shipping < 0 || t.Tax < 0 || t.Discount < 0 {
		return fmt.Errorf("%w: negative adjustment", ErrInvalidDraft)
	}
	if t.Total != t.Subtotal+t.Shipping+t.Tax-t.Discount {
		return fmt.Errorf("%w: total %d does not match components", ErrInvalidDraft, t.Total)
	}
	if t.Total < 0 {
		return fmt.Errorf("%w: negative total", ErrInvalidDraft)
	}
	return nil
}
