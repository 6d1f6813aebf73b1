package domain

import "fmt"

// NoticeKind classifies a correction the validator made to a cart.
type NoticeKind string

const (
	NoticeProductUnavailable NoticeKind = "product_unavailable"
	NoticeProductInactive    NoticeKind = "product_inactive"
	NoticeOutOfStock         NoticeKind = "out_of_stock"
	NoticeQuantityClamped    NoticeKind = "quantity_clamped"
	NoticePriceChanged       NoticeKind = "price_changed"
	NoticeInvalidQuantity    NoticeKind = "invalid_quantity"
)

// Notice tells the shopper about a change made to their cart.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name,omitempty"`
	Message     string     `json:"message"`
	Previous    int64      `json:"previous,omitempty"`
	Current     int64      `json:"current,omitempty"`
}

// NewNotice builds a notice with a human-readable message for kind.
func NewNotice(kind NoticeKind, productID, name string, previous, current int64) Notice {
	label := name
	if label == "" {
		label = "An item"
	}

	var msg string
	switch kind {
	case NoticeProductUnavailable:
		msg = "An item in your cart is no longer available and was removed."
	case NoticeProductInactive:
		msg = fmt.Sprintf("%s is no longer sold and was removed from your cart.", label)
	case NoticeOutOfStock:
		msg = fmt.Sprintf("%s is out of stock and was removed from your cart.", label)
	case NoticeQuantityClamped:
		msg = fmt.Sprintf("Only %d of %s left in stock; your quantity was reduced from %d.", current, label, previous)
	case NoticePriceChanged:
		msg = fmt.Sprintf("The price of %s changed from %s to %s.", label, FormatAmount(previous), FormatAmount(current))
	case NoticeInvalidQuantity:
		msg = fmt.Sprintf("%s had an invalid quantity and was removed from your cart.", label)
	default:
		msg = fmt.Sprintf("%s was updated.", label)
	}

	return Notice{Kind: kind, ProductID: productID, ProductName: name, Message: msg, Previous: previous, Current: current}
}

// ValidatedLine is a cart line priced against a live snapshot.
type ValidatedLine struct {
	ProductID        string `json:"product_id"`
	Name             string `json:"name"`
	BrandID          string `json:"brand_id"`
	UnitPrice        int64  `json:"unit_price"`
	Quantity         int    `json:"quantity"`
	Subtotal         int64  `json:"subtotal"`
	RequiresVariants bool   `json:"requires_variants"`
}

// ValidatedCart is the output of a validator pass. Subtotal always equals the
// sum of line subtotals.
type ValidatedCart struct {
	UserID   string          `json:"user_id"`
	Lines    []ValidatedLine `json:"lines"`
	Subtotal int64           `json:"subtotal"`
	Notices  []Notice        `json:"notices"`
}

// AddLine appends a priced line and keeps Subtotal in step.
func (v *ValidatedCart) AddLine(p ProductSnapshot, qty int) {
	line := ValidatedLine{
		ProductID:        p.ID,
		Name:             p.Name,
		BrandID:          p.BrandID,
		UnitPrice:        p.Price,
		Quantity:         qty,
		Subtotal:         p.Price * int64(qty),
		RequiresVariants: p.RequiresVariants,
	}
	v.Lines = append(v.Lines, line)
	v.Subtotal += line.Subtotal
}

// Blocking reports whether notices must be shown before checkout can proceed.
func (v *ValidatedCart) Blocking() bool {
	return len(v.Notices) > 0
}

// IsEmpty reports whether no purchasable lines remain.
func (v *ValidatedCart) IsEmpty() bool {
	return len(v.Lines) == 0
}
