package domain

import (
	"slices"
	"time"
)

// CartLine is one product in a shopper's cart.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// UnitPrice is the price last shown to the shopper, in minor units.
	// Zero until the cart has been validated once.
	UnitPrice int64 `json:"unit_price,omitempty"`
}

// Cart is the session-scoped aggregate mapping product IDs to quantities.
// Lines keep insertion order and never hold a quantity below 1.
type Cart struct {
	UserID    string     `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart for userID.
func NewCart(userID string) *Cart {
	return &Cart{UserID: userID, Lines: []CartLine{}, UpdatedAt: time.Now().UTC()}
}

func (c *Cart) index(productID string) int {
	return slices.IndexFunc(c.Lines, func(l CartLine) bool { return l.ProductID == productID })
}

// Line returns the line for productID.
func (c *Cart) Line(productID string) (CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// Quantity returns the quantity held for productID, or 0.
func (c *Cart) Quantity(productID string) int {
	l, _ := c.Line(productID)
	return l.Quantity
}

// Add adds qty to productID's line, creating it if needed. qty below 1 is ignored.
func (c *Cart) Add(productID string, qty int) {
	if qty < 1 {
		return
	}
	if i := c.index(productID); i >= 0 {
		c.Lines[i].Quantity += qty
	} else {
		c.Lines = append(c.Lines, CartLine{ProductID: productID, Quantity: qty})
	}
	c.touch()
}

// Set replaces productID's quantity. qty <= 0 removes the line; calling Set
// twice with the same arguments leaves the cart as after the first call.
func (c *Cart) Set(productID string, qty int) {
	if qty <= 0 {
		c.Remove(productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		if c.Lines[i].Quantity == qty {
			return
		}
		c.Lines[i].Quantity = qty
	} else {
		c.Lines = append(c.Lines, CartLine{ProductID: productID, Quantity: qty})
	}
	c.touch()
}

// Remove deletes productID's line and reports whether it existed.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Lines = slices.Delete(c.Lines, i, i+1)
	c.touch()
	return true
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ProductIDs returns the product IDs in line order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ProductID
	}
	return ids
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Lines = slices.Clone(c.Lines)
	if cp.Lines == nil {
		cp.Lines = []CartLine{}
	}
	return &cp
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
