package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCart is returned when checkout is attempted with nothing to buy.
var ErrEmptyCart = errors.New("cart is empty")

// StockConflictError means the requested quantity could not be reserved at
// commit time. Notices carries the corrections applied to the cart afterwards.
type StockConflictError struct {
	ProductID string
	Requested int
	Available int
	Notices   []Notice
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// CatalogInconsistencyError means a product vanished or was deactivated
// between validation and commit.
type CatalogInconsistencyError struct {
	ProductID string
	Reason    string
	Notices   []Notice
}

func (e *CatalogInconsistencyError) Error() string {
	return fmt.Sprintf("catalog inconsistency on product %s: %s", e.ProductID, e.Reason)
}

// CartChangedError aborts checkout because a fresh validation changed the cart.
type CartChangedError struct {
	Notices []Notice
}

func (e *CartChangedError) Error() string {
	kinds := make([]string, len(e.Notices))
	for i, n := range e.Notices {
		kinds[i] = string(n.Kind)
	}
	return fmt.Sprintf("cart changed during checkout: %s", strings.Join(kinds, ", "))
}

// PersistenceError wraps a driver or transaction failure. Retryable failures
// (deadlock, lock timeout, serialization, deadline) may succeed if the user
// tries again.
type PersistenceError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotificationError records a failed or skipped message. It is logged, never
// returned to a checkout caller.
type NotificationError struct {
	OrderID   string
	Recipient string
	Audience  string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s %q for order %s: %v", e.Audience, e.Recipient, e.OrderID, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// NoticesOf returns the cart corrections carried by err, if any.
func NoticesOf(err error) []Notice {
	var sc *StockConflictError
	if errors.As(err, &sc) {
		return sc.Notices
	}
	var ci *CatalogInconsistencyError
	if errors.As(err, &ci) {
		return ci.Notices
	}
	var cc *CartChangedError
	if errors.As(err, &cc) {
		return cc.Notices
	}
	return nil
}
