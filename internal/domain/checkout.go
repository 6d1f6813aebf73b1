package domain

// CheckoutState is a step of a single checkout attempt.
type CheckoutState string

const (
	StateCollectingInput CheckoutState = "collecting_input"
	StateValidating      CheckoutState = "validating"
	StateCommitting      CheckoutState = "committing"
	StateDone            CheckoutState = "done"
	StateFailed          CheckoutState = "failed"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	StateCollectingInput: {StateValidating, StateFailed},
	StateValidating:      {StateCommitting, StateFailed},
	StateCommitting:      {StateDone, StateFailed},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s ends the attempt.
func (s CheckoutState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ShippingInput is the address form submitted at checkout.
type ShippingInput struct {
	FullName   string `json:"full_name" validate:"notblank,max=120"`
	Phone      string `json:"phone" validate:"notblank,phone"`
	Line1      string `json:"line1" validate:"notblank,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"notblank,max=100"`
	Region     string `json:"region" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
	Notes      string `json:"notes" validate:"max=500"`
}

// Address converts the form into the stored snapshot.
func (s ShippingInput) Address() Address {
	return Address{
		FullName:   s.FullName,
		Phone:      s.Phone,
		Line1:      s.Line1,
		Line2:      s.Line2,
		City:       s.City,
		Region:     s.Region,
		PostalCode: s.PostalCode,
		Country:    s.Country,
	}
}

// PaymentInput is the payment selection submitted at checkout.
type PaymentInput struct {
	Method PaymentMethod `json:"method" validate:"required,oneof=cash_on_delivery card bank_transfer"`
}

// CheckoutPreview is what the checkout page renders before submission.
type CheckoutPreview struct {
	Cart     *ValidatedCart `json:"cart"`
	Totals   Totals         `json:"totals"`
	Currency string         `json:"currency"`
	// CanProceed is false while notices are pending or the cart is empty.
	CanProceed bool `json:"can_proceed"`
}

// CheckoutResult is returned by a successful checkout.
type CheckoutResult struct {
	OrderID string        `json:"order_id"`
	Order   *Order        `json:"order"`
	State   CheckoutState `json:"state"`
}
