package notification

import (
	"fmt"
	"strings"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
)

const (
	audienceCustomer = "customer"
	audienceBrand    = "brand"
)

type message struct {
	audience string
	key      string // user or brand ID
	to       string
	subject  string
	body     string
}

func customerMessage(order *domain.Order, to string) message {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order.\n\n")
	fmt.Fprintf(&b, "Order: %s\nStatus: %s\nPayment: %s\n\n", order.ID, order.Status, order.PaymentMethod)
	writeLines(&b, order.Lines)
	t := order.Totals
	fmt.Fprintf(&b, "\nSubtotal: %s\n", domain.FormatAmount(t.Subtotal))
	if t.Shipping > 0 {
		fmt.Fprintf(&b, "Shipping: %s\n", domain.FormatAmount(t.Shipping))
	}
	if t.Tax > 0 {
		fmt.Fprintf(&b, "Tax: %s\n", domain.FormatAmount(t.Tax))
	}
	if t.Discount > 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", domain.FormatAmount(t.Discount))
	}
	fmt.Fprintf(&b, "Total: %s %s\n", domain.FormatAmount(t.Total), order.Currency)

	a := order.ShippingAddress
	fmt.Fprintf(&b, "\nShipping to:\n%s\n%s\n", a.FullName, a.Line1)
	if a.Line2 != "" {
		fmt.Fprintf(&b, "%s\n", a.Line2)
	}
	fmt.Fprintf(&b, "%s %s\n%s\n", a.City, a.PostalCode, a.Country)

	return message{
		audience: audienceCustomer,
		key:      order.UserID,
		to:       to,
		subject:  fmt.Sprintf("Your order %s has been received", shortID(order.ID)),
		body:     b.String(),
	}
}

func brandMessage(order *domain.Order, brandID, to string) message {
	var lines []domain.OrderLine
	for _, l := range order.Lines {
		if l.BrandID == brandID {
			lines = append(lines, l)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A new order includes your products.\n\nOrder: %s\nPayment: %s\n\n", order.ID, order.PaymentMethod)
	writeLines(&b, lines)
	a := order.ShippingAddress
	fmt.Fprintf(&b, "\nShip to: %s, %s, %s\n", a.FullName, a.City, a.Country)

	return message{
		audience: audienceBrand,
		key:      brandID,
		to:       to,
		subject:  fmt.Sprintf("New order %s", shortID(order.ID)),
		body:     b.String(),
	}
}

func writeLines(b *strings.Builder, lines []domain.OrderLine) {
	for _, l := range lines {
		fmt.Fprintf(b, "  %d x %s @ %s = %s\n", l.Quantity, l.ProductName,
			domain.FormatAmount(l.UnitPrice), domain.FormatAmount(l.Subtotal))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
