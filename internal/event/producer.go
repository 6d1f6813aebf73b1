package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	pkgkafka "github.com/Papaai2/baladymall-sub000/pkg/kafka"
)

// Kafka topics for storefront domain events.
const (
	TopicCartUpdated    = "ecommerce.cart.updated"
	TopicCartCleared    = "ecommerce.cart.cleared"
	TopicOrderCreated   = "ecommerce.order.created"
	TopicCheckoutFailed = "ecommerce.checkout.failed"

	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
	SourceStorefront   = "storefront"
)

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID string            `json:"user_id"`
	Lines  []domain.CartLine `json:"lines"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// OrderLineData is one line of an order.created event. BrandID lets
// downstream consumers route vendor commission.
type OrderLineData struct {
	ProductID string `json:"product_id"`
	BrandID   string `json:"brand_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Currency      string          `json:"currency"`
	Totals        domain.Totals   `json:"totals"`
	Lines         []OrderLineData `json:"lines"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
	ProductID string `json:"product_id,omitempty"`
}

// sink is the part of *pkgkafka.Producer used here.
type sink interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  sink
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka sink, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any, metadata map[string]string) error {
	event, err := pkgkafka.NewEvent(ctx, topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	for k, v := range metadata {
		event.WithMetadata(k, v)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	return p.publish(ctx, TopicCartUpdated, cart.UserID, AggregateTypeCart, CartUpdatedData{
		UserID: cart.UserID,
		Lines:  cart.Lines,
	}, nil)
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID, reason string) error {
	return p.publish(ctx, TopicCartCleared, userID, AggregateTypeCart, CartClearedData{
		UserID: userID,
		Reason: reason,
	}, nil)
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	lines := make([]OrderLineData, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = OrderLineData{
			ProductID: l.ProductID,
			BrandID:   l.BrandID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		}
	}

	err := p.publish(ctx, TopicOrderCreated, order.ID, AggregateTypeOrder, OrderCreatedData{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		Currency:      order.Currency,
		Totals:        order.Totals,
		Lines:         lines,
	}, map[string]string{"payment_method": string(order.PaymentMethod)})
	if err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.created event", slog.String("order_id", order.ID))
	return nil
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, userID, reason, productID string) error {
	return p.publish(ctx, TopicCheckoutFailed, userID, AggregateTypeCart, CheckoutFailedData{
		UserID:    userID,
		Reason:    reason,
		ProductID: productID,
	}, map[string]string{"reason": reason})
}

// Noop discards every event. It is used when no Kafka brokers are configured.
type Noop struct{}

func (Noop) PublishCartUpdated(context.Context, *domain.Cart) error              { return nil }
func (Noop) PublishCartCleared(context.Context, string, string) error            { return nil }
func (Noop) PublishOrderCreated(context.Context, *domain.Order) error            { return nil }
func (Noop) PublishCheckoutFailed(context.Context, string, string, string) error { return nil }
