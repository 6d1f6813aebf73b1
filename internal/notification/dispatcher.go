package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/internal/repository"
	"github.com/Papaai2/baladymall-sub000/pkg/httpclient"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifications_total",
	Help: "Order notifications by audience and outcome.",
}, []string{"audience", "outcome"})

// ErrNoRecipient marks a message skipped because no address is on file.
var ErrNoRecipient = errors.New("no recipient address")

// Report summarises one dispatch.
type Report struct {
	Sent     int
	Failures []*domain.NotificationError
}

// Dispatcher sends the order confirmation to the customer and one notice to
// each brand in the order. Delivery is best effort: failures are logged and
// reported, never returned as errors.
type Dispatcher struct {
	sender    Sender
	directory repository.ContactDirectory
	logger    *slog.Logger
	limit     int
}

// NewDispatcher creates a dispatcher sending at most limit messages at once.
func NewDispatcher(sender Sender, directory repository.ContactDirectory, logger *slog.Logger, limit int) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	return &Dispatcher{sender: sender, directory: directory, logger: logger, limit: limit}
}

// OrderPlaced notifies everyone with a stake in order.
func (d *Dispatcher) OrderPlaced(ctx context.Context, order *domain.Order) Report {
	var (
		mu     sync.Mutex
		report Report
	)
	fail := func(audience, recipient string, err error) {
		nerr := &domain.NotificationError{OrderID: order.ID, Recipient: recipient, Audience: audience, Err: err}
		notificationsTotal.WithLabelValues(audience, failureOutcome(err)).Inc()
		d.logger.WarnContext(ctx, "notification failed",
			slog.String("order_id", order.ID),
			slog.String("audience", audience),
			slog.String("recipient", recipient),
			slog.String("error", err.Error()),
		)
		mu.Lock()
		report.Failures = append(report.Failures, nerr)
		mu.Unlock()
	}

	msgs := d.resolve(ctx, order, fail)

	var g errgroup.Group
	g.SetLimit(d.limit)
	for _, m := range msgs {
		g.Go(func() error {
			if err := d.sender.Send(ctx, m.to, m.subject, m.body); err != nil {
				fail(m.audience, m.to, err)
				return nil
			}
			notificationsTotal.WithLabelValues(m.audience, "sent").Inc()
			mu.Lock()
			report.Sent++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.logger.InfoContext(ctx, "order notifications dispatched",
		slog.String("order_id", order.ID),
		slog.Int("sent", report.Sent),
		slog.Int("failed", len(report.Failures)),
	)
	return report
}

// failureOutcome separates messages the relay refused (bad address, 4xx)
// from delivery failures worth alerting on.
func failureOutcome(err error) string {
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.ClientError() {
		return "rejected"
	}
	return "failed"
}

// resolve looks up addresses and builds the messages. Lookups that fail are
// reported through fail and the message is skipped.
func (d *Dispatcher) resolve(ctx context.Context, order *domain.Order, fail func(audience, recipient string, err error)) []message {
	var msgs []message

	email, err := d.directory.CustomerEmail(ctx, order.UserID)
	switch {
	case err != nil:
		fail(audienceCustomer, order.UserID, fmt.Errorf("lookup customer email: %w", err))
	case email == "":
		fail(audienceCustomer, order.UserID, ErrNoRecipient)
	default:
		msgs = append(msgs, customerMessage(order, email))
	}

	brandIDs := order.BrandIDs()
	if len(brandIDs) == 0 {
		return msgs
	}

	contacts, err := d.directory.BrandContacts(ctx, brandIDs)
	if err != nil {
		for _, id := range brandIDs {
			fail(audienceBrand, id, fmt.Errorf("lookup brand contacts: %w", err))
		}
		return msgs
	}
	for _, id := range brandIDs {
		to, ok := contacts[id]
		if !ok || to == "" {
			fail(audienceBrand, id, ErrNoRecipient)
			continue
		}
		msgs = append(msgs, brandMessage(order, id, to))
	}
	return msgs
}
