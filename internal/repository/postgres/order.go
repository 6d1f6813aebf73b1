package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/pkg/database"
	apperrors "github.com/Papaai2/baladymall-sub000/pkg/errors"
)

const (
	insertOrderSQL = `
		INSERT INTO orders (user_id, status, payment_method, currency,
			subtotal_amount, shipping_amount, tax_amount, discount_amount, total_amount,
			shipping_address, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	lockProductSQL = `
		SELECT is_active, stock_quantity, requires_variants
		FROM products
		WHERE id = $1
		FOR UPDATE`

	insertOrderLineSQL = `
		INSERT INTO order_lines (order_id, product_id, brand_id, product_name, quantity, unit_price, line_subtotal)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7)`

	// The guard makes the decrement safe even without the row lock above.
	decrementStockSQL = `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1`

	getOrderSQL = `
		SELECT
			o.id, o.user_id, o.status, o.payment_method, o.currency,
			o.subtotal_amount, o.shipping_amount, o.tax_amount, o.discount_amount, o.total_amount,
			o.shipping_address, o.notes, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'product_id', ol.product_id,
						'product_name', ol.product_name,
						'brand_id', COALESCE(ol.brand_id::text, ''),
						'quantity', ol.quantity,
						'unit_price', ol.unit_price,
						'subtotal', ol.line_subtotal
					) ORDER BY ol.id
				) FILTER (WHERE ol.id IS NOT NULL),
				'[]'::jsonb
			) AS lines
		FROM orders o
		LEFT JOIN order_lines ol ON o.id = ol.order_id
		WHERE o.id = $1 AND o.user_id = $2
		GROUP BY o.id`

	listOrdersSQL = `
		SELECT
			o.id, o.status, o.payment_method, o.currency, o.total_amount, o.created_at,
			(SELECT COUNT(*) FROM order_lines ol WHERE ol.order_id = o.id) AS line_count,
			COUNT(*) OVER() AS total_count
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id
		LIMIT $2 OFFSET $3`

	stockCheckConstraint   = "products_stock_non_negative"
	sqlstateCheckViolation = "23514"
)

// TxConfig bounds how long an order transaction may run and wait for locks.
type TxConfig struct {
	Timeout     time.Duration
	LockTimeout time.Duration
}

// DefaultTxConfig returns a 10s transaction budget with a 3s lock wait.
func DefaultTxConfig() TxConfig {
	return TxConfig{Timeout: 10 * time.Second, LockTimeout: 3 * time.Second}
}

// OrderRepository implements repository.OrderRepository using PostgreSQL.
// Create is the only write path to products.stock_quantity in this service.
type OrderRepository struct {
	pool database.DBTX
	cfg  TxConfig
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX, cfg TxConfig) *OrderRepository {
	return &OrderRepository{pool: pool, cfg: cfg}
}

// Create writes the order header, one line per draft line and the stock
// decrements in a single transaction. Either all of it commits or none of it
// does. Rows are locked in product-ID order so concurrent checkouts cannot
// deadlock on each other.
//
// Failures are typed: *domain.CatalogInconsistencyError,
// *domain.StockConflictError or *domain.PersistenceError.
func (r *OrderRepository) Create(ctx context.Context, draft *domain.OrderDraft) (_ *domain.Order, err error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	ctx, end := database.TraceQuery(ctx, "CreateOrder", insertOrderSQL)
	defer func() { end(err) }()

	addressJSON, err := json.Marshal(draft.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping address: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, persistenceError(ctx, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if r.cfg.LockTimeout > 0 {
		if _, err := tx.Exec(ctx, lockTimeoutSQL(r.cfg.LockTimeout)); err != nil {
			return nil, persistenceError(ctx, "set lock timeout", err)
		}
	}

	order := &domain.Order{
		UserID:          draft.UserID,
		Status:          draft.Status(),
		PaymentMethod:   draft.PaymentMethod,
		Currency:        draft.Currency,
		Totals:          draft.Totals,
		ShippingAddress: draft.ShippingAddress,
		Notes:           draft.Notes,
		Lines:           slices.Clone(draft.Lines),
	}

	t := draft.Totals
	err = tx.QueryRow(ctx, insertOrderSQL,
		order.UserID,
		order.Status,
		order.PaymentMethod,
		order.Currency,
		t.Subtotal,
		t.Shipping,
		t.Tax,
		t.Discount,
		t.Total,
		addressJSON,
		order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, persistenceError(ctx, "insert order", err)
	}

	for _, line := range lockOrder(draft.Lines) {
		if err := reserveLine(ctx, tx, order.ID, line); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceError(ctx, "commit transaction", err)
	}
	return order, nil
}

// lockOrder returns the lines sorted by product ID.
func lockOrder(lines []domain.OrderLine) []domain.OrderLine {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b domain.OrderLine) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return sorted
}

func lockTimeoutSQL(d time.Duration) string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())
}

// reserveLine locks the product row, re-checks it, inserts the order line and
// decrements stock for non-variant products.
func reserveLine(ctx context.Context, tx pgx.Tx, orderID string, line domain.OrderLine) error {
	var (
		active           bool
		stock            int
		requiresVariants bool
	)
	err := tx.QueryRow(ctx, lockProductSQL, line.ProductID).Scan(&active, &stock, &requiresVariants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.CatalogInconsistencyError{ProductID: line.ProductID, Reason: "product no longer exists"}
		}
		return persistenceError(ctx, "lock product", err)
	}
	if !active {
		return &domain.CatalogInconsistencyError{ProductID: line.ProductID, Reason: "product is no longer active"}
	}
	if !requiresVariants && stock < line.Quantity {
		return &domain.StockConflictError{ProductID: line.ProductID, Requested: line.Quantity, Available: stock}
	}

	// unit_price comes from the validated snapshot, not from products.price.
	_, err = tx.Exec(ctx, insertOrderLineSQL,
		orderID,
		line.ProductID,
		line.BrandID,
		line.ProductName,
		line.Quantity,
		line.UnitPrice,
		line.Subtotal,
	)
	if err != nil {
		return persistenceError(ctx, "insert order line", err)
	}

	if requiresVariants {
		return nil
	}

	tag, err := tx.Exec(ctx, decrementStockSQL, line.Quantity, line.ProductID)
	if err != nil {
		if isStockCheckViolation(err) {
			return &domain.StockConflictError{ProductID: line.ProductID, Requested: line.Quantity, Available: stock}
		}
		return persistenceError(ctx, "decrement stock", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.StockConflictError{ProductID: line.ProductID, Requested: line.Quantity, Available: stock}
	}
	return nil
}

func isStockCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == sqlstateCheckViolation &&
		pgErr.ConstraintName == stockCheckConstraint
}

// persistenceError classifies a driver failure. Timeouts, deadlocks, lock
// waits and serialization failures are retryable by the user.
func persistenceError(ctx context.Context, op string, err error) *domain.PersistenceError {
	retryable := database.IsTransient(err) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &domain.PersistenceError{Op: op, Retryable: retryable, Err: err}
}

// GetByID returns the order with its lines if it belongs to userID.
func (r *OrderRepository) GetByID(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	var (
		o           domain.Order
		addressJSON []byte
		linesJSON   []byte
	)

	err := r.pool.QueryRow(ctx, getOrderSQL, orderID, userID).Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.PaymentMethod,
		&o.Currency,
		&o.Totals.Subtotal,
		&o.Totals.Shipping,
		&o.Totals.Tax,
		&o.Totals.Discount,
		&o.Totals.Total,
		&addressJSON,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
		&linesJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}

	o.Lines = []domain.OrderLine{}
	if len(linesJSON) > 0 {
		if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal order lines: %w", err)
		}
	}
	return &o, nil
}

// ListByUser returns a page of the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.OrderSummary, int, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var total int
	orders := make([]domain.OrderSummary, 0)
	for rows.Next() {
		var o domain.OrderSummary
		if err := rows.Scan(
			&o.ID,
			&o.Status,
			&o.PaymentMethod,
			&o.Currency,
			&o.Total,
			&o.CreatedAt,
			&o.LineCount,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}
