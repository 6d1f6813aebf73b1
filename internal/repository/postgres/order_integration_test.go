//go:build integration

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/pkg/database"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, database.RunMigrations(ctx, pool, Migrations(), logger))
	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, price int64, stock int) string {
	t.Helper()
	ctx := context.Background()

	brandID := uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO brands (id, name, contact_email) VALUES ($1, 'Nile Crafts', 'sales@nile.example')`, brandID)
	require.NoError(t, err)

	productID := uuid.NewString()
	_, err = pool.Exec(ctx, `
		INSERT INTO products (id, brand_id, name, price, stock_quantity)
		VALUES ($1, $2, 'Copper Lantern', $3, $4)`, productID, brandID, price, stock)
	require.NoError(t, err)
	return productID
}

func stockOf(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var stock int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock))
	return stock
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func draftFor(userID string, p domain.ProductSnapshot, qty int) *domain.OrderDraft {
	cart := &domain.ValidatedCart{UserID: userID}
	cart.AddLine(p, qty)
	addr := domain.Address{FullName: "Mona Hassan", Phone: "+201001234567", Line1: "12 Tahrir St", City: "Cairo", Country: "EG"}
	return domain.NewOrderDraft(cart, addr, domain.PaymentCashOnDelivery, "EGP", "", domain.NewTotals(cart.Subtotal, 0, 0, 0))
}

func TestOrderRepository_Integration_CommitDecrementsStock(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewOrderRepository(pool, DefaultTxConfig())
	ctx := context.Background()

	productID := seedProduct(t, pool, 10000, 3)
	snapshot := domain.ProductSnapshot{ID: productID, Name: "Copper Lantern", Price: 10000, StockQuantity: 3, IsActive: true}
	userID := uuid.NewString()

	order, err := repo.Create(ctx, draftFor(userID, snapshot, 2))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, int64(20000), order.Totals.Total)
	assert.Equal(t, 1, stockOf(t, pool, productID))

	got, err := repo.GetByID(ctx, order.ID, userID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, got.Totals.Subtotal, got.Lines[0].Subtotal)

	_, err = repo.GetByID(ctx, order.ID, uuid.NewString())
	assert.Error(t, err, "orders are scoped to their owner")
}

// Two buyers race for 3 units each of a product with 5 in stock: exactly one
// wins and the loser leaves no trace.
func TestOrderRepository_Integration_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewOrderRepository(pool, DefaultTxConfig())

	productID := seedProduct(t, pool, 5000, 5)
	snapshot := domain.ProductSnapshot{ID: productID, Name: "Copper Lantern", Price: 5000, StockQuantity: 5, IsActive: true}

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = repo.Create(context.Background(), draftFor(uuid.NewString(), snapshot, 3))
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded, conflicts int
	for _, err := range errs {
		var conflict *domain.StockConflictError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &conflict):
			conflicts++
			assert.Equal(t, productID, conflict.ProductID)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, stockOf(t, pool, productID))
	assert.Equal(t, 1, countRows(t, pool, "orders"))
	assert.Equal(t, 1, countRows(t, pool, "order_lines"))
}

func TestOrderRepository_Integration_LastUnitGoesToOneBuyer(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewOrderRepository(pool, DefaultTxConfig())

	productID := seedProduct(t, pool, 5000, 1)
	snapshot := domain.ProductSnapshot{ID: productID, Name: "Copper Lantern", Price: 5000, StockQuantity: 1, IsActive: true}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(context.Background(), draftFor(uuid.NewString(), snapshot, 1))
		}(i)
	}
	wg.Wait()

	var conflict *domain.StockConflictError
	assert.True(t, (errs[0] == nil) != (errs[1] == nil), "exactly one checkout must succeed")
	assert.True(t, errors.As(errs[0], &conflict) || errors.As(errs[1], &conflict))
	assert.Equal(t, 0, stockOf(t, pool, productID))
	assert.Equal(t, 1, countRows(t, pool, "orders"))
}

func TestOrderRepository_Integration_FailedLineLeavesNoOrder(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewOrderRepository(pool, DefaultTxConfig())
	ctx := context.Background()

	inStock := seedProduct(t, pool, 1000, 10)
	scarce := seedProduct(t, pool, 2000, 1)

	cart := &domain.ValidatedCart{UserID: uuid.NewString()}
	cart.AddLine(domain.ProductSnapshot{ID: inStock, Name: "A", Price: 1000, IsActive: true}, 4)
	cart.AddLine(domain.ProductSnapshot{ID: scarce, Name: "B", Price: 2000, IsActive: true}, 2)
	draft := domain.NewOrderDraft(cart, domain.Address{FullName: "X"}, domain.PaymentCashOnDelivery, "EGP", "",
		domain.NewTotals(cart.Subtotal, 0, 0, 0))

	_, err := repo.Create(ctx, draft)

	var conflict *domain.StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, scarce, conflict.ProductID)
	assert.Equal(t, 10, stockOf(t, pool, inStock))
	assert.Equal(t, 1, stockOf(t, pool, scarce))
	assert.Equal(t, 0, countRows(t, pool, "orders"))
	assert.Equal(t, 0, countRows(t, pool, "order_lines"))
}
