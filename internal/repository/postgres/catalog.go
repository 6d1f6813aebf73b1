package postgres

import (
	"context"
	"fmt"

	"github.com/Papaai2/baladymall-sub000/internal/domain"
	"github.com/Papaai2/baladymall-sub000/pkg/database"
)

const getProductsByIDsSQL = `
	SELECT id, name, price, stock_quantity, is_active, requires_variants, COALESCE(brand_id::text, '')
	FROM products
	WHERE id = ANY($1::text[]::uuid[])`

// CatalogRepository implements repository.CatalogReader using PostgreSQL.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog reader.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProductsByIDs batch-reads product snapshots in one round trip.
func (r *CatalogRepository) GetProductsByIDs(ctx context.Context, ids []string) (_ map[string]domain.ProductSnapshot, err error) {
	out := make(map[string]domain.ProductSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, end := database.TraceQuery(ctx, "GetProductsByIDs", getProductsByIDsSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.IsActive, &p.RequiresVariants, &p.BrandID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}
