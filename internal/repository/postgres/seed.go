package postgres

import (
	"context"
	"fmt"

	"github.com/Papaai2/baladymall-sub000/pkg/database"
)

// Seed rows use fixed IDs so seeding is repeatable.
type (
	SeedUser struct {
		ID       string
		Email    string
		FullName string
	}

	SeedBrand struct {
		ID           string
		Name         string
		ContactEmail string
	}

	SeedProduct struct {
		ID               string
		BrandID          string
		Name             string
		Price            int64
		Stock            int
		RequiresVariants bool
	}
)

// SeedData is a development dataset.
type SeedData struct {
	Users    []SeedUser
	Brands   []SeedBrand
	Products []SeedProduct
}

const (
	upsertUserSQL = `
		INSERT INTO users (id, email, full_name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name`

	upsertBrandSQL = `
		INSERT INTO brands (id, name, contact_email) VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, contact_email = EXCLUDED.contact_email`

	// Stock is only set on insert; re-seeding never overwrites live stock.
	upsertProductSQL = `
		INSERT INTO products (id, brand_id, name, price, stock_quantity, requires_variants)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = NOW()`
)

// Seed writes data in one transaction.
func Seed(ctx context.Context, db database.DBTX, data SeedData) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, u := range data.Users {
		if _, err = tx.Exec(ctx, upsertUserSQL, u.ID, u.Email, u.FullName); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	for _, b := range data.Brands {
		if _, err = tx.Exec(ctx, upsertBrandSQL, b.ID, b.Name, b.ContactEmail); err != nil {
			return fmt.Errorf("seed brand %s: %w", b.Name, err)
		}
	}
	for _, p := range data.Products {
		if _, err = tx.Exec(ctx, upsertProductSQL, p.ID, p.BrandID, p.Name, p.Price, p.Stock, p.RequiresVariants); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// DemoData is a small marketplace: two brands, one shopper, a handful of
// products including a sold-out one and a variant product.
func DemoData() SeedData {
	const (
		nile    = "0b0a8b5e-2f61-4c2a-9d6e-000000000001"
		siwa    = "0b0a8b5e-2f61-4c2a-9d6e-000000000002"
		shopper = "5c3e2f1a-7b8d-4e9f-a0b1-000000000001"
	)
	return SeedData{
		Users: []SeedUser{
			{ID: shopper, Email: "shopper@baladymall.example", FullName: "Demo Shopper"},
		},
		Brands: []SeedBrand{
			{ID: nile, Name: "Nile Copperworks", ContactEmail: "orders@nilecopper.example"},
			{ID: siwa, Name: "Siwa Looms", ContactEmail: "sales@siwalooms.example"},
		},
		Products: []SeedProduct{
			{ID: "9e1f0c2d-3a4b-4c5d-8e6f-000000000001", BrandID: nile, Name: "Hammered Copper Lamp", Price: 125000, Stock: 12},
			{ID: "9e1f0c2d-3a4b-4c5d-8e6f-000000000002", BrandID: nile, Name: "Copper Coffee Pot", Price: 45000, Stock: 3},
			{ID: "9e1f0c2d-3a4b-4c5d-8e6f-000000000003", BrandID: nile, Name: "Engraved Tray", Price: 60000, Stock: 0},
			{ID: "9e1f0c2d-3a4b-4c5d-8e6f-000000000004", BrandID: siwa, Name: "Handwoven Wool Rug", Price: 380000, Stock: 1},
			{ID: "9e1f0c2d-3a4b-4c5d-8e6f-000000000005", BrandID: siwa, Name: "Embroidered Kaftan", Price: 95000, RequiresVariants: true},
		},
	}
}
