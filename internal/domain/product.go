package domain

// ProductSnapshot is a read-only view of a catalog product at one instant.
type ProductSnapshot struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Price            int64  `json:"price"`
	StockQuantity    int    `json:"stock_quantity"`
	IsActive         bool   `json:"is_active"`
	RequiresVariants bool   `json:"requires_variants"`
	BrandID          string `json:"brand_id"`
}

// TracksStock reports whether the product-level stock column applies.
// Variant products keep stock per variant, outside this service.
func (p ProductSnapshot) TracksStock() bool {
	return !p.RequiresVariants
}
