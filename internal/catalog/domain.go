package catalog

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the product does not exist.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrInactive indicates the product was soft-deleted.
	ErrInactive = errors.New("catalog: product inactive")
	// ErrAlreadyExists indicates a SKU or barcode collision.
	ErrAlreadyExists = errors.New("catalog: product already exists")
	// ErrInvalidPrice indicates a negative price field.
	ErrInvalidPrice = errors.New("catalog: price must not be negative")
)

// Pricing groups the price fields of a product.
type Pricing struct {
	CostPrice      float64 `json:"cost_price"`
	SellingPrice   float64 `json:"selling_price"`
	WholesalePrice float64 `json:"wholesale_price,omitempty"`
	DiscountPrice  float64 `json:"discount_price,omitempty"`
}

// Inventory groups the stock fields of a product. CurrentStock is
// authoritative and mutated only through the inventory ledger.
type Inventory struct {
	CurrentStock int64  `json:"current_stock"`
	MinStock     int64  `json:"min_stock"`
	MaxStock     int64  `json:"max_stock,omitempty"`
	Location     string `json:"location,omitempty"`
}

// Product is a catalog item. Products are never hard-deleted; IsActive acts
// as a tombstone so historical sales keep resolvable references.
type Product struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Barcode     string    `json:"barcode,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	CategoryID  int64     `json:"category_id,omitempty"`
	SupplierID  int64     `json:"supplier_id,omitempty"`
	Unit        string    `json:"unit"`
	Pricing     Pricing   `json:"pricing"`
	Inventory   Inventory `json:"inventory"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeSKU uppercases and trims a SKU so lookups are case-insensitive.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// CreateProductRequest describes a new catalog item.
type CreateProductRequest struct {
	SKU          string  `json:"sku" validate:"required"`
	Barcode      string  `json:"barcode,omitempty"`
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	CategoryID   int64   `json:"category_id,omitempty"`
	SupplierID   int64   `json:"supplier_id,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	CostPrice    float64 `json:"cost_price" validate:"gte=0"`
	SellingPrice float64 `json:"selling_price" validate:"gte=0"`
	Wholesale    float64 `json:"wholesale_price,omitempty" validate:"gte=0"`
	Discount     float64 `json:"discount_price,omitempty" validate:"gte=0"`
	InitialStock int64   `json:"initial_stock,omitempty" validate:"gte=0"`
	MinStock     int64   `json:"min_stock,omitempty" validate:"gte=0"`
	MaxStock     int64   `json:"max_stock,omitempty" validate:"gte=0"`
	Location     string  `json:"location,omitempty"`
}

// UpdateProductRequest carries optional field updates. Stock fields are
// deliberately absent; they belong to the inventory ledger.
type UpdateProductRequest struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Barcode      *string  `json:"barcode,omitempty"`
	Brand        *string  `json:"brand,omitempty"`
	CategoryID   *int64   `json:"category_id,omitempty"`
	SupplierID   *int64   `json:"supplier_id,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	CostPrice    *float64 `json:"cost_price,omitempty"`
	SellingPrice *float64 `json:"selling_price,omitempty"`
	Wholesale    *float64 `json:"wholesale_price,omitempty"`
	Discount     *float64 `json:"discount_price,omitempty"`
	MinStock     *int64   `json:"min_stock,omitempty"`
	MaxStock     *int64   `json:"max_stock,omitempty"`
	Location     *string  `json:"location,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

// ListProductsRequest filters catalog listings.
type ListProductsRequest struct {
	Search     string
	CategoryID int64
	SupplierID int64
	IsActive   *bool
	Page       int
	PerPage    int
}
