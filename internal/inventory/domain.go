package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType enumerates supported inventory movements.
type MovementType string

const (
	// MovementSale records stock leaving through a sale.
	MovementSale MovementType = "sale"
	// MovementReturn records stock coming back from a cancellation or refund.
	MovementReturn MovementType = "return"
	// MovementAdjustment records a manual stock correction.
	MovementAdjustment MovementType = "adjustment"
	// MovementTransfer records a bin location move as an out/in pair.
	MovementTransfer MovementType = "transfer"
	// MovementPurchase records inbound stock from a supplier receipt.
	MovementPurchase MovementType = "purchase"
	// MovementDamage records stock written off as damaged.
	MovementDamage MovementType = "damage"
)

// direction returns -1 for movements that reduce stock, +1 for movements
// that increase it, and 0 when the caller decides per movement.
func (t MovementType) direction() int64 {
	switch t {
	case MovementSale, MovementDamage:
		return -1
	case MovementReturn, MovementPurchase:
		return 1
	default:
		return 0
	}
}

// Reference points a movement back at the document that caused it.
type Reference struct {
	DocumentType   string `json:"document_type,omitempty"`
	DocumentID     int64  `json:"document_id,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
}

// Movement is an append-only ledger record. Movements are never updated or
// deleted; Quantity is always positive and the direction is carried by the
// previous/new stock pair.
type Movement struct {
	ID            int64        `json:"id"`
	ProductID     int64        `json:"product_id"`
	Type          MovementType `json:"type"`
	Quantity      int64        `json:"quantity"`
	PreviousStock int64        `json:"previous_stock"`
	NewStock      int64        `json:"new_stock"`
	UnitCost      float64      `json:"unit_cost"`
	TotalCost     float64      `json:"total_cost"`
	Reference     Reference    `json:"reference"`
	ActorID       int64        `json:"actor_id"`
	SupplierID    int64        `json:"supplier_id,omitempty"`
	Note          string       `json:"note,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Snapshot is the before/after stock pair returned to callers.
type Snapshot struct {
	PreviousStock int64 `json:"previous_stock"`
	NewStock      int64 `json:"new_stock"`
}

// StockRow is the locked product view the ledger mutates. It doubles as the
// listing row for stock status queries.
type StockRow struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	CurrentStock int64   `json:"current_stock"`
	CostPrice    float64 `json:"cost_price"`
	Location     string  `json:"location,omitempty"`
	IsActive     bool    `json:"is_active"`
}

// Valuation prices the active inventory at cost.
type Valuation struct {
	Products  int     `json:"products"`
	Units     int64   `json:"units"`
	TotalCost float64 `json:"total_cost"`
}

var (
	// ErrProductNotFound indicates the referenced product row is missing.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInsufficientStock is the comparison target for InsufficientStockError.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientStockError names the offending product and the quantity still
// available, for caller display.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (available: %d, requested: %d)", e.ProductName, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) work for typed instances.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ApplyInput describes one ledger write.
type ApplyInput struct {
	ProductID int64
	Quantity  int64
	Type      MovementType
	Reference Reference
	ActorID   int64
	// UnitCost defaults to the product's cost price when zero.
	UnitCost   float64
	SupplierID int64
	Note       string
}

// AdjustmentInput sets a product's stock to a counted value.
type AdjustmentInput struct {
	ProductID int64
	NewStock  int64
	Reason    string
	ActorID   int64
}

// TransferInput moves stock between bin locations inside the store.
type TransferInput struct {
	ProductID    int64
	Quantity     int64
	FromLocation string
	ToLocation   string
	Note         string
	ActorID      int64
}

// PurchaseInput receives stock from a supplier.
type PurchaseInput struct {
	ProductID      int64
	Quantity       int64
	UnitCost       float64
	SupplierID     int64
	DocumentNumber string
	Note           string
	ActorID        int64
}

// DamageInput writes off damaged stock.
type DamageInput struct {
	ProductID int64
	Quantity  int64
	Reason    string
	ActorID   int64
}

// MovementFilter filters ledger listings.
type MovementFilter struct {
	ProductID int64
	Type      MovementType
	From      time.Time
	To        time.Time
	Page      int
	PerPage   int
}

// ReconcileResult reports whether a product's movement chain reproduces its
// current stock.
type ReconcileResult struct {
	ProductID    int64 `json:"product_id"`
	CurrentStock int64 `json:"current_stock"`
	LedgerStock  int64 `json:"ledger_stock"`
	Movements    int   `json:"movements"`
	Consistent   bool  `json:"consistent"`
}
