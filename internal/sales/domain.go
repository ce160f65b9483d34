package sales

import (
	"errors"
	"fmt"
	"time"
)

// Status is the sale lifecycle state. Transitions: pending -> completed,
// completed -> cancelled, completed -> refunded. Cancelled and refunded are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCredit   PaymentMethod = "credit"
	PaymentMixed    PaymentMethod = "mixed"
)

// Valid reports whether the payment method is a known value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentCredit, PaymentMixed:
		return true
	}
	return false
}

// Item is one sale line. Subtotal is always server-computed.
type Item struct {
	ID          int64   `json:"id,omitempty"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	Subtotal    float64 `json:"subtotal"`
}

// Totals are the aggregate amounts of a sale, computed from its items and
// never accepted verbatim from a request.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Refund is set at most once per sale.
type Refund struct {
	IsRefunded bool       `json:"is_refunded"`
	Date       *time.Time `json:"date,omitempty"`
	Amount     float64    `json:"amount,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	RefundedBy int64      `json:"refunded_by,omitempty"`
}

// Sale is a completed point-of-sale transaction. Items and totals are
// immutable after creation; only status and the refund sub-record change.
type Sale struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	CustomerID    int64         `json:"customer_id,omitempty"`
	Items         []Item        `json:"items"`
	Totals        Totals        `json:"totals"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
	Status        Status        `json:"status"`
	Refund        Refund        `json:"refund"`
	SoldBy        int64         `json:"sold_by"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

var (
	// ErrNotFound indicates the sale does not exist.
	ErrNotFound = errors.New("sales: sale not found")
	// ErrInvalidState indicates an operation against a sale not in the
	// required status.
	ErrInvalidState = errors.New("sales: invalid sale state")
	// ErrAlreadyRefunded indicates a second refund attempt.
	ErrAlreadyRefunded = errors.New("sales: sale already refunded")
	// ErrRefundExceedsSale indicates a refund line not covered by the
	// original sale.
	ErrRefundExceedsSale = errors.New("sales: refund exceeds sale")
	// ErrPaymentDeclined indicates the gateway rejected the payment.
	ErrPaymentDeclined = errors.New("sales: payment declined")
	// ErrIntentNotFound indicates an unknown or expired checkout intent.
	ErrIntentNotFound = errors.New("sales: checkout intent not found")
	// ErrPriceOverride indicates a client-supplied price from an actor
	// without override rights.
	ErrPriceOverride = errors.New("sales: price override requires admin role")
)

// InvalidLineError reports a rejected request line before any write happens.
type InvalidLineError struct {
	ProductID int64
	Reason    string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("invalid line for product %d: %s", e.ProductID, e.Reason)
}

// InvalidStateError carries the status that blocked a transition.
type InvalidStateError struct {
	SaleNumber string
	Status     Status
	Wanted     Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("sale %s is %s, operation requires %s", e.SaleNumber, e.Status, e.Wanted)
}

// Is makes errors.Is(err, ErrInvalidState) work for typed instances.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// RequestLine is one line of an incoming sale request. UnitPrice is an
// optional override resolved by the pricing calculator.
type RequestLine struct {
	ProductID int64    `json:"product_id" validate:"required"`
	Quantity  int64    `json:"quantity" validate:"required,gt=0"`
	UnitPrice *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	Discount  float64  `json:"discount,omitempty" validate:"gte=0"`
}

// CreateSaleRequest is the payload to register a sale.
type CreateSaleRequest struct {
	Items         []RequestLine `json:"items" validate:"required,min=1,dive"`
	CustomerID    int64         `json:"customer_id,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// RefundLine names a sold product and the quantity coming back.
type RefundLine struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

// RefundRequest describes a full or partial refund. Omitted Items means
// every line is reversed in full. Omitted Amount defaults to the sale total.
type RefundRequest struct {
	Amount *float64     `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Reason string       `json:"reason" validate:"required"`
	Items  []RefundLine `json:"items,omitempty" validate:"omitempty,dive"`
}

// ListSalesRequest filters sale listings.
type ListSalesRequest struct {
	Status     Status
	CustomerID int64
	From       time.Time
	To         time.Time
	Page       int
	PerPage    int
}

// DailyReport aggregates one day of sales for the register close.
type DailyReport struct {
	Date       string                    `json:"date"`
	SaleCount  int                       `json:"sale_count"`
	Total      float64                   `json:"total"`
	ByMethod   map[PaymentMethod]float64 `json:"by_method"`
	ItemsSold  int64                     `json:"items_sold"`
	Refunded   float64                   `json:"refunded"`
	Cancelled  int                       `json:"cancelled"`
}
