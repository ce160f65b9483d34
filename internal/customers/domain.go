package customers

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the customer does not exist.
	ErrNotFound = errors.New("customers: not found")
	// ErrAlreadyExists indicates a duplicate tax id or email.
	ErrAlreadyExists = errors.New("customers: already exists")
	// ErrCreditExceeded indicates a credit sale would push the customer
	// past their credit limit.
	ErrCreditExceeded = errors.New("customers: credit limit exceeded")
)

// Customer is a buyer account. TotalPurchases and CurrentCredit are
// aggregates maintained by sale transactions, never set directly.
type Customer struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	TaxID          string     `json:"tax_id,omitempty"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Address        string     `json:"address,omitempty"`
	CreditLimit    float64    `json:"credit_limit"`
	CurrentCredit  float64    `json:"current_credit"`
	TotalPurchases float64    `json:"total_purchases"`
	LastPurchase   *time.Time `json:"last_purchase,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AvailableCredit is the remaining credit room.
func (c Customer) AvailableCredit() float64 {
	remaining := c.CreditLimit - c.CurrentCredit
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreateCustomerRequest is the payload to register a customer.
type CreateCustomerRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=200"`
	TaxID       string  `json:"tax_id,omitempty" validate:"omitempty,max=20"`
	Email       string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string  `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address     string  `json:"address,omitempty" validate:"omitempty,max=300"`
	CreditLimit float64 `json:"credit_limit,omitempty" validate:"gte=0"`
}

// UpdateCustomerRequest carries optional field updates.
type UpdateCustomerRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Email       *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string  `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address     *string  `json:"address,omitempty" validate:"omitempty,max=300"`
	CreditLimit *float64 `json:"credit_limit,omitempty" validate:"omitempty,gte=0"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// ListCustomersRequest filters customer listings.
type ListCustomersRequest struct {
	Search     string
	ActiveOnly bool
	WithDebt   bool
	Page       int
	PerPage    int
}
