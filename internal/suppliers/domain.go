package suppliers

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the supplier does not exist.
	ErrNotFound = errors.New("suppliers: not found")
	// ErrAlreadyExists indicates a duplicate supplier name or tax id.
	ErrAlreadyExists = errors.New("suppliers: already exists")
)

// Supplier is a vendor products are sourced from.
type Supplier struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TaxID       string    `json:"tax_id,omitempty"`
	ContactName string    `json:"contact_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	PaymentDays int       `json:"payment_days"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateSupplierRequest is the payload to register a supplier.
type CreateSupplierRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	TaxID       string `json:"tax_id,omitempty" validate:"omitempty,max=20"`
	ContactName string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address     string `json:"address,omitempty" validate:"omitempty,max=300"`
	PaymentDays int    `json:"payment_days,omitempty" validate:"gte=0,lte=180"`
}

// UpdateSupplierRequest carries optional field updates.
type UpdateSupplierRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	ContactName *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=300"`
	PaymentDays *int    `json:"payment_days,omitempty" validate:"omitempty,gte=0,lte=180"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListSuppliersRequest filters supplier listings.
type ListSuppliersRequest struct {
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}
