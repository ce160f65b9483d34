package suppliers

import (
	"context"
	"strings"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, s Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, updates map[string]any) (Supplier, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	List(ctx context.Context, req ListSuppliersRequest) ([]Supplier, int, error)
}

// Service handles supplier business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a supplier.
func (s *Service) Create(ctx context.Context, req CreateSupplierRequest) (Supplier, error) {
	return s.repo.Insert(ctx, Supplier{
		Name:        strings.TrimSpace(req.Name),
		TaxID:       strings.ToUpper(strings.TrimSpace(req.TaxID)),
		ContactName: req.ContactName,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       req.Phone,
		Address:     req.Address,
		PaymentDays: req.PaymentDays,
		IsActive:    true,
	})
}

// Update modifies supplier fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateSupplierRequest) (Supplier, error) {
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.ContactName != nil {
		updates["contact_name"] = *req.ContactName
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.PaymentDays != nil {
		updates["payment_days"] = *req.PaymentDays
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	return s.repo.Update(ctx, id, updates)
}

// Deactivate soft-deletes a supplier.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	_, err := s.repo.Update(ctx, id, map[string]any{"is_active": false})
	return err
}

// Get returns one supplier.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

// List returns suppliers matching the filter.
func (s *Service) List(ctx context.Context, req ListSuppliersRequest) ([]Supplier, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 || req.PerPage > 100 {
		req.PerPage = 20
	}
	return s.repo.List(ctx, req)
}
