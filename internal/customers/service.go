package customers

import (
	"context"
	"strings"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, id int64, updates map[string]any) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
}

// Service handles customer business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a customer.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	return s.repo.Insert(ctx, Customer{
		Name:        strings.TrimSpace(req.Name),
		TaxID:       strings.ToUpper(strings.TrimSpace(req.TaxID)),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       req.Phone,
		Address:     req.Address,
		CreditLimit: req.CreditLimit,
		IsActive:    true,
	})
}

// Update modifies customer fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (Customer, error) {
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
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
	if req.CreditLimit != nil {
		updates["credit_limit"] = *req.CreditLimit
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	return s.repo.Update(ctx, id, updates)
}

// Deactivate soft-deletes a customer. History stays intact.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	_, err := s.repo.Update(ctx, id, map[string]any{"is_active": false})
	return err
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 || req.PerPage > 100 {
		req.PerPage = 20
	}
	return s.repo.List(ctx, req)
}

// CheckCredit verifies the customer can take on the given amount of
// additional credit. Used by credit sales before committing.
func (s *Service) CheckCredit(ctx context.Context, id int64, amount float64) (Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if amount > c.AvailableCredit() {
		return c, ErrCreditExceeded
	}
	return c, nil
}
