package catalog

import (
	"context"
	"errors"
	"fmt"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Get(ctx context.Context, id int64) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	GetBatch(ctx context.Context, ids []int64) (map[int64]Product, error)
	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	LowStock(ctx context.Context) ([]Product, error)
}

// Service coordinates catalog operations.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service. Cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Create registers a new product. The initial stock becomes the baseline the
// movement ledger reconciles against.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	sku := NormalizeSKU(req.SKU)
	if sku == "" {
		return nil, errors.New("catalog: sku required")
	}
	if req.CostPrice < 0 || req.SellingPrice < 0 || req.Wholesale < 0 || req.Discount < 0 {
		return nil, ErrInvalidPrice
	}
	if req.InitialStock < 0 {
		return nil, errors.New("catalog: initial stock must not be negative")
	}

	existing, err := s.repo.GetBySKU(ctx, sku)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing product: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: sku %s", ErrAlreadyExists, sku)
	}

	unit := req.Unit
	if unit == "" {
		unit = "piece"
	}
	minStock := req.MinStock
	if minStock == 0 {
		minStock = 5
	}
	product := Product{
		SKU:         sku,
		Barcode:     req.Barcode,
		Name:        req.Name,
		Description: req.Description,
		Brand:       req.Brand,
		CategoryID:  req.CategoryID,
		SupplierID:  req.SupplierID,
		Unit:        unit,
		Pricing: Pricing{
			CostPrice:      req.CostPrice,
			SellingPrice:   req.SellingPrice,
			WholesalePrice: req.Wholesale,
			DiscountPrice:  req.Discount,
		},
		Inventory: Inventory{
			CurrentStock: req.InitialStock,
			MinStock:     minStock,
			MaxStock:     req.MaxStock,
			Location:     req.Location,
		},
		IsActive: true,
	}

	id, err := s.repo.Insert(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	product.ID = id
	return &product, nil
}

// Update applies a partial update to non-stock fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Barcode != nil {
		updates["barcode"] = nullStr(*req.Barcode)
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if req.SupplierID != nil {
		updates["supplier_id"] = *req.SupplierID
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return nil, ErrInvalidPrice
		}
		updates["cost_price"] = *req.CostPrice
	}
	if req.SellingPrice != nil {
		if *req.SellingPrice < 0 {
			return nil, ErrInvalidPrice
		}
		updates["selling_price"] = *req.SellingPrice
	}
	if req.Wholesale != nil {
		updates["wholesale_price"] = *req.Wholesale
	}
	if req.Discount != nil {
		updates["discount_price"] = *req.Discount
	}
	if req.MinStock != nil {
		updates["min_stock"] = *req.MinStock
	}
	if req.MaxStock != nil {
		updates["max_stock"] = *req.MaxStock
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return existing, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.cache.Invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// Deactivate soft-deletes a product. Historical sales keep referencing it.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{"is_active": false}); err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// Get retrieves a product by id, serving cached copies when available.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if p := s.cache.Get(ctx, id); p != nil {
		return p, nil
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, p)
	return p, nil
}

// GetBySKU retrieves a product by its normalized SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return s.repo.GetBySKU(ctx, sku)
}

// GetActiveBatch loads the referenced products and rejects missing or
// inactive ones. It always reads the repository so stock levels are current.
func (s *Service) GetActiveBatch(ctx context.Context, ids []int64) (map[int64]Product, error) {
	products, err := s.repo.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrInactive, p.Name)
		}
	}
	return products, nil
}

// List returns a paginated product listing.
func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	return s.repo.List(ctx, req)
}

// LowStock lists products at or below their reorder threshold.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.LowStock(ctx)
}

// InvalidateCached drops cached copies after out-of-band stock writes.
func (s *Service) InvalidateCached(ctx context.Context, ids ...int64) {
	s.cache.Invalidate(ctx, ids...)
}
