package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	nextID   int64
	products map[int64]*Product
}

func newMemRepo() *memRepo {
	return &memRepo{products: map[int64]*Product{}}
}

func (r *memRepo) Insert(_ context.Context, p Product) (int64, error) {
	for _, existing := range r.products {
		if existing.SKU == p.SKU {
			return 0, ErrAlreadyExists
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = &p
	return p.ID, nil
}

func (r *memRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	p, ok := r.products[id]
	if !ok {
		return ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "name":
			p.Name = value.(string)
		case "selling_price":
			p.Pricing.SellingPrice = value.(float64)
		case "min_stock":
			p.Inventory.MinStock = value.(int64)
		case "is_active":
			p.IsActive = value.(bool)
		}
	}
	return nil
}

func (r *memRepo) Get(_ context.Context, id int64) (*Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	productCopy := *p
	return &productCopy, nil
}

func (r *memRepo) GetBySKU(_ context.Context, sku string) (*Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			productCopy := *p
			return &productCopy, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) GetBatch(_ context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (r *memRepo) List(_ context.Context, req ListProductsRequest) ([]Product, int, error) {
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *memRepo) LowStock(_ context.Context) ([]Product, error) {
	out := []Product{}
	for _, p := range r.products {
		if p.IsActive && p.Inventory.CurrentStock <= p.Inventory.MinStock {
			out = append(out, *p)
		}
	}
	return out, nil
}

func TestCreateNormalizesAndDefaults(t *testing.T) {
	svc := NewService(newMemRepo(), nil)

	p, err := svc.Create(context.Background(), CreateProductRequest{
		SKU:          " mart-001 ",
		Name:         "Martillo carpintero",
		CostPrice:    8000,
		SellingPrice: 12990,
		InitialStock: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "MART-001", p.SKU)
	assert.Equal(t, "piece", p.Unit)
	assert.Equal(t, int64(5), p.Inventory.MinStock)
	assert.Equal(t, int64(10), p.Inventory.CurrentStock)
	assert.True(t, p.IsActive)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateProductRequest{SKU: "MART-001", Name: "Martillo", SellingPrice: 12990})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateProductRequest{SKU: "mart-001", Name: "Otro martillo", SellingPrice: 9990})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateRejectsNegativePrices(t *testing.T) {
	svc := NewService(newMemRepo(), nil)

	_, err := svc.Create(context.Background(), CreateProductRequest{
		SKU: "X-1", Name: "X", CostPrice: -1, SellingPrice: 100,
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestDeactivateKeepsProductResolvable(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateProductRequest{SKU: "SIE-001", Name: "Sierra", SellingPrice: 15000})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, p.ID))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestGetActiveBatchRejectsMissingAndInactive(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	active, err := svc.Create(ctx, CreateProductRequest{SKU: "A-1", Name: "Activo", SellingPrice: 100})
	require.NoError(t, err)
	retired, err := svc.Create(ctx, CreateProductRequest{SKU: "B-1", Name: "Retirado", SellingPrice: 200})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, retired.ID))

	products, err := svc.GetActiveBatch(ctx, []int64{active.ID})
	require.NoError(t, err)
	assert.Len(t, products, 1)

	_, err = svc.GetActiveBatch(ctx, []int64{active.ID, 999})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetActiveBatch(ctx, []int64{active.ID, retired.ID})
	assert.ErrorIs(t, err, ErrInactive)
}

func TestLowStockFlagsThresholdProducts(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i, stock := range []int64{3, 5, 50} {
		_, err := svc.Create(ctx, CreateProductRequest{
			SKU:          fmt.Sprintf("P-%d", i),
			Name:         fmt.Sprintf("Producto %d", i),
			SellingPrice: 100,
			InitialStock: stock,
			MinStock:     5,
		})
		require.NoError(t, err)
	}

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	assert.Len(t, low, 2)
}
