package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferretek/ferretek/internal/platform/db"
)

const productColumns = `id, sku, barcode, name, description, brand, category_id, supplier_id, unit,
cost_price, selling_price, wholesale_price, discount_price,
current_stock, min_stock, max_stock, location, is_active, created_at, updated_at`

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var barcode, description, brand, location *string
	var categoryID, supplierID, maxStock *int64
	var wholesale, discount *float64
	err := row.Scan(&p.ID, &p.SKU, &barcode, &p.Name, &description, &brand, &categoryID, &supplierID, &p.Unit,
		&p.Pricing.CostPrice, &p.Pricing.SellingPrice, &wholesale, &discount,
		&p.Inventory.CurrentStock, &p.Inventory.MinStock, &maxStock, &location, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if barcode != nil {
		p.Barcode = *barcode
	}
	if description != nil {
		p.Description = *description
	}
	if brand != nil {
		p.Brand = *brand
	}
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	if supplierID != nil {
		p.SupplierID = *supplierID
	}
	if wholesale != nil {
		p.Pricing.WholesalePrice = *wholesale
	}
	if discount != nil {
		p.Pricing.DiscountPrice = *discount
	}
	if maxStock != nil {
		p.Inventory.MaxStock = *maxStock
	}
	if location != nil {
		p.Inventory.Location = *location
	}
	return &p, nil
}

// Insert stores a new product and returns its identity.
func (r *Repository) Insert(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products
(sku, barcode, name, description, brand, category_id, supplier_id, unit,
 cost_price, selling_price, wholesale_price, discount_price,
 current_stock, min_stock, max_stock, location, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())
RETURNING id`,
		p.SKU, nullStr(p.Barcode), p.Name, nullStr(p.Description), nullStr(p.Brand),
		nullInt(p.CategoryID), nullInt(p.SupplierID), p.Unit,
		p.Pricing.CostPrice, p.Pricing.SellingPrice, nullFloat(p.Pricing.WholesalePrice), nullFloat(p.Pricing.DiscountPrice),
		p.Inventory.CurrentStock, p.Inventory.MinStock, nullInt(p.Inventory.MaxStock), nullStr(p.Inventory.Location), p.IsActive).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: sku or barcode taken", ErrAlreadyExists)
		}
		return 0, err
	}
	return id, nil
}

// Update applies a partial update built from column/value pairs.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	i := 1
	for col, val := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s=$%d", col, i))
		args = append(args, val)
		i++
	}
	setClauses = append(setClauses, "updated_at=NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE products SET %s WHERE id=$%d", strings.Join(setClauses, ", "), i)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: sku or barcode taken", ErrAlreadyExists)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a product by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return scanProduct(row)
}

// GetBySKU fetches a product by normalized SKU.
func (r *Repository) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku=$1`, NormalizeSKU(sku))
	return scanProduct(row)
}

// GetBatch fetches several products by id in one round trip.
func (r *Repository) GetBatch(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = *p
	}
	return result, rows.Err()
}

// List returns products matching the filter plus the unpaginated total.
func (r *Repository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	conds := []string{"TRUE"}
	args := []interface{}{}
	i := 1
	if req.Search != "" {
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d OR barcode ILIKE $%d)", i, i, i))
		args = append(args, "%"+req.Search+"%")
		i++
	}
	if req.CategoryID != 0 {
		conds = append(conds, fmt.Sprintf("category_id=$%d", i))
		args = append(args, req.CategoryID)
		i++
	}
	if req.SupplierID != 0 {
		conds = append(conds, fmt.Sprintf("supplier_id=$%d", i))
		args = append(args, req.SupplierID)
		i++
	}
	if req.IsActive != nil {
		conds = append(conds, fmt.Sprintf("is_active=$%d", i))
		args = append(args, *req.IsActive)
		i++
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY name ASC LIMIT $%d OFFSET $%d", productColumns, where, i, i+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

// LowStock lists active products at or below their reorder threshold.
func (r *Repository) LowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE is_active AND current_stock <= min_stock
ORDER BY current_stock ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullFloat(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}
