package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferretek/ferretek/internal/platform/db"
)

// Repository persists suppliers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const supplierColumns = `id, name, tax_id, contact_name, email, phone, address, payment_days,
	is_active, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	var taxID, contact, email, phone, address *string
	err := row.Scan(
		&s.ID, &s.Name, &taxID, &contact, &email, &phone, &address,
		&s.PaymentDays, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return Supplier{}, err
	}
	if taxID != nil {
		s.TaxID = *taxID
	}
	if contact != nil {
		s.ContactName = *contact
	}
	if email != nil {
		s.Email = *email
	}
	if phone != nil {
		s.Phone = *phone
	}
	if address != nil {
		s.Address = *address
	}
	return s, nil
}

// Insert creates a supplier row.
func (r *Repository) Insert(ctx context.Context, s Supplier) (Supplier, error) {
	query := `INSERT INTO suppliers (name, tax_id, contact_name, email, phone, address, payment_days, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + supplierColumns
	row := r.pool.QueryRow(ctx, query,
		s.Name, nullStr(s.TaxID), nullStr(s.ContactName), nullStr(s.Email),
		nullStr(s.Phone), nullStr(s.Address), s.PaymentDays, s.IsActive,
	)
	created, err := scanSupplier(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Supplier{}, ErrAlreadyExists
		}
		return Supplier{}, fmt.Errorf("insert supplier: %w", err)
	}
	return created, nil
}

// Update applies a partial field map to a supplier row.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) (Supplier, error) {
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}
	set := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	i := 1
	for column, value := range updates {
		set = append(set, fmt.Sprintf("%s = $%d", column, i))
		args = append(args, value)
		i++
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE suppliers SET %s WHERE id = $%d RETURNING %s",
		strings.Join(set, ", "), i, supplierColumns)
	s, err := scanSupplier(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, fmt.Errorf("update supplier: %w", err)
	}
	return s, nil
}

// Get returns one supplier by id.
func (r *Repository) Get(ctx context.Context, id int64) (Supplier, error) {
	query := "SELECT " + supplierColumns + " FROM suppliers WHERE id = $1"
	s, err := scanSupplier(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, fmt.Errorf("get supplier: %w", err)
	}
	return s, nil
}

// List returns suppliers matching the filter with a total count.
func (r *Repository) List(ctx context.Context, req ListSuppliersRequest) ([]Supplier, int, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1
	if req.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR contact_name ILIKE $%d)", i, i))
		args = append(args, "%"+req.Search+"%")
		i++
	}
	if req.ActiveOnly {
		where = append(where, "is_active = true")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM suppliers WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppliers: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM suppliers WHERE %s ORDER BY name LIMIT $%d OFFSET $%d",
		supplierColumns, clause, i, i+1)
	args = append(args, req.PerPage, (req.Page-1)*req.PerPage)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]Supplier, 0)
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
