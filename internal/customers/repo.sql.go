package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferretek/ferretek/internal/platform/db"
)

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, tax_id, email, phone, address, credit_limit, current_credit,
	total_purchases, last_purchase, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var taxID, email, phone, address *string
	err := row.Scan(
		&c.ID, &c.Name, &taxID, &email, &phone, &address,
		&c.CreditLimit, &c.CurrentCredit, &c.TotalPurchases, &c.LastPurchase,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Customer{}, err
	}
	if taxID != nil {
		c.TaxID = *taxID
	}
	if email != nil {
		c.Email = *email
	}
	if phone != nil {
		c.Phone = *phone
	}
	if address != nil {
		c.Address = *address
	}
	return c, nil
}

// Insert creates a customer row.
func (r *Repository) Insert(ctx context.Context, c Customer) (Customer, error) {
	query := `INSERT INTO customers (name, tax_id, email, phone, address, credit_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + customerColumns
	row := r.pool.QueryRow(ctx, query,
		c.Name, nullStr(c.TaxID), nullStr(c.Email), nullStr(c.Phone), nullStr(c.Address),
		c.CreditLimit, c.IsActive,
	)
	created, err := scanCustomer(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Customer{}, ErrAlreadyExists
		}
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return created, nil
}

// Update applies a partial field map to a customer row.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) (Customer, error) {
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
	query := fmt.Sprintf("UPDATE customers SET %s WHERE id = $%d RETURNING %s",
		strings.Join(set, ", "), i, customerColumns)
	c, err := scanCustomer(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return Customer{}, ErrAlreadyExists
		}
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// Get returns one customer by id.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE id = $1"
	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// List returns customers matching the filter with a total count.
func (r *Repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1
	if req.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR tax_id ILIKE $%d OR email ILIKE $%d)", i, i, i))
		args = append(args, "%"+req.Search+"%")
		i++
	}
	if req.ActiveOnly {
		where = append(where, "is_active = true")
	}
	if req.WithDebt {
		where = append(where, "current_credit > 0")
	}
	clause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM customers WHERE " + clause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM customers WHERE %s ORDER BY name LIMIT $%d OFFSET $%d",
		customerColumns, clause, i, i+1)
	args = append(args, req.PerPage, (req.Page-1)*req.PerPage)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
