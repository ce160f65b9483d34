package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferretek/ferretek/internal/inventory"
	"github.com/ferretek/ferretek/internal/platform/db"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the write surface available inside one sale transaction.
// Stock returns a ledger store bound to the same transaction, so the sale
// document, its movements and the customer aggregates commit or roll back
// together.
type TxRepository interface {
	NextSaleNumber(ctx context.Context) (string, error)
	InsertSale(ctx context.Context, s Sale) (Sale, error)
	InsertItems(ctx context.Context, saleID int64, items []Item) error
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetRefund(ctx context.Context, id int64, refund Refund) error
	CustomerCreditForUpdate(ctx context.Context, customerID int64) (limit, current float64, err error)
	RecordCustomerPurchase(ctx context.Context, customerID int64, total float64, credit bool) error
	ReverseCustomerPurchase(ctx context.Context, customerID int64, total float64, credit bool) error
	Stock() inventory.TxStore
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside one transaction covering sales, movements and
// customer rows.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) Stock() inventory.TxStore {
	return inventory.NewTxStore(t.tx)
}

// NextSaleNumber takes the next value of the sale number sequence. The
// sequence lives in the database so concurrent transactions never collide.
func (t *txRepo) NextSaleNumber(ctx context.Context) (string, error) {
	var n int64
	if err := t.tx.QueryRow(ctx, "SELECT nextval('sale_number_seq')").Scan(&n); err != nil {
		return "", fmt.Errorf("next sale number: %w", err)
	}
	return fmt.Sprintf("V-%06d", n), nil
}

func (t *txRepo) InsertSale(ctx context.Context, s Sale) (Sale, error) {
	query := `INSERT INTO sales (number, customer_id, subtotal, discount, tax, total,
			payment_method, payment_ref, status, sold_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	err := t.tx.QueryRow(ctx, query,
		s.Number, nullID(s.CustomerID), s.Totals.Subtotal, s.Totals.Discount, s.Totals.Tax, s.Totals.Total,
		string(s.PaymentMethod), nullStr(s.PaymentRef), string(s.Status), s.SoldBy, nullStr(s.Notes),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Sale{}, fmt.Errorf("insert sale: %w", err)
	}
	return s, nil
}

func (t *txRepo) InsertItems(ctx context.Context, saleID int64, items []Item) error {
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			saleID, item.ProductID, item.ProductName, item.SKU,
			item.Quantity, item.UnitPrice, item.Discount, item.Subtotal,
		})
	}
	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"sale_items"},
		[]string{"sale_id", "product_id", "product_name", "sku", "quantity", "unit_price", "discount", "subtotal"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}
	return nil
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	query := "SELECT " + saleColumns + " FROM sales WHERE id = $1 FOR UPDATE"
	s, err := scanSale(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, fmt.Errorf("lock sale: %w", err)
	}
	items, err := loadItems(ctx, t.tx, id)
	if err != nil {
		return Sale{}, err
	}
	s.Items = items
	return s, nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, "UPDATE sales SET status = $1, updated_at = now() WHERE id = $2", string(status), id)
	if err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetRefund(ctx context.Context, id int64, refund Refund) error {
	payload, err := json.Marshal(refund)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		"UPDATE sales SET status = $1, refund = $2, updated_at = now() WHERE id = $3",
		string(StatusRefunded), payload, id)
	if err != nil {
		return fmt.Errorf("set refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) CustomerCreditForUpdate(ctx context.Context, customerID int64) (float64, float64, error) {
	var limit, current float64
	err := t.tx.QueryRow(ctx,
		"SELECT credit_limit, current_credit FROM customers WHERE id = $1 FOR UPDATE",
		customerID).Scan(&limit, &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("customer %d not found", customerID)
		}
		return 0, 0, fmt.Errorf("lock customer: %w", err)
	}
	return limit, current, nil
}

func (t *txRepo) RecordCustomerPurchase(ctx context.Context, customerID int64, total float64, credit bool) error {
	creditDelta := 0.0
	if credit {
		creditDelta = total
	}
	_, err := t.tx.Exec(ctx, `UPDATE customers
		SET total_purchases = total_purchases + $1,
			current_credit = current_credit + $2,
			last_purchase = now(),
			updated_at = now()
		WHERE id = $3`, total, creditDelta, customerID)
	if err != nil {
		return fmt.Errorf("record customer purchase: %w", err)
	}
	return nil
}

func (t *txRepo) ReverseCustomerPurchase(ctx context.Context, customerID int64, total float64, credit bool) error {
	creditDelta := 0.0
	if credit {
		creditDelta = total
	}
	_, err := t.tx.Exec(ctx, `UPDATE customers
		SET total_purchases = greatest(total_purchases - $1, 0),
			current_credit = greatest(current_credit - $2, 0),
			updated_at = now()
		WHERE id = $3`, total, creditDelta, customerID)
	if err != nil {
		return fmt.Errorf("reverse customer purchase: %w", err)
	}
	return nil
}

const saleColumns = `id, number, customer_id, subtotal, discount, tax, total,
	payment_method, payment_ref, status, refund, sold_by, notes, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var customerID *int64
	var paymentRef, notes *string
	var refund []byte
	err := row.Scan(
		&s.ID, &s.Number, &customerID,
		&s.Totals.Subtotal, &s.Totals.Discount, &s.Totals.Tax, &s.Totals.Total,
		&s.PaymentMethod, &paymentRef, &s.Status, &refund,
		&s.SoldBy, &notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return Sale{}, err
	}
	if customerID != nil {
		s.CustomerID = *customerID
	}
	if paymentRef != nil {
		s.PaymentRef = *paymentRef
	}
	if notes != nil {
		s.Notes = *notes
	}
	if len(refund) > 0 {
		if err := json.Unmarshal(refund, &s.Refund); err != nil {
			return Sale{}, fmt.Errorf("decode refund: %w", err)
		}
	}
	return s, nil
}

func loadItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, saleID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, product_id, product_name, sku, quantity, unit_price, discount, subtotal
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.SKU,
			&item.Quantity, &item.UnitPrice, &item.Discount, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns one sale with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	query := "SELECT " + saleColumns + " FROM sales WHERE id = $1"
	s, err := scanSale(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, fmt.Errorf("get sale: %w", err)
	}
	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return Sale{}, err
	}
	s.Items = items
	return s, nil
}

// GetByNumber returns one sale by its human-readable number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (Sale, error) {
	query := "SELECT " + saleColumns + " FROM sales WHERE number = $1"
	s, err := scanSale(r.pool.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, fmt.Errorf("get sale by number: %w", err)
	}
	items, err := loadItems(ctx, r.pool, s.ID)
	if err != nil {
		return Sale{}, err
	}
	s.Items = items
	return s, nil
}

// List returns sale headers matching the filter, newest first. Items are not
// loaded; listings are header-only.
func (r *Repository) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1
	if req.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", i))
		args = append(args, string(req.Status))
		i++
	}
	if req.CustomerID != 0 {
		where = append(where, fmt.Sprintf("customer_id = $%d", i))
		args = append(args, req.CustomerID)
		i++
	}
	if !req.From.IsZero() {
		where = append(where, fmt.Sprintf("created_at >= $%d", i))
		args = append(args, req.From)
		i++
	}
	if !req.To.IsZero() {
		where = append(where, fmt.Sprintf("created_at < $%d", i))
		args = append(args, req.To)
		i++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM sales WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		saleColumns, clause, i, i+1)
	args = append(args, req.PerPage, (req.Page-1)*req.PerPage)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]Sale, 0)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, s)
	}
	return sales, total, rows.Err()
}

// StalePending lists pending sales created before the cutoff. Their reserved
// stock is released by the sweep.
func (r *Repository) StalePending(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id FROM sales WHERE status = $1 AND created_at < $2 ORDER BY id",
		string(StatusPending), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale pending sales: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DailyReport aggregates completed sales for one local day.
func (r *Repository) DailyReport(ctx context.Context, day time.Time) (DailyReport, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	report := DailyReport{Date: start.Format("2006-01-02"), ByMethod: map[PaymentMethod]float64{}}

	rows, err := r.pool.Query(ctx, `SELECT payment_method, COUNT(*), COALESCE(SUM(total), 0)
		FROM sales
		WHERE status IN ('completed', 'refunded') AND created_at >= $1 AND created_at < $2
		GROUP BY payment_method`, start, end)
	if err != nil {
		return DailyReport{}, fmt.Errorf("daily report: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var count int
		var sum float64
		if err := rows.Scan(&method, &count, &sum); err != nil {
			return DailyReport{}, err
		}
		report.SaleCount += count
		report.Total += sum
		report.ByMethod[PaymentMethod(method)] = sum
	}
	if err := rows.Err(); err != nil {
		return DailyReport{}, err
	}

	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(i.quantity), 0)
		FROM sale_items i JOIN sales s ON s.id = i.sale_id
		WHERE s.status IN ('completed', 'refunded') AND s.created_at >= $1 AND s.created_at < $2`,
		start, end).Scan(&report.ItemsSold)
	if err != nil {
		return DailyReport{}, fmt.Errorf("daily report items: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM((refund->>'amount')::numeric) FILTER (WHERE status = 'refunded'), 0)
		FROM sales WHERE created_at >= $1 AND created_at < $2`,
		start, end).Scan(&report.Cancelled, &report.Refunded)
	if err != nil {
		return DailyReport{}, fmt.Errorf("daily report compensations: %w", err)
	}
	return report, nil
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
