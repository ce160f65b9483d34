package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferretek/ferretek/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore exposes the transactional writes the ledger performs. The sales
// repository implements it too, so sale movements share the sale's
// transaction.
type TxStore interface {
	GetStockForUpdate(ctx context.Context, productID int64) (StockRow, error)
	UpdateStock(ctx context.Context, productID, newStock int64) error
	UpdateLocation(ctx context.Context, productID int64, location string) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction in the ledger's store interface.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

func (s *txStore) GetStockForUpdate(ctx context.Context, productID int64) (StockRow, error) {
	var row StockRow
	var location *string
	err := s.tx.QueryRow(ctx, `SELECT id, name, current_stock, cost_price, location, is_active
FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&row.ID, &row.Name, &row.CurrentStock, &row.CostPrice, &location, &row.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRow{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return StockRow{}, err
	}
	if location != nil {
		row.Location = *location
	}
	return row, nil
}

func (s *txStore) UpdateStock(ctx context.Context, productID, newStock int64) error {
	tag, err := s.tx.Exec(ctx, `UPDATE products SET current_stock=$1, updated_at=NOW() WHERE id=$2`, newStock, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return nil
}

func (s *txStore) UpdateLocation(ctx context.Context, productID int64, location string) error {
	_, err := s.tx.Exec(ctx, `UPDATE products SET location=$1, updated_at=NOW() WHERE id=$2`, location, productID)
	return err
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_movements
(product_id, type, quantity, previous_stock, new_stock, unit_cost, total_cost,
 document_type, document_id, document_number, actor_id, supplier_id, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
RETURNING id`,
		m.ProductID, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock, m.UnitCost, m.TotalCost,
		nullStr(m.Reference.DocumentType), nullInt(m.Reference.DocumentID), nullStr(m.Reference.DocumentNumber),
		m.ActorID, nullInt(m.SupplierID), nullStr(m.Note)).Scan(&id)
	return id, err
}

const movementColumns = `id, product_id, type, quantity, previous_stock, new_stock, unit_cost, total_cost,
document_type, document_id, document_number, actor_id, supplier_id, note, created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	var docType, docNumber, note *string
	var docID, supplierID *int64
	err := row.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PreviousStock, &m.NewStock,
		&m.UnitCost, &m.TotalCost, &docType, &docID, &docNumber, &m.ActorID, &supplierID, &note, &m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	if docType != nil {
		m.Reference.DocumentType = *docType
	}
	if docID != nil {
		m.Reference.DocumentID = *docID
	}
	if docNumber != nil {
		m.Reference.DocumentNumber = *docNumber
	}
	if supplierID != nil {
		m.SupplierID = *supplierID
	}
	if note != nil {
		m.Note = *note
	}
	return m, nil
}

// ListMovements returns ledger entries matching filter plus the total count.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	conds := []string{"TRUE"}
	args := []interface{}{}
	i := 1
	if filter.ProductID != 0 {
		conds = append(conds, fmt.Sprintf("product_id=$%d", i))
		args = append(args, filter.ProductID)
		i++
	}
	if filter.Type != "" {
		conds = append(conds, fmt.Sprintf("type=$%d", i))
		args = append(args, string(filter.Type))
		i++
	}
	if !filter.From.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", i))
		args = append(args, filter.From)
		i++
	}
	if !filter.To.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", i))
		args = append(args, filter.To)
		i++
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM inventory_movements WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf("SELECT %s FROM inventory_movements WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		movementColumns, where, i, i+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	return movements, total, rows.Err()
}

// MovementsForProduct returns a product's chain in creation order.
func (r *Repository) MovementsForProduct(ctx context.Context, productID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+movementColumns+" FROM inventory_movements WHERE product_id=$1 ORDER BY id ASC", productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// CurrentStock reads the product's stock view without locking.
func (r *Repository) CurrentStock(ctx context.Context, productID int64) (StockRow, error) {
	var row StockRow
	var location *string
	err := r.pool.QueryRow(ctx, `SELECT id, name, current_stock, cost_price, location, is_active FROM products WHERE id=$1`, productID).
		Scan(&row.ID, &row.Name, &row.CurrentStock, &row.CostPrice, &location, &row.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRow{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return StockRow{}, err
	}
	if location != nil {
		row.Location = *location
	}
	return row, nil
}

// OutOfStock lists active products with nothing left on the shelf.
func (r *Repository) OutOfStock(ctx context.Context) ([]StockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, current_stock, cost_price, location, is_active
FROM products WHERE is_active AND current_stock = 0 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StockRow{}
	for rows.Next() {
		var row StockRow
		var location *string
		if err := rows.Scan(&row.ID, &row.Name, &row.CurrentStock, &row.CostPrice, &location, &row.IsActive); err != nil {
			return nil, err
		}
		if location != nil {
			row.Location = *location
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Valuation sums the active inventory at cost price.
func (r *Repository) Valuation(ctx context.Context) (Valuation, error) {
	var v Valuation
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(current_stock), 0), COALESCE(SUM(current_stock * cost_price), 0)
FROM products WHERE is_active`).Scan(&v.Products, &v.Units, &v.TotalCost)
	if err != nil {
		return Valuation{}, err
	}
	return v, nil
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
