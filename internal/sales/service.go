package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ferretek/ferretek/internal/catalog"
	"github.com/ferretek/ferretek/internal/customers"
	"github.com/ferretek/ferretek/internal/inventory"
	"github.com/ferretek/ferretek/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	GetByNumber(ctx context.Context, number string) (Sale, error)
	List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error)
	DailyReport(ctx context.Context, day time.Time) (DailyReport, error)
	StalePending(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// CatalogPort resolves the products referenced by a sale request.
type CatalogPort interface {
	GetActiveBatch(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

// LedgerPort is the stock ledger. Every stock change of a sale flows
// through it so each write leaves a movement record.
type LedgerPort interface {
	ReserveAndApply(ctx context.Context, store inventory.TxStore, in inventory.ApplyInput) (inventory.Snapshot, error)
	Reverse(ctx context.Context, store inventory.TxStore, in inventory.ApplyInput) (inventory.Snapshot, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached product copies after stock writes.
type CacheInvalidator interface {
	InvalidateCached(ctx context.Context, ids ...int64)
}

// TaskEnqueuer schedules background work after a commit.
type TaskEnqueuer interface {
	EnqueueLowStockScan(ctx context.Context) error
}

// Service orchestrates sale creation and its compensating operations. All
// multi-row writes happen inside one repository transaction; nothing is
// retried internally, callers retry whole operations.
type Service struct {
	repo       RepositoryPort
	catalog    CatalogPort
	ledger     LedgerPort
	calculator *Calculator
	audit      AuditPort
	cache      CacheInvalidator
	tasks      TaskEnqueuer
}

// NewService builds Service. Audit, cache and tasks may be nil.
func NewService(repo RepositoryPort, catalogPort CatalogPort, ledger LedgerPort, calculator *Calculator, audit AuditPort, cache CacheInvalidator, tasks TaskEnqueuer) *Service {
	if calculator == nil {
		calculator = NewCalculator(nil)
	}
	return &Service{
		repo:       repo,
		catalog:    catalogPort,
		ledger:     ledger,
		calculator: calculator,
		audit:      audit,
		cache:      cache,
		tasks:      tasks,
	}
}

// CreateSale registers a completed sale: validates every line, computes
// authoritative totals, then persists the sale, its stock movements and the
// customer aggregates as one unit. Nothing persists on failure.
func (s *Service) CreateSale(ctx context.Context, actor shared.Actor, req CreateSaleRequest) (Sale, error) {
	return s.createSale(ctx, actor, req, StatusCompleted)
}

func (s *Service) createSale(ctx context.Context, actor shared.Actor, req CreateSaleRequest, status Status) (Sale, error) {
	if len(req.Items) == 0 {
		return Sale{}, &InvalidLineError{Reason: "sale needs at least one item"}
	}
	if !req.PaymentMethod.Valid() {
		return Sale{}, &InvalidLineError{Reason: fmt.Sprintf("unknown payment method %q", req.PaymentMethod)}
	}
	if req.PaymentMethod == PaymentCredit && req.CustomerID == 0 {
		return Sale{}, &InvalidLineError{Reason: "credit sales require a customer"}
	}

	ids := make([]int64, 0, len(req.Items))
	seen := make(map[int64]bool, len(req.Items))
	for _, line := range req.Items {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	products, err := s.catalog.GetActiveBatch(ctx, ids)
	if err != nil {
		return Sale{}, err
	}

	// Fail fast on the snapshot; the authoritative check happens again
	// under the row lock inside the transaction.
	requested := make(map[int64]int64, len(ids))
	for _, line := range req.Items {
		requested[line.ProductID] += line.Quantity
	}
	for id, quantity := range requested {
		product := products[id]
		if product.Inventory.CurrentStock < quantity {
			return Sale{}, &inventory.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Inventory.CurrentStock,
				Requested:   quantity,
			}
		}
	}

	items, totals, err := s.calculator.Price(req.Items, products, actor.Role == shared.RoleAdmin)
	if err != nil {
		return Sale{}, err
	}

	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		number, err := txr.NextSaleNumber(ctx)
		if err != nil {
			return err
		}
		sale, err = txr.InsertSale(ctx, Sale{
			Number:        number,
			CustomerID:    req.CustomerID,
			Totals:        totals,
			PaymentMethod: req.PaymentMethod,
			PaymentRef:    req.PaymentRef,
			Status:        status,
			SoldBy:        actor.ID,
			Notes:         req.Notes,
		})
		if err != nil {
			return err
		}
		if err := txr.InsertItems(ctx, sale.ID, items); err != nil {
			return err
		}
		store := txr.Stock()
		for _, item := range items {
			_, err := s.ledger.ReserveAndApply(ctx, store, inventory.ApplyInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Type:      inventory.MovementSale,
				Reference: inventory.Reference{DocumentType: "sale", DocumentID: sale.ID, DocumentNumber: number},
				ActorID:   actor.ID,
			})
			if err != nil {
				return err
			}
		}
		if status == StatusCompleted && req.CustomerID != 0 {
			if err := s.applyCustomerPurchase(ctx, txr, req.CustomerID, totals.Total, req.PaymentMethod); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	sale.Items = items

	s.invalidate(ctx, ids)
	s.record(ctx, actor.ID, "sales:create", sale, map[string]any{
		"total":          totals.Total,
		"payment_method": string(req.PaymentMethod),
		"items":          len(items),
	})
	s.scheduleLowStockScan(ctx)
	return sale, nil
}

func (s *Service) applyCustomerPurchase(ctx context.Context, txr TxRepository, customerID int64, total float64, method PaymentMethod) error {
	credit := method == PaymentCredit
	if credit {
		limit, current, err := txr.CustomerCreditForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if current+total > limit {
			return customers.ErrCreditExceeded
		}
	}
	return txr.RecordCustomerPurchase(ctx, customerID, total, credit)
}

// CompleteSale moves a pending sale to completed and applies the customer
// aggregates that were deferred at creation. Stock was already reserved.
func (s *Service) CompleteSale(ctx context.Context, actor shared.Actor, saleID int64) (Sale, error) {
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		var err error
		sale, err = txr.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusPending {
			return &InvalidStateError{SaleNumber: sale.Number, Status: sale.Status, Wanted: StatusPending}
		}
		if err := txr.UpdateStatus(ctx, saleID, StatusCompleted); err != nil {
			return err
		}
		if sale.CustomerID != 0 {
			if err := s.applyCustomerPurchase(ctx, txr, sale.CustomerID, sale.Totals.Total, sale.PaymentMethod); err != nil {
				return err
			}
		}
		sale.Status = StatusCompleted
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.record(ctx, actor.ID, "sales:complete", sale, nil)
	return sale, nil
}

// CancelSale reverses a completed sale in full: one return movement per
// original sale movement, status to cancelled and the customer aggregates
// rolled back, all in one transaction.
func (s *Service) CancelSale(ctx context.Context, actor shared.Actor, saleID int64) (Sale, error) {
	sale, ids, err := s.reverseSale(ctx, saleID, StatusCompleted, StatusCancelled, "Cancellation of %s")
	if err != nil {
		return Sale{}, err
	}
	s.invalidate(ctx, ids)
	s.record(ctx, actor.ID, "sales:cancel", sale, map[string]any{"total": sale.Totals.Total})
	return sale, nil
}

// releasePending returns reserved stock of a pending sale and marks it
// cancelled. The note says why the reservation ended.
func (s *Service) releasePending(ctx context.Context, saleID int64, noteFormat string) (Sale, error) {
	sale, ids, err := s.reverseSale(ctx, saleID, StatusPending, StatusCancelled, noteFormat)
	if err != nil {
		return Sale{}, err
	}
	s.invalidate(ctx, ids)
	return sale, nil
}

// ReleasePending lets staff free the reserved stock of a pending sale whose
// checkout never resolved, for example after the intent expired.
func (s *Service) ReleasePending(ctx context.Context, actor shared.Actor, saleID int64) (Sale, error) {
	sale, err := s.releasePending(ctx, saleID, "Pending sale %s released")
	if err != nil {
		return Sale{}, err
	}
	s.record(ctx, actor.ID, "sales:release", sale, nil)
	return sale, nil
}

// ReleaseStalePending sweeps pending sales created before the cutoff and
// returns their reserved stock. Sales that resolved concurrently are skipped.
func (s *Service) ReleaseStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := s.repo.StalePending(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	released := 0
	for _, id := range ids {
		if _, err := s.releasePending(ctx, id, "Stale pending sale %s released"); err != nil {
			if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
				continue
			}
			return released, err
		}
		released++
	}
	return released, nil
}

func (s *Service) reverseSale(ctx context.Context, saleID int64, from, to Status, noteFormat string) (Sale, []int64, error) {
	var sale Sale
	var ids []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		var err error
		sale, err = txr.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != from {
			return &InvalidStateError{SaleNumber: sale.Number, Status: sale.Status, Wanted: from}
		}
		store := txr.Stock()
		for _, item := range sale.Items {
			_, err := s.ledger.Reverse(ctx, store, inventory.ApplyInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Type:      inventory.MovementReturn,
				Reference: inventory.Reference{DocumentType: "sale", DocumentID: sale.ID, DocumentNumber: sale.Number},
				Note:      fmt.Sprintf(noteFormat, sale.Number),
			})
			if err != nil {
				return err
			}
			ids = append(ids, item.ProductID)
		}
		if err := txr.UpdateStatus(ctx, saleID, to); err != nil {
			return err
		}
		if from == StatusCompleted && sale.CustomerID != 0 {
			credit := sale.PaymentMethod == PaymentCredit
			if err := txr.ReverseCustomerPurchase(ctx, sale.CustomerID, sale.Totals.Total, credit); err != nil {
				return err
			}
		}
		sale.Status = to
		return nil
	})
	if err != nil {
		return Sale{}, nil, err
	}
	return sale, ids, nil
}

// RefundSale refunds a completed sale, fully or per line. Omitted items mean
// every line comes back in full. The refund sub-record is set exactly once.
func (s *Service) RefundSale(ctx context.Context, actor shared.Actor, saleID int64, req RefundRequest) (Sale, error) {
	var sale Sale
	var ids []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		var err error
		sale, err = txr.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Refund.IsRefunded {
			return ErrAlreadyRefunded
		}
		if sale.Status != StatusCompleted {
			return &InvalidStateError{SaleNumber: sale.Number, Status: sale.Status, Wanted: StatusCompleted}
		}

		lines := req.Items
		if len(lines) == 0 {
			// Full refund: implicit item list covering every line.
			for _, item := range sale.Items {
				lines = append(lines, RefundLine{ProductID: item.ProductID, Quantity: item.Quantity})
			}
		}
		sold := make(map[int64]int64, len(sale.Items))
		for _, item := range sale.Items {
			sold[item.ProductID] += item.Quantity
		}
		// Aggregate per product so duplicate lines cannot slip past the
		// sold-quantity bound.
		requested := make(map[int64]int64, len(lines))
		for _, line := range lines {
			if line.Quantity <= 0 {
				return &InvalidLineError{ProductID: line.ProductID, Reason: "refund quantity must be positive"}
			}
			requested[line.ProductID] += line.Quantity
		}
		for id, quantity := range requested {
			original, ok := sold[id]
			if !ok {
				return fmt.Errorf("%w: product %d is not part of sale %s", ErrRefundExceedsSale, id, sale.Number)
			}
			if quantity > original {
				return fmt.Errorf("%w: product %d sold %d, refund requests %d", ErrRefundExceedsSale, id, original, quantity)
			}
		}
		amount := sale.Totals.Total
		if req.Amount != nil {
			amount = *req.Amount
		}
		if amount > sale.Totals.Total {
			return fmt.Errorf("%w: amount %.2f exceeds sale total %.2f", ErrRefundExceedsSale, amount, sale.Totals.Total)
		}

		store := txr.Stock()
		for _, line := range lines {
			_, err := s.ledger.Reverse(ctx, store, inventory.ApplyInput{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Type:      inventory.MovementReturn,
				Reference: inventory.Reference{DocumentType: "sale", DocumentID: sale.ID, DocumentNumber: sale.Number},
				ActorID:   actor.ID,
				Note:      fmt.Sprintf("Refund of %s: %s", sale.Number, req.Reason),
			})
			if err != nil {
				return err
			}
			ids = append(ids, line.ProductID)
		}
		now := time.Now()
		refund := Refund{IsRefunded: true, Date: &now, Amount: amount, Reason: req.Reason, RefundedBy: actor.ID}
		if err := txr.SetRefund(ctx, saleID, refund); err != nil {
			return err
		}
		if sale.CustomerID != 0 {
			credit := sale.PaymentMethod == PaymentCredit
			if err := txr.ReverseCustomerPurchase(ctx, sale.CustomerID, amount, credit); err != nil {
				return err
			}
		}
		sale.Status = StatusRefunded
		sale.Refund = refund
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.invalidate(ctx, ids)
	s.record(ctx, actor.ID, "sales:refund", sale, map[string]any{
		"amount": sale.Refund.Amount,
		"reason": req.Reason,
	})
	return sale, nil
}

// Get returns one sale with resolved items.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumber returns one sale by its number.
func (s *Service) GetByNumber(ctx context.Context, number string) (Sale, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns sale headers matching the filter.
func (s *Service) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 || req.PerPage > 100 {
		req.PerPage = 20
	}
	return s.repo.List(ctx, req)
}

// Report aggregates one day of sales.
func (s *Service) Report(ctx context.Context, day time.Time) (DailyReport, error) {
	return s.repo.DailyReport(ctx, day)
}

func (s *Service) invalidate(ctx context.Context, ids []int64) {
	if s.cache != nil && len(ids) > 0 {
		s.cache.InvalidateCached(ctx, ids...)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, sale Sale, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = sale.Number
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", sale.ID),
		Meta:     meta,
	})
}

func (s *Service) scheduleLowStockScan(ctx context.Context) {
	if s.tasks == nil {
		return
	}
	_ = s.tasks.EnqueueLowStockScan(ctx)
}
