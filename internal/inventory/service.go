package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ferretek/ferretek/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
	MovementsForProduct(ctx context.Context, productID int64) ([]Movement, error)
	CurrentStock(ctx context.Context, productID int64) (StockRow, error)
	OutOfStock(ctx context.Context) ([]StockRow, error)
	Valuation(ctx context.Context) (Valuation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached product copies after stock writes.
type CacheInvalidator interface {
	InvalidateCached(ctx context.Context, ids ...int64)
}

// Service is the stock ledger. It owns every write to a product's current
// stock and appends exactly one movement record per write.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache CacheInvalidator
}

// NewService builds Service. Audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheInvalidator) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// ReserveAndApply validates availability and applies a movement inside the
// caller's transaction. Decrementing types fail with InsufficientStockError
// when the locked stock is below the requested quantity.
func (s *Service) ReserveAndApply(ctx context.Context, store TxStore, in ApplyInput) (Snapshot, error) {
	dir := in.Type.direction()
	if dir == 0 {
		return Snapshot{}, fmt.Errorf("inventory: movement type %q needs an explicit direction", in.Type)
	}
	return s.post(ctx, store, in, dir)
}

// Reverse restores stock for a compensating operation. It never enforces an
// upper bound; exceeding max stock is informational only.
func (s *Service) Reverse(ctx context.Context, store TxStore, in ApplyInput) (Snapshot, error) {
	if in.Type == "" {
		in.Type = MovementReturn
	}
	return s.post(ctx, store, in, 1)
}

func (s *Service) post(ctx context.Context, store TxStore, in ApplyInput, dir int64) (Snapshot, error) {
	if in.Quantity <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	row, err := store.GetStockForUpdate(ctx, in.ProductID)
	if err != nil {
		return Snapshot{}, err
	}
	if dir < 0 && row.CurrentStock < in.Quantity {
		return Snapshot{}, &InsufficientStockError{
			ProductID:   row.ID,
			ProductName: row.Name,
			Available:   row.CurrentStock,
			Requested:   in.Quantity,
		}
	}
	newStock := row.CurrentStock + dir*in.Quantity
	unitCost := in.UnitCost
	if unitCost == 0 {
		unitCost = row.CostPrice
	}
	if err := store.UpdateStock(ctx, in.ProductID, newStock); err != nil {
		return Snapshot{}, err
	}
	movement := Movement{
		ProductID:     in.ProductID,
		Type:          in.Type,
		Quantity:      in.Quantity,
		PreviousStock: row.CurrentStock,
		NewStock:      newStock,
		UnitCost:      unitCost,
		TotalCost:     unitCost * float64(in.Quantity),
		Reference:     in.Reference,
		ActorID:       in.ActorID,
		SupplierID:    in.SupplierID,
		Note:          in.Note,
	}
	if _, err := store.InsertMovement(ctx, movement); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{PreviousStock: row.CurrentStock, NewStock: newStock}, nil
}

// Adjust sets a product's stock to a counted value and records the delta.
func (s *Service) Adjust(ctx context.Context, in AdjustmentInput) (Snapshot, error) {
	if in.NewStock < 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	var snap Snapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		row, err := store.GetStockForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		delta := in.NewStock - row.CurrentStock
		if delta == 0 {
			return errors.New("inventory: adjustment changes nothing")
		}
		quantity := delta
		if quantity < 0 {
			quantity = -quantity
		}
		if err := store.UpdateStock(ctx, in.ProductID, in.NewStock); err != nil {
			return err
		}
		movement := Movement{
			ProductID:     in.ProductID,
			Type:          MovementAdjustment,
			Quantity:      quantity,
			PreviousStock: row.CurrentStock,
			NewStock:      in.NewStock,
			UnitCost:      row.CostPrice,
			TotalCost:     row.CostPrice * float64(quantity),
			Reference:     Reference{DocumentType: "adjustment"},
			ActorID:       in.ActorID,
			Note:          in.Reason,
		}
		if _, err := store.InsertMovement(ctx, movement); err != nil {
			return err
		}
		snap = Snapshot{PreviousStock: row.CurrentStock, NewStock: in.NewStock}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.invalidate(ctx, in.ProductID)
	s.record(ctx, in.ActorID, "inventory:adjustment", in.ProductID, map[string]any{
		"previous_stock": snap.PreviousStock,
		"new_stock":      snap.NewStock,
		"reason":         in.Reason,
	})
	return snap, nil
}

// Transfer moves stock between bin locations. Total stock is unchanged; the
// move is recorded as an out/in movement pair so the ledger chain stays
// contiguous.
func (s *Service) Transfer(ctx context.Context, in TransferInput) error {
	if in.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if in.ToLocation == "" {
		return errors.New("inventory: destination location required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		row, err := store.GetStockForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if row.CurrentStock < in.Quantity {
			return &InsufficientStockError{ProductID: row.ID, ProductName: row.Name, Available: row.CurrentStock, Requested: in.Quantity}
		}
		from := in.FromLocation
		if from == "" {
			from = row.Location
		}
		out := Movement{
			ProductID:     in.ProductID,
			Type:          MovementTransfer,
			Quantity:      in.Quantity,
			PreviousStock: row.CurrentStock,
			NewStock:      row.CurrentStock - in.Quantity,
			UnitCost:      row.CostPrice,
			TotalCost:     row.CostPrice * float64(in.Quantity),
			Reference:     Reference{DocumentType: "transfer"},
			ActorID:       in.ActorID,
			Note:          fmt.Sprintf("Transfer out of %s: %s", from, in.Note),
		}
		if _, err := store.InsertMovement(ctx, out); err != nil {
			return err
		}
		inMov := out
		inMov.PreviousStock = out.NewStock
		inMov.NewStock = row.CurrentStock
		inMov.Note = fmt.Sprintf("Transfer into %s: %s", in.ToLocation, in.Note)
		if _, err := store.InsertMovement(ctx, inMov); err != nil {
			return err
		}
		return store.UpdateLocation(ctx, in.ProductID, in.ToLocation)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, in.ProductID)
	s.record(ctx, in.ActorID, "inventory:transfer", in.ProductID, map[string]any{
		"quantity": in.Quantity,
		"to":       in.ToLocation,
	})
	return nil
}

// PostPurchase receives stock from a supplier.
func (s *Service) PostPurchase(ctx context.Context, in PurchaseInput) (Snapshot, error) {
	if in.UnitCost < 0 {
		return Snapshot{}, errors.New("inventory: unit cost must not be negative")
	}
	var snap Snapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		snap, err = s.post(ctx, store, ApplyInput{
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			Type:       MovementPurchase,
			UnitCost:   in.UnitCost,
			SupplierID: in.SupplierID,
			Reference:  Reference{DocumentType: "purchase_order", DocumentNumber: in.DocumentNumber},
			ActorID:    in.ActorID,
			Note:       in.Note,
		}, 1)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.invalidate(ctx, in.ProductID)
	s.record(ctx, in.ActorID, "inventory:purchase", in.ProductID, map[string]any{
		"quantity":  in.Quantity,
		"unit_cost": in.UnitCost,
	})
	return snap, nil
}

// PostDamage writes off damaged stock.
func (s *Service) PostDamage(ctx context.Context, in DamageInput) (Snapshot, error) {
	var snap Snapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		snap, err = s.post(ctx, store, ApplyInput{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Type:      MovementDamage,
			Reference: Reference{DocumentType: "adjustment"},
			ActorID:   in.ActorID,
			Note:      in.Reason,
		}, -1)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.invalidate(ctx, in.ProductID)
	s.record(ctx, in.ActorID, "inventory:damage", in.ProductID, map[string]any{
		"quantity": in.Quantity,
		"reason":   in.Reason,
	})
	return snap, nil
}

// ListMovements lists ledger entries matching the filter.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	return s.repo.ListMovements(ctx, filter)
}

// History returns the full movement chain of one product in creation order.
func (s *Service) History(ctx context.Context, productID int64) ([]Movement, error) {
	return s.repo.MovementsForProduct(ctx, productID)
}

// OutOfStock lists active products with no stock left.
func (s *Service) OutOfStock(ctx context.Context) ([]StockRow, error) {
	return s.repo.OutOfStock(ctx)
}

// Valuation prices the active inventory at cost.
func (s *Service) Valuation(ctx context.Context) (Valuation, error) {
	return s.repo.Valuation(ctx)
}

// Reconcile replays a product's movement chain and checks it reproduces the
// current stock: every link's quantity matches its before/after pair, links
// are contiguous, and the final value equals the product row.
func (s *Service) Reconcile(ctx context.Context, productID int64) (ReconcileResult, error) {
	row, err := s.repo.CurrentStock(ctx, productID)
	if err != nil {
		return ReconcileResult{}, err
	}
	movements, err := s.repo.MovementsForProduct(ctx, productID)
	if err != nil {
		return ReconcileResult{}, err
	}
	result := ReconcileResult{
		ProductID:    productID,
		CurrentStock: row.CurrentStock,
		Movements:    len(movements),
	}
	if len(movements) == 0 {
		result.LedgerStock = row.CurrentStock
		result.Consistent = true
		return result, nil
	}
	consistent := true
	prev := movements[0].PreviousStock
	for _, m := range movements {
		if m.PreviousStock != prev {
			consistent = false
			break
		}
		diff := m.NewStock - m.PreviousStock
		if diff < 0 {
			diff = -diff
		}
		if diff != m.Quantity {
			consistent = false
			break
		}
		prev = m.NewStock
	}
	result.LedgerStock = movements[len(movements)-1].NewStock
	result.Consistent = consistent && result.LedgerStock == row.CurrentStock
	return result, nil
}

func (s *Service) invalidate(ctx context.Context, productID int64) {
	if s.cache != nil {
		s.cache.InvalidateCached(ctx, productID)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
	})
}
