package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferretek/ferretek/internal/catalog"
	"github.com/ferretek/ferretek/internal/customers"
	"github.com/ferretek/ferretek/internal/inventory"
	"github.com/ferretek/ferretek/internal/shared"
)

type custRow struct {
	CreditLimit    float64
	CurrentCredit  float64
	TotalPurchases float64
	HasPurchase    bool
}

// memRepo is an in-memory RepositoryPort plus TxRepository. WithTx snapshots
// all state up front and restores it when fn fails, so every operation is
// all-or-nothing like the real transaction.
type memRepo struct {
	mu         sync.Mutex
	nextNumber int64
	nextSaleID int64
	nextItemID int64
	sales      map[int64]*Sale
	stock      *memStock
	customers  map[int64]*custRow
	// failNextTx makes the next WithTx fail with this error before running
	// fn, to simulate a transient transaction failure.
	failNextTx error
}

type memStock struct {
	rows      map[int64]*inventory.StockRow
	movements []inventory.Movement
	// failAfter forces InsertMovement to fail once this many movements
	// exist, to simulate a write-phase fault.
	failAfter int
}

func newMemRepo() *memRepo {
	return &memRepo{
		sales:     map[int64]*Sale{},
		stock:     &memStock{rows: map[int64]*inventory.StockRow{}, failAfter: -1},
		customers: map[int64]*custRow{},
	}
}

func (r *memRepo) addProduct(row inventory.StockRow) {
	r.stock.rows[row.ID] = &row
}

func (r *memRepo) snapshot() *memRepo {
	clone := newMemRepo()
	clone.nextNumber = r.nextNumber
	clone.nextSaleID = r.nextSaleID
	clone.nextItemID = r.nextItemID
	for id, s := range r.sales {
		saleCopy := *s
		saleCopy.Items = append([]Item(nil), s.Items...)
		clone.sales[id] = &saleCopy
	}
	for id, row := range r.stock.rows {
		rowCopy := *row
		clone.stock.rows[id] = &rowCopy
	}
	clone.stock.movements = append([]inventory.Movement(nil), r.stock.movements...)
	clone.stock.failAfter = r.stock.failAfter
	for id, c := range r.customers {
		custCopy := *c
		clone.customers[id] = &custCopy
	}
	return clone
}

func (r *memRepo) restore(from *memRepo) {
	r.nextNumber = from.nextNumber
	r.nextSaleID = from.nextSaleID
	r.nextItemID = from.nextItemID
	r.sales = from.sales
	r.stock.rows = from.stock.rows
	r.stock.movements = from.stock.movements
	r.customers = from.customers
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextTx != nil {
		err := r.failNextTx
		r.failNextTx = nil
		return err
	}
	saved := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.restore(saved)
		return err
	}
	return nil
}

func (r *memRepo) Stock() inventory.TxStore { return r.stock }

func (r *memRepo) NextSaleNumber(context.Context) (string, error) {
	r.nextNumber++
	return fmt.Sprintf("V-%06d", r.nextNumber), nil
}

func (r *memRepo) InsertSale(_ context.Context, s Sale) (Sale, error) {
	r.nextSaleID++
	s.ID = r.nextSaleID
	s.CreatedAt = time.Now()
	saleCopy := s
	r.sales[s.ID] = &saleCopy
	return s, nil
}

func (r *memRepo) InsertItems(_ context.Context, saleID int64, items []Item) error {
	s, ok := r.sales[saleID]
	if !ok {
		return ErrNotFound
	}
	for _, item := range items {
		r.nextItemID++
		item.ID = r.nextItemID
		s.Items = append(s.Items, item)
	}
	return nil
}

func (r *memRepo) GetSaleForUpdate(_ context.Context, id int64) (Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return Sale{}, ErrNotFound
	}
	saleCopy := *s
	saleCopy.Items = append([]Item(nil), s.Items...)
	return saleCopy, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	s, ok := r.sales[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	return nil
}

func (r *memRepo) SetRefund(_ context.Context, id int64, refund Refund) error {
	s, ok := r.sales[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = StatusRefunded
	s.Refund = refund
	return nil
}

func (r *memRepo) CustomerCreditForUpdate(_ context.Context, customerID int64) (float64, float64, error) {
	c, ok := r.customers[customerID]
	if !ok {
		return 0, 0, fmt.Errorf("customer %d not found", customerID)
	}
	return c.CreditLimit, c.CurrentCredit, nil
}

func (r *memRepo) RecordCustomerPurchase(_ context.Context, customerID int64, total float64, credit bool) error {
	c, ok := r.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %d not found", customerID)
	}
	c.TotalPurchases += total
	c.HasPurchase = true
	if credit {
		c.CurrentCredit += total
	}
	return nil
}

func (r *memRepo) ReverseCustomerPurchase(_ context.Context, customerID int64, total float64, credit bool) error {
	c, ok := r.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %d not found", customerID)
	}
	c.TotalPurchases -= total
	if credit {
		c.CurrentCredit -= total
	}
	return nil
}

func (r *memRepo) Get(_ context.Context, id int64) (Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return Sale{}, ErrNotFound
	}
	return *s, nil
}

func (r *memRepo) GetByNumber(_ context.Context, number string) (Sale, error) {
	for _, s := range r.sales {
		if s.Number == number {
			return *s, nil
		}
	}
	return Sale{}, ErrNotFound
}

func (r *memRepo) List(context.Context, ListSalesRequest) ([]Sale, int, error) {
	return nil, 0, nil
}

func (r *memRepo) DailyReport(context.Context, time.Time) (DailyReport, error) {
	return DailyReport{}, nil
}

func (r *memRepo) StalePending(_ context.Context, cutoff time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []int64{}
	for id, s := range r.sales {
		if s.Status == StatusPending && s.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStock) GetStockForUpdate(_ context.Context, productID int64) (inventory.StockRow, error) {
	row, ok := s.rows[productID]
	if !ok {
		return inventory.StockRow{}, inventory.ErrProductNotFound
	}
	return *row, nil
}

func (s *memStock) UpdateStock(_ context.Context, productID, newStock int64) error {
	row, ok := s.rows[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	row.CurrentStock = newStock
	return nil
}

func (s *memStock) UpdateLocation(_ context.Context, productID int64, location string) error {
	row, ok := s.rows[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	row.Location = location
	return nil
}

func (s *memStock) InsertMovement(_ context.Context, m inventory.Movement) (int64, error) {
	if s.failAfter >= 0 && len(s.movements) >= s.failAfter {
		return 0, errors.New("movement write failed")
	}
	m.ID = int64(len(s.movements) + 1)
	s.movements = append(s.movements, m)
	return m.ID, nil
}

// stubCatalog serves product snapshots off the same stock rows the ledger
// mutates, with pricing supplied per product. Reads take the repo lock so
// concurrent tests stay race-free.
type stubCatalog struct {
	repo   *memRepo
	prices map[int64]float64
	skus   map[int64]string
}

func (c *stubCatalog) GetActiveBatch(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	out := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		row, ok := c.repo.stock.rows[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", catalog.ErrNotFound, id)
		}
		if !row.IsActive {
			return nil, fmt.Errorf("%w: product %d", catalog.ErrInactive, id)
		}
		out[id] = catalog.Product{
			ID:        id,
			SKU:       c.skus[id],
			Name:      row.Name,
			Pricing:   catalog.Pricing{SellingPrice: c.prices[id], CostPrice: row.CostPrice},
			Inventory: catalog.Inventory{CurrentStock: row.CurrentStock},
			IsActive:  true,
		}
	}
	return out, nil
}

func newTestService(repo *memRepo, prices map[int64]float64, skus map[int64]string) *Service {
	ledger := inventory.NewService(nil, nil, nil)
	cat := &stubCatalog{repo: repo, prices: prices, skus: skus}
	return NewService(repo, cat, ledger, NewCalculator(nil), nil, nil, nil)
}

var staff = shared.Actor{ID: 9, Name: "Vendedor", Role: shared.RoleEmployee}
var admin = shared.Actor{ID: 1, Name: "Dueño", Role: shared.RoleAdmin}

func TestCreateSalePersistsEverythingTogether(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Martillo", CurrentStock: 10, CostPrice: 8000, IsActive: true})
	repo.addProduct(inventory.StockRow{ID: 2, Name: "Tornillos", CurrentStock: 50, CostPrice: 2000, IsActive: true})
	repo.customers[5] = &custRow{CreditLimit: 100000}
	svc := newTestService(repo, map[int64]float64{1: 12990, 2: 4290}, map[int64]string{1: "MART-001", 2: "TORN-001"})

	sale, err := svc.CreateSale(context.Background(), staff, CreateSaleRequest{
		Items: []RequestLine{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3, Discount: 500},
		},
		CustomerID:    5,
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	assert.Equal(t, "V-000001", sale.Number)
	assert.Equal(t, StatusCompleted, sale.Status)
	assert.Equal(t, 38850.0, sale.Totals.Subtotal)
	assert.Equal(t, 500.0, sale.Totals.Discount)
	assert.Equal(t, 0.0, sale.Totals.Tax)
	assert.Equal(t, 38350.0, sale.Totals.Total)
	require.Len(t, sale.Items, 2)
	assert.Equal(t, 25980.0, sale.Items[0].Subtotal)
	assert.Equal(t, 12370.0, sale.Items[1].Subtotal)

	assert.Equal(t, int64(8), repo.stock.rows[1].CurrentStock)
	assert.Equal(t, int64(47), repo.stock.rows[2].CurrentStock)
	require.Len(t, repo.stock.movements, 2)
	for _, m := range repo.stock.movements {
		assert.Equal(t, inventory.MovementSale, m.Type)
		assert.Equal(t, "sale", m.Reference.DocumentType)
		assert.Equal(t, "V-000001", m.Reference.DocumentNumber)
	}

	c := repo.customers[5]
	assert.Equal(t, 38350.0, c.TotalPurchases)
	assert.True(t, c.HasPurchase)
	assert.Equal(t, 0.0, c.CurrentCredit)
}

func TestCreateSaleInsufficientStockLeavesNoTrace(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Llave inglesa", CurrentStock: 2, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 9990}, map[int64]string{1: "LL-001"})

	_, err := svc.CreateSale(context.Background(), staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Llave inglesa", insufficient.ProductName)
	assert.Equal(t, int64(2), insufficient.Available)

	assert.Equal(t, int64(2), repo.stock.rows[1].CurrentStock)
	assert.Empty(t, repo.stock.movements)
	assert.Empty(t, repo.sales)
}

func TestCreateSaleWritePhaseFailureRollsBackEverything(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "A", CurrentStock: 10, IsActive: true})
	repo.addProduct(inventory.StockRow{ID: 2, Name: "B", CurrentStock: 10, IsActive: true})
	repo.customers[5] = &custRow{}
	repo.stock.failAfter = 1 // second movement write fails
	svc := newTestService(repo, map[int64]float64{1: 100, 2: 200}, map[int64]string{1: "A-1", 2: "B-1"})

	_, err := svc.CreateSale(context.Background(), staff, CreateSaleRequest{
		Items: []RequestLine{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
		CustomerID:    5,
		PaymentMethod: PaymentCash,
	})
	require.Error(t, err)

	assert.Empty(t, repo.sales)
	assert.Empty(t, repo.stock.movements)
	assert.Equal(t, int64(10), repo.stock.rows[1].CurrentStock)
	assert.Equal(t, int64(10), repo.stock.rows[2].CurrentStock)
	assert.Equal(t, 0.0, repo.customers[5].TotalPurchases)
}

func TestCancelSaleRestoresStockExactly(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Sierra", CurrentStock: 6, IsActive: true})
	repo.customers[5] = &custRow{CreditLimit: 100000}
	svc := newTestService(repo, map[int64]float64{1: 15000}, map[int64]string{1: "SIE-001"})
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 4}},
		CustomerID:    5,
		PaymentMethod: PaymentCredit,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), repo.stock.rows[1].CurrentStock)
	assert.Equal(t, 60000.0, repo.customers[5].CurrentCredit)

	cancelled, err := svc.CancelSale(ctx, staff, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, int64(6), repo.stock.rows[1].CurrentStock)
	assert.Equal(t, 0.0, repo.customers[5].CurrentCredit)
	assert.Equal(t, 0.0, repo.customers[5].TotalPurchases)

	// one return movement per original sale movement
	require.Len(t, repo.stock.movements, 2)
	assert.Equal(t, inventory.MovementSale, repo.stock.movements[0].Type)
	assert.Equal(t, inventory.MovementReturn, repo.stock.movements[1].Type)

	_, err = svc.CancelSale(ctx, staff, sale.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRefundPartialBound(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Brocha", CurrentStock: 10, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 2500}, map[int64]string{1: "BRO-001"})
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCard,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), repo.stock.rows[1].CurrentStock)

	_, err = svc.RefundSale(ctx, staff, sale.ID, RefundRequest{
		Reason: "defective",
		Items:  []RefundLine{{ProductID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, ErrRefundExceedsSale)
	assert.Equal(t, int64(7), repo.stock.rows[1].CurrentStock)

	refunded, err := svc.RefundSale(ctx, staff, sale.ID, RefundRequest{
		Reason: "defective",
		Items:  []RefundLine{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)
	assert.True(t, refunded.Refund.IsRefunded)
	assert.Equal(t, 7500.0, refunded.Refund.Amount)
	assert.Equal(t, int64(10), repo.stock.rows[1].CurrentStock)

	_, err = svc.RefundSale(ctx, staff, sale.ID, RefundRequest{Reason: "again"})
	assert.ErrorIs(t, err, ErrAlreadyRefunded)
}

func TestRefundUnknownProductRejected(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Guantes", CurrentStock: 10, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 1500}, map[int64]string{1: "GUA-001"})
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	_, err = svc.RefundSale(ctx, staff, sale.ID, RefundRequest{
		Reason: "wrong sale",
		Items:  []RefundLine{{ProductID: 99, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrRefundExceedsSale)
}

func TestRefundWithoutItemsReversesEveryLine(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "A", CurrentStock: 10, IsActive: true})
	repo.addProduct(inventory.StockRow{ID: 2, Name: "B", CurrentStock: 10, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 100, 2: 200}, map[int64]string{1: "A-1", 2: "B-1"})
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items: []RequestLine{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 5},
		},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	refunded, err := svc.RefundSale(ctx, staff, sale.ID, RefundRequest{Reason: "order error"})
	require.NoError(t, err)
	assert.Equal(t, sale.Totals.Total, refunded.Refund.Amount)
	assert.Equal(t, int64(10), repo.stock.rows[1].CurrentStock)
	assert.Equal(t, int64(10), repo.stock.rows[2].CurrentStock)
}

func TestCreditLimitEnforcedInsideTransaction(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Generador", CurrentStock: 5, IsActive: true})
	repo.customers[5] = &custRow{CreditLimit: 100000, CurrentCredit: 80000}
	svc := newTestService(repo, map[int64]float64{1: 50000}, map[int64]string{1: "GEN-001"})

	_, err := svc.CreateSale(context.Background(), staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 1}},
		CustomerID:    5,
		PaymentMethod: PaymentCredit,
	})
	require.ErrorIs(t, err, customers.ErrCreditExceeded)

	// the stock decrement from earlier in the transaction rolled back
	assert.Equal(t, int64(5), repo.stock.rows[1].CurrentStock)
	assert.Empty(t, repo.sales)
	assert.Equal(t, 80000.0, repo.customers[5].CurrentCredit)
}

func TestPriceOverrideRequiresAdmin(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Taladro", CurrentStock: 5, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 49990}, map[int64]string{1: "TAL-001"})
	ctx := context.Background()
	override := 45000.0

	_, err := svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 1, UnitPrice: &override}},
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, ErrPriceOverride)

	sale, err := svc.CreateSale(ctx, admin, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 1, UnitPrice: &override}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, 45000.0, sale.Totals.Total)
}

func TestSaleNumbersStayUniqueUnderConcurrency(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Cinta", CurrentStock: 1000, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 990}, map[int64]string{1: "CIN-001"})

	const n = 30
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := svc.CreateSale(context.Background(), staff, CreateSaleRequest{
				Items:         []RequestLine{{ProductID: 1, Quantity: 1}},
				PaymentMethod: PaymentCash,
			})
			if err == nil {
				numbers <- sale.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	count := 0
	for number := range numbers {
		assert.False(t, seen[number], "duplicate sale number %s", number)
		seen[number] = true
		count++
	}
	assert.Equal(t, n, count)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Oferta", CurrentStock: 10, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 990}, map[int64]string{1: "OFE-001"})

	const n = 25
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSale(context.Background(), staff, CreateSaleRequest{
				Items:         []RequestLine{{ProductID: 1, Quantity: 1}},
				PaymentMethod: PaymentCash,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, inventory.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, int64(0), repo.stock.rows[1].CurrentStock)
	assert.Len(t, repo.stock.movements, 10)
}

func TestStockConservationAcrossOperations(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Pala", CurrentStock: 20, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 7990}, map[int64]string{1: "PAL-001"})
	ctx := context.Background()

	first, err := svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items: []RequestLine{{ProductID: 1, Quantity: 5}}, PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items: []RequestLine{{ProductID: 1, Quantity: 3}}, PaymentMethod: PaymentCard,
	})
	require.NoError(t, err)
	_, err = svc.CancelSale(ctx, staff, first.ID)
	require.NoError(t, err)

	// initial stock plus the signed sum of the ledger reproduces the
	// current value
	signed := int64(0)
	for _, m := range repo.stock.movements {
		signed += m.NewStock - m.PreviousStock
	}
	assert.Equal(t, int64(20)+signed, repo.stock.rows[1].CurrentStock)
	assert.Equal(t, int64(17), repo.stock.rows[1].CurrentStock)

	// every movement chain link is internally consistent
	for _, m := range repo.stock.movements {
		diff := m.NewStock - m.PreviousStock
		if diff < 0 {
			diff = -diff
		}
		assert.Equal(t, m.Quantity, diff)
	}
}

func TestPendingSaleCompletesAndDefersCustomerStats(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Escalera", CurrentStock: 4, IsActive: true})
	repo.customers[5] = &custRow{CreditLimit: 500000}
	svc := newTestService(repo, map[int64]float64{1: 89990}, map[int64]string{1: "ESC-001"})
	ctx := context.Background()

	sale, err := svc.createSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 1}},
		CustomerID:    5,
		PaymentMethod: PaymentCredit,
	}, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sale.Status)
	// stock reserved immediately, customer untouched until completion
	assert.Equal(t, int64(3), repo.stock.rows[1].CurrentStock)
	assert.Equal(t, 0.0, repo.customers[5].CurrentCredit)

	completed, err := svc.CompleteSale(ctx, staff, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Equal(t, 89990.0, repo.customers[5].CurrentCredit)
	assert.Equal(t, 89990.0, repo.customers[5].TotalPurchases)

	_, err = svc.CompleteSale(ctx, staff, sale.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReleasePendingReturnsReservedStock(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Compresor", CurrentStock: 2, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 159990}, map[int64]string{1: "COM-001"})
	ctx := context.Background()

	sale, err := svc.createSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 2}},
		PaymentMethod: PaymentCard,
	}, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(0), repo.stock.rows[1].CurrentStock)

	released, err := svc.ReleasePending(ctx, staff, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, released.Status)
	assert.Equal(t, int64(2), repo.stock.rows[1].CurrentStock)

	// only pending sales can be released
	_, err = svc.ReleasePending(ctx, staff, sale.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRefundDuplicateLinesCannotExceedSale(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Rodillo", CurrentStock: 10, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 3500}, map[int64]string{1: "ROD-001"})
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), repo.stock.rows[1].CurrentStock)

	// two lines for the same product summing past the sold quantity
	_, err = svc.RefundSale(ctx, staff, sale.ID, RefundRequest{
		Reason: "double entry",
		Items: []RefundLine{
			{ProductID: 1, Quantity: 3},
			{ProductID: 1, Quantity: 3},
		},
	})
	require.ErrorIs(t, err, ErrRefundExceedsSale)
	assert.Equal(t, int64(7), repo.stock.rows[1].CurrentStock)
	assert.Equal(t, StatusCompleted, repo.sales[sale.ID].Status)

	// split lines within the bound still work
	refunded, err := svc.RefundSale(ctx, staff, sale.ID, RefundRequest{
		Reason: "split return",
		Items: []RefundLine{
			{ProductID: 1, Quantity: 2},
			{ProductID: 1, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)
	assert.Equal(t, int64(10), repo.stock.rows[1].CurrentStock)
}

func TestReleaseStalePendingSweep(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(inventory.StockRow{ID: 1, Name: "Andamio", CurrentStock: 8, IsActive: true})
	svc := newTestService(repo, map[int64]float64{1: 120000}, map[int64]string{1: "AND-001"})
	ctx := context.Background()

	stale, err := svc.createSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCard,
	}, StatusPending)
	require.NoError(t, err)
	fresh, err := svc.createSale(ctx, staff, CreateSaleRequest{
		Items:         []RequestLine{{ProductID: 1, Quantity: 2}},
		PaymentMethod: PaymentCard,
	}, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(3), repo.stock.rows[1].CurrentStock)

	// age the first sale past the cutoff
	repo.sales[stale.ID].CreatedAt = time.Now().Add(-2 * time.Hour)

	released, err := svc.ReleaseStalePending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	assert.Equal(t, StatusCancelled, repo.sales[stale.ID].Status)
	assert.Equal(t, StatusPending, repo.sales[fresh.ID].Status)
	assert.Equal(t, int64(6), repo.stock.rows[1].CurrentStock)
}
