package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ferretek/ferretek/internal/catalog"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan walks the catalog for products at or below their
	// reorder threshold. Enqueued after stock-decrementing commits and
	// nightly by cron.
	TaskLowStockScan = "inventory:low_stock_scan"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewLowStockScanTask constructs an Asynq task for a low-stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{RequestedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockLister lists products at or below their minimum stock.
type LowStockLister interface {
	LowStock(ctx context.Context) ([]catalog.Product, error)
}

// NewLowStockScanHandler builds the handler processing TaskLowStockScan
// tasks. Findings are logged for the purchasing desk; the scan mutates
// nothing.
func NewLowStockScanHandler(lister LowStockLister, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		products, err := lister.LowStock(ctx)
		if err != nil {
			return err
		}
		for _, p := range products {
			logger.Warn("low stock",
				slog.String("sku", p.SKU),
				slog.String("name", p.Name),
				slog.Int64("current_stock", p.Inventory.CurrentStock),
				slog.Int64("min_stock", p.Inventory.MinStock),
				slog.Int64("supplier_id", p.SupplierID),
			)
		}
		logger.Info("low stock scan finished", slog.Int("flagged", len(products)))
		return nil
	}
}
