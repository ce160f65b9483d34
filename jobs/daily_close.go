package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ferretek/ferretek/internal/sales"
)

const (
	// TaskDailyClose snapshots the previous day's register totals.
	TaskDailyClose = "sales:daily_close"
)

// DailyClosePayload names the day to close. Zero means yesterday.
type DailyClosePayload struct {
	Day string `json:"day,omitempty"`
}

// NewDailyCloseTask constructs an Asynq task for the register close.
func NewDailyCloseTask(day string) (*asynq.Task, error) {
	body, err := json.Marshal(DailyClosePayload{Day: day})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailyClose, body, asynq.Queue(QueueDefault)), nil
}

// DailyReporter aggregates one day of sales.
type DailyReporter interface {
	DailyReport(ctx context.Context, day time.Time) (sales.DailyReport, error)
}

// NewDailyCloseHandler builds the handler processing TaskDailyClose tasks.
func NewDailyCloseHandler(reporter DailyReporter, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DailyClosePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		day := time.Now().AddDate(0, 0, -1)
		if payload.Day != "" {
			parsed, err := time.Parse("2006-01-02", payload.Day)
			if err != nil {
				return asynq.SkipRetry
			}
			day = parsed
		}
		report, err := reporter.DailyReport(ctx, day)
		if err != nil {
			return err
		}
		logger.Info("daily close",
			slog.String("date", report.Date),
			slog.Int("sales", report.SaleCount),
			slog.Float64("total", report.Total),
			slog.Float64("refunded", report.Refunded),
			slog.Int("cancelled", report.Cancelled),
		)
		return nil
	}
}
