package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskReleaseStaleSales frees the stock reserved by pending sales whose
	// checkout never resolved, for example after the intent TTL passed.
	TaskReleaseStaleSales = "sales:release_stale"
)

// ReleaseStaleSalesPayload sets the age a pending sale must reach before the
// sweep releases it. Zero means one hour.
type ReleaseStaleSalesPayload struct {
	OlderThanMinutes int `json:"older_than_minutes,omitempty"`
}

// NewReleaseStaleSalesTask constructs an Asynq task for the pending-sale sweep.
func NewReleaseStaleSalesTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(ReleaseStaleSalesPayload{OlderThanMinutes: int(olderThan.Minutes())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReleaseStaleSales, body, asynq.Queue(QueueDefault)), nil
}

// StaleSaleReleaser returns reserved stock of pending sales older than the
// cutoff.
type StaleSaleReleaser interface {
	ReleaseStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// NewReleaseStaleSalesHandler builds the handler processing
// TaskReleaseStaleSales tasks.
func NewReleaseStaleSalesHandler(releaser StaleSaleReleaser, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReleaseStaleSalesPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		olderThan := time.Duration(payload.OlderThanMinutes) * time.Minute
		if olderThan <= 0 {
			olderThan = time.Hour
		}
		released, err := releaser.ReleaseStalePending(ctx, olderThan)
		if err != nil {
			return err
		}
		if released > 0 {
			logger.Info("released stale pending sales", slog.Int("released", released))
		}
		return nil
	}
}
