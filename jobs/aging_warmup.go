package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/ar"
)

// AgingWarmupJob pre-populates the AR aging cache so dashboard requests hit
// warm snapshots.
type AgingWarmupJob struct {
	AR     *ar.Service
	Logger *slog.Logger
	clock  func() time.Time
}

// NewAgingWarmupJob wires dependencies for the warmup handler.
func NewAgingWarmupJob(arService *ar.Service, logger *slog.Logger) *AgingWarmupJob {
	return &AgingWarmupJob{
		AR:     arService,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes aging warmup tasks.
func (j *AgingWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.AR == nil {
		return errors.New("aging warmup: handler not configured")
	}
	var payload AgingWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	asOf := j.clock()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return asynq.SkipRetry
		}
		asOf = parsed
	}

	started := j.clock()
	summary, err := j.AR.AgingSummary(ctx, asOf)
	if err != nil {
		return err
	}
	if _, err := j.AR.CustomerAging(ctx, asOf); err != nil {
		return err
	}

	if j.Logger != nil {
		j.Logger.Info("aging warmup complete",
			slog.String("as_of", summary.AsOf.Format("2006-01-02")),
			slog.Float64("total_outstanding", summary.TotalOutstanding),
			slog.Duration("took", j.clock().Sub(started)),
		)
	}
	return nil
}
