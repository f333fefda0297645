// Package jobs wires background processing for AR aging snapshots.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAgingWarmup recomputes the AR aging snapshot and warms the cache.
	TaskAgingWarmup = "ar:aging_warmup"
)

// AgingWarmupPayload scopes one warmup run. An empty AsOf means today.
type AgingWarmupPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewAgingWarmupTask constructs an Asynq task for an aging warmup run.
func NewAgingWarmupTask(asOf string) (*asynq.Task, error) {
	data, err := json.Marshal(AgingWarmupPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgingWarmup, data), nil
}
