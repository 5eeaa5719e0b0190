package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeRefresh is the asynq task type that reloads the rule catalog.
const TypeRefresh = "catalog:refresh"

// Refresher reloads the rule catalog.
type Refresher interface {
	Refresh(ctx context.Context) (Rules, error)
}

// NewRefreshTask builds a catalog refresh task.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TypeRefresh, nil, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
}

// RefreshHandler returns the asynq handler for TypeRefresh.
func RefreshHandler(r Refresher) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if _, err := r.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh catalog: %w", err)
		}
		return nil
	}
}
