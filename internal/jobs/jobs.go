// Package jobs defines the background task types shared by the API and
// the worker.
package jobs

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

// TypeCacheRefresh re-renders one cached response from upstream.
const TypeCacheRefresh = "cache:refresh"

// Refresh modes. Each mode names the proxy operation to re-run.
const (
	ModeFile = "file"
	ModeItem = "item"
	ModeList = "list"
)

// RefreshPayload identifies one cacheable response: the operation, the
// route type, and for listings the query variant. It doubles as the
// request descriptor inside the API process.
type RefreshPayload struct {
	Mode   string `json:"mode"`
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Full   bool   `json:"full,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// NewRefreshTask builds the asynq task for p. A refresh is idempotent
// and the next stale read re-enqueues it, so retries are disabled and
// duplicates for the same payload are collapsed while one is pending.
func NewRefreshTask(p RefreshPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal refresh payload: %w", err)
	}
	return asynq.NewTask(TypeCacheRefresh, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Unique(10*time.Minute),
	), nil
}

// Enqueuer hands refresh work to whoever runs it.
type Enqueuer interface {
	EnqueueRefresh(p RefreshPayload) error
}

// AsynqEnqueuer dispatches refreshes to the worker process through the
// task queue.
type AsynqEnqueuer struct {
	client *asynq.Client
}

// NewAsynqEnqueuer wraps an asynq client.
func NewAsynqEnqueuer(client *asynq.Client) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client}
}

// EnqueueRefresh implements Enqueuer.
func (e *AsynqEnqueuer) EnqueueRefresh(p RefreshPayload) error {
	task, err := NewRefreshTask(p)
	if err != nil {
		return err
	}
	if _, err := e.client.Enqueue(task); err != nil {
		// A pending duplicate means the refresh is already on its way.
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TypeCacheRefresh, err)
	}
	return nil
}
