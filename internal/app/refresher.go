package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/state"
)

const (
	defaultListRefresh = 10 * time.Second
	maxRefreshBackoff  = 30 * time.Second
)

// TaskLister is the slice of the API the refresher depends on.
type TaskLister interface {
	ListTasks(ctx context.Context, query chatdev.ListQuery) (chatdev.TaskList, error)
}

// Refresher keeps the store's task list current. It refreshes on a fixed
// cadence, backs off while the service is failing, and refreshes at once
// when triggered.
type Refresher struct {
	lister   TaskLister
	store    *state.Store
	interval time.Duration
	logger   *slog.Logger
	trigger  chan struct{}
}

// NewRefresher creates a Refresher. A non-positive interval uses 10 seconds.
func NewRefresher(lister TaskLister, store *state.Store, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = defaultListRefresh
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Refresher{
		lister:   lister,
		store:    store,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate refresh. It never blocks; requests made while
// one is pending are merged.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes until ctx is cancelled. It always returns nil so that a
// failing service never tears down the UI.
func (r *Refresher) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-r.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		failures := r.Refresh(ctx)
		if ctx.Err() != nil {
			return nil
		}
		timer.Reset(calculateBackoff(failures, r.interval))
	}
}

// Refresh lists the current query once, records the result and returns the
// number of consecutive failures.
func (r *Refresher) Refresh(ctx context.Context) int {
	query := r.store.Query()
	list, err := r.lister.ListTasks(ctx, query.ListQuery())
	if ctx.Err() != nil {
		return r.store.Snapshot().ConsecutiveFailures
	}
	if err != nil {
		r.store.Update(query, nil, err)
		failures := r.store.Snapshot().ConsecutiveFailures
		r.logger.Warn("task list refresh failed", "error", err, "failures", failures)
		return failures
	}
	r.store.Update(query, &list, nil)
	r.logger.Debug("task list refreshed", "status", string(query.Status), "offset", query.Offset, "count", len(list.Tasks), "total", list.Total)
	return 0
}

// calculateBackoff doubles base per consecutive failure, capped at 30s or
// base, whichever is larger.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	limit := max(maxRefreshBackoff, base)
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}
