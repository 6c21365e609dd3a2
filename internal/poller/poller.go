package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/foundry/internal/chatdev"
)

// DefaultInterval is the pause between status fetches for one task.
const DefaultInterval = 5 * time.Second

var errEmptySnapshot = errors.New("empty task snapshot")

// TaskFetcher is the slice of the API the poller depends on.
type TaskFetcher interface {
	GetTaskStatus(ctx context.Context, taskID int64) (*chatdev.Task, error)
}

// State is the lifecycle state of a task poll.
type State int

const (
	Idle State = iota
	Polling
	Stopped
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Observation is emitted after every fetch, successful or not.
type Observation struct {
	TaskID  int64
	Attempt int
	Task    *chatdev.Task
	Err     error
	// Final is set on the last observation of a poll that ended on its own.
	Final bool
	At    time.Time
}

// Handler receives observations on the poll goroutine. It must not call
// Start or Cancel for the same task synchronously.
type Handler func(Observation)

// Options configure a Manager.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Manager owns the active polls, keyed by task id. At most one poll per
// task exists at any time.
type Manager struct {
	fetcher  TaskFetcher
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	polls  map[int64]*poll
	states map[int64]State
	ctx    context.Context
	cancel context.CancelFunc
}

type poll struct {
	taskID  int64
	handler Handler
	cancel  context.CancelFunc
	done    chan struct{}

	// deliver serializes handler calls with Cancel.
	deliver sync.Mutex
	stopped bool
}

// NewManager creates a Manager whose polls end when ctx is cancelled.
func NewManager(ctx context.Context, fetcher TaskFetcher, opts Options) *Manager {
	if ctx == nil {
		ctx = context.Background()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		polls:    make(map[int64]*poll),
		states:   make(map[int64]State),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins polling taskID, replacing any poll already running for it.
// The first fetch happens immediately.
func (m *Manager) Start(taskID int64, handler Handler) {
	if handler == nil {
		handler = func(Observation) {}
	}

	ctx, cancel := context.WithCancel(m.ctx)
	p := &poll{taskID: taskID, handler: handler, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.states[taskID] = Stopped
		m.mu.Unlock()
		cancel()
		return
	}
	prev := m.polls[taskID]
	m.polls[taskID] = p
	m.states[taskID] = Polling
	m.mu.Unlock()

	// The replaced poll must be fully gone before the new one fetches.
	if prev != nil {
		prev.stop()
		<-prev.done
	}

	m.logger.Info("task poll started", "task_id", taskID, "interval", m.interval.String())
	go m.run(ctx, p)
}

// Cancel stops polling taskID. Once Cancel returns no further observation is
// delivered for that poll. Cancel reports whether a poll was active.
func (m *Manager) Cancel(taskID int64) bool {
	m.mu.Lock()
	p := m.polls[taskID]
	if p != nil {
		delete(m.polls, taskID)
		m.states[taskID] = Stopped
	}
	m.mu.Unlock()
	if p == nil {
		return false
	}
	p.stop()
	m.logger.Info("task poll cancelled", "task_id", taskID)
	return true
}

// State returns the poll state of taskID.
func (m *Manager) State(taskID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[taskID]
}

// Active returns the ids of tasks currently polled.
func (m *Manager) Active() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.polls))
	for id := range m.polls {
		ids = append(ids, id)
	}
	return ids
}

// Close cancels every poll and waits for the goroutines to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	polls := make([]*poll, 0, len(m.polls))
	for id, p := range m.polls {
		polls = append(polls, p)
		m.states[id] = Stopped
	}
	m.polls = make(map[int64]*poll)
	m.mu.Unlock()

	m.cancel()
	for _, p := range polls {
		p.stop()
		<-p.done
	}
}

func (m *Manager) run(ctx context.Context, p *poll) {
	defer close(p.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		task, err := m.fetcher.GetTaskStatus(ctx, p.taskID)
		if ctx.Err() != nil {
			return
		}
		if err == nil && task == nil {
			err = errEmptySnapshot
		}

		final := err != nil || task.Settled()
		obs := Observation{TaskID: p.taskID, Attempt: attempt, Task: task, Err: err, Final: final, At: time.Now()}
		if !m.emit(p, obs) {
			return
		}

		switch {
		case err != nil:
			m.logger.Warn("task poll stopped on error", "task_id", p.taskID, "attempt", attempt, "error", err)
			return
		case final:
			m.logger.Info("task poll finished", "task_id", p.taskID, "status", string(task.Status), "apk_build_status", string(task.APKBuildStatus), "attempts", attempt)
			return
		}
		timer.Reset(m.interval)
	}
}

// finish marks p as ended on its own, unless it was already replaced.
func (m *Manager) finish(p *poll) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.polls[p.taskID] == p {
		delete(m.polls, p.taskID)
		m.states[p.taskID] = Stopped
	}
}

// emit delivers obs unless p was cancelled. A final observation retires p
// while the delivery lock is still held, so a Cancel either prevents the
// delivery or observes the poll already stopped.
func (m *Manager) emit(p *poll, obs Observation) bool {
	p.deliver.Lock()
	defer p.deliver.Unlock()
	if p.stopped {
		return false
	}
	p.handler(obs)
	if obs.Final {
		m.finish(p)
	}
	return true
}

func (p *poll) stop() {
	p.cancel()
	p.deliver.Lock()
	p.stopped = true
	p.deliver.Unlock()
}
