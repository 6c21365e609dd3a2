package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/poller"
)

// Query is the task list view the refresher fetches.
type Query struct {
	Status chatdev.TaskStatus
	Limit  int
	Offset int
}

// DefaultQuery is the first page of all tasks.
func DefaultQuery() Query {
	return Query{Limit: chatdev.DefaultListLimit}
}

// Normalize clamps the limit and offset into the ranges the API accepts.
func (q Query) Normalize() Query {
	if q.Limit < chatdev.MinListLimit {
		q.Limit = chatdev.DefaultListLimit
	}
	if q.Limit > chatdev.MaxListLimit {
		q.Limit = chatdev.MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Status != "" && !q.Status.Valid() {
		q.Status = ""
	}
	return q
}

// ListQuery converts q into the client request.
func (q Query) ListQuery() chatdev.ListQuery {
	n := q.Normalize()
	return chatdev.ListQuery{Status: n.Status, Limit: n.Limit, Offset: n.Offset}
}

// Page returns the 1-based page number of q.
func (q Query) Page() int {
	n := q.Normalize()
	return n.Offset/n.Limit + 1
}

// Next returns the following page, or false when total shows none remain.
func (q Query) Next(total int) (Query, bool) {
	n := q.Normalize()
	if n.Offset+n.Limit >= total {
		return n, false
	}
	n.Offset += n.Limit
	return n, true
}

// Prev returns the preceding page, or false on the first page.
func (q Query) Prev() (Query, bool) {
	n := q.Normalize()
	if n.Offset == 0 {
		return n, false
	}
	n.Offset -= n.Limit
	if n.Offset < 0 {
		n.Offset = 0
	}
	return n, true
}

// CycleStatus moves the filter through all, then each status in order.
func (q Query) CycleStatus() Query {
	n := q.Normalize()
	statuses := chatdev.Statuses()
	next := chatdev.TaskStatus("")
	if n.Status == "" {
		next = statuses[0]
	} else {
		for i, s := range statuses {
			if s == n.Status && i+1 < len(statuses) {
				next = statuses[i+1]
			}
		}
	}
	n.Status = next
	n.Offset = 0
	return n
}

// Watch is the latest poll result for one task.
type Watch struct {
	TaskID    int64
	Task      *chatdev.Task
	Err       error
	Attempts  int
	Polling   bool
	UpdatedAt time.Time
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Query               Query
	Tasks               []chatdev.Task
	Total               int
	HasList             bool
	Watches             []Watch
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive list refresh failures
}

// IsOffline returns true when the API has been unreachable for multiple refreshes.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Watch returns the watch entry for taskID.
func (s Snapshot) Watch(taskID int64) (Watch, bool) {
	for _, w := range s.Watches {
		if w.TaskID == taskID {
			return w, true
		}
	}
	return Watch{}, false
}

// Store coordinates concurrent updates to the snapshot. The zero value is
// ready to use and lists the first page of all tasks.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	query    *Query
	watches  map[int64]*Watch
}

// Query returns the current list query.
func (s *Store) Query() Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuery()
}

func (s *Store) currentQuery() Query {
	if s.query == nil {
		return DefaultQuery()
	}
	return *s.query
}

// SetQuery replaces the list query. The listed tasks are kept until the next
// Update so the view does not flash empty.
func (s *Store) SetQuery(q Query) Query {
	q = q.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = &q
	return q
}

// Update records a list refresh for query. When err is non-nil the previous
// data is kept but the error is recorded for visibility. Results for a query
// that is no longer current are dropped.
func (s *Store) Update(query Query, list *chatdev.TaskList, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if query.Normalize() != s.currentQuery() {
		return
	}

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	if list != nil {
		s.snapshot.Tasks = cloneTasks(list.Tasks)
		s.snapshot.Total = list.Total
		s.snapshot.HasList = true
	} else {
		s.snapshot.Tasks = nil
		s.snapshot.Total = 0
		s.snapshot.HasList = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Observe records a poll observation. A successful observation also updates
// the task's row in the current list.
func (s *Store) Observe(obs poller.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watches == nil {
		s.watches = make(map[int64]*Watch)
	}
	w := s.watches[obs.TaskID]
	if w == nil {
		w = &Watch{TaskID: obs.TaskID}
		s.watches[obs.TaskID] = w
	}
	w.Attempts = obs.Attempt
	w.Err = obs.Err
	w.Polling = !obs.Final
	w.UpdatedAt = obs.At
	if obs.Task != nil {
		task := *obs.Task
		w.Task = &task
		for i := range s.snapshot.Tasks {
			if s.snapshot.Tasks[i].TaskID == obs.TaskID {
				s.snapshot.Tasks[i] = task
			}
		}
	}
}

// Unwatch marks a watched task as no longer polled, keeping its last result.
func (s *Store) Unwatch(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w := s.watches[taskID]; w != nil {
		w.Polling = false
	}
}

// Forget drops a task from the watch list and the listed tasks, e.g. after
// it was deleted.
func (s *Store) Forget(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watches, taskID)
	kept := s.snapshot.Tasks[:0:0]
	for _, t := range s.snapshot.Tasks {
		if t.TaskID != taskID {
			kept = append(kept, t)
		}
	}
	if len(kept) != len(s.snapshot.Tasks) {
		s.snapshot.Tasks = kept
		if s.snapshot.Total > 0 {
			s.snapshot.Total--
		}
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Query = s.currentQuery()
	snap.Tasks = cloneTasks(s.snapshot.Tasks)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	snap.Watches = make([]Watch, 0, len(s.watches))
	for _, w := range s.watches {
		dup := *w
		if w.Task != nil {
			task := *w.Task
			dup.Task = &task
		}
		snap.Watches = append(snap.Watches, dup)
	}
	sort.Slice(snap.Watches, func(i, j int) bool { return snap.Watches[i].TaskID > snap.Watches[j].TaskID })
	return snap
}

func cloneTasks(items []chatdev.Task) []chatdev.Task {
	if len(items) == 0 {
		return nil
	}
	dup := make([]chatdev.Task, len(items))
	copy(dup, items)
	return dup
}
