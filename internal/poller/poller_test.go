package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/foundry/internal/chatdev"
)

const testInterval = 20 * time.Millisecond

type scriptedFetcher struct {
	mu      sync.Mutex
	script  []chatdev.Task
	errs    map[int]error
	calls   int
	perTask map[int64]int
}

func (f *scriptedFetcher) GetTaskStatus(ctx context.Context, taskID int64) (*chatdev.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.perTask == nil {
		f.perTask = make(map[int64]int)
	}
	f.perTask[taskID]++
	if err := f.errs[f.calls]; err != nil {
		return nil, err
	}
	idx := f.calls - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	task := f.script[idx]
	task.TaskID = taskID
	return &task, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu   sync.Mutex
	obs  []Observation
	seen chan Observation
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan Observation, 64)}
}

func (r *recorder) handle(o Observation) {
	r.mu.Lock()
	r.obs = append(r.obs, o)
	r.mu.Unlock()
	r.seen <- o
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.obs)
}

func (r *recorder) wait(t *testing.T) Observation {
	t.Helper()
	select {
	case o := <-r.seen:
		return o
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for observation")
		return Observation{}
	}
}

func newTestManager(t *testing.T, f TaskFetcher) *Manager {
	t.Helper()
	m := NewManager(context.Background(), f, Options{Interval: testInterval})
	t.Cleanup(m.Close)
	return m
}

func TestManager_StopsAfterTerminalStatus(t *testing.T) {
	f := &scriptedFetcher{script: []chatdev.Task{
		{Status: chatdev.StatusRunning},
		{Status: chatdev.StatusCompleted},
	}}
	m := newTestManager(t, f)
	rec := newRecorder()

	if got := m.State(7); got != Idle {
		t.Fatalf("State before start = %v, want idle", got)
	}
	m.Start(7, rec.handle)

	first := rec.wait(t)
	if first.Final || first.Task.Status != chatdev.StatusRunning || first.Attempt != 1 {
		t.Fatalf("first observation = %+v, want running attempt 1", first)
	}
	second := rec.wait(t)
	if !second.Final || second.Task.Status != chatdev.StatusCompleted || second.Attempt != 2 {
		t.Fatalf("second observation = %+v, want final completed attempt 2", second)
	}

	time.Sleep(5 * testInterval)
	if got := m.State(7); got != Stopped {
		t.Fatalf("State = %v, want stopped", got)
	}
	if f.Calls() != 2 {
		t.Fatalf("fetches = %d, want exactly 2", f.Calls())
	}
	if rec.Len() != 2 {
		t.Fatalf("observations = %d, want 2", rec.Len())
	}
}

func TestManager_CancelSuppressesFurtherFetches(t *testing.T) {
	f := &scriptedFetcher{script: []chatdev.Task{{Status: chatdev.StatusRunning}}}
	// The second fetch is a full second away, so Cancel always lands between
	// the first and the second fetch.
	m := NewManager(context.Background(), f, Options{Interval: time.Second})
	t.Cleanup(m.Close)
	rec := newRecorder()

	m.Start(3, rec.handle)
	rec.wait(t)
	if !m.Cancel(3) {
		t.Fatalf("Cancel returned false for an active poll")
	}
	callsAtCancel := f.Calls()

	time.Sleep(5 * testInterval)
	if f.Calls() != callsAtCancel || callsAtCancel != 1 {
		t.Fatalf("fetches after cancel = %d (at cancel %d), want 1", f.Calls(), callsAtCancel)
	}
	if rec.Len() != 1 {
		t.Fatalf("observations = %d, want 1", rec.Len())
	}
	if m.State(3) != Stopped {
		t.Fatalf("State = %v, want stopped", m.State(3))
	}
	if m.Cancel(3) {
		t.Fatalf("second Cancel returned true")
	}
}

func TestManager_FinalObservationDeliveredBeforePollRetires(t *testing.T) {
	f := &scriptedFetcher{script: []chatdev.Task{{Status: chatdev.StatusCompleted}}}
	m := newTestManager(t, f)

	type seen struct {
		obs    Observation
		state  State
		active int
	}
	got := make(chan seen, 1)
	m.Start(4, func(o Observation) {
		got <- seen{obs: o, state: m.State(4), active: len(m.Active())}
	})

	var s seen
	select {
	case s = <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for observation")
	}
	if !s.obs.Final {
		t.Fatalf("observation = %+v, want final", s.obs)
	}
	if s.state != Polling || s.active != 1 {
		t.Fatalf("during delivery state = %v active = %d, want polling with 1 active", s.state, s.active)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.State(4) != Stopped {
		if time.Now().After(deadline) {
			t.Fatalf("State = %v after delivery, want stopped", m.State(4))
		}
		time.Sleep(time.Millisecond)
	}
	if m.Cancel(4) {
		t.Fatalf("Cancel returned true for a retired poll")
	}
}

func TestManager_StopsOnFetchError(t *testing.T) {
	boom := errors.New("boom")
	f := &scriptedFetcher{
		script: []chatdev.Task{{Status: chatdev.StatusRunning}},
		errs:   map[int]error{2: boom},
	}
	m := newTestManager(t, f)
	rec := newRecorder()

	m.Start(11, rec.handle)
	rec.wait(t)
	failed := rec.wait(t)
	if !errors.Is(failed.Err, boom) || !failed.Final || failed.Task != nil {
		t.Fatalf("observation = %+v, want final error", failed)
	}

	time.Sleep(5 * testInterval)
	if f.Calls() != 2 {
		t.Fatalf("fetches = %d, want 2", f.Calls())
	}
	if m.State(11) != Stopped {
		t.Fatalf("State = %v, want stopped", m.State(11))
	}
}

func TestManager_KeepsPollingWhileAPKBuilds(t *testing.T) {
	f := &scriptedFetcher{script: []chatdev.Task{
		{Status: chatdev.StatusCompleted, APKBuildStatus: chatdev.APKBuilding},
		{Status: chatdev.StatusCompleted, APKBuildStatus: chatdev.APKBuilding},
		{Status: chatdev.StatusCompleted, APKBuildStatus: chatdev.APKBuilt, APKPath: "/out/a.apk"},
	}}
	m := newTestManager(t, f)
	rec := newRecorder()

	m.Start(5, rec.handle)
	for i := 0; i < 2; i++ {
		if o := rec.wait(t); o.Final {
			t.Fatalf("observation %d is final while apk is building", i+1)
		}
	}
	last := rec.wait(t)
	if !last.Final || !last.Task.APKReady() {
		t.Fatalf("last observation = %+v, want final with apk ready", last)
	}
	time.Sleep(5 * testInterval)
	if f.Calls() != 3 {
		t.Fatalf("fetches = %d, want 3", f.Calls())
	}
}

func TestManager_RestartReplacesExistingPoll(t *testing.T) {
	f := &scriptedFetcher{script: []chatdev.Task{{Status: chatdev.StatusPending}}}
	m := newTestManager(t, f)
	first := newRecorder()
	second := newRecorder()

	m.Start(9, first.handle)
	first.wait(t)
	m.Start(9, second.handle)
	countAtRestart := first.Len()
	second.wait(t)

	time.Sleep(5 * testInterval)
	if first.Len() != countAtRestart {
		t.Fatalf("replaced poll delivered %d more observations", first.Len()-countAtRestart)
	}
	if active := m.Active(); len(active) != 1 || active[0] != 9 {
		t.Fatalf("Active = %v, want [9]", active)
	}
	// A single timer at testInterval over ~5 intervals cannot produce more
	// than about 6 fetches; two timers would roughly double that.
	if n := second.Len(); n > 8 {
		t.Fatalf("second poll observed %d fetches, want a single schedule", n)
	}
}

func TestManager_CloseStopsAllPolls(t *testing.T) {
	f := &scriptedFetcher{script: []chatdev.Task{{Status: chatdev.StatusRunning}}}
	m := NewManager(context.Background(), f, Options{Interval: testInterval})
	rec := newRecorder()

	m.Start(1, rec.handle)
	m.Start(2, rec.handle)
	rec.wait(t)
	rec.wait(t)
	m.Close()

	calls := f.Calls()
	time.Sleep(5 * testInterval)
	if f.Calls() != calls {
		t.Fatalf("fetches continued after Close: %d -> %d", calls, f.Calls())
	}
	if m.State(1) != Stopped || m.State(2) != Stopped {
		t.Fatalf("states = %v/%v, want stopped", m.State(1), m.State(2))
	}

	m.Start(3, rec.handle)
	if m.State(3) != Stopped {
		t.Fatalf("Start after Close should not poll, state = %v", m.State(3))
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Polling.String() != "polling" || Stopped.String() != "stopped" {
		t.Fatalf("unexpected state names: %s %s %s", Idle, Polling, Stopped)
	}
}
