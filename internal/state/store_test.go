package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/poller"
)

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	list := &chatdev.TaskList{Tasks: []chatdev.Task{{TaskID: 1}, {TaskID: 2}}, Total: 12}

	before := time.Now()
	s.Update(s.Query(), list, nil)

	snap := s.Snapshot()
	if !snap.HasList || snap.Total != 12 {
		t.Fatalf("snapshot = %+v, want HasList=true Total=12", snap)
	}
	if len(snap.Tasks) != 2 || snap.Tasks[0].TaskID != 1 {
		t.Fatalf("snapshot tasks = %#v, want 2 items", snap.Tasks)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Tasks[0].TaskID = 999
	snap2 := s.Snapshot()
	if snap2.Tasks[0].TaskID != 1 {
		t.Fatalf("Snapshot should clone tasks; got id %d want 1", snap2.Tasks[0].TaskID)
	}
}

func TestStore_UpdateErrorKeepsPreviousData(t *testing.T) {
	var s Store

	s.Update(s.Query(), &chatdev.TaskList{Tasks: []chatdev.Task{{TaskID: 1}}, Total: 1}, nil)

	before := time.Now()
	origErr := errors.New("boom")
	s.Update(s.Query(), nil, origErr)

	snap := s.Snapshot()
	if !snap.HasList || len(snap.Tasks) != 1 || snap.Tasks[0].TaskID != 1 {
		t.Fatalf("tasks changed on error: got %#v", snap.Tasks)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store
	q := s.Query()

	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("fresh store = %+v, want online with 0 failures", snap)
	}

	s.Update(q, nil, errors.New("fail 1"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after 1 failure: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.Update(q, nil, errors.New("fail 2"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("after 2 failures: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.Update(q, &chatdev.TaskList{}, nil)
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("after success: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}
}

func TestStore_StaleQueryResultsAreDropped(t *testing.T) {
	var s Store
	old := s.Query()
	s.SetQuery(Query{Status: chatdev.StatusFailed, Limit: 10})

	s.Update(old, &chatdev.TaskList{Tasks: []chatdev.Task{{TaskID: 5}}, Total: 1}, nil)
	if snap := s.Snapshot(); snap.HasList {
		t.Fatalf("stale result was stored: %+v", snap.Tasks)
	}
	s.Update(old, nil, errors.New("stale failure"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 {
		t.Fatalf("stale failure counted: %d", snap.ConsecutiveFailures)
	}
}

func TestQuery_NormalizeAndPaging(t *testing.T) {
	q := Query{Limit: 500, Offset: -4, Status: "BOGUS"}.Normalize()
	if q.Limit != chatdev.MaxListLimit || q.Offset != 0 || q.Status != "" {
		t.Fatalf("Normalize = %+v", q)
	}
	if got := (Query{}).Normalize().Limit; got != chatdev.DefaultListLimit {
		t.Fatalf("zero limit normalized to %d, want %d", got, chatdev.DefaultListLimit)
	}

	q = Query{Limit: 10}
	if q.Page() != 1 {
		t.Fatalf("Page = %d, want 1", q.Page())
	}
	if _, ok := q.Prev(); ok {
		t.Fatalf("Prev on first page returned ok")
	}
	next, ok := q.Next(25)
	if !ok || next.Offset != 10 || next.Page() != 2 {
		t.Fatalf("Next = %+v ok=%v, want offset 10", next, ok)
	}
	next, ok = next.Next(25)
	if !ok || next.Offset != 20 {
		t.Fatalf("Next = %+v ok=%v, want offset 20", next, ok)
	}
	if _, ok := next.Next(25); ok {
		t.Fatalf("Next past total returned ok")
	}
	prev, ok := next.Prev()
	if !ok || prev.Offset != 10 {
		t.Fatalf("Prev = %+v ok=%v, want offset 10", prev, ok)
	}

	lq := Query{Status: chatdev.StatusRunning, Limit: 20, Offset: 40}.ListQuery()
	if lq != (chatdev.ListQuery{Status: chatdev.StatusRunning, Limit: 20, Offset: 40}) {
		t.Fatalf("ListQuery = %+v", lq)
	}
}

func TestQuery_CycleStatusWrapsToAll(t *testing.T) {
	q := Query{Limit: 10, Offset: 30}
	var seen []chatdev.TaskStatus
	for i := 0; i < len(chatdev.Statuses())+1; i++ {
		q = q.CycleStatus()
		if q.Offset != 0 {
			t.Fatalf("CycleStatus kept offset %d", q.Offset)
		}
		seen = append(seen, q.Status)
	}
	want := append(chatdev.Statuses(), "")
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("cycle = %v, want %v", seen, want)
	}
}

func TestStore_ObserveUpdatesWatchAndListedRow(t *testing.T) {
	var s Store
	s.Update(s.Query(), &chatdev.TaskList{Tasks: []chatdev.Task{{TaskID: 3, Status: chatdev.StatusPending}}, Total: 1}, nil)

	at := time.Now()
	s.Observe(poller.Observation{TaskID: 3, Attempt: 1, Task: &chatdev.Task{TaskID: 3, Status: chatdev.StatusRunning}, At: at})
	snap := s.Snapshot()
	w, ok := snap.Watch(3)
	if !ok || !w.Polling || w.Task.Status != chatdev.StatusRunning || w.Attempts != 1 || !w.UpdatedAt.Equal(at) {
		t.Fatalf("watch = %+v ok=%v", w, ok)
	}
	if snap.Tasks[0].Status != chatdev.StatusRunning {
		t.Fatalf("listed row status = %s, want RUNNING", snap.Tasks[0].Status)
	}

	boom := errors.New("boom")
	s.Observe(poller.Observation{TaskID: 3, Attempt: 2, Err: boom, Final: true})
	w, _ = s.Snapshot().Watch(3)
	if w.Polling || !errors.Is(w.Err, boom) || w.Task == nil {
		t.Fatalf("watch after error = %+v, want stopped with last task kept", w)
	}
}

func TestStore_UnwatchAndForget(t *testing.T) {
	var s Store
	s.Update(s.Query(), &chatdev.TaskList{Tasks: []chatdev.Task{{TaskID: 1}, {TaskID: 2}}, Total: 2}, nil)
	s.Observe(poller.Observation{TaskID: 1, Attempt: 1, Task: &chatdev.Task{TaskID: 1}})
	s.Observe(poller.Observation{TaskID: 2, Attempt: 1, Task: &chatdev.Task{TaskID: 2}})

	s.Unwatch(1)
	snap := s.Snapshot()
	if w, _ := snap.Watch(1); w.Polling {
		t.Fatalf("Unwatch left task polling")
	}
	if len(snap.Watches) != 2 || snap.Watches[0].TaskID != 2 {
		t.Fatalf("watches = %+v, want newest first", snap.Watches)
	}

	s.Forget(2)
	snap = s.Snapshot()
	if _, ok := snap.Watch(2); ok {
		t.Fatalf("Forget kept watch")
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].TaskID != 1 || snap.Total != 1 {
		t.Fatalf("tasks after Forget = %+v total=%d", snap.Tasks, snap.Total)
	}
}
