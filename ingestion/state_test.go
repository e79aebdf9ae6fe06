package ingestion

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"newscast/events"
	"newscast/types"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func TestStateTransitionsPublished(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewStateManager(pub)

	if !m.BeginRun("run-1") {
		t.Fatal("BeginRun failed from idle")
	}
	m.SetState(types.StateDeduplicating, "deduplicating")
	m.SetState(types.StateClustering, "clustering")
	m.SetState(types.StateReady, "done")

	if len(pub.events) != 4 {
		t.Fatalf("published %d events, want 4", len(pub.events))
	}
	want := []types.PipelineState{types.StateFetching, types.StateDeduplicating, types.StateClustering, types.StateReady}
	for i, e := range pub.events {
		if e.State != want[i] {
			t.Errorf("event %d state = %s, want %s", i, e.State, want[i])
		}
		if e.RunID != "run-1" {
			t.Errorf("event %d run = %s, want run-1", i, e.RunID)
		}
	}
}

func TestBeginRunGuard(t *testing.T) {
	m := NewStateManager(nil)
	if !m.BeginRun("run-1") {
		t.Fatal("BeginRun failed from idle")
	}
	if m.BeginRun("run-2") {
		t.Fatal("BeginRun allowed a second concurrent run")
	}

	m.SetState(types.StateReady, "done")
	if !m.BeginRun("run-3") {
		t.Fatal("BeginRun refused after ready")
	}

	m.SetError(errors.New("boom"))
	if !m.BeginRun("run-4") {
		t.Fatal("BeginRun refused after error")
	}
}

func TestLogRingBuffer(t *testing.T) {
	m := NewStateManager(nil)
	m.BeginRun("run-1")
	for i := 0; i < maxLogs+20; i++ {
		m.AddLog(fmt.Sprintf("line %d", i))
	}

	status := m.GetStatus()
	if len(status.Logs) != maxLogs {
		t.Fatalf("log length = %d, want %d", len(status.Logs), maxLogs)
	}
	if status.Logs[len(status.Logs)-1].Message != fmt.Sprintf("line %d", maxLogs+19) {
		t.Errorf("newest log = %q", status.Logs[len(status.Logs)-1].Message)
	}
}

func TestSetErrorSnapshot(t *testing.T) {
	m := NewStateManager(nil)
	m.BeginRun("run-1")
	m.SetError(errors.New("feed unreachable"))

	status := m.GetStatus()
	if status.State != types.StateError {
		t.Errorf("state = %s, want error", status.State)
	}
	if status.Error != "feed unreachable" {
		t.Errorf("error = %q", status.Error)
	}
}
