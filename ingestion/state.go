package ingestion

import (
	"log"
	"sync"
	"time"

	"newscast/events"
	"newscast/types"
)

const maxLogs = 50

// LogEntry is one timestamped line in the run log ring buffer.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	RunID string               `json:"run_id,omitempty"`
	State types.PipelineState  `json:"state"`
	Stats types.DiscoveryStats `json:"stats"`
	Logs  []LogEntry           `json:"logs"`
	Error string               `json:"error,omitempty"`
}

// StateManager tracks the current discovery run behind a mutex and fans
// transitions out through the event publisher.
type StateManager struct {
	mu        sync.RWMutex
	runID     string
	state     types.PipelineState
	stats     types.DiscoveryStats
	logs      []LogEntry
	lastError string
	publisher events.Publisher
}

// NewStateManager starts in the idle state. publisher may be nil.
func NewStateManager(publisher events.Publisher) *StateManager {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &StateManager{
		state:     types.StateIdle,
		logs:      make([]LogEntry, 0, maxLogs),
		publisher: publisher,
	}
}

// BeginRun resets the manager for a new discovery run. Returns false when a
// run is already in flight.
func (m *StateManager) BeginRun(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.StateIdle && m.state != types.StateReady && m.state != types.StateError {
		return false
	}
	m.runID = runID
	m.state = types.StateFetching
	m.stats = types.DiscoveryStats{}
	m.logs = m.logs[:0]
	m.lastError = ""
	m.publish("discovery run started")
	return true
}

// SetState transitions the current run and publishes the change.
func (m *StateManager) SetState(state types.PipelineState, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.appendLog(message)
	m.publish(message)
}

// SetError moves the run into the error state.
func (m *StateManager) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = types.StateError
	m.lastError = err.Error()
	m.appendLog("error: " + err.Error())
	m.publish(err.Error())
}

// AddLog appends a log line without changing state.
func (m *StateManager) AddLog(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLog(message)
}

// UpdateStats replaces the run counters.
func (m *StateManager) UpdateStats(mutate func(*types.DiscoveryStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutate(&m.stats)
}

// GetStatus returns a copy of the current status.
func (m *StateManager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := make([]LogEntry, len(m.logs))
	copy(logs, m.logs)
	return Status{
		RunID: m.runID,
		State: m.state,
		Stats: m.stats,
		Logs:  logs,
		Error: m.lastError,
	}
}

// appendLog keeps at most maxLogs entries, dropping the oldest. Callers hold
// the lock.
func (m *StateManager) appendLog(message string) {
	if message == "" {
		return
	}
	m.logs = append(m.logs, LogEntry{Timestamp: time.Now().UTC(), Message: message})
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *StateManager) publish(message string) {
	event := events.Event{
		RunID:     m.runID,
		State:     m.state,
		Message:   message,
		Stats:     m.stats,
		Timestamp: time.Now().UTC(),
	}
	if err := m.publisher.Publish(event); err != nil {
		log.Printf("failed to publish state event: %v", err)
	}
}
