package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"newscast/ingestion"
	"newscast/types"
)

// Model is a thin polling client over the server's status endpoint.
type Model struct {
	client *Client

	status    ingestion.Status
	connected bool
	err       error
}

// NewModel creates the TUI model.
func NewModel(serverURL string) Model {
	return Model{client: NewClient(serverURL)}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(pollStatus(m.client), tickCmd())
}

// Messages

// StatusUpdateMsg carries a fresh status snapshot.
type StatusUpdateMsg struct {
	Status *ingestion.Status
	Err    error
}

// TickMsg drives the poll loop.
type TickMsg struct{ Time time.Time }

// DiscoveryStartedMsg reports the outcome of triggering a run.
type DiscoveryStartedMsg struct{ Err error }

// Commands

func pollStatus(client *Client) tea.Cmd {
	return func() tea.Msg {
		status, err := client.GetStatus()
		return StatusUpdateMsg{Status: status, Err: err}
	}
}

func startDiscovery(client *Client) tea.Cmd {
	return func() tea.Msg {
		return DiscoveryStartedMsg{Err: client.StartDiscovery()}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "d", "D":
			if m.status.State == types.StateIdle || m.status.State == types.StateReady || m.status.State == types.StateError {
				return m, startDiscovery(m.client)
			}
		}
	case TickMsg:
		return m, tea.Batch(pollStatus(m.client), tickCmd())
	case StatusUpdateMsg:
		if msg.Err != nil {
			m.connected = false
			m.err = msg.Err
			return m, nil
		}
		m.connected = true
		m.err = nil
		m.status = *msg.Status
		return m, nil
	case DiscoveryStartedMsg:
		if msg.Err != nil {
			m.err = fmt.Errorf("failed to start discovery: %w", msg.Err)
		}
		return m, nil
	}
	return m, nil
}
