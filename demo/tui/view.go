package tui

import (
	"fmt"
	"strings"

	"newscast/types"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("📰 Newscast Discovery Monitor"))
	b.WriteString("\n\n")

	b.WriteString(m.stateText())
	b.WriteString("\n\n")

	stats := m.status.Stats
	if stats.Fetched > 0 || m.status.State != types.StateIdle {
		line := fmt.Sprintf("📊 Fetched: %d | New clusters: %d | Merged: %d | Duplicates: %d | Failed: %d",
			stats.Fetched, stats.NewClusters, stats.Merged, stats.Duplicates, stats.Failed)
		b.WriteString(BoxStyle.Render(line))
		b.WriteString("\n\n")
	}

	if len(m.status.Logs) > 0 {
		b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		logs := m.status.Logs
		if len(logs) > 10 {
			logs = logs[len(logs)-10:]
		}
		for _, entry := range logs {
			b.WriteString(InfoStyle.Render("   " + entry.Message))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	switch m.status.State {
	case types.StateIdle, types.StateReady, types.StateError:
		b.WriteString(InfoStyle.Render("Press 'd' to run discovery | 'q' to quit"))
	default:
		b.WriteString(InfoStyle.Render("Press 'q' to quit"))
	}

	return b.String()
}

func (m Model) stateText() string {
	if !m.connected {
		msg := "❌ Not connected to server"
		if m.err != nil {
			msg = fmt.Sprintf("❌ Not connected: %v", m.err)
		}
		return ErrorStyle.Render(msg)
	}

	switch m.status.State {
	case types.StateIdle:
		return HighlightStyle.Render("👋 Ready") + "\n\n" + InfoStyle.Render("Press 'd' to start a discovery run")
	case types.StateFetching:
		return StatusStyle.Render("⏳ Fetching feeds...")
	case types.StateDeduplicating:
		return StatusStyle.Render("🔍 Deduplicating articles...")
	case types.StateEmbedding:
		return StatusStyle.Render("🧮 Computing embeddings...")
	case types.StateClustering:
		return StatusStyle.Render("🗂️  Assigning clusters...")
	case types.StateScoring:
		return StatusStyle.Render("⚖️  Rescoring clusters...")
	case types.StateReady:
		return HighlightStyle.Render("✅ Discovery complete")
	case types.StateError:
		return ErrorStyle.Render(fmt.Sprintf("❌ Error: %s", m.status.Error))
	default:
		return ""
	}
}
