package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

const keyHints = "q quit · y copy code · r reveal · t theme · G follow"

func (m *Model) View() string {
	if !m.ready {
		return "loading…"
	}
	var b strings.Builder
	title := m.opts.Title
	if title == "" {
		title = "streammark"
	}
	b.WriteString(titleStyle.Render(" "+title) + "\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.picker != nil {
		b.WriteString(m.picker.View(m.width))
		return b.String()
	}
	b.WriteString(m.statusLine())
	return b.String()
}

func (m *Model) statusLine() string {
	parts := make([]string, 0, 4)
	if m.streaming {
		parts = append(parts, m.spinner.View()+" streaming")
	} else if m.streamErr == nil {
		parts = append(parts, "done")
	}
	parts = append(parts, fmt.Sprintf("%d blocks", m.opts.Surface.Len()))
	if m.failedBlocks > 0 {
		parts = append(parts, errStyle.Render(fmt.Sprintf("%d failed", m.failedBlocks)))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	left := statusStyle.Render(" " + strings.Join(parts, " · "))
	right := hintStyle.Render(keyHints + " ")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}
