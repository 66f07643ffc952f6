package tui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/styles"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"streammark/internal/config"
)

const pickerVisible = 8

var (
	pickerTitleStyle    = lipgloss.NewStyle().Bold(true)
	pickerSelectedStyle = lipgloss.NewStyle().Reverse(true)
	pickerDimStyle      = lipgloss.NewStyle().Faint(true)
)

// themePicker 是一个内联的代码高亮主题选择器：输入即模糊过滤,
// enter 应用并写回配置，esc 取消。
type themePicker struct {
	all      []string
	filtered []string
	query    string
	cursor   int
	current  string
}

func newThemePicker(current string) *themePicker {
	all := styles.Names()
	p := &themePicker{all: all, current: current}
	p.filter()
	return p
}

// filter narrows the candidate list to the fuzzy matches for the query,
// keeping the cursor inside the list.
func (p *themePicker) filter() {
	if p.query == "" {
		p.filtered = p.all
	} else {
		matches := fuzzy.Find(p.query, p.all)
		p.filtered = make([]string, 0, len(matches))
		for _, match := range matches {
			p.filtered = append(p.filtered, match.Str)
		}
	}
	if p.cursor >= len(p.filtered) {
		p.cursor = 0
	}
}

func (p *themePicker) selected() (string, bool) {
	if len(p.filtered) == 0 {
		return "", false
	}
	return p.filtered[p.cursor], true
}

func (p *themePicker) View(width int) string {
	var b strings.Builder
	b.WriteString(pickerTitleStyle.Render(" code theme: ") + p.query + "▏\n")

	start := 0
	if p.cursor >= pickerVisible {
		start = p.cursor - pickerVisible + 1
	}
	end := start + pickerVisible
	if end > len(p.filtered) {
		end = len(p.filtered)
	}
	for i := start; i < end; i++ {
		name := p.filtered[i]
		line := "  " + name
		if name == p.current {
			line += " *"
		}
		if i == p.cursor {
			line = pickerSelectedStyle.Render("▸ " + name)
		}
		b.WriteString(line + "\n")
	}
	if len(p.filtered) == 0 {
		b.WriteString(pickerDimStyle.Render("  no matching theme") + "\n")
	}
	b.WriteString(pickerDimStyle.Render(fmt.Sprintf(" %d/%d · enter apply · esc cancel", len(p.filtered), len(p.all))))
	return b.String()
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.picker
	switch msg.String() {
	case "esc", "ctrl+c":
		m.picker = nil
		return m, nil
	case "enter":
		name, ok := p.selected()
		m.picker = nil
		if !ok {
			return m, nil
		}
		m.applyCodeTheme(name)
		return m, nil
	case "up", "ctrl+p":
		if p.cursor > 0 {
			p.cursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if p.cursor < len(p.filtered)-1 {
			p.cursor++
		}
		return m, nil
	case "backspace":
		if p.query != "" {
			runes := []rune(p.query)
			p.query = string(runes[:len(runes)-1])
			p.filter()
		}
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		p.query += string(msg.Runes)
		p.filter()
	}
	return m, nil
}

// applyCodeTheme switches the highlighter style, re-renders the mounted
// blocks and persists the choice when a config file is in play.
func (m *Model) applyCodeTheme(name string) {
	m.opts.Code.SetTheme(name)
	m.rerender()
	m.status = "code theme: " + name

	if m.opts.ConfigPath == "" {
		return
	}
	cfg := m.opts.Config
	cfg.CodeTheme = name
	if err := config.Save(m.opts.ConfigPath, cfg); err != nil {
		m.log.Warnf("persist code theme: %v", err)
		m.status = fmt.Sprintf("theme applied, save failed: %v", err)
		return
	}
	m.opts.Config = cfg
}
