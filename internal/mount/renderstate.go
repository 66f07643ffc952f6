package mount

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"streammark/internal/segment"
)

// Phase is the diagram fallback state machine: Empty → Loading → (Valid |
// Empty) on each attempt, Valid → Valid afterwards. A mounted identity
// never reaches a terminal phase; it reverts only on unmount.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoading
	PhaseValid
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoading:
		return "loading"
	case PhaseValid:
		return "valid"
	}
	return "unknown"
}

// renderState 是 per-block-identity 的可变记忆：最近一次成功的输出，
// 以及是否成功过。只有 diagram block 需要它。
type renderState struct {
	phase     Phase
	lastValid string
	succeeded bool
}

var (
	loadingStyle = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("9")).
			PaddingLeft(1)
	errorSourceStyle = lipgloss.NewStyle().
				Faint(true).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(lipgloss.Color("9")).
				PaddingLeft(1)
)

// resolveMarkup decides what actually gets mounted for one rendered block,
// applying the last-valid-output fallback for diagrams. The returned flag
// marks a terminal failure (closed block, no prior success).
func (c *Controller) resolveMarkup(blk segment.Block, res dispatchResult) (string, bool) {
	if blk.Kind != segment.KindDiagram {
		if res.err != nil {
			// Code and text renderers absorb their own failures; anything
			// that still leaks mounts as escaped plain source.
			c.log.WithField("kind", blk.Kind.String()).Debugf("renderer error absorbed: %v", res.err)
			return c.registry.Sanitize(blk.Content), false
		}
		return res.markup, false
	}

	id := blk.Identity()
	st := c.states[id]
	if st == nil {
		st = &renderState{}
		c.states[id] = st
	}

	if res.err == nil {
		st.phase = PhaseValid
		st.lastValid = res.markup
		st.succeeded = true
		return res.markup, false
	}
	if st.succeeded {
		// 失败的尝试被丢弃，继续展示最近一次成功的结果，而不是空白或报错。
		c.log.Debugf("diagram attempt failed, keeping last valid output: %v", res.err)
		return st.lastValid, false
	}
	if blk.Closed {
		st.phase = PhaseEmpty
		c.log.Warnf("diagram failed after fence closed: %v", res.err)
		return c.errorMarkup(blk, res.err), true
	}
	st.phase = PhaseLoading
	return loadingMarkup(), false
}

func loadingMarkup() string {
	return loadingStyle.Render("◌ rendering diagram…")
}

// errorMarkup is the inline error affordance for a closed block that still
// fails: a visually distinct message plus the raw source.
func (c *Controller) errorMarkup(blk segment.Block, err error) string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("diagram error: " + err.Error()))
	source := strings.TrimRight(c.registry.Sanitize(blk.Content), "\n")
	if source != "" {
		b.WriteByte('\n')
		b.WriteString(errorSourceStyle.Render(source))
	}
	return b.String()
}

// DiagramPhase exposes a block's fallback phase, mostly for tests and the
// status line.
func (c *Controller) DiagramPhase(id segment.Identity) Phase {
	if c == nil {
		return PhaseEmpty
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st := c.states[id]; st != nil {
		return st.phase
	}
	return PhaseEmpty
}
