package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/indent"

	"streammark/internal/config"
	"streammark/internal/events"
	"streammark/internal/logger"
	"streammark/internal/mount"
	"streammark/internal/render"
	"streammark/internal/segment"
	"streammark/internal/source"
	"streammark/internal/surface"
)

// Options wires the live view together.
type Options struct {
	Controller *mount.Controller
	Surface    *surface.Memory
	Source     source.Source
	Markdown   *render.MarkdownRenderer
	Code       *render.CodeRenderer
	Config     config.Config
	ConfigPath string
	Title      string
	// PostPass runs after each applied tick, scoped to the changed block
	// indices (math typesetting and similar downstream passes). Optional.
	PostPass func(indices []int)
}

type deltaMsg string

type streamClosedMsg struct{}

type streamDoneMsg struct{ err error }

type busMsg events.Event

type busClosedMsg struct{}

// Model 是流式渲染的实时视图：上方 viewport 展示 mounted surface，
// 底部一行状态 + 快捷键。delta 到达即触发一次 update tick。
type Model struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	deltas chan string
	busCh  <-chan events.Event

	viewport viewport.Model
	spinner  spinner.Model
	buffer   strings.Builder

	width, height int
	ready         bool
	follow        bool
	streaming     bool
	streamErr     error
	status        string
	failedBlocks  int
	picker        *themePicker

	log *logger.LogEntry
}

// New creates the model. Run wires it into a bubbletea program.
func New(opts Options) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	return &Model{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		deltas:  make(chan string, 64),
		busCh:   opts.Controller.Bus().Subscribe(),
		spinner: sp,
		follow:  true,
		log:     logger.Named("tui"),
	}
}

func (m *Model) Init() tea.Cmd {
	m.streaming = true
	return tea.Batch(
		m.spinner.Tick,
		m.startStream(),
		m.listenDeltas(),
		m.listenBus(),
	)
}

// startStream pumps source deltas into the model's channel from a worker
// goroutine; the final msg carries the stream error, if any.
func (m *Model) startStream() tea.Cmd {
	src := m.opts.Source
	ctx := m.ctx
	ch := m.deltas
	return func() tea.Msg {
		err := src.Stream(ctx, func(delta string) error {
			select {
			case ch <- delta:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(ch)
		return streamDoneMsg{err: err}
	}
}

func (m *Model) listenDeltas() tea.Cmd {
	ch := m.deltas
	return func() tea.Msg {
		delta, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return deltaMsg(delta)
	}
}

func (m *Model) listenBus() tea.Cmd {
	ch := m.busCh
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return busClosedMsg{}
		}
		return busMsg(evt)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.resize(msg.Width, msg.Height)

	case deltaMsg:
		m.buffer.WriteString(string(msg))
		if err := m.opts.Controller.Update(m.ctx, m.buffer.String()); err != nil {
			m.log.Warnf("update tick failed: %v", err)
		}
		m.recompose()
		return m, m.listenDeltas()

	case streamClosedMsg:
		m.streaming = false
		return m, nil

	case streamDoneMsg:
		m.streaming = false
		if msg.err != nil && m.ctx.Err() == nil {
			m.streamErr = msg.err
			m.status = fmt.Sprintf("stream error: %v", msg.err)
		}
		return m, nil

	case busMsg:
		m.handleBusEvent(events.Event(msg))
		return m, m.listenBus()

	case busClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleBusEvent(evt events.Event) {
	switch evt.Type {
	case events.EventBlockFailed:
		m.failedBlocks++
	case events.EventUpdateApplied:
		if m.opts.PostPass != nil && len(evt.Changed) > 0 {
			m.opts.PostPass(evt.Changed)
		}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker != nil {
		return m.handlePickerKey(msg)
	}
	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		return m, tea.Quit
	case "y":
		m.copyLastCode()
		return m, nil
	case "r":
		if m.opts.Markdown.SetRevealSpoilers(!m.opts.Markdown.RevealSpoilers()) {
			m.rerender()
		}
		return m, nil
	case "t":
		m.picker = newThemePicker(m.opts.Code.Theme())
		return m, nil
	case "G", "end":
		m.follow = true
		m.viewport.GotoBottom()
		return m, nil
	case "up", "down", "pgup", "pgdown", "k", "j":
		m.follow = false
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// copyLastCode puts the most recent code block's source on the clipboard.
func (m *Model) copyLastCode() {
	blocks := m.opts.Controller.Blocks()
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Kind != segment.KindCode {
			continue
		}
		if err := clipboard.WriteAll(blocks[i].Content); err != nil {
			m.status = fmt.Sprintf("copy failed: %v", err)
			return
		}
		m.status = fmt.Sprintf("copied block %d", i)
		return
	}
	m.status = "no code block to copy"
}

func (m *Model) rerender() {
	if err := m.opts.Controller.Rerender(m.ctx); err != nil {
		m.log.Warnf("rerender failed: %v", err)
	}
	m.recompose()
}

func (m *Model) resize(width, height int) tea.Cmd {
	m.width = width
	m.height = height
	headerH := 1
	footerH := 1
	if !m.ready {
		m.viewport = viewport.New(width, height-headerH-footerH)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height - headerH - footerH
	}
	m.opts.Markdown.SetWidth(maxInt(width-4, 20))
	m.rerender()
	return nil
}

// recompose rebuilds the viewport content from the surface snapshot.
// Unchanged children are reused as-is: the controller only rewrote the
// indices its patch touched.
func (m *Model) recompose() {
	children := m.opts.Surface.Children()
	joined := strings.Join(children, "\n\n")
	m.viewport.SetContent(indent.String(joined, 1))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
