package mount

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"streammark/internal/events"
	"streammark/internal/render"
	"streammark/internal/segment"
	"streammark/internal/surface"
)

type countingRenderer struct {
	mu     sync.Mutex
	kind   segment.Kind
	prefix string
	calls  int
}

func (r *countingRenderer) Kind() segment.Kind { return r.kind }

func (r *countingRenderer) Render(ctx context.Context, blk segment.Block) (string, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.prefix + blk.Content, nil
}

func (r *countingRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// flakyEngine fails when the source contains "!" or when fail is set.
type flakyEngine struct {
	mu   sync.Mutex
	fail bool
}

func (e *flakyEngine) setFail(fail bool) {
	e.mu.Lock()
	e.fail = fail
	e.mu.Unlock()
}

func (e *flakyEngine) Render(ctx context.Context, source string) (string, error) {
	e.mu.Lock()
	fail := e.fail
	e.mu.Unlock()
	if fail || strings.Contains(source, "!") {
		return "", fmt.Errorf("layout rejected")
	}
	return "D:" + source, nil
}

type harness struct {
	controller *Controller
	surf       *surface.Memory
	text       *countingRenderer
	code       *countingRenderer
	engine     *flakyEngine
	events     <-chan events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	text := &countingRenderer{kind: segment.KindText, prefix: "T:"}
	code := &countingRenderer{kind: segment.KindCode, prefix: "C:"}
	engine := &flakyEngine{}

	registry := render.NewRegistry(render.RegistryOptions{})
	registry.Register(text)
	registry.Register(code)
	registry.Register(render.NewDiagramRenderer(render.DiagramOptions{
		Engines: map[string]render.DiagramEngine{"mermaid": engine},
	}))

	surf := surface.NewMemory()
	bus := events.NewBus(256)
	controller := New(Options{
		Surface:   surf,
		Registry:  registry,
		Bus:       bus,
		SurfaceID: "test-surface",
	})
	return &harness{
		controller: controller,
		surf:       surf,
		text:       text,
		code:       code,
		engine:     engine,
		events:     bus.Subscribe(),
	}
}

// drain collects the events published so far without blocking.
func (h *harness) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case evt := <-h.events:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestController_StreamTicks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Tick 1: a bare text prefix.
	if err := h.controller.Update(ctx, "Hello "); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if got := h.surf.Children(); !reflect.DeepEqual(got, []string{"T:Hello "}) {
		t.Fatalf("tick 1 children = %q", got)
	}

	// Tick 2: the text grew and an unterminated code fence appeared.
	if err := h.controller.Update(ctx, "Hello world!\nMore.\n```js\nconsole.log("); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	want := []string{"T:Hello world!\nMore.", "C:console.log("}
	if got := h.surf.Children(); !reflect.DeepEqual(got, want) {
		t.Fatalf("tick 2 children = %q, want %q", got, want)
	}

	// Tick 3: the fence closed and trailing prose arrived. The settled text
	// block must not be re-dispatched.
	if err := h.controller.Update(ctx, "Hello world!\nMore.\n```js\nconsole.log(1)\n```\nafter"); err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	want = []string{"T:Hello world!\nMore.", "C:console.log(1)", "T:after"}
	if got := h.surf.Children(); !reflect.DeepEqual(got, want) {
		t.Fatalf("tick 3 children = %q, want %q", got, want)
	}

	if got := h.text.callCount(); got != 3 {
		t.Fatalf("text renderer dispatched %d times, want 3 (insert, replace, trailing insert)", got)
	}
	if got := h.code.callCount(); got != 2 {
		t.Fatalf("code renderer dispatched %d times, want 2 (insert, close)", got)
	}
}

func TestController_PublishesEvents(t *testing.T) {
	h := newHarness(t)
	if err := h.controller.Update(context.Background(), "hi"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	evts := h.drain()
	if len(evts) != 2 {
		t.Fatalf("expected mounted + applied, got %+v", evts)
	}
	if evts[0].Type != events.EventBlockMounted || evts[0].Kind != segment.KindText {
		t.Fatalf("first event = %+v", evts[0])
	}
	if evts[0].SurfaceID != "test-surface" {
		t.Fatalf("surface id = %q", evts[0].SurfaceID)
	}
	if evts[1].Type != events.EventUpdateApplied || !reflect.DeepEqual(evts[1].Changed, []int{0}) {
		t.Fatalf("second event = %+v", evts[1])
	}
}

func TestController_DiagramNoFlicker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := segment.Identity{Index: 0, Kind: segment.KindDiagram}

	// Valid first attempt mounts the layout.
	if err := h.controller.Update(ctx, "```mermaid\nA\n"); err != nil {
		t.Fatalf("valid v1: %v", err)
	}
	if got := h.surf.Child(0); got != "D:A" {
		t.Fatalf("valid v1 child = %q", got)
	}
	if got := h.controller.DiagramPhase(id); got != PhaseValid {
		t.Fatalf("phase after success = %v", got)
	}

	// A failing attempt keeps the previous output on screen.
	if err := h.controller.Update(ctx, "```mermaid\nA!\n"); err != nil {
		t.Fatalf("invalid: %v", err)
	}
	if got := h.surf.Child(0); got != "D:A" {
		t.Fatalf("invalid attempt flickered the surface: %q", got)
	}
	if got := h.controller.DiagramPhase(id); got != PhaseValid {
		t.Fatalf("phase after failed attempt = %v", got)
	}

	// The next valid attempt replaces it.
	if err := h.controller.Update(ctx, "```mermaid\nA2\n"); err != nil {
		t.Fatalf("valid v2: %v", err)
	}
	if got := h.surf.Child(0); got != "D:A2" {
		t.Fatalf("valid v2 child = %q", got)
	}
}

func TestController_DiagramLoadingAndTerminalFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := segment.Identity{Index: 0, Kind: segment.KindDiagram}

	// Open block, never-succeeded: a failed attempt shows the placeholder.
	if err := h.controller.Update(ctx, "```mermaid\nA!\n"); err != nil {
		t.Fatalf("open invalid: %v", err)
	}
	if got := h.surf.Child(0); !strings.Contains(got, "rendering diagram") {
		t.Fatalf("expected loading placeholder, got %q", got)
	}
	if got := h.controller.DiagramPhase(id); got != PhaseLoading {
		t.Fatalf("phase = %v, want loading", got)
	}

	// The fence closed and the diagram still fails: inline error with the
	// source, plus a failure event.
	h.drain()
	if err := h.controller.Update(ctx, "```mermaid\nA!\n```\n"); err != nil {
		t.Fatalf("closed invalid: %v", err)
	}
	child := h.surf.Child(0)
	if !strings.Contains(child, "diagram error") || !strings.Contains(child, "A!") {
		t.Fatalf("expected inline error affordance, got %q", child)
	}
	if got := h.controller.DiagramPhase(id); got != PhaseEmpty {
		t.Fatalf("phase = %v, want empty", got)
	}
	failed := false
	for _, evt := range h.drain() {
		if evt.Type == events.EventBlockFailed {
			failed = true
			if evt.Err == "" {
				t.Fatalf("failure event must carry the renderer error")
			}
		}
	}
	if !failed {
		t.Fatalf("terminal failure must publish EventBlockFailed")
	}
}

func TestController_RerenderKeepsFallbackMemory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.controller.Update(ctx, "```mermaid\nA\n"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// The engine breaks (theme change mid-regression, engine crash, ...);
	// a forced re-render must still show the remembered output.
	h.engine.setFail(true)
	if err := h.controller.Rerender(ctx); err != nil {
		t.Fatalf("Rerender: %v", err)
	}
	if got := h.surf.Child(0); got != "D:A" {
		t.Fatalf("rerender lost the last valid output: %q", got)
	}
	if h.surf.Len() != 1 {
		t.Fatalf("surface len = %d after Rerender, want 1", h.surf.Len())
	}
}

func TestController_RerenderReplacesInPlace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.controller.Update(ctx, "intro\n```js\na()\n```"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := []string{"T:intro", "C:a()"}
	if got := h.surf.Children(); !reflect.DeepEqual(got, want) {
		t.Fatalf("children = %q", got)
	}

	// Rerender (resize, theme switch) must re-dispatch every block but mount
	// each one exactly once, at its existing position.
	for i := 0; i < 3; i++ {
		if err := h.controller.Rerender(ctx); err != nil {
			t.Fatalf("Rerender %d: %v", i, err)
		}
		if got := h.surf.Children(); !reflect.DeepEqual(got, want) {
			t.Fatalf("Rerender %d children = %q, want %q", i, got, want)
		}
	}
	// Two dispatches per rerender on top of the two initial inserts.
	if got := h.text.callCount(); got != 4 {
		t.Fatalf("text renderer dispatched %d times, want 4", got)
	}
	if got := h.code.callCount(); got != 4 {
		t.Fatalf("code renderer dispatched %d times, want 4", got)
	}

	// A regular update afterwards still diffs against the real parse.
	if err := h.controller.Update(ctx, "intro\n```js\na()\n```\ntail"); err != nil {
		t.Fatalf("Update after Rerender: %v", err)
	}
	want = []string{"T:intro", "C:a()", "T:tail"}
	if got := h.surf.Children(); !reflect.DeepEqual(got, want) {
		t.Fatalf("children after follow-up update = %q, want %q", got, want)
	}
}

func TestController_ShrinkRemovesAndEvicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := segment.Identity{Index: 1, Kind: segment.KindDiagram}

	if err := h.controller.Update(ctx, "intro\n```mermaid\nA\n```\ntail"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if h.surf.Len() != 3 {
		t.Fatalf("surface len = %d, want 3", h.surf.Len())
	}
	if got := h.controller.DiagramPhase(id); got != PhaseValid {
		t.Fatalf("phase = %v", got)
	}

	// Buffer reset to a shorter document removes the tail and its state.
	if err := h.controller.Update(ctx, "intro"); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if got := h.surf.Children(); !reflect.DeepEqual(got, []string{"T:intro"}) {
		t.Fatalf("children after shrink = %q", got)
	}
	if got := h.controller.DiagramPhase(id); got != PhaseEmpty {
		t.Fatalf("state must be evicted on unmount, phase = %v", got)
	}
}

func TestController_KindFlipDiscardsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := segment.Identity{Index: 0, Kind: segment.KindDiagram}

	if err := h.controller.Update(ctx, "```mermaid\nA\n"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := h.controller.Update(ctx, "plain text instead"); err != nil {
		t.Fatalf("kind flip: %v", err)
	}
	if got := h.surf.Child(0); got != "T:plain text instead" {
		t.Fatalf("child = %q", got)
	}
	if got := h.controller.DiagramPhase(id); got != PhaseEmpty {
		t.Fatalf("kind flip must discard prior state, phase = %v", got)
	}
}

func TestController_CloseTearsDown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.controller.Update(ctx, "a\n```js\nb\n```"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	h.controller.Close()
	if h.surf.Len() != 0 {
		t.Fatalf("surface not emptied: %d children", h.surf.Len())
	}
	if err := h.controller.Update(ctx, "more"); !errors.Is(err, ErrSurfaceClosed) {
		t.Fatalf("expected ErrSurfaceClosed, got %v", err)
	}
	// Close is idempotent.
	h.controller.Close()
}

func TestController_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.controller.Update(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.surf.Len() != 0 {
		t.Fatalf("nothing may be applied after a cancelled tick")
	}
}
