// Package mount owns the live surface: it turns successive text buffers
// into patches, dispatches changed blocks to their renderers, and applies
// results to the surface in block order while unchanged children stay
// untouched. It also owns the per-block RenderState that backs the diagram
// anti-flicker fallback.
package mount

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"streammark/internal/blockdiff"
	"streammark/internal/events"
	"streammark/internal/logger"
	"streammark/internal/render"
	"streammark/internal/segment"
	"streammark/internal/surface"
)

// ErrSurfaceClosed 表示 controller 已经 teardown，不再接受更新。
var ErrSurfaceClosed = errors.New("mount: surface torn down")

// Options configures a Controller.
type Options struct {
	Surface   surface.Surface
	Registry  *render.Registry
	Segmenter *segment.Segmenter
	// Bus receives post-mount notifications. Nil creates a private bus.
	Bus *events.Bus
	// SurfaceID labels log entries and events; empty generates one.
	SurfaceID string
}

// Controller serializes update ticks for one display surface. Dispatch
// within a tick runs concurrently, application happens in ascending block
// index order, and a new Update waits for the previous apply phase to
// finish.
type Controller struct {
	mu  sync.Mutex
	id  string
	src *segment.Segmenter

	surf     surface.Surface
	registry *render.Registry
	bus      *events.Bus
	log      *logger.LogEntry

	prev     []segment.Block
	lastText string
	states   map[segment.Identity]*renderState
	closed   bool
}

// New creates a Controller. Surface and Registry are required.
func New(opts Options) *Controller {
	id := opts.SurfaceID
	if id == "" {
		id = uuid.NewString()
	}
	seg := opts.Segmenter
	if seg == nil {
		seg = segment.New(segment.Options{})
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(0)
	}
	return &Controller{
		id:       id,
		src:      seg,
		surf:     opts.Surface,
		registry: opts.Registry,
		bus:      bus,
		log:      logger.Named("mount").WithField("surface", id),
		states:   map[segment.Identity]*renderState{},
	}
}

// SurfaceID returns the surface identifier.
func (c *Controller) SurfaceID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Bus returns the post-mount notification bus.
func (c *Controller) Bus() *events.Bus {
	if c == nil {
		return nil
	}
	return c.bus
}

// Blocks returns the most recent parse, for affordances (copy-code) that
// need block sources rather than mounted markup.
func (c *Controller) Blocks() []segment.Block {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]segment.Block, len(c.prev))
	copy(out, c.prev)
	return out
}

// Update applies one tick for the full accumulated buffer. It never fails
// on textual input; the only errors are a closed surface and a cancelled
// context.
func (c *Controller) Update(ctx context.Context, text string) error {
	if c == nil {
		return ErrSurfaceClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(ctx, text, false)
}

// Rerender forces a full re-dispatch of the current buffer (theme or width
// change). Existing children are replaced in place, never re-appended, and
// RenderState survives, so diagram fallback memory is kept.
func (c *Controller) Rerender(ctx context.Context) error {
	if c == nil {
		return ErrSurfaceClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(ctx, c.lastText, true)
}

type dispatchResult struct {
	markup string
	err    error
}

func (c *Controller) updateLocked(ctx context.Context, text string, force bool) error {
	if c.closed {
		return ErrSurfaceClosed
	}
	current := c.src.Segment(text)
	patches := blockdiff.Diff(c.prev, current)
	if force {
		// 强制重渲染时把 Unchanged 升级为 Replace：已挂载的 child 原位覆盖，
		// 而不是重新 Append。
		for i, p := range patches {
			if p.Op == blockdiff.OpUnchanged {
				patches[i] = blockdiff.Patch{Op: blockdiff.OpReplace, Index: p.Index, Block: current[p.Index]}
			}
		}
	}

	// Dispatch phase: independent blocks render concurrently. Renderer
	// failures are data (the fallback policy consumes them); only context
	// cancellation aborts the tick before anything is applied.
	results := make([]dispatchResult, len(patches))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range patches {
		if p.Op != blockdiff.OpReplace && p.Op != blockdiff.OpInsert {
			continue
		}
		g.Go(func() error {
			markup, err := c.registry.Dispatch(gctx, p.Block)
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return err
			}
			results[i] = dispatchResult{markup: markup, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Apply phase: ascending index order; removes run last, highest index
	// first, so earlier indices stay valid while shifting.
	changed := make([]int, 0, blockdiff.Changed(patches))
	var removes []blockdiff.Patch
	for i, p := range patches {
		switch p.Op {
		case blockdiff.OpUnchanged:
			// Untouched by design: no re-render, no re-sanitize.
		case blockdiff.OpInsert:
			markup, failed := c.resolveMarkup(p.Block, results[i])
			c.surf.Append(markup)
			changed = append(changed, p.Index)
			c.publishBlock(eventFor(events.EventBlockMounted, failed), p.Block, results[i].err)
		case blockdiff.OpReplace:
			old := c.prev[p.Index]
			if old.Kind != p.Block.Kind {
				// Kind flip at a fixed position discards prior state; the
				// possible flicker is accepted.
				delete(c.states, old.Identity())
			}
			markup, failed := c.resolveMarkup(p.Block, results[i])
			c.surf.Set(p.Index, markup)
			changed = append(changed, p.Index)
			c.publishBlock(eventFor(events.EventBlockReplaced, failed), p.Block, results[i].err)
		case blockdiff.OpRemove:
			removes = append(removes, p)
		}
	}
	for i := len(removes) - 1; i >= 0; i-- {
		p := removes[i]
		old := c.prev[p.Index]
		c.surf.Remove(p.Index)
		delete(c.states, old.Identity())
		c.publishBlock(events.EventBlockRemoved, old, nil)
	}

	c.prev = current
	c.lastText = text
	c.publish(events.Event{
		Type:    events.EventUpdateApplied,
		Changed: changed,
	})
	return nil
}

func eventFor(ok events.EventType, failed bool) events.EventType {
	if failed {
		return events.EventBlockFailed
	}
	return ok
}

// Close tears the surface down: detaches every child, releases all
// RenderState and closes the bus. Further updates fail with
// ErrSurfaceClosed.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for i := c.surf.Len() - 1; i >= 0; i-- {
		c.surf.Remove(i)
	}
	c.states = map[segment.Identity]*renderState{}
	c.prev = nil
	c.bus.Close()
}

func (c *Controller) publishBlock(typ events.EventType, blk segment.Block, err error) {
	event := events.Event{
		Type:  typ,
		Index: blk.Index,
		Kind:  blk.Kind,
		Block: blk,
	}
	if typ == events.EventBlockFailed && err != nil {
		event.Err = err.Error()
	}
	c.publish(event)
}

func (c *Controller) publish(event events.Event) {
	event.SurfaceID = c.id
	event.Timestamp = time.Now()
	if err := c.bus.Publish(event); err != nil && !errors.Is(err, events.ErrBusClosed) {
		c.log.Debugf("publish %s: %v", event.Type, err)
	}
}
