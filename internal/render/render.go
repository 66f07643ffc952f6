// Package render routes blocks to their sub-renderers and owns the
// sanitization boundary: no renderer output reaches a surface without
// passing through the sanitizer first.
package render

import (
	"context"
	"fmt"
	"sync"

	"streammark/internal/logger"
	"streammark/internal/segment"
)

// Markup is sanitized, terminal-ready styled text for one block.
type Markup = string

// Sanitizer 在挂载前清洗渲染输出。实现见 sanitize.go。
type Sanitizer func(string) string

// BlockRenderer renders one block's content into raw markup. Implementations
// may be synchronous (text) or lazily construct heavyweight engines (code,
// diagram); either way the per-block contract stays the same.
type BlockRenderer interface {
	Kind() segment.Kind
	Render(ctx context.Context, blk segment.Block) (string, error)
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Sanitize overrides the default markup sanitizer.
	Sanitize Sanitizer
}

// Registry maps block kinds to renderers and dispatches changed blocks.
type Registry struct {
	mu        sync.RWMutex
	renderers map[segment.Kind]BlockRenderer
	sanitize  Sanitizer
	log       *logger.LogEntry
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	sanitize := opts.Sanitize
	if sanitize == nil {
		sanitize = SanitizeMarkup
	}
	return &Registry{
		renderers: map[segment.Kind]BlockRenderer{},
		sanitize:  sanitize,
		log:       logger.Named("render"),
	}
}

// Register installs (or replaces) the renderer for its kind.
func (r *Registry) Register(br BlockRenderer) {
	if r == nil || br == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[br.Kind()] = br
}

// Renderer returns the renderer for a kind, or nil.
func (r *Registry) Renderer(kind segment.Kind) BlockRenderer {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.renderers[kind]
}

// Dispatch renders one block and sanitizes its output. Renderer errors pass
// through untouched so the mount controller can apply its fallback policy;
// the returned markup is always safe to mount, error or not.
func (r *Registry) Dispatch(ctx context.Context, blk segment.Block) (Markup, error) {
	if r == nil {
		return "", fmt.Errorf("dispatch: nil registry")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	br := r.Renderer(blk.Kind)
	if br == nil {
		// 没有注册的渲染器时退化为转义纯文本，而不是丢块。
		r.log.WithField("kind", blk.Kind.String()).Warn("no renderer registered, mounting escaped source")
		return r.sanitize(blk.Content), nil
	}
	out, err := br.Render(ctx, blk)
	if err != nil {
		return "", err
	}
	return r.sanitize(out), nil
}

// Sanitize applies the registry's sanitizer to arbitrary markup. The mount
// controller uses it for affordances it generates itself (error panes).
func (r *Registry) Sanitize(markup string) Markup {
	if r == nil {
		return markup
	}
	return r.sanitize(markup)
}
