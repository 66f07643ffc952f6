// Package source produces the text deltas that drive update ticks: a replay
// of a fixed document for demos and tests, a raw reader, or a live
// model-response stream.
package source

import "context"

// Source 把一段流式文本逐步交给 emit。emit 收到的是增量（delta），
// 调用方自行累积成完整 buffer 后触发 update。
type Source interface {
	// Stream blocks until the document is exhausted, ctx is cancelled, or
	// emit returns an error.
	Stream(ctx context.Context, emit func(delta string) error) error
}
