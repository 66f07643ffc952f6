package render

import (
	"context"
	"strings"
	"testing"

	"streammark/internal/segment"
)

func TestExpandMicroSpans(t *testing.T) {
	cases := []struct {
		name   string
		source string
		reveal bool
		want   string
	}{
		{
			name:   "spoiler masked to matching width",
			source: "the killer is ||Bob||",
			want:   "the killer is ▒▒▒",
		},
		{
			name:   "spoiler revealed",
			source: "the killer is ||Bob||",
			reveal: true,
			want:   "the killer is Bob",
		},
		{
			name:   "keyboard key becomes inline code",
			source: "press [[ctrl+c]] to quit",
			want:   "press `ctrl+c` to quit",
		},
		{
			name:   "highlight becomes strong emphasis",
			source: "this is ==important== here",
			want:   "this is **important** here",
		},
		{
			name:   "spans do not cross lines",
			source: "||a\nb||",
			want:   "||a\nb||",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := expandMicroSpans(tc.source, tc.reveal); got != tc.want {
				t.Fatalf("expandMicroSpans(%q) = %q, want %q", tc.source, got, tc.want)
			}
		})
	}
}

func TestMarkdownRenderer_RenderNeverErrors(t *testing.T) {
	m := NewMarkdownRenderer(MarkdownOptions{Theme: "dark", Width: 60})
	blk := segment.Block{Kind: segment.KindText, Content: "# Title\n\nsome *prose* here"}
	out, err := m.Render(context.Background(), blk)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.Contains(out, "Title") {
		t.Fatalf("rendered output lost the heading text: %q", out)
	}
}

func TestMarkdownRenderer_SetRevealSpoilers(t *testing.T) {
	m := NewMarkdownRenderer(MarkdownOptions{Theme: "dark"})
	if m.RevealSpoilers() {
		t.Fatalf("spoilers should start hidden")
	}
	if !m.SetRevealSpoilers(true) {
		t.Fatalf("flipping reveal should report a change")
	}
	if m.SetRevealSpoilers(true) {
		t.Fatalf("setting the same value should report no change")
	}
	if !m.RevealSpoilers() {
		t.Fatalf("reveal not applied")
	}
}

func TestMarkdownRenderer_CancelledContext(t *testing.T) {
	m := NewMarkdownRenderer(MarkdownOptions{Theme: "dark"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Render(ctx, segment.Block{Content: "x"}); err == nil {
		t.Fatalf("expected context error")
	}
}
