package source

import (
	"context"
	"time"
	"unicode/utf8"
)

// Replay streams a fixed document in small chunks with a cadence, simulating
// a token-by-token model response.
type Replay struct {
	// Text is the full document to replay.
	Text string
	// ChunkSize is the delta size in runes; values below 1 mean 12.
	ChunkSize int
	// Interval is the pause between deltas; zero replays as fast as the
	// consumer accepts.
	Interval time.Duration
	// ByWord cuts on word boundaries instead of fixed rune counts.
	ByWord bool
}

// Stream implements Source.
func (r Replay) Stream(ctx context.Context, emit func(delta string) error) error {
	chunks := r.chunks()
	var ticker *time.Ticker
	if r.Interval > 0 {
		ticker = time.NewTicker(r.Interval)
		defer ticker.Stop()
	}
	for _, chunk := range chunks {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (r Replay) chunks() []string {
	if r.Text == "" {
		return nil
	}
	if r.ByWord {
		return splitAfterSpaces(r.Text)
	}
	size := r.ChunkSize
	if size < 1 {
		size = 12
	}
	var out []string
	rest := r.Text
	for rest != "" {
		n := 0
		for i := 0; i < size && n < len(rest); i++ {
			_, w := utf8.DecodeRuneInString(rest[n:])
			n += w
		}
		out = append(out, rest[:n])
		rest = rest[n:]
	}
	return out
}

// splitAfterSpaces cuts after each run of whitespace so every delta carries
// the space that terminated the previous word, the shape LLM token streams
// tend to have.
func splitAfterSpaces(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !isSpace {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
