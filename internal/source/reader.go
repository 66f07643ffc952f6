package source

import (
	"context"
	"errors"
	"io"
)

// Reader streams deltas from an io.Reader (typically stdin piped from
// another process).
type Reader struct {
	R io.Reader
	// BufSize is the read chunk size; values below 1 mean 4096.
	BufSize int
}

// Stream implements Source.
func (r Reader) Stream(ctx context.Context, emit func(delta string) error) error {
	if r.R == nil {
		return errors.New("source: reader is nil")
	}
	size := r.BufSize
	if size < 1 {
		size = 4096
	}
	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.R.Read(buf)
		if n > 0 {
			if emitErr := emit(string(buf[:n])); emitErr != nil {
				return emitErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
