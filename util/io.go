package util

import (
	"context"
	"io"
)

// CancelableIoReader stops handing out data once ctx ends. A Read already blocked in the
// underlying reader is not interrupted.
type CancelableIoReader struct {
	ctx context.Context
	r   io.Reader
}

func NewCancelableIoReader(ctx context.Context, r io.Reader) *CancelableIoReader {
	return &CancelableIoReader{
		ctx: ctx,
		r:   r,
	}
}

func (cr *CancelableIoReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
		return cr.r.Read(p)
	}
}
