package filesys

import (
	"context"
	"io"
)

// ProgressFunc receives the absolute number of bytes copied so far.
// Returning an error aborts the copy.
type ProgressFunc func(done int64) error

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	ctx        context.Context
	r          io.Reader
	done       int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.done += int64(n)
		if pr.onProgress != nil {
			if progressErr := pr.onProgress(pr.done); progressErr != nil {
				return n, progressErr
			}
		}
	}
	return n, err
}

// Copy streams src into dst, reporting absolute progress and honouring ctx
// between reads. It returns the number of bytes written.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, onProgress ProgressFunc) (int64, error) {
	return io.Copy(dst, &progressReader{ctx: ctx, r: src, onProgress: onProgress})
}
