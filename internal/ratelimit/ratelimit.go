// Package ratelimit throttles data connection throughput with a token
// bucket from golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxChunkSize caps a single wait so that small limits still make progress
// in steady steps rather than long stalls.
const maxChunkSize = 32 * 1024

// Limiter limits transfers to a fixed number of bytes per second, allowing
// a burst of one second worth of data.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a limiter for bytesPerSecond. It returns nil for a
// non-positive rate, which NewReader and NewWriter treat as unlimited.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(min(bytesPerSecond, int64(1<<30)))
	return &Limiter{lim: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

// Rate returns the configured limit in bytes per second.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return int64(l.lim.Limit())
}

func (l *Limiter) chunk() int {
	return min(l.lim.Burst(), maxChunkSize)
}

type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *Limiter
}

// NewReader returns a reader whose throughput is limited by limiter. Waits
// end early with ctx's error. A nil limiter returns r unchanged.
func NewReader(ctx context.Context, r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{ctx: ctx, r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if n := r.limiter.chunk(); len(p) > n {
		p = p[:n]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.limiter.lim.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *Limiter
}

// NewWriter returns a writer whose throughput is limited by limiter. Waits
// end early with ctx's error. A nil limiter returns w unchanged.
func NewWriter(ctx context.Context, w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{ctx: ctx, w: w, limiter: limiter}
}

func (w *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		size := min(len(p)-written, w.limiter.chunk())
		if err := w.limiter.lim.WaitN(w.ctx, size); err != nil {
			return written, err
		}
		n, err := w.w.Write(p[written : written+size])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
