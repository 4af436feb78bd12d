package ftps

import (
	"context"
	"io"
	"time"
)

// aLongTimeAgo is a deadline that has already passed; setting it unblocks
// any pending I/O immediately.
var aLongTimeAgo = time.Unix(1, 0)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// armDeadline sets d's deadline to the earlier of ctx's deadline and
// now+timeout, and forces it into the past if ctx is cancelled. The returned
// function disarms both.
func armDeadline(ctx context.Context, d deadliner, timeout time.Duration) (disarm func()) {
	_ = d.SetDeadline(deadlineFor(ctx, timeout))
	stop := context.AfterFunc(ctx, func() {
		_ = d.SetDeadline(aLongTimeAgo)
	})
	return func() {
		stop()
		_ = d.SetDeadline(time.Time{})
	}
}

func deadlineFor(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

// deadlineConn refreshes the read/write deadline before every operation so
// that timeout bounds idle time rather than the whole transfer. The context
// deadline, if earlier, always wins. I/O errors other than io.EOF come back
// as *TransportError.
type deadlineConn struct {
	Transport
	ctx     context.Context
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, &TransportError{Op: "read data", Err: err}
	}
	if err := c.Transport.SetReadDeadline(deadlineFor(c.ctx, c.timeout)); err != nil {
		return 0, &TransportError{Op: "read data", Err: err}
	}
	n, err := c.Transport.Read(b)
	if err != nil && err != io.EOF {
		err = transportError(c.ctx, "read data", err)
	}
	return n, err
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, &TransportError{Op: "write data", Err: err}
	}
	if err := c.Transport.SetWriteDeadline(deadlineFor(c.ctx, c.timeout)); err != nil {
		return 0, &TransportError{Op: "write data", Err: err}
	}
	n, err := c.Transport.Write(b)
	if err != nil {
		err = transportError(c.ctx, "write data", err)
	}
	return n, err
}
