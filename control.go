package ftps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// cmd sends one command line and reads the reply. Replies of any class are
// returned without error; only transport and framing failures are errors,
// and both close the session. A context that ended before anything was
// sent fails the call and leaves the session as it was.
func (c *Client) cmd(ctx context.Context, command string, args ...string) (*Reply, error) {
	if c.state == StateClosed {
		return nil, c.closedError(command)
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "send " + command, Err: err}
	}

	line := command
	if len(args) > 0 {
		line = command + " " + strings.Join(args, " ")
	}
	if strings.ContainsAny(line, "\r\n") {
		return nil, fmt.Errorf("ftps: command %q contains a line break", redact(line))
	}

	c.log.WithField("command", redact(line)).Debug("ftp command")

	disarm := armDeadline(ctx, c.transport, c.timeout)
	_, err := io.WriteString(c.transport, line+"\r\n")
	disarm()
	if err != nil {
		return nil, c.fail(transportError(ctx, "send "+command, err))
	}

	return c.readReply(ctx)
}

// readReply reads the next complete reply from the control connection.
func (c *Client) readReply(ctx context.Context) (*Reply, error) {
	if c.state == StateClosed {
		return nil, c.closedError("read reply")
	}

	disarm := armDeadline(ctx, c.transport, c.timeout)
	reply, err := readReply(c.reader)
	disarm()
	if err != nil {
		var fe *FramingError
		if errors.As(err, &fe) {
			return nil, c.fail(err)
		}
		// A reply cut short by a timeout or a dead socket leaves the rest
		// of it in flight; nothing read afterwards can be trusted.
		return nil, c.fail(fmt.Errorf("%w: %w", ErrDesynchronized, transportError(ctx, "read reply", err)))
	}

	c.log.WithFields(logrus.Fields{
		"code":  reply.Code,
		"class": reply.Class(),
	}).Debug("ftp reply")

	if reply.Code == StatusNotAvailable {
		c.shutdown(newProtocolError("session", reply))
	}
	return reply, nil
}

// expect sends a command and requires a reply of the given class.
func (c *Client) expect(ctx context.Context, class ReplyClass, command string, args ...string) (*Reply, error) {
	reply, err := c.cmd(ctx, command, args...)
	if err != nil {
		return nil, err
	}
	if reply.Class() != class {
		return reply, newProtocolError(commandLine(command, args), reply)
	}
	return reply, nil
}

// expect2xx sends a command and requires a positive completion reply.
func (c *Client) expect2xx(ctx context.Context, command string, args ...string) (*Reply, error) {
	return c.expect(ctx, ClassCompletion, command, args...)
}

// expectCode sends a command and requires one exact reply code.
func (c *Client) expectCode(ctx context.Context, code int, command string, args ...string) (*Reply, error) {
	reply, err := c.cmd(ctx, command, args...)
	if err != nil {
		return nil, err
	}
	if reply.Code != code {
		return reply, newProtocolError(commandLine(command, args), reply)
	}
	return reply, nil
}

// require checks the preconditions shared by every public operation: the
// session is open, no transfer owns it, and it is in one of states.
func (c *Client) require(op string, states ...SessionState) error {
	if c.state == StateClosed {
		return c.closedError(op)
	}
	if c.inTransfer {
		return &StateError{Op: op, State: c.state, Mode: c.Mode(), Err: ErrTransferInProgress}
	}
	if !c.state.in(states...) {
		return &StateError{Op: op, State: c.state, Mode: c.Mode()}
	}
	return nil
}

func (c *Client) closedError(op string) error {
	err := ErrClosed
	if c.cause != nil {
		err = fmt.Errorf("%w: %w", ErrClosed, c.cause)
	}
	return &StateError{Op: op, State: StateClosed, Mode: c.Mode(), Err: err}
}

// fail records a fatal control channel error, closes the session and
// returns err.
func (c *Client) fail(err error) error {
	c.log.WithError(err).Warn("ftp session failed")
	c.shutdown(err)
	return err
}

// shutdown closes the control connection and moves to StateClosed. cause,
// if non-nil, is reported by later operations.
func (c *Client) shutdown(cause error) {
	if c.state == StateClosed {
		return
	}
	c.cause = cause
	c.setState(StateClosed)
	if c.transport != nil {
		c.transport.Close()
	}
}

func (c *Client) setState(next SessionState) {
	if c.state == next {
		return
	}
	if !c.state.CanTransitionTo(next) {
		c.log.WithFields(logrus.Fields{"from": c.state, "to": next}).Warn("ftp illegal state transition")
	}
	c.log.WithFields(logrus.Fields{"from": c.state, "to": next}).Debug("ftp state")
	c.state = next
}

// replaceTransport installs t as the control transport. The reader is
// rebuilt since any buffer over the old transport is meaningless.
func (c *Client) replaceTransport(t Transport) {
	c.transport = t
	c.reader = bufio.NewReader(t)
	c.log.WithField("mode", t.Mode()).Debug("ftp control transport switched")
}

// transportError wraps err, substituting the context's error when the
// context ended the operation.
func transportError(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		err = cerr
	} else if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		// The socket deadline can fire just before the context's timer.
		err = context.DeadlineExceeded
	}
	return &TransportError{Op: op, Err: err}
}

func commandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return redact(command + " " + strings.Join(args, " "))
}
