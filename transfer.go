package ftps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gonzalop/ftps/internal/ratelimit"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/transform"
)

// StoreMode selects how Store treats an existing remote file.
type StoreMode int

const (
	// StoreCreate creates the file or replaces its content (STOR).
	StoreCreate StoreMode = iota
	// StoreAppend appends to the file, creating it if needed (APPE).
	StoreAppend
)

func (m StoreMode) command() string {
	if m == StoreAppend {
		return "APPE"
	}
	return "STOR"
}

// transferRequest describes one data transfer. Exactly one of download and
// upload is set.
type transferRequest struct {
	command string
	path    string

	// translate applies ASCII line ending conversion when the session
	// type is TypeASCII. Listings are never translated.
	translate bool

	download func(r io.Reader) error
	upload   func(w io.Writer) error
}

// transfer runs the full transfer sequence: TYPE and PROT if needed, data
// connection negotiation, REST if requested, the transfer command, the
// stream itself and the final reply. The final reply is read whenever the
// server announced one, even if the stream failed, so the control
// connection stays in step.
func (c *Client) transfer(ctx context.Context, req transferRequest) error {
	if err := c.require(req.command, StateReady); err != nil {
		return err
	}
	offset := c.restartOffset
	c.restartOffset = 0

	if err := c.sendType(ctx, c.transferType); err != nil {
		return err
	}
	protect, err := c.negotiateProtection(ctx)
	if err != nil {
		return err
	}

	dc, err := c.openDataChannel(ctx, protect)
	if err != nil {
		return err
	}
	defer dc.close()

	if offset > 0 {
		if _, err := c.expectCode(ctx, StatusRequestFilePending, "REST", strconv.FormatInt(offset, 10)); err != nil {
			return err
		}
	}

	var args []string
	if req.path != "" {
		args = []string{req.path}
	}
	line := commandLine(req.command, args)

	reply, err := c.cmd(ctx, req.command, args...)
	if err != nil {
		return err
	}
	switch reply.Class() {
	case ClassPreliminary, ClassCompletion:
	case ClassTransientNegative, ClassPermanentNegative:
		return newProtocolError(line, reply)
	default:
		return c.fail(&FramingError{Line: reply.String(), Reason: "unexpected reply to " + req.command})
	}

	n, streamErr := c.stream(ctx, dc, req)
	if closeErr := dc.close(); closeErr != nil && streamErr == nil && req.upload != nil {
		streamErr = &TransportError{Op: "close data connection", Err: closeErr}
	}

	// A 2xx preliminary reply means the server already finished.
	var replyErr error
	if reply.Is1xx() {
		replyErr = c.finishTransfer(ctx, line)
	}

	c.log.WithFields(logrus.Fields{
		"command": line,
		"bytes":   n,
		"ok":      streamErr == nil && replyErr == nil,
	}).Debug("ftp transfer finished")

	return combineErrors(streamErr, replyErr)
}

// stream moves the bytes. The session is marked busy for its duration so
// that callbacks cannot issue commands.
func (c *Client) stream(ctx context.Context, dc *dataChannel, req transferRequest) (int64, error) {
	c.inTransfer = true
	defer func() { c.inTransfer = false }()

	if err := dc.establish(ctx); err != nil {
		return 0, err
	}
	conn := dc.stream(ctx)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(aLongTimeAgo) })
	defer stop()

	ascii := req.translate && c.transferType == TypeASCII
	report := c.progressFor(req.path)

	if req.download != nil {
		cr := &countingReader{r: ratelimit.NewReader(ctx, conn, c.limiter), report: report}
		var r io.Reader = cr
		if ascii {
			r = transform.NewReader(r, newCRLFDecoder())
		}
		err := req.download(r)
		return cr.total, err
	}

	cw := &countingWriter{w: ratelimit.NewWriter(ctx, conn, c.limiter), report: report}
	if !ascii {
		err := req.upload(cw)
		return cw.total, err
	}
	tw := transform.NewWriter(cw, newCRLFEncoder())
	err := req.upload(tw)
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	return cw.total, err
}

// finishTransfer reads the final reply of a transfer. If ctx already ended,
// the reply is still awaited for up to the configured timeout so that the
// session can survive a cancelled transfer.
func (c *Client) finishTransfer(ctx context.Context, line string) error {
	if ctx.Err() != nil {
		wait := c.timeout
		if wait <= 0 {
			wait = acceptWait
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), wait)
		defer cancel()
	}

	reply, err := c.readReply(ctx)
	if err != nil {
		return err
	}
	if !reply.Is2xx() {
		return newProtocolError(line, reply)
	}
	return nil
}

// negotiateProtection makes the server's PROT level match the data
// protection policy and reports whether the data connection must use TLS.
func (c *Client) negotiateProtection(ctx context.Context) (bool, error) {
	secured := c.Mode() == ModeSecured
	if c.dataProtection == DataProtectionPrivate && !secured {
		return false, &StateError{Op: "protect data connection", State: c.state, Mode: c.Mode(), Err: ErrNotSecured}
	}
	if !secured {
		return false, nil
	}

	level := byte('P')
	if c.dataProtection == DataProtectionClear {
		level = 'C'
	}
	if level == c.prot {
		return level == 'P', nil
	}

	if !c.pbsz {
		if _, err := c.expect2xx(ctx, "PBSZ", "0"); err != nil {
			return false, err
		}
		c.pbsz = true
	}
	if _, err := c.expect2xx(ctx, "PROT", string(level)); err != nil {
		return false, err
	}
	c.prot = level
	return level == 'P', nil
}

func combineErrors(streamErr, replyErr error) error {
	if streamErr == nil {
		return replyErr
	}
	if replyErr == nil {
		return streamErr
	}
	merr := multierror.Append(streamErr, replyErr)
	merr.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return "ftps: transfer failed: " + strings.Join(msgs, "; ")
	}
	return merr
}

// Retrieve downloads the remote file at path into w.
// In TypeASCII, CRLF line endings are converted to LF.
//
// Example:
//
//	file, err := os.Create("local.txt")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	err = client.Retrieve(ctx, "remote.txt", file)
func (c *Client) Retrieve(ctx context.Context, path string, w io.Writer) error {
	return c.RetrieveFunc(ctx, path, func(r io.Reader) error {
		_, err := io.Copy(w, r)
		return err
	})
}

// RetrieveFunc downloads the remote file at path and hands the stream to
// fn. The stream is only valid until fn returns; fn should read it to EOF.
// Returning early aborts the transfer. Calls to other Client methods from
// fn fail with ErrTransferInProgress.
func (c *Client) RetrieveFunc(ctx context.Context, path string, fn func(r io.Reader) error) error {
	return c.transfer(ctx, transferRequest{
		command:   "RETR",
		path:      path,
		translate: true,
		download:  fn,
	})
}

// RestartAt makes the next transfer start at offset (REST). The marker is
// sent right before the transfer command and applies to that transfer only.
// Nothing is ever resumed implicitly.
func (c *Client) RestartAt(offset int64) error {
	if err := c.require("restart", StateReady); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("ftps: negative restart offset %d", offset)
	}
	c.restartOffset = offset
	return nil
}

// RetrieveFrom downloads the remote file starting at byte offset.
// This is useful for resuming interrupted downloads.
//
// Example:
//
//	file, err := os.OpenFile("large.bin", os.O_WRONLY|os.O_APPEND, 0644)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer file.Close()
//
//	info, _ := file.Stat()
//	err = client.RetrieveFrom(ctx, "large.bin", file, info.Size())
func (c *Client) RetrieveFrom(ctx context.Context, path string, w io.Writer, offset int64) error {
	if err := c.RestartAt(offset); err != nil {
		return err
	}
	return c.Retrieve(ctx, path, w)
}

// RetrieveTo downloads a remote file to a local path.
func (c *Client) RetrieveTo(ctx context.Context, path, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	err = c.Retrieve(ctx, path, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Store uploads r to the remote path, replacing any existing file.
// In TypeASCII, LF line endings are sent as CRLF.
func (c *Client) Store(ctx context.Context, path string, r io.Reader) error {
	return c.StoreWithMode(ctx, path, r, StoreCreate)
}

// Append appends r to the remote file at path.
// If the file doesn't exist, it will be created.
func (c *Client) Append(ctx context.Context, path string, r io.Reader) error {
	return c.StoreWithMode(ctx, path, r, StoreAppend)
}

// StoreWithMode uploads r to path, creating or appending according to mode.
// The upload ends when r returns io.EOF; the data connection is then closed
// to mark end of file.
func (c *Client) StoreWithMode(ctx context.Context, path string, r io.Reader, mode StoreMode) error {
	if mode != StoreCreate && mode != StoreAppend {
		return errors.New("ftps: unknown store mode")
	}
	return c.transfer(ctx, transferRequest{
		command:   mode.command(),
		path:      path,
		translate: true,
		upload: func(w io.Writer) error {
			_, err := io.Copy(w, r)
			return err
		},
	})
}

// StoreFrom uploads a local file to the remote path.
func (c *Client) StoreFrom(ctx context.Context, path, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	return c.Store(ctx, path, file)
}
