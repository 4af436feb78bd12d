package ftps

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
)

func TestProtocolError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code      int
		temporary bool
		permanent bool
	}{
		{421, true, false},
		{450, true, false},
		{530, false, true},
		{550, false, true},
	}
	for _, tt := range tests {
		err := newProtocolError("RETR x", &Reply{Code: tt.code, Lines: []string{"no", "way"}})
		if err.IsTemporary() != tt.temporary || err.Is4xx() != tt.temporary {
			t.Errorf("%d: IsTemporary = %v, want %v", tt.code, err.IsTemporary(), tt.temporary)
		}
		if err.IsPermanent() != tt.permanent || err.Is5xx() != tt.permanent {
			t.Errorf("%d: IsPermanent = %v, want %v", tt.code, err.IsPermanent(), tt.permanent)
		}
		if err.Response != "no\nway" || len(err.Lines) != 2 {
			t.Errorf("%d: Response = %q, Lines = %q", tt.code, err.Response, err.Lines)
		}
	}

	var wrapped error = fmt.Errorf("upload: %w", newProtocolError("STOR a", &Reply{Code: 553}))
	var pe *ProtocolError
	if !errors.As(wrapped, &pe) || pe.Code != 553 || pe.Command != "STOR a" {
		t.Errorf("errors.As = %v", pe)
	}
}

func TestStateErrorMatching(t *testing.T) {
	t.Parallel()
	err := error(&StateError{Op: "retrieve", State: StateConnected, Mode: ModePlain})
	if !errors.Is(err, ErrState) {
		t.Error("StateError does not match ErrState")
	}
	if errors.Is(err, ErrClosed) {
		t.Error("StateError without cause matches ErrClosed")
	}

	closed := error(&StateError{Op: "noop", State: StateClosed, Err: ErrClosed})
	if !errors.Is(closed, ErrState) || !errors.Is(closed, ErrClosed) {
		t.Errorf("closed StateError = %v, want ErrState and ErrClosed", closed)
	}
}

func TestTransportErrorTimeout(t *testing.T) {
	t.Parallel()
	timeout := &TransportError{Op: "read reply", Err: os.ErrDeadlineExceeded}
	if !timeout.Timeout() {
		t.Error("deadline error is not a timeout")
	}
	if !errors.Is(timeout, os.ErrDeadlineExceeded) {
		t.Error("TransportError does not unwrap")
	}

	refused := &TransportError{Op: "dial", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}
	if refused.Timeout() {
		t.Error("refused dial reported as timeout")
	}

	cancelled := &TransportError{Op: "read data", Err: context.Canceled}
	if !errors.Is(cancelled, context.Canceled) {
		t.Error("cancellation not visible through TransportError")
	}
}

func TestFramingErrorDesynchronizes(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("wrap: %w", &FramingError{Line: "xyz", Reason: "bad"})
	if !errors.Is(err, ErrDesynchronized) {
		t.Error("FramingError does not match ErrDesynchronized")
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"PASS hunter2": "PASS ****",
		"pass hunter2": "pass ****",
		"ACCT billing": "ACCT ****",
		"USER alice":   "USER alice",
		"PASS":         "PASS",
		"PASV":         "PASV",
	}
	for in, want := range tests {
		if got := redact(in); got != want {
			t.Errorf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}
