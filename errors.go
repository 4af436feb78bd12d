package ftps

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrState is matched (with errors.Is) by every state-precondition failure.
	ErrState = errors.New("ftps: operation not allowed in current session state")

	// ErrClosed is returned for operations on a session that reached the
	// Closed state, either by Quit/Close or after a fatal error.
	ErrClosed = errors.New("ftps: session closed")

	// ErrTransferInProgress is returned when a command is attempted while a
	// data transfer owns the session.
	ErrTransferInProgress = errors.New("ftps: data transfer in progress")

	// ErrAlreadySecured is returned by EnterSecure on a secured session.
	ErrAlreadySecured = errors.New("ftps: control connection already secured")

	// ErrNotSecured is returned by LeaveSecure on a plain session, and when
	// private data protection is requested over a plain control connection.
	ErrNotSecured = errors.New("ftps: control connection not secured")

	// ErrSecureHandshake wraps TLS handshake failures. The session is closed.
	ErrSecureHandshake = errors.New("ftps: secure handshake failed")

	// ErrDesynchronized marks a session whose command/reply framing can no
	// longer be trusted. Reconnect to recover.
	ErrDesynchronized = errors.New("ftps: control channel desynchronized")
)

// ProtocolError is a well-formed negative (or unexpected) server reply to a
// command. It carries the full context of the exchange.
type ProtocolError struct {
	// Command is the FTP command that was sent (e.g., "STOR file.txt").
	// Passwords are never recorded.
	Command string

	// Response is the reply text (e.g., "Permission denied").
	Response string

	// Code is the numeric reply code (e.g., 550).
	Code int

	// Lines holds every message line of a multi-line reply.
	Lines []string
}

func newProtocolError(command string, reply *Reply) *ProtocolError {
	return &ProtocolError{
		Command:  command,
		Response: reply.Message(),
		Code:     reply.Code,
		Lines:    reply.Lines,
	}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftps: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// Class returns the reply class of the error code.
func (e *ProtocolError) Class() ReplyClass {
	return ClassOf(e.Code)
}

// Is4xx returns true if the error code is in the 4xx range (temporary failure).
func (e *ProtocolError) Is4xx() bool {
	return e.Class() == ClassTransientNegative
}

// Is5xx returns true if the error code is in the 5xx range (permanent failure).
func (e *ProtocolError) Is5xx() bool {
	return e.Class() == ClassPermanentNegative
}

// IsTemporary returns true if the error is a transient failure (4xx).
// The client never retries on its own; callers decide.
func (e *ProtocolError) IsTemporary() bool {
	return e.Is4xx()
}

// IsPermanent returns true if the error is a permanent failure (5xx).
func (e *ProtocolError) IsPermanent() bool {
	return e.Is5xx()
}

// StateError reports an operation whose preconditions on the session state
// did not hold. No command was sent to the server.
type StateError struct {
	Op    string
	State SessionState
	Mode  TransportMode
	Err   error
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("ftps: %s not allowed in state %s (%s)", e.Op, e.State, e.Mode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the specific cause, if any.
func (e *StateError) Unwrap() error {
	return e.Err
}

// Is makes every StateError match ErrState.
func (e *StateError) Is(target error) bool {
	return target == ErrState
}

// TransportError is an I/O failure on the control or a data connection.
type TransportError struct {
	// Op describes what was being done, e.g. "read reply" or "dial data".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ftps: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// FramingError is a malformed, truncated or out-of-context reply. It always
// desynchronizes the session.
type FramingError struct {
	Line   string
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("ftps: bad reply %q: %s", e.Line, e.Reason)
}

// Is makes every FramingError match ErrDesynchronized.
func (e *FramingError) Is(target error) bool {
	return target == ErrDesynchronized
}

// redact hides the argument of commands that carry credentials.
func redact(command string) string {
	verb, _, found := strings.Cut(command, " ")
	if found && (strings.EqualFold(verb, "PASS") || strings.EqualFold(verb, "ACCT")) {
		return verb + " ****"
	}
	return command
}
