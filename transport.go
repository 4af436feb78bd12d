package ftps

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"
)

// TransportMode tags a transport as plain or secured.
type TransportMode int

const (
	ModePlain TransportMode = iota
	ModeSecured
)

func (m TransportMode) String() string {
	if m == ModeSecured {
		return "secured"
	}
	return "plain"
}

// errTransportConsumed is returned by a transport that was replaced by an
// upgrade or downgrade. Its socket now belongs to the replacement.
var errTransportConsumed = errors.New("transport consumed by mode switch")

// Transport is the byte stream under the control connection and under each
// data connection. It is either a *PlainTransport or a *SecureTransport.
//
// Switching modes never mutates a transport: PlainTransport.Secure and
// SecureTransport.Plain consume the receiver and return its replacement, so
// no caller can keep a stale view of the socket.
type Transport interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error

	Mode() TransportMode
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error

	sealed()
}

// PlainTransport is an unencrypted socket.
type PlainTransport struct {
	conn net.Conn
}

// NewPlainTransport takes ownership of conn.
func NewPlainTransport(conn net.Conn) *PlainTransport {
	return &PlainTransport{conn: conn}
}

func (t *PlainTransport) sealed() {}

// Mode returns ModePlain.
func (t *PlainTransport) Mode() TransportMode { return ModePlain }

func (t *PlainTransport) Read(b []byte) (int, error) {
	if t.conn == nil {
		return 0, errTransportConsumed
	}
	return t.conn.Read(b)
}

func (t *PlainTransport) Write(b []byte) (int, error) {
	if t.conn == nil {
		return 0, errTransportConsumed
	}
	return t.conn.Write(b)
}

// Close closes the socket. Closing a consumed transport is a no-op.
func (t *PlainTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	conn := t.conn
	t.conn = nil
	return conn.Close()
}

func (t *PlainTransport) LocalAddr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

func (t *PlainTransport) RemoteAddr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

func (t *PlainTransport) SetDeadline(d time.Time) error {
	if t.conn == nil {
		return errTransportConsumed
	}
	return t.conn.SetDeadline(d)
}

func (t *PlainTransport) SetReadDeadline(d time.Time) error {
	if t.conn == nil {
		return errTransportConsumed
	}
	return t.conn.SetReadDeadline(d)
}

func (t *PlainTransport) SetWriteDeadline(d time.Time) error {
	if t.conn == nil {
		return errTransportConsumed
	}
	return t.conn.SetWriteDeadline(d)
}

// Secure runs a TLS client handshake over the socket and returns the secured
// replacement. The receiver is consumed whether or not the handshake
// succeeds; on failure the socket is closed, since the peer's TLS state is
// unknown and the stream cannot be reused in the clear.
//
// The caller must guarantee that no bytes read from the socket are still
// sitting in a buffer: the handshake has to see the peer's records from the
// first byte.
func (t *PlainTransport) Secure(ctx context.Context, config *tls.Config) (*SecureTransport, error) {
	if t.conn == nil {
		return nil, errTransportConsumed
	}
	raw := t.conn
	t.conn = nil

	tlsConn := tls.Client(raw, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return &SecureTransport{raw: raw, conn: tlsConn}, nil
}

// SecureTransport is a TLS session layered over a plain socket.
type SecureTransport struct {
	raw  net.Conn
	conn *tls.Conn
}

func (t *SecureTransport) sealed() {}

// Mode returns ModeSecured.
func (t *SecureTransport) Mode() TransportMode { return ModeSecured }

func (t *SecureTransport) Read(b []byte) (int, error) {
	if t.conn == nil {
		return 0, errTransportConsumed
	}
	return t.conn.Read(b)
}

func (t *SecureTransport) Write(b []byte) (int, error) {
	if t.conn == nil {
		return 0, errTransportConsumed
	}
	return t.conn.Write(b)
}

// Close sends close_notify and closes the socket.
func (t *SecureTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	conn := t.conn
	t.conn, t.raw = nil, nil
	return conn.Close()
}

func (t *SecureTransport) LocalAddr() net.Addr {
	if t.raw == nil {
		return nil
	}
	return t.raw.LocalAddr()
}

func (t *SecureTransport) RemoteAddr() net.Addr {
	if t.raw == nil {
		return nil
	}
	return t.raw.RemoteAddr()
}

func (t *SecureTransport) SetDeadline(d time.Time) error {
	if t.conn == nil {
		return errTransportConsumed
	}
	return t.conn.SetDeadline(d)
}

func (t *SecureTransport) SetReadDeadline(d time.Time) error {
	if t.conn == nil {
		return errTransportConsumed
	}
	return t.conn.SetReadDeadline(d)
}

func (t *SecureTransport) SetWriteDeadline(d time.Time) error {
	if t.conn == nil {
		return errTransportConsumed
	}
	return t.conn.SetWriteDeadline(d)
}

// ConnectionState returns the negotiated TLS parameters.
func (t *SecureTransport) ConnectionState() tls.ConnectionState {
	if t.conn == nil {
		return tls.ConnectionState{}
	}
	return t.conn.ConnectionState()
}

// Plain drops the TLS layer and returns a plain transport over the same
// socket, as required after a successful CCC. No close_notify is sent: the
// server stops TLS at the same point in the stream. The receiver is consumed.
func (t *SecureTransport) Plain() (*PlainTransport, error) {
	if t.raw == nil {
		return nil, errTransportConsumed
	}
	raw := t.raw
	t.conn, t.raw = nil, nil
	return &PlainTransport{conn: raw}, nil
}
