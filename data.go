package ftps

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// pasvRegex matches the six octets of a PASV reply:
	// 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2). Some servers omit the
	// parentheses.
	pasvRegex = regexp.MustCompile(`(\d+),(\d+),(\d+),(\d+),(\d+),(\d+)`)

	// epsvRegex matches the EPSV reply format: 229 Entering Extended Passive Mode (|||port|)
	epsvRegex = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// acceptWait bounds the wait for the server's active mode connection when
// no timeout is configured.
const acceptWait = time.Minute

// parsePASV parses a PASV reply and returns the host and port.
// Example: "Entering Passive Mode (192,168,1,1,195,149)"
// Returns: "192.168.1.1:50069" (195*256 + 149 = 50069)
func parsePASV(message string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(message)
	if len(matches) != 7 {
		return "", fmt.Errorf("invalid PASV reply: %s", message)
	}

	var octets [6]byte
	for i := range octets {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return "", fmt.Errorf("invalid PASV octet: %s", matches[i+1])
		}
		octets[i] = byte(val)
	}

	ip := net.IPv4(octets[0], octets[1], octets[2], octets[3])
	port := int(octets[4])<<8 | int(octets[5])
	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}

// parseEPSV parses an EPSV reply and returns the port.
// Example: "Entering Extended Passive Mode (|||6446|)"
// Returns: "6446"
func parseEPSV(message string) (string, error) {
	matches := epsvRegex.FindStringSubmatch(message)
	if len(matches) != 2 {
		return "", fmt.Errorf("invalid EPSV reply: %s", message)
	}

	port, err := strconv.Atoi(matches[1])
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid EPSV port: %s", matches[1])
	}
	return matches[1], nil
}

// formatPORT formats an address for the PORT command.
// Converts "192.168.1.100:50000" to "192,168,1,100,195,80"
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host).To4()
	if ip == nil {
		return "", fmt.Errorf("PORT requires an IPv4 address: %s", host)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", fmt.Errorf("invalid port: %s", portStr)
	}

	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port>>8, port&0xff), nil
}

// formatEPRT formats an address for the EPRT command.
// Format: |d|net-prt|net-addr|tcp-port|
// net-prt is 1 for IPv4 and 2 for IPv6.
func formatEPRT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}

	netPrt := 2
	if ip.To4() != nil {
		netPrt = 1
	}
	return fmt.Sprintf("|%d|%s|%s|", netPrt, ip.String(), portStr), nil
}

// resolveDataAddr replaces an unspecified PASV address (0.0.0.0) with the
// control connection host.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

// dataMode is how a data connection gets established.
type dataMode int

const (
	dataPassive dataMode = iota
	dataActive
)

func (m dataMode) String() string {
	if m == dataActive {
		return "active"
	}
	return "passive"
}

// dataChannel describes the data connection of one transfer. It is created
// before the transfer command is sent and closed before the final reply is
// read; nothing outside the transfer holds on to it.
type dataChannel struct {
	mode dataMode

	// conn is the dialled passive connection until establish wraps it
	conn     net.Conn
	listener net.Listener

	// transport is set once the connection is usable
	transport Transport

	// tlsConfig is non-nil when the channel must be protected
	tlsConfig *tls.Config

	timeout time.Duration
	log     logrus.FieldLogger
}

// openDataChannel negotiates a data connection with the server. In passive
// mode the connection is dialled here; in active mode the listener is
// announced here and the connection accepted by establish.
func (c *Client) openDataChannel(ctx context.Context, protect bool) (*dataChannel, error) {
	dc := &dataChannel{timeout: c.timeout, log: c.log}
	if protect {
		dc.tlsConfig = c.tlsConfig
	}

	var err error
	if c.activeMode {
		dc.mode = dataActive
		dc.listener, err = c.listenActive(ctx)
	} else {
		dc.mode = dataPassive
		dc.conn, err = c.dialPassive(ctx)
	}
	if err != nil {
		return nil, err
	}

	dc.log.WithFields(logrus.Fields{
		"mode":      dc.mode,
		"protected": protect,
	}).Debug("ftp data channel opened")
	return dc, nil
}

// controlIsIPv6 reports whether the control connection runs over IPv6, in
// which case PASV and PORT cannot describe data addresses.
func (c *Client) controlIsIPv6() bool {
	addr, ok := c.transport.RemoteAddr().(*net.TCPAddr)
	return ok && addr.IP.To4() == nil
}

func (c *Client) dialPassive(ctx context.Context) (net.Conn, error) {
	addr, err := c.passiveAddr(ctx)
	if err != nil {
		return nil, err
	}

	dialCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	c.log.WithField("addr", addr).Debug("ftp dialing data connection")
	conn, err := c.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, transportError(ctx, "dial data connection", err)
	}
	return conn, nil
}

// passiveAddr asks the server for a passive address. EPSV is used on IPv6
// or when enabled; on IPv4 a server that rejects EPSV gets PASV instead,
// and EPSV is not tried again.
func (c *Client) passiveAddr(ctx context.Context) (string, error) {
	ipv6 := c.controlIsIPv6()
	if c.epsv || ipv6 {
		reply, err := c.cmd(ctx, "EPSV")
		if err != nil {
			return "", err
		}
		switch {
		case reply.Is2xx():
			port, err := parseEPSV(reply.Message())
			if err != nil {
				return "", c.fail(&FramingError{Line: reply.String(), Reason: err.Error()})
			}
			return net.JoinHostPort(c.host, port), nil
		case reply.Is5xx() && !ipv6:
			c.log.WithField("code", reply.Code).Debug("ftp EPSV rejected, falling back to PASV")
			c.epsv = false
		default:
			return "", newProtocolError("EPSV", reply)
		}
	}

	reply, err := c.expect2xx(ctx, "PASV")
	if err != nil {
		return "", err
	}
	addr, err := parsePASV(reply.Message())
	if err != nil {
		return "", c.fail(&FramingError{Line: reply.String(), Reason: err.Error()})
	}
	return resolveDataAddr(addr, c.host), nil
}

// listenActive opens a listener on the control connection's local address
// and announces it with PORT (IPv4) or EPRT (IPv6).
func (c *Client) listenActive(ctx context.Context) (net.Listener, error) {
	host := c.activeListenIP
	if host == "" {
		if addr, ok := c.transport.LocalAddr().(*net.TCPAddr); ok {
			host = addr.IP.String()
		} else {
			host = "127.0.0.1"
		}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, &TransportError{Op: "listen for data connection", Err: err}
	}

	addr := listener.Addr().String()
	ip := listener.Addr().(*net.TCPAddr).IP

	command, format := "PORT", formatPORT
	if ip.To4() == nil {
		command, format = "EPRT", formatEPRT
	}
	arg, err := format(addr)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to format %s command: %w", command, err)
	}
	if _, err := c.expect2xx(ctx, command, arg); err != nil {
		listener.Close()
		return nil, err
	}
	return listener, nil
}

// establish completes the connection after the server accepted the transfer
// command: the active connection is accepted and, if required, TLS is
// negotiated. The client always takes the TLS client role.
func (dc *dataChannel) establish(ctx context.Context) error {
	if dc.mode == dataActive {
		conn, err := dc.accept(ctx)
		if err != nil {
			return err
		}
		dc.conn = conn
	}

	plain := NewPlainTransport(dc.conn)
	dc.conn = nil
	if dc.tlsConfig == nil {
		dc.transport = plain
		return nil
	}

	handshakeCtx := ctx
	if dc.timeout > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, dc.timeout)
		defer cancel()
	}
	secured, err := plain.Secure(handshakeCtx, dc.tlsConfig)
	if err != nil {
		return &TransportError{Op: "data connection handshake", Err: fmt.Errorf("%w: %w", ErrSecureHandshake, err)}
	}
	dc.transport = secured
	return nil
}

// accept waits for exactly one connection from the server.
func (dc *dataChannel) accept(ctx context.Context) (net.Conn, error) {
	wait := dc.timeout
	if wait <= 0 {
		wait = acceptWait
	}
	if l, ok := dc.listener.(*net.TCPListener); ok {
		_ = l.SetDeadline(deadlineFor(ctx, wait))
	}
	stop := context.AfterFunc(ctx, func() { dc.listener.Close() })
	defer stop()

	conn, err := dc.listener.Accept()
	dc.listener.Close()
	dc.listener = nil
	if err != nil {
		return nil, transportError(ctx, "accept data connection", err)
	}
	return conn, nil
}

// stream returns the connection bound to ctx, with the timeout applied
// to every read and write.
func (dc *dataChannel) stream(ctx context.Context) *deadlineConn {
	return &deadlineConn{Transport: dc.transport, ctx: ctx, timeout: dc.timeout}
}

// close releases everything the channel holds. Closing the connection is
// what signals end of file to the server on uploads. A second call is a
// no-op.
func (dc *dataChannel) close() error {
	var errs []error
	if dc.transport != nil {
		errs = append(errs, dc.transport.Close())
		dc.transport = nil
	}
	if dc.conn != nil {
		errs = append(errs, dc.conn.Close())
		dc.conn = nil
	}
	if dc.listener != nil {
		errs = append(errs, dc.listener.Close())
		dc.listener = nil
	}
	if len(errs) == 0 {
		return nil
	}
	dc.log.WithField("mode", dc.mode).Debug("ftp data channel closed")
	return errors.Join(errs...)
}
