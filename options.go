package ftps

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/gonzalop/ftps/internal/ratelimit"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
)

// Option is a functional option for configuring an FTP client.
type Option func(*Client) error

// Dialer opens network connections. *net.Dialer satisfies it, as do proxy
// dialers and test doubles.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DataProtection selects whether data connections are protected with TLS.
type DataProtection int

const (
	// DataProtectionInherit protects a data connection exactly when the
	// control connection is secured at the time the transfer starts. This
	// is the default.
	DataProtectionInherit DataProtection = iota

	// DataProtectionClear never protects data connections. On a secured
	// session the client sends PROT C.
	DataProtectionClear

	// DataProtectionPrivate always protects data connections. Transfers on
	// a plain session fail with ErrNotSecured.
	DataProtectionPrivate
)

func (p DataProtection) String() string {
	switch p {
	case DataProtectionClear:
		return "clear"
	case DataProtectionPrivate:
		return "private"
	default:
		return "inherit"
	}
}

// ProgressFunc observes a running transfer. transferred counts the bytes
// moved over the data connection so far. It must not call back into the
// Client.
type ProgressFunc func(path string, transferred int64)

// WithTimeout bounds every control exchange, data connection setup, and
// idle period on a data connection. A deadline on the operation's context
// applies as well; the earlier of the two wins.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables logging through the provided logger.
// All FTP commands and replies are logged at debug level, passwords
// excluded.
//
// Example:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	client, _ := ftps.Dial(ctx, "ftp.example.com:21", ftps.WithLogger(logger))
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		c.log = logger
		return nil
	}
}

// WithDialer sets the dialer used for the control connection and for
// passive data connections.
func WithDialer(dialer Dialer) Option {
	return func(c *Client) error {
		if dialer == nil {
			return errors.New("dialer must not be nil")
		}
		c.dialer = dialer
		return nil
	}
}

// WithExplicitTLS secures the control connection with AUTH TLS right after
// the greeting, before any credentials are sent.
//
// A ClientSessionCache is added if missing so that data connections can
// resume the control connection's TLS session, which many servers require.
// ServerName defaults to the host being dialled.
func WithExplicitTLS(config *tls.Config) Option {
	return func(c *Client) error {
		if config == nil {
			config = &tls.Config{}
		}
		c.explicitTLS = config
		return nil
	}
}

// WithDataProtection selects the data connection protection policy.
func WithDataProtection(p DataProtection) Option {
	return func(c *Client) error {
		if p < DataProtectionInherit || p > DataProtectionPrivate {
			return errors.New("unknown data protection level")
		}
		c.dataProtection = p
		return nil
	}
}

// WithActiveMode makes the client listen for data connections (PORT/EPRT)
// instead of connecting to the server (PASV/EPSV).
//
// Note: Most users should use passive mode (the default). Active mode does
// not work when the client is behind NAT.
func WithActiveMode() Option {
	return func(c *Client) error {
		c.activeMode = true
		return nil
	}
}

// WithActiveListenAddr sets the local IP used for active mode listeners.
// By default the local address of the control connection is used.
func WithActiveListenAddr(ip string) Option {
	return func(c *Client) error {
		if net.ParseIP(ip) == nil {
			return errors.New("active listen address must be an IP address")
		}
		c.activeListenIP = ip
		return nil
	}
}

// WithExtendedPassive uses EPSV for passive transfers even on IPv4. EPSV is
// always used on IPv6 control connections.
func WithExtendedPassive() Option {
	return func(c *Client) error {
		c.epsv = true
		return nil
	}
}

// WithTransferType sets the transfer type negotiated at login.
// The default is TypeBinary.
func WithTransferType(t TransferType) Option {
	return func(c *Client) error {
		if t != TypeBinary && t != TypeASCII {
			return errors.New("unknown transfer type")
		}
		c.transferType = t
		return nil
	}
}

// WithBandwidthLimit caps data connection throughput in bytes per second.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(c *Client) error {
		if bytesPerSecond <= 0 {
			return errors.New("bandwidth limit must be positive")
		}
		c.limiter = ratelimit.New(bytesPerSecond)
		return nil
	}
}

// WithListingEncoding decodes LIST and NLST output from the given character
// set instead of UTF-8.
func WithListingEncoding(enc encoding.Encoding) Option {
	return func(c *Client) error {
		if enc == nil {
			return errors.New("listing encoding must not be nil")
		}
		c.listingEncoding = enc
		return nil
	}
}

// WithProgress installs a progress observer for Retrieve and Store calls.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) error {
		c.progress = fn
		return nil
	}
}
