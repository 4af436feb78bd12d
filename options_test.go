package ftps

import (
	"crypto/tls"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	var c Client
	opts := []Option{
		WithTimeout(5 * time.Second),
		WithActiveMode(),
		WithActiveListenAddr("10.0.0.5"),
		WithExtendedPassive(),
		WithTransferType(TypeASCII),
		WithDataProtection(DataProtectionPrivate),
		WithBandwidthLimit(4096),
		WithListingEncoding(charmap.ISO8859_1),
		WithExplicitTLS(nil),
		WithProgress(func(string, int64) {}),
	}
	for i, opt := range opts {
		if err := opt(&c); err != nil {
			t.Fatalf("option %d: %v", i, err)
		}
	}

	if c.timeout != 5*time.Second || !c.activeMode || c.activeListenIP != "10.0.0.5" || !c.epsv {
		t.Errorf("connection options not applied: %+v", c)
	}
	if c.transferType != TypeASCII || c.dataProtection != DataProtectionPrivate {
		t.Errorf("type/protection = %v/%v", c.transferType, c.dataProtection)
	}
	if c.limiter == nil || c.limiter.Rate() != 4096 {
		t.Errorf("limiter = %v", c.limiter)
	}
	if c.listingEncoding != charmap.ISO8859_1 {
		t.Errorf("listingEncoding = %v", c.listingEncoding)
	}
	if c.explicitTLS == nil {
		t.Error("WithExplicitTLS(nil) did not install a default config")
	}
	if c.progress == nil {
		t.Error("progress not set")
	}
}

func TestOptionValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{"negative timeout", WithTimeout(-time.Second), "timeout"},
		{"nil logger", WithLogger(nil), "logger"},
		{"nil dialer", WithDialer(nil), "dialer"},
		{"bad protection", WithDataProtection(DataProtection(9)), "protection"},
		{"bad listen addr", WithActiveListenAddr("example.com"), "IP address"},
		{"bad type", WithTransferType(TransferType(7)), "transfer type"},
		{"zero bandwidth", WithBandwidthLimit(0), "bandwidth"},
		{"nil encoding", WithListingEncoding(nil), "encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opt(&Client{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSecureConfig(t *testing.T) {
	t.Parallel()
	c := &Client{host: "ftp.example.com"}

	base := &tls.Config{MinVersion: tls.VersionTLS12}
	cfg := c.secureConfig(base)
	if cfg == base {
		t.Fatal("secureConfig returned the caller's config")
	}
	if cfg.ServerName != "ftp.example.com" {
		t.Errorf("ServerName = %q", cfg.ServerName)
	}
	if cfg.ClientSessionCache == nil {
		t.Error("no session cache installed")
	}
	if base.ServerName != "" || base.ClientSessionCache != nil {
		t.Error("caller's config was modified")
	}

	named := c.secureConfig(&tls.Config{ServerName: "other"})
	if named.ServerName != "other" {
		t.Errorf("explicit ServerName overridden: %q", named.ServerName)
	}
}

func TestDataProtectionString(t *testing.T) {
	t.Parallel()
	for p, want := range map[DataProtection]string{
		DataProtectionInherit: "inherit",
		DataProtectionClear:   "clear",
		DataProtectionPrivate: "private",
	} {
		if got := p.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
