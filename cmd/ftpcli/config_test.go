package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gonzalop/ftps"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ftpcli.yml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	p := writeConfig(t, `
address: ftp.example.com:21
user: alice
password: secret
explicit_tls: true
server_name: ftp.example.com
active: true
data_protection: private
transfer_type: ascii
timeout: 45s
bandwidth_limit: 1048576
listing_encoding: latin1
log_level: debug
`)
	c, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if c.Address != "ftp.example.com:21" || c.User != "alice" || c.Password != "secret" {
		t.Errorf("credentials = %q %q %q", c.Address, c.User, c.Password)
	}
	if !c.ExplicitTLS || !c.Active {
		t.Errorf("ExplicitTLS = %v, Active = %v, want both true", c.ExplicitTLS, c.Active)
	}
	if c.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", c.Timeout)
	}
	if c.BandwidthLimit != 1<<20 {
		t.Errorf("BandwidthLimit = %d", c.BandwidthLimit)
	}
	if got := c.tlsConfig().ServerName; got != "ftp.example.com" {
		t.Errorf("ServerName = %q", got)
	}

	opts, err := c.Options(logrus.New())
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	// logger, timeout, TLS, active, protection, type, bandwidth, encoding
	if len(opts) != 8 {
		t.Errorf("len(opts) = %d, want 8", len(opts))
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing address", "user: bob\n", "address is required"},
		{"unknown field", "address: a:21\nbogus: 1\n", "bogus"},
		{"bad protection", "address: a:21\ndata_protection: safe\n", "data_protection"},
		{"bad type", "address: a:21\ntransfer_type: ebcdic\n", "transfer_type"},
		{"bad encoding", "address: a:21\nlisting_encoding: klingon\n", "listing_encoding"},
		{"bad level", "address: a:21\nlog_level: loud\n", "loud"},
		{"negative timeout", "address: a:21\ntimeout: -1s\n", "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("LoadConfig succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestParseProtection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ftps.DataProtection
	}{
		{"", ftps.DataProtectionInherit},
		{"inherit", ftps.DataProtectionInherit},
		{"Clear", ftps.DataProtectionClear},
		{"C", ftps.DataProtectionClear},
		{"private", ftps.DataProtectionPrivate},
		{"p", ftps.DataProtectionPrivate},
	}
	for _, tt := range tests {
		got, err := parseProtection(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseProtection(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestEncodingByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wantNil bool
	}{
		{"", true},
		{"UTF-8", true},
		{"latin1", false},
		{"ISO_8859_15", false},
		{"cp1252", false},
		{"big5", false},
		{"utf-16le", false},
	}
	for _, tt := range tests {
		enc, err := encodingByName(tt.name)
		if err != nil {
			t.Errorf("encodingByName(%q): %v", tt.name, err)
			continue
		}
		if (enc == nil) != tt.wantNil {
			t.Errorf("encodingByName(%q) = %v, want nil=%v", tt.name, enc, tt.wantNil)
		}
	}

	enc, _ := encodingByName("latin1")
	if enc != charmap.ISO8859_1 {
		t.Errorf("latin1 = %v, want ISO8859_1", enc)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	if got := newLogger("").GetLevel(); got != logrus.WarnLevel {
		t.Errorf("default level = %v, want warning", got)
	}
	if got := newLogger("debug").GetLevel(); got != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
}
