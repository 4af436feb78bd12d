package ftps

import (
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestParsePASV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     string
		want    string
		wantErr bool
	}{
		{"standard", "Entering Passive Mode (192,168,1,1,195,149).", "192.168.1.1:50069", false},
		{"no parentheses", "Entering Passive Mode 127,0,0,1,19,136", "127.0.0.1:5000", false},
		{"octet too large", "Entering Passive Mode (300,0,0,1,1,1)", "", true},
		{"too few numbers", "Entering Passive Mode (127,0,0,1,19)", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parsePASV(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePASV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parsePASV() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseEPSV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg     string
		want    string
		wantErr bool
	}{
		{"Entering Extended Passive Mode (|||6446|)", "6446", false},
		{"Entering Extended Passive Mode (|||0|)", "", true},
		{"Entering Extended Passive Mode (|||70000|)", "", true},
		{"Entering Extended Passive Mode", "", true},
	}
	for _, tt := range tests {
		got, err := parseEPSV(tt.msg)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseEPSV(%q) = %q, %v", tt.msg, got, err)
		}
	}
}

func TestFormatPORT(t *testing.T) {
	t.Parallel()
	got, err := formatPORT("192.168.1.100:50000")
	if err != nil || got != "192,168,1,100,195,80" {
		t.Errorf("formatPORT = %q, %v", got, err)
	}
	if _, err := formatPORT("[::1]:21"); err == nil {
		t.Error("formatPORT accepted an IPv6 address")
	}
	if _, err := formatPORT("nonsense"); err == nil {
		t.Error("formatPORT accepted a malformed address")
	}
}

func TestFormatEPRT(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want string
	}{
		{"10.0.0.1:2000", "|1|10.0.0.1|2000|"},
		{"[::1]:2000", "|2|::1|2000|"},
	}
	for _, tt := range tests {
		got, err := formatEPRT(tt.addr)
		if err != nil || got != tt.want {
			t.Errorf("formatEPRT(%q) = %q, %v; want %q", tt.addr, got, err, tt.want)
		}
	}
}

func TestResolveDataAddr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		pasvAddr    string
		controlHost string
		wantAddr    string
	}{
		{
			name:        "normal address",
			pasvAddr:    "192.168.1.5:12345",
			controlHost: "10.0.0.1",
			wantAddr:    "192.168.1.5:12345",
		},
		{
			name:        "zero address",
			pasvAddr:    "0.0.0.0:12345",
			controlHost: "10.0.0.1",
			wantAddr:    "10.0.0.1:12345",
		},
		{
			name:        "invalid address",
			pasvAddr:    "invalid",
			controlHost: "10.0.0.1",
			wantAddr:    "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := resolveDataAddr(tt.pasvAddr, tt.controlHost); got != tt.wantAddr {
				t.Errorf("resolveDataAddr() = %v, want %v", got, tt.wantAddr)
			}
		})
	}
}

func TestDataChannelCloseTwice(t *testing.T) {
	t.Parallel()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	local, remote := net.Pipe()
	defer remote.Close()
	dc := &dataChannel{mode: dataPassive, conn: local, log: logger}

	if err := dc.close(); err != nil {
		t.Fatalf("first close() error = %v", err)
	}
	if err := dc.close(); err != nil {
		t.Fatalf("second close() error = %v", err)
	}
	if got := len(hook.AllEntries()); got != 1 {
		t.Errorf("close logged %d entries, want 1", got)
	}
}
