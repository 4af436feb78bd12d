package ftps

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"golang.org/x/text/transform"
)

func TestCRLFEncoder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"bare LF", "a\nb\n", "a\r\nb\r\n"},
		{"already CRLF", "a\r\nb\r\n", "a\r\nb\r\n"},
		{"lone CR kept", "a\rb\n", "a\rb\r\n"},
		{"mixed", "one\r\ntwo\nthree", "one\r\ntwo\r\nthree"},
		{"blank lines", "\n\n", "\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _, err := transform.String(newCRLFEncoder(), tt.in)
			if err != nil || got != tt.want {
				t.Errorf("encode(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestCRLFDecoder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"CRLF", "a\r\nb\r\n", "a\nb\n"},
		{"bare LF kept", "a\nb", "a\nb"},
		{"lone CR kept", "a\rb", "a\rb"},
		{"trailing CR", "a\r", "a\r"},
		{"CR CR LF", "a\r\r\n", "a\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _, err := transform.String(newCRLFDecoder(), tt.in)
			if err != nil || got != tt.want {
				t.Errorf("decode(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

// TestCRLFDecoderSplitPairs feeds one byte at a time so that every CRLF pair
// is split across reads.
func TestCRLFDecoderSplitPairs(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("line\r\n", 100)
	r := transform.NewReader(iotest.OneByteReader(strings.NewReader(in)), newCRLFDecoder())
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if want := strings.Repeat("line\n", 100); string(got) != want {
		t.Errorf("decoded %d bytes, want %d", len(got), len(want))
	}
}

func TestCRLFEncoderSplitWrites(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, newCRLFEncoder())
	for _, chunk := range []string{"a\r", "\nb", "\n"} {
		if _, err := io.WriteString(w, chunk); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "a\r\nb\r\n" {
		t.Errorf("encoded %q", got)
	}
}

func TestTransferTypeString(t *testing.T) {
	t.Parallel()
	if TypeBinary.String() != "binary" || TypeBinary.code() != "I" {
		t.Errorf("binary = %q/%q", TypeBinary, TypeBinary.code())
	}
	if TypeASCII.String() != "ascii" || TypeASCII.code() != "A" {
		t.Errorf("ascii = %q/%q", TypeASCII, TypeASCII.code())
	}
}
