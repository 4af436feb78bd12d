package ftps

import (
	"testing"
	"time"
)

func TestParseQuotedPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg    string
		want   string
		wantOK bool
	}{
		{`"/home/user" is the current directory`, "/home/user", true},
		{`"/" is cwd`, "/", true},
		{`"/say ""hi""" created`, `/say "hi"`, true},
		{`"" empty`, "", true},
		{`no quotes at all`, "", false},
		{`"/unterminated`, "", false},
	}
	for _, tt := range tests {
		got, ok := parseQuotedPath(tt.msg)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseQuotedPath(%q) = %q, %v; want %q, %v", tt.msg, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseMDTM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg     string
		want    time.Time
		wantErr bool
	}{
		{"20240102030405", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{" 20240102030405 ", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"20240102030405.250", time.Date(2024, 1, 2, 3, 4, 5, 250e6, time.UTC), false},
		{"2024010203", time.Time{}, true},
		{"20241302030405", time.Time{}, true},
		{"20240102030405.x", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseMDTM(tt.msg)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMDTM(%q) error = %v, wantErr %v", tt.msg, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseMDTM(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestParseFeatures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		reply *Reply
		want  map[string]string
	}{
		{
			name: "RFC 2389 style",
			reply: &Reply{Code: 211, Lines: []string{
				"Features:", " AUTH TLS", " PBSZ", " mdtm", " REST STREAM", "End",
			}},
			want: map[string]string{"AUTH": "TLS", "PBSZ": "", "MDTM": "", "REST": "STREAM"},
		},
		{
			name: "code-prefixed lines",
			reply: &Reply{Code: 211, Lines: []string{
				"Features", "211-SIZE", "211-UTF8", "End",
			}},
			want: map[string]string{"SIZE": "", "UTF8": ""},
		},
		{
			name:  "single line",
			reply: &Reply{Code: 211, Lines: []string{"No features"}},
			want:  map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseFeatures(tt.reply)
			if len(got) != len(tt.want) {
				t.Fatalf("parseFeatures() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if gv, ok := got[k]; !ok || gv != v {
					t.Errorf("feature %s = %q (%v), want %q", k, gv, ok, v)
				}
			}
		})
	}
}
