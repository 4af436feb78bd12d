package ftps

import (
	"testing"
	"time"
)

func TestParseEntry(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		line  string
		want  Entry
		isNil bool
	}{
		{
			name: "unix file",
			line: "-rw-r--r--   1 ftp ftp    1024 Jan 01 12:00 file.txt",
			want: Entry{Name: "file.txt", Type: EntryFile, Size: 1024},
		},
		{
			name: "unix directory",
			line: "drwxr-xr-x  2 ftp ftp 4096 Jan 01 12:00 pub",
			want: Entry{Name: "pub", Type: EntryDir, Size: 4096},
		},
		{
			name: "unix symlink",
			line: "lrwxrwxrwx  1 ftp ftp 7 Jan 01 12:00 latest -> v1.2.3",
			want: Entry{Name: "latest", Type: EntryLink, Size: 7, Target: "v1.2.3"},
		},
		{
			name: "unix without group",
			line: "-rw-r--r--   1 ftp    512 Mar 03  2023 notes",
			want: Entry{Name: "notes", Type: EntryFile, Size: 512},
		},
		{
			name: "unix name with spaces",
			line: "-rw-r--r--   1 ftp ftp      10 Jan 01 12:00 my  file.txt",
			want: Entry{Name: "my  file.txt", Type: EntryFile, Size: 10},
		},
		{
			name: "dos file",
			line: "12-14-23  12:22PM           1037794 large-document.pdf",
			want: Entry{Name: "large-document.pdf", Type: EntryFile, Size: 1037794},
		},
		{
			name: "dos directory",
			line: "01/02/2024  09:00AM       <DIR>          Program Files",
			want: Entry{Name: "Program Files", Type: EntryDir},
		},
		{
			name: "eplf file",
			line: "+i8388621.48594,m825718503,r,s280,\tdjb.html",
			want: Entry{Name: "djb.html", Type: EntryFile, Size: 280},
		},
		{
			name: "eplf directory",
			line: "+i8388621.50690,m824255907,/,\t514",
			want: Entry{Name: "514", Type: EntryDir},
		},
		{
			name: "unrecognised",
			line: "total 42",
			want: Entry{Name: "total 42", Type: EntryUnknown},
		},
		{
			name:  "blank",
			line:  "   ",
			isNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseEntry(tt.line)
			if tt.isNil {
				if got != nil {
					t.Fatalf("ParseEntry(%q) = %+v, want nil", tt.line, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseEntry(%q) = nil", tt.line)
			}
			if got.Raw != tt.line {
				t.Errorf("Raw = %q, want the input line", got.Raw)
			}
			got.Raw = ""
			if *got != tt.want {
				t.Errorf("ParseEntry(%q) = %+v, want %+v", tt.line, *got, tt.want)
			}
		})
	}
}

func TestParseFacts(t *testing.T) {
	t.Parallel()
	modified := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		line  string
		want  Entry
		isNil bool
	}{
		{
			name: "file",
			line: "type=file;size=1024;modify=20240301123000; report.csv",
			want: Entry{Name: "report.csv", Type: EntryFile, Size: 1024, ModTime: modified},
		},
		{
			name: "directory with upper-case facts",
			line: "Type=DIR;Modify=20240301123000.5; pub",
			want: Entry{Name: "pub", Type: EntryDir, ModTime: modified.Add(500 * time.Millisecond)},
		},
		{
			name: "name with spaces",
			line: "type=file;size=3; my file.txt",
			want: Entry{Name: "my file.txt", Type: EntryFile, Size: 3},
		},
		{
			name: "symlink",
			line: "type=OS.unix=slink:/srv/v1.2.3; latest",
			want: Entry{Name: "latest", Type: EntryLink, Target: "/srv/v1.2.3"},
		},
		{
			name: "unknown type and bad size",
			line: "type=OS.unix=chr;size=x; tty",
			want: Entry{Name: "tty", Type: EntryUnknown},
		},
		{
			name: "no separator",
			line: "type=file;size=3;",
			want: Entry{Name: "type=file;size=3;", Type: EntryUnknown},
		},
		{name: "current directory", line: "type=cdir;modify=20240301123000; /pub", isNil: true},
		{name: "parent directory", line: "type=pdir; ..", isNil: true},
		{name: "blank", line: "  ", isNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseFacts(tt.line)
			if tt.isNil {
				if got != nil {
					t.Fatalf("parseFacts(%q) = %+v, want nil", tt.line, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parseFacts(%q) = nil", tt.line)
			}
			if got.Raw != tt.line {
				t.Errorf("Raw = %q, want the input line", got.Raw)
			}
			if !got.ModTime.Equal(tt.want.ModTime) {
				t.Errorf("ModTime = %v, want %v", got.ModTime, tt.want.ModTime)
			}
			got.Raw, got.ModTime, tt.want.ModTime = "", time.Time{}, time.Time{}
			if *got != tt.want {
				t.Errorf("parseFacts(%q) = %+v, want %+v", tt.line, *got, tt.want)
			}
		})
	}
}

func TestEntryTypeString(t *testing.T) {
	t.Parallel()
	tests := map[EntryType]string{
		EntryUnknown: "unknown",
		EntryFile:    "file",
		EntryDir:     "dir",
		EntryLink:    "link",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}

func FuzzParseEntry(f *testing.F) {
	f.Add("-rw-r--r--   1 ftp ftp    1024 Jan 01 12:00 file.txt")
	f.Add("12-14-23  12:22PM  <DIR>  dir")
	f.Add("+/,\tx")
	f.Add("l 1 2 3 4 5 6 7 8 -> ")
	f.Add("type=OS.unix=slink:;modify=1; x")
	f.Fuzz(func(t *testing.T, line string) {
		_ = ParseEntry(line)
		_ = parseFacts(line)
	})
}
