package ftps

import (
	"strconv"
	"strings"
	"time"
)

// EntryType is the kind of a listing entry.
type EntryType int

const (
	EntryUnknown EntryType = iota
	EntryFile
	EntryDir
	EntryLink
)

func (t EntryType) String() string {
	switch t {
	case EntryFile:
		return "file"
	case EntryDir:
		return "dir"
	case EntryLink:
		return "link"
	default:
		return "unknown"
	}
}

// Entry is one line of a LIST or MLSD reply.
type Entry struct {
	Name    string
	Type    EntryType
	Size    int64
	ModTime time.Time // zero unless the server sent a modify fact
	Target  string    // symlink target, if any
	Raw     string    // the line as received
}

// parseFacts parses one MLSD line, "fact=value;... name" (RFC 3659).
// The cdir and pdir entries are dropped, as are blank lines. A line
// without the separating space comes back as EntryUnknown.
func parseFacts(line string) *Entry {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	facts, name, ok := strings.Cut(line, " ")
	if !ok || name == "" {
		return &Entry{Name: strings.TrimSpace(line), Raw: line}
	}

	entry := &Entry{Name: name, Raw: line}
	for _, fact := range strings.Split(facts, ";") {
		key, value, ok := strings.Cut(fact, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "type":
			switch v := strings.ToLower(value); {
			case v == "file":
				entry.Type = EntryFile
			case v == "dir":
				entry.Type = EntryDir
			case v == "cdir" || v == "pdir":
				return nil
			case strings.HasPrefix(v, "os.unix=slink") || strings.HasPrefix(v, "os.unix=symlink"):
				entry.Type = EntryLink
				_, entry.Target, _ = strings.Cut(value, ":")
			}
		case "size":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				entry.Size = n
			}
		case "modify":
			if t, err := parseMDTM(value); err == nil {
				entry.ModTime = t
			}
		}
	}
	return entry
}

// ParseEntry parses one LIST line. EPLF, DOS and Unix formats are tried in
// that order; a line none of them accepts is returned with Type
// EntryUnknown and Name set to the whole line. Blank lines yield nil.
func ParseEntry(line string) *Entry {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	for _, parse := range []func(string) (*Entry, bool){parseEPLF, parseDOS, parseUnix} {
		if entry, ok := parse(trimmed); ok {
			entry.Raw = line
			return entry
		}
	}
	return &Entry{Name: trimmed, Raw: line}
}

// parseEPLF parses an Easily Parsed LIST Format line.
// Example: "+i8388621.48594,m825718503,r,s280,\tdjb.html"
func parseEPLF(line string) (*Entry, bool) {
	if !strings.HasPrefix(line, "+") {
		return nil, false
	}
	facts, name, ok := strings.Cut(line[1:], "\t")
	if !ok {
		facts, name, ok = strings.Cut(line[1:], " ")
	}
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, false
	}

	entry := &Entry{Name: name, Type: EntryFile}
	for fact := range strings.SplitSeq(facts, ",") {
		switch {
		case fact == "/":
			entry.Type = EntryDir
		case strings.HasPrefix(fact, "s"):
			if size, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				entry.Size = size
			}
		}
	}
	return entry, true
}

// parseDOS parses a DOS/Windows listing line.
// Example: "12-14-23  12:22PM           1037794 large-document.pdf"
func parseDOS(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 || !isDOSDate(fields[0]) {
		return nil, false
	}
	name := strings.Join(fields[3:], " ")
	if fields[2] == "<DIR>" {
		return &Entry{Name: name, Type: EntryDir}, true
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, false
	}
	return &Entry{Name: name, Type: EntryFile, Size: size}, true
}

// isDOSDate accepts MM-DD-YY, MM-DD-YYYY and the same with slashes.
func isDOSDate(s string) bool {
	sep := "-"
	if !strings.Contains(s, sep) {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return false
	}
	for i, part := range parts {
		if i < 2 && (len(part) < 1 || len(part) > 2) {
			return false
		}
		if i == 2 && len(part) != 2 && len(part) != 4 {
			return false
		}
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}
	return true
}

// parseUnix parses an ls -l style line, with or without the group column.
// Example: "drwxr-xr-x  2 ftp ftp 4096 Jan 01 12:00 pub"
func parseUnix(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, false
	}

	entry := &Entry{}
	switch perms := fields[0]; perms[0] {
	case 'd':
		entry.Type = EntryDir
	case 'l':
		entry.Type = EntryLink
	case '-', 'b', 'c', 'p', 's':
		entry.Type = EntryFile
	default:
		return nil, false
	}

	// 9-field layout has the size in column 4, 8-field (no group) in 3.
	sizeIdx, nameIdx := 4, 8
	size, err := strconv.ParseInt(fields[sizeIdx], 10, 64)
	if err != nil || len(fields) < 9 {
		sizeIdx, nameIdx = 3, 7
		size, err = strconv.ParseInt(fields[sizeIdx], 10, 64)
		if err != nil {
			return nil, false
		}
	}
	entry.Size = size

	// Rejoin from the raw line so runs of spaces in names survive.
	name := nthFieldOnward(line, nameIdx)
	if entry.Type == EntryLink {
		if before, after, ok := strings.Cut(name, " -> "); ok {
			name, entry.Target = before, after
		}
	}
	entry.Name = name
	return entry, true
}

// nthFieldOnward returns line from the start of its n-th whitespace
// separated field.
func nthFieldOnward(line string, n int) string {
	i := 0
	for range n {
		i += len(line[i:]) - len(strings.TrimLeft(line[i:], " \t"))
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
	}
	return strings.TrimLeft(line[i:], " \t")
}
