package ftps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/transform"
)

// List returns the entries of the directory at path, or of the working
// directory if path is empty. Each entry keeps the server's raw line;
// lines no known format matches come back with Type EntryUnknown.
//
// Servers that advertise MLST in FEAT are asked with MLSD, whose fact
// lines also carry the modification time. Others are asked with LIST.
//
// Supported LIST formats:
//
//   - Unix-style: perms links owner [group] size month day time/year name
//   - DOS/Windows: MM-DD-YY HH:MMAM/PM size|<DIR> filename
//   - EPLF: +facts\tname
//
// Example:
//
//	entries, err := client.List(ctx, "/pub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, entry := range entries {
//	    fmt.Printf("%s: %d bytes (%s)\n", entry.Name, entry.Size, entry.Type)
//	}
func (c *Client) List(ctx context.Context, path string) ([]*Entry, error) {
	if err := c.require("list", StateReady); err != nil {
		return nil, err
	}
	command, parse := "LIST", ParseEntry
	if c.HasFeature(ctx, "MLST") {
		command, parse = "MLSD", parseFacts
	}

	lines, err := c.listLines(ctx, command, path)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(lines))
	for _, line := range lines {
		if entry := parse(line); entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// NameList returns the names in the directory at path using NLST, one per
// line as sent by the server.
func (c *Client) NameList(ctx context.Context, path string) ([]string, error) {
	return c.listLines(ctx, "NLST", path)
}

// listLines runs a listing command and splits its output into lines. Both
// CRLF and bare LF terminators are accepted, and empty lines are dropped.
func (c *Client) listLines(ctx context.Context, command, path string) ([]string, error) {
	var lines []string
	err := c.transfer(ctx, transferRequest{
		command: command,
		path:    path,
		download: func(r io.Reader) error {
			if c.listingEncoding != nil {
				r = transform.NewReader(r, c.listingEncoding.NewDecoder())
			}
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 4096), 1<<20)
			for scanner.Scan() {
				line := strings.TrimRight(scanner.Text(), "\r")
				if line != "" {
					lines = append(lines, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read directory listing: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ChangeDir changes the working directory.
func (c *Client) ChangeDir(ctx context.Context, path string) error {
	return c.simple(ctx, "change directory", "CWD", path)
}

// ChangeDirUp changes to the parent of the working directory.
func (c *Client) ChangeDirUp(ctx context.Context) error {
	return c.simple(ctx, "change directory up", "CDUP")
}

// MakeDir creates a new directory.
func (c *Client) MakeDir(ctx context.Context, path string) error {
	return c.simple(ctx, "make directory", "MKD", path)
}

// RemoveDir removes a directory.
func (c *Client) RemoveDir(ctx context.Context, path string) error {
	return c.simple(ctx, "remove directory", "RMD", path)
}

// Delete deletes a file.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.simple(ctx, "delete", "DELE", path)
}

// simple runs a single command that must complete with 2xx in StateReady.
func (c *Client) simple(ctx context.Context, op, command string, args ...string) error {
	if err := c.require(op, StateReady); err != nil {
		return err
	}
	_, err := c.expect2xx(ctx, command, args...)
	return err
}

// CurrentDir returns the working directory.
func (c *Client) CurrentDir(ctx context.Context) (string, error) {
	if err := c.require("current directory", StateReady); err != nil {
		return "", err
	}
	reply, err := c.expect2xx(ctx, "PWD")
	if err != nil {
		return "", err
	}
	dir, ok := parseQuotedPath(reply.Message())
	if !ok {
		return "", fmt.Errorf("invalid PWD reply: %s", reply.Message())
	}
	return dir, nil
}

// parseQuotedPath extracts the path from a 257 reply such as
// `"/home/user" is the current directory`. A doubled quote inside the path
// stands for one quote character.
func parseQuotedPath(msg string) (string, bool) {
	start := strings.IndexByte(msg, '"')
	if start == -1 {
		return "", false
	}
	var b strings.Builder
	for i := start + 1; i < len(msg); i++ {
		if msg[i] != '"' {
			b.WriteByte(msg[i])
			continue
		}
		if i+1 < len(msg) && msg[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		return b.String(), true
	}
	return "", false
}

// Rename renames a file or directory.
func (c *Client) Rename(ctx context.Context, from, to string) error {
	if err := c.require("rename", StateReady); err != nil {
		return err
	}
	if _, err := c.expectCode(ctx, StatusRequestFilePending, "RNFR", from); err != nil {
		return err
	}
	_, err := c.expect2xx(ctx, "RNTO", to)
	return err
}

// Size returns the size of a file in bytes. Many servers only answer SIZE
// in TypeBinary.
func (c *Client) Size(ctx context.Context, path string) (int64, error) {
	if err := c.require("size", StateReady); err != nil {
		return 0, err
	}
	reply, err := c.expectCode(ctx, StatusFile, "SIZE", path)
	if err != nil {
		return 0, err
	}

	size, err := strconv.ParseInt(strings.TrimSpace(reply.Message()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid SIZE reply: %s", reply.Message())
	}
	return size, nil
}

// ModTime returns the modification time of a file using the MDTM command.
// This implements RFC 3659 - Extensions to FTP.
//
// Example:
//
//	modTime, err := client.ModTime(ctx, "file.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Last modified: %s\n", modTime)
func (c *Client) ModTime(ctx context.Context, path string) (time.Time, error) {
	if err := c.require("modification time", StateReady); err != nil {
		return time.Time{}, err
	}
	reply, err := c.expectCode(ctx, StatusFile, "MDTM", path)
	if err != nil {
		return time.Time{}, err
	}
	return parseMDTM(reply.Message())
}

// parseMDTM parses YYYYMMDDHHMMSS with optional fractional seconds.
// RFC 3659 Section 2.3: "Time values are always represented in UTC"
func parseMDTM(msg string) (time.Time, error) {
	timestamp := strings.TrimSpace(msg)
	whole, frac, _ := strings.Cut(timestamp, ".")
	if len(whole) != 14 {
		return time.Time{}, fmt.Errorf("invalid MDTM reply format: %s", msg)
	}
	t, err := time.Parse("20060102150405", whole)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse MDTM timestamp: %w", err)
	}
	if frac != "" {
		ns, err := strconv.ParseFloat("0."+frac, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse MDTM fraction: %w", err)
		}
		t = t.Add(time.Duration(ns * float64(time.Second)))
	}
	return t.UTC(), nil
}
