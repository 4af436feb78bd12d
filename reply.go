package ftps

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReplyClass is the coarse outcome category of a reply, taken from the
// first digit of its code.
type ReplyClass int

const (
	// ClassInvalid is returned for codes outside 100-599.
	ClassInvalid ReplyClass = iota
	// ClassPreliminary (1xx): action started, expect another reply.
	ClassPreliminary
	// ClassCompletion (2xx): action completed successfully.
	ClassCompletion
	// ClassIntermediate (3xx): command accepted, more information needed.
	ClassIntermediate
	// ClassTransientNegative (4xx): not performed, may succeed if retried.
	ClassTransientNegative
	// ClassPermanentNegative (5xx): not performed, retrying will not help.
	ClassPermanentNegative
)

func (c ReplyClass) String() string {
	switch c {
	case ClassPreliminary:
		return "positive-preliminary"
	case ClassCompletion:
		return "positive-completion"
	case ClassIntermediate:
		return "positive-intermediate"
	case ClassTransientNegative:
		return "transient-negative"
	case ClassPermanentNegative:
		return "permanent-negative"
	default:
		return "invalid"
	}
}

// ClassOf classifies a reply code by its first digit.
func ClassOf(code int) ReplyClass {
	if code < 100 || code > 599 {
		return ClassInvalid
	}
	return ReplyClass(code / 100)
}

// Reply is a complete server reply. A Reply is never partial: the parser only
// produces one after the closing line of a multi-line reply has been seen.
type Reply struct {
	// Code is the three-digit reply code (e.g. 220, 550).
	Code int

	// Lines holds the message text of every line with the code and
	// separator stripped from the first and the closing line. Intermediate
	// lines of a multi-line reply are kept verbatim.
	Lines []string
}

// Class returns the reply class derived from the code.
func (r *Reply) Class() ReplyClass {
	return ClassOf(r.Code)
}

// Message returns all message lines joined with newlines.
func (r *Reply) Message() string {
	return strings.Join(r.Lines, "\n")
}

// String formats the reply the way it would appear on a single wire line.
func (r *Reply) String() string {
	return fmt.Sprintf("%03d %s", r.Code, r.Message())
}

// Is1xx returns true if the reply is positive preliminary.
func (r *Reply) Is1xx() bool { return r.Class() == ClassPreliminary }

// Is2xx returns true if the reply is positive completion.
func (r *Reply) Is2xx() bool { return r.Class() == ClassCompletion }

// Is3xx returns true if the reply is positive intermediate.
func (r *Reply) Is3xx() bool { return r.Class() == ClassIntermediate }

// Is4xx returns true if the reply is transient negative.
func (r *Reply) Is4xx() bool { return r.Class() == ClassTransientNegative }

// Is5xx returns true if the reply is permanent negative.
func (r *Reply) Is5xx() bool { return r.Class() == ClassPermanentNegative }

// replyParser assembles Replies one line at a time.
//
// Single-line format: "220 Welcome"
// Multi-line format:
//
//	"220-Welcome to FTP"
//	"any text, even 123 looking like a code"
//	"220 Ready"
//
// A multi-line reply ends only at a line starting with the opening code
// followed by a space.
type replyParser struct {
	open  bool
	code  int
	lines []string
}

// feed consumes one line (without its terminator). It returns a Reply when
// the line completes one, nil when more lines are needed, or a framing error.
func (p *replyParser) feed(line string) (*Reply, error) {
	if p.open {
		if code, sep, ok := splitCode(line); ok && code == p.code && sep == ' ' {
			lines := append(p.lines, replyText(line))
			p.reset()
			return &Reply{Code: code, Lines: lines}, nil
		}
		p.lines = append(p.lines, line)
		return nil, nil
	}

	code, sep, ok := splitCode(line)
	if !ok {
		return nil, &FramingError{Line: line, Reason: "reply does not start with a three-digit code"}
	}
	switch sep {
	case ' ':
		return &Reply{Code: code, Lines: []string{replyText(line)}}, nil
	case '-':
		p.open = true
		p.code = code
		p.lines = []string{replyText(line)}
		return nil, nil
	default:
		return nil, &FramingError{Line: line, Reason: "invalid separator after reply code"}
	}
}

// pending reports whether a multi-line reply is in progress.
func (p *replyParser) pending() bool {
	return p.open
}

func (p *replyParser) reset() {
	p.open = false
	p.code = 0
	p.lines = nil
}

// splitCode extracts the code and separator from the start of a reply line.
// A bare "220" is accepted as "220 " since some servers omit trailing text.
func splitCode(line string) (code int, sep byte, ok bool) {
	if len(line) < 3 {
		return 0, 0, false
	}
	for i := range 3 {
		if line[i] < '0' || line[i] > '9' {
			return 0, 0, false
		}
	}
	code = int(line[0]-'0')*100 + int(line[1]-'0')*10 + int(line[2]-'0')
	if ClassOf(code) == ClassInvalid {
		return 0, 0, false
	}
	if len(line) == 3 {
		return code, ' ', true
	}
	return code, line[3], true
}

func replyText(line string) string {
	if len(line) <= 4 {
		return ""
	}
	return line[4:]
}

// maxReplyLine bounds a single reply line, matching the listing line cap.
const maxReplyLine = 1 << 20

// readLine reads one line of at most maxReplyLine bytes, newline included.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > maxReplyLine {
			return "", &FramingError{Line: string(buf[:min(len(buf), 64)]), Reason: "reply line too long"}
		}
		buf = append(buf, chunk...)
		if err == bufio.ErrBufferFull {
			continue
		}
		return string(buf), err
	}
}

// readReply reads lines from r until a complete Reply has been assembled.
func readReply(r *bufio.Reader) (*Reply, error) {
	var p replyParser
	for {
		line, err := readLine(r)
		if err != nil {
			if err == io.EOF {
				if p.pending() || line != "" {
					return nil, &FramingError{Line: line, Reason: "connection closed inside a reply"}
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		reply, err := p.feed(strings.TrimRight(line, "\r\n"))
		if err != nil {
			return nil, err
		}
		if reply != nil {
			return reply, nil
		}
	}
}
