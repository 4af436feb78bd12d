package ftptest

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// dataWait bounds accepting, dialling and handshaking data connections.
const dataWait = 10 * time.Second

// Session is one client connection. Handlers receive it to script replies
// and open data connections.
type Session struct {
	server *Server
	log    logrus.FieldLogger

	mu     sync.Mutex
	raw    net.Conn // plain socket
	conn   net.Conn // raw, or TLS over raw
	reader *bufio.Reader

	secured    bool
	loggedIn   bool
	user       string
	cwd        string
	typ        string
	prot       string
	pbsz       bool
	rest       int64
	renameFrom string

	pasv       net.Listener
	activeAddr string
}

func newSession(server *Server, conn net.Conn) *Session {
	return &Session{
		server: server,
		log:    server.Logger.WithField("remote", conn.RemoteAddr().String()),
		raw:    conn,
		conn:   conn,
		reader: bufio.NewReader(conn),
		cwd:    "/",
		typ:    "I",
		prot:   "C",
	}
}

// commandHandlers maps FTP commands to their handler functions.
// USER, PASS, QUIT, NOOP and the security commands work without login.
var commandHandlers = map[string]func(*Session, string){
	"USER": (*Session).handleUSER,
	"PASS": (*Session).handlePASS,
	"QUIT": (*Session).handleQUIT,
	"NOOP": (*Session).handleNOOP,
	"FEAT": (*Session).handleFEAT,
	"SYST": (*Session).handleSYST,

	"AUTH": (*Session).handleAUTH,
	"PBSZ": (*Session).handlePBSZ,
	"PROT": (*Session).handlePROT,
	"CCC":  (*Session).handleCCC,

	"TYPE": (*Session).handleTYPE,
	"PASV": (*Session).handlePASV,
	"EPSV": (*Session).handleEPSV,
	"PORT": (*Session).handlePORT,
	"EPRT": (*Session).handleEPRT,
	"REST": (*Session).handleREST,

	"RETR": (*Session).handleRETR,
	"STOR": (*Session).handleSTOR,
	"APPE": (*Session).handleAPPE,
	"LIST": (*Session).handleLIST,
	"NLST": (*Session).handleNLST,
	"MLSD": (*Session).handleMLSD,

	"CWD":  (*Session).handleCWD,
	"CDUP": (*Session).handleCDUP,
	"PWD":  (*Session).handlePWD,
	"MKD":  (*Session).handleMKD,
	"RMD":  (*Session).handleRMD,
	"DELE": (*Session).handleDELE,
	"RNFR": (*Session).handleRNFR,
	"RNTO": (*Session).handleRNTO,
	"SIZE": (*Session).handleSIZE,
	"MDTM": (*Session).handleMDTM,
}

var noLogin = map[string]bool{
	"USER": true, "PASS": true, "QUIT": true, "NOOP": true, "FEAT": true,
	"AUTH": true, "PBSZ": true, "PROT": true, "CCC": true,
}

func (s *Session) serve() {
	defer s.Close()

	s.Reply(220, "%s", s.server.Welcome)

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.WithError(err).Debug("ftptest read error")
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.server.record(line)
		s.log.WithField("command", line).Debug("ftptest command")

		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		if h, ok := s.server.Handlers[verb]; ok {
			h(s, arg)
		} else if h, ok := commandHandlers[verb]; ok {
			if !s.loggedIn && !noLogin[verb] {
				s.Reply(530, "Not logged in.")
			} else {
				h(s, arg)
			}
		} else {
			s.Reply(502, "Command not implemented.")
		}

		if s.isClosed() {
			return
		}
	}
}

// Reply sends a single-line reply.
func (s *Session) Reply(code int, format string, args ...any) {
	s.write(fmt.Sprintf("%03d %s\r\n", code, fmt.Sprintf(format, args...)))
}

// ReplyLines sends a multi-line reply. The first line opens with "code-",
// the last closes with "code ", and the lines between are sent verbatim.
func (s *Session) ReplyLines(code int, lines ...string) {
	if len(lines) < 2 {
		s.Reply(code, "%s", strings.Join(lines, ""))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%03d-%s\r\n", code, lines[0])
	for _, l := range lines[1 : len(lines)-1] {
		b.WriteString(l + "\r\n")
	}
	fmt.Fprintf(&b, "%03d %s\r\n", code, lines[len(lines)-1])
	s.write(b.String())
}

// WriteRaw sends bytes on the control connection unchanged.
func (s *Session) WriteRaw(data string) {
	s.write(data)
}

func (s *Session) write(data string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(dataWait))
	_, _ = io.WriteString(conn, data)
}

// Close drops the control connection and any pending data listener.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw != nil {
		s.raw.Close()
		s.raw, s.conn = nil, nil
	}
	if s.pasv != nil {
		s.pasv.Close()
		s.pasv = nil
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw == nil
}

// Secured reports whether the control connection is under TLS.
func (s *Session) Secured() bool {
	return s.secured
}

// Protected reports whether data connections are protected (PROT P).
func (s *Session) Protected() bool {
	return s.prot == "P"
}

// OpenData establishes the data connection announced by the last PASV,
// EPSV, PORT or EPRT, and runs the TLS handshake if PROT P is in effect.
// Call it after sending the 150 reply.
func (s *Session) OpenData() (net.Conn, error) {
	var conn net.Conn
	var err error
	switch {
	case s.pasv != nil:
		if l, ok := s.pasv.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(dataWait))
		}
		conn, err = s.pasv.Accept()
		s.pasv.Close()
		s.pasv = nil
	case s.activeAddr != "":
		conn, err = net.DialTimeout("tcp", s.activeAddr, dataWait)
		s.activeAddr = ""
	default:
		return nil, errors.New("no data connection negotiated")
	}
	if err != nil {
		return nil, err
	}

	if s.prot == "P" {
		tlsConn := tls.Server(conn, s.server.TLSConfig)
		_ = conn.SetDeadline(time.Now().Add(dataWait))
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		_ = conn.SetDeadline(time.Time{})
		conn = tlsConn
	}
	return conn, nil
}

func (s *Session) resolve(p string) string {
	if p == "" {
		return s.cwd
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(s.cwd, p)
	}
	return path.Clean(p)
}

func (s *Session) handleUSER(arg string) {
	s.user = arg
	s.loggedIn = false
	s.Reply(331, "User name okay, need password.")
}

func (s *Session) handlePASS(arg string) {
	if s.user == "" {
		s.Reply(503, "Login with USER first.")
		return
	}
	if len(s.server.Users) > 0 {
		if want, ok := s.server.Users[s.user]; !ok || want != arg {
			s.Reply(530, "Login incorrect.")
			return
		}
	}
	s.loggedIn = true
	s.Reply(230, "User logged in, proceed.")
}

func (s *Session) handleQUIT(string) {
	s.Reply(221, "Goodbye.")
	s.Close()
}

func (s *Session) handleNOOP(string) {
	s.Reply(200, "NOOP ok.")
}

func (s *Session) handleFEAT(string) {
	lines := []string{"Features:"}
	if s.server.TLSConfig != nil {
		lines = append(lines, " AUTH TLS", " PBSZ", " PROT", " CCC")
	}
	lines = append(lines, " EPSV", " MDTM", " REST STREAM", " SIZE")
	if s.server.MachineListings {
		lines = append(lines, " MLST type*;size*;modify*;")
	}
	lines = append(lines, "End")
	s.ReplyLines(211, lines...)
}

func (s *Session) handleSYST(string) {
	s.Reply(215, "UNIX Type: L8")
}

// handleAUTH upgrades the control connection (RFC 4217).
func (s *Session) handleAUTH(arg string) {
	if s.server.TLSConfig == nil {
		s.Reply(502, "TLS not configured.")
		return
	}
	if strings.ToUpper(arg) != "TLS" {
		s.Reply(504, "Only AUTH TLS is supported.")
		return
	}
	if s.secured {
		s.Reply(503, "Already secured.")
		return
	}

	s.Reply(234, "AUTH TLS successful.")

	tlsConn := tls.Server(s.raw, s.server.TLSConfig)
	_ = s.raw.SetDeadline(time.Now().Add(dataWait))
	if err := tlsConn.Handshake(); err != nil {
		s.log.WithError(err).Debug("ftptest control handshake failed")
		s.Close()
		return
	}
	_ = s.raw.SetDeadline(time.Time{})

	s.mu.Lock()
	s.conn = tlsConn
	s.reader = bufio.NewReader(tlsConn)
	s.mu.Unlock()
	s.secured = true
	s.prot = "C"
	s.pbsz = false
}

func (s *Session) handlePBSZ(string) {
	if !s.secured {
		s.Reply(503, "PBSZ requires AUTH first.")
		return
	}
	s.pbsz = true
	s.Reply(200, "PBSZ=0")
}

func (s *Session) handlePROT(arg string) {
	if !s.secured || !s.pbsz {
		s.Reply(503, "PROT requires PBSZ first.")
		return
	}
	switch strings.ToUpper(arg) {
	case "P", "C":
		s.prot = strings.ToUpper(arg)
		s.Reply(200, "PROT %s OK.", s.prot)
	default:
		s.Reply(536, "PROT level not supported.")
	}
}

// handleCCC drops TLS on the control connection. No close_notify is sent;
// both sides continue on the raw socket after the reply.
func (s *Session) handleCCC(string) {
	if !s.secured {
		s.Reply(533, "Control connection not protected.")
		return
	}
	s.Reply(200, "CCC OK, continuing in the clear.")

	s.mu.Lock()
	s.conn = s.raw
	s.reader = bufio.NewReader(s.raw)
	s.mu.Unlock()
	s.secured = false
}

func (s *Session) handleTYPE(arg string) {
	switch t := strings.ToUpper(strings.TrimSpace(arg)); t {
	case "A", "A N", "I", "L 8":
		s.typ = t[:1]
		s.Reply(200, "Type set to %s.", s.typ)
	default:
		s.Reply(504, "Type not supported.")
	}
}

func (s *Session) listenData() (net.Listener, bool) {
	if s.pasv != nil {
		s.pasv.Close()
		s.pasv = nil
	}
	s.activeAddr = ""
	host, _, _ := net.SplitHostPort(s.raw.LocalAddr().String())
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		s.Reply(425, "Can't open passive connection.")
		return nil, false
	}
	s.pasv = l
	return l, true
}

func (s *Session) handlePASV(string) {
	l, ok := s.listenData()
	if !ok {
		return
	}
	addr := l.Addr().(*net.TCPAddr)
	ip := addr.IP.To4()
	if ip == nil {
		s.Reply(522, "Use EPSV.")
		return
	}
	s.Reply(227, "Entering Passive Mode (%d,%d,%d,%d,%d,%d).",
		ip[0], ip[1], ip[2], ip[3], addr.Port>>8, addr.Port&0xff)
}

func (s *Session) handleEPSV(string) {
	l, ok := s.listenData()
	if !ok {
		return
	}
	s.Reply(229, "Entering Extended Passive Mode (|||%d|)", l.Addr().(*net.TCPAddr).Port)
}

func (s *Session) handlePORT(arg string) {
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		s.Reply(501, "Syntax error in PORT.")
		return
	}
	var n [6]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			s.Reply(501, "Syntax error in PORT.")
			return
		}
		n[i] = v
	}
	s.setActive(net.JoinHostPort(fmt.Sprintf("%d.%d.%d.%d", n[0], n[1], n[2], n[3]), strconv.Itoa(n[4]<<8|n[5])))
	s.Reply(200, "PORT command successful.")
}

func (s *Session) handleEPRT(arg string) {
	if len(arg) < 2 {
		s.Reply(501, "Syntax error in EPRT.")
		return
	}
	fields := strings.Split(arg[1:len(arg)-1], arg[:1])
	if len(fields) != 3 || net.ParseIP(fields[1]) == nil {
		s.Reply(501, "Syntax error in EPRT.")
		return
	}
	s.setActive(net.JoinHostPort(fields[1], fields[2]))
	s.Reply(200, "EPRT command successful.")
}

func (s *Session) setActive(addr string) {
	if s.pasv != nil {
		s.pasv.Close()
		s.pasv = nil
	}
	s.activeAddr = addr
}

func (s *Session) handleREST(arg string) {
	offset, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || offset < 0 {
		s.Reply(501, "Invalid restart offset.")
		return
	}
	s.rest = offset
	s.Reply(350, "Restarting at %d.", offset)
}

func (s *Session) handleRETR(arg string) {
	p := s.resolve(arg)
	offset := s.rest
	s.rest = 0

	data, ok := s.server.File(p)
	if !ok {
		s.Reply(550, "File not found.")
		return
	}
	if offset > int64(len(data)) {
		s.Reply(554, "Restart offset beyond end of file.")
		return
	}

	s.Reply(150, "Opening data connection for %s (%d bytes).", path.Base(p), len(data))
	conn, err := s.OpenData()
	if err != nil {
		s.Reply(425, "Can't open data connection.")
		return
	}
	_, err = conn.Write(data[offset:])
	cerr := conn.Close()
	if err != nil || cerr != nil {
		s.Reply(426, "Connection closed; transfer aborted.")
		return
	}
	s.Reply(226, "Transfer complete.")
}

func (s *Session) handleSTOR(arg string) {
	s.store(arg, false)
}

func (s *Session) handleAPPE(arg string) {
	s.store(arg, true)
}

func (s *Session) store(arg string, appendMode bool) {
	p := s.resolve(arg)
	offset := s.rest
	s.rest = 0

	if !s.server.HasDir(path.Dir(p)) {
		s.Reply(553, "No such directory.")
		return
	}

	s.Reply(150, "Ok to send data.")
	conn, err := s.OpenData()
	if err != nil {
		s.Reply(425, "Can't open data connection.")
		return
	}
	data, err := io.ReadAll(conn)
	conn.Close()
	if err != nil {
		s.Reply(426, "Connection closed; transfer aborted.")
		return
	}

	existing, _ := s.server.File(p)
	switch {
	case appendMode:
		data = append(existing, data...)
	case offset > 0:
		if offset > int64(len(existing)) {
			offset = int64(len(existing))
		}
		data = append(existing[:offset], data...)
	}
	s.server.AddFile(p, data)
	s.Reply(226, "Transfer complete.")
}

func (s *Session) handleLIST(arg string) {
	s.list(arg, func(name string, size int, dir bool) string {
		perms, kind := "-rw-r--r--", 1
		if dir {
			perms, kind = "drwxr-xr-x", 2
		}
		return fmt.Sprintf("%s %3d ftp ftp %10d Jan 01 00:00 %s", perms, kind, size, name)
	})
}

func (s *Session) handleNLST(arg string) {
	s.list(arg, func(name string, _ int, _ bool) string { return name })
}

// handleMLSD sends RFC 3659 fact lines with a fixed modification time.
func (s *Session) handleMLSD(arg string) {
	s.list(arg, func(name string, size int, dir bool) string {
		if dir {
			return fmt.Sprintf("type=dir;modify=20240101000000; %s", name)
		}
		return fmt.Sprintf("type=file;size=%d;modify=20240101000000; %s", size, name)
	})
}

func (s *Session) list(arg string, format func(name string, size int, dir bool) string) {
	// Ignore ls-style flags such as "-la".
	if strings.HasPrefix(arg, "-") {
		_, arg, _ = strings.Cut(arg, " ")
	}
	dir := s.resolve(arg)

	var lines []string
	if data, ok := s.server.File(dir); ok {
		lines = append(lines, format(path.Base(dir), len(data), false))
	} else if s.server.HasDir(dir) {
		files, dirs := s.server.children(dir)
		for _, d := range dirs {
			lines = append(lines, format(d, 0, true))
		}
		for _, f := range files {
			data, _ := s.server.File(path.Join(dir, f))
			lines = append(lines, format(f, len(data), false))
		}
	} else {
		s.Reply(550, "No such file or directory.")
		return
	}

	s.Reply(150, "Here comes the directory listing.")
	conn, err := s.OpenData()
	if err != nil {
		s.Reply(425, "Can't open data connection.")
		return
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l + "\r\n")
	}
	_, err = io.WriteString(conn, b.String())
	conn.Close()
	if err != nil {
		s.Reply(426, "Connection closed; transfer aborted.")
		return
	}
	s.Reply(226, "Directory send OK.")
}

func (s *Session) handleCWD(arg string) {
	p := s.resolve(arg)
	if !s.server.HasDir(p) {
		s.Reply(550, "Failed to change directory.")
		return
	}
	s.cwd = p
	s.Reply(250, "Directory successfully changed.")
}

func (s *Session) handleCDUP(string) {
	s.cwd = path.Dir(s.cwd)
	s.Reply(250, "Directory successfully changed.")
}

func (s *Session) handlePWD(string) {
	s.Reply(257, "\"%s\" is the current directory.", strings.ReplaceAll(s.cwd, `"`, `""`))
}

func (s *Session) handleMKD(arg string) {
	p := s.resolve(arg)
	if s.server.HasDir(p) {
		s.Reply(550, "Directory exists.")
		return
	}
	if !s.server.HasDir(path.Dir(p)) {
		s.Reply(550, "Parent directory does not exist.")
		return
	}
	s.server.AddDir(p)
	s.Reply(257, "\"%s\" created.", strings.ReplaceAll(p, `"`, `""`))
}

func (s *Session) handleRMD(arg string) {
	p := s.resolve(arg)
	if p == "/" || !s.server.HasDir(p) {
		s.Reply(550, "Remove directory operation failed.")
		return
	}
	if files, dirs := s.server.children(p); len(files)+len(dirs) > 0 {
		s.Reply(550, "Directory not empty.")
		return
	}
	s.server.mu.Lock()
	delete(s.server.dirs, p)
	s.server.mu.Unlock()
	s.Reply(250, "Remove directory operation successful.")
}

func (s *Session) handleDELE(arg string) {
	p := s.resolve(arg)
	s.server.mu.Lock()
	_, ok := s.server.files[p]
	delete(s.server.files, p)
	s.server.mu.Unlock()
	if !ok {
		s.Reply(550, "Delete operation failed.")
		return
	}
	s.Reply(250, "Delete operation successful.")
}

func (s *Session) handleRNFR(arg string) {
	p := s.resolve(arg)
	if _, ok := s.server.File(p); !ok && !s.server.HasDir(p) {
		s.Reply(550, "RNFR command failed.")
		return
	}
	s.renameFrom = p
	s.Reply(350, "Ready for RNTO.")
}

func (s *Session) handleRNTO(arg string) {
	from := s.renameFrom
	s.renameFrom = ""
	if from == "" {
		s.Reply(503, "RNFR required first.")
		return
	}
	to := s.resolve(arg)

	s.server.mu.Lock()
	if data, ok := s.server.files[from]; ok {
		delete(s.server.files, from)
		s.server.files[to] = data
	} else {
		delete(s.server.dirs, from)
		s.server.dirs[to] = true
	}
	s.server.mu.Unlock()
	s.Reply(250, "Rename successful.")
}

func (s *Session) handleSIZE(arg string) {
	data, ok := s.server.File(s.resolve(arg))
	if !ok {
		s.Reply(550, "Could not get file size.")
		return
	}
	s.Reply(213, "%d", len(data))
}

func (s *Session) handleMDTM(arg string) {
	if _, ok := s.server.File(s.resolve(arg)); !ok {
		s.Reply(550, "Could not get file modification time.")
		return
	}
	s.Reply(213, "20240102030405")
}
