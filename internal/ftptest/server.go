// Package ftptest provides an in-process FTP server with explicit TLS for
// end-to-end client tests.
//
// Files live in memory and are stored exactly as received: the server
// never converts line endings, so tests can inspect the bytes a client put
// on the wire in ASCII mode.
package ftptest

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// HandlerFunc overrides the server's handling of one command. arg is the
// text after the command verb.
type HandlerFunc func(s *Session, arg string)

// A Server is an FTP server listening on a system-chosen port on the local
// loopback interface, for use in end-to-end FTP tests.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr     string
	Listener net.Listener

	// TLSConfig enables AUTH TLS. StartTLS fills it with a self-signed
	// certificate. When nil, AUTH is refused.
	TLSConfig *tls.Config

	// Users maps user names to passwords. When empty, every login is
	// accepted.
	Users map[string]string

	// Welcome is the greeting text.
	Welcome string

	// MachineListings advertises MLST in FEAT. MLSD is answered either way.
	MachineListings bool

	// Handlers override built-in command handling, keyed by upper-case
	// verb. Set them before Start.
	Handlers map[string]HandlerFunc

	Logger logrus.FieldLogger

	clientTLS *tls.Config

	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	commands []string
	sessions map[*Session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer starts and returns a new plain Server.
// The caller should call Close when finished, to shut it down.
func NewServer() *Server {
	s := NewUnstartedServer()
	s.Start()
	return s
}

// NewTLSServer starts and returns a new Server that accepts AUTH TLS.
func NewTLSServer() *Server {
	s := NewUnstartedServer()
	s.StartTLS()
	return s
}

// NewUnstartedServer returns a new Server but doesn't start it.
func NewUnstartedServer() *Server {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if l, err = net.Listen("tcp6", "[::1]:0"); err != nil {
			panic(fmt.Sprintf("ftptest: failed to listen on a port: %v", err))
		}
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return &Server{
		Addr:     l.Addr().String(),
		Listener: l,
		Welcome:  "ftptest ready",
		Handlers: make(map[string]HandlerFunc),
		Logger:   discard,
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"/": true},
		sessions: make(map[*Session]struct{}),
	}
}

// Start starts a server from NewUnstartedServer.
func (s *Server) Start() {
	s.wg.Add(1)
	go s.serve()
}

// StartTLS generates a self-signed certificate, enables AUTH TLS and
// starts the server.
func (s *Server) StartTLS() {
	if s.TLSConfig == nil {
		cert, pool, err := GenerateCert()
		if err != nil {
			panic(fmt.Sprintf("ftptest: %v", err))
		}
		// Without tickets a TLS 1.3 server sends nothing unprompted, so an
		// upload's data connection never holds unread bytes at close.
		s.TLSConfig = &tls.Config{
			Certificates:           []tls.Certificate{cert},
			SessionTicketsDisabled: true,
		}
		s.clientTLS = &tls.Config{RootCAs: pool}
	}
	s.Start()
}

// ClientTLSConfig returns a client configuration that trusts the server's
// certificate.
func (s *Server) ClientTLSConfig() *tls.Config {
	if s.clientTLS == nil {
		return nil
	}
	return s.clientTLS.Clone()
}

// Close shuts down the server and every open session.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for sess := range s.sessions {
		sess.Close()
	}
	s.mu.Unlock()

	s.Listener.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			return
		}

		sess := newSession(s, conn)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.serve()
			s.mu.Lock()
			delete(s.sessions, sess)
			s.mu.Unlock()
		}()
	}
}

// Commands returns every command line received so far, across sessions.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commands)
}

// Verbs returns the verb of every command received so far.
func (s *Server) Verbs() []string {
	cmds := s.Commands()
	verbs := make([]string, len(cmds))
	for i, c := range cmds {
		verb, _, _ := strings.Cut(c, " ")
		verbs[i] = strings.ToUpper(verb)
	}
	return verbs
}

func (s *Server) record(line string) {
	s.mu.Lock()
	s.commands = append(s.commands, line)
	s.mu.Unlock()
}

// AddFile stores data at the absolute path p, creating parent directories.
func (s *Server) AddFile(p string, data []byte) {
	p = path.Clean("/" + p)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = slices.Clone(data)
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		s.dirs[dir] = true
		if dir == "/" {
			break
		}
	}
}

// AddDir creates the directory p and its parents.
func (s *Server) AddDir(p string) {
	p = path.Clean("/" + p)
	s.mu.Lock()
	defer s.mu.Unlock()
	for dir := p; ; dir = path.Dir(dir) {
		s.dirs[dir] = true
		if dir == "/" {
			break
		}
	}
}

// File returns the stored content of p.
func (s *Server) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path.Clean("/"+p)]
	return slices.Clone(data), ok
}

// HasDir reports whether the directory p exists.
func (s *Server) HasDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path.Clean("/"+p)]
}

// children returns the names of files and directories directly inside dir.
func (s *Server) children(dir string) (files, dirs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.files {
		if path.Dir(p) == dir {
			files = append(files, path.Base(p))
		}
	}
	for p := range s.dirs {
		if p != "/" && path.Dir(p) == dir {
			dirs = append(dirs, path.Base(p))
		}
	}
	slices.Sort(files)
	slices.Sort(dirs)
	return files, dirs
}
