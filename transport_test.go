package ftps

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gonzalop/ftps/internal/ftptest"
)

// tlsPair returns a client config and a server config that trust each other.
func tlsPair(t *testing.T) (client, server *tls.Config) {
	t.Helper()
	cert, pool, err := ftptest.GenerateCert()
	if err != nil {
		t.Fatal(err)
	}
	return &tls.Config{RootCAs: pool, ServerName: "localhost"},
		&tls.Config{Certificates: []tls.Certificate{cert}}
}

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := l.Accept()
		accepted <- conn
	}()
	client, err = net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server = <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestTransportModeString(t *testing.T) {
	t.Parallel()
	if ModePlain.String() != "plain" || ModeSecured.String() != "secured" {
		t.Errorf("modes = %q, %q", ModePlain, ModeSecured)
	}
}

// TestTransportSwitches secures a socket, exchanges data, drops back to the
// clear and keeps talking on the same socket.
func TestTransportSwitches(t *testing.T) {
	t.Parallel()
	clientCfg, serverCfg := tlsPair(t)
	clientConn, serverConn := tcpPair(t)

	serverDone := make(chan error, 1)
	go func() {
		srv := tls.Server(serverConn, serverCfg)
		if err := srv.Handshake(); err != nil {
			serverDone <- err
			return
		}
		line, err := bufio.NewReader(srv).ReadString('\n')
		if err != nil {
			serverDone <- err
			return
		}
		if _, err := io.WriteString(srv, "tls:"+line); err != nil {
			serverDone <- err
			return
		}
		// Back to the raw socket, as after CCC.
		line, err = bufio.NewReader(serverConn).ReadString('\n')
		if err != nil {
			serverDone <- err
			return
		}
		_, err = io.WriteString(serverConn, "raw:"+line)
		serverDone <- err
	}()

	plain := NewPlainTransport(clientConn)
	if plain.Mode() != ModePlain {
		t.Fatalf("Mode() = %v", plain.Mode())
	}

	secured, err := plain.Secure(context.Background(), clientCfg)
	if err != nil {
		t.Fatalf("Secure: %v", err)
	}
	if secured.Mode() != ModeSecured {
		t.Errorf("Mode() = %v, want secured", secured.Mode())
	}
	if secured.ConnectionState().Version == 0 {
		t.Error("no TLS version negotiated")
	}

	// The plain transport is consumed.
	if _, err := plain.Write([]byte("x")); !errors.Is(err, errTransportConsumed) {
		t.Errorf("write on consumed plain transport: %v", err)
	}
	if _, err := plain.Secure(context.Background(), clientCfg); !errors.Is(err, errTransportConsumed) {
		t.Errorf("second Secure: %v", err)
	}

	if _, err := io.WriteString(secured, "hello\n"); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len("tls:hello\n"))
	if _, err := io.ReadFull(secured, buf); err != nil || string(buf) != "tls:hello\n" {
		t.Fatalf("secured read = %q, %v", buf, err)
	}

	cleared, err := secured.Plain()
	if err != nil {
		t.Fatalf("Plain: %v", err)
	}
	if _, err := secured.Read(buf); !errors.Is(err, errTransportConsumed) {
		t.Errorf("read on consumed secure transport: %v", err)
	}
	if _, err := secured.Plain(); !errors.Is(err, errTransportConsumed) {
		t.Errorf("second Plain: %v", err)
	}

	if _, err := io.WriteString(cleared, "again\n"); err != nil {
		t.Fatal(err)
	}
	buf = make([]byte, len("raw:again\n"))
	if _, err := io.ReadFull(cleared, buf); err != nil || string(buf) != "raw:again\n" {
		t.Fatalf("cleared read = %q, %v", buf, err)
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server: %v", err)
	}
	if err := cleared.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := cleared.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSecureHandshakeFailureClosesSocket(t *testing.T) {
	t.Parallel()
	clientCfg, _ := tlsPair(t)
	clientConn, serverConn := tcpPair(t)

	go func() {
		// Not a TLS server: answer with garbage and hang up.
		buf := make([]byte, 512)
		_, _ = serverConn.Read(buf)
		_, _ = serverConn.Write([]byte("500 what?\r\n"))
		serverConn.Close()
	}()

	plain := NewPlainTransport(clientConn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := plain.Secure(ctx, clientCfg); err == nil {
		t.Fatal("Secure succeeded against a non-TLS peer")
	}
	if _, err := clientConn.Write([]byte("x")); err == nil {
		t.Error("socket still open after failed handshake")
	}
}
