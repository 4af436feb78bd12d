// Package ftps implements an FTP client with explicit FTPS (AUTH TLS).
//
// # Overview
//
// A Client owns one control connection and runs one operation at a time.
// It supports:
//   - Plain FTP connections
//   - Upgrading the control connection with AUTH TLS and downgrading it
//     again with CCC, without losing login or directory state
//   - Passive (PASV/EPSV) and active (PORT/EPRT) data connections
//   - Per-session data protection policy (PBSZ/PROT)
//   - ASCII and binary transfer types with line ending conversion
//   - Context deadlines and cancellation on every operation
//
// Implicit TLS (port 990) is not supported.
//
// # Basic Usage
//
//	client, err := ftps.Dial(ctx, "ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit(ctx)
//
//	if err := client.Login(ctx, "username", "password"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Session States
//
// A session moves from StateConnected to StateAuthenticated when the
// credentials are accepted, and to StateReady once the transfer type has
// been negotiated. Navigation and transfers require StateReady. A
// rejected login leaves the session in StateConnected. Calling an
// operation in the wrong state returns a *StateError without sending
// anything to the server.
//
// Quit, Close, a 421 reply or any fatal error moves the session to
// StateClosed, which is final.
//
// # TLS
//
// Secure the control connection before logging in:
//
//	client, err := ftps.Dial(ctx, "ftp.example.com:21",
//	    ftps.WithExplicitTLS(&tls.Config{
//	        ServerName: "ftp.example.com",
//	    }),
//	)
//
// or at any later point with EnterSecure. LeaveSecure sends CCC and
// continues in the clear. A failed TLS handshake closes the session; the
// client never falls back to plaintext silently.
//
// Data connections follow the DataProtection policy. With the default,
// DataProtectionInherit, a data connection is protected exactly when the
// control connection is secured at the time the transfer starts. The
// client always acts as TLS client on data connections, also in active
// mode, and shares a session cache with the control connection so that
// servers requiring TLS session reuse are satisfied.
//
// # File Transfers
//
// Upload a file:
//
//	file, err := os.Open("local.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer file.Close()
//
//	if err := client.Store(ctx, "remote.txt", file); err != nil {
//	    log.Fatal(err)
//	}
//
// Download a file:
//
//	if err := client.Retrieve(ctx, "remote.txt", os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// A transfer succeeds only if the data stream completed and the server's
// final reply is positive. When the stream fails the final reply is still
// read, so the session stays usable; both failures are reported.
//
// # Error Handling
//
// Errors carry their category:
//
//	var pe *ftps.ProtocolError
//	switch {
//	case errors.As(err, &pe):
//	    // The server refused: pe.Code, pe.Response. pe.IsTemporary()
//	    // reports a 4xx reply that may succeed if retried.
//	case errors.Is(err, ftps.ErrState):
//	    // Wrong session state; nothing was sent.
//	case errors.Is(err, ftps.ErrDesynchronized), errors.Is(err, ftps.ErrClosed):
//	    // The session is gone. Reconnect.
//	}
//
// The client never retries on its own.
package ftps
