package ftputil

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/pombredanne/sschwarzer.net-ftputil/internal/rawftp"
)

// Session is the Go shape of the "external FTP client with a roughly
// RFC-959-shaped API" that spec.md assumes as a collaborator. Anything
// satisfying this interface can back a Host; rawftp.Dial is only the
// default, in-box implementation.
type Session interface {
	// Pwd returns the current working directory.
	Pwd() (string, error)
	// Cwd changes the working directory.
	Cwd(path string) error
	// Mkd creates a directory.
	Mkd(path string) error
	// Rmd removes an empty directory.
	Rmd(path string) error
	// Dele removes a file.
	Dele(path string) error
	// Rename renames from to to.
	Rename(from, to string) error
	// Type sets the transfer type: true for image (binary, TYPE I),
	// false for ASCII (TYPE A).
	Type(binary bool) error
	// VoidCmd issues an arbitrary command expecting a 2xx reply with no
	// further meaning to the caller (used for SITE CHMOD).
	VoidCmd(format string, args ...interface{}) error
	// List issues LIST on path (or the working directory if path is
	// empty) and invokes fn once per raw response line, unparsed.
	List(path string, fn func(line string)) error
	// TransferCmd opens a data connection and issues cmd (e.g. "RETR
	// name" or "STOR name") over the control connection, returning the
	// data connection once the server accepts the transfer (1xx reply).
	TransferCmd(cmd string) (io.ReadWriteCloser, error)
	// VoidResp reads the final reply following a data transfer
	// (normally 226), after the data connection has been closed.
	VoidResp() error
	// NoOp sends a protocol no-op, used as a pooled-session liveness
	// probe.
	NoOp() error
	// Quit logs out and closes the underlying connection.
	Quit() error
}

// SessionFactory builds a new Session, e.g. by dialing a fresh control
// connection and logging in. Host calls it once for the primary session
// and again for each pooled child.
type SessionFactory func(ctx context.Context) (Session, error)

// Options configures the default session factory, mirroring the
// base_class/port/use_passive_mode/encrypt_data_channel options that
// original_source/sandbox/session.py's session_factory accepts.
type Options struct {
	Host string
	Port int // default 21, or 990 for implicit TLS

	User     string
	Password string

	// TLS, if true, wraps the control connection in TLS. Implicit
	// selects implicit TLS (TLS from the first byte); otherwise
	// explicit AUTH TLS negotiation is used.
	TLS               bool
	Implicit          bool
	SkipVerifyTLSCert bool
	TLSConfig         *tls.Config

	// Passive forces PASV/EPSV data connections when true, forces
	// active mode when false, or lets the factory decide when nil.
	// Active mode is not implemented by the default factory; a non-nil
	// false is only meaningful to a custom Session implementation.
	Passive *bool

	// SocksProxy, if set, is a "host:port" SOCKS5 proxy address both the
	// control connection and every PASV/EPSV data connection are dialed
	// through.
	SocksProxy string

	DialTimeout time.Duration
}

func (o Options) port() int {
	if o.Port != 0 {
		return o.Port
	}
	if o.Implicit {
		return 990
	}
	return 21
}

func (o Options) dialTimeout() time.Duration {
	if o.DialTimeout > 0 {
		return o.DialTimeout
	}
	return 30 * time.Second
}

// NewSessionFactory builds the default SessionFactory: dial
// internal/rawftp, log in, and return the resulting Session. This is
// the Go equivalent of original_source/sandbox/session.py's
// session_factory closing over base_class/port/use_passive_mode/
// encrypt_data_channel.
func NewSessionFactory(opts Options) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		addr := fmt.Sprintf("%s:%d", opts.Host, opts.port())
		conn, err := rawftp.Dial(addr, rawftp.Options{
			TLS:               opts.TLS,
			Implicit:          opts.Implicit,
			SkipVerifyTLSCert: opts.SkipVerifyTLSCert,
			TLSConfig:         opts.TLSConfig,
			DialTimeout:       opts.dialTimeout(),
			SocksProxy:        opts.SocksProxy,
		})
		if err != nil {
			return nil, wrapOSError("dial", err)
		}
		if err := conn.Login(opts.User, opts.Password); err != nil {
			conn.Quit()
			return nil, wrapOSError("login", err)
		}
		return conn, nil
	}
}
