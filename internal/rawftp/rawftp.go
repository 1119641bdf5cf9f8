// Package rawftp is a minimal RFC 959 control/data connection
// substrate: dial, login, PASV/EPSV negotiation, command/response
// framing. Unlike general-purpose FTP client packages, it never parses
// LIST output — callers get raw lines, because the listing dialect
// parsing is the caller's job (see the ftputil package's stat
// service).
//
// Grounded on the shape of the other_examples goftp-family clients
// (looklzj/goftp, zippoxer/goftp, shenwei356/goftp): a buffered
// net.Conn control channel wrapped in net/textproto for RFC 959 reply
// framing, plus PASV-negotiated data connections.
package rawftp

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Error is a raw protocol reply that didn't fall in the expected class,
// carrying the numeric reply code so callers can classify it.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%d %s", e.Code, e.Msg) }

// Options configures Dial.
type Options struct {
	TLS               bool
	Implicit          bool
	SkipVerifyTLSCert bool
	TLSConfig         *tls.Config
	DialTimeout       time.Duration

	// SocksProxy, if set, is a "host:port" SOCKS5 proxy address the
	// control (and, transitively, data) connections are dialed through.
	SocksProxy string
}

// Conn is one control connection to an FTP server; each transfer
// opens its own data connection, which the caller owns and closes. It
// implements the ftputil.Session interface structurally (ftputil never
// imports this package's types directly in its public API; it only
// requires the method set).
type Conn struct {
	conn net.Conn
	text *textproto.Conn
	opts Options
	addr string
}

// Dial opens the control connection and reads the server's greeting.
func Dial(addr string, opts Options) (*Conn, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	conn, err := dialNetwork(addr, opts, timeout)
	if err != nil {
		return nil, err
	}
	if opts.TLS && opts.Implicit {
		tlsConn := tls.Client(conn, tlsConfig(opts))
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}
	c := &Conn{conn: conn, text: textproto.NewConn(conn), opts: opts, addr: addr}
	if _, _, err := c.readResponse(); err != nil {
		conn.Close()
		return nil, err
	}
	if opts.TLS && !opts.Implicit {
		if err := c.authTLS(); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return c, nil
}

// dialNetwork opens the raw TCP connection the control channel (and,
// for implicit TLS, the TLS handshake) runs over, routing through
// opts.SocksProxy when set.
func dialNetwork(addr string, opts Options, timeout time.Duration) (net.Conn, error) {
	baseDialer := &net.Dialer{Timeout: timeout}
	if opts.SocksProxy == "" {
		return baseDialer.Dial("tcp", addr)
	}
	dialer, err := proxy.SOCKS5("tcp", opts.SocksProxy, nil, baseDialer)
	if err != nil {
		return nil, err
	}
	return dialer.Dial("tcp", addr)
}

func tlsConfig(opts Options) *tls.Config {
	cfg := opts.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if opts.SkipVerifyTLSCert {
		cfg = cfg.Clone()
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func (c *Conn) authTLS() error {
	if _, _, err := c.cmdExpect(2, "AUTH TLS"); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(c.addr)
	cfg := tlsConfig(c.opts)
	if cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = host
	}
	tlsConn := tls.Client(c.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	c.conn = tlsConn
	c.text = textproto.NewConn(tlsConn)
	if _, _, err := c.cmdExpect(2, "PBSZ 0"); err != nil {
		return err
	}
	if _, _, err := c.cmdExpect(2, "PROT P"); err != nil {
		return err
	}
	return nil
}

// Login authenticates with USER/PASS, handling servers that accept the
// user without requiring a password (230 direct) as well as the usual
// 331-then-PASS sequence.
func (c *Conn) Login(user, password string) error {
	code, _, err := c.cmd("USER %s", user)
	if err != nil {
		return err
	}
	if code == 230 {
		return nil
	}
	if code != 331 {
		return &Error{Code: code, Msg: "unexpected reply to USER"}
	}
	_, _, err = c.cmdExpect(2, "PASS %s", password)
	return err
}

// Pwd implements ftputil.Session.
func (c *Conn) Pwd() (string, error) {
	_, msg, err := c.cmdExpect(2, "PWD")
	if err != nil {
		return "", err
	}
	return parseQuoted(msg)
}

// Cwd implements ftputil.Session.
func (c *Conn) Cwd(path string) error {
	_, _, err := c.cmdExpect(2, "CWD %s", path)
	return err
}

// Mkd implements ftputil.Session.
func (c *Conn) Mkd(path string) error {
	_, _, err := c.cmdExpect(2, "MKD %s", path)
	return err
}

// Rmd implements ftputil.Session.
func (c *Conn) Rmd(path string) error {
	_, _, err := c.cmdExpect(2, "RMD %s", path)
	return err
}

// Dele implements ftputil.Session.
func (c *Conn) Dele(path string) error {
	_, _, err := c.cmdExpect(2, "DELE %s", path)
	return err
}

// Rename implements ftputil.Session.
func (c *Conn) Rename(from, to string) error {
	if _, _, err := c.cmdExpect(3, "RNFR %s", from); err != nil {
		return err
	}
	_, _, err := c.cmdExpect(2, "RNTO %s", to)
	return err
}

// Type implements ftputil.Session.
func (c *Conn) Type(binary bool) error {
	arg := "A"
	if binary {
		arg = "I"
	}
	_, _, err := c.cmdExpect(2, "TYPE %s", arg)
	return err
}

// VoidCmd implements ftputil.Session.
func (c *Conn) VoidCmd(format string, args ...interface{}) error {
	_, _, err := c.cmdExpect(2, format, args...)
	return err
}

// NoOp implements ftputil.Session.
func (c *Conn) NoOp() error {
	_, _, err := c.cmdExpect(2, "NOOP")
	return err
}

// Quit implements ftputil.Session.
func (c *Conn) Quit() error {
	_, _, err := c.cmd("QUIT")
	c.conn.Close()
	return err
}

// VoidResp implements ftputil.Session: reads the final reply after a
// data connection closes (normally 226 Closing data connection).
func (c *Conn) VoidResp() error {
	_, _, err := c.readResponse()
	return err
}

var pasvRE = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// openDataConn negotiates a passive-mode data connection via PASV,
// falling back to EPSV if the server rejects PASV.
func (c *Conn) openDataConn() (net.Conn, error) {
	code, msg, err := c.cmd("PASV")
	if err == nil && code == 227 {
		m := pasvRE.FindStringSubmatch(msg)
		if m == nil {
			return nil, &Error{Code: code, Msg: "malformed PASV reply: " + msg}
		}
		nums := make([]int, 6)
		for i, s := range m[1:] {
			nums[i], _ = strconv.Atoi(s)
		}
		host := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
		port := nums[4]<<8 | nums[5]
		return dialNetwork(fmt.Sprintf("%s:%d", host, port), c.opts, 30*time.Second)
	}
	return c.openDataConnEPSV()
}

var epsvRE = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)

func (c *Conn) openDataConnEPSV() (net.Conn, error) {
	code, msg, err := c.cmdExpect(2, "EPSV")
	if err != nil {
		return nil, err
	}
	m := epsvRE.FindStringSubmatch(msg)
	if m == nil {
		return nil, &Error{Code: code, Msg: "malformed EPSV reply: " + msg}
	}
	port, _ := strconv.Atoi(m[1])
	host, _, _ := net.SplitHostPort(c.addr)
	return dialNetwork(fmt.Sprintf("%s:%d", host, port), c.opts, 30*time.Second)
}

// TransferCmd implements ftputil.Session: opens a data connection, then
// issues cmd over the control connection and waits for the 1xx
// "about to open" reply.
func (c *Conn) TransferCmd(cmd string) (io.ReadWriteCloser, error) {
	raw, err := c.openDataConn()
	if err != nil {
		return nil, err
	}
	if c.opts.TLS {
		raw = tls.Client(raw, tlsConfig(c.opts))
	}
	id := c.text.Next()
	c.text.StartRequest(id)
	err = c.text.PrintfLine("%s", cmd)
	c.text.EndRequest(id)
	if err != nil {
		raw.Close()
		return nil, err
	}
	c.text.StartRequest(id)
	code, msg, err := c.text.ReadResponse(0)
	c.text.EndRequest(id)
	if err != nil && code == 0 {
		raw.Close()
		return nil, err
	}
	if code < 100 || code >= 200 {
		raw.Close()
		return nil, &Error{Code: code, Msg: msg}
	}
	return &dataConn{Conn: raw, owner: c}, nil
}

// List implements ftputil.Session: issues LIST over a fresh data
// connection and calls fn once per raw line (not parsed; only empty
// lines are dropped).
func (c *Conn) List(path string, fn func(line string)) error {
	cmd := "LIST"
	if path != "" {
		cmd = "LIST " + path
	}
	dc, err := c.TransferCmd(cmd)
	if err != nil {
		return err
	}
	lines, readErr := readAllLines(dc)
	dc.Close()
	if voidErr := c.VoidResp(); voidErr != nil && readErr == nil {
		readErr = voidErr
	}
	for _, l := range lines {
		fn(l)
	}
	return readErr
}

func readAllLines(r io.Reader) ([]string, error) {
	var lines []string
	var buf []byte
	tmp := make([]byte, 4096)
	for {
		n, err := r.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	for _, l := range strings.Split(string(buf), "\n") {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// dataConn wraps the raw data net.Conn so TransferCmd's return type
// satisfies io.ReadWriteCloser for ftputil.Session without exposing
// net.Conn's full surface.
type dataConn struct {
	net.Conn
	owner *Conn
}

// cmd sends a command and reads back whatever reply follows, without
// classifying it as success or failure; the caller decides.
func (c *Conn) cmd(format string, args ...interface{}) (code int, msg string, err error) {
	id := c.text.Next()
	c.text.StartRequest(id)
	err = c.text.PrintfLine(format, args...)
	c.text.EndRequest(id)
	if err != nil {
		return 0, "", err
	}
	c.text.StartRequest(id)
	defer c.text.EndRequest(id)
	return c.readResponse()
}

func (c *Conn) readResponse() (code int, msg string, err error) {
	return c.text.ReadResponse(0)
}

// cmdExpect sends a command and requires the reply's first digit to
// equal wantFirstDigit, returning an *Error otherwise.
func (c *Conn) cmdExpect(wantFirstDigit int, format string, args ...interface{}) (code int, msg string, err error) {
	code, msg, err = c.cmd(format, args...)
	if err != nil {
		return code, msg, err
	}
	if code/100 != wantFirstDigit {
		return code, msg, &Error{Code: code, Msg: msg}
	}
	return code, msg, nil
}

// parseQuoted extracts the quoted pathname from a PWD reply of the
// form `"/some/path" is the current directory`.
func parseQuoted(msg string) (string, error) {
	first := strings.IndexByte(msg, '"')
	if first < 0 {
		return "", &Error{Msg: "no quoted path in PWD reply: " + msg}
	}
	rest := msg[first+1:]
	var b strings.Builder
	for i := 0; i < len(rest); i++ {
		if rest[i] == '"' {
			if i+1 < len(rest) && rest[i+1] == '"' {
				b.WriteByte('"') // doubled quote inside the path
				i++
				continue
			}
			return b.String(), nil
		}
		b.WriteByte(rest[i])
	}
	return "", &Error{Msg: "unterminated quoted path in PWD reply: " + msg}
}
