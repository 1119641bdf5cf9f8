package ftputil

import (
	"io"
	"strings"
)

// RemoteFile is a streaming wrapper around a single data-channel
// transfer (§4.F). It is not seekable and does not support append
// mode; text-mode line-ending conversion happens in-process, since the
// transport itself is always opened in binary (image) mode.
type RemoteFile struct {
	session  Session
	data     io.ReadWriteCloser
	textMode bool
	writable bool
	closed   bool

	rawBuf []byte // unconverted bytes read from data, not yet drained
	outBuf []byte // converted bytes ready to hand to a caller
	eof    bool

	// afterClose, if set, runs once after a successful or failed
	// Close, so Host.File can free the pooled child session it used.
	afterClose func()
}

// validModes are the only four mode strings §4.F accepts; append ("a")
// is explicitly out of scope and fails with FTPIOError.
var validModes = map[string]bool{"r": true, "rb": true, "w": true, "wb": true}

// openRemoteFile issues TYPE A|I and then STOR|RETR over session,
// returning the resulting RemoteFile. path is the name to pass to
// STOR/RETR verbatim — callers (Host.File) are responsible for having
// already chdir'd so that path can be just a basename.
func openRemoteFile(session Session, path, mode string) (*RemoteFile, error) {
	if !validModes[mode] {
		return nil, newError(KindFTPIO, "invalid mode: "+mode, nil)
	}
	binary := strings.HasSuffix(mode, "b")
	writable := mode[0] == 'w'
	if err := session.Type(binary); err != nil {
		return nil, wrapIOError("TYPE", err)
	}
	verb := "RETR"
	if writable {
		verb = "STOR"
	}
	data, err := session.TransferCmd(verb + " " + path)
	if err != nil {
		return nil, wrapIOError(verb, err)
	}
	return &RemoteFile{
		session:  session,
		data:     data,
		textMode: !binary,
		writable: writable,
	}, nil
}

// Read implements io.Reader. In binary mode it forwards directly to
// the data connection; in text mode it strips \r bytes, re-reading
// from the data connection until len(p) converted bytes are available
// or EOF.
func (f *RemoteFile) Read(p []byte) (int, error) {
	if f.writable {
		return 0, newError(KindFTPIO, "file not open for reading", nil)
	}
	if !f.textMode {
		return f.data.Read(p)
	}
	for len(f.outBuf) < len(p) && !(f.eof && len(f.rawBuf) == 0) {
		f.fill()
	}
	if f.eof && len(f.rawBuf) > 0 {
		f.outBuf = append(f.outBuf, stripCR(f.rawBuf)...)
		f.rawBuf = nil
	}
	n := copy(p, f.outBuf)
	f.outBuf = f.outBuf[n:]
	if n == 0 && f.eof && len(f.outBuf) == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadLine returns the next line, including its trailing "\n" if one
// was present, or io.EOF once no more data remains. A raw chunk that
// ends mid-CRLF (ends with "\r") is held back until the next read
// confirms what follows, per §4.F.
func (f *RemoteFile) ReadLine() (string, error) {
	if f.writable {
		return "", newError(KindFTPIO, "file not open for reading", nil)
	}
	for {
		if idx := indexByte(f.outBuf, '\n'); idx >= 0 {
			line := string(f.outBuf[:idx+1])
			f.outBuf = f.outBuf[idx+1:]
			return line, nil
		}
		if f.eof && len(f.rawBuf) == 0 {
			if len(f.outBuf) == 0 {
				return "", io.EOF
			}
			line := string(f.outBuf)
			f.outBuf = nil
			return line, nil
		}
		f.fill()
	}
}

// Write implements io.Writer. In text mode every "\n" is translated to
// "\r\n" before being written to the data connection.
func (f *RemoteFile) Write(p []byte) (int, error) {
	if !f.writable {
		return 0, newError(KindFTPIO, "file not open for writing", nil)
	}
	if !f.textMode {
		return f.data.Write(p)
	}
	converted := make([]byte, 0, len(p))
	for _, b := range p {
		if b == '\n' {
			converted = append(converted, '\r', '\n')
			continue
		}
		converted = append(converted, b)
	}
	if _, err := f.data.Write(converted); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the data socket, then awaits the server's end-of-
// transfer reply. Idempotent: calling Close twice is a no-op.
func (f *RemoteFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	closeErr := f.data.Close()
	voidErr := f.session.VoidResp()
	if f.afterClose != nil {
		f.afterClose()
	}
	if closeErr != nil {
		return wrapIOError("close", closeErr)
	}
	if voidErr != nil {
		return wrapIOError("close", voidErr)
	}
	return nil
}

// fill reads one more raw chunk from the data connection (setting eof
// on error) and drains as much of it as is safe into outBuf.
func (f *RemoteFile) fill() {
	if !f.eof {
		buf := make([]byte, 4096)
		n, err := f.data.Read(buf)
		f.rawBuf = append(f.rawBuf, buf[:n]...)
		if err != nil {
			f.eof = true
		}
	}
	safe := len(f.rawBuf)
	if !f.eof && safe > 0 && f.rawBuf[safe-1] == '\r' {
		safe-- // hold back a trailing \r until the next chunk resolves it
	}
	f.outBuf = append(f.outBuf, stripCR(f.rawBuf[:safe])...)
	f.rawBuf = f.rawBuf[safe:]
}

func stripCR(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != '\r' {
			out = append(out, c)
		}
	}
	return out
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
