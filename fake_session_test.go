package ftputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// fakeEntry is one node of the in-memory filesystem a fakeSession
// serves LIST/STOR/RETR against. There is no live FTP server available
// to this module's test suite, so every host-level test exercises a
// Session double instead.
type fakeEntry struct {
	isDir   bool
	isLink  bool
	target  string
	data    []byte
	mtime   time.Time
	perm    string // 9-char rwx string, user/group/other permission columns
}

type fakeFS struct {
	mu      sync.Mutex
	entries map[string]*fakeEntry
	// clockSkew is added to time.Now() whenever commit stamps an entry,
	// simulating a server clock that runs ahead of (or behind) the
	// test process's own clock.
	clockSkew time.Duration
}

func newFakeFS() *fakeFS {
	return &fakeFS{entries: map[string]*fakeEntry{
		"/": {isDir: true, mtime: time.Unix(0, 0), perm: "rwxr-xr-x"},
	}}
}

func (fs *fakeFS) children(dir string) []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var names []string
	for p := range fs.entries {
		if p == "/" {
			continue
		}
		if Dirname(p) == dir {
			names = append(names, Basename(p))
		}
	}
	return names
}

func (fs *fakeFS) mkdir(abs string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.entries[abs]; ok {
		return &fakeErr{code: 550, msg: "file exists"}
	}
	fs.entries[abs] = &fakeEntry{isDir: true, mtime: time.Now(), perm: "rwxr-xr-x"}
	return nil
}

func (fs *fakeFS) rmdir(abs string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, ok := fs.entries[abs]
	if !ok || !e.isDir {
		return &fakeErr{code: 550, msg: "no such directory"}
	}
	delete(fs.entries, abs)
	return nil
}

func (fs *fakeFS) dele(abs string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.entries[abs]; !ok {
		return &fakeErr{code: 550, msg: "no such file"}
	}
	delete(fs.entries, abs)
	return nil
}

func (fs *fakeFS) rename(from, to string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, ok := fs.entries[from]
	if !ok {
		return &fakeErr{code: 550, msg: "no such file"}
	}
	delete(fs.entries, from)
	fs.entries[to] = e
	return nil
}

func (fs *fakeFS) commit(abs string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.entries[abs] = &fakeEntry{data: data, mtime: time.Now().Add(fs.clockSkew), perm: "rw-r--r--"}
}

// setClockSkew makes every entry stamped after this call (by commit)
// carry a server-clock offset from the test process's own wall clock,
// as if the remote server's clock were skewed by d.
func (fs *fakeFS) setClockSkew(d time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.clockSkew = d
}

func (fs *fakeFS) setMtime(abs string, t time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if e, ok := fs.entries[abs]; ok {
		e.mtime = t
	}
}

// symlink adds a symbolic link entry at abs pointing at target (which
// may be relative, resolved against Dirname(abs), or absolute).
func (fs *fakeFS) symlink(abs, target string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.entries[abs] = &fakeEntry{isLink: true, target: target, mtime: time.Now(), perm: "rwxrwxrwx"}
}

type fakeErr struct {
	code int
	msg  string
}

func (e *fakeErr) Error() string { return fmt.Sprintf("%d %s", e.code, e.msg) }

// fakeSession implements Session against a shared fakeFS; cloning (for
// the child pool) just means constructing another fakeSession over the
// same *fakeFS.
type fakeSession struct {
	fs  *fakeFS
	cwd string
}

func newFakeSession(fs *fakeFS) *fakeSession { return &fakeSession{fs: fs, cwd: "/"} }

func (s *fakeSession) Pwd() (string, error) { return s.cwd, nil }

func (s *fakeSession) Cwd(path string) error {
	abs := Abspath(s.cwd, path)
	s.fs.mu.Lock()
	e, ok := s.fs.entries[abs]
	isRoot := abs == "/"
	s.fs.mu.Unlock()
	if !isRoot && (!ok || !e.isDir) {
		return &fakeErr{code: 550, msg: "no such directory: " + abs}
	}
	s.cwd = abs
	return nil
}

func (s *fakeSession) Mkd(path string) error  { return s.fs.mkdir(Abspath(s.cwd, path)) }
func (s *fakeSession) Rmd(path string) error  { return s.fs.rmdir(Abspath(s.cwd, path)) }
func (s *fakeSession) Dele(path string) error { return s.fs.dele(Abspath(s.cwd, path)) }

func (s *fakeSession) Rename(from, to string) error {
	return s.fs.rename(Abspath(s.cwd, from), Abspath(s.cwd, to))
}

func (s *fakeSession) Type(binary bool) error { return nil }

func (s *fakeSession) VoidCmd(format string, args ...interface{}) error { return nil }

func (s *fakeSession) List(path string, fn func(line string)) error {
	dir := s.cwd
	if path != "" {
		dir = Abspath(s.cwd, path)
	}
	for _, name := range s.fs.children(dir) {
		s.fs.mu.Lock()
		e := s.fs.entries[Join(dir, name)]
		s.fs.mu.Unlock()
		fn(formatUnixLine(e, name))
	}
	return nil
}

func formatUnixLine(e *fakeEntry, name string) string {
	typeChar := "-"
	if e.isDir {
		typeChar = "d"
	} else if e.isLink {
		typeChar = "l"
	}
	size := int64(len(e.data))
	date := e.mtime.UTC().Format("2006-01-02 15:04")
	n := name
	if e.isLink {
		n = name + " -> " + e.target
	}
	return fmt.Sprintf("%s%s 1 owner group %d %s %s", typeChar, e.perm, size, date, n)
}

type fakeDataConn struct {
	session *fakeSession
	abs     string
	write   bool
	buf     bytes.Buffer
	reader  *bytes.Reader
}

func (d *fakeDataConn) Read(p []byte) (int, error) {
	if d.reader == nil {
		return 0, io.EOF
	}
	return d.reader.Read(p)
}

func (d *fakeDataConn) Write(p []byte) (int, error) { return d.buf.Write(p) }

func (d *fakeDataConn) Close() error {
	if d.write {
		d.session.fs.commit(d.abs, d.buf.Bytes())
	}
	return nil
}

func (s *fakeSession) TransferCmd(cmd string) (io.ReadWriteCloser, error) {
	parts := strings.SplitN(cmd, " ", 2)
	verb, name := parts[0], ""
	if len(parts) == 2 {
		name = parts[1]
	}
	abs := Abspath(s.cwd, name)
	switch verb {
	case "STOR":
		return &fakeDataConn{session: s, abs: abs, write: true}, nil
	case "RETR":
		s.fs.mu.Lock()
		e, ok := s.fs.entries[abs]
		s.fs.mu.Unlock()
		if !ok {
			return nil, &fakeErr{code: 550, msg: "no such file: " + abs}
		}
		return &fakeDataConn{session: s, abs: abs, reader: bytes.NewReader(e.data)}, nil
	default:
		return nil, &fakeErr{code: 500, msg: "unsupported verb " + verb}
	}
}

func (s *fakeSession) VoidResp() error { return nil }
func (s *fakeSession) NoOp() error     { return nil }
func (s *fakeSession) Quit() error     { return nil }

func fakeFactory(fs *fakeFS) SessionFactory {
	return func(ctx context.Context) (Session, error) { return newFakeSession(fs), nil }
}
