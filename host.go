package ftputil

import (
	"context"
	"strings"
	"time"
)

// Directory and path symbolic constants (§3: HostHandle attributes).
const (
	Curdir = "."
	Pardir = ".."
	Sep    = "/"

	// syncProbeName is the literal filename §6 specifies for the
	// time-shift probe file.
	syncProbeName = "_ftputil_sync_"
)

// Host is the sole public entry point (§4.G): it multiplexes child
// sessions for concurrent transfers and exposes the filesystem-style
// API, owning the stat service and the stat cache.
type Host struct {
	ctx     context.Context
	factory SessionFactory
	session Session

	cwd       string
	stat      *statService
	timeShift time.Duration
	closed    bool

	// pool is the set of child handles, populated lazily by File().
	// Empty (not nil) on the parent; always nil on a child.
	pool []*Host

	// stream is set (non-nil) on a child handle exactly while it is
	// backing an open RemoteFile; nil means the child is reusable.
	stream *RemoteFile
}

// NewHost dials the primary session via factory and returns a ready
// Host. Callers should arrange for Close to run on every exit path;
// WithHost does this automatically.
func NewHost(ctx context.Context, factory SessionFactory) (*Host, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := factory(ctx)
	if err != nil {
		return nil, wrapOSError("dial", err)
	}
	pwd, err := sess.Pwd()
	if err != nil {
		sess.Quit()
		return nil, wrapOSError("PWD", err)
	}
	h := &Host{
		ctx:     ctx,
		factory: factory,
		session: sess,
		cwd:     Normpath(pwd),
		pool:    []*Host{},
	}
	h.stat = newStatService(h)
	return h, nil
}

// WithHost is the scoped-acquisition construct §5/§9 calls for: it
// guarantees Close runs on every exit path, including a panic
// propagating out of fn.
func WithHost(ctx context.Context, factory SessionFactory, fn func(h *Host) error) error {
	h, err := NewHost(ctx, factory)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}

// Close is idempotent and best-effort: closure errors are swallowed
// (§5), but the handle still transitions to closed, children are
// cleared, and the cache is cleared.
func (h *Host) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	for _, c := range h.pool {
		c.session.Quit()
	}
	h.pool = nil
	h.stat.cache.Clear()
	h.session.Quit()
	return nil
}

// Getcwd returns the cached current working directory.
func (h *Host) Getcwd() string { return h.cwd }

// TimeShift returns the signed client/server clock offset established
// by SynchronizeTimes, or 0 if it has never been run.
func (h *Host) TimeShift() time.Duration { return h.timeShift }

// SetParser overrides listing-dialect auto-detection (§6).
func (h *Host) SetParser(p Parser) { h.stat.setParser(p) }

// SetExceptionForMissingPath controls whether Stat/Lstat raise
// PermanentError on a missing path (the default) or return a nil
// record (§7).
func (h *Host) SetExceptionForMissingPath(v bool) { h.stat.exceptionForMissingPath = v }

// EnableCache and DisableCache toggle the stat cache (§4.D).
func (h *Host) EnableCache()       { h.stat.cache.Enable() }
func (h *Host) DisableCache()      { h.stat.cache.Disable() }
func (h *Host) CacheEnabled() bool { return h.stat.cache.Enabled() }

// Stat, Lstat, Listdir, Exists, IsDir, IsFile, IsLink delegate to the
// stat service (§4.B/§4.E).
func (h *Host) Stat(path string) (*StatRecord, error)  { return h.stat.stat(path) }
func (h *Host) Lstat(path string) (*StatRecord, error) { return h.stat.lstat(path) }
func (h *Host) Listdir(path string) ([]string, error)  { return h.stat.listdir(path) }
func (h *Host) Exists(path string) bool                { return h.stat.exists(path) }
func (h *Host) IsDir(path string) bool                 { return h.stat.isdir(path) }
func (h *Host) IsFile(path string) bool                { return h.stat.isfile(path) }
func (h *Host) IsLink(path string) bool                { return h.stat.islink(path) }

// getcwd/dirLines/serverNow implement statHost for h.stat.
func (h *Host) getcwd() string { return h.cwd }

func (h *Host) serverNow() time.Time { return time.Now().Add(h.timeShift) }

// dirLines implements the "_dir" half of §4.G's directory-sensitive
// command helper: verify the login dir, save/chdir/restore, and issue
// LIST with an empty argument while sitting inside the target
// directory (a workaround for servers that treat "LIST ." as a
// recursive listing request).
func (h *Host) dirLines(path string) ([]string, error) {
	abs := Abspath(h.cwd, path)
	if err := h.verifyLoginDir(); err != nil {
		return nil, err
	}
	saved := h.cwd
	if err := h.chdirRaw(abs); err != nil {
		return nil, wrapOSError("CWD", err)
	}
	defer h.chdirRaw(saved)
	var lines []string
	err := h.session.List("", func(line string) { lines = append(lines, line) })
	if err != nil {
		return nil, wrapOSError("LIST", err)
	}
	return lines, nil
}

// verifyLoginDir checks that the cached working directory is still
// reachable, per §4.G's first step for every directory-sensitive
// command.
func (h *Host) verifyLoginDir() error {
	if err := h.session.Cwd(h.cwd); err != nil {
		return newError(KindInaccessibleLoginDir, "login directory no longer reachable: "+h.cwd, err)
	}
	return nil
}

// chdirRaw issues CWD and, on success, updates the cached cwd to
// normpath(join(previous_cwd, path)) without a round-trip PWD, per the
// testable invariant in §8.
func (h *Host) chdirRaw(path string) error {
	abs := Abspath(h.cwd, path)
	if err := h.session.Cwd(abs); err != nil {
		return err
	}
	h.cwd = abs
	return nil
}

// Chdir changes the working directory.
func (h *Host) Chdir(path string) error {
	return wrapOSError("CWD", h.chdirRaw(path))
}

// withParentDir implements the common shape of §4.G's directory-
// sensitive commands: verify the login dir, save/chdir into path's
// parent/restore, and invoke fn with path's basename.
func (h *Host) withParentDir(path string, fn func(tail string) error) error {
	abs := Abspath(h.cwd, path)
	if err := h.verifyLoginDir(); err != nil {
		return err
	}
	saved := h.cwd
	if err := h.chdirRaw(Dirname(abs)); err != nil {
		return wrapOSError("CWD", err)
	}
	defer h.chdirRaw(saved)
	return fn(Basename(abs))
}

// Mkdir issues a single MKD.
func (h *Host) Mkdir(path string) error {
	return h.withParentDir(path, func(tail string) error {
		return wrapOSError("MKD", h.session.Mkd(tail))
	})
}

// Makedirs issues MKD for every path prefix, tolerating PermanentError
// on an intermediate that already exists as a directory (§4.G/§7).
func (h *Host) Makedirs(path string) error {
	abs := Abspath(h.cwd, path)
	segs := strings.Split(strings.Trim(abs, "/"), "/")
	prefix := ""
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		prefix += "/" + seg
		if err := h.Mkdir(prefix); err != nil {
			var fe *Error
			if !(errAs(err, &fe) && fe.Kind == KindPermanent && h.stat.isdir(prefix)) {
				return err
			}
		}
	}
	return nil
}

// Rmdir refuses a non-empty directory, otherwise issues RMD and
// invalidates the cache entry.
func (h *Host) Rmdir(path string) error {
	abs := Abspath(h.cwd, path)
	names, err := h.stat.listdir(abs)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return newError(KindPermanent, "directory not empty: "+abs, nil)
	}
	err = h.withParentDir(path, func(tail string) error {
		return wrapOSError("RMD", h.session.Rmd(tail))
	})
	if err == nil {
		h.stat.cache.Invalidate(abs)
	}
	return err
}

// Remove (alias Unlink) only accepts a file or symlink, never a
// directory, then issues DELE and invalidates the cache.
func (h *Host) Remove(path string) error {
	abs := Abspath(h.cwd, path)
	rec, err := h.stat.lstat(abs)
	if err != nil {
		return err
	}
	if rec == nil {
		return newError(KindPermanent, "no such file or directory: "+abs, nil)
	}
	if rec.IsDir() {
		return newError(KindPermanent, "is a directory: "+abs, nil)
	}
	err = h.withParentDir(path, func(tail string) error {
		return wrapOSError("DELE", h.session.Dele(tail))
	})
	if err == nil {
		h.stat.cache.Invalidate(abs)
	}
	return err
}

// Unlink is an alias for Remove.
func (h *Host) Unlink(path string) error { return h.Remove(path) }

// Rename renames src to dst. If both live in the same directory and
// that directory's name contains whitespace, it chdirs there first and
// renames by basenames (a server-bug workaround); otherwise it renames
// by full paths directly.
func (h *Host) Rename(src, dst string) error {
	absSrc := Abspath(h.cwd, src)
	absDst := Abspath(h.cwd, dst)
	srcDir, dstDir := Dirname(absSrc), Dirname(absDst)
	var err error
	if srcDir == dstDir && strings.Contains(srcDir, " ") {
		if verr := h.verifyLoginDir(); verr != nil {
			return verr
		}
		saved := h.cwd
		if cerr := h.chdirRaw(srcDir); cerr != nil {
			return wrapOSError("CWD", cerr)
		}
		err = h.session.Rename(Basename(absSrc), Basename(absDst))
		h.chdirRaw(saved)
	} else {
		if verr := h.verifyLoginDir(); verr != nil {
			return verr
		}
		err = h.session.Rename(absSrc, absDst)
	}
	if err != nil {
		return wrapOSError("RNFR/RNTO", err)
	}
	h.stat.cache.Invalidate(absSrc)
	h.stat.cache.Invalidate(absDst)
	return nil
}

// Chmod issues SITE CHMOD and invalidates the cache.
func (h *Host) Chmod(path string, perm uint32) error {
	abs := Abspath(h.cwd, path)
	err := h.withParentDir(path, func(tail string) error {
		return wrapOSError("SITE CHMOD", h.session.VoidCmd("SITE CHMOD %03o %s", perm, tail))
	})
	if err == nil {
		h.stat.cache.Invalidate(abs)
	}
	return err
}

// WalkFunc receives one (dir, subdirs, files) triple per visited
// directory (§4.G walk).
type WalkFunc func(dir string, subdirs, files []string) error

// Walk descends top, calling fn once per directory (top-down or
// bottom-up), never descending into a symlinked subdirectory. onerror,
// if non-nil, is called instead of aborting when listdir fails at a
// node; a nil onerror causes the listdir error to propagate.
func (h *Host) Walk(top string, topdown bool, onerror func(error), fn WalkFunc) error {
	subdirs, files, err := h.splitEntries(top)
	if err != nil {
		if onerror != nil {
			onerror(err)
			return nil
		}
		return err
	}
	if topdown {
		if err := fn(top, subdirs, files); err != nil {
			return err
		}
	}
	for _, d := range subdirs {
		child := Join(top, d)
		if h.stat.islink(child) {
			continue
		}
		if err := h.Walk(child, topdown, onerror, fn); err != nil {
			return err
		}
	}
	if !topdown {
		return fn(top, subdirs, files)
	}
	return nil
}

func (h *Host) splitEntries(dir string) (subdirs, files []string, err error) {
	names, err := h.stat.listdir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range names {
		if h.stat.isdir(Join(dir, name)) {
			subdirs = append(subdirs, name)
		} else {
			files = append(files, name)
		}
	}
	return subdirs, files, nil
}

// Rmtree recursively removes path. ignoreErrors silences every
// PermanentError; otherwise onerror (if non-nil) is invoked per
// failure instead of aborting the whole tree.
func (h *Host) Rmtree(path string, ignoreErrors bool, onerror func(op, path string, err error)) error {
	handle := func(op, p string, err error) error {
		if err == nil {
			return nil
		}
		if ignoreErrors {
			return nil
		}
		if onerror != nil {
			onerror(op, p, err)
			return nil
		}
		return err
	}
	names, err := h.stat.listdir(path)
	if err != nil {
		return handle("listdir", path, err)
	}
	for _, name := range names {
		child := Join(path, name)
		switch {
		case h.stat.islink(child):
			if rerr := h.Remove(child); rerr != nil {
				if e := handle("remove", child, rerr); e != nil {
					return e
				}
			}
		case h.stat.isdir(child):
			if rerr := h.Rmtree(child, ignoreErrors, onerror); rerr != nil {
				return rerr
			}
		default:
			if rerr := h.Remove(child); rerr != nil {
				if e := handle("remove", child, rerr); e != nil {
					return e
				}
			}
		}
	}
	if err := h.Rmdir(path); err != nil {
		return handle("rmdir", path, err)
	}
	return nil
}

// File implements §4.G's file(path, mode): acquire a pooled child
// session, chdir it into path's parent (a workaround for servers that
// mishandle whitespace in STOR/RETR arguments), and open the stream
// with just the basename. Closing the returned RemoteFile frees the
// child handle back to the pool.
func (h *Host) File(path, mode string) (*RemoteFile, error) {
	abs := Abspath(h.cwd, path)
	child, err := h.acquireChild()
	if err != nil {
		return nil, err
	}
	if err := child.chdirRaw(Dirname(abs)); err != nil {
		return nil, newError(KindFTPIO, "remote directory doesn't exist: "+Dirname(abs), err)
	}
	rf, err := openRemoteFile(child.session, Basename(abs), mode)
	if err != nil {
		return nil, err
	}
	child.stream = rf
	rf.afterClose = func() { child.stream = nil }
	if strings.HasPrefix(mode, "w") {
		h.stat.cache.Invalidate(abs)
	}
	return rf, nil
}

// acquireChild scans the pool for a free, live child, probing with
// NoOp before reuse (§9 open question: detect timed-out pooled
// sessions before handing them back). A dead child is dropped from the
// pool. If none is free, a new child is spawned from the factory.
func (h *Host) acquireChild() (*Host, error) {
	live := h.pool[:0]
	var found *Host
	for _, c := range h.pool {
		if c.stream != nil {
			live = append(live, c)
			continue
		}
		if found != nil {
			live = append(live, c)
			continue
		}
		if err := c.session.NoOp(); err != nil {
			c.session.Quit()
			continue // drop the dead child
		}
		found = c
		live = append(live, c)
	}
	h.pool = live
	if found != nil {
		return found, nil
	}
	sess, err := h.factory(h.ctx)
	if err != nil {
		return nil, wrapOSError("dial child session", err)
	}
	pwd, err := sess.Pwd()
	if err != nil {
		sess.Quit()
		return nil, wrapOSError("PWD", err)
	}
	child := &Host{factory: h.factory, session: sess, cwd: Normpath(pwd), timeShift: h.timeShift}
	h.pool = append(h.pool, child)
	return child, nil
}

// errAs is a tiny errors.As wrapper kept local to avoid importing
// "errors" into every call site that only needs *Error.
func errAs(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
