package ftputil

import (
	"fmt"
	"time"
)

// statHost is the slice of *Host the stat service needs: the current
// directory (for resolving relative paths) and a way to list a
// directory's raw LIST lines through the directory-sensitive command
// helper (§4.G), plus the server-corrected clock for dialects whose
// dates omit the year.
type statHost interface {
	getcwd() string
	dirLines(path string) ([]string, error)
	serverNow() time.Time
}

// statService implements §4.E: lstat/stat/listdir/isdir/isfile/islink
// driven by LIST output, the parser selector, and the stat cache.
type statService struct {
	host                    statHost
	parsers                 *parserSelector
	cache                   *statCache
	exceptionForMissingPath bool
}

func newStatService(host statHost) *statService {
	return &statService{
		host:                    host,
		parsers:                 newParserSelector(),
		cache:                   newStatCache(0, 0),
		exceptionForMissingPath: true,
	}
}

// setParser overrides the parser and disables auto-detection,
// mirroring FTPHost.set_parser; also clears the cache, since entries
// parsed under the old dialect might be wrong (§6: "registration
// disables auto-detection and clears the cache").
func (s *statService) setParser(p Parser) {
	s.parsers.setParser(p)
	s.cache.Clear()
}

// listdir implements §4.E listdir: lists path, filters ignored lines,
// parses and caches every remaining line under
// join(abspath(path), name), and returns just the names.
func (s *statService) listdir(path string) ([]string, error) {
	abs := Abspath(s.host.getcwd(), path)
	lines, err := s.host.dirLines(path)
	if err != nil {
		return nil, err
	}
	now := s.host.serverNow()
	var names []string
	for _, line := range lines {
		ignored := ignoresBlankOrTotal(line)
		if p := s.parsers.active; p != nil {
			ignored = p.IgnoresLine(line)
		}
		if ignored {
			continue
		}
		rec, perr := s.parsers.parse(line, now)
		if perr != nil {
			return nil, perr
		}
		s.cache.Insert(Join(abs, rec.Name), rec)
		names = append(names, rec.Name)
	}
	return names, nil
}

// lstat implements §4.E lstat: a cache-first, non-symlink-following
// stat.
func (s *statService) lstat(path string) (*StatRecord, error) {
	abs := Abspath(s.host.getcwd(), path)
	if abs == "/" {
		return rootStatRecord(), nil
	}
	if rec, ok := s.cache.Lookup(abs); ok {
		return rec, nil
	}
	parent := Dirname(abs)
	if _, err := s.listdir(parent); err != nil {
		return nil, err
	}
	if rec, ok := s.cache.Lookup(abs); ok {
		return rec, nil
	}
	if s.exceptionForMissingPath {
		return nil, newError(KindPermanent, fmt.Sprintf("no such file or directory: %s", abs), nil)
	}
	return nil, nil
}

// rootStatRecord synthesizes a record for "/" itself, since no LIST of
// a parent directory can ever reveal the root's own entry.
func rootStatRecord() *StatRecord {
	return &StatRecord{Name: "/", Mode: ModeDir | 0755, NumLinks: 1}
}

// stat implements §4.E stat: lstat, then follow symlinks, resolving a
// relative link target against the link's own parent directory, with
// cycle detection via a visited-absolute-path set.
func (s *statService) stat(path string) (*StatRecord, error) {
	abs := Abspath(s.host.getcwd(), path)
	visited := map[string]bool{}
	for {
		rec, err := s.lstat(abs)
		if err != nil || rec == nil {
			return rec, err
		}
		if !rec.IsSymlink() {
			return rec, nil
		}
		if visited[abs] {
			return nil, newError(KindPermanent, "recursive link structure: "+abs, nil)
		}
		visited[abs] = true
		target := rec.LinkTarget
		if !IsAbs(target) {
			target = Join(Dirname(abs), target)
		}
		abs = Normpath(target)
	}
}

// isdir implements §4.E: stat succeeds and names a directory; a
// missing path yields false, never an error.
func (s *statService) isdir(path string) bool {
	rec, err := s.stat(path)
	return err == nil && rec != nil && rec.IsDir()
}

// isfile implements §4.E: stat succeeds and names a regular file.
func (s *statService) isfile(path string) bool {
	rec, err := s.stat(path)
	return err == nil && rec != nil && rec.IsRegular()
}

// islink implements §4.E: lstat says symlink.
func (s *statService) islink(path string) bool {
	rec, err := s.lstat(path)
	return err == nil && rec != nil && rec.IsSymlink()
}

// exists reports whether stat succeeds at all.
func (s *statService) exists(path string) bool {
	rec, err := s.stat(path)
	return err == nil && rec != nil
}
