package ftputil

import (
	"strings"
	"time"
)

// Parser turns one line of LIST output into a StatRecord. Implementers
// must not be invoked on lines for which IgnoresLine returns true (see
// §8's invariant: "ignores_line(L) ⇒ parse_line(L) not called").
type Parser interface {
	// IgnoresLine reports whether line carries no stat information (a
	// blank line, or a "total N" header).
	IgnoresLine(line string) bool
	// ParseLine parses one LIST line into a StatRecord. serverNow is the
	// server's current wall-clock time (client time + time shift),
	// needed by dialects whose dates omit the year. ParseLine returns a
	// *Error of KindParser if the line doesn't match this dialect.
	ParseLine(line string, serverNow time.Time) (*StatRecord, error)
}

// ignoresBlankOrTotal implements the default IgnoresLine behavior
// shared by the built-in parsers: a blank line, or a line beginning
// with "total " (the Unix LIST header reporting block count).
func ignoresBlankOrTotal(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	return strings.HasPrefix(trimmed, "total ")
}

// parserSelector tries each candidate parser in turn against a sample
// line and latches onto the first one that succeeds, mirroring
// ftp_stat.py's auto-detection of the LIST dialect on the first
// non-ignored line of the login directory.
type parserSelector struct {
	candidates []Parser
	active     Parser
	locked     bool // true once the caller called SetParser explicitly
}

func newParserSelector() *parserSelector {
	return &parserSelector{
		candidates: []Parser{&UnixParser{}, &WindowsParser{}},
	}
}

// setParser pins the parser explicitly, disabling auto-switching
// (mirrors FTPHost.set_parser).
func (s *parserSelector) setParser(p Parser) {
	s.active = p
	s.locked = true
}

// parse attempts to parse line with the active parser once one is
// set (latched by an earlier successful probe, or pinned by setParser);
// its errors are returned as they are, without trying other parsers.
// While no parser is active yet, it tries each candidate in turn and
// latches the first one that succeeds.
func (s *parserSelector) parse(line string, serverNow time.Time) (*StatRecord, error) {
	if s.active != nil {
		return s.active.ParseLine(line, serverNow)
	}
	var lastErr error
	for _, cand := range s.candidates {
		rec, err := cand.ParseLine(line, serverNow)
		if err == nil {
			s.active = cand
			return rec, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = newError(KindParser, "no parser available", nil)
	}
	return nil, lastErr
}

func isParserError(err error) bool {
	fe, ok := err.(*Error)
	return ok && fe.Kind == KindParser
}
