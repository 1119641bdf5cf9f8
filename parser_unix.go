package ftputil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnixParser recognizes the "ls -l" listing dialect:
//
//	drwxr-xr-x   5 user group     4096 Jan 12 15:04 name
//	-rw-r--r--   1 user group        0 Jan 12  2023 name
//	-rw-r--r--   1 user group        0 2023-01-12 15:04 name
//	lrwxrwxrwx   1 user group        4 Jan 12 15:04 name -> target
type UnixParser struct{}

var unixLineRE = regexp.MustCompile(
	`^([dlcbps-][rwxsStT-]{9})\s+(\d+)\s+(\S+)\s+(\S+)\s+(\d+)\s+` +
		`(\w{3}\s+\d{1,2}\s+(?:\d{1,2}:\d{2}|\d{4})|\d{4}-\d{2}-\d{2}\s+\d{1,2}:\d{2})\s+(.+)$`)

var unixMonths = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// IgnoresLine implements Parser.
func (p *UnixParser) IgnoresLine(line string) bool { return ignoresBlankOrTotal(line) }

// ParseLine implements Parser.
func (p *UnixParser) ParseLine(line string, serverNow time.Time) (*StatRecord, error) {
	m := unixLineRE.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return nil, newError(KindParser, "line does not match Unix listing dialect: "+line, nil)
	}
	mode, err := permStringToMode(m[1])
	if err != nil {
		return nil, err
	}
	links, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, newError(KindParser, "bad link count in line: "+line, err)
	}
	size, err := strconv.ParseInt(m[5], 10, 64)
	if err != nil {
		return nil, newError(KindParser, "bad size in line: "+line, err)
	}
	mtime, precision, err := parseUnixDate(m[6], serverNow)
	if err != nil {
		return nil, err
	}
	name, target := splitSymlinkName(m[7], mode)
	return &StatRecord{
		Name:       name,
		Mode:       mode,
		NumLinks:   links,
		Owner:      m[3],
		Group:      m[4],
		Size:       size,
		MTime:      mtime,
		MTimePrec:  precision,
		LinkTarget: target,
	}, nil
}

// splitSymlinkName splits "name -> target" into (name, target) when
// mode names a symlink; otherwise returns (raw, "").
func splitSymlinkName(raw string, mode uint32) (name, target string) {
	if mode&ModeTypeMask != ModeSymlink {
		return raw, ""
	}
	if idx := strings.Index(raw, " -> "); idx >= 0 {
		return raw[:idx], raw[idx+4:]
	}
	return raw, ""
}

// parseUnixDate parses the three Unix date-field variants described in
// §4.C:
//   - "MMM DD HH:MM" (current year; if more than ~1 day in the future
//     relative to serverNow, subtract a year) — precision 1 minute
//   - "MMM DD YYYY" (year only) — precision 1 year
//   - "YYYY-MM-DD HH:MM" (numeric, seen on some servers) — precision 1 minute
func parseUnixDate(field string, serverNow time.Time) (mtime int64, precision int64, err error) {
	field = strings.Join(strings.Fields(field), " ")
	if t, ok := tryParseNumericDate(field); ok {
		// "YYYY-MM-DD HH:MM" carries no seconds field either.
		return t.Unix(), PrecisionMinute, nil
	}
	parts := strings.Fields(field)
	if len(parts) != 3 {
		return 0, 0, newError(KindParser, "unrecognized date field: "+field, nil)
	}
	month, ok := unixMonths[parts[0]]
	if !ok {
		return 0, 0, newError(KindParser, "unrecognized month: "+parts[0], nil)
	}
	day, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return 0, 0, newError(KindParser, "bad day in date field: "+field, convErr)
	}
	if strings.Contains(parts[2], ":") {
		hm := strings.SplitN(parts[2], ":", 2)
		hour, herr := strconv.Atoi(hm[0])
		minute, merr := strconv.Atoi(hm[1])
		if herr != nil || merr != nil {
			return 0, 0, newError(KindParser, "bad time in date field: "+field, nil)
		}
		year := serverNow.Year()
		if month == time.February && day == 29 && !isLeapYear(year) {
			// a current year without Feb 29 can't be what the server
			// meant; walk back to the most recent leap year
			year--
			for !isLeapYear(year) {
				year--
			}
		}
		t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
		// "more than ~1 day in the future" relative to server-now: assume
		// it's actually from last year.
		if t.After(serverNow.Add(24 * time.Hour)) {
			prevYear := t.Year() - 1
			if month == time.February && day == 29 {
				for !isLeapYear(prevYear) {
					prevYear--
				}
			}
			t = time.Date(prevYear, month, day, hour, minute, 0, 0, time.UTC)
		}
		return t.Unix(), PrecisionMinute, nil
	}
	year, convErr := strconv.Atoi(parts[2])
	if convErr != nil {
		return 0, 0, newError(KindParser, "bad year in date field: "+field, convErr)
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return t.Unix(), PrecisionYear, nil
}

func tryParseNumericDate(field string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02 15:04", field)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
