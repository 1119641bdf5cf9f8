package ftputil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WindowsParser recognizes the IIS/FTP-service listing dialect:
//
//	01-02-69  03:04PM       <DIR>          name
//	01-02-70  03:04PM             1234     name
type WindowsParser struct{}

var windowsLineRE = regexp.MustCompile(
	`^(\d{2})-(\d{2})-(\d{2})\s+(\d{2}):(\d{2})(AM|PM)\s+(<DIR>|\d+)\s+(.+)$`)

// IgnoresLine implements Parser.
func (p *WindowsParser) IgnoresLine(line string) bool { return ignoresBlankOrTotal(line) }

// ParseLine implements Parser.
func (p *WindowsParser) ParseLine(line string, serverNow time.Time) (*StatRecord, error) {
	m := windowsLineRE.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return nil, newError(KindParser, "line does not match Windows listing dialect: "+line, nil)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year2, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	ampm := m[6]
	sizeOrDir := m[7]
	name := m[8]

	// two-digit year pivot: < 70 -> 20xx, else 19xx
	year := 1900 + year2
	if year2 < 70 {
		year = 2000 + year2
	}

	if ampm == "PM" && hour != 12 {
		hour += 12
	}
	if ampm == "AM" && hour == 12 {
		hour = 0
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)

	rec := &StatRecord{
		Name:      name,
		MTime:     t.Unix(),
		MTimePrec: PrecisionMinute,
	}
	if sizeOrDir == "<DIR>" {
		rec.Mode = ModeDir | 0755
		rec.Size = 0
	} else {
		size, err := strconv.ParseInt(sizeOrDir, 10, 64)
		if err != nil {
			return nil, newError(KindParser, "bad size in line: "+line, err)
		}
		rec.Mode = ModeRegular | 0644
		rec.Size = size
	}
	rec.NumLinks = 1
	return rec, nil
}
