// Package dates extracts capture instants from photo filenames and
// computes the skew between independently derived timestamps.
//
// Timezone rule: patterns whose producers embed UTC (Pixel camera PXL_
// names) decode as UTC. Patterns with no zone info decode in the fixed
// offset configured for the library (dates.utc_offset) and are converted
// to UTC before storage. All stored instants are UTC.
package dates

import (
	"regexp"
	"strconv"
	"time"
)

// pattern is one supported filename timestamp shape
type pattern struct {
	re  *regexp.Regexp
	utc bool
}

var patterns = []pattern{
	// PXL_20260114_100210191.jpg — Pixel camera, UTC with milliseconds
	{re: regexp.MustCompile(`^PXL_(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})(\d{3})`), utc: true},
	// Screenshot_20260114-153434.png — device local time
	{re: regexp.MustCompile(`^Screenshot_(\d{4})(\d{2})(\d{2})-(\d{2})(\d{2})(\d{2})`)},
	// IMG_20260114_153434.jpg / VID_... — device local time
	{re: regexp.MustCompile(`^(?:IMG|VID)_(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`)},
	// 20260114_153434.jpg — bare timestamp, device local time
	{re: regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`)},
	// 2026-01-14 15.34.34.jpg — exported albums, device local time
	{re: regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[ _](\d{2})\.(\d{2})\.(\d{2})`)},
}

// Parser derives UTC instants from filenames. The location carries the
// configured fixed offset applied to zone-less patterns.
type Parser struct {
	loc *time.Location
}

// NewParser creates a parser using the given fixed-offset location for
// zone-less filename patterns.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{loc: loc}
}

// Parse attempts every supported pattern in order; first match wins.
// The returned instant is UTC. ok is false when no pattern matches or
// the matched digits do not form a real calendar time.
func (p *Parser) Parse(filename string) (time.Time, bool) {
	for _, pat := range patterns {
		m := pat.re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}

		year := atoi(m[1])
		month := atoi(m[2])
		day := atoi(m[3])
		hour := atoi(m[4])
		minute := atoi(m[5])
		sec := atoi(m[6])
		nsec := 0
		if len(m) > 7 && m[7] != "" {
			nsec = atoi(m[7]) * int(time.Millisecond)
		}

		if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 59 {
			continue
		}

		loc := p.loc
		if pat.utc {
			loc = time.UTC
		}
		t := time.Date(year, time.Month(month), day, hour, minute, sec, nsec, loc)
		// time.Date normalizes out-of-range days (Feb 30 -> Mar 2);
		// reject those rather than store an invented instant.
		if t.Day() != day || t.Month() != time.Month(month) {
			continue
		}
		return t.UTC(), true
	}

	return time.Time{}, false
}

// Skew is the absolute difference between two instants. Plain duration
// math, no calendar-aware adjustment.
func Skew(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d
}

// ExceedsThreshold reports whether two instants disagree by at least the
// threshold. Exactly-at-threshold counts as disagreement.
func ExceedsThreshold(a, b time.Time, threshold time.Duration) bool {
	return Skew(a, b) >= threshold
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
