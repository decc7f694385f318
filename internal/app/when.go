package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidWhen = fmt.Errorf("unrecognized time; use a duration like 90m, 2h30m, 3d, a date like 2025-12-31 18:00, or a time like 18:00")

var durationTokenRe = regexp.MustCompile(`(\d+)([dhm])`)

// ParseWhen resolves user input into an absolute UTC instant. Durations are
// relative to now; dates and clock times are read in loc. A bare clock time
// that has already passed today means tomorrow.
func ParseWhen(input string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return time.Time{}, ErrInvalidWhen
	}

	if d, ok := parseRelative(s); ok {
		return now.Add(d).UTC(), nil
	}

	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.ParseInLocation("15:04", s, loc); err == nil {
		local := now.In(loc)
		at := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if !at.After(local) {
			at = at.AddDate(0, 0, 1)
		}
		return at.UTC(), nil
	}

	return time.Time{}, ErrInvalidWhen
}

// parseRelative accepts concatenated tokens such as "1d2h30m".
func parseRelative(s string) (time.Duration, bool) {
	matches := durationTokenRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var (
		total time.Duration
		pos   int
	)
	for _, m := range matches {
		if m[0] != pos {
			return 0, false
		}
		n, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil {
			return 0, false
		}
		switch s[m[4]:m[5]] {
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		}
		pos = m[1]
	}
	if pos != len(s) {
		return 0, false
	}
	return total, true
}
