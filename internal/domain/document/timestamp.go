package document

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reTimestamp = regexp.MustCompile(`^(\d{2,}):([0-5]\d):([0-5]\d)\.(\d{3})$`)
	reRange     = regexp.MustCompile(`^(?:([A-Za-z0-9_-]+)@)?([^-@\s]+)-([^-@\s]+)$`)
	// reRangeish matches code spans that are meant as ranges even when malformed.
	reRangeish = regexp.MustCompile(`^(?:[A-Za-z0-9_-]+@)?[\d:.]+\s*-\s*[\d:.]*$`)
)

// ParseTimestamp parses HH:MM:SS.mmm.
func ParseTimestamp(s string) (time.Duration, error) {
	m := reTimestamp.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("timestamp %q: want HH:MM:SS.mmm", s)
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", s, err)
	}
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	ms, _ := strconv.Atoi(m[4])
	return time.Duration(h)*time.Hour +
		time.Duration(mins)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// FormatTimestamp renders d as HH:MM:SS.mmm, rounding to the millisecond.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := (d + time.Millisecond/2) / time.Millisecond
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// FormatRange renders the code-span form `id@start-end`.
func FormatRange(id string, r TimeRange) string {
	out := FormatTimestamp(r.Start) + "-" + FormatTimestamp(r.End)
	if id != "" {
		out = id + "@" + out
	}
	return out
}

// looksLikeRange reports whether a code span was meant as a timestamp range.
func looksLikeRange(span string) bool {
	return reRangeish.MatchString(strings.TrimSpace(span))
}

// parseRange parses `[id@]HH:MM:SS.mmm-HH:MM:SS.mmm`. The returned id is empty
// when the span carries none.
func parseRange(span string) (string, TimeRange, error) {
	m := reRange.FindStringSubmatch(strings.TrimSpace(span))
	if m == nil {
		return "", TimeRange{}, errors.New("want [id@]HH:MM:SS.mmm-HH:MM:SS.mmm")
	}
	start, err := ParseTimestamp(m[2])
	if err != nil {
		return "", TimeRange{}, err
	}
	end, err := ParseTimestamp(m[3])
	if err != nil {
		return "", TimeRange{}, err
	}
	if end <= start {
		return "", TimeRange{}, fmt.Errorf("end %s is not after start %s", m[3], m[2])
	}
	return m[1], TimeRange{Start: start, End: end}, nil
}

// parseLooseDuration accepts "3", "2.5s", or HH:MM:SS.mmm.
func parseLooseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		return ParseTimestamp(s)
	}
	sec, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("duration %q: want seconds or HH:MM:SS.mmm", s)
	}
	return time.Duration(sec * float64(time.Second)), nil
}
