package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Accepted custom kill-time shapes: bare 3-4 digit HHMM, H:MM, H.MM, "H MM".
var (
	bareDigitsPattern = regexp.MustCompile(`^\d{3,4}$`)
	colonPattern      = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	dotPattern        = regexp.MustCompile(`^(\d{1,2})\.(\d{2})$`)
	spacePattern      = regexp.MustCompile(`^(\d{1,2})\s+(\d{2})$`)
)

// ResolveKillTime turns an optional user-supplied wall-clock string into an
// instant. An empty string means "now". A parsed time more than 12 hours in
// the future is taken to mean the previous calendar day (entering "23:50"
// shortly after midnight).
func ResolveKillTime(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, nil
	}
	hour, minute, err := parseClock(raw)
	if err != nil {
		return time.Time{}, err
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.Sub(now) > 12*time.Hour {
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate, nil
}

func parseClock(raw string) (hour, minute int, err error) {
	var hs, ms string
	switch {
	case bareDigitsPattern.MatchString(raw):
		padded := raw
		if len(padded) == 3 {
			padded = "0" + padded
		}
		hs, ms = padded[:2], padded[2:]
	case colonPattern.MatchString(raw):
		m := colonPattern.FindStringSubmatch(raw)
		hs, ms = m[1], m[2]
	case dotPattern.MatchString(raw):
		m := dotPattern.FindStringSubmatch(raw)
		hs, ms = m[1], m[2]
	case spacePattern.MatchString(raw):
		m := spacePattern.FindStringSubmatch(raw)
		hs, ms = m[1], m[2]
	default:
		return 0, 0, fmt.Errorf("%w: unrecognized time format %q", ErrInvalidInput, raw)
	}
	hour, _ = strconv.Atoi(hs)
	minute, _ = strconv.Atoi(ms)
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %02d:%02d out of range", ErrInvalidInput, hour, minute)
	}
	return hour, minute, nil
}
