package model

import (
	"fmt"
	"strings"
	"time"
)

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseLocal parses a backend date or date-time string as a wall-clock literal
// in loc. Any timezone suffix ("Z", "+02:00", "-0500") is stripped first, so
// "2025-01-28T14:00:00Z" becomes 14:00 in loc rather than being converted.
// A nil loc means time.Local.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v := StripZone(strings.TrimSpace(s))
	if v == "" {
		return time.Time{}, fmt.Errorf("model: empty time string")
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("model: unrecognized time %q", s)
}

// StripZone removes a trailing "Z" or numeric UTC offset from an ISO-8601
// date-time string. Date-only strings are returned unchanged.
func StripZone(s string) string {
	t := strings.IndexAny(s, "T ")
	if t < 0 {
		return s
	}
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return s[:len(s)-1]
	}
	// Offsets only appear after the time part, so search past the date.
	if i := strings.LastIndexAny(s, "+-"); i > t {
		return s[:i]
	}
	return s
}
