package domain

import (
	"fmt"
	"strings"
	"time"
)

// naiveLayouts are tried after RFC 3339 and are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Offset-less values are taken as UTC.
// The result is always in UTC.
func ParseTimestamp(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// FormatTimestamp renders t the way stores persist it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
