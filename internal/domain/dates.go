package domain

import (
	"strings"
	"time"
)

// Source dates arrive in whatever shape each platform feels like
// publishing. Layouts are tried in order; the first hit wins.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
}

// ParseDate coerces a source date string into a time. The bool is
// false when no layout matched; callers fail soft and keep the record
// with a zero date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
