package incident

import (
	"errors"
	"strings"
	"time"
)

// errInvalidDate is returned when occurredAt matches none of the accepted layouts.
var errInvalidDate = errors.New("invalid date")

// occurredAtLayouts are tried in order. Values without a zone are taken as UTC.
var occurredAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseOccurredAt parses a user supplied date or date-time into UTC.
func ParseOccurredAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errInvalidDate
	}
	for _, layout := range occurredAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errInvalidDate
}
