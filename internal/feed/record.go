// Package feed deduplicates detected events and assembles them into the
// ordered output records.
package feed

import (
	"fmt"
	"strings"
	"time"
)

// Record types.
const (
	TypePoint  = "point"
	TypePeriod = "period"
)

// Record is one entry of the output feed.
type Record struct {
	Type          string `json:"type" yaml:"type"`
	DateTime      string `json:"datetime" yaml:"datetime"`
	DateTimeStart string `json:"datetime_start,omitempty" yaml:"datetime_start,omitempty"`
	DateTimeEnd   string `json:"datetime_end,omitempty" yaml:"datetime_end,omitempty"`
	Description   string `json:"description" yaml:"description"`
}

const dateTimeLayout = "2006-01-02 15:04:05-07:00"

var parseLayouts = []string{
	dateTimeLayout,
	"2006-01-02 15:04-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

// FormatDateTime renders t in UTC as "YYYY-MM-DD HH:MM:SS+00:00".
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeLayout)
}

// ParseDateTime accepts "YYYY-MM-DD HH:MM[:SS][+00:00]" as well as RFC 3339
// and bare dates. Values without an offset are read as UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}
