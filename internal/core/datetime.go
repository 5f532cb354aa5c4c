package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
)

// WireLayout is the zone-less timestamp format the backend reads and writes.
const WireLayout = "2006-01-02T15:04:05"

// DayLayout formats calendar dates (YYYY-MM-DD).
const DayLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	WireLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	DayLayout,
}

// DateTime wraps time.Time so JSON accepts both RFC 3339 and the backend's zone-less forms.
type DateTime struct {
	time.Time
}

// NewDateTime builds a DateTime in UTC.
func NewDateTime(year, month, day, hour, min, sec int) DateTime {
	return DateTime{Time: time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)}
}

// ParseDateTime tries every accepted layout in turn.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTime{Time: t}, nil
		}
	}
	return DateTime{}, fmt.Errorf("unrecognised date time %q", s)
}

// Day returns the calendar date of the timestamp as written, without zone conversion.
func (d DateTime) Day() string {
	return d.Time.Format(DayLayout)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Time.Format(WireLayout) + `"`), nil
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = DateTime{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("date time must be a string, got %s", data)
	}
	parsed, err := ParseDateTime(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive [Start, End] window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

var ErrInvalidRange = errors.New("start date must not be after end date")

// DayRange covers whole days: from 00:00:00 on from up to 23:59:59 on to. Each end
// takes the calendar date as seen in its own zone and is built in UTC, the location
// zone-less wire timestamps parse into, so ranges and backend timestamps compare
// on the same wall clock.
func DayRange(from, to time.Time) DateRange {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
	return DateRange{Start: start, End: end}
}

// LastMonth is the default window views open with: one month back from now.
func LastMonth(now time.Time) DateRange {
	return DayRange(now.AddDate(0, -1, 0), now)
}

// ParseDayRange parses two YYYY-MM-DD strings into a whole-day range.
func ParseDayRange(from, to string) (DateRange, error) {
	start, err := time.Parse(DayLayout, strings.TrimSpace(from))
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(DayLayout, strings.TrimSpace(to))
	if err != nil {
		return DateRange{}, fmt.Errorf("parse end date: %w", err)
	}
	rng := DayRange(start, end)
	if err := rng.Validate(); err != nil {
		return DateRange{}, err
	}
	return rng, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrZeroDate
	}
	if r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}

// Contains reports whether t falls inside the range, both ends included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
