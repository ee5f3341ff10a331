// Package scheduling turns class definitions into dated occurrences and answers time-based
// questions about them: availability of a tutor and whether a participant may join now.
//
// Everything here is pure: callers pass class definitions, stored occurrence overrides and the
// current instant, and receive values back. Persistence lives in internal/repository.
package scheduling

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrInvalidTimeFormat is returned for wall-clock strings that are not H:MM or HH:MM.
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrInvalidWeekday is returned for weekday names outside the canonical set.
	ErrInvalidWeekday = errors.New("invalid weekday")
	// ErrInvalidSchedule is returned when a class definition's date fields do not match its schedule type.
	ErrInvalidSchedule = errors.New("invalid schedule definition")
)

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// ParseClock parses a wall-clock "H:MM" or "HH:MM" string into hour and minute.
func ParseClock(value string) (hour, minute int, err error) {
	match := clockPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
	}
	hour, _ = strconv.Atoi(match[1])
	minute, _ = strconv.Atoi(match[2])
	return hour, minute, nil
}

// ValidClock reports whether value is an acceptable wall-clock string.
func ValidClock(value string) bool {
	return clockPattern.MatchString(value)
}

// Combine sets the hour and minute of date to the parsed wall-clock value, zeroing seconds
// and below. The result keeps date's location.
func Combine(date time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// AddMinutes offsets a timestamp by whole minutes.
func AddMinutes(ts time.Time, minutes int) time.Time {
	return ts.Add(time.Duration(minutes) * time.Minute)
}

// Overlaps reports whether half-open intervals [startA, endA) and [startB, endB) intersect.
// Back-to-back intervals do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// Midnight returns the calendar date of t (using t's own year/month/day) at 00:00 in loc.
// Dates read from DATE columns arrive as UTC midnight and must not be shifted across days.
func Midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Today returns the calendar date of the instant now as observed in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Midnight(now.In(loc), loc)
}

// ParseDate parses a YYYY-MM-DD string into midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02", value, loc)
}
