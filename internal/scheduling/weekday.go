package scheduling

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeekdayName returns the canonical lowercase name of a weekday.
func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// ParseWeekday maps a canonical weekday name to time.Weekday. Surrounding whitespace and case are
// normalised; anything else is rejected.
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
	}
	return day, nil
}

// NormalizeWeekdays canonicalises and de-duplicates a weekday list, preserving first-seen order.
func NormalizeWeekdays(names []string) ([]string, error) {
	seen := make(map[time.Weekday]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		day, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, WeekdayName(day))
	}
	return out, nil
}

// WeekdaySet is a lookup set of weekdays.
type WeekdaySet map[time.Weekday]struct{}

// NewWeekdaySet builds a set from weekday names. Unknown names are ignored; validation happens at
// the input boundary through NormalizeWeekdays.
func NewWeekdaySet(names []string) WeekdaySet {
	set := make(WeekdaySet, len(names))
	for _, name := range names {
		if day, err := ParseWeekday(name); err == nil {
			set[day] = struct{}{}
		}
	}
	return set
}

// Has reports whether day is in the set.
func (s WeekdaySet) Has(day time.Weekday) bool {
	_, ok := s[day]
	return ok
}
