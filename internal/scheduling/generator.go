package scheduling

import (
	"fmt"
	"time"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

const (
	// DefaultLookaheadDays bounds the forward scan of NextOccurrence.
	DefaultLookaheadDays = 14
	// DefaultJoinWindowMinutes applies when a class carries no join window.
	DefaultJoinWindowMinutes = 15
)

// Generator expands class definitions into dated occurrences.
type Generator struct {
	// LookaheadDays is the horizon NextOccurrence is willing to scan.
	LookaheadDays int
	// DefaultJoinWindow is used for classes whose JoinWindowMinutes is zero.
	DefaultJoinWindow int
	// Location is the wall-clock zone class start times are expressed in.
	Location *time.Location
}

// NewGenerator builds a generator, filling unset fields with defaults.
func NewGenerator(lookaheadDays, defaultJoinWindow int, loc *time.Location) Generator {
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}
	if defaultJoinWindow <= 0 {
		defaultJoinWindow = DefaultJoinWindowMinutes
	}
	if loc == nil {
		loc = time.UTC
	}
	return Generator{LookaheadDays: lookaheadDays, DefaultJoinWindow: defaultJoinWindow, Location: loc}
}

func (g Generator) location() *time.Location {
	if g.Location == nil {
		return time.UTC
	}
	return g.Location
}

// JoinWindow returns the effective join window of a class in minutes.
func (g Generator) JoinWindow(def models.ClassDefinition) int {
	if def.JoinWindowMinutes > 0 {
		return def.JoinWindowMinutes
	}
	if g.DefaultJoinWindow > 0 {
		return g.DefaultJoinWindow
	}
	return DefaultJoinWindowMinutes
}

// Validate checks that the definition's date fields match its schedule type.
func (g Generator) Validate(def models.ClassDefinition) error {
	if _, _, err := ParseClock(def.StartTime); err != nil {
		return err
	}
	switch def.ScheduleType {
	case models.ScheduleOneTime:
		if def.ClassDate == nil || def.StartDate != nil || def.EndDate != nil || len(def.RecurringDays) > 0 {
			return fmt.Errorf("%w: one-time class requires class_date only", ErrInvalidSchedule)
		}
	case models.ScheduleWeeklyRecurring:
		if def.ClassDate != nil || def.StartDate == nil || def.EndDate == nil {
			return fmt.Errorf("%w: recurring class requires start_date, end_date and recurring_days", ErrInvalidSchedule)
		}
		if Midnight(*def.EndDate, g.location()).Before(Midnight(*def.StartDate, g.location())) {
			return fmt.Errorf("%w: end_date before start_date", ErrInvalidSchedule)
		}
		for _, day := range def.RecurringDays {
			if _, err := ParseWeekday(day); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, def.ScheduleType)
	}
	return nil
}

// OccursOn reports whether the class has an occurrence on the given calendar day.
func (g Generator) OccursOn(def models.ClassDefinition, day time.Time) bool {
	loc := g.location()
	day = Midnight(day, loc)
	if !def.IsRecurring() {
		return def.ClassDate != nil && Midnight(*def.ClassDate, loc).Equal(day)
	}
	if def.StartDate == nil || def.EndDate == nil {
		return false
	}
	if day.Before(Midnight(*def.StartDate, loc)) || day.After(Midnight(*def.EndDate, loc)) {
		return false
	}
	return NewWeekdaySet(def.RecurringDays).Has(day.Weekday())
}

// Occurrence builds the occurrence of def on day, merging any stored override for that date.
// It does not check OccursOn.
func (g Generator) Occurrence(def models.ClassDefinition, day time.Time, stored OccurrenceIndex) (models.Occurrence, error) {
	day = Midnight(day, g.location())
	start, err := Combine(day, def.StartTime)
	if err != nil {
		return models.Occurrence{}, err
	}
	occ := models.Occurrence{
		ClassID:  def.ID,
		Date:     day,
		TutorID:  def.TutorID,
		StartsAt: start,
		EndsAt:   AddMinutes(start, def.DurationMinutes),
		Status:   models.OccurrenceScheduled,
	}
	if stored != nil {
		if saved, ok := stored.Lookup(def.ID, day); ok {
			occ.Status = saved.Status
			occ.AttendeeIDs = saved.AttendeeIDs
			occ.CreatedAt = saved.CreatedAt
			occ.UpdatedAt = saved.UpdatedAt
		}
	}
	return occ, nil
}

// OneTimeOccurrence returns the implicit occurrence of a one-time class.
func (g Generator) OneTimeOccurrence(def models.ClassDefinition, stored OccurrenceIndex) (models.Occurrence, error) {
	if def.IsRecurring() || def.ClassDate == nil {
		return models.Occurrence{}, fmt.Errorf("%w: not a one-time class", ErrInvalidSchedule)
	}
	return g.Occurrence(def, *def.ClassDate, stored)
}

// ActiveNow returns the running occurrence of a recurring class: today's or, for a session
// that crosses midnight, yesterday's, when now lies inside [start - joinWindow, start + duration].
// Non-scheduled occurrences are never active.
func (g Generator) ActiveNow(def models.ClassDefinition, now time.Time, stored OccurrenceIndex) (*models.Occurrence, error) {
	if !def.IsRecurring() || def.Status != models.ClassStatusScheduled {
		return nil, nil
	}
	today := Today(now, g.location())
	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		if !g.OccursOn(def, day) {
			continue
		}
		occ, err := g.Occurrence(def, day, stored)
		if err != nil {
			return nil, err
		}
		if occ.Status != models.OccurrenceScheduled {
			continue
		}
		opens := AddMinutes(occ.StartsAt, -g.JoinWindow(def))
		if now.Before(opens) || now.After(occ.EndsAt) {
			continue
		}
		return &occ, nil
	}
	return nil, nil
}

// NextOccurrence finds the occurrence a participant should be directed to from now.
//
// One-time classes return themselves when scheduled and starting after now. Recurring classes
// prefer the running occurrence; otherwise the first scheduled pattern date inside
// [startDate, endDate] starting strictly after now is returned, scanning LookaheadDays days
// forward from today. A nil occurrence means none exists within the horizon.
func (g Generator) NextOccurrence(def models.ClassDefinition, now time.Time, stored OccurrenceIndex) (*models.Occurrence, error) {
	if def.Status != models.ClassStatusScheduled {
		return nil, nil
	}
	if !def.IsRecurring() {
		if def.ClassDate == nil {
			return nil, nil
		}
		occ, err := g.OneTimeOccurrence(def, stored)
		if err != nil {
			return nil, err
		}
		if occ.Status != models.OccurrenceScheduled || !occ.StartsAt.After(now) {
			return nil, nil
		}
		return &occ, nil
	}

	active, err := g.ActiveNow(def, now, stored)
	if err != nil || active != nil {
		return active, err
	}
	if def.StartDate == nil || def.EndDate == nil || len(def.RecurringDays) == 0 {
		return nil, nil
	}

	loc := g.location()
	today := Today(now, loc)
	last := Midnight(*def.EndDate, loc)
	for i := 0; i <= g.lookahead(); i++ {
		day := today.AddDate(0, 0, i)
		if day.After(last) {
			break
		}
		if !g.OccursOn(def, day) {
			continue
		}
		occ, err := g.Occurrence(def, day, stored)
		if err != nil {
			return nil, err
		}
		if occ.Status == models.OccurrenceScheduled && occ.StartsAt.After(now) {
			return &occ, nil
		}
	}
	return nil, nil
}

// CountUpcoming counts scheduled occurrences starting strictly after now. Recurring classes are
// counted day by day from today (or the start date, if later) through the end date.
func (g Generator) CountUpcoming(def models.ClassDefinition, now time.Time, stored OccurrenceIndex) (int, error) {
	if def.Status != models.ClassStatusScheduled {
		return 0, nil
	}
	if !def.IsRecurring() {
		next, err := g.NextOccurrence(def, now, stored)
		if err != nil || next == nil {
			return 0, err
		}
		return 1, nil
	}
	if def.StartDate == nil || def.EndDate == nil || len(def.RecurringDays) == 0 {
		return 0, nil
	}

	loc := g.location()
	day := Today(now, loc)
	if first := Midnight(*def.StartDate, loc); first.After(day) {
		day = first
	}
	last := Midnight(*def.EndDate, loc)
	count := 0
	for ; !day.After(last); day = day.AddDate(0, 0, 1) {
		if !g.OccursOn(def, day) {
			continue
		}
		occ, err := g.Occurrence(def, day, stored)
		if err != nil {
			return 0, err
		}
		if occ.Status == models.OccurrenceScheduled && occ.StartsAt.After(now) {
			count++
		}
	}
	return count, nil
}

// Expand materialises every occurrence of def whose date lies in [from, to] into an arena,
// including cancelled and completed ones with their stored status.
func (g Generator) Expand(def models.ClassDefinition, from, to time.Time, stored OccurrenceIndex) (*Arena, error) {
	loc := g.location()
	arena := NewArena()
	first := Midnight(from, loc)
	last := Midnight(to, loc)
	if last.Before(first) {
		return arena, nil
	}

	if !def.IsRecurring() {
		if def.ClassDate == nil {
			return arena, nil
		}
		day := Midnight(*def.ClassDate, loc)
		if day.Before(first) || day.After(last) {
			return arena, nil
		}
		occ, err := g.Occurrence(def, day, stored)
		if err != nil {
			return nil, err
		}
		arena.Put(occ)
		return arena, nil
	}

	if def.StartDate == nil || def.EndDate == nil {
		return arena, nil
	}
	if start := Midnight(*def.StartDate, loc); start.After(first) {
		first = start
	}
	if end := Midnight(*def.EndDate, loc); end.Before(last) {
		last = end
	}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if !g.OccursOn(def, day) {
			continue
		}
		occ, err := g.Occurrence(def, day, stored)
		if err != nil {
			return nil, err
		}
		arena.Put(occ)
	}
	return arena, nil
}

func (g Generator) lookahead() int {
	if g.LookaheadDays <= 0 {
		return DefaultLookaheadDays
	}
	return g.LookaheadDays
}
