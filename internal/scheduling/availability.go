package scheduling

import (
	"time"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

// Candidate describes a booking a tutor wants to take.
type Candidate struct {
	TutorID         string
	Date            time.Time
	StartTime       string
	DurationMinutes int
	// IgnoreClassID skips the class being rescheduled.
	IgnoreClassID string
}

// AvailabilityChecker rejects bookings that overlap a tutor's existing occurrences.
// The check is advisory: the storage layer's exclusion constraint is the final guard.
type AvailabilityChecker struct {
	gen Generator
}

// NewAvailabilityChecker builds a checker using the generator's location and rules.
func NewAvailabilityChecker(gen Generator) AvailabilityChecker {
	return AvailabilityChecker{gen: gen}
}

// IsAvailable reports whether the candidate fits around the existing classes.
func (c AvailabilityChecker) IsAvailable(candidate Candidate, existing []models.ClassDefinition, stored OccurrenceIndex) (bool, error) {
	conflicts, err := c.Conflicts(candidate, existing, stored)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts lists every existing non-cancelled occurrence of the same tutor that lands on the
// candidate date and overlaps the candidate interval.
func (c AvailabilityChecker) Conflicts(candidate Candidate, existing []models.ClassDefinition, stored OccurrenceIndex) ([]models.SchedulingConflict, error) {
	day := Midnight(candidate.Date, c.gen.location())
	start, err := Combine(day, candidate.StartTime)
	if err != nil {
		return nil, err
	}
	end := AddMinutes(start, candidate.DurationMinutes)

	var conflicts []models.SchedulingConflict
	for _, def := range existing {
		if def.TutorID != candidate.TutorID {
			continue
		}
		if candidate.IgnoreClassID != "" && def.ID == candidate.IgnoreClassID {
			continue
		}
		if !c.gen.OccursOn(def, day) {
			continue
		}
		occ, err := c.gen.Occurrence(def, day, stored)
		if err != nil {
			return nil, err
		}
		if occ.Status == models.OccurrenceCancelled {
			continue
		}
		if Overlaps(start, end, occ.StartsAt, occ.EndsAt) {
			conflicts = append(conflicts, models.SchedulingConflict{
				ClassID:       def.ID,
				TutorID:       def.TutorID,
				Date:          day.Format(models.DateLayout),
				ExistingStart: occ.StartsAt,
				ExistingEnd:   occ.EndsAt,
				RequestStart:  start,
				RequestEnd:    end,
			})
		}
	}
	return conflicts, nil
}

// ClassConflicts checks every occurrence of def dated within [from, to] against the existing
// classes. One-time classes check their single date.
func (c AvailabilityChecker) ClassConflicts(def models.ClassDefinition, from, to time.Time, existing []models.ClassDefinition, stored OccurrenceIndex) ([]models.SchedulingConflict, error) {
	arena, err := c.gen.Expand(def, from, to, nil)
	if err != nil {
		return nil, err
	}
	var conflicts []models.SchedulingConflict
	for _, occ := range arena.Sorted() {
		found, err := c.Conflicts(Candidate{
			TutorID:         def.TutorID,
			Date:            occ.Date,
			StartTime:       def.StartTime,
			DurationMinutes: def.DurationMinutes,
			IgnoreClassID:   def.ID,
		}, existing, stored)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, found...)
	}
	return conflicts, nil
}
