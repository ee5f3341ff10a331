package scheduling

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	v := date(y, m, d)
	return &v
}

func recurringClass() models.ClassDefinition {
	return models.ClassDefinition{
		ID:                "class-rec",
		TutorID:           "tutor-1",
		StudentIDs:        pq.StringArray{"student-1"},
		StartTime:         "10:00",
		DurationMinutes:   60,
		ScheduleType:      models.ScheduleWeeklyRecurring,
		StartDate:         datePtr(2024, time.January, 1),
		EndDate:           datePtr(2024, time.January, 31),
		RecurringDays:     pq.StringArray{"monday", "wednesday"},
		JoinWindowMinutes: 15,
		Status:            models.ClassStatusScheduled,
	}
}

func oneTimeClass(day time.Time) models.ClassDefinition {
	return models.ClassDefinition{
		ID:                "class-once",
		TutorID:           "tutor-1",
		StudentIDs:        pq.StringArray{"student-1"},
		StartTime:         "14:00",
		DurationMinutes:   45,
		ScheduleType:      models.ScheduleOneTime,
		ClassDate:         &day,
		JoinWindowMinutes: 10,
		Status:            models.ClassStatusScheduled,
	}
}

func testGenerator() Generator {
	return NewGenerator(14, 15, time.UTC)
}

func TestNextOccurrenceRecurringFirstWednesday(t *testing.T) {
	gen := testGenerator()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	next, err := gen.NextOccurrence(recurringClass(), now, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 3), next.Date)
	assert.Equal(t, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), next.StartsAt)
	assert.Equal(t, time.Date(2024, 1, 3, 11, 0, 0, 0, time.UTC), next.EndsAt)
}

func TestCountUpcomingMatchesCalendar(t *testing.T) {
	gen := testGenerator()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	// January 2024: Mondays 1, 8, 15, 22, 29; Wednesdays 3, 10, 17, 24, 31.
	// Strictly after Jan 2 00:00: 8, 15, 22, 29 and 3, 10, 17, 24, 31.
	expected := []int{3, 8, 10, 15, 17, 22, 24, 29, 31}

	count, err := gen.CountUpcoming(recurringClass(), now, nil)
	require.NoError(t, err)
	assert.Equal(t, len(expected), count)

	arena, err := gen.Expand(recurringClass(), now, date(2024, time.January, 31), nil)
	require.NoError(t, err)
	var days []int
	for _, occ := range arena.Sorted() {
		days = append(days, occ.Date.Day())
	}
	assert.Equal(t, expected, days)
}

func TestCountUpcomingExcludesTodayAlreadyStarted(t *testing.T) {
	gen := testGenerator()
	now := time.Date(2024, 1, 3, 10, 30, 0, 0, time.UTC)

	count, err := gen.CountUpcoming(recurringClass(), now, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestNextOccurrencePrefersActiveToday(t *testing.T) {
	gen := testGenerator()
	now := time.Date(2024, 1, 3, 10, 30, 0, 0, time.UTC)

	next, err := gen.NextOccurrence(recurringClass(), now, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 3), next.Date)

	after := time.Date(2024, 1, 3, 11, 1, 0, 0, time.UTC)
	next, err = gen.NextOccurrence(recurringClass(), after, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 8), next.Date)
}

func TestNextOccurrenceRespectsFutureStartDate(t *testing.T) {
	gen := testGenerator()
	def := recurringClass()
	def.StartDate = datePtr(2024, time.January, 8)
	def.EndDate = datePtr(2024, time.March, 31)

	next, err := gen.NextOccurrence(def, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 8), next.Date)
}

func TestNextOccurrenceBeyondHorizonFromNow(t *testing.T) {
	gen := testGenerator()
	def := recurringClass()
	def.StartDate = datePtr(2024, time.March, 1)
	def.EndDate = datePtr(2024, time.March, 31)

	next, err := gen.NextOccurrence(def, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Nil(t, next)

	next, err = gen.NextOccurrence(def, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.March, 4), next.Date)
}

func TestNextOccurrenceSessionCrossingMidnight(t *testing.T) {
	gen := testGenerator()
	def := recurringClass()
	def.StartTime = "23:30"
	def.RecurringDays = pq.StringArray{"monday"}

	next, err := gen.NextOccurrence(def, time.Date(2024, 1, 2, 0, 10, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 1), next.Date)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC), next.EndsAt)

	next, err = gen.NextOccurrence(def, time.Date(2024, 1, 2, 0, 31, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 8), next.Date)

	cancelled := NewArena(models.Occurrence{ClassID: "class-rec", Date: date(2024, time.January, 1), Status: models.OccurrenceCancelled})
	next, err = gen.NextOccurrence(def, time.Date(2024, 1, 2, 0, 10, 0, 0, time.UTC), cancelled)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 8), next.Date)
}

func TestNextOccurrenceSkipsCancelled(t *testing.T) {
	gen := testGenerator()
	stored := NewArena(models.Occurrence{ClassID: "class-rec", Date: date(2024, time.January, 3), Status: models.OccurrenceCancelled})
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	next, err := gen.NextOccurrence(recurringClass(), now, stored)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 8), next.Date)

	count, err := gen.CountUpcoming(recurringClass(), now, stored)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestRecurringEdgeCasesYieldNothing(t *testing.T) {
	gen := testGenerator()
	now := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	ended := recurringClass()
	next, err := gen.NextOccurrence(ended, now, nil)
	require.NoError(t, err)
	assert.Nil(t, next)
	count, err := gen.CountUpcoming(ended, now, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	noDays := recurringClass()
	noDays.RecurringDays = nil
	next, err = gen.NextOccurrence(noDays, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Nil(t, next)
	count, err = gen.CountUpcoming(noDays, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNextOccurrenceHorizon(t *testing.T) {
	gen := NewGenerator(3, 15, time.UTC)
	def := recurringClass()
	def.RecurringDays = pq.StringArray{"friday"}

	// Tuesday Jan 2 + 3 days reaches Friday Jan 5.
	next, err := gen.NextOccurrence(def, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, date(2024, time.January, 5), next.Date)

	// Saturday Jan 6 + 3 days stops at Tuesday Jan 9.
	next, err = gen.NextOccurrence(def, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestOneTimeNextOccurrence(t *testing.T) {
	gen := testGenerator()
	def := oneTimeClass(date(2024, time.May, 10))

	next, err := gen.NextOccurrence(def, time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC), next.StartsAt)

	count, err := gen.CountUpcoming(def, time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	completed := def
	completed.Status = models.ClassStatusCompleted
	next, err = gen.NextOccurrence(completed, time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestOneTimeInPastHasNoNextOccurrence(t *testing.T) {
	gen := testGenerator()
	def := oneTimeClass(date(2024, time.May, 10))

	next, err := gen.NextOccurrence(def, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Nil(t, next)

	count, err := gen.CountUpcoming(def, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNextOccurrenceInvalidStartTime(t *testing.T) {
	gen := testGenerator()
	def := recurringClass()
	def.StartTime = "25:00"

	_, err := gen.NextOccurrence(def, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestValidate(t *testing.T) {
	gen := testGenerator()
	require.NoError(t, gen.Validate(recurringClass()))
	require.NoError(t, gen.Validate(oneTimeClass(date(2024, time.May, 10))))

	mixed := recurringClass()
	mixed.ClassDate = datePtr(2024, time.January, 3)
	assert.ErrorIs(t, gen.Validate(mixed), ErrInvalidSchedule)

	reversed := recurringClass()
	reversed.EndDate = datePtr(2023, time.December, 1)
	assert.ErrorIs(t, gen.Validate(reversed), ErrInvalidSchedule)

	badDay := recurringClass()
	badDay.RecurringDays = pq.StringArray{"funday"}
	assert.ErrorIs(t, gen.Validate(badDay), ErrInvalidWeekday)

	badClock := oneTimeClass(date(2024, time.May, 10))
	badClock.StartTime = "2pm"
	assert.ErrorIs(t, gen.Validate(badClock), ErrInvalidTimeFormat)
}
