package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

func newTestClassService(classes *classStoreStub, occurrences *occurrenceStoreStub, billing *billingHookStub, now string) *ClassService {
	svc := NewClassService(classes, occurrences, billing, ClassServiceConfig{GenerationHorizonDays: 90}, nil, validator.New(), zap.NewNop())
	svc.now = fixedClock(now)
	return svc
}

func oneTimeRequest(date, start string, duration int) dto.ClassRequest {
	return dto.ClassRequest{
		Subject:         "Algebra",
		TutorID:         "tutor-1",
		StudentIDs:      []string{"student-1", "student-2"},
		Capacity:        5,
		StartTime:       start,
		DurationMinutes: duration,
		ScheduleType:    string(models.ScheduleOneTime),
		ClassDate:       date,
		Amount:          decimal.RequireFromString("100"),
	}
}

func TestClassServiceCreateOneTime(t *testing.T) {
	classes := newClassStore()
	svc := newTestClassService(classes, newOccurrenceStore(), &billingHookStub{}, "2024-01-08 09:00")

	req := oneTimeRequest("2024-01-10", "14:00", 45)
	req.StudentIDs = []string{"student-1", "student-2", "student-1"}
	req.Currency = "usd"
	class, err := svc.Create(context.Background(), req, "tutor-1")
	require.NoError(t, err)

	assert.NotEmpty(t, class.ID)
	assert.Equal(t, "USD", class.Currency)
	assert.Equal(t, []string{"student-1", "student-2"}, []string(class.StudentIDs))
	assert.Equal(t, models.ClassStatusScheduled, class.Status)
	require.Len(t, classes.created, 1)
	assert.Equal(t, mustAt("2024-01-10 14:00"), classes.created[0].StartsAt)
	assert.Equal(t, mustAt("2024-01-10 14:45"), classes.created[0].EndsAt)
}

func TestClassServiceCreateRecurringMaterialisesWindow(t *testing.T) {
	classes := newClassStore()
	svc := newTestClassService(classes, newOccurrenceStore(), &billingHookStub{}, "2024-01-02 00:00")

	_, err := svc.Create(context.Background(), dto.ClassRequest{
		Subject:         "Physics",
		TutorID:         "tutor-1",
		StudentIDs:      []string{"student-1"},
		Capacity:        3,
		StartTime:       "9:00",
		DurationMinutes: 60,
		ScheduleType:    string(models.ScheduleWeeklyRecurring),
		StartDate:       "2024-01-01",
		EndDate:         "2024-01-31",
		RecurringDays:   []string{"Monday", "wednesday"},
		Amount:          decimal.RequireFromString("40"),
	}, "tutor-1")
	require.NoError(t, err)

	require.Len(t, classes.created, 9)
	assert.Equal(t, mustDay("2024-01-03"), classes.created[0].Date)
	assert.Equal(t, mustDay("2024-01-31"), classes.created[8].Date)
}

func TestClassServiceCreateRejectsOverlap(t *testing.T) {
	existing := oneTimeClass("existing", "tutor-1", "2024-01-10", "14:00", 45)
	classes := newClassStore(existing)
	svc := newTestClassService(classes, newOccurrenceStore(), &billingHookStub{}, "2024-01-08 09:00")

	_, err := svc.Create(context.Background(), oneTimeRequest("2024-01-10", "14:30", 30), "tutor-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrSchedulingConflict)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	conflicts, ok := appErr.Details.([]models.SchedulingConflict)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "existing", conflicts[0].ClassID)

	_, err = svc.Create(context.Background(), oneTimeRequest("2024-01-10", "14:45", 30), "tutor-1")
	require.NoError(t, err)
}

func TestClassServiceCreateMapsStoreOverlap(t *testing.T) {
	classes := newClassStore()
	classes.createErr = fmt.Errorf("insert occurrence: %w", repository.ErrOccurrenceOverlap)
	svc := newTestClassService(classes, newOccurrenceStore(), &billingHookStub{}, "2024-01-08 09:00")

	_, err := svc.Create(context.Background(), oneTimeRequest("2024-01-10", "14:00", 45), "tutor-1")
	assert.ErrorIs(t, err, appErrors.ErrSchedulingConflict)
}

func TestClassServiceCreateValidation(t *testing.T) {
	cases := map[string]struct {
		mutate func(*dto.ClassRequest)
		want   *appErrors.Error
	}{
		"malformed clock": {
			mutate: func(r *dto.ClassRequest) { r.StartTime = "25:00" },
			want:   appErrors.ErrInvalidTimeFormat,
		},
		"past class": {
			mutate: func(r *dto.ClassRequest) { r.ClassDate = "2024-01-05" },
			want:   appErrors.ErrValidation,
		},
		"mixed date fields": {
			mutate: func(r *dto.ClassRequest) { r.StartDate = "2024-01-10" },
			want:   appErrors.ErrValidation,
		},
		"over capacity": {
			mutate: func(r *dto.ClassRequest) { r.Capacity = 1 },
			want:   appErrors.ErrValidation,
		},
		"unsupported duration": {
			mutate: func(r *dto.ClassRequest) { r.DurationMinutes = 300 },
			want:   appErrors.ErrValidation,
		},
		"negative amount": {
			mutate: func(r *dto.ClassRequest) { r.Amount = decimal.RequireFromString("-1") },
			want:   appErrors.ErrValidation,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestClassService(newClassStore(), newOccurrenceStore(), &billingHookStub{}, "2024-01-08 09:00")
			req := oneTimeRequest("2024-01-10", "14:00", 45)
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req, "tutor-1")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClassServiceUpdateRepricesOnPriceChange(t *testing.T) {
	current := oneTimeClass("class-1", "tutor-1", "2024-01-10", "14:00", 45, "student-1")
	classes := newClassStore(current)
	billing := &billingHookStub{}
	svc := newTestClassService(classes, newOccurrenceStore(), billing, "2024-01-08 09:00")

	req := oneTimeRequest("2024-01-10", "14:00", 45)
	_, err := svc.Update(context.Background(), "class-1", req, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, billing.repricedFor)

	req.Amount = decimal.RequireFromString("120")
	updated, err := svc.Update(context.Background(), "class-1", req, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1"}, billing.repricedFor)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("120")))
	assert.Equal(t, mustDay("2024-01-08"), classes.updatedFrom)
	require.Len(t, classes.updated, 1)
}

func TestClassServiceUpdateMovesClassToNewTutor(t *testing.T) {
	current := oneTimeClass("class-1", "tutor-1", "2024-01-10", "14:00", 45, "student-1")
	busy := oneTimeClass("class-9", "tutor-2", "2024-01-10", "14:30", 60)
	classes := newClassStore(current, busy)
	svc := newTestClassService(classes, newOccurrenceStore(), &billingHookStub{}, "2024-01-08 09:00")

	req := oneTimeRequest("2024-01-10", "14:00", 45)
	req.TutorID = "tutor-2"
	_, err := svc.Update(context.Background(), "class-1", req, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrSchedulingConflict)
	assert.Equal(t, "tutor-1", classes.items["class-1"].TutorID)

	req.StartTime = "16:00"
	updated, err := svc.Update(context.Background(), "class-1", req, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "tutor-2", updated.TutorID)
	assert.Equal(t, "tutor-2", classes.items["class-1"].TutorID)
	require.Len(t, classes.updated, 1)
	assert.Equal(t, "tutor-2", classes.updated[0].TutorID)
}

func TestClassServiceUpdateCompletedClass(t *testing.T) {
	current := oneTimeClass("class-1", "tutor-1", "2024-01-10", "14:00", 45)
	current.Status = models.ClassStatusCompleted
	svc := newTestClassService(newClassStore(current), newOccurrenceStore(), &billingHookStub{}, "2024-01-08 09:00")

	_, err := svc.Update(context.Background(), "class-1", oneTimeRequest("2024-01-11", "14:00", 45), "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = svc.Update(context.Background(), "missing", oneTimeRequest("2024-01-11", "14:00", 45), "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestClassServiceNextOccurrence(t *testing.T) {
	class := recurringClass("class-1", "tutor-1", "2024-01-01", "2024-01-31", "09:00", 60, []string{"monday", "wednesday"})
	occurrences := newOccurrenceStore()
	svc := newTestClassService(newClassStore(class), occurrences, &billingHookStub{}, "2024-01-02 00:00")

	next, err := svc.NextOccurrence(context.Background(), "class-1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, mustDay("2024-01-03"), next.Date)

	occurrences.items[models.NewOccurrenceKey("class-1", mustDay("2024-01-03"))] = models.Occurrence{
		ClassID: "class-1", Date: mustDay("2024-01-03"), TutorID: "tutor-1", Status: models.OccurrenceCancelled,
	}
	next, err = svc.NextOccurrence(context.Background(), "class-1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, mustDay("2024-01-08"), next.Date)
}

func TestClassServiceListOccurrences(t *testing.T) {
	class := recurringClass("class-1", "tutor-1", "2024-01-01", "2024-01-31", "09:00", 60, []string{"monday", "wednesday"})
	occurrences := newOccurrenceStore(models.Occurrence{
		ClassID: "class-1", Date: mustDay("2024-01-03"), TutorID: "tutor-1", Status: models.OccurrenceCancelled,
	})
	svc := newTestClassService(newClassStore(class), occurrences, &billingHookStub{}, "2024-01-02 00:00")

	resp, err := svc.ListOccurrences(context.Background(), "class-1", "2024-01-01", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, resp.Occurrences, 4)
	assert.Equal(t, mustDay("2024-01-01"), resp.Occurrences[0].Date)
	assert.Equal(t, models.OccurrenceCancelled, resp.Occurrences[1].Status)
	assert.Equal(t, 8, resp.Upcoming)

	_, err = svc.ListOccurrences(context.Background(), "class-1", "2024-01-10", "2024-01-01")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestClassServiceCheckAvailability(t *testing.T) {
	existing := oneTimeClass("existing", "tutor-1", "2024-01-10", "14:00", 45)
	svc := newTestClassService(newClassStore(existing), newOccurrenceStore(), &billingHookStub{}, "2024-01-08 09:00")

	busy, err := svc.CheckAvailability(context.Background(), dto.AvailabilityRequest{
		TutorID: "tutor-1", Date: "2024-01-10", StartTime: "14:30", DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.False(t, busy.Available)
	assert.Len(t, busy.Conflicts, 1)

	free, err := svc.CheckAvailability(context.Background(), dto.AvailabilityRequest{
		TutorID: "tutor-1", Date: "2024-01-10", StartTime: "14:45", DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.True(t, free.Available)

	_, err = svc.CheckAvailability(context.Background(), dto.AvailabilityRequest{
		TutorID: "tutor-1", Date: "2024-01-10", StartTime: "1430", DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidTimeFormat)
}

func TestClassServiceCancelOccurrence(t *testing.T) {
	class := recurringClass("class-1", "tutor-1", "2024-01-01", "2024-01-31", "09:00", 60, []string{"monday", "wednesday"}, "student-1")
	occurrences := newOccurrenceStore(models.Occurrence{
		ClassID: "class-1", Date: mustDay("2024-01-03"), TutorID: "tutor-1", Status: models.OccurrenceCompleted,
	})
	billing := &billingHookStub{paid: []models.LedgerEntry{{ID: "paid-1", Status: models.LedgerPaid}}}
	svc := newTestClassService(newClassStore(class), occurrences, billing, "2024-01-02 00:00")

	resp, err := svc.CancelOccurrence(context.Background(), "class-1", "2024-01-08", dto.CancelOccurrenceRequest{Reason: "tutor sick"}, "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceCancelled, resp.Occurrence.Status)
	assert.Len(t, resp.Canceled, 1)
	assert.Len(t, resp.PaidUnchanged, 1)
	stored := occurrences.items[models.NewOccurrenceKey("class-1", mustDay("2024-01-08"))]
	assert.Equal(t, models.OccurrenceCancelled, stored.Status)
	assert.Equal(t, mustAt("2024-01-08 09:00"), stored.StartsAt)
	assert.Equal(t, []models.OccurrenceKey{models.NewOccurrenceKey("class-1", mustDay("2024-01-08"))}, billing.canceled)

	_, err = svc.CancelOccurrence(context.Background(), "class-1", "2024-01-09", dto.CancelOccurrenceRequest{}, "tutor-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.CancelOccurrence(context.Background(), "class-1", "2024-01-03", dto.CancelOccurrenceRequest{}, "tutor-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestClassServiceCompleteOccurrence(t *testing.T) {
	class := oneTimeClass("class-1", "tutor-1", "2024-01-10", "14:00", 45, "student-1")
	classes := newClassStore(class)
	occurrences := newOccurrenceStore()
	billing := &billingHookStub{}

	early := newTestClassService(classes, occurrences, billing, "2024-01-10 13:00")
	_, err := early.CompleteOccurrence(context.Background(), "class-1", "2024-01-10", dto.CompleteOccurrenceRequest{}, "tutor-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	svc := newTestClassService(classes, occurrences, billing, "2024-01-10 15:00")
	resp, err := svc.CompleteOccurrence(context.Background(), "class-1", "2024-01-10", dto.CompleteOccurrenceRequest{}, "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceCompleted, resp.Occurrence.Status)
	assert.Len(t, resp.Entries, 1)
	assert.Equal(t, models.ClassStatusCompleted, classes.statuses["class-1"])
	assert.Equal(t, []models.LedgerStatus{models.LedgerUnpaid}, billing.realized)

	_, err = svc.CompleteOccurrence(context.Background(), "class-1", "2024-01-10", dto.CompleteOccurrenceRequest{PaymentStatus: "paid"}, "tutor-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestClassServiceCompleteCancelledOccurrence(t *testing.T) {
	class := recurringClass("class-1", "tutor-1", "2024-01-01", "2024-01-31", "09:00", 60, []string{"monday"}, "student-1")
	occurrences := newOccurrenceStore(models.Occurrence{
		ClassID: "class-1", Date: mustDay("2024-01-08"), TutorID: "tutor-1", Status: models.OccurrenceCancelled,
	})
	billing := &billingHookStub{}
	svc := newTestClassService(newClassStore(class), occurrences, billing, "2024-01-08 12:00")

	_, err := svc.CompleteOccurrence(context.Background(), "class-1", "2024-01-08", dto.CompleteOccurrenceRequest{PaymentStatus: "democlass"}, "tutor-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Empty(t, billing.realized)
}
