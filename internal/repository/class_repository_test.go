package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleClass() *models.ClassDefinition {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	return &models.ClassDefinition{
		Subject:           "Algebra",
		TutorID:           "tutor-1",
		StudentIDs:        pq.StringArray{"student-1"},
		Capacity:          5,
		StartTime:         "14:00",
		DurationMinutes:   45,
		ScheduleType:      models.ScheduleOneTime,
		ClassDate:         &day,
		Amount:            decimal.NewFromInt(100),
		Currency:          "USD",
		JoinWindowMinutes: 10,
		Status:            models.ClassStatusScheduled,
		CreatedBy:         "tutor-1",
	}
}

func sampleOccurrence() models.Occurrence {
	return models.Occurrence{
		Date:     time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		TutorID:  "tutor-1",
		StartsAt: time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2024, 5, 10, 14, 45, 0, 0, time.UTC),
		Status:   models.OccurrenceScheduled,
	}
}

func TestClassRepositoryCreateWithOccurrences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classes")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_occurrences")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	class := sampleClass()
	occurrences := []models.Occurrence{sampleOccurrence()}
	require.NoError(t, repo.Create(context.Background(), class, occurrences))
	assert.NotEmpty(t, class.ID)
	assert.Equal(t, class.ID, occurrences[0].ClassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateMapsExclusionViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classes")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_occurrences")).
		WillReturnError(&pq.Error{Code: "23P01", Constraint: constraintOccurrenceOverlap})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleClass(), []models.Occurrence{sampleOccurrence()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOccurrenceOverlap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateReplacesFutureOccurrences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	class := sampleClass()
	class.ID = "class-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET tutor_id = $1, subject = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_occurrences WHERE class_id = $1 AND occurrence_date >= $2 AND status = 'scheduled'")).
		WithArgs("class-1", from).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (class_id, occurrence_date) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), class, from, []models.Occurrence{sampleOccurrence()}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListForTutor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "subject", "tutor_id", "student_ids", "capacity", "start_time", "duration_minutes", "schedule_type", "class_date", "start_date", "end_date", "recurring_days", "amount", "currency", "join_window_minutes", "status", "created_by", "created_at", "updated_at"}).
		AddRow("class-1", "Algebra", "tutor-1", "{student-1}", 5, "14:00", 45, "one-time", from, nil, nil, nil, "100.00", "USD", 10, "scheduled", "tutor-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes\nWHERE tutor_id = $1 AND status = 'scheduled'")).
		WithArgs("tutor-1", from, to).
		WillReturnRows(rows)

	classes, err := repo.ListForTutor(context.Background(), "tutor-1", from, to)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, pq.StringArray{"student-1"}, classes[0].StudentIDs)
	assert.Equal(t, "100", classes[0].Amount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdatePersistsTutorChange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	class := sampleClass()
	class.ID = "class-1"
	class.TutorID = "tutor-2"
	occ := sampleOccurrence()
	occ.TutorID = "tutor-2"

	args := []driver.Value{"tutor-2"}
	for i := 0; i < 15; i++ {
		args = append(args, sqlmock.AnyArg())
	}
	args = append(args, "class-1")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET tutor_id = $1")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_occurrences")).
		WithArgs("class-1", from).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (class_id, occurrence_date) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), class, from, []models.Occurrence{occ}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
