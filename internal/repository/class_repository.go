package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/pkg/database"
)

const classColumns = `id, subject, tutor_id, student_ids, capacity, start_time, duration_minutes, schedule_type, class_date, start_date, end_date, recurring_days, amount, currency, join_window_minutes, status, created_by, created_at, updated_at`

// ClassRepository manages persistence for class definitions and their materialised occurrences.
type ClassRepository struct {
	db          *sqlx.DB
	occurrences *OccurrenceRepository
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db, occurrences: NewOccurrenceRepository(db)}
}

// FindByID returns a class definition by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDefinition, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	var class models.ClassDefinition
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListForTutor returns the tutor's scheduled classes whose dates intersect [from, to].
func (r *ClassRepository) ListForTutor(ctx context.Context, tutorID string, from, to time.Time) ([]models.ClassDefinition, error) {
	query := `SELECT ` + classColumns + ` FROM classes
WHERE tutor_id = $1 AND status = 'scheduled'
AND ((schedule_type = 'one-time' AND class_date BETWEEN $2 AND $3)
  OR (schedule_type = 'weekly-recurring' AND start_date <= $3 AND end_date >= $2))
ORDER BY created_at ASC`
	var classes []models.ClassDefinition
	if err := r.db.SelectContext(ctx, &classes, query, tutorID, from, to); err != nil {
		return nil, fmt.Errorf("list tutor classes: %w", err)
	}
	return classes, nil
}

// Create persists a class and its materialised occurrences atomically. The tutor exclusion
// constraint on occurrences surfaces as ErrOccurrenceOverlap.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassDefinition, occurrences []models.Occurrence) (err error) {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create class: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO classes (id, subject, tutor_id, student_ids, capacity, start_time, duration_minutes, schedule_type, class_date, start_date, end_date, recurring_days, amount, currency, join_window_minutes, status, created_by, created_at, updated_at)
VALUES (:id, :subject, :tutor_id, :student_ids, :capacity, :start_time, :duration_minutes, :schedule_type, :class_date, :start_date, :end_date, :recurring_days, :amount, :currency, :join_window_minutes, :status, :created_by, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	if err = r.occurrences.insertMissing(ctx, tx, class.ID, occurrences); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create class: %w", err)
	}
	return nil
}

// Update rewrites a class, tutor included, and replaces its scheduled occurrences dated on or after from.
// Cancelled and completed occurrences are kept as they are.
func (r *ClassRepository) Update(ctx context.Context, class *models.ClassDefinition, from time.Time, occurrences []models.Occurrence) (err error) {
	class.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update class: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE classes SET tutor_id = :tutor_id, subject = :subject, student_ids = :student_ids, capacity = :capacity, start_time = :start_time, duration_minutes = :duration_minutes, schedule_type = :schedule_type, class_date = :class_date, start_date = :start_date, end_date = :end_date, recurring_days = :recurring_days, amount = :amount, currency = :currency, join_window_minutes = :join_window_minutes, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM class_occurrences WHERE class_id = $1 AND occurrence_date >= $2 AND status = 'scheduled'`, class.ID, from); err != nil {
		return fmt.Errorf("clear future occurrences: %w", err)
	}
	if err = r.occurrences.insertMissing(ctx, tx, class.ID, occurrences); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update class: %w", err)
	}
	return nil
}

// SetStatus changes the lifecycle status of a class.
func (r *ClassRepository) SetStatus(ctx context.Context, id string, status models.ClassStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE classes SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update class status: %w", err)
	}
	return nil
}

func mapOccurrenceError(err error, action string) error {
	if database.IsExclusionViolation(err, constraintOccurrenceOverlap) {
		return fmt.Errorf("%s: %w", action, ErrOccurrenceOverlap)
	}
	return fmt.Errorf("%s: %w", action, err)
}
