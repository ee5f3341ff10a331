package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

const occurrenceColumns = `class_id, occurrence_date, tutor_id, starts_at, ends_at, status, attendee_ids, created_at, updated_at`

// OccurrenceRepository is the arena table of materialised occurrences keyed by (class_id, occurrence_date).
type OccurrenceRepository struct {
	db *sqlx.DB
}

// NewOccurrenceRepository builds the repository.
func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// Get returns the stored occurrence of a class on a date.
func (r *OccurrenceRepository) Get(ctx context.Context, classID string, date time.Time) (*models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM class_occurrences WHERE class_id = $1 AND occurrence_date = $2`
	var occ models.Occurrence
	if err := r.db.GetContext(ctx, &occ, query, classID, date); err != nil {
		return nil, err
	}
	return &occ, nil
}

// ListByClass returns stored occurrences of a class dated within [from, to].
func (r *OccurrenceRepository) ListByClass(ctx context.Context, classID string, from, to time.Time) ([]models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM class_occurrences WHERE class_id = $1 AND occurrence_date BETWEEN $2 AND $3 ORDER BY occurrence_date ASC`
	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("list class occurrences: %w", err)
	}
	return occurrences, nil
}

// ListForTutor returns stored occurrences of every class taught by the tutor within [from, to].
func (r *OccurrenceRepository) ListForTutor(ctx context.Context, tutorID string, from, to time.Time) ([]models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM class_occurrences WHERE tutor_id = $1 AND occurrence_date BETWEEN $2 AND $3 ORDER BY starts_at ASC`
	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, tutorID, from, to); err != nil {
		return nil, fmt.Errorf("list tutor occurrences: %w", err)
	}
	return occurrences, nil
}

// Upsert stores an occurrence, replacing its status and times but keeping attendees.
func (r *OccurrenceRepository) Upsert(ctx context.Context, occ *models.Occurrence) error {
	now := time.Now().UTC()
	if occ.CreatedAt.IsZero() {
		occ.CreatedAt = now
	}
	occ.UpdatedAt = now

	const query = `
INSERT INTO class_occurrences (class_id, occurrence_date, tutor_id, starts_at, ends_at, status, attendee_ids, created_at, updated_at)
VALUES (:class_id, :occurrence_date, :tutor_id, :starts_at, :ends_at, :status, :attendee_ids, :created_at, :updated_at)
ON CONFLICT (class_id, occurrence_date) DO UPDATE
SET tutor_id = EXCLUDED.tutor_id,
    starts_at = EXCLUDED.starts_at,
    ends_at = EXCLUDED.ends_at,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, occ); err != nil {
		return mapOccurrenceError(err, "upsert occurrence")
	}
	return nil
}

// AddAttendee records a participant on the occurrence, creating the row when the occurrence
// was not materialised yet. Adding the same participant twice is a no-op.
func (r *OccurrenceRepository) AddAttendee(ctx context.Context, occ models.Occurrence, participantID string) error {
	now := time.Now().UTC()
	const query = `
INSERT INTO class_occurrences (class_id, occurrence_date, tutor_id, starts_at, ends_at, status, attendee_ids, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, ARRAY[$7::text], $8, $8)
ON CONFLICT (class_id, occurrence_date) DO UPDATE
SET attendee_ids = CASE WHEN $7::text = ANY(class_occurrences.attendee_ids) THEN class_occurrences.attendee_ids
                        ELSE array_append(class_occurrences.attendee_ids, $7::text) END,
    updated_at = $8`
	if _, err := r.db.ExecContext(ctx, query, occ.ClassID, occ.Date, occ.TutorID, occ.StartsAt, occ.EndsAt, occ.Status, participantID, now); err != nil {
		return mapOccurrenceError(err, "add occurrence attendee")
	}
	return nil
}

func (r *OccurrenceRepository) insertMissing(ctx context.Context, exec sqlx.ExtContext, classID string, occurrences []models.Occurrence) error {
	const query = `
INSERT INTO class_occurrences (class_id, occurrence_date, tutor_id, starts_at, ends_at, status, attendee_ids, created_at, updated_at)
VALUES (:class_id, :occurrence_date, :tutor_id, :starts_at, :ends_at, :status, :attendee_ids, :created_at, :updated_at)
ON CONFLICT (class_id, occurrence_date) DO NOTHING`
	now := time.Now().UTC()
	for i := range occurrences {
		if err := ctx.Err(); err != nil {
			return err
		}
		occ := &occurrences[i]
		occ.ClassID = classID
		if occ.CreatedAt.IsZero() {
			occ.CreatedAt = now
		}
		occ.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, exec, query, occ); err != nil {
			return mapOccurrenceError(err, "insert occurrence")
		}
	}
	return nil
}
