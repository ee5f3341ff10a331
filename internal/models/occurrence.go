package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// OccurrenceStatus is the per-date state of a session occurrence.
type OccurrenceStatus string

const (
	OccurrenceScheduled OccurrenceStatus = "scheduled"
	OccurrenceCompleted OccurrenceStatus = "completed"
	OccurrenceCancelled OccurrenceStatus = "cancelled"
)

// DateLayout is the wire and storage format of occurrence dates.
const DateLayout = "2006-01-02"

// Occurrence is one concrete dated instance of a class. Occurrences are keyed by
// (ClassID, Date); Date is midnight in the scheduling location.
type Occurrence struct {
	ClassID     string           `db:"class_id" json:"class_id"`
	Date        time.Time        `db:"occurrence_date" json:"date"`
	TutorID     string           `db:"tutor_id" json:"tutor_id"`
	StartsAt    time.Time        `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time        `db:"ends_at" json:"ends_at"`
	Status      OccurrenceStatus `db:"status" json:"status"`
	AttendeeIDs pq.StringArray   `db:"attendee_ids" json:"attendee_ids,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Key returns the arena key of the occurrence.
func (o Occurrence) Key() OccurrenceKey {
	return NewOccurrenceKey(o.ClassID, o.Date)
}

// HasAttendee reports whether the participant is on the attendee list.
func (o Occurrence) HasAttendee(participantID string) bool {
	for _, id := range o.AttendeeIDs {
		if id == participantID {
			return true
		}
	}
	return false
}

// OccurrenceKey identifies an occurrence by class and calendar date.
type OccurrenceKey struct {
	ClassID string
	Date    string
}

// NewOccurrenceKey builds a key from a class id and a date.
func NewOccurrenceKey(classID string, date time.Time) OccurrenceKey {
	return OccurrenceKey{ClassID: classID, Date: date.Format(DateLayout)}
}

// String renders the key as classID@date.
func (k OccurrenceKey) String() string {
	return fmt.Sprintf("%s@%s", k.ClassID, k.Date)
}

// OccurrenceRef addresses an occurrence from the outside. Date is optional for one-time classes
// and for join requests that should resolve the current or next session.
type OccurrenceRef struct {
	ClassID string
	Date    *time.Time
}

// SchedulingConflict describes an existing occurrence that overlaps a candidate booking.
type SchedulingConflict struct {
	ClassID       string    `json:"class_id"`
	TutorID       string    `json:"tutor_id"`
	Date          string    `json:"date"`
	ExistingStart time.Time `json:"existing_start"`
	ExistingEnd   time.Time `json:"existing_end"`
	RequestStart  time.Time `json:"request_start"`
	RequestEnd    time.Time `json:"request_end"`
}

// SchedulingConflictError is returned when a candidate booking overlaps an existing one.
type SchedulingConflictError struct {
	Message   string               `json:"message"`
	Conflicts []SchedulingConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *SchedulingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
