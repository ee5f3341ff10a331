package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ScheduleType distinguishes single sessions from weekly patterns.
type ScheduleType string

const (
	ScheduleOneTime         ScheduleType = "one-time"
	ScheduleWeeklyRecurring ScheduleType = "weekly-recurring"
)

// ClassStatus captures the lifecycle of a class definition.
type ClassStatus string

const (
	ClassStatusScheduled ClassStatus = "scheduled"
	ClassStatusCompleted ClassStatus = "completed"
)

// ClassDefinition is the schedule template of a tutoring class.
//
// Exactly one of ClassDate (one-time) or StartDate/EndDate/RecurringDays (weekly-recurring)
// is populated, matching ScheduleType.
type ClassDefinition struct {
	ID                string          `db:"id" json:"id"`
	Subject           string          `db:"subject" json:"subject"`
	TutorID           string          `db:"tutor_id" json:"tutor_id"`
	StudentIDs        pq.StringArray  `db:"student_ids" json:"student_ids"`
	Capacity          int             `db:"capacity" json:"capacity"`
	StartTime         string          `db:"start_time" json:"start_time"`
	DurationMinutes   int             `db:"duration_minutes" json:"duration_minutes"`
	ScheduleType      ScheduleType    `db:"schedule_type" json:"schedule_type"`
	ClassDate         *time.Time      `db:"class_date" json:"class_date,omitempty"`
	StartDate         *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate           *time.Time      `db:"end_date" json:"end_date,omitempty"`
	RecurringDays     pq.StringArray  `db:"recurring_days" json:"recurring_days,omitempty"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Currency          string          `db:"currency" json:"currency"`
	JoinWindowMinutes int             `db:"join_window_minutes" json:"join_window_minutes"`
	Status            ClassStatus     `db:"status" json:"status"`
	CreatedBy         string          `db:"created_by" json:"created_by"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// IsRecurring reports whether the class follows a weekly pattern.
func (c ClassDefinition) IsRecurring() bool {
	return c.ScheduleType == ScheduleWeeklyRecurring
}

// HasStudent reports whether the student is enrolled in the class.
func (c ClassDefinition) HasStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TutorID   string
	StudentID string
	Status    ClassStatus
	Page      int
	PageSize  int
}
