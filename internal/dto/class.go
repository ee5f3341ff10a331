package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

// ClassRequest creates or reschedules a class. Dates use YYYY-MM-DD in the scheduling timezone.
type ClassRequest struct {
	Subject           string          `json:"subject" validate:"required,max=120"`
	TutorID           string          `json:"tutor_id" validate:"required"`
	StudentIDs        []string        `json:"student_ids" validate:"dive,required"`
	Capacity          int             `json:"capacity" validate:"gte=1,lte=200"`
	StartTime         string          `json:"start_time" validate:"required,clock"`
	DurationMinutes   int             `json:"duration_minutes" validate:"required,class_duration"`
	ScheduleType      string          `json:"schedule_type" validate:"required,schedule_type"`
	ClassDate         string          `json:"class_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartDate         string          `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate           string          `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	RecurringDays     []string        `json:"recurring_days,omitempty" validate:"dive,weekday"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	JoinWindowMinutes int             `json:"join_window_minutes,omitempty" validate:"omitempty,gte=5,lte=30"`
}

// AvailabilityRequest asks whether a tutor is free for a candidate booking.
type AvailabilityRequest struct {
	TutorID         string `json:"tutor_id" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"required,clock"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,class_duration"`
	IgnoreClassID   string `json:"ignore_class_id,omitempty"`
}

// AvailabilityResponse reports the outcome of an availability check.
type AvailabilityResponse struct {
	Available bool                        `json:"available"`
	Conflicts []models.SchedulingConflict `json:"conflicts,omitempty"`
}

// CancelOccurrenceRequest cancels one dated occurrence.
type CancelOccurrenceRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

// CancelOccurrenceResponse lists what a cancellation touched.
type CancelOccurrenceResponse struct {
	Occurrence    models.Occurrence    `json:"occurrence"`
	Canceled      []models.LedgerEntry `json:"canceled_entries"`
	PaidUnchanged []models.LedgerEntry `json:"paid_entries,omitempty"`
}

// CompleteOccurrenceRequest completes an occurrence and realises its billing.
type CompleteOccurrenceRequest struct {
	PaymentStatus string `json:"payment_status" validate:"omitempty,oneof=unpaid democlass"`
}

// CompleteOccurrenceResponse pairs the completed occurrence with its ledger entries.
type CompleteOccurrenceResponse struct {
	Occurrence models.Occurrence    `json:"occurrence"`
	Entries    []models.LedgerEntry `json:"entries"`
}

// OccurrenceListResponse is the expanded view of a class within a date range.
type OccurrenceListResponse struct {
	ClassID     string              `json:"class_id"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Occurrences []models.Occurrence `json:"occurrences"`
	Upcoming    int                 `json:"upcoming"`
}
