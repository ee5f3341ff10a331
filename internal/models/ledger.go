package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerStatus captures the billing state of a ledger entry.
type LedgerStatus string

const (
	LedgerUnpaid    LedgerStatus = "unpaid"
	LedgerPaid      LedgerStatus = "paid"
	LedgerDemoclass LedgerStatus = "democlass"
	LedgerVoid      LedgerStatus = "void"
	LedgerCanceled  LedgerStatus = "canceled"
)

// Active reports whether the status participates in the (class, date, student) uniqueness rule.
func (s LedgerStatus) Active() bool {
	return s != LedgerVoid && s != LedgerCanceled
}

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// Discount is one discount applied to a ledger entry, in application order.
type Discount struct {
	Kind      DiscountKind    `json:"kind"`
	Value     decimal.Decimal `json:"value"`
	Applied   decimal.Decimal `json:"applied"`
	Reason    string          `json:"reason"`
	AppliedBy string          `json:"applied_by"`
	AppliedAt time.Time       `json:"applied_at"`
}

// Adjustment is a signed manual correction to a ledger entry.
type Adjustment struct {
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	AppliedBy string          `json:"applied_by"`
	AppliedAt time.Time       `json:"applied_at"`
}

// Discounts persists as JSONB.
type Discounts []Discount

// Value marshals discounts to JSON for persistence.
func (d Discounts) Value() (driver.Value, error) {
	if d == nil {
		d = Discounts{}
	}
	data, err := json.Marshal([]Discount(d))
	if err != nil {
		return nil, fmt.Errorf("marshal discounts: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into discounts.
func (d *Discounts) Scan(value interface{}) error {
	return scanJSON(value, d)
}

// Adjustments persists as JSONB.
type Adjustments []Adjustment

// Value marshals adjustments to JSON for persistence.
func (a Adjustments) Value() (driver.Value, error) {
	if a == nil {
		a = Adjustments{}
	}
	data, err := json.Marshal([]Adjustment(a))
	if err != nil {
		return nil, fmt.Errorf("marshal adjustments: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into adjustments.
func (a *Adjustments) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// LedgerEntry is one monetary obligation tied to (occurrence, student, tutor).
// Scheduled start/end are copied from the occurrence so later class edits do not rewrite history.
type LedgerEntry struct {
	ID               string          `db:"id" json:"id"`
	ClassID          string          `db:"class_id" json:"class_id"`
	OccurrenceDate   time.Time       `db:"occurrence_date" json:"occurrence_date"`
	StudentID        string          `db:"student_id" json:"student_id"`
	TutorID          string          `db:"tutor_id" json:"tutor_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	Status           LedgerStatus    `db:"status" json:"status"`
	Discounts        Discounts       `db:"discounts" json:"discounts"`
	Adjustments      Adjustments     `db:"adjustments" json:"adjustments"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxRate          decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	TaxAmount        decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	PlatformFee      decimal.Decimal `db:"platform_fee" json:"platform_fee"`
	Total            decimal.Decimal `db:"total" json:"total"`
	DurationMinutes  int             `db:"duration_minutes" json:"duration_minutes"`
	ScheduledStart   time.Time       `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd     time.Time       `db:"scheduled_end" json:"scheduled_end"`
	DueDate          time.Time       `db:"due_date" json:"due_date"`
	PaymentMethod    *string         `db:"payment_method" json:"payment_method,omitempty"`
	PaymentReference *string         `db:"payment_reference" json:"payment_reference,omitempty"`
	PaidAt           *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	VoidReason       *string         `db:"void_reason" json:"void_reason,omitempty"`
	Version          int             `db:"version" json:"version"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	UpdatedBy        string          `db:"updated_by" json:"updated_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Key returns the occurrence key the entry bills.
func (e LedgerEntry) Key() OccurrenceKey {
	return NewOccurrenceKey(e.ClassID, e.OccurrenceDate)
}

// LedgerFilter narrows ledger queries.
type LedgerFilter struct {
	ClassID   string
	TutorID   string
	StudentID string
	Currency  string
	Statuses  []LedgerStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// ClassChangeResult summarises a bulk status transition triggered by a class edit.
type ClassChangeResult struct {
	Updated     int `json:"updated"`
	SkippedPaid int `json:"skipped_paid"`
}
