package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionClassCreate      = "CLASS_CREATE"
	AuditActionClassReschedule  = "CLASS_RESCHEDULE"
	AuditActionOccurrenceCancel = "OCCURRENCE_CANCEL"
	AuditActionOccurrenceDone   = "OCCURRENCE_COMPLETE"
	AuditActionBillingRealize   = "BILLING_REALIZE"
	AuditActionBillingStatus    = "BILLING_STATUS_CHANGE"
	AuditActionLedgerDiscount   = "LEDGER_DISCOUNT"
	AuditActionLedgerAdjustment = "LEDGER_ADJUSTMENT"
	AuditActionLedgerPayment    = "LEDGER_PAYMENT"
	AuditActionLedgerVoid       = "LEDGER_VOID"
)

// AuditLog represents an audit trail record for scheduling and billing mutations.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
