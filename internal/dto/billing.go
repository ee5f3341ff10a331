package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

// RealizeBillingRequest creates ledger entries for one occurrence.
type RealizeBillingRequest struct {
	Date          string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentStatus string `json:"payment_status" validate:"required,oneof=unpaid democlass"`
}

// ClassBillingStatusRequest bulk-transitions the unpaid and democlass entries of a class.
type ClassBillingStatusRequest struct {
	Status string `json:"status" validate:"required,ledger_status"`
}

// DiscountRequest applies a discount to an unpaid entry.
type DiscountRequest struct {
	Kind    string          `json:"kind" validate:"required,discount_kind"`
	Value   decimal.Decimal `json:"value"`
	Reason  string          `json:"reason" validate:"omitempty,max=255"`
	Version int             `json:"version,omitempty" validate:"omitempty,gte=1"`
}

// DiscountResponse returns the updated entry with the amount the discount took off.
type DiscountResponse struct {
	Applied decimal.Decimal    `json:"applied"`
	Entry   models.LedgerEntry `json:"entry"`
}

// AdjustmentRequest applies a signed correction to an unpaid entry.
type AdjustmentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason" validate:"required,max=255"`
	Version int             `json:"version,omitempty" validate:"omitempty,gte=1"`
}

// PaymentRequest settles an unpaid entry.
type PaymentRequest struct {
	Method    string `json:"method" validate:"required,max=64"`
	Reference string `json:"reference" validate:"omitempty,max=128"`
	Version   int    `json:"version,omitempty" validate:"omitempty,gte=1"`
}

// VoidRequest retires an unpaid or democlass entry.
type VoidRequest struct {
	Reason  string `json:"reason" validate:"required,max=255"`
	Version int    `json:"version,omitempty" validate:"omitempty,gte=1"`
}

// LedgerListQuery captures ledger listing filters from the query string.
type LedgerListQuery struct {
	ClassID   string   `form:"class_id"`
	StudentID string   `form:"student_id"`
	Statuses  []string `form:"status"`
	From      string   `form:"from"`
	To        string   `form:"to"`
	Page      int      `form:"page"`
	PageSize  int      `form:"page_size"`
}
