package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Aging bucket labels for unpaid entries.
const (
	AgingCurrent = "current"
	Aging0To30   = "0-30"
	Aging31To60  = "31-60"
	Aging61To90  = "61-90"
	AgingOver90  = "90+"
)

// Report grouping modes.
const (
	ReportGroupByStatus = "status"
	ReportGroupByAge    = "age"
)

// CurrencyTotals holds money rollups for a single currency.
type CurrencyTotals struct {
	Currency    string          `json:"currency"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Unpaid      decimal.Decimal `json:"unpaid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// StatusBucket counts entries per ledger status.
type StatusBucket struct {
	Status LedgerStatus    `json:"status"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// AgingBucket counts unpaid entries by days overdue.
type AgingBucket struct {
	Label  string          `json:"label"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ReportSummary is the read-side rollup of a filtered ledger entry set.
type ReportSummary struct {
	TotalCount     int              `json:"total_count"`
	DemoclassCount int              `json:"democlass_count"`
	Currencies     []CurrencyTotals `json:"currencies"`
	ByStatus       []StatusBucket   `json:"by_status,omitempty"`
	Aging          []AgingBucket    `json:"aging,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// ReportFilter selects the entries a report folds over.
type ReportFilter struct {
	LedgerFilter
	GroupBy string
}
