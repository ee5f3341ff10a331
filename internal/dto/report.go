package dto

// LedgerReportQuery captures report filters from the query string.
type LedgerReportQuery struct {
	ClassID   string   `form:"class_id"`
	TutorID   string   `form:"tutor_id"`
	StudentID string   `form:"student_id"`
	Currency  string   `form:"currency" validate:"omitempty,len=3"`
	Statuses  []string `form:"status" validate:"dive,ledger_status"`
	From      string   `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string   `form:"to" validate:"omitempty,datetime=2006-01-02"`
	GroupBy   string   `form:"group_by" validate:"omitempty,oneof=status age"`
	Format    string   `form:"format" validate:"omitempty,oneof=csv pdf"`
}
