package repository

import "errors"

// Storage-level guard failures. Services translate them into typed API errors.
var (
	// ErrOccurrenceOverlap is returned when the tutor exclusion constraint rejects an occurrence.
	ErrOccurrenceOverlap = errors.New("occurrence overlaps another booking of the tutor")
	// ErrLedgerKeyTaken is returned when an active entry already exists for (class, date, student).
	ErrLedgerKeyTaken = errors.New("active ledger entry already exists")
	// ErrStaleVersion is returned when a guarded update lost a race.
	ErrStaleVersion = errors.New("ledger entry was modified concurrently")
)

const (
	constraintOccurrenceOverlap = "class_occurrences_tutor_no_overlap"
	constraintLedgerActiveKey   = "ledger_entries_active_key"
)
