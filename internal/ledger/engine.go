// Package ledger turns realised occurrences into billing entries and applies the fixed
// discount, adjustment, tax and platform-fee arithmetic to them.
//
// All functions operate on value copies; callers persist the returned entries.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

var (
	// ErrImmutableAfterPayment is returned for any mutation of a paid entry.
	ErrImmutableAfterPayment = errors.New("ledger entry is paid and cannot be changed")
	// ErrInvalidTransition is returned when the current status does not allow the operation.
	ErrInvalidTransition = errors.New("invalid ledger status transition")
	// ErrInvalidDiscount rejects discounts outside their allowed range.
	ErrInvalidDiscount = errors.New("invalid discount")
	// ErrInvalidAdjustment rejects zero adjustments.
	ErrInvalidAdjustment = errors.New("invalid adjustment")
	// ErrInvalidPaymentStatus rejects statuses an occurrence cannot be realised with.
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	// ErrDuplicateLedgerEntry reports an active entry for the same occurrence and student with different terms.
	ErrDuplicateLedgerEntry = errors.New("duplicate ledger entry")
	// ErrNoBillableStudents is returned when an occurrence has nobody to bill.
	ErrNoBillableStudents = errors.New("occurrence has no billable students")
	// ErrOccurrenceCancelled is returned when billing a cancelled occurrence.
	ErrOccurrenceCancelled = errors.New("occurrence is cancelled")
)

// Terms carries the pricing parameters applied on top of the class price.
type Terms struct {
	TaxRate         decimal.Decimal
	PlatformFee     decimal.Decimal
	PaymentTermDays int
}

// ValidateRealizeStatus checks the payment status an occurrence is realised with.
func ValidateRealizeStatus(status models.LedgerStatus) error {
	switch status {
	case models.LedgerUnpaid, models.LedgerDemoclass:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}
}

// BillableStudents returns the enrolled students followed by any extra attendees of the
// occurrence, deduplicated, never including the tutor.
func BillableStudents(def models.ClassDefinition, occ models.Occurrence) []string {
	seen := make(map[string]struct{}, len(def.StudentIDs)+len(occ.AttendeeIDs))
	result := make([]string, 0, len(def.StudentIDs))
	add := func(id string) {
		if id == "" || id == def.TutorID || id == occ.TutorID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	for _, id := range def.StudentIDs {
		add(id)
	}
	for _, id := range occ.AttendeeIDs {
		add(id)
	}
	return result
}

// NewEntries builds one entry per student for the occurrence. Democlass entries are free:
// amount and platform fee are zero. Duration is recorded for reporting only.
func NewEntries(def models.ClassDefinition, occ models.Occurrence, students []string, status models.LedgerStatus, terms Terms, actor string, now time.Time) ([]models.LedgerEntry, error) {
	if err := ValidateRealizeStatus(status); err != nil {
		return nil, err
	}
	if occ.Status == models.OccurrenceCancelled {
		return nil, ErrOccurrenceCancelled
	}
	if len(students) == 0 {
		return nil, ErrNoBillableStudents
	}

	tutorID := occ.TutorID
	if tutorID == "" {
		tutorID = def.TutorID
	}
	entries := make([]models.LedgerEntry, 0, len(students))
	for _, studentID := range students {
		entry := models.LedgerEntry{
			ID:              uuid.NewString(),
			ClassID:         def.ID,
			OccurrenceDate:  occ.Date,
			StudentID:       studentID,
			TutorID:         tutorID,
			Amount:          Round(def.Amount),
			Currency:        def.Currency,
			Status:          status,
			Discounts:       models.Discounts{},
			Adjustments:     models.Adjustments{},
			TaxRate:         terms.TaxRate,
			PlatformFee:     Round(terms.PlatformFee),
			DurationMinutes: def.DurationMinutes,
			ScheduledStart:  occ.StartsAt,
			ScheduledEnd:    occ.EndsAt,
			DueDate:         occ.Date.AddDate(0, 0, terms.PaymentTermDays),
			Version:         1,
			CreatedBy:       actor,
			UpdatedBy:       actor,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if status == models.LedgerDemoclass {
			entry.Amount = decimal.Zero
			entry.PlatformFee = decimal.Zero
		}
		entries = append(entries, Recompute(entry))
	}
	return entries, nil
}

// Recompute derives subtotal, tax and total in the fixed order: discounts in application
// order (percentages against the running subtotal), then adjustments, then tax on the
// subtotal, then the platform fee. Each stage is rounded; the subtotal never goes below zero.
func Recompute(entry models.LedgerEntry) models.LedgerEntry {
	subtotal := Round(entry.Amount)
	discounts := make(models.Discounts, len(entry.Discounts))
	for i, d := range entry.Discounts {
		d.Applied = discountAmount(d.Kind, d.Value, subtotal)
		subtotal = subtotal.Sub(d.Applied)
		discounts[i] = d
	}
	for _, adj := range entry.Adjustments {
		subtotal = subtotal.Add(Round(adj.Amount))
	}
	subtotal = maxZero(subtotal)

	entry.Discounts = discounts
	entry.Adjustments = append(models.Adjustments{}, entry.Adjustments...)
	entry.Subtotal = subtotal
	entry.TaxAmount = Round(subtotal.Mul(entry.TaxRate))
	entry.Total = subtotal.Add(entry.TaxAmount).Add(Round(entry.PlatformFee))
	return entry
}

func discountAmount(kind models.DiscountKind, value, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch kind {
	case models.DiscountPercentage:
		amount = Round(subtotal.Mul(value).Div(hundred))
	default:
		amount = Round(value)
	}
	if amount.GreaterThan(subtotal) {
		amount = maxZero(subtotal)
	}
	return amount
}

func ensureMutable(entry models.LedgerEntry) error {
	switch entry.Status {
	case models.LedgerPaid:
		return ErrImmutableAfterPayment
	case models.LedgerUnpaid:
		return nil
	default:
		return fmt.Errorf("%w: entry is %s", ErrInvalidTransition, entry.Status)
	}
}

// ApplyDiscount appends a discount and returns the updated entry with the amount it took off.
func ApplyDiscount(entry models.LedgerEntry, kind models.DiscountKind, value decimal.Decimal, reason, actor string, now time.Time) (models.LedgerEntry, decimal.Decimal, error) {
	if err := ensureMutable(entry); err != nil {
		return entry, decimal.Zero, err
	}
	switch kind {
	case models.DiscountPercentage:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return entry, decimal.Zero, fmt.Errorf("%w: percentage must be in (0, 100]", ErrInvalidDiscount)
		}
	case models.DiscountFixed:
		if !value.IsPositive() {
			return entry, decimal.Zero, fmt.Errorf("%w: fixed amount must be positive", ErrInvalidDiscount)
		}
	default:
		return entry, decimal.Zero, fmt.Errorf("%w: unknown kind %q", ErrInvalidDiscount, kind)
	}

	entry.Discounts = append(append(models.Discounts{}, entry.Discounts...), models.Discount{
		Kind:      kind,
		Value:     value,
		Reason:    reason,
		AppliedBy: actor,
		AppliedAt: now,
	})
	entry = touch(Recompute(entry), actor, now)
	return entry, entry.Discounts[len(entry.Discounts)-1].Applied, nil
}

// ApplyAdjustment appends a signed manual correction.
func ApplyAdjustment(entry models.LedgerEntry, amount decimal.Decimal, reason, actor string, now time.Time) (models.LedgerEntry, error) {
	if err := ensureMutable(entry); err != nil {
		return entry, err
	}
	if Round(amount).IsZero() {
		return entry, fmt.Errorf("%w: amount must not be zero", ErrInvalidAdjustment)
	}
	entry.Adjustments = append(append(models.Adjustments{}, entry.Adjustments...), models.Adjustment{
		Amount:    Round(amount),
		Reason:    reason,
		AppliedBy: actor,
		AppliedAt: now,
	})
	return touch(Recompute(entry), actor, now), nil
}

// MarkPaid settles an unpaid entry. There is no way back through this package.
func MarkPaid(entry models.LedgerEntry, method, reference, actor string, now time.Time) (models.LedgerEntry, error) {
	if err := ensureMutable(entry); err != nil {
		return entry, err
	}
	paidAt := now
	entry.Status = models.LedgerPaid
	entry.PaidAt = &paidAt
	if method != "" {
		entry.PaymentMethod = &method
	}
	if reference != "" {
		entry.PaymentReference = &reference
	}
	return touch(entry, actor, now), nil
}

// Void retires an unpaid or democlass entry, freeing its (occurrence, student) slot.
func Void(entry models.LedgerEntry, reason, actor string, now time.Time) (models.LedgerEntry, error) {
	return retire(entry, models.LedgerVoid, reason, actor, now)
}

// Cancel retires an entry because its occurrence was cancelled.
func Cancel(entry models.LedgerEntry, reason, actor string, now time.Time) (models.LedgerEntry, error) {
	return retire(entry, models.LedgerCanceled, reason, actor, now)
}

func retire(entry models.LedgerEntry, status models.LedgerStatus, reason, actor string, now time.Time) (models.LedgerEntry, error) {
	switch entry.Status {
	case models.LedgerPaid:
		return entry, ErrImmutableAfterPayment
	case models.LedgerUnpaid, models.LedgerDemoclass:
	default:
		return entry, fmt.Errorf("%w: entry is %s", ErrInvalidTransition, entry.Status)
	}
	entry.Status = status
	if reason != "" {
		entry.VoidReason = &reason
	}
	return touch(entry, actor, now), nil
}

// TransitionForClassChange moves an unpaid or democlass entry to the status a class edit asks
// for. Moving to democlass zeroes the price; moving back to unpaid re-applies the class price
// and current terms.
func TransitionForClassChange(entry models.LedgerEntry, status models.LedgerStatus, def models.ClassDefinition, terms Terms, actor string, now time.Time) (models.LedgerEntry, error) {
	switch entry.Status {
	case models.LedgerPaid:
		return entry, ErrImmutableAfterPayment
	case models.LedgerUnpaid, models.LedgerDemoclass:
	default:
		return entry, fmt.Errorf("%w: entry is %s", ErrInvalidTransition, entry.Status)
	}

	switch status {
	case models.LedgerVoid, models.LedgerCanceled:
		return retire(entry, status, "class changed", actor, now)
	case models.LedgerDemoclass:
		entry.Status = models.LedgerDemoclass
		entry.Amount = decimal.Zero
		entry.PlatformFee = decimal.Zero
		entry.Discounts = models.Discounts{}
		entry.Adjustments = models.Adjustments{}
	case models.LedgerUnpaid:
		if entry.Status == models.LedgerDemoclass {
			entry.Amount = Round(def.Amount)
			entry.Currency = def.Currency
			entry.PlatformFee = Round(terms.PlatformFee)
			entry.TaxRate = terms.TaxRate
		}
		entry.Status = models.LedgerUnpaid
	default:
		return entry, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}
	return touch(Recompute(entry), actor, now), nil
}

// Reprice applies a changed class price to an unpaid entry. It reports whether anything changed.
// Democlass entries stay free.
func Reprice(entry models.LedgerEntry, def models.ClassDefinition, actor string, now time.Time) (models.LedgerEntry, bool, error) {
	switch entry.Status {
	case models.LedgerPaid:
		return entry, false, ErrImmutableAfterPayment
	case models.LedgerUnpaid:
	default:
		return entry, false, nil
	}
	price := Round(def.Amount)
	if entry.Amount.Equal(price) && entry.Currency == def.Currency {
		return entry, false, nil
	}
	entry.Amount = price
	entry.Currency = def.Currency
	entry.DurationMinutes = def.DurationMinutes
	return touch(Recompute(entry), actor, now), true, nil
}

// SameTerms reports whether an existing entry already satisfies a requested one.
func SameTerms(existing, requested models.LedgerEntry) bool {
	return existing.StudentID == requested.StudentID &&
		existing.TutorID == requested.TutorID &&
		existing.Status == requested.Status &&
		existing.Currency == requested.Currency &&
		existing.Amount.Equal(requested.Amount)
}

// Reconcile splits a requested batch against the active entries already stored for the same
// occurrence. Requests matched by an identical entry are returned as kept; the rest are to be
// inserted. Any request matched by an entry with different terms rejects the whole batch.
func Reconcile(requested, existing []models.LedgerEntry) (insert, kept []models.LedgerEntry, err error) {
	active := make(map[string]models.LedgerEntry, len(existing))
	for _, e := range existing {
		if e.Status.Active() {
			active[e.StudentID] = e
		}
	}
	for _, req := range requested {
		current, ok := active[req.StudentID]
		if !ok {
			insert = append(insert, req)
			continue
		}
		if !SameTerms(current, req) {
			return nil, nil, fmt.Errorf("%w: student %s already billed for %s as %s %s %s",
				ErrDuplicateLedgerEntry, req.StudentID, req.Key(), current.Status, current.Amount.StringFixed(MoneyPlaces), current.Currency)
		}
		kept = append(kept, current)
	}
	return insert, kept, nil
}

func touch(entry models.LedgerEntry, actor string, now time.Time) models.LedgerEntry {
	entry.UpdatedBy = actor
	entry.UpdatedAt = now
	return entry
}
