package service

import (
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/tutor-class-api/internal/ledger"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/repository"
	"github.com/noah-isme/tutor-class-api/internal/scheduling"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

// translateDomainError maps scheduling, ledger and storage sentinels onto typed API errors.
// Anything unrecognised becomes an internal error carrying fallback as its message.
func translateDomainError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return err
	}
	var conflict *models.SchedulingConflictError
	switch {
	case errors.As(err, &conflict):
		return appErrors.Wrap(err, appErrors.ErrSchedulingConflict.Code, appErrors.ErrSchedulingConflict.Status, conflict.Message).WithDetails(conflict.Conflicts)
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
	case errors.Is(err, scheduling.ErrInvalidTimeFormat):
		return appErrors.Wrap(err, appErrors.ErrInvalidTimeFormat.Code, appErrors.ErrInvalidTimeFormat.Status, err.Error())
	case errors.Is(err, scheduling.ErrInvalidWeekday), errors.Is(err, scheduling.ErrInvalidSchedule):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	case errors.Is(err, repository.ErrOccurrenceOverlap):
		return appErrors.Wrap(err, appErrors.ErrSchedulingConflict.Code, appErrors.ErrSchedulingConflict.Status, appErrors.ErrSchedulingConflict.Message)
	case errors.Is(err, ledger.ErrDuplicateLedgerEntry), errors.Is(err, repository.ErrLedgerKeyTaken):
		return appErrors.Wrap(err, appErrors.ErrDuplicateLedgerEntry.Code, appErrors.ErrDuplicateLedgerEntry.Status, err.Error())
	case errors.Is(err, ledger.ErrImmutableAfterPayment):
		return appErrors.Wrap(err, appErrors.ErrImmutableAfterPayment.Code, appErrors.ErrImmutableAfterPayment.Status, appErrors.ErrImmutableAfterPayment.Message)
	case errors.Is(err, ledger.ErrInvalidTransition), errors.Is(err, ledger.ErrOccurrenceCancelled):
		return appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	case errors.Is(err, ledger.ErrInvalidDiscount), errors.Is(err, ledger.ErrInvalidAdjustment),
		errors.Is(err, ledger.ErrInvalidPaymentStatus), errors.Is(err, ledger.ErrNoBillableStudents):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	case errors.Is(err, repository.ErrStaleVersion):
		return appErrors.Wrap(err, appErrors.ErrConcurrentModification.Code, appErrors.ErrConcurrentModification.Status, appErrors.ErrConcurrentModification.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
}

// validationError wraps validator failures. A malformed wall-clock field is reported with its
// own code so clients can tell it apart from other payload errors.
func validationError(err error, message string) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		for _, field := range fields {
			if field.Tag() == "clock" {
				return appErrors.Wrap(err, appErrors.ErrInvalidTimeFormat.Code, appErrors.ErrInvalidTimeFormat.Status,
					"start_time must be H:MM or HH:MM")
			}
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
