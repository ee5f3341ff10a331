package service

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/scheduling"
)

// Class durations accepted without falling back to the custom range.
var durationPresets = map[int]struct{}{30: {}, 45: {}, 60: {}, 90: {}, 120: {}}

const (
	minCustomDuration = 15
	maxCustomDuration = 240
)

var registerOnce sync.Map

// registerDomainValidations adds the scheduling and billing tags to validate. Registration is
// idempotent per validator instance.
func registerDomainValidations(validate *validator.Validate) *validator.Validate {
	if validate == nil {
		validate = validator.New()
	}
	if _, loaded := registerOnce.LoadOrStore(validate, struct{}{}); loaded {
		return validate
	}
	_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return scheduling.ValidClock(fl.Field().String())
	})
	_ = validate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseWeekday(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("schedule_type", func(fl validator.FieldLevel) bool {
		switch models.ScheduleType(fl.Field().String()) {
		case models.ScheduleOneTime, models.ScheduleWeeklyRecurring:
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("ledger_status", func(fl validator.FieldLevel) bool {
		switch models.LedgerStatus(fl.Field().String()) {
		case models.LedgerUnpaid, models.LedgerPaid, models.LedgerDemoclass, models.LedgerVoid, models.LedgerCanceled:
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("discount_kind", func(fl validator.FieldLevel) bool {
		switch models.DiscountKind(fl.Field().String()) {
		case models.DiscountPercentage, models.DiscountFixed:
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("class_duration", func(fl validator.FieldLevel) bool {
		return ValidDuration(int(fl.Field().Int()))
	})
	return validate
}

// ValidDuration reports whether minutes is a preset duration or inside the custom range.
func ValidDuration(minutes int) bool {
	if _, ok := durationPresets[minutes]; ok {
		return true
	}
	return minutes >= minCustomDuration && minutes <= maxCustomDuration
}
