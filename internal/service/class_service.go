package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/ledger"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/repository"
	"github.com/noah-isme/tutor-class-api/internal/scheduling"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

type classRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassDefinition, error)
	ListForTutor(ctx context.Context, tutorID string, from, to time.Time) ([]models.ClassDefinition, error)
	Create(ctx context.Context, class *models.ClassDefinition, occurrences []models.Occurrence) error
	Update(ctx context.Context, class *models.ClassDefinition, from time.Time, occurrences []models.Occurrence) error
	SetStatus(ctx context.Context, id string, status models.ClassStatus) error
}

type occurrenceRepository interface {
	occurrenceReader
	ListForTutor(ctx context.Context, tutorID string, from, to time.Time) ([]models.Occurrence, error)
	Upsert(ctx context.Context, occ *models.Occurrence) error
}

// occurrenceBilling is the part of the billing service that reacts to occurrence lifecycle changes.
type occurrenceBilling interface {
	RealizeOccurrence(ctx context.Context, def models.ClassDefinition, occ models.Occurrence, status models.LedgerStatus, actor string) ([]models.LedgerEntry, error)
	CancelOccurrence(ctx context.Context, occ models.Occurrence, reason, actor string) (canceled, paid []models.LedgerEntry, err error)
	RepriceClass(ctx context.Context, def models.ClassDefinition, after time.Time, actor string) (int, error)
}

// ClassServiceConfig tunes scheduling horizons.
type ClassServiceConfig struct {
	Location              *time.Location
	LookaheadDays         int
	GenerationHorizonDays int
	DefaultJoinWindow     int
	DefaultCurrency       string
}

// ClassService schedules classes, materialises their occurrences and drives occurrence lifecycle.
type ClassService struct {
	classes     classRepository
	occurrences occurrenceRepository
	billing     occurrenceBilling
	gen         scheduling.Generator
	checker     scheduling.AvailabilityChecker
	cfg         ClassServiceConfig
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	now         func() time.Time
}

// NewClassService constructs ClassService.
func NewClassService(classes classRepository, occurrences occurrenceRepository, billing occurrenceBilling, cfg ClassServiceConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.GenerationHorizonDays <= 0 {
		cfg.GenerationHorizonDays = 90
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	gen := scheduling.NewGenerator(cfg.LookaheadDays, cfg.DefaultJoinWindow, cfg.Location)
	return &ClassService{
		classes:     classes,
		occurrences: occurrences,
		billing:     billing,
		gen:         gen,
		checker:     scheduling.NewAvailabilityChecker(gen),
		cfg:         cfg,
		validator:   registerDomainValidations(validate),
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Get returns a class definition.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDefinition, error) {
	return loadClassDefinition(ctx, s.classes, id)
}

// Create validates a class, rejects it when the tutor is already booked, and persists it with
// its occurrences inside the generation horizon.
func (s *ClassService) Create(ctx context.Context, req dto.ClassRequest, actor string) (*models.ClassDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	def, err := s.buildDefinition(req)
	if err != nil {
		return nil, err
	}
	def.ID = uuid.NewString()
	def.Status = models.ClassStatusScheduled
	def.CreatedBy = actor

	now := s.now()
	occurrences, err := s.plan(ctx, def, now)
	if err != nil {
		return nil, err
	}
	if err := s.classes.Create(ctx, &def, occurrences); err != nil {
		return nil, s.persistError(err, def, "failed to create class")
	}
	s.logger.Info("class scheduled",
		zap.String("class_id", def.ID),
		zap.String("tutor_id", def.TutorID),
		zap.String("schedule_type", string(def.ScheduleType)),
		zap.Int("occurrences", len(occurrences)),
	)
	return &def, nil
}

// Update reschedules a class. Future scheduled occurrences are regenerated; cancelled and
// completed ones keep their state. A price change re-terms unpaid entries of sessions that
// have not started yet.
func (s *ClassService) Update(ctx context.Context, id string, req dto.ClassRequest, actor string) (*models.ClassDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	current, err := loadClassDefinition(ctx, s.classes, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.ClassStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "completed classes cannot be rescheduled")
	}
	def, err := s.buildDefinition(req)
	if err != nil {
		return nil, err
	}
	def.ID = current.ID
	def.Status = current.Status
	def.CreatedBy = current.CreatedBy
	def.CreatedAt = current.CreatedAt

	now := s.now()
	occurrences, err := s.plan(ctx, def, now)
	if err != nil {
		return nil, err
	}
	if err := s.classes.Update(ctx, &def, scheduling.Today(now, s.cfg.Location), occurrences); err != nil {
		return nil, s.persistError(err, def, "failed to update class")
	}

	if s.billing != nil && (!current.Amount.Equal(def.Amount) || current.Currency != def.Currency) {
		repriced, err := s.billing.RepriceClass(ctx, def, now, actor)
		if err != nil {
			return nil, err
		}
		s.logger.Info("class repriced", zap.String("class_id", def.ID), zap.Int("entries", repriced))
	}
	return &def, nil
}

// NextOccurrence returns the occurrence a participant should be directed to, or nil.
func (s *ClassService) NextOccurrence(ctx context.Context, id string) (*models.Occurrence, error) {
	def, err := loadClassDefinition(ctx, s.classes, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := scheduling.Today(now, s.cfg.Location)
	stored, err := storedIndex(ctx, s.occurrences, *def, today.AddDate(0, 0, -1), today.AddDate(0, 0, s.gen.LookaheadDays))
	if err != nil {
		return nil, err
	}
	next, err := s.gen.NextOccurrence(*def, now, stored)
	if err != nil {
		return nil, translateDomainError(err, "failed to resolve next occurrence")
	}
	return next, nil
}

// ListOccurrences expands the class over [from, to], merged with stored overrides. Empty bounds
// default to today and the lookahead horizon.
func (s *ClassService) ListOccurrences(ctx context.Context, id, fromValue, toValue string) (*dto.OccurrenceListResponse, error) {
	def, err := loadClassDefinition(ctx, s.classes, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := scheduling.Today(now, s.cfg.Location)
	from, to := today, today.AddDate(0, 0, s.gen.LookaheadDays)
	if fromValue != "" {
		if from, err = parseDay(fromValue, s.cfg.Location, "from"); err != nil {
			return nil, err
		}
	}
	if toValue != "" {
		if to, err = parseDay(toValue, s.cfg.Location, "to"); err != nil {
			return nil, err
		}
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if to.Sub(from) > 366*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range must not exceed one year")
	}

	lower, upper := from, to
	if today.Before(lower) {
		lower = today
	}
	if def.EndDate != nil && def.EndDate.After(upper) {
		upper = *def.EndDate
	}
	stored, err := storedIndex(ctx, s.occurrences, *def, lower, upper)
	if err != nil {
		return nil, err
	}
	arena, err := s.gen.Expand(*def, from, to, stored)
	if err != nil {
		return nil, translateDomainError(err, "failed to expand occurrences")
	}
	upcoming, err := s.gen.CountUpcoming(*def, now, stored)
	if err != nil {
		return nil, translateDomainError(err, "failed to count occurrences")
	}
	return &dto.OccurrenceListResponse{
		ClassID:     def.ID,
		From:        from.Format(models.DateLayout),
		To:          to.Format(models.DateLayout),
		Occurrences: arena.Sorted(),
		Upcoming:    upcoming,
	}, nil
}

// CheckAvailability reports whether the tutor is free for a candidate booking. It is advisory;
// the booking itself is guarded again when persisted.
func (s *ClassService) CheckAvailability(ctx context.Context, req dto.AvailabilityRequest) (*dto.AvailabilityResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid availability payload")
	}
	day, err := parseDay(req.Date, s.cfg.Location, "date")
	if err != nil {
		return nil, err
	}
	candidate := scheduling.Candidate{
		TutorID:         req.TutorID,
		Date:            day,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		IgnoreClassID:   req.IgnoreClassID,
	}
	existing, stored, err := s.tutorBookings(ctx, req.TutorID, day, day)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.checker.Conflicts(candidate, existing, stored)
	if err != nil {
		return nil, translateDomainError(err, "failed to check availability")
	}
	return &dto.AvailabilityResponse{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// CancelOccurrence cancels one dated occurrence and cancels its unpaid and democlass ledger
// entries. Paid entries are reported back untouched.
func (s *ClassService) CancelOccurrence(ctx context.Context, id, dateValue string, req dto.CancelOccurrenceRequest, actor string) (*dto.CancelOccurrenceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid cancel payload")
	}
	def, err := loadClassDefinition(ctx, s.classes, id)
	if err != nil {
		return nil, err
	}
	day, err := parseDay(dateValue, s.cfg.Location, "date")
	if err != nil {
		return nil, err
	}
	occ, err := resolveOccurrence(ctx, s.gen, s.occurrences, *def, day)
	if err != nil {
		return nil, err
	}
	if occ.Status == models.OccurrenceCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "completed occurrences cannot be cancelled")
	}
	if occ.Status != models.OccurrenceCancelled {
		occ.Status = models.OccurrenceCancelled
		if err := s.occurrences.Upsert(ctx, &occ); err != nil {
			return nil, translateDomainError(err, "failed to cancel occurrence")
		}
	}

	resp := &dto.CancelOccurrenceResponse{Occurrence: occ, Canceled: []models.LedgerEntry{}}
	if s.billing != nil {
		reason := req.Reason
		if reason == "" {
			reason = "occurrence cancelled"
		}
		canceled, paid, err := s.billing.CancelOccurrence(ctx, occ, reason, actor)
		if err != nil {
			return nil, err
		}
		if canceled != nil {
			resp.Canceled = canceled
		}
		resp.PaidUnchanged = paid
	}
	s.logger.Info("occurrence cancelled",
		zap.String("class_id", def.ID),
		zap.String("date", occ.Date.Format(models.DateLayout)),
		zap.Int("entries_canceled", len(resp.Canceled)),
		zap.Int("entries_paid", len(resp.PaidUnchanged)),
	)
	return resp, nil
}

// CompleteOccurrence marks a started occurrence completed and realises its billing. Completing a
// one-time class also completes the class. Repeating the call is safe.
func (s *ClassService) CompleteOccurrence(ctx context.Context, id, dateValue string, req dto.CompleteOccurrenceRequest, actor string) (*dto.CompleteOccurrenceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid completion payload")
	}
	status := models.LedgerStatus(req.PaymentStatus)
	if status == "" {
		status = models.LedgerUnpaid
	}
	def, err := loadClassDefinition(ctx, s.classes, id)
	if err != nil {
		return nil, err
	}
	day, err := parseDay(dateValue, s.cfg.Location, "date")
	if err != nil {
		return nil, err
	}
	occ, err := resolveOccurrence(ctx, s.gen, s.occurrences, *def, day)
	if err != nil {
		return nil, err
	}
	if occ.Status == models.OccurrenceCancelled {
		return nil, translateDomainError(ledger.ErrOccurrenceCancelled, "")
	}
	if s.now().Before(occ.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "occurrence has not started yet")
	}
	if occ.Status != models.OccurrenceCompleted {
		occ.Status = models.OccurrenceCompleted
		if err := s.occurrences.Upsert(ctx, &occ); err != nil {
			return nil, translateDomainError(err, "failed to complete occurrence")
		}
	}
	if !def.IsRecurring() && def.Status != models.ClassStatusCompleted {
		if err := s.classes.SetStatus(ctx, def.ID, models.ClassStatusCompleted); err != nil {
			return nil, translateDomainError(err, "failed to complete class")
		}
		def.Status = models.ClassStatusCompleted
	}

	resp := &dto.CompleteOccurrenceResponse{Occurrence: occ, Entries: []models.LedgerEntry{}}
	if s.billing != nil {
		entries, err := s.billing.RealizeOccurrence(ctx, *def, occ, status, actor)
		if err != nil {
			return nil, err
		}
		resp.Entries = entries
	}
	return resp, nil
}

func (s *ClassService) buildDefinition(req dto.ClassRequest) (models.ClassDefinition, error) {
	if req.Amount.IsNegative() {
		return models.ClassDefinition{}, appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
	}
	students := uniqueStrings(req.StudentIDs)
	if len(students) > req.Capacity {
		return models.ClassDefinition{}, appErrors.Clone(appErrors.ErrValidation, "enrolled students exceed capacity")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	def := models.ClassDefinition{
		Subject:           strings.TrimSpace(req.Subject),
		TutorID:           req.TutorID,
		StudentIDs:        students,
		Capacity:          req.Capacity,
		StartTime:         req.StartTime,
		DurationMinutes:   req.DurationMinutes,
		ScheduleType:      models.ScheduleType(req.ScheduleType),
		Amount:            ledger.Round(req.Amount),
		Currency:          currency,
		JoinWindowMinutes: req.JoinWindowMinutes,
	}
	if len(req.RecurringDays) > 0 {
		days, err := scheduling.NormalizeWeekdays(req.RecurringDays)
		if err != nil {
			return models.ClassDefinition{}, translateDomainError(err, "")
		}
		def.RecurringDays = days
	}

	dates := []struct {
		value string
		field string
		dest  **time.Time
	}{
		{req.ClassDate, "class_date", &def.ClassDate},
		{req.StartDate, "start_date", &def.StartDate},
		{req.EndDate, "end_date", &def.EndDate},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		day, err := parseDay(d.value, s.cfg.Location, d.field)
		if err != nil {
			return models.ClassDefinition{}, err
		}
		*d.dest = &day
	}
	if err := s.gen.Validate(def); err != nil {
		return models.ClassDefinition{}, translateDomainError(err, "")
	}
	if def.IsRecurring() && len(def.RecurringDays) == 0 {
		return models.ClassDefinition{}, appErrors.Clone(appErrors.ErrValidation, "recurring classes need at least one recurring day")
	}
	return def, nil
}

// window returns the dates whose occurrences are materialised and conflict-checked: the class
// date for one-time classes, otherwise from the later of start date and today up to the
// generation horizon, capped at the end date.
func (s *ClassService) window(def models.ClassDefinition, now time.Time) (time.Time, time.Time, error) {
	loc := s.cfg.Location
	today := scheduling.Today(now, loc)
	if !def.IsRecurring() {
		day := scheduling.Midnight(*def.ClassDate, loc)
		start, err := scheduling.Combine(day, def.StartTime)
		if err != nil {
			return time.Time{}, time.Time{}, translateDomainError(err, "")
		}
		if !start.After(now) {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "class must start in the future")
		}
		return day, day, nil
	}
	from := scheduling.Midnight(*def.StartDate, loc)
	if today.After(from) {
		from = today
	}
	to := scheduling.Midnight(*def.EndDate, loc)
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date is in the past")
	}
	if horizon := from.AddDate(0, 0, s.cfg.GenerationHorizonDays); to.After(horizon) {
		to = horizon
	}
	return from, to, nil
}

// plan checks the class against the tutor's bookings and returns the occurrences to persist.
func (s *ClassService) plan(ctx context.Context, def models.ClassDefinition, now time.Time) ([]models.Occurrence, error) {
	from, to, err := s.window(def, now)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, def, from, to); err != nil {
		return nil, err
	}
	arena, err := s.gen.Expand(def, from, to, nil)
	if err != nil {
		return nil, translateDomainError(err, "failed to expand occurrences")
	}
	return arena.Sorted(), nil
}

func (s *ClassService) ensureNoConflict(ctx context.Context, def models.ClassDefinition, from, to time.Time) error {
	existing, stored, err := s.tutorBookings(ctx, def.TutorID, from, to)
	if err != nil {
		return err
	}
	conflicts, err := s.checker.ClassConflicts(def, from, to, existing, stored)
	if err != nil {
		return translateDomainError(err, "failed to check availability")
	}
	if len(conflicts) == 0 {
		return nil
	}
	s.metrics.RecordSchedulingConflict()
	s.logger.Warn("scheduling conflict",
		zap.String("tutor_id", def.TutorID),
		zap.String("class_id", def.ID),
		zap.Int("conflicts", len(conflicts)),
		zap.String("first_date", conflicts[0].Date),
	)
	return translateDomainError(&models.SchedulingConflictError{
		Message:   fmt.Sprintf("tutor is already booked on %s", conflicts[0].Date),
		Conflicts: conflicts,
	}, "")
}

func (s *ClassService) tutorBookings(ctx context.Context, tutorID string, from, to time.Time) ([]models.ClassDefinition, *scheduling.Arena, error) {
	existing, err := s.classes.ListForTutor(ctx, tutorID, from, to)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor classes")
	}
	stored, err := s.occurrences.ListForTutor(ctx, tutorID, from, to)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor occurrences")
	}
	return existing, scheduling.NewArena(stored...), nil
}

func (s *ClassService) persistError(err error, def models.ClassDefinition, message string) error {
	if errors.Is(err, repository.ErrOccurrenceOverlap) {
		s.metrics.RecordSchedulingConflict()
		s.logger.Warn("occurrence overlap rejected by store", zap.String("tutor_id", def.TutorID), zap.String("class_id", def.ID))
	}
	return translateDomainError(err, message)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
