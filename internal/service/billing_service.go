package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/ledger"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/repository"
	"github.com/noah-isme/tutor-class-api/internal/scheduling"
	"github.com/noah-isme/tutor-class-api/pkg/cache"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

type ledgerRepository interface {
	FindByID(ctx context.Context, id string) (*models.LedgerEntry, error)
	ListByOccurrence(ctx context.Context, classID string, date time.Time) ([]models.LedgerEntry, error)
	List(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, int, error)
	Query(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error)
	InsertBatch(ctx context.Context, entries []models.LedgerEntry) error
	Update(ctx context.Context, entry *models.LedgerEntry) error
	UpdateBatch(ctx context.Context, entries []models.LedgerEntry) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// BillingService realises occurrences into ledger entries and performs every ledger transition.
// Entries are only ever changed through the ledger engine and persisted with version guards.
type BillingService struct {
	ledger      ledgerRepository
	classes     classReader
	occurrences occurrenceReader
	gen         scheduling.Generator
	terms       ledger.Terms
	cache       cacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewBillingService constructs BillingService.
func NewBillingService(ledgerRepo ledgerRepository, classes classReader, occurrences occurrenceReader, terms ledger.Terms, loc *time.Location, cacheSvc cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		ledger:      ledgerRepo,
		classes:     classes,
		occurrences: occurrences,
		gen:         scheduling.NewGenerator(0, 0, loc),
		terms:       terms,
		cache:       cacheSvc,
		metrics:     metrics,
		validator:   registerDomainValidations(validate),
		logger:      logger,
		now:         time.Now,
	}
}

// RealizeBilling creates the ledger entries of one occurrence. One-time classes may omit the date.
func (s *BillingService) RealizeBilling(ctx context.Context, classID string, req dto.RealizeBillingRequest, actor string) ([]models.LedgerEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid billing payload")
	}
	def, err := loadClassDefinition(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	var day time.Time
	switch {
	case req.Date != "":
		if day, err = parseDay(req.Date, s.gen.Location, "date"); err != nil {
			return nil, err
		}
	case !def.IsRecurring() && def.ClassDate != nil:
		day = *def.ClassDate
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required for recurring classes")
	}
	occ, err := resolveOccurrence(ctx, s.gen, s.occurrences, *def, day)
	if err != nil {
		return nil, err
	}
	return s.RealizeOccurrence(ctx, *def, occ, models.LedgerStatus(req.PaymentStatus), actor)
}

// RealizeOccurrence builds one entry per billable student and stores the batch atomically.
// Students already holding an identical active entry are returned as they are; an active entry
// with different terms rejects the whole batch.
func (s *BillingService) RealizeOccurrence(ctx context.Context, def models.ClassDefinition, occ models.Occurrence, status models.LedgerStatus, actor string) ([]models.LedgerEntry, error) {
	requested, err := ledger.NewEntries(def, occ, ledger.BillableStudents(def, occ), status, s.terms, actor, s.now())
	if err != nil {
		return nil, translateDomainError(err, "failed to build ledger entries")
	}
	entries, err := s.insertReconciled(ctx, occ, requested)
	if errors.Is(err, repository.ErrLedgerKeyTaken) {
		// Another request committed entries for this occurrence in between; classify against them.
		entries, err = s.insertReconciled(ctx, occ, requested)
	}
	if err != nil {
		s.metrics.RecordLedgerEntries("rejected", len(requested))
		return nil, translateDomainError(err, "failed to create ledger entries")
	}
	s.invalidateReports(ctx)
	return entries, nil
}

func (s *BillingService) insertReconciled(ctx context.Context, occ models.Occurrence, requested []models.LedgerEntry) ([]models.LedgerEntry, error) {
	existing, err := s.ledger.ListByOccurrence(ctx, occ.ClassID, occ.Date)
	if err != nil {
		return nil, err
	}
	insert, kept, err := ledger.Reconcile(requested, existing)
	if err != nil {
		s.logger.Info("ledger entry classified as conflicting duplicate",
			zap.String("occurrence", occ.Key().String()),
			zap.Error(err),
		)
		return nil, err
	}
	if err := s.ledger.InsertBatch(ctx, insert); err != nil {
		return nil, err
	}
	s.metrics.RecordLedgerEntries("created", len(insert))
	s.metrics.RecordLedgerEntries("kept", len(kept))
	s.logger.Info("ledger batch committed",
		zap.String("occurrence", occ.Key().String()),
		zap.Int("created", len(insert)),
		zap.Int("kept", len(kept)),
	)
	return append(kept, insert...), nil
}

// UpdateStatusForClassChange moves every unpaid and democlass entry of a class to status.
// Paid entries are skipped and counted; when nothing but paid entries matched the call fails.
func (s *BillingService) UpdateStatusForClassChange(ctx context.Context, classID string, req dto.ClassBillingStatusRequest, actor string) (*models.ClassChangeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid billing status payload")
	}
	status := models.LedgerStatus(req.Status)
	if status == models.LedgerPaid {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entries are settled through the payment endpoint")
	}
	def, err := loadClassDefinition(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	entries, err := s.query(ctx, models.LedgerFilter{
		ClassID:  classID,
		Statuses: []models.LedgerStatus{models.LedgerUnpaid, models.LedgerDemoclass, models.LedgerPaid},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class ledger")
	}

	now := s.now()
	result := &models.ClassChangeResult{}
	matched := 0
	changed := make([]models.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == models.LedgerPaid {
			result.SkippedPaid++
			continue
		}
		matched++
		if entry.Status == status {
			continue
		}
		next, err := ledger.TransitionForClassChange(entry, status, *def, s.terms, actor, now)
		if err != nil {
			return nil, translateDomainError(err, "failed to transition ledger entry")
		}
		changed = append(changed, next)
	}
	if matched == 0 && result.SkippedPaid > 0 {
		return nil, translateDomainError(ledger.ErrImmutableAfterPayment, "")
	}
	if err := s.ledger.UpdateBatch(ctx, changed); err != nil {
		return nil, translateDomainError(err, "failed to update ledger entries")
	}
	result.Updated = len(changed)
	s.metrics.RecordLedgerEntries("updated", len(changed))
	s.logger.Info("class ledger transitioned",
		zap.String("class_id", classID),
		zap.String("status", string(status)),
		zap.Int("updated", result.Updated),
		zap.Int("skipped_paid", result.SkippedPaid),
	)
	s.invalidateReports(ctx)
	return result, nil
}

// CancelOccurrence cancels the unpaid and democlass entries of an occurrence and returns the paid
// ones, which stay untouched.
func (s *BillingService) CancelOccurrence(ctx context.Context, occ models.Occurrence, reason, actor string) ([]models.LedgerEntry, []models.LedgerEntry, error) {
	entries, err := s.ledger.ListByOccurrence(ctx, occ.ClassID, occ.Date)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence ledger")
	}
	now := s.now()
	var canceled, paid []models.LedgerEntry
	for _, entry := range entries {
		switch entry.Status {
		case models.LedgerPaid:
			paid = append(paid, entry)
		case models.LedgerUnpaid, models.LedgerDemoclass:
			next, err := ledger.Cancel(entry, reason, actor, now)
			if err != nil {
				return nil, nil, translateDomainError(err, "failed to cancel ledger entry")
			}
			canceled = append(canceled, next)
		}
	}
	if err := s.ledger.UpdateBatch(ctx, canceled); err != nil {
		return nil, nil, translateDomainError(err, "failed to cancel ledger entries")
	}
	if len(canceled) > 0 {
		s.metrics.RecordLedgerEntries("updated", len(canceled))
		s.invalidateReports(ctx)
	}
	return canceled, paid, nil
}

// RepriceClass re-terms the unpaid entries of sessions starting after the given instant.
func (s *BillingService) RepriceClass(ctx context.Context, def models.ClassDefinition, after time.Time, actor string) (int, error) {
	entries, err := s.query(ctx, models.LedgerFilter{ClassID: def.ID, Statuses: []models.LedgerStatus{models.LedgerUnpaid}})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class ledger")
	}
	now := s.now()
	var changed []models.LedgerEntry
	for _, entry := range entries {
		if !entry.ScheduledStart.After(after) {
			continue
		}
		next, ok, err := ledger.Reprice(entry, def, actor, now)
		if err != nil {
			return 0, translateDomainError(err, "failed to reprice ledger entry")
		}
		if ok {
			changed = append(changed, next)
		}
	}
	if err := s.ledger.UpdateBatch(ctx, changed); err != nil {
		return 0, translateDomainError(err, "failed to reprice ledger entries")
	}
	if len(changed) > 0 {
		s.metrics.RecordLedgerEntries("updated", len(changed))
		s.invalidateReports(ctx)
	}
	return len(changed), nil
}

// Get returns one ledger entry.
func (s *BillingService) Get(ctx context.Context, id string) (*models.LedgerEntry, error) {
	entry, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entry")
	}
	return entry, nil
}

// List returns ledger entries with pagination metadata.
func (s *BillingService) List(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, *models.Pagination, error) {
	start := time.Now()
	entries, total, err := s.ledger.List(ctx, filter)
	s.metrics.ObserveDBQuery("ledger_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger entries")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ApplyDiscount applies a discount to an unpaid entry and returns the amount it took off.
func (s *BillingService) ApplyDiscount(ctx context.Context, id string, req dto.DiscountRequest, actor string) (*models.LedgerEntry, decimal.Decimal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, decimal.Zero, validationError(err, "invalid discount payload")
	}
	var applied decimal.Decimal
	entry, err := s.mutate(ctx, id, req.Version, func(entry models.LedgerEntry, now time.Time) (models.LedgerEntry, error) {
		next, amount, err := ledger.ApplyDiscount(entry, models.DiscountKind(req.Kind), req.Value, req.Reason, actor, now)
		applied = amount
		return next, err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return entry, applied, nil
}

// ApplyAdjustment applies a signed correction to an unpaid entry.
func (s *BillingService) ApplyAdjustment(ctx context.Context, id string, req dto.AdjustmentRequest, actor string) (*models.LedgerEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid adjustment payload")
	}
	return s.mutate(ctx, id, req.Version, func(entry models.LedgerEntry, now time.Time) (models.LedgerEntry, error) {
		return ledger.ApplyAdjustment(entry, req.Amount, req.Reason, actor, now)
	})
}

// MarkPaid settles an unpaid entry. There is no way back through this service.
func (s *BillingService) MarkPaid(ctx context.Context, id string, req dto.PaymentRequest, actor string) (*models.LedgerEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	return s.mutate(ctx, id, req.Version, func(entry models.LedgerEntry, now time.Time) (models.LedgerEntry, error) {
		return ledger.MarkPaid(entry, req.Method, req.Reference, actor, now)
	})
}

// Void retires an unpaid or democlass entry, freeing its occurrence slot for the student.
func (s *BillingService) Void(ctx context.Context, id string, req dto.VoidRequest, actor string) (*models.LedgerEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid void payload")
	}
	return s.mutate(ctx, id, req.Version, func(entry models.LedgerEntry, now time.Time) (models.LedgerEntry, error) {
		return ledger.Void(entry, req.Reason, actor, now)
	})
}

// mutate loads an entry, applies one engine transition and stores it with a version guard.
// A non-zero expected version must match the stored one.
func (s *BillingService) mutate(ctx context.Context, id string, expected int, apply func(models.LedgerEntry, time.Time) (models.LedgerEntry, error)) (*models.LedgerEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if expected > 0 && entry.Version != expected {
		return nil, translateDomainError(repository.ErrStaleVersion, "")
	}
	next, err := apply(*entry, s.now())
	if err != nil {
		return nil, translateDomainError(err, "failed to update ledger entry")
	}
	if err := s.ledger.Update(ctx, &next); err != nil {
		return nil, translateDomainError(err, "failed to store ledger entry")
	}
	s.metrics.RecordLedgerEntries("updated", 1)
	s.invalidateReports(ctx)
	return &next, nil
}

func (s *BillingService) query(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error) {
	start := time.Now()
	entries, err := s.ledger.Query(ctx, filter)
	s.metrics.ObserveDBQuery("ledger_query", time.Since(start))
	return entries, err
}

func (s *BillingService) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	// Failures are logged by the cache service; cached reports expire on their own.
	_ = s.cache.Invalidate(ctx, cache.Key(reportCacheNamespace, "*"))
}
