package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/reporting"
	"github.com/noah-isme/tutor-class-api/pkg/cache"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

const reportCacheNamespace = "reports"

type ledgerQuerier interface {
	Query(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ReportServiceConfig governs summary caching.
type ReportServiceConfig struct {
	Location *time.Location
	CacheTTL time.Duration
}

// ReportService builds read-only ledger rollups and exports. It never writes ledger data.
type ReportService struct {
	ledger    ledgerQuerier
	cache     reportCache
	exporter  *ExportService
	metrics   *MetricsService
	cfg       ReportServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs ReportService.
func NewReportService(ledgerRepo ledgerQuerier, cacheSvc reportCache, exporter *ExportService, metrics *MetricsService, cfg ReportServiceConfig, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if exporter == nil {
		exporter = NewExportService(nil, nil)
	}
	return &ReportService{
		ledger:    ledgerRepo,
		cache:     cacheSvc,
		exporter:  exporter,
		metrics:   metrics,
		cfg:       cfg,
		validator: registerDomainValidations(validate),
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateReport returns the summary for the filter, serving it from cache when possible. The
// boolean reports a cache hit.
func (s *ReportService) GenerateReport(ctx context.Context, query dto.LedgerReportQuery) (*models.ReportSummary, bool, error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, false, err
	}
	key := reportCacheKey(filter)

	if s.cache != nil {
		var cached models.ReportSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	entries, err := s.query(ctx, filter.LedgerFilter)
	if err != nil {
		return nil, false, err
	}
	summary := reporting.Aggregate(entries, s.now().UTC(), filter.GroupBy)

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	}
	return &summary, false, nil
}

// Export renders the filtered entries with their summary as CSV or PDF.
func (s *ReportService) Export(ctx context.Context, query dto.LedgerReportQuery) (*ExportResult, error) {
	format := models.ReportFormat(query.Format)
	if format == "" {
		format = models.ReportFormatCSV
	}
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, err
	}
	entries, err := s.query(ctx, filter.LedgerFilter)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	summary := reporting.Aggregate(entries, now, filter.GroupBy)
	result, err := s.exporter.Render(entries, summary, format, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("ledger export rendered",
		zap.String("format", string(format)),
		zap.Int("entries", len(entries)),
		zap.Int("bytes", len(result.Payload)),
	)
	return result, nil
}

func (s *ReportService) query(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error) {
	start := time.Now()
	entries, err := s.ledger.Query(ctx, filter)
	s.metrics.ObserveDBQuery("ledger_report", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query ledger entries")
	}
	return entries, nil
}

func (s *ReportService) buildFilter(query dto.LedgerReportQuery) (models.ReportFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.ReportFilter{}, validationError(err, "invalid report filter")
	}
	filter := models.ReportFilter{
		LedgerFilter: models.LedgerFilter{
			ClassID:   query.ClassID,
			TutorID:   query.TutorID,
			StudentID: query.StudentID,
			Currency:  strings.ToUpper(query.Currency),
		},
		GroupBy: query.GroupBy,
	}
	for _, status := range query.Statuses {
		filter.Statuses = append(filter.Statuses, models.LedgerStatus(status))
	}
	if query.From != "" {
		from, err := parseDay(query.From, s.cfg.Location, "from")
		if err != nil {
			return models.ReportFilter{}, err
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := parseDay(query.To, s.cfg.Location, "to")
		if err != nil {
			return models.ReportFilter{}, err
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return models.ReportFilter{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}

// reportCacheKey hashes the normalised filter so equal filters share a cache entry.
func reportCacheKey(filter models.ReportFilter) string {
	normalized := struct {
		ClassID   string   `json:"c"`
		TutorID   string   `json:"t"`
		StudentID string   `json:"s"`
		Currency  string   `json:"cur"`
		Statuses  []string `json:"st"`
		From      string   `json:"f"`
		To        string   `json:"to"`
		GroupBy   string   `json:"g"`
	}{
		ClassID:   filter.ClassID,
		TutorID:   filter.TutorID,
		StudentID: filter.StudentID,
		Currency:  filter.Currency,
		GroupBy:   filter.GroupBy,
	}
	for _, status := range filter.Statuses {
		normalized.Statuses = append(normalized.Statuses, string(status))
	}
	sort.Strings(normalized.Statuses)
	if filter.From != nil {
		normalized.From = filter.From.Format(models.DateLayout)
	}
	if filter.To != nil {
		normalized.To = filter.To.Format(models.DateLayout)
	}
	payload, _ := json.Marshal(normalized)
	sum := sha256.Sum256(payload)
	return cache.Key(reportCacheNamespace, "ledger", hex.EncodeToString(sum[:16]))
}
