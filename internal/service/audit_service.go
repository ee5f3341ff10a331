package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/pkg/jobs"
)

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService moves audit writes off the request path onto a worker queue.
type AuditService struct {
	store  auditStore
	queue  *jobs.Queue[models.AuditLog]
	logger *zap.Logger
}

// NewAuditService builds the service; call Start before serving traffic.
func NewAuditService(store auditStore, cfg jobs.Config, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	s := &AuditService{store: store, logger: logger}
	s.queue = jobs.New[models.AuditLog]("audit", s.write, cfg)
	return s
}

// Start launches the audit workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes queued entries.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// CreateAuditLog queues the entry. When the queue is not running the entry is written inline.
func (s *AuditService) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	entry := *log
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.queue.Enqueue(jobs.Task[models.AuditLog]{ID: entry.ID, Payload: entry}); err != nil {
		s.logger.Debug("audit queue unavailable, writing inline", zap.Error(err))
		return s.store.CreateAuditLog(ctx, &entry)
	}
	return nil
}

func (s *AuditService) write(ctx context.Context, task jobs.Task[models.AuditLog]) error {
	entry := task.Payload
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.store.CreateAuditLog(writeCtx, &entry)
}
