package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/scheduling"
)

type joinOccurrenceStore interface {
	occurrenceReader
	AddAttendee(ctx context.Context, occ models.Occurrence, participantID string) error
}

type participantLedger interface {
	ExistsForParticipant(ctx context.Context, classID string, date time.Time, studentID string) (bool, error)
}

// bridgeTokenMinLifetime keeps a token issued at the very end of a session usable.
const bridgeTokenMinLifetime = time.Minute

type bridgeTokenIssuer interface {
	IssueBridgeToken(claims models.BridgeClaims, expiresAt time.Time) (string, error)
}

// JoinServiceConfig tunes join resolution.
type JoinServiceConfig struct {
	Location          *time.Location
	LookaheadDays     int
	DefaultJoinWindow int
}

// JoinService answers join requests: the participant must be authorised and the session inside
// its join window. Granted joins are recorded and receive a bridge token.
type JoinService struct {
	classes     classReader
	occurrences joinOccurrenceStore
	ledger      participantLedger
	tokens      bridgeTokenIssuer
	gen         scheduling.Generator
	gate        scheduling.JoinGate
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewJoinService constructs JoinService.
func NewJoinService(classes classReader, occurrences joinOccurrenceStore, ledgerRepo participantLedger, tokens bridgeTokenIssuer, cfg JoinServiceConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *JoinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := scheduling.NewGenerator(cfg.LookaheadDays, cfg.DefaultJoinWindow, cfg.Location)
	return &JoinService{
		classes:     classes,
		occurrences: occurrences,
		ledger:      ledgerRepo,
		tokens:      tokens,
		gen:         gen,
		gate:        scheduling.NewJoinGate(gen),
		metrics:     metrics,
		validator:   registerDomainValidations(validate),
		logger:      logger,
		now:         time.Now,
	}
}

// EvaluateJoin decides whether the participant may join the class now. Denials are returned as
// decisions, not errors.
func (s *JoinService) EvaluateJoin(ctx context.Context, classID string, req dto.JoinRequest, participantID string, role models.UserRole) (*models.JoinDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid join payload")
	}
	def, err := loadClassDefinition(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := scheduling.Today(now, s.gen.Location)

	var requested *models.Occurrence
	if req.Date != "" {
		day, err := parseDay(req.Date, s.gen.Location, "date")
		if err != nil {
			return nil, err
		}
		occ, err := resolveOccurrence(ctx, s.gen, s.occurrences, *def, day)
		if err != nil {
			return nil, err
		}
		requested = &occ
	}

	stored, err := storedIndex(ctx, s.occurrences, *def, today.AddDate(0, 0, -1), today.AddDate(0, 0, s.gen.LookaheadDays))
	if err != nil {
		return nil, err
	}
	target, err := s.target(*def, requested, stored, now)
	if err != nil {
		return nil, translateDomainError(err, "failed to resolve session")
	}

	authorized, err := s.authorized(ctx, *def, target, participantID)
	if err != nil {
		return nil, err
	}
	if !authorized {
		decision := scheduling.NotAuthorized()
		s.record(def.ID, participantID, decision)
		return &decision, nil
	}

	decision, err := s.gate.Evaluate(*def, requested, stored, now)
	if err != nil {
		return nil, translateDomainError(err, "failed to evaluate join")
	}
	if !decision.CanJoin || target == nil {
		s.record(def.ID, participantID, decision)
		return &decision, nil
	}

	expires := target.EndsAt
	if floor := now.Add(bridgeTokenMinLifetime); expires.Before(floor) {
		expires = floor
	}
	token, err := s.tokens.IssueBridgeToken(models.BridgeClaims{
		ClassID:       def.ID,
		Date:          target.Date.Format(models.DateLayout),
		ParticipantID: participantID,
		Role:          role,
	}, expires)
	if err != nil {
		return nil, translateDomainError(err, "failed to issue bridge token")
	}
	if participantID != def.TutorID && !target.HasAttendee(participantID) {
		if err := s.occurrences.AddAttendee(ctx, *target, participantID); err != nil {
			return nil, translateDomainError(err, "failed to record attendance")
		}
	}
	decision.BridgeToken = token
	decision.TokenExpiresAt = &expires
	s.record(def.ID, participantID, decision)
	return &decision, nil
}

// target is the occurrence a request is about: the requested date, the one-time session itself,
// or the current or next recurring session.
func (s *JoinService) target(def models.ClassDefinition, requested *models.Occurrence, stored scheduling.OccurrenceIndex, now time.Time) (*models.Occurrence, error) {
	if requested != nil {
		return requested, nil
	}
	if !def.IsRecurring() {
		if def.ClassDate == nil {
			return nil, nil
		}
		occ, err := s.gen.OneTimeOccurrence(def, stored)
		if err != nil {
			return nil, err
		}
		return &occ, nil
	}
	return s.gen.NextOccurrence(def, now, stored)
}

func (s *JoinService) authorized(ctx context.Context, def models.ClassDefinition, target *models.Occurrence, participantID string) (bool, error) {
	if scheduling.IsAuthorizedParticipant(def, target, participantID, false) {
		return true, nil
	}
	if target == nil || participantID == "" {
		return false, nil
	}
	hasEntry, err := s.ledger.ExistsForParticipant(ctx, def.ID, target.Date, participantID)
	if err != nil {
		return false, translateDomainError(err, "failed to check participant ledger")
	}
	return scheduling.IsAuthorizedParticipant(def, target, participantID, hasEntry), nil
}

func (s *JoinService) record(classID, participantID string, decision models.JoinDecision) {
	s.metrics.RecordJoinDecision(decision.Code)
	s.logger.Debug("join evaluated",
		zap.String("class_id", classID),
		zap.String("participant_id", participantID),
		zap.Bool("can_join", decision.CanJoin),
		zap.String("code", string(decision.Code)),
	)
}
