package scheduling

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

const (
	reasonNotScheduled   = "not scheduled"
	reasonNoUpcoming     = "no upcoming session"
	reasonSessionEnded   = "session has ended"
	reasonNotAuthorized  = "not authorized to join"
	reasonJoinOpenFormat = "join available in %d minutes"
)

// JoinGate decides from wall-clock time whether an occurrence is joinable.
//
// States per occurrence: NotYetOpen -> Joinable -> Closed, driven by
// joinOpensAt = start - joinWindow, start, and end = start + duration.
type JoinGate struct {
	gen Generator
}

// NewJoinGate builds a gate sharing the generator's rules.
func NewJoinGate(gen Generator) JoinGate {
	return JoinGate{gen: gen}
}

// Evaluate answers whether the class can be joined at now. When occ is non-nil it is the
// specific dated occurrence being joined; otherwise the session is resolved from the class.
func (g JoinGate) Evaluate(def models.ClassDefinition, occ *models.Occurrence, stored OccurrenceIndex, now time.Time) (models.JoinDecision, error) {
	if def.Status != models.ClassStatusScheduled {
		return deny(models.JoinNotScheduled, reasonNotScheduled), nil
	}
	if occ != nil && occ.Status != models.OccurrenceScheduled {
		return deny(models.JoinNotScheduled, reasonNotScheduled), nil
	}

	session, decision, err := g.resolve(def, occ, stored, now)
	if err != nil || session == nil {
		return decision, err
	}

	start := session.StartsAt
	end := session.EndsAt
	opens := AddMinutes(start, -g.gen.JoinWindow(def))
	decision = models.JoinDecision{SessionStart: &start, SessionEnd: &end, JoinOpensAt: &opens}

	switch {
	case now.Before(opens):
		minutes := int(math.Ceil(opens.Sub(now).Minutes()))
		decision.Code = models.JoinNotYetOpen
		decision.MinutesUntilOpen = minutes
		decision.Reason = fmt.Sprintf(reasonJoinOpenFormat, minutes)
	case now.After(end):
		decision.Code = models.JoinWindowClosed
		decision.Reason = reasonSessionEnded
	default:
		decision.CanJoin = true
		decision.Code = models.JoinGranted
	}
	return decision, nil
}

func (g JoinGate) resolve(def models.ClassDefinition, occ *models.Occurrence, stored OccurrenceIndex, now time.Time) (*models.Occurrence, models.JoinDecision, error) {
	if occ != nil {
		return occ, models.JoinDecision{}, nil
	}

	if !def.IsRecurring() {
		if def.ClassDate == nil {
			return nil, deny(models.JoinNoUpcomingSession, reasonNoUpcoming), nil
		}
		own, err := g.gen.OneTimeOccurrence(def, stored)
		if err != nil {
			return nil, models.JoinDecision{}, err
		}
		if own.Status != models.OccurrenceScheduled {
			return nil, deny(models.JoinNotScheduled, reasonNotScheduled), nil
		}
		if now.After(own.EndsAt) {
			return nil, deny(models.JoinNoUpcomingSession, reasonNoUpcoming), nil
		}
		return &own, models.JoinDecision{}, nil
	}

	next, err := g.gen.NextOccurrence(def, now, stored)
	if err != nil {
		return nil, models.JoinDecision{}, err
	}
	if next == nil {
		return nil, deny(models.JoinNoUpcomingSession, reasonNoUpcoming), nil
	}
	return next, models.JoinDecision{}, nil
}

// IsAuthorizedParticipant reports whether the participant may join at all: the tutor, an enrolled
// student, an attendee of the occurrence, or someone already holding a ledger entry for it.
func IsAuthorizedParticipant(def models.ClassDefinition, occ *models.Occurrence, participantID string, hasLedgerEntry bool) bool {
	if participantID == "" {
		return false
	}
	if def.TutorID == participantID || def.HasStudent(participantID) {
		return true
	}
	if occ != nil && occ.HasAttendee(participantID) {
		return true
	}
	return hasLedgerEntry
}

// NotAuthorized is the decision returned to participants failing IsAuthorizedParticipant.
func NotAuthorized() models.JoinDecision {
	return deny(models.JoinNotAuthorized, reasonNotAuthorized)
}

func deny(code models.JoinReasonCode, reason string) models.JoinDecision {
	return models.JoinDecision{CanJoin: false, Code: code, Reason: reason}
}
