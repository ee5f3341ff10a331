package models

import "time"

// JoinReasonCode is the machine-readable reason attached to a join decision.
type JoinReasonCode string

const (
	JoinGranted           JoinReasonCode = "OK"
	JoinNotScheduled      JoinReasonCode = "NOT_SCHEDULED"
	JoinNoUpcomingSession JoinReasonCode = "NO_UPCOMING_SESSION"
	JoinNotYetOpen        JoinReasonCode = "JOIN_NOT_OPEN"
	JoinWindowClosed      JoinReasonCode = "JOIN_WINDOW_CLOSED"
	JoinNotAuthorized     JoinReasonCode = "NOT_AUTHORIZED_TO_JOIN"
)

// JoinDecision answers whether a participant may join an occurrence right now.
// Denials are expected outcomes and are returned as data.
type JoinDecision struct {
	CanJoin          bool           `json:"can_join"`
	Code             JoinReasonCode `json:"code"`
	Reason           string         `json:"reason,omitempty"`
	SessionStart     *time.Time     `json:"session_start,omitempty"`
	SessionEnd       *time.Time     `json:"session_end,omitempty"`
	JoinOpensAt      *time.Time     `json:"join_opens_at,omitempty"`
	MinutesUntilOpen int            `json:"minutes_until_open,omitempty"`
	BridgeToken      string         `json:"bridge_token,omitempty"`
	TokenExpiresAt   *time.Time     `json:"token_expires_at,omitempty"`
}
