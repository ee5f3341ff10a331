package dto

// JoinRequest asks to join a class. Date selects a specific occurrence; when empty the current
// or next session is resolved.
type JoinRequest struct {
	Date string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}
