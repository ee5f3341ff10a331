package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried by access tokens from the identity service.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTutor   UserRole = "TUTOR"
	RoleStudent UserRole = "STUDENT"
	RoleParent  UserRole = "PARENT"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// BridgeClaims is the payload of a session-bridge join token.
type BridgeClaims struct {
	ClassID       string   `json:"class_id"`
	Date          string   `json:"date"`
	ParticipantID string   `json:"participant_id"`
	Role          UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Pagination describes list metadata returned with paged responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
