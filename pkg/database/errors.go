package database

import (
	"errors"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation    pq.ErrorCode = "23505"
	codeExclusionViolation pq.ErrorCode = "23P01"
)

// IsUniqueViolation reports whether err is a postgres unique_violation, optionally on a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, codeUniqueViolation, constraint)
}

// IsExclusionViolation reports whether err is a postgres exclusion_violation, optionally on a named constraint.
func IsExclusionViolation(err error, constraint string) bool {
	return hasCode(err, codeExclusionViolation, constraint)
}

func hasCode(err error, code pq.ErrorCode, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
