package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tutor-class-api/pkg/config"
)

func TestViolationMatching(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "ledger_entries_active_key"})
	exclusion := &pq.Error{Code: "23P01", Constraint: "class_occurrences_no_overlap"}

	assert.True(t, IsUniqueViolation(unique, ""))
	assert.True(t, IsUniqueViolation(unique, "ledger_entries_active_key"))
	assert.False(t, IsUniqueViolation(unique, "other"))
	assert.False(t, IsExclusionViolation(unique, ""))
	assert.True(t, IsExclusionViolation(exclusion, "class_occurrences_no_overlap"))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "tutor", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tutor sslmode=disable timezone=UTC", dsn)
}
