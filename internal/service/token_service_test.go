package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

func newTestTokenService(now string) *TokenService {
	svc := NewTokenService(config.JWTConfig{Secret: "access-secret"}, config.BridgeConfig{TokenSecret: "bridge-secret", TokenIssuer: "tutor-class-api"})
	svc.now = fixedClock(now)
	return svc
}

func signAccessToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := newTestTokenService("2024-01-10 12:00")
	expires := jwt.NewNumericDate(mustAt("2024-01-10 13:00"))

	valid := signAccessToken(t, "access-secret", models.JWTClaims{
		UserID: "tutor-1", Role: models.RoleTutor,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: expires},
	})
	claims, err := svc.ValidateToken(valid)
	require.NoError(t, err)
	assert.Equal(t, "tutor-1", claims.UserID)
	assert.Equal(t, models.RoleTutor, claims.Role)

	forged := signAccessToken(t, "other-secret", models.JWTClaims{UserID: "tutor-1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: expires}})
	_, err = svc.ValidateToken(forged)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	anonymous := signAccessToken(t, "access-secret", models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: expires}})
	_, err = svc.ValidateToken(anonymous)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	late := newTestTokenService("2024-01-10 14:00")
	_, err = late.ValidateToken(valid)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceBridgeTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService("2024-01-10 13:50")
	ends := mustAt("2024-01-10 14:45")

	token, err := svc.IssueBridgeToken(models.BridgeClaims{
		ClassID: "class-1", Date: "2024-01-10", ParticipantID: "student-1", Role: models.RoleStudent,
	}, ends)
	require.NoError(t, err)

	claims, err := svc.ParseBridgeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.Subject)
	assert.Equal(t, "tutor-class-api", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"session-bridge"}, claims.Audience)
	assert.True(t, claims.ExpiresAt.Time.Equal(ends))
	assert.NotEmpty(t, claims.ID)

	after := newTestTokenService("2024-01-10 15:00")
	_, err = after.ParseBridgeToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenServiceRefusesExpiredBridgeToken(t *testing.T) {
	svc := newTestTokenService("2024-01-10 15:00")
	_, err := svc.IssueBridgeToken(models.BridgeClaims{ParticipantID: "student-1"}, mustAt("2024-01-10 14:45"))
	assert.Error(t, err)

	_, err = svc.IssueBridgeToken(models.BridgeClaims{ParticipantID: "student-1"}, mustAt("2024-01-10 15:00").Add(time.Second))
	assert.NoError(t, err)
}
