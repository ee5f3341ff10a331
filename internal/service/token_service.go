package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

// TokenService validates access tokens minted by the identity service and signs join tokens
// for the session bridge.
type TokenService struct {
	accessSecret []byte
	bridgeSecret []byte
	issuer       string
	now          func() time.Time
}

// NewTokenService constructs TokenService.
func NewTokenService(jwtCfg config.JWTConfig, bridgeCfg config.BridgeConfig) *TokenService {
	return &TokenService{
		accessSecret: []byte(jwtCfg.Secret),
		bridgeSecret: []byte(bridgeCfg.TokenSecret),
		issuer:       bridgeCfg.TokenIssuer,
		now:          time.Now,
	}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.accessSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// IssueBridgeToken signs a join token that expires when the session ends.
func (s *TokenService) IssueBridgeToken(claims models.BridgeClaims, expiresAt time.Time) (string, error) {
	now := s.now()
	if !expiresAt.After(now) {
		return "", fmt.Errorf("bridge token would already be expired")
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   claims.ParticipantID,
		Audience:  jwt.ClaimStrings{"session-bridge"},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.bridgeSecret)
	if err != nil {
		return "", fmt.Errorf("sign bridge token: %w", err)
	}
	return signed, nil
}

// ParseBridgeToken verifies a join token issued by IssueBridgeToken.
func (s *TokenService) ParseBridgeToken(tokenString string) (*models.BridgeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.BridgeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.bridgeSecret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience("session-bridge"), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid bridge token")
	}
	claims, ok := token.Claims.(*models.BridgeClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid bridge token claims")
	}
	return claims, nil
}
