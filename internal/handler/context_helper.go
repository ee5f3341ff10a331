package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-class-api/internal/middleware"
	"github.com/noah-isme/tutor-class-api/internal/models"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
	"github.com/noah-isme/tutor-class-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes an unauthorized response when the request carries no claims.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// bindJSON decodes the request body; an empty body leaves req untouched.
func bindJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, validationBindError())
		return false
	}
	return true
}

func validationBindError() error {
	return appErrors.Clone(appErrors.ErrValidation, "invalid request body")
}

func parseQueryDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, field+" must be YYYY-MM-DD")
	}
	return &day, nil
}
