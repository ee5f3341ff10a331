package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-class-api/internal/models"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
	"github.com/noah-isme/tutor-class-api/pkg/logger"
)

type tokenValidatorStub struct {
	claims *models.JWTClaims
	err    error
	got    string
}

func (s *tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	s.got = token
	return s.claims, s.err
}

type auditWriterStub struct {
	logs []models.AuditLog
}

func (s *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (s *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.paths = append(s.paths, path)
	s.statuses = append(s.statuses, status)
}

func perform(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := &tokenValidatorStub{claims: &models.JWTClaims{UserID: "tutor-1", Role: models.RoleTutor}}
	r := gin.New()
	r.GET("/me", JWT(validator), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.UserIDKey))
	})

	w := perform(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/me", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/me", "Bearer token-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tutor-1", w.Body.String())
	assert.Equal(t, "token-1", validator.got)

	validator.err = appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	w = perform(r, http.MethodGet, "/me", "Bearer token-1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := &tokenValidatorStub{claims: &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}}
	r := gin.New()
	r.POST("/classes", JWT(validator), RequireRoles(models.RoleAdmin, models.RoleTutor), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	r.POST("/open", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodPost, "/classes", "Bearer t").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/open", "").Code)

	validator.claims = &models.JWTClaims{UserID: "tutor-1", Role: models.RoleTutor}
	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/classes", "Bearer t").Code)
}

func TestAuditRecordsSuccessfulMutations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditWriterStub{}
	validator := &tokenValidatorStub{claims: &models.JWTClaims{UserID: "tutor-1", Role: models.RoleTutor}}
	r := gin.New()
	r.POST("/classes/:id/occurrences/:date/cancel", JWT(validator), Audit(writer, nil, models.AuditActionOccurrenceCancel, "class"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/classes/:id/fail", Audit(writer, nil, models.AuditActionClassReschedule, "class"), func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})

	perform(r, http.MethodPost, "/classes/class-1/occurrences/2024-01-10/cancel", "Bearer t")
	perform(r, http.MethodPost, "/classes/class-1/fail", "")

	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, models.AuditActionOccurrenceCancel, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "tutor-1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "class-1", *log.ResourceID)
	assert.Contains(t, string(log.NewValues), `"date":"2024-01-10"`)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/classes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/classes/class-1", "")
	perform(r, http.MethodGet, "/nope", "")

	assert.Equal(t, []string{"/classes/:id", "unmatched"}, observer.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, observer.statuses)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/reports", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	perform(r, http.MethodGet, "/reports", "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.Nil(t, ExtractMeta(nil))
}
