package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/middleware"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/service"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
	"github.com/noah-isme/tutor-class-api/pkg/response"
)

type reportService interface {
	GenerateReport(ctx context.Context, query dto.LedgerReportQuery) (*models.ReportSummary, bool, error)
	Export(ctx context.Context, query dto.LedgerReportQuery) (*service.ExportResult, error)
}

// ReportHandler exposes ledger reporting endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// LedgerSummary godoc
// @Summary Ledger summary report
// @Description Served from cache when the same filter was requested recently; meta.cache_hit reports it.
// @Tags Reports
// @Produce json
// @Param class_id query string false "Class ID"
// @Param tutor_id query string false "Tutor ID"
// @Param student_id query string false "Student ID"
// @Param currency query string false "ISO currency"
// @Param status query []string false "Statuses"
// @Param from query string false "First occurrence date"
// @Param to query string false "Last occurrence date"
// @Param group_by query string false "status or age"
// @Success 200 {object} response.Envelope
// @Router /reports/ledger [get]
func (h *ReportHandler) LedgerSummary(c *gin.Context) {
	var query dto.LedgerReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	summary, hit, err := h.reports.GenerateReport(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// LedgerExport godoc
// @Summary Export ledger entries
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /reports/ledger/export [get]
func (h *ReportHandler) LedgerExport(c *gin.Context) {
	var query dto.LedgerReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	result, err := h.reports.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.ContentType, result.Filename, result.Payload)
}
