package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/models"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
	"github.com/noah-isme/tutor-class-api/pkg/response"
)

type billingService interface {
	RealizeBilling(ctx context.Context, classID string, req dto.RealizeBillingRequest, actor string) ([]models.LedgerEntry, error)
	UpdateStatusForClassChange(ctx context.Context, classID string, req dto.ClassBillingStatusRequest, actor string) (*models.ClassChangeResult, error)
	Get(ctx context.Context, id string) (*models.LedgerEntry, error)
	List(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, *models.Pagination, error)
	ApplyDiscount(ctx context.Context, id string, req dto.DiscountRequest, actor string) (*models.LedgerEntry, decimal.Decimal, error)
	ApplyAdjustment(ctx context.Context, id string, req dto.AdjustmentRequest, actor string) (*models.LedgerEntry, error)
	MarkPaid(ctx context.Context, id string, req dto.PaymentRequest, actor string) (*models.LedgerEntry, error)
	Void(ctx context.Context, id string, req dto.VoidRequest, actor string) (*models.LedgerEntry, error)
}

// BillingHandler exposes ledger endpoints.
type BillingHandler struct {
	service billingService
}

// NewBillingHandler constructs a billing handler.
func NewBillingHandler(svc billingService) *BillingHandler {
	return &BillingHandler{service: svc}
}

// Realize godoc
// @Summary Realise billing for one occurrence
// @Description Creates one ledger entry per enrolled student. Repeating the call is idempotent.
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.RealizeBillingRequest true "Billing payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/billing [post]
func (h *BillingHandler) Realize(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.RealizeBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	entries, err := h.service.RealizeBilling(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entries)
}

// UpdateClassStatus godoc
// @Summary Transition the open entries of a class
// @Description Paid entries are skipped; only-paid matches fail with IMMUTABLE_AFTER_PAYMENT.
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.ClassBillingStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/billing/status [patch]
func (h *BillingHandler) UpdateClassStatus(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ClassBillingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	result, err := h.service.UpdateStatusForClassChange(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List ledger entries
// @Description Students only see their own entries.
// @Tags Billing
// @Produce json
// @Param class_id query string false "Class ID"
// @Param student_id query string false "Student ID"
// @Param status query []string false "Statuses"
// @Param from query string false "First occurrence date"
// @Param to query string false "Last occurrence date"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /ledger [get]
func (h *BillingHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var query dto.LedgerListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	filter, err := ledgerFilterFromQuery(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}
	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Get godoc
// @Summary Get ledger entry
// @Tags Billing
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledger/{id} [get]
func (h *BillingHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role == models.RoleStudent && entry.StudentID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "ledger entry not found"))
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// ApplyDiscount godoc
// @Summary Apply a discount to an unpaid entry
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Param payload body dto.DiscountRequest true "Discount"
// @Success 200 {object} response.Envelope
// @Router /ledger/{id}/discounts [post]
func (h *BillingHandler) ApplyDiscount(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	entry, applied, err := h.service.ApplyDiscount(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DiscountResponse{Applied: applied, Entry: *entry}, nil)
}

// ApplyAdjustment godoc
// @Summary Apply a signed correction to an unpaid entry
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Param payload body dto.AdjustmentRequest true "Adjustment"
// @Success 200 {object} response.Envelope
// @Router /ledger/{id}/adjustments [post]
func (h *BillingHandler) ApplyAdjustment(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	entry, err := h.service.ApplyAdjustment(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// MarkPaid godoc
// @Summary Settle an unpaid entry
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Param payload body dto.PaymentRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Router /ledger/{id}/pay [post]
func (h *BillingHandler) MarkPaid(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	entry, err := h.service.MarkPaid(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Void godoc
// @Summary Void an unpaid or democlass entry
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Param payload body dto.VoidRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /ledger/{id}/void [post]
func (h *BillingHandler) Void(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.VoidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	entry, err := h.service.Void(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

func ledgerFilterFromQuery(query dto.LedgerListQuery) (models.LedgerFilter, error) {
	filter := models.LedgerFilter{
		ClassID:   query.ClassID,
		StudentID: query.StudentID,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	for _, raw := range query.Statuses {
		status := models.LedgerStatus(raw)
		switch status {
		case models.LedgerUnpaid, models.LedgerPaid, models.LedgerDemoclass, models.LedgerVoid, models.LedgerCanceled:
			filter.Statuses = append(filter.Statuses, status)
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown ledger status "+raw)
		}
	}
	var err error
	if filter.From, err = parseQueryDate(query.From, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseQueryDate(query.To, "to"); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}
