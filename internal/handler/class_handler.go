package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/pkg/response"
)

type classService interface {
	Get(ctx context.Context, id string) (*models.ClassDefinition, error)
	Create(ctx context.Context, req dto.ClassRequest, actor string) (*models.ClassDefinition, error)
	Update(ctx context.Context, id string, req dto.ClassRequest, actor string) (*models.ClassDefinition, error)
	NextOccurrence(ctx context.Context, id string) (*models.Occurrence, error)
	ListOccurrences(ctx context.Context, id, from, to string) (*dto.OccurrenceListResponse, error)
	CheckAvailability(ctx context.Context, req dto.AvailabilityRequest) (*dto.AvailabilityResponse, error)
	CancelOccurrence(ctx context.Context, id, date string, req dto.CancelOccurrenceRequest, actor string) (*dto.CancelOccurrenceResponse, error)
	CompleteOccurrence(ctx context.Context, id, date string, req dto.CompleteOccurrenceRequest, actor string) (*dto.CompleteOccurrenceResponse, error)
}

// ClassHandler exposes class scheduling endpoints.
type ClassHandler struct {
	service classService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc classService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// Create godoc
// @Summary Schedule a class
// @Description Rejects the class with SCHEDULING_CONFLICT when the tutor is already booked.
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	class, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Reschedule a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	class, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// NextOccurrence godoc
// @Summary Resolve the current or next session of a class
// @Description Data is null when no session exists within the lookahead horizon.
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/next-occurrence [get]
func (h *ClassHandler) NextOccurrence(c *gin.Context) {
	occ, err := h.service.NextOccurrence(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"occurrence": occ}, nil)
}

// ListOccurrences godoc
// @Summary List dated occurrences of a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/occurrences [get]
func (h *ClassHandler) ListOccurrences(c *gin.Context) {
	resp, err := h.service.ListOccurrences(c.Request.Context(), c.Param("id"), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// CheckAvailability godoc
// @Summary Check whether a tutor is free
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.AvailabilityRequest true "Candidate booking"
// @Success 200 {object} response.Envelope
// @Router /availability/check [post]
func (h *ClassHandler) CheckAvailability(c *gin.Context) {
	var req dto.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validationBindError())
		return
	}
	resp, err := h.service.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// CancelOccurrence godoc
// @Summary Cancel one dated occurrence
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Param payload body dto.CancelOccurrenceRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/occurrences/{date}/cancel [post]
func (h *ClassHandler) CancelOccurrence(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CancelOccurrenceRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.CancelOccurrence(c.Request.Context(), c.Param("id"), c.Param("date"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// CompleteOccurrence godoc
// @Summary Complete one dated occurrence and realise its billing
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Param payload body dto.CompleteOccurrenceRequest false "Payment status"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/occurrences/{date}/complete [post]
func (h *ClassHandler) CompleteOccurrence(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CompleteOccurrenceRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.CompleteOccurrence(c.Request.Context(), c.Param("id"), c.Param("date"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
