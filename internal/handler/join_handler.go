package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-class-api/internal/dto"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/pkg/response"
)

type joinService interface {
	EvaluateJoin(ctx context.Context, classID string, req dto.JoinRequest, participantID string, role models.UserRole) (*models.JoinDecision, error)
}

// JoinHandler exposes the join gate.
type JoinHandler struct {
	service joinService
}

// NewJoinHandler constructs a join handler.
func NewJoinHandler(svc joinService) *JoinHandler {
	return &JoinHandler{service: svc}
}

// Join godoc
// @Summary Ask to join a class session
// @Description Denials are returned with 200 and a reason code; granted decisions carry a bridge token.
// @Tags Join
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.JoinRequest false "Specific occurrence date"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/join [post]
func (h *JoinHandler) Join(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.JoinRequest
	if !bindJSON(c, &req) {
		return
	}
	decision, err := h.service.EvaluateJoin(c.Request.Context(), c.Param("id"), req, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}
