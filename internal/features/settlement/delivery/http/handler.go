package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bytebattle-backend/internal/common/middleware"
	"bytebattle-backend/internal/common/money"
	"bytebattle-backend/internal/common/validation"
	"bytebattle-backend/internal/features/settlement/models"
	"bytebattle-backend/internal/features/settlement/service"
)

type SettlementHandler struct {
	service service.SettlementService
}

func NewSettlementHandler(service service.SettlementService) *SettlementHandler {
	return &SettlementHandler{service: service}
}

func (h *SettlementHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/challenges")
	admin.Use(middleware.RequireAdmin())
	{
		admin.PUT("/:id/winner", h.declareWinner)
		admin.POST("/:id/settle", h.settle)
	}
}

// @Summary Declare winner
// @Description Settle the challenge: the winner receives the whole pot. A challenge is settled at most once (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Challenge ID"
// @Param request body models.DeclareWinnerRequest true "Winner and score"
// @Success 200 {object} models.ResultResponse
// @Failure 400 {object} middleware.ErrorResponse "Already has a winner or payment not confirmed"
// @Failure 404 {object} middleware.ErrorResponse "Challenge, user or participation not found"
// @Failure 503 {object} middleware.ErrorResponse "Storage busy, retry"
// @Router /challenges/{id}/winner [put]
func (h *SettlementHandler) declareWinner(c *gin.Context) {
	var req models.DeclareWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	result, err := h.service.DeclareWinner(c.Request.Context(), c.Param("id"), req.WinnerID, *req.Score)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(result))
}

// @Summary Settle by highest score
// @Description Declare the confirmed participant with the best score the winner (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Challenge ID"
// @Success 200 {object} models.ResultResponse
// @Failure 400 {object} middleware.ErrorResponse "Already has a winner or no eligible participant"
// @Failure 404 {object} middleware.ErrorResponse "Challenge not found"
// @Router /challenges/{id}/settle [post]
func (h *SettlementHandler) settle(c *gin.Context) {
	result, err := h.service.SettleByHighestScore(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(result))
}

func toResponse(r *models.Result) models.ResultResponse {
	return models.ResultResponse{
		ChallengeID: r.ChallengeID,
		WinnerID:    r.WinnerID,
		Score:       r.Score,
		PrizeAmount: money.Format(r.PrizeAmount),
		SettledAt:   r.SettledAt,
	}
}
