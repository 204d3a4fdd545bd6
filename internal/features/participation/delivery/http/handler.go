package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/middleware"
	"bytebattle-backend/internal/common/validation"
	"bytebattle-backend/internal/features/participation/mapper"
	"bytebattle-backend/internal/features/participation/models"
	"bytebattle-backend/internal/features/participation/service"
)

type ParticipationHandler struct {
	service service.ParticipationService
}

func NewParticipationHandler(service service.ParticipationService) *ParticipationHandler {
	return &ParticipationHandler{service: service}
}

func (h *ParticipationHandler) RegisterRoutes(router *gin.RouterGroup, cache ...gin.HandlerFunc) {
	public := router.Group("")
	public.Use(cache...)
	{
		public.GET("/challenges/:id/leaderboard", h.leaderboard)
	}
	router.GET("/participations/:id/code", h.revealCode)

	participations := router.Group("/participations")
	participations.Use(middleware.RequireAuth())
	{
		participations.POST("", h.enter)
		participations.GET("/me", h.listMine)
		participations.GET("/:id", h.get)
		participations.PUT("/:id/submit", h.submit)
	}

	// Админские маршруты
	admin := router.Group("/admin/participations")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("", h.adminList)
		admin.POST("/:id/confirm", h.confirm)
		admin.POST("/:id/reject", h.reject)
	}
}

// @Summary Enter a challenge
// @Description Create a pending participation for the caller and return payment instructions
// @Tags participations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.EnterRequest true "Challenge to enter"
// @Success 201 {object} models.EnterResponse
// @Failure 400 {object} middleware.ErrorResponse "Challenge not active or already joined"
// @Failure 403 {object} middleware.ErrorResponse "User is banned"
// @Failure 404 {object} middleware.ErrorResponse "Challenge not found"
// @Router /participations [post]
func (h *ParticipationHandler) enter(c *gin.Context) {
	var req models.EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	principal, _ := middleware.CurrentPrincipal(c)
	p, err := h.service.Enter(c.Request.Context(), principal.UserID, req.ChallengeID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.ToEnterResponse(p))
}

// @Summary My participations
// @Tags participations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ParticipationResponse
// @Router /participations/me [get]
func (h *ParticipationHandler) listMine(c *gin.Context) {
	principal, _ := middleware.CurrentPrincipal(c)
	items, err := h.service.ListMine(c.Request.Context(), principal.UserID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponses(items, true))
}

// @Summary Get participation
// @Description Owner or admin only
// @Tags participations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Participation ID"
// @Success 200 {object} models.ParticipationResponse
// @Failure 403 {object} middleware.ErrorResponse "Not your participation"
// @Failure 404 {object} middleware.ErrorResponse "Participation not found"
// @Router /participations/{id} [get]
func (h *ParticipationHandler) get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	principal, _ := middleware.CurrentPrincipal(c)
	if p.UserID != principal.UserID && !principal.IsAdmin() {
		middleware.Abort(c, apperrors.New(apperrors.ErrCodeNotOwner, "Not your participation"))
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(p, true))
}

// @Summary Submit result
// @Description Submit score and code. Allowed while the challenge is active and unsettled; resubmission overwrites
// @Tags participations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Participation ID"
// @Param request body models.SubmitRequest true "Score and code"
// @Success 200 {object} models.ParticipationResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid score, code too long, payment not confirmed or challenge closed"
// @Failure 403 {object} middleware.ErrorResponse "Not your participation"
// @Failure 404 {object} middleware.ErrorResponse "Participation not found"
// @Router /participations/{id}/submit [put]
func (h *ParticipationHandler) submit(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	principal, _ := middleware.CurrentPrincipal(c)
	p, err := h.service.SubmitResult(c.Request.Context(), c.Param("id"), principal.UserID, req.Score, req.Code)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(p, true))
}

// @Summary Reveal code
// @Description A participant's code becomes public once the challenge is past
// @Tags participations
// @Produce json
// @Param id path string true "Participation ID"
// @Success 200 {object} models.CodeReveal
// @Failure 403 {object} middleware.ErrorResponse "Challenge has not ended"
// @Failure 404 {object} middleware.ErrorResponse "Participation not found"
// @Router /participations/{id}/code [get]
func (h *ParticipationHandler) revealCode(c *gin.Context) {
	reveal, err := h.service.RevealCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, reveal)
}

// @Summary Challenge leaderboard
// @Description Confirmed participations with a positive score, best first. Code is not included
// @Tags challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {array} models.LeaderboardEntry
// @Failure 404 {object} middleware.ErrorResponse "Challenge not found"
// @Router /challenges/{id}/leaderboard [get]
func (h *ParticipationHandler) leaderboard(c *gin.Context) {
	entries, err := h.service.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// @Summary List participations
// @Description Filter by payment status and challenge (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param paymentStatus query string false "Payment status" Enums(pending, confirmed, rejected)
// @Param challengeId query string false "Challenge ID"
// @Success 200 {array} models.ParticipationResponse
// @Failure 400 {object} middleware.ErrorResponse "Unknown payment status"
// @Router /admin/participations [get]
func (h *ParticipationHandler) adminList(c *gin.Context) {
	items, err := h.service.AdminList(c.Request.Context(), c.Query("paymentStatus"), c.Query("challengeId"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponses(items, false))
}

// @Summary Confirm payment
// @Description Mark the entry fee as received and add it to the challenge pot (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Participation ID"
// @Success 200 {object} models.ParticipationResponse
// @Failure 400 {object} middleware.ErrorResponse "Already confirmed or challenge settled"
// @Failure 404 {object} middleware.ErrorResponse "Participation not found"
// @Failure 503 {object} middleware.ErrorResponse "Storage busy, retry"
// @Router /admin/participations/{id}/confirm [post]
func (h *ParticipationHandler) confirm(c *gin.Context) {
	p, err := h.service.ConfirmPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(p, false))
}

// @Summary Reject payment
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Participation ID"
// @Param request body models.RejectRequest false "Reason"
// @Success 200 {object} models.ParticipationResponse
// @Failure 400 {object} middleware.ErrorResponse "Payment already confirmed"
// @Failure 404 {object} middleware.ErrorResponse "Participation not found"
// @Router /admin/participations/{id}/reject [post]
func (h *ParticipationHandler) reject(c *gin.Context) {
	var req models.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Abort(c, validation.TranslateBindError(err))
			return
		}
	}

	p, err := h.service.RejectPayment(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(p, false))
}
