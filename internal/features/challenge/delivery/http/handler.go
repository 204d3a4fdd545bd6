package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bytebattle-backend/internal/common/middleware"
	"bytebattle-backend/internal/common/validation"
	"bytebattle-backend/internal/features/challenge/mapper"
	"bytebattle-backend/internal/features/challenge/models"
	"bytebattle-backend/internal/features/challenge/service"
)

type ChallengeHandler struct {
	service service.ChallengeService
}

func NewChallengeHandler(service service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{service: service}
}

func (h *ChallengeHandler) RegisterRoutes(router *gin.RouterGroup, cache ...gin.HandlerFunc) {
	challenges := router.Group("/challenges")
	challenges.Use(cache...)
	{
		challenges.GET("", h.list)
		challenges.GET("/:id", h.get)
	}

	// Админские маршруты
	admin := router.Group("/challenges")
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("", h.create)
		admin.PUT("/:id", h.update)
		admin.PUT("/:id/status", h.setStatus)
	}
}

// @Summary List challenges
// @Description List challenges ordered by start date, optionally filtered by status
// @Tags challenges
// @Produce json
// @Param status query string false "Status filter" Enums(upcoming, active, past)
// @Success 200 {array} models.ChallengeResponse
// @Failure 400 {object} middleware.ErrorResponse "Unknown status"
// @Router /challenges [get]
func (h *ChallengeHandler) list(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponses(items))
}

// @Summary Get challenge
// @Tags challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} models.ChallengeResponse
// @Failure 404 {object} middleware.ErrorResponse "Challenge not found"
// @Router /challenges/{id} [get]
func (h *ChallengeHandler) get(c *gin.Context) {
	challenge, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(challenge))
}

// @Summary Create challenge
// @Description Create a challenge in the upcoming status (admin only)
// @Tags challenges
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param challenge body models.ChallengeInput true "Challenge data"
// @Success 201 {object} models.ChallengeResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid input"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 403 {object} middleware.ErrorResponse "Admin access required"
// @Router /challenges [post]
func (h *ChallengeHandler) create(c *gin.Context) {
	var input models.ChallengeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	principal, _ := middleware.CurrentPrincipal(c)
	challenge, err := h.service.Create(c.Request.Context(), principal.UserID, &input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.ToResponse(challenge))
}

// @Summary Update challenge
// @Description Edit title, description, dates or cost. Refused once a winner is declared (admin only)
// @Tags challenges
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Challenge ID"
// @Param challenge body models.ChallengeInput true "Fields to change"
// @Success 200 {object} models.ChallengeResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid input or challenge settled"
// @Failure 404 {object} middleware.ErrorResponse "Challenge not found"
// @Router /challenges/{id} [put]
func (h *ChallengeHandler) update(c *gin.Context) {
	var input models.ChallengeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	challenge, err := h.service.Update(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(challenge))
}

// @Summary Set challenge status
// @Description Administrative override of the challenge status
// @Tags challenges
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Challenge ID"
// @Param status body models.StatusUpdate true "New status"
// @Success 200 {object} models.ChallengeResponse
// @Failure 400 {object} middleware.ErrorResponse "Unknown status"
// @Failure 404 {object} middleware.ErrorResponse "Challenge not found"
// @Router /challenges/{id}/status [put]
func (h *ChallengeHandler) setStatus(c *gin.Context) {
	var input models.StatusUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	challenge, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), input.Status)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(challenge))
}
