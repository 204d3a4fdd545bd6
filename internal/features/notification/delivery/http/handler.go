package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/middleware"
	"bytebattle-backend/internal/common/validation"
	"bytebattle-backend/internal/features/notification/mapper"
	"bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/features/notification/service"
)

type NotificationHandler struct {
	service service.NotificationService
}

func NewNotificationHandler(service service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications")
	notifications.Use(middleware.RequireAuth())
	{
		notifications.GET("", h.list)
		notifications.PUT("/:id/read", h.markRead)
		notifications.DELETE("/:id", h.delete)
	}

	admin := router.Group("/notifications")
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("", h.create)
	}
}

// @Summary My notifications
// @Description Newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max items (default 50, max 100)"
// @Success 200 {array} models.NotificationResponse
// @Router /notifications [get]
func (h *NotificationHandler) list(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			middleware.Abort(c, apperrors.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = v
	}

	principal, _ := middleware.CurrentPrincipal(c)
	items, err := h.service.List(c.Request.Context(), principal.UserID, limit)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponses(items))
}

// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} models.NotificationResponse
// @Failure 403 {object} middleware.ErrorResponse "Not your notification"
// @Failure 404 {object} middleware.ErrorResponse "Notification not found"
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) markRead(c *gin.Context) {
	principal, _ := middleware.CurrentPrincipal(c)
	n, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), principal.UserID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToResponse(n))
}

// @Summary Delete notification
// @Tags notifications
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse "Not your notification"
// @Failure 404 {object} middleware.ErrorResponse "Notification not found"
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) delete(c *gin.Context) {
	principal, _ := middleware.CurrentPrincipal(c)
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principal.UserID); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Send notification
// @Description Store a notification for a user (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateRequest true "Notification"
// @Success 201 {object} models.NotificationResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid input"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /notifications [post]
func (h *NotificationHandler) create(c *gin.Context) {
	var req models.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	n, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.ToResponse(n))
}
