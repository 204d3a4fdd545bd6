package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/middleware"
	"bytebattle-backend/internal/common/validation"
	"bytebattle-backend/internal/features/user/mapper"
	"bytebattle-backend/internal/features/user/models"
	"bytebattle-backend/internal/features/user/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.GET("/me", middleware.RequireAuth(), h.getMe)
	}

	users := router.Group("/users")
	users.Use(middleware.RequireAuth())
	{
		users.GET("/:id", h.getUser)
		users.PUT("/:id", h.updateProfile)
		users.POST("/:id/change-password", h.changePassword)
	}

	// Админские маршруты
	admin := router.Group("/admin/users")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("", h.listUsers)
		admin.PUT("/:id/role", h.setRole)
		admin.PUT("/:id/ban", h.setBanned)
	}
}

// @Summary Register
// @Description Create an account and return a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Credentials and display name"
// @Success 201 {object} models.Session
// @Failure 400 {object} middleware.ErrorResponse "Invalid input, weak password or email taken"
// @Router /auth/register [post]
func (h *UserHandler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	session, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.Session
// @Failure 401 {object} middleware.ErrorResponse "Invalid email or password"
// @Failure 403 {object} middleware.ErrorResponse "Account disabled"
// @Router /auth/login [post]
func (h *UserHandler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	session, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /auth/me [get]
func (h *UserHandler) getMe(c *gin.Context) {
	principal, _ := middleware.CurrentPrincipal(c)
	user, err := h.service.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user))
}

// @Summary Get user by ID
// @Description Email is only shown to the user themselves and to admins
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.UserResponse
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /users/{id} [get]
func (h *UserHandler) getUser(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	principal, _ := middleware.CurrentPrincipal(c)
	if principal.UserID == user.ID || principal.IsAdmin() {
		c.JSON(http.StatusOK, mapper.ToUserResponse(user))
		return
	}
	c.JSON(http.StatusOK, mapper.ToPublicUserResponse(user))
}

// @Summary Update profile
// @Description Change username, judge username or bio of the caller (admins may edit anyone)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param profile body models.ProfileUpdate true "Fields to change"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid input"
// @Failure 403 {object} middleware.ErrorResponse "Not your profile"
// @Router /users/{id} [put]
func (h *UserHandler) updateProfile(c *gin.Context) {
	id := c.Param("id")
	principal, _ := middleware.CurrentPrincipal(c)
	if principal.UserID != id && !principal.IsAdmin() {
		middleware.Abort(c, apperrors.New(apperrors.ErrCodeNotOwner, "You can only edit your own profile"))
		return
	}

	var input models.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), id, &input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user))
}

// @Summary Change password
// @Description Verify the current password and set a new one (owner only)
// @Tags users
// @Accept json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body models.PasswordChange true "Current and new password"
// @Success 204
// @Failure 400 {object} middleware.ErrorResponse "Weak password"
// @Failure 401 {object} middleware.ErrorResponse "Current password is wrong"
// @Failure 403 {object} middleware.ErrorResponse "Not your account"
// @Router /users/{id}/change-password [post]
func (h *UserHandler) changePassword(c *gin.Context) {
	id := c.Param("id")
	principal, _ := middleware.CurrentPrincipal(c)
	if principal.UserID != id {
		middleware.Abort(c, apperrors.New(apperrors.ErrCodeNotOwner, "You can only change your own password"))
		return
	}

	var req models.PasswordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), id, &req); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List users
// @Description Newest first (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} models.UsersResponse
// @Failure 403 {object} middleware.ErrorResponse "Admin access required"
// @Router /admin/users [get]
func (h *UserHandler) listUsers(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	users, err := h.service.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	items := make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, mapper.ToUserResponse(u))
	}
	c.JSON(http.StatusOK, models.UsersResponse{Items: items, Limit: limit, Offset: offset})
}

// @Summary Set user role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param role body models.RoleUpdate true "New role"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid role"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /admin/users/{id}/role [put]
func (h *UserHandler) setRole(c *gin.Context) {
	var input models.RoleUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	user, err := h.service.SetRole(c.Request.Context(), c.Param("id"), models.Role(input.Role))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user))
}

// @Summary Ban or unban user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param ban body models.BanUpdate true "Ban flag"
// @Success 200 {object} models.UserResponse
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /admin/users/{id}/ban [put]
func (h *UserHandler) setBanned(c *gin.Context) {
	var input models.BanUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Abort(c, validation.TranslateBindError(err))
		return
	}

	user, err := h.service.SetBanned(c.Request.Context(), c.Param("id"), *input.Banned)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user))
}

func pageParams(c *gin.Context) (int, int, error) {
	limit, offset := defaultPageSize, 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, apperrors.NewValidationError("limit", "must be a positive integer")
		}
		limit = min(v, maxPageSize)
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, apperrors.NewValidationError("offset", "must be a non-negative integer")
		}
		offset = v
	}
	return limit, offset, nil
}
