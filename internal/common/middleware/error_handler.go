package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bytebattle-backend/internal/common/errors"
)

const (
	requestIDKey = "request_id"

	// RetryAfterSeconds is sent with 503 responses for retryable storage errors.
	RetryAfterSeconds = "1"
)

// ErrorHandler middleware для восстановления после паники
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := getRequestID(c)

		logger.Error("Panic recovered",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.String("stack", string(debug.Stack())),
		)

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		sendErrorResponse(c, appErr, logger)
		c.Abort()
	})
}

// RequestID middleware для добавления ID запроса
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// HandleErrors renders the last error attached with c.Error once the
// handler chain has finished, unless a response was already written.
func HandleErrors(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Wrap(err, errors.ErrCodeInternal, "Handler error occurred")
		}
		sendErrorResponse(c, appErr, logger)
	}
}

// Abort attaches err to the context and stops the chain; HandleErrors
// writes the response.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// sendErrorResponse отправляет ошибку в формате JSON
func sendErrorResponse(c *gin.Context, appErr *errors.AppError, logger *zap.Logger) {
	requestID := getRequestID(c)

	appErr.WithRequestID(requestID).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)
	if userID := getUserID(c); userID != "" && appErr.UserID == "" {
		appErr.WithUserID(userID)
	}

	logError(appErr, logger, c)

	statusCode := getHTTPStatusCode(appErr)
	if statusCode == http.StatusServiceUnavailable {
		c.Header("Retry-After", RetryAfterSeconds)
	}

	c.JSON(statusCode, ErrorResponse{
		Success:   false,
		Error:     publicError(appErr),
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// publicError strips internal details from errors the client did not cause.
func publicError(appErr *errors.AppError) *errors.AppError {
	switch appErr.Kind() {
	case errors.KindInternal:
		return &errors.AppError{
			Code:      errors.ErrCodeInternal,
			Message:   "Internal server error",
			Timestamp: appErr.Timestamp,
			RequestID: appErr.RequestID,
		}
	case errors.KindUnavailable:
		return &errors.AppError{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Timestamp: appErr.Timestamp,
			RequestID: appErr.RequestID,
			Retryable: true,
		}
	default:
		return appErr
	}
}

// getHTTPStatusCode возвращает HTTP статус код для ошибки
func getHTTPStatusCode(appErr *errors.AppError) int {
	switch appErr.Kind() {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindUnauthorized:
		return http.StatusUnauthorized
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// logError логирует ошибку с контекстом
func logError(appErr *errors.AppError, logger *zap.Logger, c *gin.Context) {
	fields := []zap.Field{
		zap.String("request_id", getRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_message", appErr.Message),
		zap.Time("timestamp", appErr.Timestamp),
	}

	if appErr.UserID != "" {
		fields = append(fields, zap.String("user_id", appErr.UserID))
	}

	if len(appErr.Details) > 0 {
		detailsJSON, _ := json.Marshal(appErr.Details)
		fields = append(fields, zap.String("details", string(detailsJSON)))
	}

	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}

	switch appErr.Kind() {
	case errors.KindInternal:
		fields = append(fields, zap.Strings("stack", appErr.Stack))
		logger.Error("Internal error occurred", fields...)
	case errors.KindUnavailable:
		logger.Warn("Storage unavailable", fields...)
	case errors.KindUnauthorized, errors.KindForbidden:
		logger.Warn("Access denied", fields...)
	case errors.KindValidation:
		logger.Info("Validation error", fields...)
	case errors.KindNotFound:
		logger.Info("Resource not found", fields...)
	}
}

// getRequestID получает ID запроса из контекста
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(requestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}

// getUserID получает ID пользователя из контекста
func getUserID(c *gin.Context) string {
	if p, ok := CurrentPrincipal(c); ok {
		return p.UserID
	}
	return ""
}
