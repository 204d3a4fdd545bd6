package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode представляет код ошибки
type ErrorCode string

const (
	// Общие ошибки
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"

	// Авторизация
	ErrCodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired      ErrorCode = "TOKEN_EXPIRED"
	ErrCodeEmailExists       ErrorCode = "EMAIL_EXISTS"
	ErrCodeWeakPassword      ErrorCode = "WEAK_PASSWORD"
	ErrCodeInvalidCredential ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeAccountDisabled   ErrorCode = "ACCOUNT_DISABLED"

	// Ошибки пользователей
	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserBanned   ErrorCode = "USER_BANNED"
	ErrCodeNotOwner     ErrorCode = "NOT_OWNER"

	// Челленджи
	ErrCodeChallengeNotFound  ErrorCode = "CHALLENGE_NOT_FOUND"
	ErrCodeChallengeNotActive ErrorCode = "CHALLENGE_NOT_ACTIVE"
	ErrCodeChallengeSettled   ErrorCode = "CHALLENGE_SETTLED"
	ErrCodeAlreadyHasWinner   ErrorCode = "ALREADY_HAS_WINNER"
	ErrCodeNoEligibleWinner   ErrorCode = "NO_ELIGIBLE_WINNER"

	// Участия
	ErrCodeParticipationNotFound ErrorCode = "PARTICIPATION_NOT_FOUND"
	ErrCodeAlreadyJoined         ErrorCode = "ALREADY_JOINED"
	ErrCodePaymentNotConfirmed   ErrorCode = "PAYMENT_NOT_CONFIRMED"
	ErrCodePaymentAlreadyHandled ErrorCode = "PAYMENT_ALREADY_HANDLED"
	ErrCodeCodeTooLong           ErrorCode = "CODE_TOO_LONG"
	ErrCodeCodeHidden            ErrorCode = "CODE_HIDDEN"

	// Уведомления
	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"

	// Ошибки хранилища
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
	ErrCodeUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"

	ErrCodeQueueError ErrorCode = "QUEUE_ERROR"
)

// Kind группирует коды ошибок по семантике
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// AppError представляет типизированную ошибку приложения
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Cause     error                  `json:"-"`
}

// Error возвращает строковое представление ошибки
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Kind возвращает семантическую группу кода
func (e *AppError) Kind() Kind {
	switch e.Code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeEmailExists, ErrCodeWeakPassword,
		ErrCodeChallengeNotActive, ErrCodeChallengeSettled, ErrCodeAlreadyHasWinner, ErrCodeNoEligibleWinner,
		ErrCodeAlreadyJoined, ErrCodePaymentNotConfirmed, ErrCodePaymentAlreadyHandled, ErrCodeCodeTooLong:
		return KindValidation
	case ErrCodeNotFound, ErrCodeUserNotFound, ErrCodeChallengeNotFound,
		ErrCodeParticipationNotFound, ErrCodeNotificationNotFound:
		return KindNotFound
	case ErrCodeUnauthorized, ErrCodeInvalidToken, ErrCodeTokenExpired, ErrCodeInvalidCredential:
		return KindUnauthorized
	case ErrCodeForbidden, ErrCodeUserBanned, ErrCodeNotOwner, ErrCodeCodeHidden, ErrCodeAccountDisabled:
		return KindForbidden
	case ErrCodeUnavailable, ErrCodeTimeout:
		return KindUnavailable
	default:
		return KindInternal
	}
}

// IsNotFound проверяет, является ли ошибка ошибкой "не найдено"
func (e *AppError) IsNotFound() bool {
	return e.Kind() == KindNotFound
}

// IsValidation проверяет, является ли ошибка ошибкой валидации
func (e *AppError) IsValidation() bool {
	return e.Kind() == KindValidation
}

// IsUnauthorized проверяет, является ли ошибка ошибкой авторизации
func (e *AppError) IsUnauthorized() bool {
	k := e.Kind()
	return k == KindUnauthorized || k == KindForbidden
}

// IsInternal проверяет, является ли ошибка внутренней ошибкой
func (e *AppError) IsInternal() bool {
	k := e.Kind()
	return k == KindInternal || k == KindUnavailable
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail добавляет детальную информацию к ошибке
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID добавляет ID запроса к ошибке
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithUserID добавляет ID пользователя к ошибке
func (e *AppError) WithUserID(userID string) *AppError {
	e.UserID = userID
	return e
}

// New создает новую ошибку приложения
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf оборачивает существующую ошибку с форматированием
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// getStackTrace возвращает стек вызовов
func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		// Пропускаем внутренние функции пакета errors
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// Конструкторы для часто используемых ошибок

// NewValidationError создает ошибку валидации
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewNotFoundError создает ошибку "не найдено"
func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewUserNotFoundError(userID string) *AppError {
	return New(ErrCodeUserNotFound, fmt.Sprintf("User not found: %s", userID)).
		WithDetail("user_id", userID)
}

func NewChallengeNotFoundError(challengeID string) *AppError {
	return New(ErrCodeChallengeNotFound, fmt.Sprintf("Challenge not found: %s", challengeID)).
		WithDetail("challenge_id", challengeID)
}

func NewParticipationNotFoundError(participationID string) *AppError {
	return New(ErrCodeParticipationNotFound, fmt.Sprintf("Participation not found: %s", participationID)).
		WithDetail("participation_id", participationID)
}

// NewUnauthorizedError создает ошибку авторизации
func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason)).
		WithDetail("reason", reason)
}

// NewForbiddenError создает ошибку доступа
func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

// NewDatabaseError создает ошибку хранилища. Временные сбои (конфликт
// транзакции, таймаут, недоступность) помечаются как Retryable.
func NewDatabaseError(operation string, err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if isTransient(err) {
		e := Wrap(err, ErrCodeUnavailable, "Storage temporarily unavailable").
			WithDetail("operation", operation)
		e.Retryable = true
		return e
	}
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// Transient помечает ошибку хранилища как временную
type Transient interface {
	Temporary() bool
}

func isTransient(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t Transient
	return stderrors.As(err, &t) && t.Temporary()
}

// IsAppError проверяет, является ли ошибка AppError
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError приводит ошибку к AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf возвращает группу ошибки; не-AppError считаются внутренними
func KindOf(err error) Kind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind()
	}
	return KindInternal
}

// HasCode проверяет код ошибки
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
