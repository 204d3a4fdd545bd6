package validation

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	apperrors "bytebattle-backend/internal/common/errors"
)

const (
	// Максимальные длины для различных полей
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxUsernameLength    = 32
	MaxBioLength         = 500
	MaxCodeLength        = 10000
	MaxMessageLength     = 1000

	MinUsernameLength = 3
	MinPasswordLength = 6
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator возвращает общий экземпляр go-playground/validator
func Validator() *validator.Validate {
	return validate
}

// ValidateTitle проверяет заголовок
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title cannot exceed %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateDescription проверяет описание
func ValidateDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("description cannot be empty")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return nil
}

// ValidateUsername проверяет отображаемое имя участника
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("username must be %d-%d characters long", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must contain only letters, numbers, dots, dashes and underscores")
	}
	return nil
}

func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("email is not valid")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// ValidateUserRole проверяет роль пользователя
func ValidateUserRole(role string) error {
	switch strings.TrimSpace(role) {
	case "user", "admin":
		return nil
	case "":
		return fmt.Errorf("role cannot be empty")
	default:
		return fmt.Errorf("invalid role: %s. Valid roles: [user admin]", role)
	}
}

// ValidateCode counts characters, not bytes.
func ValidateCode(code string) error {
	if utf8.RuneCountInString(code) > MaxCodeLength {
		return fmt.Errorf("code cannot exceed %d characters", MaxCodeLength)
	}
	return nil
}

// ValidateNonNegativeInt проверяет, что число неотрицательное
func ValidateNonNegativeInt(value int64, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s cannot be negative", fieldName)
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 and the common ISO-8601 shortenings. Values
// without a zone are read as UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s", value)
}

// TranslateBindError превращает ошибку биндинга gin в AppError
func TranslateBindError(err error) *apperrors.AppError {
	var ves validator.ValidationErrors
	if stderrors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		appErr := apperrors.NewValidationError(lowerFirst(fe.Field()), describeTag(fe))
		if len(ves) > 1 {
			fields := make([]string, 0, len(ves))
			for _, e := range ves {
				fields = append(fields, lowerFirst(e.Field()))
			}
			appErr.WithDetail("fields", fields)
		}
		return appErr
	}
	return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body")
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
