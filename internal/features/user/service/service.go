package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/validation"
	"bytebattle-backend/internal/features/user/mapper"
	"bytebattle-backend/internal/features/user/models"
	"bytebattle-backend/internal/features/user/repository"
	"bytebattle-backend/internal/platform/docstore"
	"bytebattle-backend/internal/platform/identity"
)

type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Session, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, input *models.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, id string, req *models.PasswordChange) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	SetRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	// SetBanned flags the profile and disables sign-in, so tokens already
	// issued stop working too.
	SetBanned(ctx context.Context, id string, banned bool) (*models.User, error)
}

type userService struct {
	repo        repository.UserRepository
	identity    identity.Provider
	adminEmails map[string]bool
	logger      *zap.Logger
	now         func() time.Time
}

func NewUserService(repo repository.UserRepository, provider identity.Provider, adminEmails []string, logger *zap.Logger) UserService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &userService{
		repo:        repo,
		identity:    provider,
		adminEmails: admins,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (*models.Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperrors.NewValidationError("email", err.Error())
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeWeakPassword, err.Error()).WithDetail("field", "password")
	}
	username := strings.TrimSpace(req.Username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperrors.NewValidationError("username", err.Error())
	}

	uid, err := s.identity.CreateUser(ctx, email, req.Password, username)
	if err != nil {
		return nil, mapIdentityErr(err)
	}

	role := models.RoleUser
	if s.adminEmails[email] {
		role = models.RoleAdmin
	}
	now := s.now().UTC()
	user := &models.User{
		ID:        uid,
		Email:     email,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// без профиля аккаунт бесполезен, блокируем учётку
		if derr := s.identity.SetDisabled(ctx, uid, true); derr != nil {
			s.logger.Error("Failed to disable orphaned identity", zap.String("user_id", uid), zap.Error(derr))
		}
		return nil, apperrors.NewDatabaseError("create user", err)
	}

	s.logger.Info("User registered", zap.String("user_id", uid), zap.String("role", string(role)))

	token, err := s.identity.SignIn(ctx, email, req.Password)
	if err != nil {
		return nil, mapIdentityErr(err)
	}
	return &models.Session{Token: token, User: mapper.ToUserResponse(user)}, nil
}

func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	token, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, mapIdentityErr(err)
	}
	claims, err := s.identity.VerifyToken(ctx, token)
	if err != nil {
		return nil, mapIdentityErr(err)
	}
	user, err := s.GetUser(ctx, claims.SubjectID)
	if err != nil {
		return nil, err
	}
	return &models.Session{Token: token, User: mapper.ToUserResponse(user)}, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(id)
		}
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, input *models.ProfileUpdate) (*models.User, error) {
	fields := docstore.Fields{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, apperrors.NewValidationError("username", err.Error())
		}
		fields["username"] = username
	}
	if input.JudgeUsername != nil {
		judge := strings.TrimSpace(*input.JudgeUsername)
		if len(judge) > validation.MaxUsernameLength {
			return nil, apperrors.NewValidationError("judgeUsername", "too long")
		}
		fields["judgeUsername"] = judge
	}
	if input.Bio != nil {
		if len([]rune(*input.Bio)) > validation.MaxBioLength {
			return nil, apperrors.NewValidationError("bio", "too long")
		}
		fields["bio"] = *input.Bio
	}
	if len(fields) == 0 {
		return s.GetUser(ctx, id)
	}
	return s.update(ctx, id, fields, "update profile")
}

func (s *userService) ChangePassword(ctx context.Context, id string, req *models.PasswordChange) error {
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return apperrors.New(apperrors.ErrCodeWeakPassword, err.Error()).WithDetail("field", "newPassword")
	}
	if err := s.identity.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, identity.ErrSubjectNotFound):
			return apperrors.NewUserNotFoundError(id)
		case errors.Is(err, identity.ErrInvalidCredentials):
			return apperrors.New(apperrors.ErrCodeInvalidCredential, "Current password is incorrect").
				WithDetail("field", "currentPassword")
		}
		return mapIdentityErr(err)
	}
	s.logger.Info("Password changed", zap.String("user_id", id))
	return nil
}

func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	return users, nil
}

func (s *userService) SetRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if err := validation.ValidateUserRole(string(role)); err != nil {
		return nil, apperrors.NewValidationError("role", err.Error())
	}
	user, err := s.update(ctx, id, docstore.Fields{"role": role}, "set role")
	if err != nil {
		return nil, err
	}
	s.logger.Info("User role changed", zap.String("user_id", id), zap.String("role", string(role)))
	return user, nil
}

func (s *userService) SetBanned(ctx context.Context, id string, banned bool) (*models.User, error) {
	if err := s.identity.SetDisabled(ctx, id, banned); err != nil {
		if errors.Is(err, identity.ErrSubjectNotFound) {
			return nil, apperrors.NewUserNotFoundError(id)
		}
		return nil, mapIdentityErr(err)
	}
	user, err := s.update(ctx, id, docstore.Fields{"isBanned": banned}, "set banned")
	if err != nil {
		// профиль и учётка должны совпадать, откатываем учётку
		if rerr := s.identity.SetDisabled(ctx, id, !banned); rerr != nil {
			s.logger.Error("Failed to restore identity after ban error",
				zap.String("user_id", id), zap.Bool("banned", banned), zap.Error(rerr))
		}
		return nil, err
	}
	s.logger.Info("User ban flag changed", zap.String("user_id", id), zap.Bool("banned", banned))
	return user, nil
}

func (s *userService) update(ctx context.Context, id string, fields docstore.Fields, op string) (*models.User, error) {
	fields["updatedAt"] = s.now().UTC()
	if err := s.repo.Update(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(id)
		}
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return s.GetUser(ctx, id)
}

func mapIdentityErr(err error) error {
	switch {
	case errors.Is(err, identity.ErrEmailExists):
		return apperrors.New(apperrors.ErrCodeEmailExists, "Email already registered").WithDetail("field", "email")
	case errors.Is(err, identity.ErrWeakPassword):
		return apperrors.New(apperrors.ErrCodeWeakPassword, "Password is too weak").WithDetail("field", "password")
	case errors.Is(err, identity.ErrInvalidCredentials):
		return apperrors.New(apperrors.ErrCodeInvalidCredential, "Invalid email or password")
	case errors.Is(err, identity.ErrDisabled):
		return apperrors.New(apperrors.ErrCodeAccountDisabled, "Account disabled")
	case errors.Is(err, identity.ErrExpiredToken):
		return apperrors.New(apperrors.ErrCodeTokenExpired, "Token expired")
	case errors.Is(err, identity.ErrInvalidToken):
		return apperrors.New(apperrors.ErrCodeInvalidToken, "Invalid token")
	default:
		return apperrors.NewDatabaseError("identity", err)
	}
}
