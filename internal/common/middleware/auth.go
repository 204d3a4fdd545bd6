package middleware

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	"bytebattle-backend/internal/common/errors"
	usermodels "bytebattle-backend/internal/features/user/models"
	"bytebattle-backend/internal/platform/identity"
)

const principalKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   usermodels.Role
	Banned bool
}

func (p *Principal) IsAdmin() bool {
	return p.Role == usermodels.RoleAdmin
}

// UserLookup loads the profile behind a verified token.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*usermodels.User, error)
}

// Authenticate resolves an optional bearer token into a Principal. Requests
// without an Authorization header pass through anonymous; a present but
// invalid token is rejected.
func Authenticate(provider identity.Provider, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			Abort(c, errors.New(errors.ErrCodeInvalidToken, "Authorization header must be 'Bearer <token>'"))
			return
		}

		claims, err := provider.VerifyToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			Abort(c, tokenError(err))
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.SubjectID)
		if err != nil {
			if errors.KindOf(err) == errors.KindNotFound {
				Abort(c, errors.NewUnauthorizedError("user profile not found"))
				return
			}
			Abort(c, err)
			return
		}

		c.Set(principalKey, &Principal{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
			Banned: user.IsBanned,
		})
		c.Next()
	}
}

func tokenError(err error) error {
	switch {
	case stderrors.Is(err, identity.ErrExpiredToken):
		return errors.New(errors.ErrCodeTokenExpired, "Token expired")
	case stderrors.Is(err, identity.ErrDisabled):
		return errors.New(errors.ErrCodeAccountDisabled, "Account disabled")
	case stderrors.Is(err, identity.ErrInvalidToken):
		return errors.New(errors.ErrCodeInvalidToken, "Invalid token")
	default:
		return errors.NewDatabaseError("verify token", err)
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentPrincipal(c); !ok {
			Abort(c, errors.NewUnauthorizedError("bearer token required"))
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			Abort(c, errors.NewUnauthorizedError("bearer token required"))
			return
		}
		if !p.IsAdmin() {
			Abort(c, errors.NewForbiddenError("admin access required"))
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the caller set by Authenticate.
func CurrentPrincipal(c *gin.Context) (*Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}
