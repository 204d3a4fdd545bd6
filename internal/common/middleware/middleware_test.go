package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bytebattle-backend/internal/common/errors"
	usermodels "bytebattle-backend/internal/features/user/models"
	"bytebattle-backend/internal/platform/docstore"
	"bytebattle-backend/internal/platform/identity"
)

type stubProvider struct {
	claims map[string]*identity.Claims
	err    error
}

func (p *stubProvider) VerifyToken(_ context.Context, token string) (*identity.Claims, error) {
	if p.err != nil {
		return nil, p.err
	}
	if c, ok := p.claims[token]; ok {
		return c, nil
	}
	return nil, identity.ErrInvalidToken
}

func (p *stubProvider) CreateUser(context.Context, string, string, string) (string, error) {
	return "", stderrors.New("not implemented")
}

func (p *stubProvider) SetDisabled(context.Context, string, bool) error { return nil }

func (p *stubProvider) SignIn(context.Context, string, string) (string, error) {
	return "", stderrors.New("not implemented")
}

func (p *stubProvider) ChangePassword(context.Context, string, string, string) error {
	return stderrors.New("not implemented")
}

type stubUsers map[string]*usermodels.User

func (u stubUsers) GetUser(_ context.Context, id string) (*usermodels.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, errors.NewUserNotFoundError(id)
}

func newRouter(provider identity.Provider, users UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), HandleErrors(zap.NewNop()), Authenticate(provider, users))

	router.GET("/open", func(c *gin.Context) {
		_, authed := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"authed": authed})
	})
	router.GET("/private", RequireAuth(), func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"user": p.UserID})
	})
	router.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func call(router *gin.Engine, path, auth string) (*httptest.ResponseRecorder, ErrorResponse) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func fixtures() (*stubProvider, stubUsers) {
	provider := &stubProvider{claims: map[string]*identity.Claims{
		"user-token":   {SubjectID: "u1", Email: "u1@example.com"},
		"admin-token":  {SubjectID: "a1", Email: "a1@example.com"},
		"orphan-token": {SubjectID: "ghost"},
	}}
	users := stubUsers{
		"u1": {ID: "u1", Role: usermodels.RoleUser},
		"a1": {ID: "a1", Role: usermodels.RoleAdmin},
	}
	return provider, users
}

func TestAuthenticate(t *testing.T) {
	provider, users := fixtures()
	router := newRouter(provider, users)

	w, _ := call(router, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authed":false}`, w.Body.String())

	w, _ = call(router, "/private", "Bearer user-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1"}`, w.Body.String())

	w, resp := call(router, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)

	w, resp = call(router, "/open", "Token user-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.ErrCodeInvalidToken, resp.Error.Code)

	w, resp = call(router, "/open", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.ErrCodeInvalidToken, resp.Error.Code)

	w, _ = call(router, "/open", "Bearer orphan-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateMapsProviderErrors(t *testing.T) {
	_, users := fixtures()

	w, resp := call(newRouter(&stubProvider{err: identity.ErrExpiredToken}, users), "/open", "Bearer x")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.ErrCodeTokenExpired, resp.Error.Code)

	w, resp = call(newRouter(&stubProvider{err: identity.ErrDisabled}, users), "/open", "Bearer x")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errors.ErrCodeAccountDisabled, resp.Error.Code)

	w, resp = call(newRouter(&stubProvider{err: docstore.ErrUnavailable}, users), "/open", "Bearer x")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, RetryAfterSeconds, w.Header().Get("Retry-After"))
	assert.True(t, resp.Error.Retryable)
}

func TestRequireAdmin(t *testing.T) {
	provider, users := fixtures()
	router := newRouter(provider, users)

	w, _ := call(router, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call(router, "/admin", "Bearer user-token")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = call(router, "/admin", "Bearer admin-token")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleErrorsStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
	}{
		{errors.NewValidationError("title", "required"), http.StatusBadRequest},
		{errors.NewChallengeNotFoundError("c1"), http.StatusNotFound},
		{errors.New(errors.ErrCodeAlreadyHasWinner, "taken"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeNotOwner, "nope"), http.StatusForbidden},
		{errors.NewDatabaseError("commit", docstore.ErrConflict), http.StatusServiceUnavailable},
		{stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		router := gin.New()
		router.Use(RequestID(), HandleErrors(zap.NewNop()))
		router.GET("/", func(c *gin.Context) { Abort(c, tc.err) })

		w, resp := call(router, "/", "")
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		require.NotNil(t, resp.Error)
		assert.NotEmpty(t, resp.RequestID)
	}
}

func TestInternalErrorsAreSanitized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), HandleErrors(zap.NewNop()))
	router.GET("/", func(c *gin.Context) {
		Abort(c, errors.NewDatabaseError("insert", stderrors.New("pq: password authentication failed")).
			WithDetail("dsn", "postgres://secret"))
	})

	w, resp := call(router, "/", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestPanicRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), ErrorHandler(zap.NewNop()))
	router.GET("/", func(c *gin.Context) { panic("kaboom") })

	w, resp := call(router, "/", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestRequestIDIsEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

}
