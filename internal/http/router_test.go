package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	challengehttp "bytebattle-backend/internal/features/challenge/delivery/http"
	challengedoc "bytebattle-backend/internal/features/challenge/repository/document"
	challengeservice "bytebattle-backend/internal/features/challenge/service"
	notificationhttp "bytebattle-backend/internal/features/notification/delivery/http"
	notificationmodels "bytebattle-backend/internal/features/notification/models"
	notificationdoc "bytebattle-backend/internal/features/notification/repository/document"
	notificationservice "bytebattle-backend/internal/features/notification/service"
	participationhttp "bytebattle-backend/internal/features/participation/delivery/http"
	participationdoc "bytebattle-backend/internal/features/participation/repository/document"
	participationservice "bytebattle-backend/internal/features/participation/service"
	settlementhttp "bytebattle-backend/internal/features/settlement/delivery/http"
	settlementservice "bytebattle-backend/internal/features/settlement/service"
	userhttp "bytebattle-backend/internal/features/user/delivery/http"
	userdoc "bytebattle-backend/internal/features/user/repository/document"
	userservice "bytebattle-backend/internal/features/user/service"
	"bytebattle-backend/internal/platform/docstore/memstore"
	"bytebattle-backend/internal/platform/identity"
)

// inlineQueue handles events synchronously so assertions can follow calls.
type inlineQueue struct {
	handle func(ctx context.Context, e notificationmodels.Event) error
}

func (q inlineQueue) Publish(ctx context.Context, e notificationmodels.Event) error {
	return q.handle(ctx, e)
}

type api struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
}

func newAPI(t *testing.T, checks ...HealthCheck) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	store := memstore.New()

	provider := identity.NewLocalProvider(store, "secret", "bytebattle", time.Hour, identity.WithHashCost(bcrypt.MinCost))
	users := userdoc.NewUserRepository(store)
	challenges := challengedoc.NewChallengeRepository(store)
	participations := participationdoc.NewParticipationRepository(store)

	var notifications notificationservice.NotificationService
	sink := notificationservice.NewSink(inlineQueue{handle: func(ctx context.Context, e notificationmodels.Event) error {
		return notifications.Handle(ctx, e)
	}}, time.Second, logger)

	userSvc := userservice.NewUserService(users, provider, []string{"root@example.com"}, logger)
	challengeSvc := challengeservice.NewChallengeService(challenges, store, logger)
	participationSvc := participationservice.NewParticipationService(participations, challenges, users, challengeSvc, store, sink, logger)
	settlementSvc := settlementservice.NewSettlementService(challenges, participations, users, store, sink, logger)
	notifications = notificationservice.NewNotificationService(notificationdoc.NewNotificationRepository(store), users, participationSvc, logger)

	router := NewRouter(Options{
		Logger:   logger,
		Origin:   "http://localhost:3000",
		Identity: provider,
		Users:    userSvc,
		Checks:   checks,
	}, Handlers{
		Users:          userhttp.NewUserHandler(userSvc),
		Challenges:     challengehttp.NewChallengeHandler(challengeSvc),
		Participations: participationhttp.NewParticipationHandler(participationSvc),
		Settlements:    settlementhttp.NewSettlementHandler(settlementSvc),
		Notifications:  notificationhttp.NewNotificationHandler(notifications),
	})
	return &api{t: t, router: router, store: store}
}

func (a *api) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (a *api) list(path, token string) []interface{} {
	a.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1"+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var out []interface{}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *api) register(email, username string) (token, id string) {
	a.t.Helper()
	w, body := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "hunter22", "username": username,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return body["token"].(string), body["user"].(map[string]interface{})["id"].(string)
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestChallengeFlow(t *testing.T) {
	a := newAPI(t)
	admin, _ := a.register("root@example.com", "root")
	alice, aliceID := a.register("alice@example.com", "alice")
	bob, bobID := a.register("bob@example.com", "bob")

	// Only admins create challenges.
	now := time.Now().UTC()
	input := map[string]interface{}{
		"title":             "Longest palindrome",
		"description":       "Find it fast",
		"startDate":         now.Add(-time.Hour).Format(time.RFC3339),
		"endDate":           now.Add(time.Hour).Format(time.RFC3339),
		"participationCost": "10.00",
	}
	w, body := a.do(http.MethodPost, "/challenges", alice, input)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = a.do(http.MethodPost, "/challenges", admin, input)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	challengeID := body["id"].(string)
	assert.Equal(t, "upcoming", body["status"])

	// Entering an upcoming challenge is refused.
	w, body = a.do(http.MethodPost, "/participations", alice, map[string]string{"challengeId": challengeID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CHALLENGE_NOT_ACTIVE", errorCode(body))

	w, _ = a.do(http.MethodPut, "/challenges/"+challengeID+"/status", admin, map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Anonymous callers cannot enter.
	w, _ = a.do(http.MethodPost, "/participations", "", map[string]string{"challengeId": challengeID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = a.do(http.MethodPost, "/participations", alice, map[string]string{"challengeId": challengeID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	aliceEntry := body["participation"].(map[string]interface{})["id"].(string)
	assert.Equal(t, "10.00", body["paymentInstructions"].(map[string]interface{})["amount"])

	w, body = a.do(http.MethodPost, "/participations", alice, map[string]string{"challengeId": challengeID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ALREADY_JOINED", errorCode(body))

	w, body = a.do(http.MethodPost, "/participations", bob, map[string]string{"challengeId": challengeID})
	require.Equal(t, http.StatusCreated, w.Code)
	bobEntry := body["participation"].(map[string]interface{})["id"].(string)

	// Admins were told about both entries.
	assert.Len(t, a.list("/notifications", admin), 2)

	for _, id := range []string{aliceEntry, bobEntry} {
		w, _ = a.do(http.MethodPost, "/admin/participations/"+id+"/confirm", admin, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w, body = a.do(http.MethodPost, "/admin/participations/"+aliceEntry+"/confirm", admin, nil)
	assert.Equal(t, "PAYMENT_ALREADY_HANDLED", errorCode(body))

	w, body = a.do(http.MethodGet, "/challenges/"+challengeID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "20.00", body["totalPot"])

	w, _ = a.do(http.MethodPut, "/participations/"+aliceEntry+"/submit", alice, map[string]interface{}{"score": 90, "code": "package main"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = a.do(http.MethodPut, "/participations/"+bobEntry+"/submit", bob, map[string]interface{}{"score": 70, "code": "package bob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Someone else's entry.
	w, _ = a.do(http.MethodPut, "/participations/"+aliceEntry+"/submit", bob, map[string]interface{}{"score": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	board := a.list("/challenges/"+challengeID+"/leaderboard", "")
	require.Len(t, board, 2)
	assert.Equal(t, aliceID, board[0].(map[string]interface{})["userId"])
	assert.NotContains(t, board[0], "code")

	w, body = a.do(http.MethodGet, "/participations/"+aliceEntry+"/code", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CODE_HIDDEN", errorCode(body))

	w, body = a.do(http.MethodPut, "/challenges/"+challengeID+"/winner", admin, map[string]interface{}{"winnerId": aliceID, "score": 90})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "20.00", body["prizeAmount"])

	w, body = a.do(http.MethodPut, "/challenges/"+challengeID+"/winner", admin, map[string]interface{}{"winnerId": bobID, "score": 70})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ALREADY_HAS_WINNER", errorCode(body))

	w, body = a.do(http.MethodGet, "/challenges/"+challengeID, "", nil)
	assert.Equal(t, "past", body["status"])
	assert.Equal(t, aliceID, body["winnerUserId"])

	w, body = a.do(http.MethodGet, "/auth/me", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "20.00", body["totalEarnings"])
	assert.EqualValues(t, 1, body["challengeWins"])

	w, body = a.do(http.MethodGet, "/participations/"+bobEntry+"/code", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "package bob", body["code"])

	// payment confirmation, then winner notice
	aliceInbox := a.list("/notifications", alice)
	require.NotEmpty(t, aliceInbox)
	assert.Equal(t, "winner", aliceInbox[0].(map[string]interface{})["type"])
	bobInbox := a.list("/notifications", bob)
	require.NotEmpty(t, bobInbox)
	assert.Equal(t, "challenge", bobInbox[0].(map[string]interface{})["type"])

	noteID := bobInbox[0].(map[string]interface{})["id"].(string)
	w, _ = a.do(http.MethodPut, "/notifications/"+noteID+"/read", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, body = a.do(http.MethodPut, "/notifications/"+noteID+"/read", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["isRead"])
}

func TestAccountEndpoints(t *testing.T) {
	a := newAPI(t)
	admin, _ := a.register("root@example.com", "root")
	alice, aliceID := a.register("alice@example.com", "alice")
	bob, bobID := a.register("bob@example.com", "bob")

	change := map[string]string{"currentPassword": "hunter22", "newPassword": "hunter42"}
	w, body := a.do(http.MethodPost, "/users/"+aliceID+"/change-password", bob, change)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_OWNER", errorCode(body))

	w, body = a.do(http.MethodPost, "/users/"+aliceID+"/change-password", alice,
		map[string]string{"currentPassword": "nope-nope", "newPassword": "hunter42"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(body))

	w, _ = a.do(http.MethodPost, "/users/"+aliceID+"/change-password", alice, change)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "hunter42"})
	assert.Equal(t, http.StatusOK, w.Code)

	// A ban revokes access for tokens already issued.
	w, _ = a.do(http.MethodPut, "/admin/users/"+bobID+"/ban", admin, map[string]bool{"banned": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = a.do(http.MethodGet, "/auth/me", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_DISABLED", errorCode(body))
	w, body = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "bob@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_DISABLED", errorCode(body))

	w, _ = a.do(http.MethodPut, "/admin/users/"+bobID+"/ban", admin, map[string]bool{"banned": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = a.do(http.MethodGet, "/auth/me", bob, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorResponses(t *testing.T) {
	a := newAPI(t)

	w, body := a.do(http.MethodGet, "/challenges/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "CHALLENGE_NOT_FOUND", errorCode(body))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, body = a.do(http.MethodGet, "/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(body))

	w, _ = a.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProbes(t *testing.T) {
	failing := true
	a := newAPI(t, HealthCheck{Name: "store", Check: func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}})

	for _, path := range []string{"/health", "/live"} {
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	failing = false
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
