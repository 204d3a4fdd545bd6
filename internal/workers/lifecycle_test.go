package workers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bytebattle-backend/internal/common/cache"
	challengemodels "bytebattle-backend/internal/features/challenge/models"
	challengerepo "bytebattle-backend/internal/features/challenge/repository"
	challengedoc "bytebattle-backend/internal/features/challenge/repository/document"
	challengeservice "bytebattle-backend/internal/features/challenge/service"
	notificationmodels "bytebattle-backend/internal/features/notification/models"
	participationmodels "bytebattle-backend/internal/features/participation/models"
	participationdoc "bytebattle-backend/internal/features/participation/repository/document"
	settlementservice "bytebattle-backend/internal/features/settlement/service"
	usermodels "bytebattle-backend/internal/features/user/models"
	userdoc "bytebattle-backend/internal/features/user/repository/document"
	"bytebattle-backend/internal/platform/docstore"
	"bytebattle-backend/internal/platform/docstore/memstore"
)

type discardSettlements struct{}

func (discardSettlements) NotifySettlement(context.Context, notificationmodels.Settlement) {}

type lifecycleFixture struct {
	store  *memstore.Store
	repo   challengerepo.ChallengeRepository
	worker *LifecycleWorker
	now    time.Time
}

func newLifecycleFixture(t *testing.T, autoSettle bool) *lifecycleFixture {
	t.Helper()
	store := memstore.New()
	repo := challengedoc.NewChallengeRepository(store)
	settlements := settlementservice.NewSettlementService(
		repo,
		participationdoc.NewParticipationRepository(store),
		userdoc.NewUserRepository(store),
		store,
		discardSettlements{},
		zap.NewNop(),
	)
	worker := NewLifecycleWorker(repo, challengeservice.NewChallengeService(repo, store, zap.NewNop()), settlements, time.Minute, autoSettle)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }
	return &lifecycleFixture{store: store, repo: repo, worker: worker, now: now}
}

func (f *lifecycleFixture) challenge(t *testing.T, id string, status challengemodels.Status, start, end time.Duration) {
	t.Helper()
	require.NoError(t, f.repo.Create(context.Background(), &challengemodels.Challenge{
		ID:          id,
		Title:       id,
		Description: "desc",
		StartDate:   f.now.Add(start),
		EndDate:     f.now.Add(end),
		Status:      status,
		TotalPot:    2000,
		CreatedAt:   f.now.Add(-24 * time.Hour),
	}))
}

func (f *lifecycleFixture) entrant(t *testing.T, userID, challengeID string, score int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, userdoc.NewUserRepository(f.store).Create(ctx, &usermodels.User{
		ID: userID, Email: userID + "@example.com", Username: userID, Role: usermodels.RoleUser, CreatedAt: f.now,
	}))
	submitted := f.now.Add(-2 * time.Hour)
	repo := participationdoc.NewParticipationRepository(f.store)
	require.NoError(t, f.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return repo.CreateTx(ctx, tx, &participationmodels.Participation{
			ID:             participationmodels.Key(userID, challengeID),
			UserID:         userID,
			ChallengeID:    challengeID,
			PaymentStatus:  participationmodels.PaymentConfirmed,
			IsPaid:         true,
			Score:          &score,
			CreatedAt:      submitted,
			SubmissionDate: &submitted,
		})
	}))
}

func (f *lifecycleFixture) get(t *testing.T, id string) *challengemodels.Challenge {
	t.Helper()
	c, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestTickMovesChallengesByDate(t *testing.T) {
	f := newLifecycleFixture(t, false)
	f.challenge(t, "starting", challengemodels.StatusUpcoming, -time.Hour, time.Hour)
	f.challenge(t, "later", challengemodels.StatusUpcoming, time.Hour, 2*time.Hour)
	f.challenge(t, "ending", challengemodels.StatusActive, -2*time.Hour, -time.Minute)
	f.challenge(t, "running", challengemodels.StatusActive, -2*time.Hour, time.Hour)
	f.entrant(t, "alice", "ending", 70)

	f.worker.Tick(context.Background())

	assert.Equal(t, challengemodels.StatusActive, f.get(t, "starting").Status)
	assert.Equal(t, challengemodels.StatusUpcoming, f.get(t, "later").Status)
	assert.Equal(t, challengemodels.StatusActive, f.get(t, "running").Status)

	ended := f.get(t, "ending")
	assert.Equal(t, challengemodels.StatusPast, ended.Status)
	assert.Nil(t, ended.WinnerUserID)
}

func TestTickAutoSettles(t *testing.T) {
	f := newLifecycleFixture(t, true)
	f.challenge(t, "scored", challengemodels.StatusActive, -2*time.Hour, -time.Minute)
	f.challenge(t, "empty", challengemodels.StatusActive, -2*time.Hour, -time.Minute)
	f.entrant(t, "alice", "scored", 40)
	f.entrant(t, "bob", "scored", 90)

	f.worker.Tick(context.Background())

	scored := f.get(t, "scored")
	assert.Equal(t, challengemodels.StatusPast, scored.Status)
	require.NotNil(t, scored.WinnerUserID)
	assert.Equal(t, "bob", *scored.WinnerUserID)

	empty := f.get(t, "empty")
	assert.Equal(t, challengemodels.StatusPast, empty.Status)
	assert.Nil(t, empty.WinnerUserID)

	// A second pass finds nothing to do.
	f.worker.Tick(context.Background())
	u, err := userdoc.NewUserRepository(f.store).GetByID(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ChallengeWins)
	assert.Equal(t, int64(2000), u.TotalEarnings)
}

func TestTickInvalidatesCachedResponses(t *testing.T) {
	f := newLifecycleFixture(t, false)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	responses := cache.NewCacheService(client)
	f.worker.WithResponseCache(responses)

	ctx := context.Background()
	key := cache.ResponsePrefix + "GET/api/v1/challenges"
	f.challenge(t, "starting", challengemodels.StatusUpcoming, -time.Hour, time.Hour)
	require.NoError(t, client.Set(ctx, key, "stale", time.Minute).Err())

	f.worker.Tick(ctx)
	assert.False(t, mr.Exists(key))

	// Nothing changes on the next pass, so fresh entries survive.
	require.NoError(t, client.Set(ctx, key, "fresh", time.Minute).Err())
	f.worker.Tick(ctx)
	assert.True(t, mr.Exists(key))
}

func TestLifecycleWorkerStartStop(t *testing.T) {
	f := newLifecycleFixture(t, false)
	require.NoError(t, f.worker.Start(context.Background()))
	assert.NoError(t, f.worker.Stop())
}
