package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "bytebattle-backend/internal/common/errors"
	challengemodels "bytebattle-backend/internal/features/challenge/models"
	challengedoc "bytebattle-backend/internal/features/challenge/repository/document"
	notificationmodels "bytebattle-backend/internal/features/notification/models"
	participationmodels "bytebattle-backend/internal/features/participation/models"
	participationdoc "bytebattle-backend/internal/features/participation/repository/document"
	usermodels "bytebattle-backend/internal/features/user/models"
	userdoc "bytebattle-backend/internal/features/user/repository/document"
	"bytebattle-backend/internal/platform/docstore"
	"bytebattle-backend/internal/platform/docstore/memstore"
	"bytebattle-backend/internal/platform/docstore/redisstore"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notificationmodels.Settlement
}

func (n *recordingNotifier) NotifySettlement(_ context.Context, event notificationmodels.Settlement) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

type fixture struct {
	store    docstore.Store
	mem      *memstore.Store
	svc      SettlementService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memstore.New()
	f := newFixtureOn(t, mem)
	f.mem = mem
	return f
}

func newRedisFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newFixtureOn(t, redisstore.New(client))
}

func newFixtureOn(t *testing.T, store docstore.Store) *fixture {
	t.Helper()
	notifier := &recordingNotifier{}
	svc := NewSettlementService(
		challengedoc.NewChallengeRepository(store),
		participationdoc.NewParticipationRepository(store),
		userdoc.NewUserRepository(store),
		store,
		notifier,
		zap.NewNop(),
	)
	f := &fixture{store: store, svc: svc, notifier: notifier}

	now := time.Now().UTC()
	require.NoError(t, challengedoc.NewChallengeRepository(store).Create(context.Background(), &challengemodels.Challenge{
		ID:                "c1",
		Title:             "Fastest sort",
		Description:       "desc",
		StartDate:         now.Add(-2 * time.Hour),
		EndDate:           now.Add(-time.Hour),
		ParticipationCost: 1000,
		TotalPot:          3000,
		Status:            challengemodels.StatusActive,
		CreatedAt:         now,
	}))
	return f
}

func (f *fixture) entrant(t *testing.T, id string, status participationmodels.PaymentStatus, score *int64, submitted time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, userdoc.NewUserRepository(f.store).Create(ctx, &usermodels.User{
		ID:        id,
		Email:     id + "@example.com",
		Username:  id,
		Role:      usermodels.RoleUser,
		CreatedAt: time.Now().UTC(),
	}))

	repo := participationdoc.NewParticipationRepository(f.store)
	require.NoError(t, f.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return repo.CreateTx(ctx, tx, &participationmodels.Participation{
			ID:                participationmodels.Key(id, "c1"),
			UserID:            id,
			ChallengeID:       "c1",
			ParticipationCost: 1000,
			PaymentStatus:     status,
			IsPaid:            status == participationmodels.PaymentConfirmed,
			Score:             score,
			CreatedAt:         submitted.Add(-time.Minute),
			SubmissionDate:    &submitted,
		})
	}))
}

func (f *fixture) challenge(t *testing.T) *challengemodels.Challenge {
	t.Helper()
	c, err := challengedoc.NewChallengeRepository(f.store).GetByID(context.Background(), "c1")
	require.NoError(t, err)
	return c
}

func (f *fixture) user(t *testing.T, id string) *usermodels.User {
	t.Helper()
	u, err := userdoc.NewUserRepository(f.store).GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) participation(t *testing.T, userID string) *participationmodels.Participation {
	t.Helper()
	p, err := participationdoc.NewParticipationRepository(f.store).GetByID(context.Background(), participationmodels.Key(userID, "c1"))
	require.NoError(t, err)
	return p
}

func score(v int64) *int64 { return &v }

func TestDeclareWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entrant(t, "alice", participationmodels.PaymentConfirmed, score(50), time.Now())

	result, err := f.svc.DeclareWinner(ctx, "c1", "alice", 90)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), result.PrizeAmount)
	assert.Equal(t, "alice", result.WinnerID)

	c := f.challenge(t)
	require.NotNil(t, c.WinnerUserID)
	assert.Equal(t, "alice", *c.WinnerUserID)
	assert.Equal(t, challengemodels.StatusPast, c.Status)
	assert.True(t, c.IsPaidToWinner)
	assert.NotNil(t, c.SettledAt)

	p := f.participation(t, "alice")
	assert.True(t, p.Winner)
	require.NotNil(t, p.Score)
	assert.Equal(t, int64(90), *p.Score)

	u := f.user(t, "alice")
	assert.Equal(t, int64(1), u.ChallengeWins)
	assert.Equal(t, int64(3000), u.TotalEarnings)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "alice", f.notifier.events[0].WinnerUsername)
	assert.Equal(t, "Fastest sort", f.notifier.events[0].ChallengeTitle)
}

func TestDeclareWinnerOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entrant(t, "alice", participationmodels.PaymentConfirmed, score(50), time.Now())
	f.entrant(t, "bob", participationmodels.PaymentConfirmed, score(70), time.Now())

	_, err := f.svc.DeclareWinner(ctx, "c1", "alice", 50)
	require.NoError(t, err)

	_, err = f.svc.DeclareWinner(ctx, "c1", "bob", 70)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyHasWinner))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Equal(t, "alice", *f.challenge(t).WinnerUserID)
	assert.False(t, f.participation(t, "bob").Winner)
	assert.Zero(t, f.user(t, "bob").TotalEarnings)
	assert.Equal(t, int64(3000), f.user(t, "alice").TotalEarnings)
	assert.Len(t, f.notifier.events, 1)
}

func TestConcurrentDeclareWinnerPaysOnce(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	contenders := []string{"alice", "bob", "carol", "dave"}
	for i, id := range contenders {
		f.entrant(t, id, participationmodels.PaymentConfirmed, score(int64(10*(i+1))), time.Now())
	}

	const rounds = 2
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for r := 0; r < rounds; r++ {
		for _, id := range contenders {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := f.svc.DeclareWinner(ctx, "c1", id, 100)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
				} else if apperrors.HasCode(err, apperrors.ErrCodeAlreadyHasWinner) {
					rejected++
				}
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, rounds*len(contenders)-1, rejected)

	c := f.challenge(t)
	require.NotNil(t, c.WinnerUserID)
	var (
		earnings int64
		wins     int64
		winners  int
	)
	for _, id := range contenders {
		u := f.user(t, id)
		earnings += u.TotalEarnings
		wins += u.ChallengeWins
		if f.participation(t, id).Winner {
			winners++
			assert.Equal(t, *c.WinnerUserID, id)
		}
	}
	assert.Equal(t, int64(3000), earnings)
	assert.Equal(t, int64(1), wins)
	assert.Equal(t, 1, winners)
	assert.Len(t, f.notifier.events, 1)
}

func TestDeclareWinnerIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.entrant(t, "alice", participationmodels.PaymentConfirmed, score(50), time.Now())

	f.mem.FailNextCommit(docstore.ErrConflict)
	_, err := f.svc.DeclareWinner(context.Background(), "c1", "alice", 50)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.True(t, appErr.Retryable)

	c := f.challenge(t)
	assert.Nil(t, c.WinnerUserID)
	assert.Equal(t, challengemodels.StatusActive, c.Status)
	assert.False(t, f.participation(t, "alice").Winner)
	assert.Zero(t, f.user(t, "alice").ChallengeWins)
	assert.Empty(t, f.notifier.events)
}

func TestDeclareWinnerRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entrant(t, "pending", participationmodels.PaymentPending, score(50), time.Now())

	_, err := f.svc.DeclareWinner(ctx, "c1", "pending", 50)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePaymentNotConfirmed))

	_, err = f.svc.DeclareWinner(ctx, "c1", "ghost", 50)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))

	_, err = f.svc.DeclareWinner(ctx, "missing", "pending", 50)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeChallengeNotFound))

	_, err = f.svc.DeclareWinner(ctx, "c1", "pending", -1)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Nil(t, f.challenge(t).WinnerUserID)
}

func TestSettleByHighestScore(t *testing.T) {
	f := newFixture(t)
	base := time.Now().Add(-30 * time.Minute)
	f.entrant(t, "alice", participationmodels.PaymentConfirmed, score(80), base.Add(time.Minute))
	f.entrant(t, "bob", participationmodels.PaymentConfirmed, score(80), base)
	f.entrant(t, "carol", participationmodels.PaymentPending, score(99), base)
	f.entrant(t, "dave", participationmodels.PaymentConfirmed, nil, base)

	result, err := f.svc.SettleByHighestScore(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "bob", result.WinnerID)
	assert.Equal(t, int64(80), result.Score)
	assert.Equal(t, "bob", *f.challenge(t).WinnerUserID)
}

func TestSettleByHighestScoreWithoutCandidates(t *testing.T) {
	f := newFixture(t)
	f.entrant(t, "carol", participationmodels.PaymentPending, score(99), time.Now())

	_, err := f.svc.SettleByHighestScore(context.Background(), "c1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoEligibleWinner))
	assert.Nil(t, f.challenge(t).WinnerUserID)
}
