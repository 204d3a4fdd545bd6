package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/features/challenge/models"
	"bytebattle-backend/internal/features/challenge/repository/document"
	"bytebattle-backend/internal/platform/docstore"
	"bytebattle-backend/internal/platform/docstore/memstore"
)

func newService(t *testing.T) (*challengeService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := NewChallengeService(document.NewChallengeRepository(store), store, zap.NewNop()).(*challengeService)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func ptr[T any](v T) *T { return &v }

func validInput() *models.ChallengeInput {
	return &models.ChallengeInput{
		Title:             ptr("Longest palindrome"),
		Description:       ptr("Find the longest palindromic substring"),
		StartDate:         ptr("2024-06-01T10:00:00Z"),
		EndDate:           ptr("2024-06-08"),
		ParticipationCost: ptr(decimal.RequireFromString("10.50")),
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "admin-1", validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.StatusUpcoming, c.Status)
	assert.Equal(t, int64(1050), c.ParticipationCost)
	assert.Zero(t, c.TotalPot)
	assert.Nil(t, c.WinnerUserID)
	assert.Equal(t, time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC), c.EndDate)

	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, stored.Title)
	assert.True(t, c.StartDate.Equal(stored.StartDate))
	assert.Equal(t, "admin-1", stored.CreatedBy)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := map[string]func(in *models.ChallengeInput){
		"missing title":     func(in *models.ChallengeInput) { in.Title = nil },
		"blank description": func(in *models.ChallengeInput) { in.Description = ptr("  ") },
		"bad date":          func(in *models.ChallengeInput) { in.StartDate = ptr("next monday") },
		"end before start":  func(in *models.ChallengeInput) { in.EndDate = ptr("2024-05-01") },
		"end equals start":  func(in *models.ChallengeInput) { in.EndDate = in.StartDate },
		"negative cost":     func(in *models.ChallengeInput) { in.ParticipationCost = ptr(decimal.NewFromInt(-1)) },
		"fractional cents":  func(in *models.ChallengeInput) { in.ParticipationCost = ptr(decimal.RequireFromString("0.001")) },
		"missing cost":      func(in *models.ChallengeInput) { in.ParticipationCost = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(in)
			_, err := svc.Create(ctx, "admin-1", in)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
}

func TestCreateFreeChallenge(t *testing.T) {
	svc, _ := newService(t)
	in := validInput()
	in.ParticipationCost = ptr(decimal.Zero)

	c, err := svc.Create(context.Background(), "admin-1", in)
	require.NoError(t, err)
	assert.Zero(t, c.ParticipationCost)
}

func TestGetMissing(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeChallengeNotFound))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestSetStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "admin-1", validInput())
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, c.ID, "past")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPast, updated.Status)

	// override may go backwards
	updated, err = svc.SetStatus(ctx, c.ID, "upcoming")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUpcoming, updated.Status)

	_, err = svc.SetStatus(ctx, c.ID, "archived")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.SetStatus(ctx, "missing", "active")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAdvanceOnlyFromExpectedStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "admin-1", validInput())
	require.NoError(t, err)

	moved, err := svc.Advance(ctx, c.ID, models.StatusActive, models.StatusPast)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = svc.Advance(ctx, c.ID, models.StatusUpcoming, models.StatusActive)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = svc.Advance(ctx, c.ID, models.StatusUpcoming, models.StatusActive)
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	_, err = svc.Advance(ctx, "missing", models.StatusUpcoming, models.StatusActive)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAccumulatePot(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "admin-1", validInput())
	require.NoError(t, err)

	require.NoError(t, svc.AccumulatePot(ctx, c.ID, 1050))
	require.NoError(t, store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return svc.AccumulatePotTx(ctx, tx, c.ID, 250)
	}))

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), got.TotalPot)

	err = svc.AccumulatePot(ctx, c.ID, -1)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	err = svc.AccumulatePot(ctx, "missing", 100)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestUpdate(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "admin-1", validInput())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, c.ID, &models.ChallengeInput{
		Title:   ptr("Shortest path"),
		EndDate: ptr("2024-06-10T10:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Shortest path", updated.Title)
	assert.Equal(t, time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC), updated.EndDate.UTC())
	assert.Equal(t, int64(1050), updated.ParticipationCost)

	_, err = svc.Update(ctx, c.ID, &models.ChallengeInput{EndDate: ptr("2024-05-01")})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	require.NoError(t, store.Update(ctx, document.Collection, c.ID, docstore.Fields{
		models.FieldWinnerUserID: "user-1",
	}))
	_, err = svc.Update(ctx, c.ID, &models.ChallengeInput{Title: ptr("Too late")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeChallengeSettled))
}

func TestList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "admin-1", validInput())
	require.NoError(t, err)
	in := validInput()
	in.StartDate = ptr("2024-05-20")
	second, err := svc.Create(ctx, "admin-1", in)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, first.ID, "active")
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	active, err := svc.List(ctx, "active")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	_, err = svc.List(ctx, "bogus")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}
