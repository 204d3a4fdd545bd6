package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type temporaryErr struct{}

func (temporaryErr) Error() string   { return "conflict" }
func (temporaryErr) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{NewValidationError("title", "required"), KindValidation},
		{New(ErrCodeAlreadyJoined, "joined"), KindValidation},
		{NewChallengeNotFoundError("c1"), KindNotFound},
		{New(ErrCodeCodeHidden, "hidden"), KindForbidden},
		{New(ErrCodeTokenExpired, "expired"), KindUnauthorized},
		{fmt.Errorf("wrapped: %w", New(ErrCodeUserBanned, "banned")), KindForbidden},
		{stderrors.New("plain"), KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), tc.err.Error())
	}
}

func TestNewDatabaseError(t *testing.T) {
	t.Run("transient errors are retryable", func(t *testing.T) {
		err := NewDatabaseError("commit", fmt.Errorf("tx: %w", temporaryErr{}))
		assert.True(t, err.Retryable)
		assert.Equal(t, KindUnavailable, err.Kind())
	})

	t.Run("deadline is retryable", func(t *testing.T) {
		err := NewDatabaseError("get", context.DeadlineExceeded)
		assert.True(t, err.Retryable)
	})

	t.Run("fatal errors are internal", func(t *testing.T) {
		cause := stderrors.New("disk full")
		err := NewDatabaseError("set", cause)
		assert.False(t, err.Retryable)
		assert.Equal(t, KindInternal, err.Kind())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("app errors pass through", func(t *testing.T) {
		orig := New(ErrCodeAlreadyHasWinner, "settled")
		err := NewDatabaseError("settle", orig)
		require.Same(t, orig, err)
	})
}

func TestAppErrorChaining(t *testing.T) {
	err := NewForbiddenError("not yours").WithRequestID("r1").WithUserID("u1").WithContext("path", "/x")
	assert.Equal(t, "r1", err.RequestID)
	assert.Equal(t, "u1", err.UserID)
	assert.Equal(t, "/x", err.Context["path"])
	assert.True(t, err.IsUnauthorized())
	assert.True(t, HasCode(err, ErrCodeForbidden))
	assert.NotEmpty(t, err.Stack)
}
