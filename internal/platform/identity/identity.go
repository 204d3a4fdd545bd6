// Package identity verifies bearer tokens and manages login credentials.
package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidToken       = errors.New("identity: invalid token")
	ErrExpiredToken       = errors.New("identity: token expired")
	ErrEmailExists        = errors.New("identity: email already registered")
	ErrWeakPassword       = errors.New("identity: password is too weak")
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
	ErrDisabled           = errors.New("identity: account disabled")
	ErrSubjectNotFound    = errors.New("identity: subject not found")
)

// Claims is what a verified token says about its bearer.
type Claims struct {
	SubjectID string
	Email     string
}

type Provider interface {
	VerifyToken(ctx context.Context, token string) (*Claims, error)
	CreateUser(ctx context.Context, email, password, displayName string) (subjectID string, err error)
	SetDisabled(ctx context.Context, subjectID string, disabled bool) error
	SignIn(ctx context.Context, email, password string) (token string, err error)
	// ChangePassword replaces the password once current is verified.
	ChangePassword(ctx context.Context, subjectID, current, next string) error
}
