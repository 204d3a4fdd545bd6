package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"bytebattle-backend/internal/platform/docstore"
)

const (
	credentialsCollection = "identities"
	emailIndexCollection  = "identity_emails"

	minPasswordLength = 6
)

type credential struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"createdAt"`
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LocalProvider issues HS256 tokens and keeps bcrypt credentials in the
// document store.
type LocalProvider struct {
	store    docstore.Store
	secret   []byte
	issuer   string
	ttl      time.Duration
	hashCost int
	now      func() time.Time
}

var _ Provider = (*LocalProvider)(nil)

type Option func(*LocalProvider)

func WithHashCost(cost int) Option {
	return func(p *LocalProvider) { p.hashCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(p *LocalProvider) { p.now = now }
}

func NewLocalProvider(store docstore.Store, secret, issuer string, ttl time.Duration, opts ...Option) *LocalProvider {
	p := &LocalProvider{
		store:    store,
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	email = normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash password: %w", err)
	}

	id := docstore.NewID()
	cred, err := docstore.Encode(credential{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	})
	if err != nil {
		return "", err
	}

	err = p.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Create(ctx, emailIndexCollection, email, docstore.Fields{"subjectId": id}); err != nil {
			if errors.Is(err, docstore.ErrAlreadyExists) {
				return ErrEmailExists
			}
			return err
		}
		return tx.Create(ctx, credentialsCollection, id, cred)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *LocalProvider) SetDisabled(ctx context.Context, subjectID string, disabled bool) error {
	err := p.store.Update(ctx, credentialsCollection, subjectID, docstore.Fields{"disabled": disabled})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrSubjectNotFound
	}
	return err
}

func (p *LocalProvider) lookup(ctx context.Context, subjectID string) (*credential, error) {
	doc, err := p.store.Get(ctx, credentialsCollection, subjectID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	var c credential
	if err := doc.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	idx, err := p.store.Get(ctx, emailIndexCollection, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	subjectID, _ := idx.Data["subjectId"].(string)

	cred, err := p.lookup(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if cred.Disabled {
		return "", ErrDisabled
	}
	return p.issue(cred)
}

func (p *LocalProvider) ChangePassword(ctx context.Context, subjectID, current, next string) error {
	cred, err := p.lookup(ctx, subjectID)
	if err != nil {
		return err
	}
	if cred.Disabled {
		return ErrDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), p.hashCost)
	if err != nil {
		return fmt.Errorf("identity: hash password: %w", err)
	}
	err = p.store.Update(ctx, credentialsCollection, subjectID, docstore.Fields{"passwordHash": string(hash)})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrSubjectNotFound
	}
	return err
}

func (p *LocalProvider) issue(cred *credential) (string, error) {
	now := p.now()
	claims := tokenClaims{
		Email: cred.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	cred, err := p.lookup(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if cred.Disabled {
		return nil, ErrDisabled
	}
	return &Claims{SubjectID: claims.Subject, Email: claims.Email}, nil
}
