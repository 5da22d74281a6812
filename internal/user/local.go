package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/eleven-am/civic311/internal/auth"
	"github.com/eleven-am/civic311/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

// LocalProvider keeps accounts in the service's own database and signs its
// own tokens. It backs development setups and tests.
type LocalProvider struct {
	store  *Store
	issuer *auth.JWTIssuer
	cost   int
}

func NewLocalProvider(store *Store, issuer *auth.JWTIssuer) *LocalProvider {
	return &LocalProvider{
		store:  store,
		issuer: issuer,
		cost:   bcrypt.DefaultCost,
	}
}

func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) CreateUser(ctx context.Context, nu NewUser) (*Record, error) {
	if !ValidEmail(nu.Email) {
		return nil, ErrInvalidEmail
	}
	if len(nu.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), p.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrWeakPassword
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:        nu.Email,
		DisplayName:  nu.DisplayName,
		PasswordHash: string(hash),
	}
	if err := p.store.Create(ctx, u); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return u.Record(), nil
}

func (p *LocalProvider) GetUserByEmail(ctx context.Context, email string) (*Record, error) {
	u, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u.Record(), nil
}

func (p *LocalProvider) VerifyPassword(ctx context.Context, email, password string) (*Record, error) {
	u, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u.Record(), nil
}

func (p *LocalProvider) CustomToken(_ context.Context, rec *Record) (string, error) {
	return p.issuer.Issue(rec.UID, rec.Email, rec.DisplayName)
}

func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := p.issuer.Validate(token)
	if err != nil {
		return nil, err
	}

	// Tokens outlive deleted accounts otherwise.
	if _, err := p.store.GetByUID(ctx, claims.UID); err != nil {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}
