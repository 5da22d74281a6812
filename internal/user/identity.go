package user

import (
	"context"
	"errors"
	"net/mail"

	"github.com/eleven-am/civic311/internal/auth"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const MinPasswordLength = 6

// ValidEmail accepts a bare addr-spec only. Display-name forms such as
// "Bob <bob@example.com>" parse as addresses but are not account emails.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// IdentityProvider is the boundary to whichever service owns user accounts
// and token issuance.
type IdentityProvider interface {
	auth.TokenVerifier

	Name() string
	CreateUser(ctx context.Context, u NewUser) (*Record, error)
	GetUserByEmail(ctx context.Context, email string) (*Record, error)
	VerifyPassword(ctx context.Context, email, password string) (*Record, error)
	CustomToken(ctx context.Context, rec *Record) (string, error)
}
