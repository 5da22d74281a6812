package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTIssuer_IssueAndValidate(t *testing.T) {
	issuer := NewJWTIssuer([]byte("test-secret"), "civic311", time.Hour)

	token, err := issuer.Issue("user_1", "test@example.com", "Test User")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UID != "user_1" {
		t.Errorf("expected uid user_1, got %s", claims.UID)
	}
	if claims.Email != "test@example.com" {
		t.Errorf("expected email test@example.com, got %s", claims.Email)
	}
	if claims.Name != "Test User" {
		t.Errorf("expected name Test User, got %s", claims.Name)
	}
	if claims.Subject != "user_1" {
		t.Errorf("expected subject user_1, got %s", claims.Subject)
	}
}

func TestJWTIssuer_ValidateAcceptsBearerPrefix(t *testing.T) {
	issuer := NewJWTIssuer([]byte("test-secret"), "civic311", time.Hour)
	token, _ := issuer.Issue("user_1", "", "")

	if _, err := issuer.Validate("Bearer " + token); err != nil {
		t.Fatalf("expected bearer-prefixed token to validate, got %v", err)
	}
}

func TestJWTIssuer_DefaultTTL(t *testing.T) {
	issuer := NewJWTIssuer([]byte("k"), "", 0)
	if issuer.ttl != defaultTokenTTL {
		t.Errorf("expected default ttl %v, got %v", defaultTokenTTL, issuer.ttl)
	}
}

func TestJWTIssuer_Expired(t *testing.T) {
	issuer := NewJWTIssuer([]byte("test-secret"), "civic311", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.Issue("user_1", "", "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	issuer.now = time.Now
	_, err = issuer.Validate(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTIssuer_Invalid(t *testing.T) {
	issuer := NewJWTIssuer([]byte("test-secret"), "civic311", time.Hour)
	other := NewJWTIssuer([]byte("other-secret"), "civic311", time.Hour)
	foreign, _ := other.Issue("user_1", "", "")
	wrongIssuer, _ := NewJWTIssuer([]byte("test-secret"), "someone-else", time.Hour).Issue("user_1", "", "")

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: foreign},
		{name: "wrong issuer", token: wrongIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Validate(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
