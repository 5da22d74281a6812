package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/eleven-am/civic311/internal/shared"
	"github.com/labstack/echo/v4"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// TokenVerifier turns a bearer token into claims. Implemented by every
// identity provider.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}

type Middleware struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

func NewMiddleware(verifier TokenVerifier, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		verifier: verifier,
		logger:   logger,
	}
}

func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request().Header.Get("Authorization"))
		if token == "" {
			return shared.Unauthorized("missing_token", "Access token required")
		}

		claims, err := m.verifier.VerifyToken(c.Request().Context(), token)
		if err != nil {
			m.logger.Warn("token verification failed", "error", err)
			return shared.Forbidden("invalid_token", "Invalid or expired token")
		}

		setClaims(c, claims)
		return next(c)
	}
}

// OptionalAuthenticate attaches claims when a valid token is supplied in the
// Authorization header or the "token" query parameter. Browsers cannot set
// headers on WebSocket upgrades, hence the query fallback.
func (m *Middleware) OptionalAuthenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request().Header.Get("Authorization"))
		if token == "" {
			token = c.QueryParam("token")
		}
		if token == "" {
			return next(c)
		}

		claims, err := m.verifier.VerifyToken(c.Request().Context(), token)
		if err != nil {
			return next(c)
		}

		setClaims(c, claims)
		return next(c)
	}
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func setClaims(c echo.Context, claims *Claims) {
	ctx := context.WithValue(c.Request().Context(), claimsKey, claims)
	c.SetRequest(c.Request().WithContext(ctx))
}

func GetClaims(c echo.Context) *Claims {
	claims, ok := c.Request().Context().Value(claimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func SetClaimsForTest(c echo.Context, claims *Claims) {
	setClaims(c, claims)
}
