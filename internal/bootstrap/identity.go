package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eleven-am/civic311/internal/auth"
	"github.com/eleven-am/civic311/internal/firebase"
	"github.com/eleven-am/civic311/internal/user"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	identityLocal    = "local"
	identityFirebase = "firebase"
)

func ProvideUserStore(db *gorm.DB) *user.Store {
	if db == nil {
		return nil
	}
	return user.NewStore(db)
}

func ProvideJWTIssuer(cfg *Config, logger *slog.Logger) *auth.JWTIssuer {
	if cfg.IdentityProvider == identityLocal && cfg.DefaultJWTSecret() {
		logger.Warn("JWT_SECRET not set, signing tokens with the development default; set it before exposing this server")
	}
	return auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
}

func ProvideIdentityProvider(cfg *Config, store *user.Store, issuer *auth.JWTIssuer, logger *slog.Logger) (user.IdentityProvider, error) {
	switch cfg.IdentityProvider {
	case identityFirebase:
		provider, err := firebase.NewProvider(context.Background(), firebase.Config{
			CredentialsFile: cfg.FirebaseCredentialsFile,
			ProjectID:       cfg.FirebaseProjectID,
			APIKey:          cfg.FirebaseAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init firebase: %w", err)
		}
		logger.Info("identity provider ready", "provider", provider.Name())
		return provider, nil
	case identityLocal:
		if err := store.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate users: %w", err)
		}
		provider := user.NewLocalProvider(store, issuer)
		logger.Info("identity provider ready", "provider", provider.Name())
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}
}

func ProvideAuthMiddleware(identity user.IdentityProvider, logger *slog.Logger) *auth.Middleware {
	return auth.NewMiddleware(identity, logger.With("component", "auth"))
}

func ProvideUserHandler(identity user.IdentityProvider, logger *slog.Logger) *user.Handler {
	return user.NewHandler(identity, logger.With("handler", "user"))
}

var IdentityModule = fx.Options(
	fx.Provide(
		ProvideUserStore,
		ProvideJWTIssuer,
		ProvideIdentityProvider,
		ProvideAuthMiddleware,
		ProvideUserHandler,
	),
)
