package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/eleven-am/civic311/internal/analysis"
	"github.com/eleven-am/civic311/internal/catalog"
	"github.com/eleven-am/civic311/internal/inference"
	"github.com/eleven-am/civic311/internal/report"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ProvideAnalysisProvider returns nil when no Gemini key is configured so
// the rest of the server can still start; analysis requests then fail.
func ProvideAnalysisProvider(cfg *Config, logger *slog.Logger) (analysis.Provider, error) {
	provider, err := analysis.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if errors.Is(err, analysis.ErrNotConfigured) {
		logger.Warn("GEMINI_API_KEY not set, image analysis disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func ProvideAnalysisService(provider analysis.Provider, redisClient *redis.Client, cfg *Config, logger *slog.Logger) *analysis.Service {
	cache := analysis.NewCache(redisClient, cfg.CacheTTL)
	dataset := analysis.NewDataset(cfg.DatasetDir, cfg.MaxUploadBytes)
	return analysis.NewService(provider, cache, dataset, logger)
}

func ProvideAnalysisHandler(svc *analysis.Service, logger *slog.Logger) *analysis.Handler {
	return analysis.NewHandler(svc, logger.With("handler", "analysis"))
}

func ProvideCatalog(cfg *Config) (*catalog.Catalog, error) {
	return catalog.Load(cfg.CatalogFile)
}

func ProvideCatalogHandler(cat *catalog.Catalog) *catalog.Handler {
	return catalog.NewHandler(cat)
}

func ProvideInferenceLoader(cfg *Config, logger *slog.Logger) *inference.OllamaLoader {
	return inference.NewOllamaLoader(inference.Config{
		OllamaURL:     cfg.OllamaURL,
		Model:         cfg.OllamaModel,
		Timeout:       cfg.OllamaTimeout,
		Pull:          cfg.OllamaPull,
		MaxNewTokens:  cfg.MaxNewTokens,
		ImageSize:     cfg.ImageSize,
		MaxImageBytes: cfg.MaxImageBytes,
	}, logger)
}

func ProvideReportManager(lc fx.Lifecycle, loader *inference.OllamaLoader, cfg *Config, logger *slog.Logger) *report.Manager {
	manager := report.NewManager(loader, cfg.MaxReportSessions, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			manager.Shutdown()
			return nil
		},
	})
	return manager
}

func ProvideReportHandler(manager *report.Manager, cat *catalog.Catalog, logger *slog.Logger) *report.Handler {
	return report.NewHandler(manager, cat, logger.With("handler", "report"))
}

var AIModule = fx.Options(
	fx.Provide(
		ProvideAnalysisProvider,
		ProvideAnalysisService,
		ProvideAnalysisHandler,
		ProvideCatalog,
		ProvideCatalogHandler,
		ProvideInferenceLoader,
		ProvideReportManager,
		ProvideReportHandler,
	),
)
