package bootstrap

import (
	"github.com/eleven-am/civic311/internal/analysis"
	"github.com/eleven-am/civic311/internal/auth"
	"github.com/eleven-am/civic311/internal/catalog"
	"github.com/eleven-am/civic311/internal/middleware"
	"github.com/eleven-am/civic311/internal/report"
	"github.com/eleven-am/civic311/internal/user"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	UserHandler     *user.Handler
	AnalysisHandler *analysis.Handler
	CatalogHandler  *catalog.Handler
	ReportHandler   *report.Handler
	AuthMiddleware  *auth.Middleware
	Config          *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: params.Config.AuthRateLimit,
		Burst:             params.Config.AuthRateBurst,
	}))
	params.UserHandler.RegisterRoutes(authGroup)
	params.UserHandler.RegisterProfileRoutes(api, params.AuthMiddleware.Authenticate)

	params.AnalysisHandler.RegisterRoutes(api)
	params.CatalogHandler.RegisterRoutes(api)
	params.ReportHandler.RegisterRoutes(api, params.AuthMiddleware.OptionalAuthenticate)

	e.Static("/dataset", params.Config.DatasetDir)
	e.GET("/swagger/*", echoSwagger.EchoWrapHandler())
}

var HandlersModule = fx.Options(
	fx.Invoke(RegisterRoutes),
)
