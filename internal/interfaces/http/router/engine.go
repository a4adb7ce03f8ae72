package router

import (
	"time"

	"github.com/catalogsync/backend/internal/infrastructure/auth"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/catalogsync/backend/internal/interfaces/http/handler"
	"github.com/catalogsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators of the HTTP API
type Dependencies struct {
	CatalogSync    handler.CatalogSyncService
	DB             handler.Pinger
	JWT            *auth.JWTService
	Logger         *zap.Logger
	MeterProvider  *telemetry.MeterProvider
	ServiceName    string
	Version        string
	TracingEnabled bool
	TrustedProxies []string
	RunTimeout     time.Duration
	// TriggerBurst is how many trigger calls a user may make per TriggerWindow
	TriggerBurst  int
	TriggerWindow time.Duration
}

// NewEngine builds the gin engine with the middleware chain and all routes
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(deps.Logger),
		logger.Recovery(deps.Logger),
		middleware.Tracing(middleware.TracingConfig{ServiceName: deps.ServiceName, Enabled: deps.TracingEnabled}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(deps.MeterProvider),
		middleware.Secure(),
		middleware.BodyLimit(middleware.DefaultBodyLimit),
	)

	system := handler.NewSystemHandler(deps.DB, deps.Version)
	engine.GET("/health", system.Health)

	r := NewRouter(engine)
	r.Register(NewDomainGroup("system", "/system").
		GET("/ping", system.Ping).
		GET("/info", append(requireAdmin(deps.JWT), system.GetSystemInfo)...))

	if deps.CatalogSync != nil {
		burst := deps.TriggerBurst
		if burst <= 0 {
			burst = 5
		}
		window := deps.TriggerWindow
		if window <= 0 {
			window = time.Minute
		}

		syncHandler := handler.NewCatalogSyncHandler(deps.CatalogSync, deps.RunTimeout)
		r.Register(NewDomainGroup("catalog-sync", "/catalog-sync").
			Use(requireAdmin(deps.JWT)...).
			POST("/runs", middleware.RateLimitByUser(middleware.NewRateLimiter(burst, window)), syncHandler.TriggerRun).
			GET("/runs", syncHandler.ListRuns).
			GET("/runs/:id", syncHandler.GetRun))
	}

	r.Setup()
	return engine, nil
}

func requireAdmin(jwtService *auth.JWTService) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		middleware.JWTAuthMiddleware(jwtService),
		middleware.TracingAttributeInjector(),
		middleware.RequireRole(auth.RoleAdmin),
	}
}
