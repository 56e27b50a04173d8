package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"gadevtools/internal/auth"
	"gadevtools/internal/bitly"
	"gadevtools/internal/config"
	"gadevtools/internal/errors"
	"gadevtools/internal/infrastructure"
	"gadevtools/internal/metadata"
	customMiddleware "gadevtools/internal/middleware"
	"gadevtools/internal/reporting"
	"gadevtools/internal/services"
	"gadevtools/internal/site"
	handlers "gadevtools/internal/transport/http"
	"gadevtools/pkg/contracts"
)

const AppName = "GA Dev Tools"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	Services      *ServiceContainer
	ErrorHandler  *errors.ErrorHandler
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Tokens   auth.TokenProvider
	Bitly    bitly.Exchanger
	Metadata *metadata.Service
	Renderer *site.Renderer
	Export   *services.ExportService
	Health   *services.HealthService
}

// NewApplication loads the configuration and builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewApplicationWithConfig(cfg, logger)
}

// NewApplicationWithConfig builds the application from an already loaded
// configuration.
func NewApplicationWithConfig(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	environment := site.EnvProduction
	if cfg.Logging.Development {
		environment = site.EnvDevelopment
	}
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(environment), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  errors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context) error {
	cfg := a.Config
	container := &ServiceContainer{}

	if cfg.Google.ServiceAccountFile != "" {
		key, err := os.ReadFile(cfg.Google.ServiceAccountFile)
		if err != nil {
			return errors.NewConfigError("failed to read service account file", err).WithContext("path", cfg.Google.ServiceAccountFile)
		}
		provider, err := auth.NewServiceAccountProvider(ctx, key, cfg.Google.Scopes,
			auth.NewTokenCache(cfg.Google.TokenExpirySkew), a.Logger)
		if err != nil {
			return errors.NewConfigError("failed to initialize service account", err)
		}
		container.Tokens = provider
	} else {
		a.Logger.Warn("No service account configured; pages and downloads need the caller's token")
	}

	if cfg.Bitly.Enabled() {
		container.Bitly = bitly.NewClient(bitly.Config{
			ClientID:               cfg.Bitly.ClientID,
			ClientSecret:           cfg.Bitly.ClientSecret,
			RedirectURI:            cfg.Bitly.RedirectURI(),
			IntegrationRedirectURI: cfg.Bitly.IntegrationRedirectURI,
			AuthURL:                cfg.Bitly.AuthURL,
			TokenURL:               cfg.Bitly.TokenURL,
		}, &http.Client{Timeout: cfg.Google.RequestTimeout}, a.Logger)
	}

	container.Metadata = metadata.NewService(metadata.Config{
		ColumnsURL: cfg.Google.MetadataURL,
		CubesURL:   cfg.Google.CubesURL,
		TTL:        cfg.Google.CacheTTL,
	}, &http.Client{Timeout: cfg.Google.RequestTimeout}, a.Logger)

	meta, err := site.LoadMeta(cfg.Site.MetaFile, cfg.Server.ServerName)
	if err != nil {
		return errors.NewConfigError("failed to load site metadata", err).WithContext("path", cfg.Site.MetaFile)
	}
	container.Renderer = site.NewRenderer(meta, cfg.Site.TemplatesDir, container.Tokens, cfg.Site.CacheTemplates, a.Logger)

	reportingClient := reporting.NewClient(a.Logger,
		reporting.WithEndpoint(cfg.Google.ReportingURL),
		reporting.WithTimeout(cfg.Google.RequestTimeout),
	)
	container.Export = services.NewExportService(reportingClient, container.Tokens, cfg.Export, a.Metrics, a.Logger)

	container.Health = services.NewHealthService(contracts.Version, a.readinessChecks(container), a.Logger)

	a.Services = container
	return nil
}

// readinessChecks are the dependencies /api/health/ready reports on.
func (a *Application) readinessChecks(container *ServiceContainer) map[string]services.Check {
	checks := map[string]services.Check{
		"templates": func(context.Context) error {
			if !config.FileExists(a.Config.Site.TemplatesDir) {
				return fmt.Errorf("templates directory %s not found", a.Config.Site.TemplatesDir)
			}
			return nil
		},
	}
	if container.Tokens != nil {
		tokens := container.Tokens
		checks["service_account"] = func(ctx context.Context) error {
			_, err := tokens.Token(ctx)
			return err
		}
	}
	return checks
}

// setupRouter configures routes and middleware
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(errors.RecoveryMiddleware(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders(a.Config.Logging.Development))
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}
	r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.setupAPIRoutes(r)
	a.setupSiteRoutes(r)

	a.Router = r
}

// setupAPIRoutes configures /api
func (a *Application) setupAPIRoutes(r chi.Router) {
	exportHandler := handlers.NewExportHandler(a.Services.Export, a.Config.Export.MaxBodyBytes, a.Logger, a.ErrorHandler)
	bitlyHandler := handlers.NewBitlyHandler(a.Services.Bitly, a.Services.Renderer, a.Logger, a.ErrorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// The url-shortener page may be served from another origin.
		r.With(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: []string{"*"},
			Logger:         a.Logger,
		})).HandleFunc("/bitly-auth", bitlyHandler.Exchange)

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		r.With(customMiddleware.ContentTypeValidator("application/json")).
			Post("/export", exportHandler.ExportReport)

		metadataHandler := handlers.NewMetadataHandler(a.Services.Metadata, a.Logger, a.ErrorHandler)
		r.Mount("/metadata", metadataHandler.Routes())
		r.Get("/cubes", metadataHandler.Cubes)

		tokenHandler := handlers.NewTokenHandler(a.Services.Tokens, a.Logger, a.ErrorHandler)
		r.Get("/access-token", tokenHandler.AccessToken)
	})

	r.Get("/explorer/csvhandler.csv", exportHandler.QueryExplorerDownload)
	r.Get("/bitly-auth", bitlyHandler.Callback)
}

// setupSiteRoutes mounts the page handler at the site root.
func (a *Application) setupSiteRoutes(r chi.Router) {
	pageHandler := handlers.NewPageHandler(a.Services.Renderer, a.Logger, a.ErrorHandler).
		WithData("dimensions-metrics-explorer", "groups", a.columnGroups)
	r.Mount("/", pageHandler.Routes())
}

func (a *Application) columnGroups(ctx context.Context) (map[string]interface{}, error) {
	groups, err := a.Services.Metadata.GroupedColumns(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"groups": groups}, nil
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	config := customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			"X-Request-ID",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}

	a.Logger.Info("CORS configured", slog.Any("allowed_origins", config.AllowedOrigins))
	return config
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("build_time", contracts.BuildTime),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go a.Services.Metadata.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Services.Metadata.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck logs missing optional configuration.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.Services.Health.ReadinessCheck(ctx)
	if status.Status != services.StatusReady {
		return fmt.Errorf("readiness: %s", status.Status)
	}

	if !a.Config.Bitly.Enabled() {
		a.Logger.InfoContext(ctx, "bit.ly not configured; url shortener is disabled")
	}
	if a.Config.Google.CubesURL == "" {
		a.Logger.InfoContext(ctx, "Cubes URL not configured; /api/cubes is disabled")
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
