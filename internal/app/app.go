// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bissquit/escalation-garden/internal/config"
	"github.com/bissquit/escalation-garden/internal/escalation"
	escalationpostgres "github.com/bissquit/escalation-garden/internal/escalation/postgres"
	"github.com/bissquit/escalation-garden/internal/notify"
	"github.com/bissquit/escalation-garden/internal/notify/email"
	"github.com/bissquit/escalation-garden/internal/notify/slack"
	"github.com/bissquit/escalation-garden/internal/notify/webhook"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
	"github.com/bissquit/escalation-garden/internal/pkg/ctxlog"
	"github.com/bissquit/escalation-garden/internal/pkg/httputil"
	"github.com/bissquit/escalation-garden/internal/pkg/metrics"
	"github.com/bissquit/escalation-garden/internal/pkg/postgres"
	"github.com/bissquit/escalation-garden/internal/rules"
	rulespostgres "github.com/bissquit/escalation-garden/internal/rules/postgres"
	"github.com/bissquit/escalation-garden/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	engine        *escalation.Engine
	catalog       *rules.Catalog
	driver        *escalation.Driver
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())
	app.metricsCancel = metricsCancel

	if cfg.Database.URL != "" {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
		defer connectCancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			metricsCancel()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		app.db = db

		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			metricsCancel()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		go app.collectDBMetrics(metricsCtx)
	}

	router, err := app.setupRouter(context.Background())
	if err != nil {
		if app.db != nil {
			app.db.Close()
		}
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.Metrics.Enabled {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", promhttp.Handler())

		app.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsRouter,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}

	return app, nil
}

// Run starts the HTTP servers and the escalation tick driver.
func (a *App) Run() error {
	if a.driver != nil {
		a.driver.Start(context.Background())
	}

	if a.metricsServer != nil {
		go func() {
			a.logger.Info("starting metrics server", "addr", a.metricsServer.Addr)
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server error", "error", err)
			}
		}()
	}

	a.logger.Info("starting server", "addr", a.server.Addr)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop the tick driver first so no escalation advances race shutdown
	if a.driver != nil {
		a.driver.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	shutdown := func(name string, srv *http.Server) {
		defer wg.Done()
		if err := srv.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
			mu.Unlock()
		}
	}

	wg.Add(1)
	go shutdown("server", a.server)

	if a.metricsServer != nil {
		wg.Add(1)
		go shutdown("metrics server", a.metricsServer)
	}

	wg.Wait()

	if a.db != nil {
		a.db.Close()
	}

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Engine returns the escalation engine instance. Used in tests.
func (a *App) Engine() *escalation.Engine {
	return a.engine
}

// Catalog returns the rule catalog instance. Used in tests.
func (a *App) Catalog() *rules.Catalog {
	return a.catalog
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(a.config.Server.CORSOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	catalog, err := a.setupCatalog(ctx)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog

	dispatcher, err := a.setupDispatcher()
	if err != nil {
		return nil, err
	}

	collab := escalation.Collaborators{}
	channels := notify.CollaboratorChannels{
		Managers:   a.config.Notify.ManagersChannel,
		Executives: a.config.Notify.ExecutivesChannel,
		Oncall:     a.config.Notify.OncallChannel,
		Incidents:  a.config.Notify.IncidentsChannel,
	}
	if channels != (notify.CollaboratorChannels{}) {
		c := notify.NewCollaborators(dispatcher, channels)
		collab = escalation.Collaborators{
			Incidents:  c,
			Managers:   c,
			Executives: c,
			Oncall:     c,
		}
	}

	var history escalation.HistoryLog
	if a.db != nil {
		history = escalationpostgres.NewHistoryRepository(a.db)
	}

	engine := escalation.NewEngine(escalation.Config{
		Enabled:  a.config.Engine.Enabled,
		MaxLevel: a.config.Engine.MaxLevel,
	}, clock.System(), dispatcher, collab, history, catalog)
	a.engine = engine
	a.driver = escalation.NewDriver(engine, a.config.Engine.TickInterval)

	rulesHandler := rules.NewHandler(catalog)
	escalationHandler := escalation.NewHandler(engine, catalog)

	r.Route("/api/v1", func(r chi.Router) {
		rulesHandler.RegisterRoutes(r)
		escalationHandler.RegisterRoutes(r)
	})

	return r, nil
}

func (a *App) setupCatalog(ctx context.Context) (*rules.Catalog, error) {
	var store rules.Store
	if a.db != nil {
		store = rulespostgres.NewRepository(a.db)
	}

	catalog := rules.NewCatalog(clock.System(), store)

	if store != nil {
		if err := catalog.Load(ctx); err != nil {
			return nil, fmt.Errorf("load stored rules: %w", err)
		}
	}

	if a.config.Rules.LoadDefaults {
		if err := rules.LoadDefaults(ctx, catalog); err != nil {
			return nil, fmt.Errorf("load default rules: %w", err)
		}
	}

	if a.config.Rules.File != "" {
		if err := rules.NewFileSource(a.config.Rules.File).MergeInto(ctx, catalog); err != nil {
			return nil, fmt.Errorf("load rules file: %w", err)
		}
	}

	return catalog, nil
}

func (a *App) setupDispatcher() (*notify.Dispatcher, error) {
	var senders []notify.Sender

	if a.config.Notify.Email.Enabled {
		emailSender, err := email.NewSender(email.Config{
			Enabled:      true,
			SMTPHost:     a.config.Notify.Email.SMTPHost,
			SMTPPort:     a.config.Notify.Email.SMTPPort,
			SMTPUser:     a.config.Notify.Email.SMTPUser,
			SMTPPassword: a.config.Notify.Email.SMTPPassword,
			FromAddress:  a.config.Notify.Email.FromAddress,
			Recipients:   a.config.Notify.Email.Recipients,
		})
		if err != nil {
			return nil, fmt.Errorf("create email sender: %w", err)
		}
		senders = append(senders, emailSender)
	} else {
		slog.Warn("email sender is disabled: email channel actions will fail delivery")
	}

	if a.config.Notify.Slack.Enabled {
		slackSender, err := slack.NewSender(slack.Config{
			Enabled:    true,
			WebhookURL: a.config.Notify.Slack.WebhookURL,
			Timeout:    a.config.Notify.Slack.Timeout,
			RateLimit:  a.config.Notify.Slack.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create slack sender: %w", err)
		}
		senders = append(senders, slackSender)
	}

	for _, wh := range a.config.Notify.Webhooks {
		whSender, err := webhook.NewSender(webhook.Config{
			Channel:   wh.Channel,
			URL:       wh.URL,
			Headers:   wh.Headers,
			Timeout:   wh.Timeout,
			RateLimit: wh.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create webhook sender for %s: %w", wh.Channel, err)
		}
		senders = append(senders, whSender)
	}

	return notify.NewDispatcher(senders...), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		httputil.Text(w, http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
