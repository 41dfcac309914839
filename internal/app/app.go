// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/coursehub/internal/catalog"
	catalogjsonfile "github.com/bissquit/coursehub/internal/catalog/jsonfile"
	"github.com/bissquit/coursehub/internal/config"
	"github.com/bissquit/coursehub/internal/enrollment"
	"github.com/bissquit/coursehub/internal/identity"
	identityjsonfile "github.com/bissquit/coursehub/internal/identity/jsonfile"
	"github.com/bissquit/coursehub/internal/identity/jwt"
	"github.com/bissquit/coursehub/internal/identity/password"
	identitypostgres "github.com/bissquit/coursehub/internal/identity/postgres"
	"github.com/bissquit/coursehub/internal/pkg/ctxlog"
	"github.com/bissquit/coursehub/internal/pkg/httputil"
	"github.com/bissquit/coursehub/internal/pkg/metrics"
	"github.com/bissquit/coursehub/internal/pkg/postgres"
	"github.com/bissquit/coursehub/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// rateLimitIdleTTL is how long an idle client's limiter is kept.
const rateLimitIdleTTL = 10 * time.Minute

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	users         identity.Repository
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		metricsCancel: metricsCancel,
	}

	if err := app.setupStorage(); err != nil {
		metricsCancel()
		return nil, err
	}

	if app.db != nil {
		go app.collectDBMetrics(metricsCtx)
	}

	router, err := app.setupRouter()
	if err != nil {
		app.closeStorage()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func (a *App) setupStorage() error {
	switch a.config.Storage.Driver {
	case config.DriverPostgres:
		dbCfg := a.config.Database

		connectCtx, connectCancel := context.WithTimeout(context.Background(), dbCfg.ConnectTimeout)
		defer connectCancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             dbCfg.URL,
			MaxOpenConns:    dbCfg.MaxOpenConns,
			MaxIdleConns:    dbCfg.MaxIdleConns,
			ConnMaxLifetime: dbCfg.ConnMaxLifetime,
			ConnectAttempts: dbCfg.ConnectAttempts,
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if dbCfg.MigrationsPath != "" {
			if err := postgres.Migrate(dbCfg.URL, dbCfg.MigrationsPath); err != nil {
				db.Close()
				return fmt.Errorf("migrate database: %w", err)
			}
		}

		a.db = db
		a.users = identitypostgres.NewRepository(db)
	default:
		a.users = identityjsonfile.NewRepository(a.config.Storage.UsersFile)
	}

	a.logger.Info("storage configured", "driver", a.config.Storage.Driver)
	return nil
}

func (a *App) closeStorage() {
	if a.db != nil {
		a.db.Close()
	}
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.closeStorage()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db.Stat())

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db.Stat())
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)
	if timeout := a.config.Server.RequestTimeout; timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	// Wrong methods on known paths are treated as unmatched too.
	r.NotFound(httputil.NotFound)
	r.MethodNotAllowed(httputil.NotFound)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	openAPIPath := a.config.Server.OpenAPIPath
	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, openAPIPath)
	})

	if dir := a.config.Server.ImagesDir; dir != "" {
		r.Handle("/images/*", http.StripPrefix("/images/", staticFiles(dir)))
	}

	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:     a.config.JWT.SecretKey,
		TokenDuration: a.config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}

	identityService := identity.NewService(a.users, password.NewHasher(a.config.Password.BcryptCost), jwtAuth)
	identityHandler := identity.NewHandler(identityService)

	catalogService := catalog.NewService(catalogjsonfile.NewRepository(a.config.Storage.CoursesFile))
	catalogHandler := catalog.NewHandler(catalogService, a.config.Server.PublicBaseURL)

	enrollmentService := enrollment.NewService(a.users, catalogService)
	enrollmentHandler := enrollment.NewHandler(enrollmentService, a.config.Server.PublicBaseURL)

	r.Group(func(r chi.Router) {
		if rl := a.config.RateLimit; rl.RPS > 0 {
			r.Use(httputil.NewRateLimiter(rl.RPS, rl.Burst, rateLimitIdleTTL).Middleware)
		}
		identityHandler.RegisterRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(identityService))

		identityHandler.RegisterProtectedRoutes(r)
		catalogHandler.RegisterRoutes(r)
		enrollmentHandler.RegisterRoutes(r)
	})

	return r, nil
}

// staticFiles serves files from dir without directory listings.
func staticFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			httputil.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.users.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
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
