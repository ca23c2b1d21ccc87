// Package main is the entrypoint for the userd API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/userd/userd/internal/cache"
	"github.com/userd/userd/internal/config"
	"github.com/userd/userd/internal/events"
	"github.com/userd/userd/internal/handler"
	"github.com/userd/userd/internal/metrics"
	"github.com/userd/userd/internal/middleware"
	"github.com/userd/userd/internal/model"
	"github.com/userd/userd/internal/repository"
	"github.com/userd/userd/internal/repository/memory"
	"github.com/userd/userd/internal/repository/postgres"
	"github.com/userd/userd/internal/repository/sqlite"
	"github.com/userd/userd/internal/server"
	"github.com/userd/userd/internal/service"
)

// fixtureUser is stored at startup when SEED_FIXTURES is set.
var fixtureUser = model.CreateUserRequest{Name: "John Doe", Email: "john@example.com"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	backend, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store := repository.NewHandle(backend)
	recorder := metrics.NewInMemory()

	checks := []handler.Check{{Name: "storage", Checker: store}}
	svcOpts := []service.UserServiceOption{service.WithMetrics(recorder)}

	var (
		redisCache *cache.Cache
		publisher  *events.Publisher
	)
	if cfg.RedisEnabled() {
		redisCache, err = cache.New(ctx, cfg.RedisURL, cfg.UserCacheTTL)
		if err != nil {
			_ = store.Release()
			logger.Error("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return fmt.Errorf("connect redis: %s", sanitizeError(err, cfg.RedisURL))
		}
		logger.Info("connected to Redis", "user_cache_ttl", cfg.UserCacheTTL)

		publisher = events.NewPublisher(redisCache.Client(), logger, recorder)
		checks = append(checks, handler.Check{Name: "redis", Checker: redisCache})
		svcOpts = append(svcOpts, service.WithCache(redisCache), service.WithEvents(publisher))
	} else {
		checks = append(checks, handler.Check{Name: "redis"})
	}

	// The service holds its own reference; the backend closes after both are released.
	svcStore := store.Clone()
	userService := service.NewUserService(svcStore, logger, svcOpts...)

	r := setupRouter(routes{
		root:    handler.New(),
		health:  handler.NewHealthHandler(checks...).WithLogger(logger),
		metrics: handler.NewMetricsHandler(recorder),
		users:   handler.NewUserHandler(userService, logger),
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Hooks run in reverse: events drain, then Redis closes, then storage.
	srv.OnShutdown("storage", func(ctx context.Context) error {
		return errors.Join(svcStore.Release(), store.Release())
	})
	if redisCache != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return redisCache.Close()
		})
		srv.OnShutdown("events", publisher.Drain)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage_backend", cfg.StorageBackend,
	)

	return srv.Run(ctx)
}

// openStorage connects the configured backend and seeds fixtures if asked.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.UserRepository, error) {
	var backend repository.UserRepository

	switch cfg.StorageBackend {
	case config.BackendMemory:
		var opts []memory.Option
		if cfg.SeedFixtures {
			opts = append(opts, memory.WithSeed(fixtureUser))
		}
		logger.Info("using in-memory storage", "seeded", cfg.SeedFixtures)
		return memory.New(opts...), nil

	case config.BackendPostgres:
		repo, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, fmt.Errorf("connect postgres: %s", sanitizeError(err, cfg.DatabaseURL))
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("ensure schema: %s", sanitizeError(err, cfg.DatabaseURL))
		}
		logger.Info("connected to database", "database_url", redactURL(cfg.DatabaseURL))
		backend = repo

	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("opened sqlite database", "path", cfg.SQLitePath)
		backend = store

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if cfg.SeedFixtures {
		if err := seedIfEmpty(ctx, backend, logger); err != nil {
			if c, ok := backend.(interface{ Close() error }); ok {
				_ = c.Close()
			}
			return nil, err
		}
	}
	return backend, nil
}

// seedIfEmpty stores the fixture user into an empty persistent backend.
func seedIfEmpty(ctx context.Context, repo repository.UserRepository, logger *slog.Logger) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("seed fixtures: %w", err)
	}
	if len(users) > 0 {
		logger.Info("skipping fixtures, storage not empty", "users", len(users))
		return nil
	}
	user, err := repo.CreateUser(ctx, fixtureUser)
	if err != nil {
		return fmt.Errorf("seed fixtures: %w", err)
	}
	logger.Info("seeded fixture user", "user_id", user.ID)
	return nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routes struct {
	root    *handler.Handler
	health  *handler.HealthHandler
	metrics *handler.MetricsHandler
	users   *handler.UserHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, "/healthz", "/readyz", "/metrics"))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.SecurityHeaders(cfg.IsDevelopment()))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/", h.root.Hello)
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.users.List)
		r.Post("/", h.users.Create)
		r.Get("/{id}", h.users.Get)
	})

	r.NotFound(h.root.NotFound)
	r.MethodNotAllowed(h.root.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}
	return parsed.String()
}

// sanitizeError replaces any secret URLs in err's message with their redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}
	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
