package di

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/wire"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lmittmann/tint"
	goredis "github.com/redis/go-redis/v9"

	"github.com/notehub/gatekeeper/internal/config"
	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/federation"
	"github.com/notehub/gatekeeper/internal/grpcserver"
	"github.com/notehub/gatekeeper/internal/handler"
	"github.com/notehub/gatekeeper/internal/middleware"
	"github.com/notehub/gatekeeper/internal/notification"
	"github.com/notehub/gatekeeper/internal/password"
	"github.com/notehub/gatekeeper/internal/policy"
	"github.com/notehub/gatekeeper/internal/ratelimit"
	"github.com/notehub/gatekeeper/internal/repository"
	"github.com/notehub/gatekeeper/internal/repository/memory"
	"github.com/notehub/gatekeeper/internal/repository/redisstore"
	"github.com/notehub/gatekeeper/internal/server"
	"github.com/notehub/gatekeeper/internal/service"
	"github.com/notehub/gatekeeper/internal/token"
)

var ConfigSet = wire.NewSet(
	ProvideConfig,
)

var LoggerSet = wire.NewSet(
	ProvideLogger,
)

var DatabaseSet = wire.NewSet(
	ProvideDatabase,
	ProvideRedisClient,
)

var RepositorySet = wire.NewSet(
	repository.NewPostgresUserRepository,
	wire.Bind(new(domain.UserRepository), new(*repository.PostgresUserRepository)),
	ProvideSessionRepository,
)

var TokenSet = wire.NewSet(
	ProvideSigner,
	ProvideEngine,
	ProvideSweeper,
)

var FederationSet = wire.NewSet(
	ProvideGoogleProvider,
	ProvideGitHubProvider,
	federation.NewBinder,
)

var ServiceSet = wire.NewSet(
	ProvideHasher,
	ProvideNotifier,
	ProvideAuthService,
	ProvideUserService,
)

var HandlerSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideAuthHandler,
	handler.NewUserHandler,
	handler.NewSwaggerHandler,
)

var ServerSet = wire.NewSet(
	policy.Default,
	ProvideRateLimiter,
	ProvideAuthMiddleware,
	ProvideServerConfig,
	server.New,
	grpcserver.NewServer,
)

var AppSet = wire.NewSet(
	ConfigSet,
	LoggerSet,
	DatabaseSet,
	RepositorySet,
	TokenSet,
	FederationSet,
	ServiceSet,
	HandlerSet,
	ServerSet,
	wire.Struct(new(Application), "*"),
)

const Version = "0.1.0"

func ProvideConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ProvideHealthHandler() *handler.HealthHandler {
	return handler.NewHealthHandler(Version)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var logLevel slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		}))
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	h := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(h)
}

func ProvideDatabase(cfg *config.Config) (*sql.DB, func(), error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup, nil
}

// ProvideRedisClient connects only when sessions live in Redis; otherwise it
// returns a nil client.
func ProvideRedisClient(cfg *config.Config) (goredis.UniversalClient, func(), error) {
	if cfg.Token.SessionStore != config.SessionStoreRedis {
		return nil, func() {}, nil
	}

	opts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	cleanup := func() {
		client.Close()
	}

	return client, cleanup, nil
}

func ProvideSessionRepository(cfg *config.Config, db *sql.DB, rdb goredis.UniversalClient, logger *slog.Logger) domain.SessionRepository {
	switch cfg.Token.SessionStore {
	case config.SessionStoreRedis:
		return redisstore.NewSessionRepository(rdb)
	case config.SessionStoreMemory:
		logger.Warn("sessions are kept in memory and will not survive a restart")
		return memory.NewSessionRepository()
	default:
		return repository.NewPostgresSessionRepository(db)
	}
}

func ProvideSigner(cfg *config.Config) (*token.Signer, error) {
	return token.NewSigner(cfg.Token.Secret, cfg.Token.AccessTTL)
}

func ProvideEngine(cfg *config.Config, sessions domain.SessionRepository, signer *token.Signer, logger *slog.Logger) *token.Engine {
	return token.NewEngine(token.EngineConfig{
		Sessions:   sessions,
		Signer:     signer,
		RefreshTTL: cfg.Token.RefreshTTL,
		Logger:     logger,
	})
}

func ProvideSweeper(cfg *config.Config, engine *token.Engine, logger *slog.Logger) *token.Sweeper {
	return token.NewSweeper(engine, cfg.Token.SweepInterval, logger)
}

func ProvideGoogleProvider(cfg *config.Config, logger *slog.Logger) *federation.GoogleProvider {
	return federation.NewGoogleProvider(federation.GoogleConfig{
		Timeout: cfg.OAuth.Timeout,
		Logger:  logger,
	})
}

// ProvideGitHubProvider returns nil when no OAuth app is configured.
func ProvideGitHubProvider(cfg *config.Config, logger *slog.Logger) *federation.GitHubProvider {
	if cfg.OAuth.GitHubClientID == "" || cfg.OAuth.GitHubClientSecret == "" {
		logger.Warn("GitHub login disabled: GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set")
		return nil
	}
	return federation.NewGitHubProvider(federation.GitHubConfig{
		ClientID:     cfg.OAuth.GitHubClientID,
		ClientSecret: cfg.OAuth.GitHubClientSecret,
		Timeout:      cfg.OAuth.Timeout,
		Logger:       logger,
	})
}

func ProvideHasher() *password.Hasher {
	return password.NewHasher(password.DefaultCost)
}

func ProvideNotifier(cfg *config.Config, logger *slog.Logger) notification.Notifier {
	if cfg.Notify.WebhookURL != "" {
		return notification.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}
	return notification.NewLogNotifier(logger)
}

func ProvideAuthService(
	users domain.UserRepository,
	engine *token.Engine,
	google *federation.GoogleProvider,
	github *federation.GitHubProvider,
	binder *federation.Binder,
	hasher *password.Hasher,
	notifier notification.Notifier,
	logger *slog.Logger,
) *service.AuthService {
	providers := []federation.Provider{google}
	if github != nil {
		providers = append(providers, github)
	}
	return service.NewAuthService(service.AuthServiceConfig{
		Users:     users,
		Engine:    engine,
		Providers: providers,
		Binder:    binder,
		Hasher:    hasher,
		Notifier:  notifier,
		Logger:    logger,
	})
}

func ProvideUserService(
	users domain.UserRepository,
	signer *token.Signer,
	hasher *password.Hasher,
	notifier notification.Notifier,
	logger *slog.Logger,
) *service.UserService {
	return service.NewUserService(service.UserServiceConfig{
		Users:    users,
		Signer:   signer,
		Hasher:   hasher,
		Notifier: notifier,
		Logger:   logger,
	})
}

func ProvideAuthHandler(cfg *config.Config, auth *service.AuthService, github *federation.GitHubProvider, logger *slog.Logger) *handler.AuthHandler {
	hc := handler.AuthHandlerConfig{
		Auth:         auth,
		Logger:       logger,
		SecureCookie: !cfg.IsDevelopment(),
	}
	if github != nil {
		hc.GitHub = github
	}
	return handler.NewAuthHandler(hc)
}

func ProvideRateLimiter(cfg *config.Config, logger *slog.Logger) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		PenaltyThreshold:  cfg.RateLimit.PenaltyThreshold,
		PenaltyDuration:   cfg.RateLimit.PenaltyDuration,
		MaxEntries:        cfg.RateLimit.MaxEntries,
		IdleWindow:        cfg.RateLimit.IdleWindow,
	}, logger)
}

func ProvideAuthMiddleware(p *policy.Policy, signer *token.Signer, users domain.UserRepository, logger *slog.Logger) *middleware.AuthMiddleware {
	return middleware.NewAuthMiddleware(middleware.AuthMiddlewareConfig{
		Policy:    p,
		Validator: signer,
		UserRepo:  users,
		Logger:    logger,
	})
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		CorsOrigins:    cfg.Server.CorsOrigins,
		BypassPrefixes: cfg.RateLimit.BypassPrefixes,
		AuthRateMax:    cfg.RateLimit.AuthMax,
	}
}

type Application struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *sql.DB
	Engine         *token.Engine
	Sweeper        *token.Sweeper
	Server         *server.Server
	GRPCServer     *grpcserver.Server
	HealthHandler  *handler.HealthHandler
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	SwaggerHandler *handler.SwaggerHandler
}

// RegisterRoutes mounts every handler on the HTTP server.
func (a *Application) RegisterRoutes() {
	app := a.Server.App()

	a.HealthHandler.Register(app)
	a.SwaggerHandler.Register(app)

	v1 := app.Group(handler.APIPrefix)
	a.AuthHandler.Register(v1, a.Server.AuthRateLimiter())
	a.UserHandler.Register(v1)
}
