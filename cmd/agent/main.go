package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/api/client"
	httptransport "github.com/spec-kit/thelewala-agent/internal/api/http"
	"github.com/spec-kit/thelewala-agent/internal/api/http/handlers"
	"github.com/spec-kit/thelewala-agent/internal/auth"
	"github.com/spec-kit/thelewala-agent/internal/config"
	"github.com/spec-kit/thelewala-agent/internal/credstore"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/events"
	"github.com/spec-kit/thelewala-agent/internal/geocode"
	"github.com/spec-kit/thelewala-agent/internal/location"
	"github.com/spec-kit/thelewala-agent/internal/observability"
	"github.com/spec-kit/thelewala-agent/internal/persistence"
	"github.com/spec-kit/thelewala-agent/internal/proximity"
	"github.com/spec-kit/thelewala-agent/internal/realtime"
	"github.com/spec-kit/thelewala-agent/internal/repository"
	"github.com/spec-kit/thelewala-agent/internal/service"
	"github.com/spec-kit/thelewala-agent/internal/worker"
)

var errNoRole = errors.New("APP_ROLE not set and no role saved by a previous run")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	sqlite, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
	if err != nil {
		logger.Fatal("failed to open sqlite", zap.Error(err))
	}
	defer sqlite.Close()

	if err := persistence.RunSQLiteMigrations(ctx, sqlite.DB, logger); err != nil {
		logger.Fatal("failed to run sqlite migrations", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunPostgresMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run postgres migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store, keyring, err := credentialStore(cfg, sqlite, redis, logger)
	if err != nil {
		logger.Fatal("failed to build credential store", zap.Error(err))
	}

	role, err := resolveRole(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("no actor role", zap.Error(err))
	}
	logger = logger.With(zap.String("role", string(role)))

	api := client.New(cfg.API.BaseURL, cfg.API.RequestTimeout(), logger, metrics)
	dispatcher := events.NewInMemoryDispatcher(logger)

	notices := service.NewNotificationService(dispatcher, logger, cfg.Notify)
	noticesDone := worker.StartNotificationWorker(ctx, notices)

	sessions := service.NewSessionManager(ctx, role, service.SessionDependencies{
		Store:      store,
		API:        api,
		Tokens:     auth.NewTokenInspector(),
		Events:     dispatcher,
		Logger:     logger,
		DefaultTTL: cfg.Auth.DefaultTokenTTL(),
	})

	source := location.NewSource(positionProvider(cfg.Location), logger)
	fix := location.FixOptions{
		HighAccuracy: cfg.Location.HighAccuracy,
		Timeout:      time.Duration(cfg.Location.FixTimeoutSeconds) * time.Second,
		MaxCachedAge: time.Duration(cfg.Location.MaxCachedAgeSeconds) * time.Second,
	}
	watch := location.WatchOptions{
		HighAccuracy:   cfg.Location.HighAccuracy,
		DistanceFilter: cfg.Location.DistanceFilterMeters,
		Interval:       time.Duration(cfg.Location.WatchIntervalSeconds) * time.Second,
	}

	directory := proximity.NewDirectory(role, api, sessions.BearerToken, dispatcher, logger)
	channel := realtime.NewChannel(realtime.Options{
		URL:                  cfg.Socket.URL,
		Role:                 role,
		Tokens:               sessions.BearerToken,
		HandshakeTimeout:     time.Duration(cfg.Socket.HandshakeTimeoutSeconds) * time.Second,
		WriteTimeout:         time.Duration(cfg.Socket.WriteTimeoutSeconds) * time.Second,
		MaxReconnectAttempts: cfg.Socket.MaxReconnectAttempts,
		ReconnectInitial:     time.Duration(cfg.Socket.ReconnectInitialMillis) * time.Millisecond,
		ReconnectMax:         time.Duration(cfg.Socket.ReconnectMaxSeconds) * time.Second,
		Logger:               logger,
		Metrics:              metrics,
		Events:               dispatcher,
	})
	presence := service.NewPresenceService(role, channel, directory, source, service.PresenceOptions{Fix: fix, Watch: watch}, dispatcher, logger)
	sessions.OnSignOut(presence.Shutdown)

	profile := service.NewProfileService(role, api, sessions)

	routes := httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, string(role), sqlite, pg, redis),
		Session:           handlers.NewSessionHandler(sessions, profile),
		Notices:           handlers.NewNoticesHandler(notices, metrics),
		SessionMiddleware: auth.NewSessionMiddleware(sessions),
	}
	if keyring != nil {
		routes.Device = handlers.NewDeviceHandler(keyring)
	}

	if role == domain.RoleCustomer {
		ledger := service.NewSubscriptionService(role, ledgerRepository(cfg, sqlite, pg, logger), directory, logger)
		mapbox := geocode.NewMapbox(cfg.Geocode.BaseURL, cfg.Geocode.MapboxAccessToken, cfg.API.RequestTimeout(), logger, metrics)
		addresses := service.NewAddressService(role, api, mapbox, source, sessions, fix, logger)

		routes.Stream = handlers.NewStreamHandler(presence, ledger)
		routes.Subscriptions = handlers.NewSubscriptionsHandler(ledger)
		routes.Address = handlers.NewAddressHandler(addresses)
	} else {
		routes.Stream = handlers.NewStreamHandler(presence, nil)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.Bridge.RequestTimeout())
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("bridge listening", zap.String("addr", cfg.Bridge.Addr()))
		if err := app.Listen(cfg.Bridge.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = app.ShutdownWithContext(shutdownCtx)
	presence.Shutdown(shutdownCtx)
	if keyring != nil {
		keyring.Lock()
	}
	cancel()
	<-noticesDone
}

// credentialStore picks the backend and seals it when a passphrase is set.
// The keyring is nil for an unsealed store.
func credentialStore(cfg *config.Config, sqlite *persistence.SQLite, redis *persistence.Redis, logger *zap.Logger) (credstore.Store, *credstore.Keyring, error) {
	var store credstore.Store
	switch cfg.Store.CredentialBackend {
	case "redis":
		if redis.Client == nil {
			logger.Warn("redis credential store requested without REDIS_ADDR; using sqlite")
			store = credstore.NewSQLiteStore(sqlite.DB)
		} else {
			store = credstore.NewRedisStore(redis.Client, cfg.Redis.KeyPrefix)
		}
	case "memory":
		store = credstore.NewMemoryStore()
	default:
		store = credstore.NewSQLiteStore(sqlite.DB)
	}

	if cfg.Store.Passphrase == "" {
		return store, nil, nil
	}
	keyring, err := credstore.NewKeyring(cfg.Store.Passphrase, cfg.Store.Salt)
	if err != nil {
		return nil, nil, err
	}
	return credstore.NewSealedStore(store, keyring), keyring, nil
}

// resolveRole prefers APP_ROLE and persists it; otherwise the stored role
// from a previous run is used.
func resolveRole(ctx context.Context, cfg *config.Config, store credstore.Store, logger *zap.Logger) (domain.ActorRole, error) {
	if cfg.App.Role != "" {
		role, err := domain.ParseActorRole(cfg.App.Role)
		if err != nil {
			return "", err
		}
		if err := service.SaveActorRole(ctx, store, role); err != nil {
			logger.Warn("failed to persist actor role", zap.Error(err))
		}
		return role, nil
	}
	role, ok, err := service.LoadActorRole(ctx, store)
	if err != nil {
		logger.Warn("stored actor role unreadable", zap.Error(err))
	}
	if !ok {
		return "", errNoRole
	}
	return role, nil
}

func ledgerRepository(cfg *config.Config, sqlite *persistence.SQLite, pg *persistence.Postgres, logger *zap.Logger) repository.SubscriptionRepository {
	if cfg.Store.LedgerBackend == "postgres" {
		if pool := pg.PoolHandle(); pool != nil {
			return repository.NewPostgresSubscriptionRepository(pool)
		}
		logger.Warn("postgres ledger requested without POSTGRES_DSN; using sqlite")
	}
	return repository.NewSQLiteSubscriptionRepository(sqlite.DB)
}

// positionProvider returns the configured fixed position. Without one the
// agent has no positioning hardware and every fix is unavailable.
func positionProvider(cfg config.LocationConfig) location.Provider {
	if cfg.HasFixedPosition() {
		return location.StaticProvider{Point: domain.GeoPoint{Longitude: cfg.FixedLongitude, Latitude: cfg.FixedLatitude}}
	}
	return location.ProviderFunc(func(context.Context, bool) (domain.PositionSample, error) {
		return domain.PositionSample{}, location.ErrUnavailable
	})
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
