package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pixelcoders/roadmap-progress/config"
	"github.com/pixelcoders/roadmap-progress/internal/application/command"
	"github.com/pixelcoders/roadmap-progress/internal/application/eventhandler"
	"github.com/pixelcoders/roadmap-progress/internal/application/query"
	"github.com/pixelcoders/roadmap-progress/internal/application/saga"
	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/catalog"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/idgen"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/messaging"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/memory"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/postgres"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/redis"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/pixelcoders/roadmap-progress/internal/interface/http"
	"github.com/pixelcoders/roadmap-progress/internal/interface/http/handlers"
	"github.com/pixelcoders/roadmap-progress/pkg/circuitbreaker"
	"github.com/pixelcoders/roadmap-progress/pkg/timeutil"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

// eventBus is satisfied by both the in-memory and the Redis bus.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

func runServe(ctx context.Context, cfg *config.Config) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupSlog(cfg)
	appLog := newAppLogger(cfg)
	log.Info("starting roadmap progress service",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"store", cfg.Database.Driver,
		"timezone", cfg.Engine.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. CATALOG
	// ─────────────────────────────────────────────────────────────────────────
	cat, err := loadCatalog(ctx, cfg.Engine.CatalogPath, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PROGRESS STORE
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing progress store...")
		_ = st.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS CACHE AND EVENT BUS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache  *redis.Cache
		viewCache   query.ProgressViewCache
		invalidator command.CacheInvalidator
		bus         eventBus
	)

	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	if cfg.Redis.Enabled() {
		redisCfg := redis.DefaultConfig(cfg.Redis.URL)
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(ctx, redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()

			breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			})
			progressCache := redis.NewProgressCache(redisCache, breaker, cfg.Redis.CacheTTL, appLog)
			viewCache = progressCache
			invalidator = progressCache

			bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
				Transport:      redisCache,
				ChannelFor:     func(t shared.EventType) string { return redis.PubSubChannel(string(t)) },
				LocalBusConfig: busConfig,
				Logger:         log,
			})
			if err != nil {
				return fmt.Errorf("failed to create event bus: %w", err)
			}
			log.Info("Redis connection established")
		}
	}
	if bus == nil {
		bus = messaging.NewInMemoryEventBus(busConfig)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	activity := eventhandler.NewActivityLogger(log)
	if err := activity.Register(bus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	registry := gamification.MustDefaultRegistry()
	ids := idgen.UUID{}
	clock := timeutil.SystemClock{}

	flow := saga.NewAchievementFlow(cat, gamification.NewEvaluator(registry), ids, cfg.Engine.Location)
	completeNode := command.NewCompleteNodeHandler(command.CompleteNodeDeps{
		Catalog:   cat,
		Store:     st,
		Flow:      flow,
		IDs:       ids,
		Clock:     clock,
		Publisher: bus,
		Cache:     invalidator,
		Flags:     cfg.Features,
		Logger:    appLog,
	}, command.CompleteNodeHandlerConfig{
		NodeXPReward:      cfg.Engine.NodeXPReward,
		Location:          cfg.Engine.Location,
		MaxAttempts:       cfg.Engine.ConflictMaxAttempts,
		InvalidateTimeout: cfg.Redis.WriteTimeout,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("store", handlers.NewPingCheck(st))
	if redisCache != nil {
		health.AddOptionalCheck("cache", handlers.NewPingCheck(redisCache))
	}

	serverConfig := httpserver.DefaultConfig()
	serverConfig.Addr = cfg.HTTP.Addr()
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.RateLimitRPS = cfg.HTTP.RateLimitRPS
	serverConfig.RateLimitBurst = cfg.HTTP.RateLimitBurst
	serverConfig.APIKeyHash = cfg.Auth.APIKeyHash
	serverConfig.Version = cfg.App.Version

	server := httpserver.NewServer(serverConfig, httpserver.Dependencies{
		CompleteNode:  completeNode,
		Progress:      query.NewGetProgressHandler(cat, st, viewCache, cfg.Features),
		Achievements:  query.NewAchievementsHandler(registry, st),
		Roadmaps:      query.NewRoadmapsHandler(cat),
		GameState:     query.NewGetGameStateHandler(st, clock),
		HealthChecker: health,
		Logger:        appLog,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("roadmap progress service is running",
		"addr", serverConfig.Addr,
		"api_key_required", cfg.Auth.Enabled(),
		"cache", redisCache != nil,
	)

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown completed successfully", "events", activity.Counts())
	return nil
}

// loadCatalog loads the roadmap catalog and logs what it holds.
func loadCatalog(ctx context.Context, path string, log *slog.Logger) (*roadmap.StaticCatalog, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	roadmaps, err := cat.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog roadmaps: %w", err)
	}
	ids := make([]string, 0, len(roadmaps))
	for _, g := range roadmaps {
		ids = append(ids, g.ID)
	}
	log.Info("catalog loaded", "roadmaps", ids, "path", path)
	return cat, nil
}

// openStore opens the configured progress store. The postgres schema is
// brought up to date before serving.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		conn, err := connectPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", "applied", applied)
		return postgres.NewStore(conn), nil

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info("sqlite store opened", "path", cfg.Database.SQLitePath)
		return st, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, progress is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Database.Driver)
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig(cfg.Database.URL)
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}
