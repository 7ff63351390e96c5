// Package control wires configuration into a running engine.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/config"
	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain/bitcoin"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain/cosmos"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain/evm"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain/solana"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain/sui"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain/tron"
	redisclient "github.com/gemwalletcom/gem-android-sub002/internal/infra/redis"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage/memory"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage/postgres"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/broadcast"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/feed"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/health"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/pipeline"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/preload"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/signing"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/tracker"
)

// App is the engine with all of its dependencies.
type App struct {
	cfg          *config.AppConfig
	registry     *chain.Registry
	clients      map[domain.Chain]*rpc.Client
	repo         storage.TransactionRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	publisher    *redisclient.Publisher
	changes      *feed.Feed
	tracker      *tracker.Tracker
	watcher      *tracker.Watcher
	engine       *pipeline.Engine
	healthMon    *health.Monitor
	healthServer *health.Server
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	log          *slog.Logger
}

// New creates the engine. Storage is Postgres when a database URL is
// configured and memory otherwise. Redis is optional.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	app := &App{
		cfg:      cfg,
		registry: chain.NewRegistry(),
		clients:  make(map[domain.Chain]*rpc.Client),
		log:      slog.Default(),
	}

	// 1. Storage
	repo, db, err := OpenStorage(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.repo, app.db = repo, db

	// 2. Chains
	timings := make(tracker.Timings, len(cfg.Chains))
	for _, chainCfg := range cfg.Chains {
		client, err := newClient(chainCfg)
		if err != nil {
			app.closeClients()
			return nil, err
		}
		adapter, err := newAdapter(chainCfg, client)
		if err != nil {
			app.closeClients()
			return nil, err
		}
		app.clients[chainCfg.ChainID] = client
		app.registry.Register(adapter)
		timings[chainCfg.ChainID] = tracker.Timing{
			BlockTime: chainCfg.BlockTime,
			Timeout:   chainCfg.TransactionTimeout,
		}
		app.log.Info("Chain registered", "chain", chainCfg.ChainID, "type", chainCfg.Type, "providers", len(chainCfg.Providers))
	}

	// 3. Redis lease and change publication
	opts := []tracker.Option{tracker.WithTimings(timings)}
	if cfg.Redis.URL != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			app.log.Warn("Failed to connect to Redis, running without lease", "error", err)
		} else {
			app.redisClient = redisClient
			leaser := redisclient.NewLeaser(redisClient, cfg.Redis.LeaseTTL)
			opts = append(opts, tracker.WithLease(leaser))
			app.publisher = redisclient.NewPublisher(redisClient, cfg.Redis.Channel)
			app.log.Info("Redis lease enabled", "owner", leaser.Owner())
		}
	}

	// 4. Lifecycle
	app.changes = feed.New(cfg.Tracker.ChangeBuffer)
	app.tracker = tracker.New(app.repo, app.registry, app.changes, opts...)
	app.watcher = tracker.NewWatcher(app.repo, app.tracker, cfg.Tracker.RescanInterval)
	app.engine = pipeline.New(pipeline.Deps{
		Preloader:      preload.NewCoordinator(app.registry),
		Signer:         signing.NewEngine(app.registry),
		Broadcaster:    broadcast.NewCoordinator(app.registry, broadcast.WithDelay(cfg.Tracker.BroadcastDelay)),
		Repo:           app.repo,
		Tracker:        app.tracker,
		Feed:           app.changes,
		MessageSigners: app.registry,
	})

	// 5. Health
	stats := make(map[domain.Chain]health.ProviderStats, len(app.clients))
	for c, client := range app.clients {
		stats[c] = client
	}
	app.healthMon = health.NewMonitor(stats, app.tracker, app.repo)
	app.healthServer = health.NewServer(app.healthMon, cfg.Server.Port)

	return app, nil
}

// OpenStorage returns the configured transaction store. db is nil for
// the memory store.
func OpenStorage(ctx context.Context, cfg postgres.Config) (storage.TransactionRepository, *postgres.DB, error) {
	if cfg.URL == "" {
		slog.Info("Using Memory storage")
		return memory.NewTxRepo(memory.NewMemoryStorage()), nil, nil
	}
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	slog.Info("Using PostgreSQL storage")
	return postgres.NewTxRepo(db), db, nil
}

func newClient(c config.ChainConfig) (*rpc.Client, error) {
	router := rpc.NewRouter()
	for _, p := range c.Providers {
		switch p.Type {
		case "grpc":
			grpcProvider, err := rpc.NewGRPCProvider(p.Name, p.URL)
			if err != nil {
				return nil, fmt.Errorf("chain %s: failed to create grpc provider %s: %w", c.ChainID, p.Name, err)
			}
			router.AddProvider(string(c.ChainID), grpcProvider)
		case "http":
			router.AddProvider(string(c.ChainID), rpc.NewHTTPProvider(p.Name, p.URL, p.Timeout))
		default:
			return nil, fmt.Errorf("chain %s: unknown provider type %q", c.ChainID, p.Type)
		}
	}
	return rpc.NewClient(string(c.ChainID), router).WithObserver(observeRPC), nil
}

func observeRPC(chainID, operation string, took time.Duration, err error) {
	metrics.RPCCallsTotal.WithLabelValues(chainID, operation).Inc()
	metrics.RPCLatency.WithLabelValues(chainID, operation).Observe(took.Seconds())
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(chainID, rpc.ErrorClass(err)).Inc()
	}
}

func newAdapter(c config.ChainConfig, client rpc.RPCClient) (chain.Adapter, error) {
	switch c.Type {
	case domain.ChainTypeEVM:
		return evm.NewAdapter(c.ChainID, client), nil
	case domain.ChainTypeCosmos:
		return cosmos.NewAdapter(c.ChainID, client, cosmos.Options{
			Denom:     c.Denom,
			GasPrice:  optionalInt(c.GasPrice),
			FlatFee:   optionalInt(c.FlatFee),
			Transport: cosmos.Transport(c.Transport),
		}), nil
	case domain.ChainTypeSolana:
		return solana.NewAdapter(c.ChainID, client), nil
	case domain.ChainTypeBitcoin:
		return bitcoin.NewAdapter(c.ChainID, client), nil
	case domain.ChainTypeSui:
		return sui.NewAdapter(c.ChainID, client), nil
	case domain.ChainTypeTron:
		return tron.NewAdapter(c.ChainID, client), nil
	}
	return nil, fmt.Errorf("chain %s: unsupported chain type %q", c.ChainID, c.Type)
}

func optionalInt(v int64) *big.Int {
	if v <= 0 {
		return nil
	}
	return big.NewInt(v)
}

// Engine returns the lifecycle facade.
func (a *App) Engine() *pipeline.Engine {
	return a.engine
}

// Changes returns the transaction change feed.
func (a *App) Changes() *feed.Feed {
	return a.changes
}

// Chains lists the registered chains.
func (a *App) Chains() []domain.Chain {
	return a.registry.Chains()
}

// Start runs the health server, the pending watcher and the Redis
// publisher in the background.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watcher.Run(ctx)
	}()

	if a.publisher != nil {
		sub := a.changes.Subscribe()
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.publisher.Run(ctx, sub)
		}()
	}

	a.log.Info("Engine started", "chains", len(a.clients), "port", a.cfg.Server.Port)
	return nil
}

// Stop shuts everything down. Pending rows stay in storage and are
// resumed on the next start.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	if err := a.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}

	a.wg.Wait()
	a.tracker.Stop()
	a.changes.Close()

	a.closeClients()
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db: %w", err))
		}
	}
	a.log.Info("Engine stopped")
	return errors.Join(errs...)
}

func (a *App) closeClients() {
	for c, client := range a.clients {
		if err := client.Close(); err != nil {
			a.log.Warn("Failed to close rpc client", "chain", c, "error", err)
		}
	}
}
