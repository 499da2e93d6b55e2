package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/config"
	"github.com/aretw0/promptloom/pkg/adapters/badger"
	"github.com/aretw0/promptloom/pkg/adapters/file"
	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/adapters/redis"
	"github.com/aretw0/promptloom/pkg/datasource"
	"github.com/aretw0/promptloom/pkg/observability"
	"github.com/aretw0/promptloom/pkg/persistence/middleware"
	"github.com/aretw0/promptloom/pkg/ports"
	"github.com/aretw0/promptloom/pkg/replay"
	"github.com/aretw0/promptloom/pkg/resolve"
	"github.com/aretw0/promptloom/pkg/session"
)

// App bundles the engine with the stores selected by the configuration.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Engine   *promptloom.Engine
	Projects ports.ProjectStore
	Datasets ports.DatasetStore
	Runs     ports.RunStore
	Sessions *session.Manager
	Replayer *replay.Replayer

	DataSources *datasource.Registry

	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	redis           *goredis.Client
	dataSourceStore ports.DataSourceStore
	closers         []func() error
}

// NewApp builds the stores, the session middleware chain, the resolvers and
// the engine from cfg. Callers must Close the App.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{Config: cfg, Logger: logger}
	sessionStore, err := app.openStores()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	mws, err := sessionMiddlewares(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	sessionStore = middleware.Chain(sessionStore, mws...)

	managerOpts := []session.Option{
		session.WithLogger(logger),
		session.WithMaxMessagesCap(cfg.MaxMessagesCap),
	}
	if cfg.Store == config.StoreRedis {
		client := app.redisClient()
		managerOpts = append(managerOpts, session.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix+"lock:")))
	}
	app.Sessions = session.NewManager(sessionStore, managerOpts...)

	if app.DataSources, err = app.openDataSources(); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Registry = prometheus.NewRegistry()
	app.Metrics = observability.NewMetrics(app.Registry)

	resolverOpts := append(resolve.Standard(app.Sessions, app.DataSources),
		resolve.WithLogger(logger),
		resolve.WithConcurrency(cfg.ReplayConcurrency),
		resolve.WithMaxMessagesCap(cfg.MaxMessagesCap),
		resolve.WithResolver("milvus", resolve.NotEnabled()),
		resolve.WithResolver("neo4j", resolve.NotEnabled()),
	)

	app.Engine = promptloom.New(
		promptloom.WithLogger(logger),
		promptloom.WithResolvers(resolve.NewRegistry(resolverOpts...)),
		promptloom.WithDefaultMaxMessages(cfg.MaxMessages),
		promptloom.WithMaxDiffCells(cfg.MaxDiffCells),
		promptloom.WithLifecycleHooks(observability.Combine(
			app.Metrics.Hooks(),
			observability.LogHooks(logger),
		)),
	)
	app.Replayer = replay.New(app.Engine, app.Runs,
		replay.WithLogger(logger),
		replay.WithConcurrency(cfg.ReplayConcurrency),
	)
	return app, nil
}

// openStores fills the project, dataset, run and data source stores and
// returns the raw session store. Redis and badger only hold runs (and
// sessions, for redis); everything else falls back to files under the data
// directory.
func (a *App) openStores() (ports.SessionStore, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.StoreMemory:
		a.Projects = memory.NewProjectStore()
		a.Datasets = memory.NewDatasetStore()
		a.Runs = memory.NewRunStore()
		a.dataSourceStore = memory.NewDataSourceStore()
		return memory.NewStore(), nil

	case config.StoreFile:
		fs := file.New(cfg.DataDir)
		a.Projects, a.Datasets, a.Runs = fs.Projects, fs.Datasets, fs.Runs
		a.dataSourceStore = fs.DataSources
		return fs.Sessions, nil

	case config.StoreRedis:
		fs := file.New(cfg.DataDir)
		a.Projects, a.Datasets = fs.Projects, fs.Datasets
		a.dataSourceStore = fs.DataSources

		client := a.redisClient()
		opts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.TTL)}
		a.Runs = redis.NewRunStore(client, opts...)
		return redis.NewSessionStore(client, opts...), nil

	case config.StoreBadger:
		fs := file.New(cfg.DataDir)
		a.Projects, a.Datasets = fs.Projects, fs.Datasets
		a.dataSourceStore = fs.DataSources

		runs, err := badger.Open(badger.Config{
			Path:   cfg.BadgerPath(),
			Logger: a.Logger.With("component", "badger"),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, runs.Close)
		a.Runs = runs
		return fs.Sessions, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// openDataSources builds the data source registry. URLs are sealed with the
// configured encryption key; without one, the memory store uses a throwaway
// key and the other stores generate and keep <data_dir>/.data_key.
func (a *App) openDataSources() (*datasource.Registry, error) {
	cfg := a.Config
	var encCfg middleware.EncryptionConfig
	switch {
	case cfg.EncryptionKey != "":
		active, fallback, err := cfg.Keys()
		if err != nil {
			return nil, err
		}
		encCfg = middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback}
	case cfg.Store == config.StoreMemory:
		encCfg.ActiveKey = datasource.RandomKey()
	default:
		dir := cfg.DataDir
		if dir == "" {
			dir = file.DefaultDataDir
		}
		key, err := datasource.LoadOrCreateKey(filepath.Join(dir, datasource.KeyFile))
		if err != nil {
			return nil, err
		}
		encCfg.ActiveKey = key
	}

	cipher, err := middleware.NewCipher(encCfg)
	if err != nil {
		return nil, fmt.Errorf("data source cipher: %w", err)
	}
	return datasource.NewRegistry(a.dataSourceStore, cipher,
		datasource.WithStatic(cfg.DataSources),
		datasource.WithLogger(a.Logger.With("component", "datasource")),
	), nil
}

// redisClient returns the App's shared redis client, creating it on first use.
func (a *App) redisClient() *goredis.Client {
	if a.redis != nil {
		return a.redis
	}
	a.redis = redis.NewClient(a.Config.Redis.Addr, a.Config.Redis.Password, a.Config.Redis.DB)
	a.closers = append(a.closers, a.redis.Close)
	return a.redis
}

// sessionMiddlewares builds the PII and encryption layers configured in cfg.
// Masking runs before encryption so the envelope never holds raw matches.
func sessionMiddlewares(cfg *config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIPatterns)
		if err != nil {
			return nil, fmt.Errorf("pii middleware: %w", err)
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		active, fallback, err := cfg.Keys()
		if err != nil {
			return nil, err
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, fmt.Errorf("encryption middleware: %w", err)
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// Ping checks that the configured backends are reachable.
func (a *App) Ping(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s unreachable: %w", a.Config.Redis.Addr, err)
		}
	}
	return nil
}

// Close releases the backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
