package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/reviewkit/pkg/audit"
	"github.com/dmitrymomot/reviewkit/pkg/config"
	"github.com/dmitrymomot/reviewkit/pkg/logger"
	"github.com/dmitrymomot/reviewkit/pkg/moderation"
	"github.com/dmitrymomot/reviewkit/pkg/moderation/pgstore"
	"github.com/dmitrymomot/reviewkit/pkg/moderation/sqlitestore"
	"github.com/dmitrymomot/reviewkit/pkg/opensearch"
	"github.com/dmitrymomot/reviewkit/pkg/pg"
	"github.com/dmitrymomot/reviewkit/pkg/queue"
	"github.com/dmitrymomot/reviewkit/pkg/redis"
	"github.com/dmitrymomot/reviewkit/pkg/webhook"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Name        string `env:"APP_NAME" envDefault:"reviewkit"`
	SQLitePath  string `env:"SQLITE_PATH"`
	Locker      string `env:"MODERATION_LOCKER" envDefault:"local"` // local | redis
	Search      string `env:"MODERATION_SEARCH" envDefault:"none"`  // none | opensearch
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// backend is what both stores provide.
type backend interface {
	moderation.Store
	moderation.ProviderSource
	audit.Storage
	audit.BatchWriter
	audit.Lister
	PutContainer(ctx context.Context, c moderation.Container) error
	SyncProviders(ctx context.Context, providers []moderation.Provider) error
}

// taskRepository is what both task stores provide.
type taskRepository interface {
	queue.EnqueuerRepository
	queue.WorkerRepository
	Purge(ctx context.Context, before time.Time) (int64, error)
	Waiting(ctx context.Context) (int, error)
}

// app is the wired process. close releases everything in reverse order.
type app struct {
	cfg      appConfig
	modCfg   moderation.Config
	queueCfg queue.Config
	log      *slog.Logger
	registry *prometheus.Registry

	store   backend
	tasks   taskRepository
	engine  *moderation.Engine
	events  *audit.AsyncWriter
	inline  bool // no worker process: commands drain due tasks themselves
	strict  bool // the providers file was named on the command line
	search  moderation.SearchIndexer
	ids     moderation.IdentifierRequester
	checks  map[string]func(context.Context) error
	closers []func()
}

func loadConfig(opts *rootOptions) (appConfig, moderation.Config, queue.Config, logger.Config, error) {
	var (
		cfg    appConfig
		modCfg moderation.Config
		qCfg   queue.Config
		logCfg logger.Config
	)
	err := errors.Join(
		config.Load(&cfg),
		config.Load(&modCfg),
		config.Load(&qCfg),
		config.Load(&logCfg),
	)
	if opts.SQLite != "" {
		cfg.SQLitePath = opts.SQLite
	}
	if opts.ProvidersFile != "" {
		modCfg.ProvidersFile = opts.ProvidersFile
	}
	if opts.IdentifierURL != "" {
		modCfg.IdentifierURL = opts.IdentifierURL
	}
	return cfg, modCfg, qCfg, logCfg, err
}

// openApp connects the configured backend and builds the engine. In SQLite
// mode it then runs any deferred tasks that came due since the last command.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, modCfg, qCfg, logCfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		modCfg:   modCfg,
		queueCfg: qCfg,
		log: logger.New(
			logger.WithEnvironment(cfg.Env, cfg.Name),
			logger.WithConfig(logCfg),
			logger.WithOutput(os.Stderr),
		),
		registry: prometheus.NewRegistry(),
		strict:   opts.ProvidersFile != "",
		checks:   make(map[string]func(context.Context) error),
	}
	if err := a.open(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.drain(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context) error {
	if err := a.openStore(ctx); err != nil {
		return err
	}
	if err := a.syncProviders(ctx); err != nil {
		return err
	}

	enqueuer, err := queue.NewEnqueuer(a.tasks, queue.WithDefaultQueue(a.modCfg.Queue))
	if err != nil {
		return err
	}

	a.events, err = audit.NewAsyncWriter(a.store, audit.AsyncOptions{})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.queueCfg.ShutdownTimeout)
		defer cancel()
		if err := a.events.Close(closeCtx); err != nil {
			a.log.Error("failed to flush container events", logger.Error(err))
		}
	})
	recorder, err := audit.NewRecorder(a.events)
	if err != nil {
		return err
	}

	metrics := moderation.NewMetrics(a.registry)
	modOpts := []moderation.Option{
		moderation.WithLogger(a.log),
		moderation.WithMetrics(metrics),
		moderation.WithEventRecorder(recorder),
		moderation.WithNotifier(moderation.NewNotifier(enqueuer,
			moderation.WithNotifierQueue(a.modCfg.Queue),
			moderation.WithNotifierLogger(a.log),
			moderation.WithNotifierMetrics(metrics),
		)),
	}
	if a.cfg.Locker == "redis" {
		locker, err := a.openRedisLocker(ctx)
		if err != nil {
			return err
		}
		modOpts = append(modOpts, moderation.WithLocker(locker))
	}

	a.engine, err = moderation.NewEngine(a.store, a.store, modOpts...)
	if err != nil {
		return err
	}
	return a.openCollaborators(ctx)
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.SQLitePath != "" {
		store, err := sqlitestore.Open(a.cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })

		a.store, a.tasks, a.inline = store, sqlitestore.NewTaskStore(store, a.queueCfg.RetryBackoff), true
		return nil
	}

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return err
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)
	a.checks["postgres"] = pg.Healthcheck(pool)
	if err := pgstore.Migrate(ctx, pool, pgCfg, a.log); err != nil {
		return err
	}
	a.store, a.tasks = pgstore.New(pool), pgstore.NewTaskStore(pool, a.queueCfg.RetryBackoff)
	return nil
}

// syncProviders upserts the registry file when it exists. A file named
// explicitly on the command line must exist.
func (a *app) syncProviders(ctx context.Context) error {
	path := a.modCfg.ProvidersFile
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if !a.strict {
			return nil
		}
		return fmt.Errorf("providers file %q: %w", path, err)
	}

	providers, err := moderation.LoadProvidersFile(path)
	if err != nil {
		return err
	}
	all := providers.All()
	if err := a.store.SyncProviders(ctx, all); err != nil {
		return fmt.Errorf("sync providers: %w", err)
	}
	a.log.DebugContext(ctx, "providers synced", slog.Int("count", len(all)), slog.String("path", path))
	return nil
}

func (a *app) openRedisLocker(ctx context.Context) (*redis.Locker, error) {
	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = a.modCfg.LockTTL
	}
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.checks["redis"] = redis.Healthcheck(client)
	return redis.NewLocker(client, cfg), nil
}

// openCollaborators builds the identifier registry client and search indexer
// the task handlers call. Both are optional. The identifier client makes one
// attempt per task run; the queue owns retries so a failed request survives
// the process.
func (a *app) openCollaborators(ctx context.Context) error {
	if a.modCfg.IdentifierURL != "" {
		a.ids = webhook.NewIdentifierClient(webhook.NewSender(), a.modCfg.IdentifierURL, a.modCfg.IdentifierSecret,
			webhook.WithNoRetry(),
			webhook.WithTimeout(a.modCfg.IdentifierTimeout),
			webhook.WithOnDelivery(func(r webhook.DeliveryResult) {
				a.log.Debug("identifier request",
					slog.Bool("success", r.Success),
					slog.Int("status", r.StatusCode),
					slog.Duration("duration", r.Duration),
				)
			}),
		)
	}

	if a.cfg.Search != "opensearch" {
		return nil
	}
	var (
		osCfg    opensearch.Config
		indexCfg opensearch.IndexConfig
	)
	if err := errors.Join(config.Load(&osCfg), config.Load(&indexCfg)); err != nil {
		return err
	}
	if indexCfg.Index == "" {
		indexCfg.Index = a.modCfg.SearchIndex
	}
	client, err := opensearch.Connect(ctx, osCfg)
	if err != nil {
		return err
	}
	a.checks["opensearch"] = opensearch.Healthcheck(client)
	indexer := opensearch.NewIndexer(client, indexCfg)
	if err := indexer.EnsureIndex(ctx); err != nil {
		return err
	}
	a.search = indexer
	return nil
}

// newWorker registers the moderation task handlers on a queue worker.
func (a *app) newWorker() (*queue.Worker, error) {
	opts := append(a.queueCfg.WorkerOptions(a.modCfg.Queue), queue.WithWorkerLogger(a.log))
	worker, err := queue.NewWorker(a.tasks, opts...)
	if err != nil {
		return nil, err
	}
	if err := worker.RegisterHandlers(
		moderation.NewPublishedHandler(a.store, a.ids, a.search),
		moderation.NewUnpublishedHandler(a.store, a.search),
	); err != nil {
		return nil, err
	}
	return worker, nil
}

// drain processes due tasks inline until none is claimable. Failed tasks
// stay in the database with their retry schedule and are picked up by the
// next command or by the worker.
func (a *app) drain(ctx context.Context) error {
	if !a.inline {
		return nil
	}
	worker, err := a.newWorker()
	if err != nil {
		return err
	}
	for {
		err := worker.ProcessNext(ctx)
		if errors.Is(err, queue.ErrNoTaskToClaim) {
			break
		}
		if err != nil {
			a.log.WarnContext(ctx, "deferred task failed", logger.Error(err))
		}
	}

	waiting, err := a.tasks.Waiting(ctx)
	if err != nil {
		return err
	}
	if waiting > 0 {
		a.log.WarnContext(ctx, "deferred tasks waiting for retry", slog.Int("count", waiting))
	}
	return nil
}

// purge deletes completed tasks older than the configured retention.
func (a *app) purge(ctx context.Context) {
	n, err := a.tasks.Purge(ctx, time.Now().Add(-a.queueCfg.PurgeAfter))
	if err != nil {
		a.log.ErrorContext(ctx, "failed to purge completed tasks", logger.Error(err))
		return
	}
	if n > 0 {
		a.log.InfoContext(ctx, "purged completed tasks", slog.Int64("count", n))
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}
	return id, nil
}
