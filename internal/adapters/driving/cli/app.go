package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/config/file"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/format"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore/filesystem"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore/gcs"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore/minio"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore/s3"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/storage/sqlorm"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/wait/fswatch"
	"github.com/custodia-labs/synchronoux/internal/adapters/driven/wait/websocket"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/core/services"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// App holds the services assembled from a configuration.
type App struct {
	Config    *file.Config
	Sync      *services.SyncOrchestrator
	History   *services.HistoryService
	Scheduler *services.Scheduler

	closers []func() error
}

// Close releases the databases opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires the orchestrator and its collaborators. dir is the directory
// holding config.toml; relative defaults (state database, local SQLite
// database, filesystem exchange) live under it.
func Build(ctx context.Context, cfg *file.Config, dir string, listener domain.EventListener) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close() //nolint:errcheck
		}
	}()

	state, err := sqlite.NewStore(filepath.Join(dir, "data"))
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	app.closers = append(app.closers, state.Close)

	orm, err := buildORM(cfg.ORM, dir)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, orm.Close)

	tables, err := cfg.RecordTableMap()
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		logger.Warn("no [[models]] configured: pulled records will have no mapping")
	}

	store, err := buildMiddleStore(ctx, cfg.MiddleStore, dir)
	if err != nil {
		return nil, err
	}

	codec, err := buildFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	polling, err := cfg.PollingOption()
	if err != nil {
		return nil, err
	}
	strategy, err := domain.ParseWaitStrategy(cfg.Sync.WaitStrategy)
	if err != nil {
		return nil, err
	}
	waiter, err := buildWaiter(strategy, polling, store, cfg.Websocket)
	if err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(cfg.Sync.Priority)
	if err != nil {
		return nil, err
	}

	orch, err := services.NewSyncOrchestrator(services.SyncOptions{
		ORM:                 orm,
		Format:              codec,
		MiddleStore:         store,
		RecordTableMap:      tables,
		WaitStrategy:        strategy,
		Waiter:              waiter,
		Polling:             polling,
		Priority:            priority,
		MaxRecordsPerUpload: cfg.Sync.MaxRecordsPerUpload,
		PushDestination:     cfg.Sync.PushDestination,
		Resilient:           cfg.Sync.Resilient,
		Listener:            listener,
		RunStore:            state.RunStore(),
	})
	if err != nil {
		return nil, err
	}
	app.Sync = orch
	app.History = services.NewHistoryService(state.RunStore(), state.SchedulerStore())

	interval, err := cfg.SchedulerInterval()
	if err != nil {
		return nil, fmt.Errorf("scheduler.interval: %w", err)
	}
	app.Scheduler = services.NewScheduler(domain.SchedulerConfig{
		Enabled: cfg.Scheduler.Enabled,
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDSync: {Enabled: true, Interval: interval},
		},
	}, state.SchedulerStore(), orch)

	ok = true
	return app, nil
}

func buildORM(cfg file.ORMConfig, dir string) (*sqlorm.ORM, error) {
	dsn := cfg.DSN
	dialect, err := sqlorm.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" && dialect.Name() == sqlorm.DriverSQLite {
		dsn = filepath.Join(dir, "data", "local.db")
	}
	db, dialect, err := sqlorm.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}
	mode, err := domain.ParseWriteMode(cfg.WriteMode)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sqlorm.NewORM(db, dialect, sqlorm.Options{
		WriteMode:     mode,
		LimitPerQuery: cfg.LimitPerQuery,
		RawRead:       !cfg.ReverseColumnMap,
		Listener: func(_ context.Context, event sqlorm.Event, message string, record domain.SyncRecord) bool {
			logger.Debug("orm: %s %s pk=%v %s", event, record.ModelName, record.PrimaryKey, message)
			return true
		},
	}), nil
}

func buildMiddleStore(ctx context.Context, cfg file.MiddleStoreConfig, dir string) (driven.MiddleStore, error) {
	opts := middlestore.Options{
		Bucket:      cfg.Bucket,
		PullPrefix:  cfg.PullPrefix,
		SkipCleanup: cfg.SkipCleanup,
		Listener: func(_ context.Context, event middlestore.Event, message string, _ domain.Params) {
			logger.Debug("middle store: %s %s", event, message)
		},
	}

	backend := middlestore.Backend(cfg.Kind)
	if cfg.RequestsPerSecond > 0 {
		opts.Limiter = middlestore.NewRateLimiterWithConfig(middlestore.RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         cfg.Burst,
		})
	} else {
		opts.Limiter = middlestore.NewRateLimiter(backend)
	}

	switch cfg.Kind {
	case file.MiddleStoreFilesystem:
		if opts.Bucket == "" {
			opts.Bucket = filepath.Join(dir, "exchange")
		}
		return filesystem.New(opts)
	case file.MiddleStoreS3:
		return s3.New(ctx, opts, s3.Config{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.Endpoint != "",
		})
	case file.MiddleStoreGCS:
		return gcs.New(ctx, opts, gcs.Config{
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        cfg.Endpoint,
		})
	case file.MiddleStoreMinio:
		return minio.New(opts, minio.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Secure:    cfg.Secure,
			Region:    cfg.Region,
		})
	}
	return nil, fmt.Errorf("%w: middle store %q", domain.ErrUnsupportedType, cfg.Kind)
}

func buildFormat(cfg file.FormatConfig) (driven.Format, error) {
	schema := ""
	if cfg.Validate {
		schema = format.BatchSchema
		if cfg.SchemaFile != "" {
			data, err := os.ReadFile(cfg.SchemaFile)
			if err != nil {
				return nil, fmt.Errorf("read schema file: %w", err)
			}
			schema = string(data)
		}
	}
	return format.New(format.Config{Kind: cfg.Kind, Schema: schema})
}

// buildWaiter returns nil for POLLING so the orchestrator uses its own poller.
func buildWaiter(
	strategy domain.WaitStrategy,
	polling domain.PollingOption,
	store driven.MiddleStore,
	ws file.WebsocketConfig,
) (driven.Waiter, error) {
	switch strategy {
	case domain.WaitPolling:
		return nil, nil
	case domain.WaitWatch:
		fs, ok := store.(*filesystem.Store)
		if !ok {
			return nil, fmt.Errorf("%w: the WATCH wait strategy needs a filesystem middle store", domain.ErrInvalidInput)
		}
		return fswatch.New(fs.Dir, polling), nil
	case domain.WaitWebsocket:
		header := http.Header{}
		if ws.Token != "" {
			header.Set("Authorization", "Bearer "+ws.Token)
		}
		return websocket.New(ws.URL, header, polling), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownWaitStrategy, strategy)
}
