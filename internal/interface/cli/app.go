package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dsl-grades/grade-hub/config"
	"github.com/dsl-grades/grade-hub/internal/application/command"
	"github.com/dsl-grades/grade-hub/internal/application/query"
	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/identity"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/ingest"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/persistence/memory"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/persistence/mongo"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/persistence/postgres"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/persistence/redis"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/persistence/sqlite"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// App holds the wired stores for one CLI invocation.
type App struct {
	Config *config.Config
	Schema ingest.Schema
	Log    *logger.Logger

	Records    grade.Repository
	Identities identity.Repository
	Markers    grade.MarkerRepository
	Locker     command.Locker

	closers []func(context.Context) error
}

// Bootstrap connects the configured document store and, unless disabled,
// Redis for the marker cache and the single-writer lock.
func Bootstrap(ctx context.Context, cfg *config.Config, schema ingest.Schema, log *logger.Logger) (*App, error) {
	app := &App{Config: cfg, Schema: schema, Log: log}

	if err := app.openStore(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	if err := app.openRedis(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	if app.Locker == nil {
		app.Locker = command.NewLocalLocker()
	}
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	sc := a.Config.Store
	log := a.Log.With(logger.Component("store"), logger.String("backend", sc.Backend))

	switch sc.Backend {
	case config.BackendMemory:
		a.Records = memory.NewRecordRepository()
		a.Identities = memory.NewIdentityRepository()
		a.Markers = memory.NewMarkerRepository()
		log.Warn("using the in-memory store, nothing outlives this run")

	case config.BackendPostgres:
		conn, err := postgres.NewConnection(ctx, postgres.Config{
			URL:             sc.PostgresURL,
			MaxConns:        sc.MaxConns,
			MinConns:        sc.MinConns,
			ConnectAttempts: sc.ConnectAttempts,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { conn.Close(); return nil })
		if sc.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		a.Records = postgres.NewRecordRepository(conn)
		a.Identities = postgres.NewIdentityRepository(conn)
		a.Markers = postgres.NewMarkerRepository(conn)

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		a.Records = sqlite.NewRecordRepository(db)
		a.Identities = sqlite.NewIdentityRepository(db)
		a.Markers = sqlite.NewMarkerRepository(db)

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, mongo.Config{
			URI:             sc.MongoURI,
			Database:        sc.MongoDatabase,
			ConnectAttempts: sc.ConnectAttempts,
			Timeout:         sc.QueryTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Records = mongo.NewRecordRepository(client)
		a.Identities = mongo.NewIdentityRepository(client)
		a.Markers = mongo.NewMarkerRepository(client)

	default:
		return fmt.Errorf("unknown store backend %q", sc.Backend)
	}

	log.Debug("document store ready")
	return nil
}

func (a *App) openRedis(ctx context.Context) error {
	rc := a.Config.Redis
	if rc.Disabled {
		return nil
	}

	cache, err := redis.NewCache(ctx, redis.Config{
		URL:             rc.URL,
		Host:            rc.Host,
		Port:            rc.Port,
		Password:        rc.Password,
		DB:              rc.DB,
		KeyPrefix:       rc.KeyPrefix,
		DialTimeout:     rc.DialTimeout,
		ReadTimeout:     rc.ReadTimeout,
		WriteTimeout:    rc.WriteTimeout,
		ConnectAttempts: a.Config.Store.ConnectAttempts,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return cache.Close() })

	a.Markers = redis.NewMarkerCache(cache, a.Markers)
	a.Locker = redis.NewLock(cache, rc.LockTTL)
	a.Log.Debug("redis marker cache and lock ready", logger.Component("redis"))
	return nil
}

// Close releases every connection in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// CommandDeps returns the dependencies of the batch commands.
func (a *App) CommandDeps() command.Deps {
	return command.Deps{
		Records:  a.Records,
		Markers:  a.Markers,
		Resolver: identity.NewResolver(a.Identities),
		Locker:   a.Locker,
		Logger:   a.Log,
	}
}

// QueryDeps returns the dependencies of the read queries.
func (a *App) QueryDeps() query.Deps {
	return query.Deps{
		Records:  a.Records,
		Markers:  a.Markers,
		Resolver: identity.NewResolver(a.Identities),
		Logger:   a.Log,
	}
}
