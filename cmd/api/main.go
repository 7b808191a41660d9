package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/99minutos/user-registry/internal/api"
	"github.com/99minutos/user-registry/internal/api/handler"
	"github.com/99minutos/user-registry/internal/core/ports"
	"github.com/99minutos/user-registry/internal/core/service"
	"github.com/99minutos/user-registry/internal/core/validation"
	"github.com/99minutos/user-registry/internal/infrastructure/config"
	mongostore "github.com/99minutos/user-registry/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/user-registry/internal/infrastructure/db/redis"
	"github.com/99minutos/user-registry/internal/infrastructure/db/sqlstore"
	"github.com/99minutos/user-registry/internal/infrastructure/queue"
	"github.com/99minutos/user-registry/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// @title        User Registry API
// @version      1.0
// @description  Registers users after field validation and serves lookups by username and id.
// @BasePath     /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "user-registry",
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg); err != nil {
		logger.Get().Fatal().Err(err).Msg("server stopped")
	}
	logger.Get().Info().Msg("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	repo, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info().Str("driver", cfg.Storage.Driver).Dur("timeout", cfg.Storage.Timeout).Msg("storage ready")

	var opts []service.Option
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()

		opts = append(opts, service.WithCache(redisstore.NewUserCache(rdb, cfg.Redis.CacheTTL)))
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.CacheTTL).Msg("user cache enabled")
	}

	reserved := validation.NewReservedWords(cfg.Users.ReservedUsernames...)
	rules := validation.CreateUserRules(reserved)
	log.Info().Int("rules", rules.Len()).Strs("reserved_usernames", reserved.Words()).Msg("validation rules loaded")

	svc := service.NewRegistrationService(repo, rules, logger.Component("registration"), opts...)

	// Workers outlive the signal context so batches accepted before shutdown
	// can finish while the HTTP server drains.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher := queue.NewDispatcher(cfg.Batch.Workers, svc, logger.Component("batch"))
	dispatcher.Start(workerCtx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e := api.NewRouter(api.Dependencies{
		Users:         svc,
		Batch:         dispatcher,
		Health:        health,
		Registry:      reg,
		Log:           log,
		MaxBatchItems: cfg.Batch.MaxItems,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = e.Shutdown(shutdownCtx)
	stopWorkers()
	<-dispatcher.Done()
	return err
}

// openStore connects the configured backend and prepares its unique
// constraints. The returned map holds its readiness check.
func openStore(ctx context.Context, cfg *config.Config) (ports.UserRepository, map[string]handler.PingFunc, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }

		repo := mongostore.NewUserRepository(db).WithTimeout(cfg.Storage.Timeout)
		if err := repo.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		health := map[string]handler.PingFunc{
			"mongodb": func(ctx context.Context) error { return client.Ping(ctx, nil) },
		}
		return repo, health, closeFn, nil

	default:
		dialect, err := sqlstore.DialectFor(cfg.Storage.Driver)
		if err != nil {
			return nil, nil, nil, err
		}
		dsn := cfg.Storage.SQLiteDSN
		if dialect.Name == sqlstore.Postgres.Name {
			dsn = cfg.Storage.PostgresDSN
		}

		db, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { _ = db.Close() }

		if err := sqlstore.EnsureSchema(ctx, db, dialect); err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		health := map[string]handler.PingFunc{dialect.Name: db.PingContext}
		return sqlstore.NewUserRepository(db, dialect).WithTimeout(cfg.Storage.Timeout), health, closeFn, nil
	}
}
