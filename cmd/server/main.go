package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pedersen-identity/internal/eventlog"
	kafkasink "pedersen-identity/internal/eventlog/sink/kafka"
	redissink "pedersen-identity/internal/eventlog/sink/redis"
	jwttoken "pedersen-identity/internal/jwt_token"
	"pedersen-identity/internal/ledger"
	"pedersen-identity/internal/platform/config"
	"pedersen-identity/internal/platform/httpserver"
	"pedersen-identity/internal/platform/kafka"
	"pedersen-identity/internal/platform/logger"
	"pedersen-identity/internal/platform/metrics"
	"pedersen-identity/internal/platform/postgres"
	"pedersen-identity/internal/platform/redis"
	"pedersen-identity/internal/registry/service"
	"pedersen-identity/internal/registry/store"
	"pedersen-identity/internal/registry/store/memory"
	pgstore "pedersen-identity/internal/registry/store/postgres"
	"pedersen-identity/internal/registry/store/sqlite"
	httptransport "pedersen-identity/internal/transport/http"
)

// main wires configuration, storage, sinks and the HTTP surface, then runs
// until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	sinks, closeSinks, err := openSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	svc := service.New(st,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithPersistCleartext(cfg.PersistCleartext),
		service.WithPublisher(eventlog.NewFanout(sinks,
			eventlog.WithFanoutLogger(log),
			eventlog.WithFanoutMetrics(m),
		)),
	)
	chain, err := ledger.New(ctx, svc, cfg.DeployerPrincipal(),
		ledger.WithLogger(log),
		ledger.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	if err := svc.VerifyConsistency(ctx); err != nil {
		return err
	}

	var routerOpts []httptransport.RouterOption
	if !cfg.MetricsEnabled {
		routerOpts = append(routerOpts, httptransport.WithoutMetrics())
	}
	router := httptransport.NewRouter(
		httptransport.New(chain, svc, log),
		jwttoken.NewJWTService(cfg.JWTSigningKey),
		log,
		routerOpts...,
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting identity registry",
			"addr", cfg.Addr,
			"storage", cfg.Storage.Driver,
			"height", chain.Height(),
			"sinks", len(sinks),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Storage) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		st, err := pgstore.New(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return st, nil
	default:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

// openSinks connects the optional event sinks. Unconfigured sinks are
// skipped; the returned closer releases whatever was opened.
func openSinks(ctx context.Context, cfg config.Server, log *slog.Logger) ([]eventlog.Sink, func(), error) {
	var (
		sinks   []eventlog.Sink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rc != nil {
		sinks = append(sinks, redissink.New(rc.Client, cfg.Redis.Stream))
		closers = append(closers, func() { _ = rc.Close() })
		log.Info("redis sink enabled", "stream", cfg.Redis.Stream)
	}

	kc, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if kc != nil {
		closers = append(closers, kc.Close)
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka); err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, kafkasink.New(kc, cfg.Kafka.Topic))
		log.Info("kafka sink enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}
	return sinks, closeAll, nil
}
