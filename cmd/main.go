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

	"github.com/okian/pulse/internal/adapters/http/api"
	"github.com/okian/pulse/internal/adapters/http/swagger"
	"github.com/okian/pulse/internal/adapters/mq/kafka"
	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/seed"
	"github.com/okian/pulse/internal/adapters/snapshot"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/internal/domain/capacity"
	"github.com/okian/pulse/internal/domain/scoring"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// HTTP server timeout constants.
const (
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("pulse: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.Server.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.Server.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.Server.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithMetricsEnabled(cfg.Metrics.Enabled),
	)

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
			Version: cfg.Kafka.Version,
		}, svc, kafka.WithLogger(log.Named("kafka")))
		if err != nil {
			return err
		}
		consumer.Start(ctx)
		// closed before the deferred svc.Stop so no event lands on a closed queue
		defer func() {
			if err := consumer.Close(); err != nil {
				log.Warn(ctx, "kafka consumer close failed", logger.Error(err))
			}
		}()
	}

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newHandler(svc, log),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService wires the store, domain calculators and optional sinks from
// cfg, then loads the seed fixture if one is configured.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	store := repository.NewStore()
	calc := scoring.NewCalculator(
		scoring.WithLoadKey(cfg.Scoring.LoadKey),
		scoring.WithTimeNumerator(cfg.Scoring.TimeNumerator),
	)
	agg := capacity.NewAggregator(
		capacity.WithDecayDays(cfg.Capacity.DecayDays),
		capacity.WithAlpha(cfg.Capacity.EMAAlpha),
		capacity.WithConfidenceWindow(cfg.Capacity.ConfidenceWindow),
		capacity.WithConfidenceThresholds(cfg.Capacity.ConfidenceLowBelow, cfg.Capacity.ConfidenceMedBelow),
	)

	sinks, err := openSinks(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	svc := service.New(
		service.WithStore(store),
		service.WithCalculator(calc),
		service.WithAggregator(agg),
		service.WithSinks(sinks...),
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.Ingest.WorkerCount),
		service.WithQueueSize(cfg.Ingest.QueueSize),
		service.WithDedupeSize(cfg.Ingest.DedupeSize),
		service.WithRecompute(cfg.Leaderboard.RecomputeInterval, cfg.Leaderboard.RecomputeOnStart),
	)

	if cfg.Seed.Path == "" {
		return svc, nil
	}
	fx, err := seed.ReadFile(cfg.Seed.Path)
	if err != nil {
		return nil, err
	}
	if err := fx.Apply(store); err != nil {
		return nil, fmt.Errorf("apply seed %s: %w", cfg.Seed.Path, err)
	}
	n, err := fx.Replay(ctx, svc, time.Now().UTC(), log.Named("seed"))
	if err != nil {
		return nil, fmt.Errorf("replay seed %s: %w", cfg.Seed.Path, err)
	}
	log.Info(ctx, "seed loaded", logger.String("path", cfg.Seed.Path), logger.Int("attempts", n))
	return svc, nil
}

func openSinks(ctx context.Context, cfg *config.Config, log logger.Logger) ([]service.SnapshotSink, error) {
	var (
		sinks []service.SnapshotSink
		pg    *snapshot.PostgresSink
		err   error
	)
	if cfg.Postgres.DSN != "" {
		pg, err = snapshot.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns,
			snapshot.WithLogger(log.Named("postgres")))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if cfg.Redis.Addr != "" {
		rd, err := snapshot.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			snapshot.WithLogger(log.Named("redis")), snapshot.WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err != nil {
			if pg != nil {
				_ = pg.Close()
			}
			return nil, err
		}
		sinks = append(sinks, rd)
	}
	return sinks, nil
}

// newHandler mounts the API and its documentation on one router.
func newHandler(svc *service.Service, log logger.Logger) http.Handler {
	return api.NewServer(svc, svc,
		api.WithLogger(log.Named("http")),
		api.WithMount(swagger.Register),
	).Handler()
}

// startServiceMetricsUpdater refreshes service gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics copies service stats into gauges.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if snapshots, ok := stats["snapshots"].(int); ok {
		metrics.UpdateSnapshotCount(snapshots)
	}
}
