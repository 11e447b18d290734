package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/reportsweep/reportsweep/internal/kv"
	"github.com/reportsweep/reportsweep/internal/lock"
	"github.com/reportsweep/reportsweep/internal/metrics"
	"github.com/reportsweep/reportsweep/internal/report"
	"github.com/reportsweep/reportsweep/internal/scheduler"
	"github.com/reportsweep/reportsweep/internal/server"
	"github.com/reportsweep/reportsweep/internal/store"
	"github.com/reportsweep/reportsweep/internal/sweep"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	client, err := store.Connect(cfg.NatsURL)
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	slog.Info("connected to NATS", "url", cfg.NatsURL)

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSetup()
	if err := client.Setup(setupCtx, cfg.Buckets); err != nil {
		slog.Error("failed to set up storage buckets", "error", err)
		os.Exit(1)
	}

	coordinator, runs, err := buildCoordinator(setupCtx, client, cfg)
	if err != nil {
		slog.Error("failed to wire sweep components", "error", err)
		os.Exit(1)
	}

	metrics.Init(version)

	// runCtx is the cancellation signal threaded through every run.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	if *once {
		trig := sweep.Trigger{
			RunID:        uuid.NewString(),
			ScheduledFor: time.Now(),
			FiredAt:      time.Now(),
		}
		if err := coordinator.Run(runCtx, trig); err != nil {
			slog.Error("sweep failed", "run_id", trig.RunID, "error", err)
			os.Exit(1)
		}
		return
	}

	sched, err := scheduler.New(cfg.CronSpec, func(trig sweep.Trigger) {
		if err := coordinator.Run(runCtx, trig); err != nil {
			slog.Error("sweep failed", "run_id", trig.RunID, "error", err)
		}
	})
	if err != nil {
		slog.Error("invalid schedule", "cron", cfg.CronSpec, "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	router := server.NewRouter(client.Conn(), runs, time.Now())
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("sweep daemon listening", "port", cfg.Port, "cron", cfg.CronSpec)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	sched.Stop()
	cancelRuns()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("stopped")
}

func buildCoordinator(ctx context.Context, client *store.Client, cfg server.Config) (*sweep.Coordinator, *kv.RunStore, error) {
	source, err := client.ObjectBucket(ctx, cfg.Buckets.Source)
	if err != nil {
		return nil, nil, err
	}
	processed, err := client.ObjectBucket(ctx, cfg.Buckets.Processed)
	if err != nil {
		return nil, nil, err
	}
	quarantine, err := client.ObjectBucket(ctx, cfg.Buckets.Quarantine)
	if err != nil {
		return nil, nil, err
	}
	locksKV, err := client.KeyValue(ctx, cfg.Buckets.Locks)
	if err != nil {
		return nil, nil, err
	}
	runsKV, err := client.KeyValue(ctx, cfg.Buckets.Runs)
	if err != nil {
		return nil, nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "sweepd"
	}

	runs := kv.NewRunStore(runsKV)
	transformer := report.NewTransformer(source, processed, hostname)
	processor := sweep.NewProcessor(transformer, cfg.MaxRetries, cfg.RetryBaseDelay)

	coordinator := &sweep.Coordinator{
		JobName: cfg.JobName,
		Locks:   lock.New(kv.NewStore(locksKV), cfg.LockStaleAfter),
		Items:   &store.SuffixLister{Bucket: source, Suffix: cfg.ItemSuffix},
		Engine:  sweep.NewOrchestrator(processor, cfg.BatchSize, cfg.BatchPause),
		Routing: sweep.NewRouter(store.NewMover(source, quarantine)),
		Runs:    runs,
		Ensure: func(ctx context.Context) error {
			return client.Setup(ctx, cfg.Buckets)
		},
	}
	return coordinator, runs, nil
}
