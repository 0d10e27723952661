package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"zenithmaint/internal/api"
	"zenithmaint/internal/config"
	"zenithmaint/internal/domain"
	"zenithmaint/internal/events"
	"zenithmaint/internal/jobs"
	"zenithmaint/internal/metrics"
	"zenithmaint/internal/perf"
	"zenithmaint/internal/scheduler"
	"zenithmaint/internal/store"
	"zenithmaint/internal/validation"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	monitor := perf.NewMonitor(perf.DefaultCapacity)
	m := metrics.New()
	deps := jobs.Deps{Perf: monitor}

	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("open db")
		}
		defer db.Close()
		// Only assign when configured: a nil *Validator in the interface
		// would not compare equal to nil.
		deps.Repo = store.NewSQLiteRepo(db)
		deps.Validator = validation.New(db)
	} else {
		log.Warn().Msg("no database configured, database tasks will report failure")
	}

	opts := []scheduler.Option{
		scheduler.WithTickInterval(cfg.TickInterval),
		scheduler.WithRunningHook(m.SetRunning),
		scheduler.WithObserver(m.ObserveTask),
		scheduler.WithObserver(func(task domain.Task, res domain.Result) {
			monitor.Record("maintenance."+task.ID, float64(res.Duration.Milliseconds()))
		}),
	}

	if cfg.NATSURL != "" {
		pub, nc, err := events.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("connect nats")
		}
		defer nc.Drain()
		opts = append(opts, scheduler.WithObserver(pub.Observe))
	}

	sched, err := scheduler.New(jobs.Builtins(deps), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	// HTTP server
	handler := api.NewServer(sched, api.Options{
		Metrics:     m.Handler(),
		EnableDebug: cfg.Debug,
		BaseContext: ctx,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)

	select {
	case <-sched.Stop().Done():
	case <-ctxTimeout.Done():
		log.Warn().Msg("maintenance tick still running, cancelling")
	}
	cancel()
}
