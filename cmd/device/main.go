package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/config"
	"github.com/bobby-s-dev/pinkweather/internal/device"
	"github.com/bobby-s-dev/pinkweather/internal/history"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
	"github.com/bobby-s-dev/pinkweather/internal/render"
	"github.com/bobby-s-dev/pinkweather/internal/scheduler"
	"github.com/bobby-s-dev/pinkweather/internal/services"
)

func main() {
	once := flag.Bool("once", false, "run a single refresh cycle and exit")
	flag.Parse()

	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if leveled, err := observability.NewLogger(cfg.Server.LogLevel); err == nil {
		logger = leveled
		zap.ReplaceGlobals(logger)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics()

	provider := services.NewProvider(cfg, metrics, logger)
	if provider == nil {
		logger.Fatal("The device runtime needs OPENWEATHER_API_KEY")
	}

	ledger := history.NewLedger(history.NewFileStore(cfg.Ledger.Path), logger.Named("history"))
	if err := ledger.Load(); err != nil {
		logger.Warn("Starting with empty history", zap.Error(err))
	}

	backend, err := render.BackendByName(cfg.Display.Backend)
	if err != nil {
		logger.Fatal("Invalid display backend", zap.Error(err))
	}

	d := device.New(
		provider,
		cfg.Provider.Location,
		ledger,
		device.NewSnapshotStore(history.NewFileStore(cfg.Ledger.SnapshotPath)),
		render.FilePresenter{Path: cfg.Display.OutputPath},
		device.WithRenderer(render.NewRenderer(render.NewMetrics(), backend)),
		device.WithMetrics(metrics),
		device.WithLogger(logger.Named("device")),
	)

	if *once {
		rep, err := d.Cycle(context.Background())
		if err != nil || rep.Err != nil {
			logger.Sync()
			os.Exit(1)
		}
		return
	}

	sched, err := scheduler.NewScheduler(d, cfg.Scheduler.Spec, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down device runtime...")
	sched.Stop()
	logger.Info("Device runtime stopped", zap.Any("status", sched.GetStatus()))
}
