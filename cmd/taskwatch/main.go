package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"taskwatch/internal/config"
	"taskwatch/internal/monitor"
	"taskwatch/internal/notify"
	"taskwatch/internal/registry"
	"taskwatch/internal/runner"
	"taskwatch/internal/storage"
	"taskwatch/internal/transport/telegram"
	"taskwatch/pkg/logx"
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./taskwatch.yaml", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}

	log, logCloser := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		},
	})
	defer logCloser.Close()

	adapter, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		log.Error("telegram init failed", logx.Err(err))
		return 1
	}

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeoutDur,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		log.Error("audit store init failed", logx.Err(err))
		return 1
	}
	if store != nil {
		defer store.Close()
	}

	reg, err := registry.OpenPostgres(ctx, cfg.Registry.DSN, log.With(logx.String("comp", "registry")))
	if err != nil {
		log.Error("registry init failed", logx.Err(err))
		return 1
	}
	defer reg.Close()

	r := runner.New(reg, buildEvaluator(cfg, log), buildDispatcher(cfg, adapter, log),
		store, cfg.Registry.MarkerID, log)

	if schedule := strings.TrimSpace(cfg.Monitor.Schedule); schedule != "" {
		return runDaemon(ctx, cfgPath, schedule, r, adapter, log)
	}

	// Default mode: one pass, exit. An external scheduler drives the cadence.
	if err := r.RunPass(ctx); err != nil {
		log.Error("pass failed", logx.Err(err))
		return 1
	}
	return 0
}

// runDaemon keeps the process resident: passes run on the configured cron
// schedule, the config file is watched so policy knobs apply without a
// restart, and systemd (when present) is told we're ready.
func runDaemon(ctx context.Context, cfgPath, schedule string, r *runner.Runner, adapter *telegram.Adapter, log logx.Logger) int {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := r.RunPass(ctx); err != nil {
			log.Error("pass failed", logx.Err(err))
		}
	})
	if err != nil {
		log.Error("bad monitor.schedule", logx.String("schedule", schedule), logx.Err(err))
		return 1
	}
	c.Start()
	defer c.Stop()

	go func() {
		err := config.Watch(ctx, cfgPath, log.With(logx.String("comp", "config")), func(nc *config.Config) {
			r.Apply(buildEvaluator(nc, log), buildDispatcher(nc, adapter, log))
		})
		if err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("daemon started", logx.String("schedule", schedule))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("daemon stopped")
	return 0
}

func buildEvaluator(cfg *config.Config, log logx.Logger) *monitor.Evaluator {
	return monitor.NewEvaluator(
		cfg.Monitor.MissThreshold,
		cfg.Monitor.WindowGraceDur,
		cfg.Monitor.Exclude,
		log.With(logx.String("comp", "monitor")),
	)
}

func buildDispatcher(cfg *config.Config, adapter *telegram.Adapter, log logx.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(adapter, notify.Config{
		FloodLimit: cfg.Monitor.FloodSends,
		FloodPause: cfg.Monitor.FloodPauseDur,
	}, log.With(logx.String("comp", "notify")))
}
