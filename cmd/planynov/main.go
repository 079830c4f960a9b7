package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"planynov/internal/config"
	"planynov/internal/ics"
	"planynov/internal/ingest"
	appLog "planynov/internal/log"
	"planynov/internal/metrics"
	"planynov/internal/schedule"
	"planynov/internal/scheduler"
	"planynov/internal/store"
	"planynov/internal/web"
)

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	listen     string
	load       string
}

func main() {
	// Optional .env next to the binary; real environment wins when absent.
	if err := godotenv.Load(); err == nil {
		appLog.Info("loaded .env file")
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Setup(conf.Log.Level, conf.Log.Format)
	appLog.Info("planynov starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"public_dir", conf.PublicDir,
		"upload_dir", conf.Upload.Dir,
		"upload_max_bytes", conf.Upload.MaxBytes,
		"default_calendar", conf.DefaultCalendar,
		"refresh", conf.RefreshCron,
		"expand_recurrences", conf.Calendar.ExpandRecurrences,
	)

	metrics.Init()

	st := store.New()
	svc := ingest.NewService(st, ingest.Options{
		UploadDir: conf.Upload.Dir,
		MaxBytes:  conf.Upload.MaxBytes,
		Sheet:     conf.Tabular.Sheet,
		Calendar: schedule.CalendarOptions{
			Location:          conf.Location(),
			ExpandRecurrences: conf.Calendar.ExpandRecurrences,
			Expand: ics.ExpandConfig{
				Horizon:                time.Duration(conf.Calendar.HorizonDays) * 24 * time.Hour,
				MaxOccurrencesPerEvent: conf.Calendar.MaxOccurrences,
			},
		},
		DefaultCalendar: conf.DefaultCalendar,
	})

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Preload a schedule given on the command line.
	if flags.load != "" {
		if _, err := svc.LoadFile(ctx, flags.load); err != nil {
			appLog.Error("initial load failed", err, "path", flags.load)
		}
	}

	if conf.RefreshCron != "" && conf.DefaultCalendar != "" {
		sched := scheduler.New(conf.Location())
		if err := sched.Add(ctx, "default-calendar-refresh", conf.RefreshCron, svc.RefreshDefault); err != nil {
			appLog.Error("failed to schedule default calendar refresh", err)
		} else {
			go sched.Run(ctx)
		}
	}

	server := web.NewServer(conf, st, svc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown failed", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}

	appLog.Info("planynov exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "planynov.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.load, "load", "", "Schedule file (.ics, .csv, .xlsx) to load at startup")

	flag.Parse()

	return cfg
}
