// Command calcd serves the session-scoped calculator over HTTP.
//
// Usage:
//
//	calcd [-config calcd.yaml] [-addr host:port] [-db path]
//
// Settings come from the optional config file (YAML or JSON), then from
// CALC_SECTION_KEY environment variables (CALC_SERVER_ADDR, CALC_LOG_LEVEL,
// ...). -addr overrides server.addr and -db selects the sqlite store at the
// given path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/randalmurphal/calc/pkg/calc"
	"github.com/randalmurphal/calc/pkg/calc/config"
	"github.com/randalmurphal/calc/pkg/calc/observability"
	"github.com/randalmurphal/calc/pkg/calc/server"
	"github.com/randalmurphal/calc/pkg/calc/session"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Environ(), os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "calcd:", err)
		os.Exit(1)
	}
}

func run(args, environ []string, stderr io.Writer) error {
	settings, err := loadSettings(args, environ, stderr)
	if err != nil {
		return err
	}

	logger, err := newLogger(settings, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, err := openStore(settings)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := observability.NewMetricsRecorder()
	spans := observability.NewSpanManager()

	sweeper := session.NewSweeper(store, settings.SessionTTL, settings.SweepInterval,
		session.WithSweepLogger(logger),
		session.WithSweepMetrics(metrics),
	)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	c := calc.New(store,
		calc.WithLogger(logger),
		calc.WithMetrics(metrics),
		calc.WithSpanManager(spans),
		calc.WithRange(settings.MinValue, settings.MaxValue),
	)
	srv := server.New(c,
		server.WithPrefix(settings.Prefix),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithSpanManager(spans),
		server.WithTimeouts(settings.ReadTimeout, settings.WriteTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe(settings.Addr) }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-served
}

// loadSettings merges flags over CALC_* environment variables over the
// config file.
func loadSettings(args, environ []string, stderr io.Writer) (config.Settings, error) {
	fs := flag.NewFlagSet("calcd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML or JSON config `file`")
	addr := fs.String("addr", "", "listen `address` (overrides server.addr)")
	dbPath := fs.String("db", "", "use the sqlite store at `path` (overrides store.*)")
	if err := fs.Parse(args); err != nil {
		return config.Settings{}, err
	}

	settings, err := config.LoadWithEnv(*configPath, environ)
	if err != nil {
		return config.Settings{}, err
	}
	if *addr != "" {
		settings.Addr = *addr
	}
	if *dbPath != "" {
		settings.StoreDriver = config.DriverSQLite
		settings.StorePath = *dbPath
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func newLogger(settings config.Settings, w io.Writer) (*slog.Logger, error) {
	level, err := settings.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if settings.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func openStore(settings config.Settings) (session.Store, error) {
	switch settings.StoreDriver {
	case config.DriverSQLite:
		store, err := session.NewSQLiteStore(settings.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		return store, nil
	case config.DriverMemory:
		return session.NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown store driver " + settings.StoreDriver)
	}
}
