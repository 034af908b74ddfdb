package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ogulcanaydogan/powermon/internal/config"
	"github.com/ogulcanaydogan/powermon/internal/metrics"
	"github.com/ogulcanaydogan/powermon/internal/monitor"
	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/fetcher"
	"github.com/ogulcanaydogan/powermon/pkg/notify"
	"github.com/ogulcanaydogan/powermon/pkg/storage"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "powermon",
	Short: "powermon - dorm electricity balance monitor",
	Long: `powermon polls the campus utility portal for the remaining electricity
balance of a dorm room, stores every reading, and notifies you when the
balance runs low, once a day with a summary, and when the portal keeps failing.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.powermon/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage opens the configured reading store.
func initStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

// initSinks builds the active notification channels. Misconfigured channels
// are logged and skipped.
func initSinks(ctx context.Context, cfg *config.Config, loc *time.Location, logger *slog.Logger) *alerts.Registry {
	return alerts.NewRegistry(ctx, cfg.Notify.Config, logger,
		alerts.WithLocation(loc),
		alerts.WithConsoleWriter(os.Stdout),
	)
}

// app is a fully wired monitor and the pieces the commands need around it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	loc     *time.Location
	store   storage.Storage
	sinks   *alerts.Registry
	monitor *monitor.Monitor
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// initApp validates the configuration and wires storage, sinks, the engine
// and the fetcher into a monitor. m may be nil.
func initApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	client, err := fetcher.New(cfg.FetcherConfig())
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sinks := initSinks(ctx, cfg, loc, logger)

	var dispatchOpts []alerts.DispatcherOption
	monitorOpts := []monitor.Option{
		monitor.WithStore(store),
		monitor.WithInterval(cfg.Interval),
		monitor.WithLocation(loc),
	}
	if m != nil {
		dispatchOpts = append(dispatchOpts, alerts.WithObserver(m))
		monitorOpts = append(monitorOpts, monitor.WithObserver(m))
	}
	dispatcher := alerts.NewDispatcher(sinks.Sinks(), cfg.RetryPolicy(), logger, dispatchOpts...)
	engine := notify.NewEngine(cfg.Notify.Policy, notify.WithLocation(loc))

	return &app{
		cfg:     cfg,
		logger:  logger,
		loc:     loc,
		store:   store,
		sinks:   sinks,
		monitor: monitor.New(engine, client, dispatcher, logger, monitorOpts...),
	}, nil
}
