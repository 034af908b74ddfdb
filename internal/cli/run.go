package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogulcanaydogan/powermon/internal/metrics"
	"github.com/ogulcanaydogan/powermon/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the portal and send notifications until stopped",
	Long: `Poll the utility portal every interval, store each reading, and dispatch
notifications. The status server exposes readings, engine state and
Prometheus metrics. A rejected login stops the monitor.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("listen", "", "Status server listen address (overrides config)")
	runCmd.Flags().Bool("no-server", false, "Do not start the status server")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	if noServer, _ := cmd.Flags().GetBool("no-server"); noServer {
		cfg.Server.Enabled = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a, err := initApp(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	if a.sinks.Len() > 0 {
		logger.Info("notification channels active", "channels", a.sinks.Kinds())
	}

	var srv *http.Server
	errCh := make(chan error, 1)
	if cfg.Server.Enabled {
		api := server.NewServer(a.store, a.monitor, reg, logger)
		srv = &http.Server{
			Addr:         cfg.Server.Listen,
			Handler:      api.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			logger.Info("status server started", "listen", cfg.Server.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	monCtx, cancelMon := context.WithCancel(ctx)
	defer cancelMon()
	done := make(chan error, 1)
	go func() { done <- a.monitor.Run(monCtx) }()

	var runErr error
	select {
	case runErr = <-done:
	case err := <-errCh:
		cancelMon()
		<-done
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		runErr = <-done
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown", "error", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "powermon stopped: %v\n", runErr)
	}
	return runErr
}
