// Package httpd implements the HTTP API server command.
package httpd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/courtcapture/cmd/common"
	"github.com/jonesrussell/courtcapture/internal/api"
	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the capture API server",
		Long: `Run the HTTP API server together with the schedule dispatcher.
The server exposes capture triggers, raw-log queries, schedule
management and communication-feed ingestion; the dispatcher executes
due schedules in the background.`,
		RunE: run,
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	deps, err := common.New(cfgFile, debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	dispatcher := scheduler.NewDispatcher(
		deps.Schedules,
		deps.Credentials,
		capture.NewScheduleRunner(deps.Service),
		deps.Logger,
		scheduler.Config{
			PollInterval:      deps.Config.Scheduler.PollInterval,
			RecoverySweepSpec: deps.Config.Scheduler.RecoverySweepSpec,
		},
		deps.Analyzer.Sweep,
	)

	server := api.NewServer(
		deps.Config.Server,
		api.Handlers{
			Captures:       api.NewCapturesHandler(deps.Service, deps.Runs, deps.Logger),
			RawLogs:        api.NewRawLogsHandler(deps.RawLogs, deps.Analyzer),
			Schedules:      api.NewSchedulesHandler(deps.Schedules, dispatcher.InFlight()),
			Communications: api.NewCommunicationsHandler(deps.Feed, deps.Ingestor, deps.Logger),
			Health:         api.NewHealthHandler(deps.DB, deps.Collector),
		},
		deps.Logger,
	)

	if err = dispatcher.Start(cmd.Context()); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-errCh:
		dispatcher.Stop()
		return err
	case sig := <-sigCh:
		deps.Logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = server.Stop(shutdownCtx); err != nil {
		deps.Logger.Error("server shutdown failed", "error", err)
	}
	dispatcher.Stop()

	if err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	return nil
}
