// Package scheduler implements the headless schedule dispatcher command.
package scheduler

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/courtcapture/cmd/common"
	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/scheduler"
)

// Command returns the scheduler command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the schedule dispatcher",
		Long: `Run the schedule dispatcher without the HTTP API. Due schedules
are polled and executed until the process is interrupted; the nightly
recovery sweep runs on its cron spec.`,
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

	if err = dispatcher.Start(cmd.Context()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	deps.Logger.Info("shutting down", "signal", sig.String())
	dispatcher.Stop()
	return nil
}
