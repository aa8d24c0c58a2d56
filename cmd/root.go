// Package cmd implements the command-line interface of the capture
// service.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cmdcapture "github.com/jonesrussell/courtcapture/cmd/capture"
	cmdhttpd "github.com/jonesrussell/courtcapture/cmd/httpd"
	cmdscheduler "github.com/jonesrussell/courtcapture/cmd/scheduler"
)

var rootCmd = &cobra.Command{
	Use:   "courtcapture",
	Short: "Court record capture and recovery service",
	Long: `courtcapture retrieves lawsuit dockets, hearings, pending notices and
case timelines from court portals, keeps an append-only raw log of every
retrieved item and synchronizes normalized records with the business
store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// Load .env before anything reads the environment.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (optional; environment variables otherwise)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("courtcapture version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(cmdcapture.Command())
	rootCmd.AddCommand(cmdhttpd.Command())
	rootCmd.AddCommand(cmdscheduler.Command())
}
