// Package cli provides the command-line interface for confab.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/confab-dev/confab-go/internal/config"
	"github.com/confab-dev/confab-go/internal/confab"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and sync client
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	syncClient *confab.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "confab",
	Short: "Confab realtime discussion client",
	Long: `Confab is a client for the Confab realtime discussion platform.

It maintains a live session to the event stream (joining and leaving
discussions, following messages and turns) and tracks long-running
server-side jobs such as file ingestion and batch extraction.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		syncClient = confab.New(cfg, confab.Options{Logger: logger})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if syncClient != nil {
			syncClient.Close()
		}
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(trackCmd)
}
