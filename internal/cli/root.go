// Package cli provides the exporter command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	logLevel string

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Export tabular data to paginated PDF documents",
	Long: `Exporter turns rows from JSON, CSV, XLSX or XLS files into formatted PDF
tables. Large inputs are split into chunks and delivered as a zip archive.

Settings not given as flags come from the environment (EXPORT_*, OUTPUT_URI,
TEMPORAL_*), the same variables the api and worker read.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		lvl := cfg.Log.Level
		if logLevel != "" {
			lvl = logLevel
		}
		log = config.NewLogger(lvl)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd)
}
