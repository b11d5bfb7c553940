// Command bmdscreen screens zebrafish dose-response experiments for BMD
// modelling feasibility and serves the stored results.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"bmdscreen/internal/config"
	"bmdscreen/internal/infrastructure"
	"bmdscreen/pkg/contracts"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bmdscreen",
	Short: "Benchmark-dose feasibility screening for zebrafish toxicity assays",
	Long: `bmdscreen reads per-well binary observations, derives composite endpoints,
removes unreliable plates and underpowered dose groups, and flags every
(chemical, endpoint) unit with a BMD feasibility code from 0 to 5.

Configuration is read from --config (or bmdscreen.yaml / configs/bmdscreen.yaml)
and overridden by BMDSCREEN_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = infrastructure.CloseLogFile()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, serveCmd, movementCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
