package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/config"
	"github.com/fallrisk/super-serial/internal/metric"
	"github.com/fallrisk/super-serial/internal/utils"
)

// app holds what every command shares. It is built once in
// PersistentPreRunE.
var app struct {
	config  *config.Config
	logger  *zap.Logger
	metrics *metric.Registry
}

var rootCmd = &cobra.Command{
	Use:   "superserial",
	Short: "A serial terminal with saved connection profiles",
	Long: `superserial opens serial ports interactively, keeps named connection
profiles and can expose the link over HTTP and WebSocket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}

		logger, err := utils.NewLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		app.config = cfg
		app.logger = logger
		app.metrics = metric.NewRegistry()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.logger != nil {
			utils.CloseLogger(app.logger)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./config.yaml or ~/.super-serial/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level")
}
