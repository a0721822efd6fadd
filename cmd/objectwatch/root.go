package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"objectwatch/internal/config"
	"objectwatch/internal/logging"
)

var (
	configPath string
	schemaPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "objectwatch",
	Short: "Multi-object presence and movement monitor",
	Long: "objectwatch tracks every instance of one object class in a detector stream " +
		"and raises movement and missing alerts.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd, os.Stderr)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration YAML (defaults built in)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(scenariosCmd)
}

func setupLogging(cmd *cobra.Command, w io.Writer) error {
	log, err := logging.NewWithOptions(w, logLevel, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, log))
	return nil
}

// loadConfig reads --config, or starts from the defaults with environment
// overrides when no file is given.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath, schemaPath)
	}
	cfg := config.Default()
	config.ApplyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
