package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"issuesync/config"
	"issuesync/db"
	"issuesync/logger"
	"issuesync/output"
)

// Package-level shared dependencies, initialized before every command runs.
var (
	cfg *config.Config
	ui  *output.UI

	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "issuesync",
	Short: "Mirror labelled GitHub issues and pull requests into SQL",
	Long: `issuesync searches GitHub for labelled issues and merged pull requests
once an hour and keeps projects, issues, comments and pull requests in a
Postgres or MySQL database up to date.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initDeps,
}

// Execute is the main entry point called from main.go.
func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		if ui == nil {
			ui = output.New()
		}
		ui.Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file to read settings from")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func initDeps(cmd *cobra.Command, args []string) error {
	ui = output.New()

	cfg = config.NewConfig()
	if err := cfg.Load(envFile); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	return nil
}

// openStore connects to the configured database without starting the poller.
func openStore() (*db.DB, error) {
	database, err := db.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}
