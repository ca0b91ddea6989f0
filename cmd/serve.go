package main

import (
	"github.com/spf13/cobra"

	"issuesync/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll GitHub on the configured interval until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.NewService(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				ui.Warning("Error during shutdown: %v", err)
			}
		}()

		ui.Info("Polling every %s, press Ctrl-C to stop", cfg.PollInterval)
		return svc.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
