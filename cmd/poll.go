package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"issuesync/models"
	"issuesync/service"
)

var pollStart string

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run a single poll cycle and exit",
	Long: `Run one poll cycle. Without --start the clock hour that ended most
recently is searched; with --start the hour containing that time is.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		window, err := parseWindow(pollStart)
		if err != nil {
			return err
		}

		svc, err := service.NewService(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		stats, err := svc.Poll(cmd.Context(), window)
		if err != nil {
			return err
		}
		ui.Stats(stats)
		return nil
	},
}

func init() {
	pollCmd.Flags().StringVar(&pollStart, "start", "", "Hour to poll, as RFC3339 or 2006-01-02T15 (UTC)")
	rootCmd.AddCommand(pollCmd)
}

// parseWindow returns nil for an empty value, meaning the previous hour.
func parseWindow(raw string) (*models.Window, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			w := models.HourWindow(t)
			return &w, nil
		}
	}
	return nil, fmt.Errorf("invalid --start %q: want RFC3339 or 2006-01-02T15", raw)
}
