package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var approveRevoke bool

var approveCmd = &cobra.Command{
	Use:   "approve <issue-url> <budget>",
	Short: "Set an issue's budget and mark it approved",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		budget, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid budget %q: %w", args[1], err)
		}

		database, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		if err := database.ApproveBudget(cmd.Context(), args[0], budget, !approveRevoke); err != nil {
			return err
		}
		if approveRevoke {
			ui.Success("Budget %d set on %s, approval revoked", budget, args[0])
		} else {
			ui.Success("Budget %d approved for %s", budget, args[0])
		}
		return nil
	},
}

func init() {
	approveCmd.Flags().BoolVar(&approveRevoke, "revoke", false, "Set the budget but mark it unapproved")
	rootCmd.AddCommand(approveCmd)
}
