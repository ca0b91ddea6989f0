package main

import (
	"strings"

	"github.com/spf13/cobra"

	"issuesync/flatten"
	"issuesync/github"
)

var searchMaxPages int

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	Short:   "Run a GitHub issue search through the REST API and print the hits",
	Example: `  issuesync search "label:hacktoberfest is:issue is:open no:assignee"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := github.NewRESTSearch(cfg.GitHubToken, cfg.APIURL, cfg.RequestTimeout)
		if err != nil {
			return err
		}

		hits, err := client.SearchIssues(cmd.Context(), strings.Join(args, " "), searchMaxPages)
		if err != nil {
			return err
		}
		return ui.Hits(hits, flatten.NegativeLabels)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchMaxPages, "max-pages", 1, "Maximum result pages to fetch")
	rootCmd.AddCommand(searchCmd)
}
