package main

import (
	"github.com/spf13/cobra"

	"issuesync/models"
)

var (
	listProject  string
	listPage     int
	listPageSize int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects or issues",
}

var listProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		projects, err := database.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		return ui.Projects(projects)
	},
}

var listIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List stored issues, optionally for one project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		issues, err := database.ListIssues(cmd.Context(), listProject,
			models.NewPaginationParams(listPage, listPageSize))
		if err != nil {
			return err
		}
		return ui.Issues(issues)
	},
}

func init() {
	listIssuesCmd.Flags().StringVarP(&listProject, "project", "p", "", "Project URL to filter by")
	listIssuesCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listIssuesCmd.Flags().IntVar(&listPageSize, "page-size", 50, "Issues per page")

	listCmd.AddCommand(listProjectsCmd, listIssuesCmd)
	rootCmd.AddCommand(listCmd)
}
