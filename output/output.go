// Package output renders CLI results as colored messages and tables.
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"issuesync/github"
	"issuesync/models"
)

// UI provides colored output for the CLI.
type UI struct {
	Out    io.Writer
	ErrOut io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// StatusColor returns the string colored by issue or pull request status.
func StatusColor(status string) string {
	switch strings.ToLower(status) {
	case models.StatusOpen:
		return green(status)
	case models.StatusMerged:
		return cyan(status)
	case models.StatusClosed:
		return red(status)
	default:
		return status
	}
}

// LabelsColor joins labels, highlighting the negative ones.
func LabelsColor(labels, negative []string) string {
	bad := make(map[string]struct{}, len(negative))
	for _, l := range negative {
		bad[l] = struct{}{}
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := bad[l]; ok {
			out = append(out, yellow(l))
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, ", ")
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Projects prints the project table.
func (u *UI) Projects(projects []models.Project) error {
	if len(projects) == 0 {
		u.Info("No projects stored yet")
		return nil
	}

	table := u.Table([]string{"Project", "Logo", "Issues"})
	for _, p := range projects {
		if err := table.Append([]string{
			cyan(p.ProjectID),
			p.ProjectLogo,
			strconv.Itoa(len(p.IssuesList)),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Issues prints the issue table.
func (u *UI) Issues(issues []models.Issue) error {
	if len(issues) == 0 {
		u.Info("No issues found")
		return nil
	}

	table := u.Table([]string{"Issue", "Title", "Status", "Assignee", "Linked PR", "Budget"})
	for _, i := range issues {
		budget := strconv.Itoa(i.IssueBudget)
		if i.IssueBudgetApproved {
			budget = green(budget)
		}
		if err := table.Append([]string{
			cyan(i.IssueID),
			truncate(i.IssueTitle, 50),
			StatusColor(i.IssueStatus),
			i.IssueAssignee,
			i.IssueLinkedPR,
			budget,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Hits prints REST search results; negative returns the flagged labels of a hit.
func (u *UI) Hits(hits []github.IssueHit, negative func([]string) []string) error {
	if len(hits) == 0 {
		u.Info("No matching issues")
		return nil
	}

	table := u.Table([]string{"URL", "Title", "State", "Author", "Labels"})
	for _, h := range hits {
		url := h.URL
		if len(negative(h.Labels)) > 0 {
			url = red(url)
		}
		if err := table.Append([]string{
			url,
			truncate(h.Title, 50),
			StatusColor(h.State),
			h.Author,
			LabelsColor(h.Labels, negative(h.Labels)),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Stats prints the summary of a poll run.
func (u *UI) Stats(stats *models.CycleStats) {
	u.Success("Poll run %s finished in %s", cyan(stats.RunID), stats.Duration.Round(1e6))
	u.Info("open issues: %d, closed issues: %d, commented issues: %d (%d comments), pull requests: %d",
		stats.OpenIssues, stats.ClosedIssues, stats.CommentIssues, stats.Comments, stats.PullRequests)
	if stats.FlaggedRecords > 0 {
		u.Warning("%d records carry spam/invalid labels", stats.FlaggedRecords)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
