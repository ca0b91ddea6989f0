package fetcher

import (
	"fmt"
	"time"

	"issuesync/models"
)

// excluded is appended to every search.
const excluded = "-label:spam -label:invalid"

// Queries are the four searches of one poll cycle.
type Queries struct {
	OpenIssues    models.SearchQuery
	ClosedIssues  models.SearchQuery
	CommentIssues models.SearchQuery
	MergedPulls   models.SearchQuery
}

// BuildQueries builds the searches covering window.
func BuildQueries(window models.Window, issueLabel, prLabel string) Queries {
	span := fmt.Sprintf("%s..%s",
		window.Start.UTC().Format(time.RFC3339),
		window.End.UTC().Format(time.RFC3339))

	return Queries{
		OpenIssues: models.NewSearchQuery(
			fmt.Sprintf("label:%s is:issue is:open no:assignee created:%s %s", issueLabel, span, excluded),
			models.KindIssue),
		ClosedIssues: models.NewSearchQuery(
			fmt.Sprintf("label:%s is:issue is:closed updated:%s %s", issueLabel, span, excluded),
			models.KindIssue),
		CommentIssues: models.NewSearchQuery(
			fmt.Sprintf("label:%s is:issue is:open updated:%s %s", issueLabel, span, excluded),
			models.KindIssue),
		MergedPulls: models.NewSearchQuery(
			fmt.Sprintf("label:%s is:pr is:merged merged:%s review:approved %s", prLabel, span, excluded),
			models.KindPullRequest),
	}
}
