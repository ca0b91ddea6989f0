// Package models defines the core data structures used throughout the application.
package models

import "time"

// SearchKind discriminates the result type of a search query.
type SearchKind string

const (
	KindIssue       SearchKind = "issue"
	KindPullRequest SearchKind = "pull_request"
)

// SearchQuery is a pre-built GitHub search string plus the kind of result it yields.
type SearchQuery struct {
	Query string
	Kind  SearchKind
}

// NewSearchQuery creates a SearchQuery for the given kind
func NewSearchQuery(query string, kind SearchKind) SearchQuery {
	return SearchQuery{Query: query, Kind: kind}
}

// PageCursor is the continuation state reported by a paginated search.
// EndCursor is nil before the first request of a run.
type PageCursor struct {
	EndCursor   *string
	HasNextPage bool
}

// IssueRecord is the flat projection of a searched issue.
// Every field is always populated; missing source values are defaulted.
type IssueRecord struct {
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	Author           string   `json:"author"`
	Body             string   `json:"body"`
	Repository       string   `json:"repository"`
	RepositoryStars  int      `json:"repository_stars"`
	RepositoryAvatar string   `json:"repository_avatar"`
	Assignees        []string `json:"assignees"`
	Labels           []string `json:"issue_labels"`
	Comments         []string `json:"comments"`
	CommentURLs      []string `json:"comment_urls"`
	CloseReason      string   `json:"close_reason"`
	ClosePullRequest string   `json:"close_pull_request"`
	CloseAuthor      string   `json:"close_author"`
}

// PullRecord is the flat projection of a searched pull request.
type PullRecord struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Author          string   `json:"author"`
	Repository      string   `json:"repository"`
	Labels          []string `json:"labels"`
	Reviews         []string `json:"reviews"`
	ConnectedIssues []string `json:"connected_issues"`
	MergedBy        string   `json:"merged_by"`
	Merged          bool     `json:"merged"`
}

// Project is a persisted repository row keyed by its canonical URL.
type Project struct {
	ProjectID   string   `db:"project_id" json:"project_id"`
	ProjectLogo string   `db:"project_logo" json:"project_logo"`
	IssuesList  []string `db:"-" json:"issues_list"`
}

// Issue is a persisted issue row keyed by its canonical URL.
type Issue struct {
	IssueID             string `db:"issue_id" json:"issue_id"`
	ProjectID           string `db:"project_id" json:"project_id"`
	IssueTitle          string `db:"issue_title" json:"issue_title"`
	IssueDescription    string `db:"issue_description" json:"issue_description"`
	IssueBudget         int    `db:"issue_budget" json:"issue_budget"`
	IssueAssignee       string `db:"issue_assignee" json:"issue_assignee"`
	IssueLinkedPR       string `db:"issue_linked_pr" json:"issue_linked_pr"`
	IssueStatus         string `db:"issue_status" json:"issue_status"`
	ReviewStatus        string `db:"review_status" json:"review_status"`
	IssueBudgetApproved bool   `db:"issue_budget_approved" json:"issue_budget_approved"`
}

// Issue and pull request status values written by the poll cycle.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
	StatusMerged = "merged"
)

// IssueClosure carries the columns owned by the closed-issue write path.
// IssueTitle, IssueDescription and ProjectLogo are only written when the
// issue row does not exist yet.
type IssueClosure struct {
	IssueID       string
	ProjectID     string
	IssueAssignee string
	IssueLinkedPR string
	IssueStatus   string
	ReviewStatus  string

	IssueTitle       string
	IssueDescription string
	ProjectLogo      string
}

// Comment is a persisted comment row.
type Comment struct {
	CommentID string `db:"comment_id" json:"comment_id"`
	IssueID   string `db:"issue_id" json:"issue_id"`
	Creator   string `db:"creator" json:"creator"`
	Content   string `db:"content" json:"content"`
}

// PullRequest is a persisted pull request row.
type PullRequest struct {
	PullID          string   `db:"pull_id" json:"pull_id"`
	Title           string   `db:"title" json:"title"`
	Author          string   `db:"author" json:"author"`
	ProjectID       string   `db:"project_id" json:"project_id"`
	MergedBy        string   `db:"merged_by" json:"merged_by"`
	ConnectedIssues []string `db:"-" json:"connected_issues"`
	PullStatus      string   `db:"pull_status" json:"pull_status"`
}

// Window is the half-open time range a poll cycle searches over.
type Window struct {
	Start time.Time
	End   time.Time
}

// HourWindow returns the window covering the clock hour that contains now.
func HourWindow(now time.Time) Window {
	start := now.UTC().Truncate(time.Hour)
	return Window{Start: start, End: start.Add(time.Hour)}
}

// PaginationParams represents parameters for paginated queries
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPaginationParams creates a new PaginationParams with validated values.
// If page or pageSize are less than 1, they will be set to their default values.
func NewPaginationParams(page, pageSize int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}
	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
	}
}

// Offset returns the row offset for the page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	RunID          string        `json:"run_id"`
	OpenIssues     int           `json:"open_issues"`
	ClosedIssues   int           `json:"closed_issues"`
	CommentIssues  int           `json:"comment_issues"`
	Comments       int           `json:"comments"`
	PullRequests   int           `json:"pull_requests"`
	FlaggedRecords int           `json:"flagged_records"`
	Duration       time.Duration `json:"duration"`
}
