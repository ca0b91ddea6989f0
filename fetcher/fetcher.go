package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"issuesync/flatten"
	"issuesync/github"
	"issuesync/lock"
	"issuesync/logger"
	"issuesync/models"
	"issuesync/paginator"
)

// ErrSkipped is returned when another run holds the run lock.
var ErrSkipped = errors.New("poll run skipped")

// Store defines the database operations needed by the fetcher
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	UpsertIssue(ctx context.Context, rec models.IssueRecord) error
	UpdateIssueClosure(ctx context.Context, closure models.IssueClosure) error
	UpsertComment(ctx context.Context, comment models.Comment) error
	UpsertPullRequest(ctx context.Context, rec models.PullRecord) error
}

// LogoSource resolves a repository's logo when the search omitted it
type LogoSource interface {
	ProjectLogo(ctx context.Context, repoURL string) (string, error)
}

// Options tune a poll cycle
type Options struct {
	IssueLabel string
	PRLabel    string
	MaxPages   int
	PageSize   int
	LockTTL    time.Duration
}

// Fetcher runs poll cycles: search, flatten, then upsert in one transaction.
type Fetcher struct {
	source github.Poster
	store  Store
	logos  LogoSource
	locker lock.Locker
	opts   Options

	now      func() time.Time
	newRunID func() string
}

// New creates a Fetcher. logos may be nil; locker nil means no locking.
func New(source github.Poster, store Store, logos LogoSource, locker lock.Locker, opts Options) *Fetcher {
	if locker == nil {
		locker = lock.Noop{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &Fetcher{
		source:   source,
		store:    store,
		logos:    logos,
		locker:   locker,
		opts:     opts,
		now:      time.Now,
		newRunID: func() string { return ulid.Make().String() },
	}
}

// Run polls the clock hour that ended most recently.
func (f *Fetcher) Run(ctx context.Context) (*models.CycleStats, error) {
	return f.RunWindow(ctx, models.HourWindow(f.now().Add(-time.Hour)))
}

// RunWindow polls window. Nothing is written unless every search succeeds.
func (f *Fetcher) RunWindow(ctx context.Context, window models.Window) (*models.CycleStats, error) {
	started := f.now()
	stats := &models.CycleStats{RunID: f.newRunID()}
	log := logger.WithRun(stats.RunID)

	release, err := f.locker.Acquire(ctx, stats.RunID, f.opts.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			log.Warn("Another poll run holds the lock, skipping")
			return nil, fmt.Errorf("%w: %v", ErrSkipped, err)
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	queries := BuildQueries(window, f.opts.IssueLabel, f.opts.PRLabel)
	log.Info("Starting poll run",
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End))

	open, err := f.issues(ctx, github.OpenIssues, queries.OpenIssues)
	if err != nil {
		return nil, err
	}
	closed, err := f.issues(ctx, github.ClosedIssues, queries.ClosedIssues)
	if err != nil {
		return nil, err
	}
	commented, err := f.issues(ctx, github.IssueComments, queries.CommentIssues)
	if err != nil {
		return nil, err
	}
	pulls, err := paginator.New(f.source, github.MergedPullRequests, flatten.Pull, f.opts.MaxPages).
		WithPageSize(f.opts.PageSize).
		Run(ctx, queries.MergedPulls)
	if err != nil {
		return nil, err
	}

	open = usableIssues(log, open)
	closed = usableIssues(log, closed)
	commented = usableIssues(log, commented)
	pulls = usablePulls(log, pulls)

	f.fillLogos(ctx, log, open, closed, commented)

	for _, recs := range [][]models.IssueRecord{open, closed, commented} {
		for _, rec := range recs {
			if flatten.IsFlagged(rec.Labels) {
				stats.FlaggedRecords++
			}
		}
	}
	for _, rec := range pulls {
		if flatten.IsFlagged(rec.Labels) {
			stats.FlaggedRecords++
		}
	}

	err = f.store.WithTx(ctx, func(ctx context.Context) error {
		for _, rec := range open {
			if err := f.store.UpsertIssue(ctx, rec); err != nil {
				return err
			}
			stats.OpenIssues++
		}

		for _, rec := range closed {
			if err := f.store.UpdateIssueClosure(ctx, Closure(rec)); err != nil {
				return err
			}
			stats.ClosedIssues++
		}

		for _, rec := range commented {
			if err := f.store.UpsertIssue(ctx, rec); err != nil {
				return err
			}
			for i, body := range rec.Comments {
				var commentURL string
				if i < len(rec.CommentURLs) {
					commentURL = rec.CommentURLs[i]
				}
				if commentURL == "" {
					log.Warn("Skipping comment without url", zap.String("issue_id", rec.URL))
					continue
				}
				if err := f.store.UpsertComment(ctx, Comment(rec.URL, commentURL, body)); err != nil {
					return err
				}
				stats.Comments++
			}
			stats.CommentIssues++
		}

		for _, rec := range pulls {
			if err := f.store.UpsertPullRequest(ctx, rec); err != nil {
				return err
			}
			stats.PullRequests++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store poll run %s: %w", stats.RunID, err)
	}

	stats.Duration = f.now().Sub(started)
	log.Info("Poll run complete",
		zap.Int("open_issues", stats.OpenIssues),
		zap.Int("closed_issues", stats.ClosedIssues),
		zap.Int("comment_issues", stats.CommentIssues),
		zap.Int("comments", stats.Comments),
		zap.Int("pull_requests", stats.PullRequests),
		zap.Int("flagged_records", stats.FlaggedRecords),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

func (f *Fetcher) issues(ctx context.Context, tmpl github.Template, q models.SearchQuery) ([]models.IssueRecord, error) {
	return paginator.New(f.source, tmpl, flatten.Issue, f.opts.MaxPages).
		WithPageSize(f.opts.PageSize).
		Run(ctx, q)
}

// usableIssues drops records that have no natural key.
func usableIssues(log *zap.Logger, recs []models.IssueRecord) []models.IssueRecord {
	out := recs[:0]
	for _, rec := range recs {
		if rec.URL == "" || rec.Repository == "" {
			log.Warn("Skipping issue without url", zap.String("title", rec.Title))
			continue
		}
		out = append(out, rec)
	}
	return out
}

func usablePulls(log *zap.Logger, recs []models.PullRecord) []models.PullRecord {
	out := recs[:0]
	for _, rec := range recs {
		if rec.URL == "" {
			log.Warn("Skipping pull request without url", zap.String("title", rec.Title))
			continue
		}
		out = append(out, rec)
	}
	return out
}

// fillLogos looks up missing repository avatars, once per repository.
// Lookup failures leave the logo empty.
func (f *Fetcher) fillLogos(ctx context.Context, log *zap.Logger, groups ...[]models.IssueRecord) {
	if f.logos == nil {
		return
	}

	known := map[string]string{}
	for _, recs := range groups {
		for _, rec := range recs {
			if rec.RepositoryAvatar != "" {
				known[rec.Repository] = rec.RepositoryAvatar
			}
		}
	}

	for _, recs := range groups {
		for i := range recs {
			if recs[i].RepositoryAvatar != "" {
				continue
			}
			logo, ok := known[recs[i].Repository]
			if !ok {
				var err error
				logo, err = f.logos.ProjectLogo(ctx, recs[i].Repository)
				if err != nil {
					log.Warn("Project logo lookup failed",
						zap.String("project_id", recs[i].Repository),
						zap.Error(err))
				}
				known[recs[i].Repository] = logo
			}
			recs[i].RepositoryAvatar = logo
		}
	}
}

// Closure maps a closed issue onto the columns of the closed-issue write path.
func Closure(rec models.IssueRecord) models.IssueClosure {
	assignee := rec.CloseAuthor
	if assignee == "" && len(rec.Assignees) > 0 {
		assignee = rec.Assignees[0]
	}
	return models.IssueClosure{
		IssueID:          rec.URL,
		ProjectID:        rec.Repository,
		IssueAssignee:    assignee,
		IssueLinkedPR:    rec.ClosePullRequest,
		IssueStatus:      models.StatusClosed,
		ReviewStatus:     rec.CloseReason,
		IssueTitle:       rec.Title,
		IssueDescription: rec.Body,
		ProjectLogo:      rec.RepositoryAvatar,
	}
}

// Comment turns a flattened "author: body" string into a row keyed by the
// comment's own URL.
func Comment(issueURL, commentURL, flat string) models.Comment {
	creator, content, found := strings.Cut(flat, ": ")
	if !found {
		creator, content = "", flat
	}
	return models.Comment{
		CommentID: commentURL,
		IssueID:   issueURL,
		Creator:   creator,
		Content:   content,
	}
}
