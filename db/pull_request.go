package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"issuesync/logger"
	"issuesync/models"
)

// PullRequestExists reports whether a pull request row exists
func (db *DB) PullRequestExists(ctx context.Context, pullID string) (bool, error) {
	if pullID == "" {
		return false, fmt.Errorf("%w: pull request id cannot be empty", ErrInvalidInput)
	}
	q, _ := db.querier(ctx)
	return exists(ctx, q, "pull_requests", "pull_id", pullID)
}

// UpsertPullRequest stores a searched pull request. An existing row gets its
// merger, connected issues and status replaced.
func (db *DB) UpsertPullRequest(ctx context.Context, rec models.PullRecord) error {
	if rec.URL == "" {
		return fmt.Errorf("%w: pull request url cannot be empty", ErrInvalidInput)
	}

	status := models.StatusOpen
	if rec.Merged {
		status = models.StatusMerged
	}
	connected := encodeList(rec.ConnectedIssues)

	q, inTx := db.querier(ctx)
	found, err := exists(ctx, q, "pull_requests", "pull_id", rec.URL)
	if err != nil {
		return err
	}

	if !found {
		raced, err := insert(ctx, q, inTx, `
			INSERT INTO pull_requests (pull_id, title, author, project_id, merged_by, connected_issues, pull_status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.URL, rec.Title, rec.Author, rec.Repository, rec.MergedBy, connected, status)
		if err != nil {
			return fmt.Errorf("failed to insert pull request %s: %w", rec.URL, err)
		}
		if !raced {
			logger.Debug("Pull request stored",
				zap.String("pull_id", rec.URL),
				zap.Int("connected_issues", len(rec.ConnectedIssues)))
			return nil
		}
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE pull_requests
		SET merged_by = ?, connected_issues = ?, pull_status = ?
		WHERE pull_id = ?`),
		rec.MergedBy, connected, status, rec.URL,
	); err != nil {
		return fmt.Errorf("failed to update pull request %s: %w", rec.URL, err)
	}
	return nil
}
