package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"issuesync/logger"
	"issuesync/models"
)

// CommentExists reports whether a comment row exists
func (db *DB) CommentExists(ctx context.Context, commentID string) (bool, error) {
	if commentID == "" {
		return false, fmt.Errorf("%w: comment id cannot be empty", ErrInvalidInput)
	}
	q, _ := db.querier(ctx)
	return exists(ctx, q, "comments", "comment_id", commentID)
}

// UpsertComment stores a comment of an existing issue, replacing the creator
// and content of a comment seen before.
func (db *DB) UpsertComment(ctx context.Context, comment models.Comment) error {
	if comment.CommentID == "" || comment.IssueID == "" {
		return fmt.Errorf("%w: comment id and issue id cannot be empty", ErrInvalidInput)
	}

	q, inTx := db.querier(ctx)
	parent, err := exists(ctx, q, "issues", "issue_id", comment.IssueID)
	if err != nil {
		return err
	}
	if !parent {
		return fmt.Errorf("%w: %s", ErrIssueNotFound, comment.IssueID)
	}

	found, err := exists(ctx, q, "comments", "comment_id", comment.CommentID)
	if err != nil {
		return err
	}

	if !found {
		raced, err := insert(ctx, q, inTx, `
			INSERT INTO comments (comment_id, issue_id, creator, content)
			VALUES (?, ?, ?, ?)`,
			comment.CommentID, comment.IssueID, comment.Creator, comment.Content)
		if err != nil {
			return fmt.Errorf("failed to insert comment %s: %w", comment.CommentID, err)
		}
		if !raced {
			logger.Debug("Comment stored", zap.String("comment_id", comment.CommentID))
			return nil
		}
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE comments
		SET creator = ?, content = ?
		WHERE comment_id = ?`),
		comment.Creator, comment.Content, comment.CommentID,
	); err != nil {
		return fmt.Errorf("failed to update comment %s: %w", comment.CommentID, err)
	}
	return nil
}

// ListComments returns the comments of an issue ordered by id
func (db *DB) ListComments(ctx context.Context, issueID string) ([]models.Comment, error) {
	if issueID == "" {
		return nil, fmt.Errorf("%w: issue id cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, `
		SELECT comment_id, issue_id, creator, content
		FROM comments
		WHERE issue_id = ?
		ORDER BY comment_id`)
	if err != nil {
		return nil, err
	}

	comments := []models.Comment{}
	if err := stmt.SelectContext(ctx, &comments, issueID); err != nil {
		return nil, fmt.Errorf("failed to list comments of issue %s: %w", issueID, err)
	}
	return comments, nil
}
