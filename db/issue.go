package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"issuesync/logger"
	"issuesync/models"
)

const issueColumns = `issue_id, project_id, issue_title, issue_description, issue_budget,
	issue_assignee, issue_linked_pr, issue_status, review_status, issue_budget_approved`

// IssueExists reports whether an issue row exists
func (db *DB) IssueExists(ctx context.Context, issueID string) (bool, error) {
	if issueID == "" {
		return false, fmt.Errorf("%w: issue id cannot be empty", ErrInvalidInput)
	}
	q, _ := db.querier(ctx)
	return exists(ctx, q, "issues", "issue_id", issueID)
}

// UpsertIssue stores a searched issue. The owning project is created or
// updated first. An existing issue only gets its title and description
// refreshed.
func (db *DB) UpsertIssue(ctx context.Context, rec models.IssueRecord) error {
	if rec.URL == "" || rec.Repository == "" {
		return fmt.Errorf("%w: issue url and repository cannot be empty", ErrInvalidInput)
	}

	if err := db.UpsertProject(ctx, models.Project{
		ProjectID:   rec.Repository,
		ProjectLogo: rec.RepositoryAvatar,
		IssuesList:  []string{rec.URL},
	}); err != nil {
		return err
	}

	q, inTx := db.querier(ctx)
	found, err := exists(ctx, q, "issues", "issue_id", rec.URL)
	if err != nil {
		return err
	}

	if !found {
		raced, err := insertIssue(ctx, q, inTx, models.Issue{
			IssueID:          rec.URL,
			ProjectID:        rec.Repository,
			IssueTitle:       rec.Title,
			IssueDescription: rec.Body,
			IssueStatus:      models.StatusOpen,
		})
		if err != nil {
			return err
		}
		if !raced {
			logger.Debug("Issue stored", zap.String("issue_id", rec.URL))
			return nil
		}
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE issues
		SET issue_title = ?, issue_description = ?
		WHERE issue_id = ?`),
		rec.Title, rec.Body, rec.URL,
	); err != nil {
		return fmt.Errorf("failed to update issue %s: %w", rec.URL, err)
	}
	return nil
}

// UpdateIssueClosure records who closed an issue and through which pull
// request. An existing issue only has its closure columns touched; a
// missing issue (and project) is created first.
func (db *DB) UpdateIssueClosure(ctx context.Context, closure models.IssueClosure) error {
	if closure.IssueID == "" || closure.ProjectID == "" {
		return fmt.Errorf("%w: issue id and project id cannot be empty", ErrInvalidInput)
	}

	q, inTx := db.querier(ctx)
	found, err := exists(ctx, q, "issues", "issue_id", closure.IssueID)
	if err != nil {
		return err
	}

	if !found {
		if err := db.UpsertProject(ctx, models.Project{
			ProjectID:   closure.ProjectID,
			ProjectLogo: closure.ProjectLogo,
			IssuesList:  []string{closure.IssueID},
		}); err != nil {
			return err
		}

		raced, err := insertIssue(ctx, q, inTx, models.Issue{
			IssueID:          closure.IssueID,
			ProjectID:        closure.ProjectID,
			IssueTitle:       closure.IssueTitle,
			IssueDescription: closure.IssueDescription,
			IssueAssignee:    closure.IssueAssignee,
			IssueLinkedPR:    closure.IssueLinkedPR,
			IssueStatus:      closure.IssueStatus,
			ReviewStatus:     closure.ReviewStatus,
		})
		if err != nil {
			return err
		}
		if !raced {
			return nil
		}
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE issues
		SET issue_assignee = ?, issue_linked_pr = ?, issue_status = ?, review_status = ?
		WHERE issue_id = ?`),
		closure.IssueAssignee, closure.IssueLinkedPR, closure.IssueStatus, closure.ReviewStatus, closure.IssueID,
	); err != nil {
		return fmt.Errorf("failed to update closure of issue %s: %w", closure.IssueID, err)
	}

	logger.Debug("Issue closure updated",
		zap.String("issue_id", closure.IssueID),
		zap.String("linked_pr", closure.IssueLinkedPR))
	return nil
}

// ApproveBudget sets the budget of an existing issue
func (db *DB) ApproveBudget(ctx context.Context, issueID string, budget int, approved bool) error {
	if issueID == "" {
		return fmt.Errorf("%w: issue id cannot be empty", ErrInvalidInput)
	}
	if budget < 0 {
		return fmt.Errorf("%w: budget cannot be negative", ErrInvalidInput)
	}

	q, _ := db.querier(ctx)
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE issues
		SET issue_budget = ?, issue_budget_approved = ?
		WHERE issue_id = ?`),
		budget, approved, issueID,
	)
	if err != nil {
		return fmt.Errorf("failed to approve budget of issue %s: %w", issueID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to approve budget of issue %s: %w", issueID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
	}

	logger.Info("Issue budget approved",
		zap.String("issue_id", issueID),
		zap.Int("budget", budget),
		zap.Bool("approved", approved))
	return nil
}

// GetIssue retrieves an issue by id
func (db *DB) GetIssue(ctx context.Context, issueID string) (*models.Issue, error) {
	if issueID == "" {
		return nil, fmt.Errorf("%w: issue id cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, `SELECT `+issueColumns+` FROM issues WHERE issue_id = ?`)
	if err != nil {
		return nil, err
	}

	var issue models.Issue
	if err := stmt.GetContext(ctx, &issue, issueID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
		}
		return nil, fmt.Errorf("failed to get issue %s: %w", issueID, err)
	}
	return &issue, nil
}

// ListIssues returns a page of issues, optionally restricted to one project
func (db *DB) ListIssues(ctx context.Context, projectID string, page models.PaginationParams) ([]models.Issue, error) {
	var (
		stmt *sqlx.Stmt
		err  error
		args []interface{}
	)
	if projectID == "" {
		stmt, err = db.getStmt(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY issue_id LIMIT ? OFFSET ?`)
		args = []interface{}{page.PageSize, page.Offset()}
	} else {
		stmt, err = db.getStmt(ctx, `SELECT `+issueColumns+` FROM issues WHERE project_id = ? ORDER BY issue_id LIMIT ? OFFSET ?`)
		args = []interface{}{projectID, page.PageSize, page.Offset()}
	}
	if err != nil {
		return nil, err
	}

	issues := []models.Issue{}
	if err := stmt.SelectContext(ctx, &issues, args...); err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return issues, nil
}

func insertIssue(ctx context.Context, q sqlx.ExtContext, inTx bool, issue models.Issue) (bool, error) {
	raced, err := insert(ctx, q, inTx, `
		INSERT INTO issues (`+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.IssueID, issue.ProjectID, issue.IssueTitle, issue.IssueDescription, issue.IssueBudget,
		issue.IssueAssignee, issue.IssueLinkedPR, issue.IssueStatus, issue.ReviewStatus, issue.IssueBudgetApproved,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert issue %s: %w", issue.IssueID, err)
	}
	return raced, nil
}
