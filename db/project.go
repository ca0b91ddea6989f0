package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"issuesync/logger"
	"issuesync/models"
)

type projectRow struct {
	ProjectID   string `db:"project_id"`
	ProjectLogo string `db:"project_logo"`
	IssuesList  string `db:"issues_list"`
}

func (r projectRow) model() models.Project {
	return models.Project{
		ProjectID:   r.ProjectID,
		ProjectLogo: r.ProjectLogo,
		IssuesList:  decodeList(r.IssuesList),
	}
}

// ProjectExists reports whether a project row exists
func (db *DB) ProjectExists(ctx context.Context, projectID string) (bool, error) {
	if projectID == "" {
		return false, fmt.Errorf("%w: project id cannot be empty", ErrInvalidInput)
	}
	q, _ := db.querier(ctx)
	return exists(ctx, q, "projects", "project_id", projectID)
}

// UpsertProject inserts a project, or adds the issue ids it does not list yet
// and fills in a previously empty logo.
func (db *DB) UpsertProject(ctx context.Context, project models.Project) error {
	if project.ProjectID == "" {
		return fmt.Errorf("%w: project id cannot be empty", ErrInvalidInput)
	}

	q, inTx := db.querier(ctx)
	found, err := exists(ctx, q, "projects", "project_id", project.ProjectID)
	if err != nil {
		return err
	}

	if !found {
		issues, _ := mergeList([]string{}, project.IssuesList)
		raced, err := insert(ctx, q, inTx, `
			INSERT INTO projects (project_id, project_logo, issues_list)
			VALUES (?, ?, ?)`,
			project.ProjectID, project.ProjectLogo, encodeList(issues))
		if err != nil {
			return fmt.Errorf("failed to insert project %s: %w", project.ProjectID, err)
		}
		if !raced {
			logger.Debug("Project stored", zap.String("project_id", project.ProjectID))
			return nil
		}
	}

	return updateProject(ctx, q, inTx, project)
}

func updateProject(ctx context.Context, q sqlx.ExtContext, inTx bool, project models.Project) error {
	query := `SELECT project_id, project_logo, issues_list FROM projects WHERE project_id = ?`
	if inTx {
		query += ` FOR UPDATE`
	}

	var row projectRow
	if err := sqlx.GetContext(ctx, q, &row, q.Rebind(query), project.ProjectID); err != nil {
		return fmt.Errorf("failed to read project %s: %w", project.ProjectID, err)
	}

	issues, changed := mergeList(decodeList(row.IssuesList), project.IssuesList)
	logo := row.ProjectLogo
	if logo == "" && project.ProjectLogo != "" {
		logo = project.ProjectLogo
		changed = true
	}
	if !changed {
		return nil
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE projects
		SET project_logo = ?, issues_list = ?
		WHERE project_id = ?`),
		logo, encodeList(issues), project.ProjectID,
	); err != nil {
		return fmt.Errorf("failed to update project %s: %w", project.ProjectID, err)
	}

	logger.Debug("Project updated",
		zap.String("project_id", project.ProjectID),
		zap.Int("issues", len(issues)))
	return nil
}

// ListProjects returns every project ordered by id
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	stmt, err := db.getStmt(ctx, `SELECT project_id, project_logo, issues_list FROM projects ORDER BY project_id`)
	if err != nil {
		return nil, err
	}

	var rows []projectRow
	if err := stmt.SelectContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.model())
	}
	return projects, nil
}
