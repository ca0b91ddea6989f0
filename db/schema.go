package db

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"issuesync/logger"
)

// schema creates the four tables. The DDL is shared by Postgres and MySQL.
// List columns (issues_list, connected_issues) hold JSON arrays of URLs.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		project_id VARCHAR(255) NOT NULL PRIMARY KEY,
		project_logo TEXT NOT NULL,
		issues_list TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS issues (
		issue_id VARCHAR(255) NOT NULL PRIMARY KEY,
		project_id VARCHAR(255) NOT NULL,
		issue_title TEXT NOT NULL,
		issue_description TEXT NOT NULL,
		issue_budget INTEGER NOT NULL,
		issue_assignee VARCHAR(255) NOT NULL,
		issue_linked_pr VARCHAR(255) NOT NULL,
		issue_status VARCHAR(32) NOT NULL,
		review_status VARCHAR(32) NOT NULL,
		issue_budget_approved BOOLEAN NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects (project_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		comment_id VARCHAR(512) NOT NULL PRIMARY KEY,
		issue_id VARCHAR(255) NOT NULL,
		creator VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		FOREIGN KEY (issue_id) REFERENCES issues (issue_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pull_requests (
		pull_id VARCHAR(255) NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		author VARCHAR(255) NOT NULL,
		project_id VARCHAR(255) NOT NULL,
		merged_by VARCHAR(255) NOT NULL,
		connected_issues TEXT NOT NULL,
		pull_status VARCHAR(32) NOT NULL
	)`,
}

// EnsureSchema creates any missing table. It is safe to run repeatedly.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	logger.Info("Database schema ensured", zap.Int("tables", len(schema)))
	return nil
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

// decodeList reads a JSON list column. Empty or malformed values decode to
// an empty list.
func decodeList(raw string) []string {
	list := []string{}
	if raw == "" {
		return list
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}

// mergeList appends each element of extra missing from list.
func mergeList(list, extra []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		seen[v] = struct{}{}
	}
	changed := false
	for _, v := range extra {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		list = append(list, v)
		changed = true
	}
	return list, changed
}
