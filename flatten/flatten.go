// Package flatten turns decoded search nodes into fully defaulted flat records.
// Every function here is pure and total: no input makes them fail.
package flatten

import (
	"strings"

	"issuesync/github"
	"issuesync/models"
)

// DefaultNegativeLabels are the labels that mark a record as suspicious.
var DefaultNegativeLabels = []string{"spam", "invalid"}

const (
	closedEvent    = "ClosedEvent"
	connectedEvent = "ConnectedEvent"
	pullRequest    = "PullRequest"
	approved       = "APPROVED"
)

// Issue flattens an issue node.
func Issue(item github.RawItem) models.IssueRecord {
	rec := models.IssueRecord{
		Title:     item.Title,
		URL:       item.URL,
		Author:    login(item.Author),
		Body:      item.Body,
		Assignees: logins(item.Assignees.All()),
		Labels:    labelNames(item.Labels),
	}
	rec.Comments, rec.CommentURLs = comments(item.Comments)

	if repo := item.Repository; repo != nil {
		rec.Repository = repo.URL
		if repo.Stargazers != nil {
			rec.RepositoryStars = repo.Stargazers.TotalCount
		}
		if repo.Owner != nil {
			rec.RepositoryAvatar = repo.Owner.AvatarURL
		}
	}
	if rec.Repository == "" {
		rec.Repository = github.RepoURLFromItemURL(item.URL)
	}

	rec.CloseReason, rec.ClosePullRequest, rec.CloseAuthor = closure(item.TimelineItems)
	return rec
}

// Pull flattens a pull request node.
func Pull(item github.RawItem) models.PullRecord {
	rec := models.PullRecord{
		Title:           item.Title,
		URL:             item.URL,
		Author:          login(item.Author),
		Labels:          labelNames(item.Labels),
		Reviews:         []string{},
		ConnectedIssues: []string{},
		MergedBy:        login(item.MergedBy),
		Merged:          item.Merged || item.MergedAt != nil,
	}

	if item.Repository != nil {
		rec.Repository = item.Repository.URL
	}
	if rec.Repository == "" {
		rec.Repository = github.RepoURLFromItemURL(item.URL)
	}

	for _, r := range item.Reviews.All() {
		if r.State != "" && r.State != approved {
			continue
		}
		if name := login(r.Author); name != "" {
			rec.Reviews = append(rec.Reviews, name)
		}
	}

	for _, ev := range item.TimelineItems.All() {
		if ev.TypeName != "" && ev.TypeName != connectedEvent {
			continue
		}
		if ev.Subject == nil || ev.Subject.URL == "" {
			continue
		}
		rec.ConnectedIssues = appendUnique(rec.ConnectedIssues, ev.Subject.URL)
	}

	return rec
}

// NegativeLabels returns the labels that appear in DefaultNegativeLabels,
// compared case-insensitively. The result is never nil.
func NegativeLabels(labels []string) []string {
	out := []string{}
	for _, l := range labels {
		for _, neg := range DefaultNegativeLabels {
			if strings.EqualFold(l, neg) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

// IsFlagged reports whether any label is negative.
func IsFlagged(labels []string) bool {
	return len(NegativeLabels(labels)) > 0
}

// closure picks the first closed event whose closer is a pull request.
func closure(events *github.Connection[github.TimelineEvent]) (reason, pr, author string) {
	for _, ev := range events.All() {
		if ev.TypeName != "" && ev.TypeName != closedEvent {
			continue
		}
		if ev.Closer == nil || ev.Closer.TypeName != pullRequest {
			continue
		}
		return ev.StateReason, ev.Closer.URL, login(ev.Closer.Author)
	}
	return "", "", ""
}

// comments returns the "author: body" strings and, index for index, the
// comment URLs.
func comments(conn *github.Connection[github.CommentNode]) (flat, urls []string) {
	flat, urls = []string{}, []string{}
	for _, c := range conn.All() {
		flat = append(flat, login(c.Author)+": "+c.Body)
		urls = append(urls, c.URL)
	}
	return flat, urls
}

func labelNames(conn *github.Connection[github.Label]) []string {
	out := []string{}
	for _, l := range conn.All() {
		if l.Name != "" {
			out = append(out, l.Name)
		}
	}
	return out
}

func logins(actors []github.Actor) []string {
	out := []string{}
	for _, a := range actors {
		if a.Login != "" {
			out = append(out, a.Login)
		}
	}
	return out
}

func login(a *github.Actor) string {
	if a == nil {
		return ""
	}
	return a.Login
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
