package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"issuesync/logger"
)

// IssueHit is one result of the REST issue search.
type IssueHit struct {
	Title     string
	URL       string
	State     string
	Author    string
	Labels    []string
	IsPull    bool
	UpdatedAt time.Time
}

// RESTSearch queries GET /search/issues through go-github.
type RESTSearch struct {
	client *gh.Client
}

// NewRESTSearch creates a REST search client. apiURL may be empty for api.github.com.
func NewRESTSearch(token, apiURL string, timeout time.Duration) (*RESTSearch, error) {
	client := gh.NewClient(newHTTPClient(token, timeout))
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", apiURL, err)
		}
		client.BaseURL = u
	}
	client.UserAgent = userAgent
	return &RESTSearch{client: client}, nil
}

// SearchIssues walks the REST search results for query, at most maxPages pages.
func (s *RESTSearch) SearchIssues(ctx context.Context, query string, maxPages int) ([]IssueHit, error) {
	if maxPages < 1 {
		maxPages = 1
	}
	opts := &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: 100, Page: 1},
	}

	hits := []IssueHit{}
	for page := 0; page < maxPages; page++ {
		logger.Debug("Searching issues (REST)",
			zap.String("query", query),
			zap.Int("page", opts.Page))

		result, resp, err := s.client.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, restError(err)
		}

		for _, issue := range result.Issues {
			hit := IssueHit{
				Title:     issue.GetTitle(),
				URL:       issue.GetHTMLURL(),
				State:     issue.GetState(),
				Author:    issue.GetUser().GetLogin(),
				Labels:    []string{},
				IsPull:    issue.IsPullRequest(),
				UpdatedAt: issue.GetUpdatedAt().Time,
			}
			for _, l := range issue.Labels {
				hit.Labels = append(hit.Labels, l.GetName())
			}
			hits = append(hits, hit)
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return hits, nil
}

// restError maps go-github errors onto TransportError.
func restError(err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		terr := &TransportError{StatusCode: 403, Cause: err}
		terr.RateLimit = RateLimit{
			Limit:     rateErr.Rate.Limit,
			Remaining: rateErr.Rate.Remaining,
			Reset:     rateErr.Rate.Reset.Time,
		}
		return terr
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		terr := &TransportError{StatusCode: 403, Cause: err}
		terr.RateLimit.RetryAfter = abuseErr.GetRetryAfter()
		if terr.RateLimit.RetryAfter == 0 {
			terr.RateLimit.RetryAfter = time.Minute
		}
		return terr
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &TransportError{StatusCode: respErr.Response.StatusCode, Cause: err}
	}

	return &TransportError{Cause: err}
}
