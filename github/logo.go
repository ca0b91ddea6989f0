package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
)

// LogoClient resolves a repository owner's avatar through the typed GraphQL client.
type LogoClient struct {
	client *githubv4.Client
}

// NewLogoClient creates a LogoClient. endpoint may be empty for api.github.com.
func NewLogoClient(token, endpoint string, timeout time.Duration) *LogoClient {
	httpClient := newHTTPClient(token, timeout)
	httpClient.Transport = statusRecorder{next: httpClient.Transport}
	if endpoint == "" || endpoint == DefaultGraphQLURL {
		return &LogoClient{client: githubv4.NewClient(httpClient)}
	}
	return &LogoClient{client: githubv4.NewEnterpriseClient(endpoint, httpClient)}
}

// ProjectLogo returns the owner avatar URL of the repository at repoURL.
func (c *LogoClient) ProjectLogo(ctx context.Context, repoURL string) (string, error) {
	owner, name, err := SplitRepoURL(repoURL)
	if err != nil {
		return "", err
	}

	var query struct {
		Repository struct {
			Owner struct {
				Login     githubv4.String
				AvatarURL githubv4.String `graphql:"avatarUrl"`
			}
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}

	var status int
	ctx = context.WithValue(ctx, statusKey{}, &status)
	if err := c.client.Query(ctx, &query, variables); err != nil {
		err = fmt.Errorf("failed to query project logo for %s/%s: %w", owner, name, err)
		var uerr *url.Error
		if errors.As(err, &uerr) || (status != 0 && status != http.StatusOK) {
			return "", &TransportError{StatusCode: status, Cause: err}
		}
		// GraphQL-level failure, e.g. an unknown repository
		return "", err
	}
	return string(query.Repository.Owner.AvatarURL), nil
}

type statusKey struct{}

// statusRecorder stores the HTTP status of each response into the *int
// carried by the request context, if any.
type statusRecorder struct {
	next http.RoundTripper
}

func (s statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	next := s.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if resp != nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}

// SplitRepoURL extracts owner and name from https://github.com/{owner}/{name}.
func SplitRepoURL(repoURL string) (owner, name string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository url %q: %w", repoURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository url %q", repoURL)
	}
	return parts[0], parts[1], nil
}

// RepoURLFromItemURL trims an issue or pull request URL to its repository URL.
func RepoURLFromItemURL(itemURL string) string {
	for _, marker := range []string{"/pull/", "/issues/"} {
		if i := strings.LastIndex(itemURL, marker); i > 0 {
			return itemURL[:i]
		}
	}
	return ""
}
