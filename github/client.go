package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"issuesync/logger"
)

const (
	// DefaultGraphQLURL is the public GitHub GraphQL endpoint
	DefaultGraphQLURL = "https://api.github.com/graphql"
	userAgent         = "issuesync"
	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20
)

// Client posts GraphQL documents to GitHub and returns the raw response bytes.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
}

// NewClient creates a GraphQL client authenticating with a bearer token.
// The timeout bounds every single request.
func NewClient(token, endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultGraphQLURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid graphql endpoint %q: %w", endpoint, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.Info("Initializing GitHub client", zap.String("endpoint", u.String()))
	return &Client{
		httpClient: newHTTPClient(token, timeout),
		endpoint:   u,
	}, nil
}

// newHTTPClient returns an http.Client that injects "Authorization: Bearer <token>".
func newHTTPClient(token string, timeout time.Duration) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = timeout
	return httpClient
}

// PostGraphQL sends one GraphQL document and returns the response body.
// Non-2xx responses and transport failures yield a *TransportError.
func (c *Client) PostGraphQL(ctx context.Context, query string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	req.ContentLength = int64(len(payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Error getting response from GitHub", zap.Error(err))
		return nil, &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rl := parseRateLimit(resp.Header)
		logger.Error("GitHub http error",
			zap.Int("status_code", resp.StatusCode),
			zap.Int("rate_limit_remaining", rl.Remaining),
			zap.Duration("retry_after", rl.RetryAfter))
		terr := &TransportError{StatusCode: resp.StatusCode, RateLimit: rl}
		if msg := bytes.TrimSpace(truncate(body, 256)); len(msg) > 0 {
			terr.Cause = fmt.Errorf("%s", msg)
		}
		return nil, terr
	}

	return body, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
