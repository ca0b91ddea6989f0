package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchIssues(t *testing.T) {
	var serverURL string
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/search/issues", r.URL.Path)
		assert.Equal(t, "label:hacktoberfest", r.URL.Query().Get("q"))
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/search/issues?q=label%%3Ahacktoberfest&page=2>; rel="next"`, serverURL))
			_, _ = w.Write([]byte(`{"total_count":2,"items":[{
				"title":"Fix docs",
				"html_url":"https://github.com/o/r/issues/1",
				"state":"open",
				"user":{"login":"alice"},
				"labels":[{"name":"hacktoberfest"}],
				"updated_at":"2023-10-01T12:00:00Z"
			}]}`))
		default:
			_, _ = w.Write([]byte(`{"total_count":2,"items":[{
				"title":"Add feature",
				"html_url":"https://github.com/o/r/pull/2",
				"state":"closed",
				"user":null,
				"pull_request":{"url":"https://api.github.com/repos/o/r/pulls/2"}
			}]}`))
		}
	}))
	defer server.Close()
	serverURL = server.URL

	search, err := NewRESTSearch("test-token", server.URL, 5*time.Second)
	require.NoError(t, err)

	hits, err := search.SearchIssues(context.Background(), "label:hacktoberfest", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 2, calls)

	assert.Equal(t, "Fix docs", hits[0].Title)
	assert.Equal(t, "alice", hits[0].Author)
	assert.Equal(t, []string{"hacktoberfest"}, hits[0].Labels)
	assert.False(t, hits[0].IsPull)

	assert.Equal(t, "https://github.com/o/r/pull/2", hits[1].URL)
	assert.Empty(t, hits[1].Author)
	assert.Empty(t, hits[1].Labels)
	assert.True(t, hits[1].IsPull)
}

func TestSearchIssuesRespectsMaxPages(t *testing.T) {
	var serverURL string
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Link", fmt.Sprintf(`<%s/search/issues?q=x&page=%d>; rel="next"`, serverURL, calls+1))
		_, _ = w.Write([]byte(`{"total_count":1000,"items":[]}`))
	}))
	defer server.Close()
	serverURL = server.URL

	search, err := NewRESTSearch("test-token", server.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = search.SearchIssues(context.Background(), "x", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSearchIssuesErrors(t *testing.T) {
	testCases := []struct {
		name           string
		statusCode     int
		headers        map[string]string
		expectedStatus int
		rateLimited    bool
	}{
		{
			name:           "validation failed",
			statusCode:     http.StatusUnprocessableEntity,
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "rate limited",
			statusCode: http.StatusForbidden,
			headers: map[string]string{
				"X-RateLimit-Limit":     "30",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "1700000000",
			},
			expectedStatus: http.StatusForbidden,
			rateLimited:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer server.Close()

			search, err := NewRESTSearch("test-token", server.URL, 5*time.Second)
			require.NoError(t, err)

			hits, err := search.SearchIssues(context.Background(), "x", 1)
			require.Error(t, err)
			assert.Nil(t, hits)
			assert.ErrorIs(t, err, ErrTransport)

			var terr *TransportError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tc.expectedStatus, terr.StatusCode)
			assert.Equal(t, tc.rateLimited, terr.RateLimited())
		})
	}
}
