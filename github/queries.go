package github

import (
	"encoding/json"
	"fmt"
)

// Template is a GraphQL search document with three placeholders:
// %[1]s the quoted search string, %[2]d the page size, %[3]s the quoted
// cursor or null.
type Template struct {
	Name string
	Body string
}

// Render fills the template for one page request.
func (t Template) Render(search string, first int, after *string) string {
	cursor := "null"
	if after != nil {
		cursor = quote(*after)
	}
	return fmt.Sprintf(t.Body, quote(search), first, cursor)
}

// quote renders s as a GraphQL string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// OpenIssues requests the fields needed to register newly opened issues.
var OpenIssues = Template{
	Name: "open_issues",
	Body: `query {
  search(query: %[1]s, type: ISSUE, first: %[2]d, after: %[3]s) {
    issueCount
    edges {
      node {
        __typename
        ... on Issue {
          title
          url
          body
          state
          author { login }
          repository {
            url
            stargazers { totalCount }
            owner { login avatarUrl }
          }
          assignees(first: 5) { nodes { login } }
          labels(first: 10) { edges { node { name } } }
        }
      }
    }
    pageInfo { endCursor hasNextPage }
  }
}`,
}

// ClosedIssues requests the close metadata of issues closed in a window.
var ClosedIssues = Template{
	Name: "closed_issues",
	Body: `query {
  search(query: %[1]s, type: ISSUE, first: %[2]d, after: %[3]s) {
    issueCount
    edges {
      node {
        __typename
        ... on Issue {
          title
          url
          body
          state
          author { login }
          repository {
            url
            owner { login avatarUrl }
          }
          assignees(first: 5) { nodes { login } }
          labels(first: 10) { edges { node { name } } }
          timelineItems(first: 10, itemTypes: [CLOSED_EVENT]) {
            edges {
              node {
                __typename
                ... on ClosedEvent {
                  stateReason
                  closer {
                    __typename
                    ... on PullRequest {
                      title
                      url
                      author { login }
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
    pageInfo { endCursor hasNextPage }
  }
}`,
}

// IssueComments requests the comment thread of recently updated issues.
var IssueComments = Template{
	Name: "issue_comments",
	Body: `query {
  search(query: %[1]s, type: ISSUE, first: %[2]d, after: %[3]s) {
    issueCount
    edges {
      node {
        __typename
        ... on Issue {
          title
          url
          body
          repository {
            url
            owner { login avatarUrl }
          }
          comments(first: 50) {
            edges {
              node {
                url
                author { login }
                body
              }
            }
          }
        }
      }
    }
    pageInfo { endCursor hasNextPage }
  }
}`,
}

// MergedPullRequests requests merged pull requests with their linked issues.
var MergedPullRequests = Template{
	Name: "merged_pull_requests",
	Body: `query {
  search(query: %[1]s, type: ISSUE, first: %[2]d, after: %[3]s) {
    issueCount
    nodes {
      __typename
      ... on PullRequest {
        title
        url
        state
        merged
        mergedAt
        author { login }
        repository { url }
        mergedBy { login }
        labels(first: 10) { nodes { name } }
        reviews(first: 5, states: [APPROVED]) {
          nodes {
            author { login }
            state
          }
        }
        timelineItems(first: 5, itemTypes: [CONNECTED_EVENT]) {
          nodes {
            __typename
            ... on ConnectedEvent {
              subject {
                __typename
                ... on Issue { url }
              }
            }
          }
        }
      }
    }
    pageInfo { endCursor hasNextPage }
  }
}`,
}
