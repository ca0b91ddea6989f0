package github

import (
	"encoding/json"
	"errors"

	"issuesync/models"
)

// Connection is a GraphQL list that may arrive as edges{node} or as nodes.
// Either side, and any element, may be null.
type Connection[T any] struct {
	Edges []*Edge[T] `json:"edges"`
	Nodes []*T       `json:"nodes"`
}

// Edge wraps a single connection node.
type Edge[T any] struct {
	Node *T `json:"node"`
}

// All returns the non-null elements of both shapes, edges first.
// It is safe to call on a nil connection.
func (c *Connection[T]) All() []T {
	if c == nil {
		return nil
	}
	out := make([]T, 0, len(c.Edges)+len(c.Nodes))
	for _, e := range c.Edges {
		if e != nil && e.Node != nil {
			out = append(out, *e.Node)
		}
	}
	for _, n := range c.Nodes {
		if n != nil {
			out = append(out, *n)
		}
	}
	return out
}

// Actor is a user, bot or deleted account (null).
type Actor struct {
	Login string `json:"login"`
}

// Label is an issue or pull request label.
type Label struct {
	Name string `json:"name"`
}

// CommentNode is an issue comment.
type CommentNode struct {
	URL    string `json:"url"`
	Author *Actor `json:"author"`
	Body   string `json:"body"`
}

// Review is a pull request review.
type Review struct {
	Author *Actor `json:"author"`
	State  string `json:"state"`
}

// Repository carries the repository fields requested alongside an item.
type Repository struct {
	URL        string `json:"url"`
	Stargazers *struct {
		TotalCount int `json:"totalCount"`
	} `json:"stargazers"`
	Owner *struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatarUrl"`
	} `json:"owner"`
}

// Closer is the union member that closed an issue.
type Closer struct {
	TypeName string `json:"__typename"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Author   *Actor `json:"author"`
}

// Subject is the union member a ConnectedEvent points at.
type Subject struct {
	TypeName string `json:"__typename"`
	URL      string `json:"url"`
}

// TimelineEvent covers the ClosedEvent and ConnectedEvent fragments.
type TimelineEvent struct {
	TypeName    string   `json:"__typename"`
	StateReason string   `json:"stateReason"`
	Closer      *Closer  `json:"closer"`
	Subject     *Subject `json:"subject"`
}

// RawItem is one decoded search node, issue or pull request.
// Scalars decode to their zero value when null or absent; nested objects stay
// nil so the flattener can tell a missing parent from an empty one.
type RawItem struct {
	TypeName      string                     `json:"__typename"`
	Title         string                     `json:"title"`
	URL           string                     `json:"url"`
	Body          string                     `json:"body"`
	State         string                     `json:"state"`
	Author        *Actor                     `json:"author"`
	Repository    *Repository                `json:"repository"`
	Assignees     *Connection[Actor]         `json:"assignees"`
	Labels        *Connection[Label]         `json:"labels"`
	Comments      *Connection[CommentNode]   `json:"comments"`
	TimelineItems *Connection[TimelineEvent] `json:"timelineItems"`
	Reviews       *Connection[Review]        `json:"reviews"`
	MergedBy      *Actor                     `json:"mergedBy"`
	MergedAt      *string                    `json:"mergedAt"`
	Merged        bool                       `json:"merged"`
}

// SearchPage is one decoded page of search results.
type SearchPage struct {
	ItemCount int
	Items     []RawItem
	PageInfo  models.PageCursor
}

type searchEnvelope struct {
	Data *struct {
		Search *struct {
			IssueCount int              `json:"issueCount"`
			Edges      []*Edge[RawItem] `json:"edges"`
			Nodes      []*RawItem       `json:"nodes"`
			PageInfo   *struct {
				EndCursor   *string `json:"endCursor"`
				HasNextPage bool    `json:"hasNextPage"`
			} `json:"pageInfo"`
		} `json:"search"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Decode parses a search response. A missing data field, null objects and
// null arrays all decode to an empty page; only malformed JSON or an
// envelope that is not an object is an error.
func Decode(raw []byte) (*SearchPage, error) {
	var env searchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Cause: err}
	}

	page := &SearchPage{Items: []RawItem{}}

	if env.Data == nil {
		if len(env.Errors) > 0 {
			return nil, &DecodeError{Cause: errors.New(env.Errors[0].Message)}
		}
		return page, nil
	}
	search := env.Data.Search
	if search == nil {
		return page, nil
	}

	page.ItemCount = search.IssueCount
	conn := Connection[RawItem]{Edges: search.Edges, Nodes: search.Nodes}
	page.Items = conn.All()

	if search.PageInfo != nil {
		page.PageInfo.HasNextPage = search.PageInfo.HasNextPage
		if search.PageInfo.EndCursor != nil && *search.PageInfo.EndCursor != "" {
			cursor := *search.PageInfo.EndCursor
			page.PageInfo.EndCursor = &cursor
		}
	}

	return page, nil
}
