// Package paginator drives a GraphQL search across pages with a cursor.
package paginator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"issuesync/github"
	"issuesync/logger"
	"issuesync/models"
)

// DefaultPageSize is the largest page GitHub search accepts.
const DefaultPageSize = 100

// Paginator fetches, decodes and flattens search pages into records of type T.
type Paginator[T any] struct {
	source   github.Poster
	template github.Template
	flatten  func(github.RawItem) T
	maxPages int
	pageSize int
}

// New creates a Paginator. A non-positive maxPages is treated as 1.
func New[T any](source github.Poster, template github.Template, flatten func(github.RawItem) T, maxPages int) *Paginator[T] {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Paginator[T]{
		source:   source,
		template: template,
		flatten:  flatten,
		maxPages: maxPages,
		pageSize: DefaultPageSize,
	}
}

// WithPageSize sets the number of items requested per page (1..100).
func (p *Paginator[T]) WithPageSize(n int) *Paginator[T] {
	if n >= 1 && n <= DefaultPageSize {
		p.pageSize = n
	}
	return p
}

// Run walks every page of q and returns the accumulated records. Any fetch or
// decode error aborts the run; no partial result is returned.
func (p *Paginator[T]) Run(ctx context.Context, q models.SearchQuery) ([]T, error) {
	records := []T{}
	cursor := models.PageCursor{}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search %s cancelled before page %d: %w", p.template.Name, page, err)
		}

		doc := p.template.Render(q.Query, p.pageSize, cursor.EndCursor)
		raw, err := p.source.PostGraphQL(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("search %s page %d: %w", p.template.Name, page, err)
		}

		decoded, err := github.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("search %s page %d: %w", p.template.Name, page, err)
		}

		for _, item := range decoded.Items {
			records = append(records, p.flatten(item))
		}

		logger.Debug("Fetched search page",
			zap.String("search", p.template.Name),
			zap.Int("page", page),
			zap.Int("items", len(decoded.Items)),
			zap.Int("total", decoded.ItemCount),
			zap.Bool("has_next_page", decoded.PageInfo.HasNextPage))

		if !decoded.PageInfo.HasNextPage {
			break
		}
		if decoded.PageInfo.EndCursor == nil {
			logger.Warn("Search reported another page without a cursor",
				zap.String("search", p.template.Name),
				zap.Int("page", page))
			break
		}
		if page >= p.maxPages {
			logger.Info("Page ceiling reached",
				zap.String("search", p.template.Name),
				zap.Int("max_pages", p.maxPages),
				zap.Int("records", len(records)))
			break
		}
		cursor = decoded.PageInfo
	}

	return records, nil
}
