package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/persistorai/catalogsync/extract"
)

// EntityService pages through entity search results.
type EntityService struct {
	c *Client
}

// FetchBatch returns one page of entities matching q, starting at cursor.
func (s *EntityService) FetchBatch(ctx context.Context, q, cursor string, limit int) (*extract.Batch, error) {
	return fetchPage(ctx, s.c, "/entities/paging", q, cursor, limit)
}

// RelationService pages through relation search results.
type RelationService struct {
	c *Client
}

// FetchBatch returns one page of relations matching q, starting at cursor.
func (s *RelationService) FetchBatch(ctx context.Context, q, cursor string, limit int) (*extract.Batch, error) {
	return fetchPage(ctx, s.c, "/relations/paging", q, cursor, limit)
}

func fetchPage(ctx context.Context, c *Client, path, q, cursor string, limit int) (*extract.Batch, error) {
	params := url.Values{}
	params.Set("query", q)
	if cursor != "" {
		params.Set("cursorMark", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var batch extract.Batch
	if err := c.get(ctx, c.path(path), params, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}
