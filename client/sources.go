package client

import (
	"context"
	"net/url"

	"github.com/persistorai/catalogsync/model"
)

// SourceService lists the metadata sources registered with the catalog.
type SourceService struct {
	c *Client
}

// List returns every source with its current extraction iteration.
func (s *SourceService) List(ctx context.Context) ([]model.Source, error) {
	var sources []model.Source
	if err := s.c.get(ctx, s.c.path("/sources"), nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// Get returns a single source by ID.
func (s *SourceService) Get(ctx context.Context, id string) (*model.Source, error) {
	var src model.Source
	if err := s.c.get(ctx, s.c.path("/sources/"+url.PathEscape(id)), nil, &src); err != nil {
		return nil, err
	}
	return &src, nil
}
