package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/persistorai/catalogsync/extract"
	"github.com/persistorai/catalogsync/model"
)

// ErrSourceNotFound is returned when a source is unknown even after the
// cache has been reloaded.
var ErrSourceNotFound = errors.New("source not found")

// SourceCache is a read-through cache of the source registry. A miss
// reloads every source and rebuilds all indexes. Concurrent misses share
// one reload.
type SourceCache struct {
	lister extract.SourceLister
	group  singleflight.Group

	mu     sync.RWMutex
	byID   map[string]model.Source
	byURL  map[string]model.Source
	byType map[model.SourceType][]model.Source
}

// NewSourceCache creates an empty cache backed by lister.
func NewSourceCache(lister extract.SourceLister) *SourceCache {
	return &SourceCache{lister: lister}
}

// ByID returns the source with the given id.
func (sc *SourceCache) ByID(ctx context.Context, id string) (model.Source, error) {
	return lookup(ctx, sc, func() (model.Source, bool) {
		s, ok := sc.byID[id]
		return s, ok
	}, "id "+id)
}

// ByURL returns the source registered under url.
func (sc *SourceCache) ByURL(ctx context.Context, url string) (model.Source, error) {
	return lookup(ctx, sc, func() (model.Source, bool) {
		s, ok := sc.byURL[url]
		return s, ok
	}, "url "+url)
}

// ByType returns every source of type t.
func (sc *SourceCache) ByType(ctx context.Context, t model.SourceType) ([]model.Source, error) {
	return lookup(ctx, sc, func() ([]model.Source, bool) {
		s, ok := sc.byType[t]
		return append([]model.Source(nil), s...), ok
	}, "type "+string(t))
}

// Invalidate drops every cached source.
func (sc *SourceCache) Invalidate() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.byID, sc.byURL, sc.byType = nil, nil, nil
}

func lookup[T any](ctx context.Context, sc *SourceCache, find func() (T, bool), what string) (T, error) {
	sc.mu.RLock()
	v, ok := find()
	sc.mu.RUnlock()
	if ok {
		return v, nil
	}

	if err := sc.reload(ctx); err != nil {
		var zero T
		return zero, err
	}

	sc.mu.RLock()
	v, ok = find()
	sc.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrSourceNotFound, what)
	}
	return v, nil
}

func (sc *SourceCache) reload(ctx context.Context) error {
	_, err, _ := sc.group.Do("reload", func() (any, error) {
		sources, err := sc.lister.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("reloading sources: %w", err)
		}
		byID := make(map[string]model.Source, len(sources))
		byURL := make(map[string]model.Source, len(sources))
		byType := make(map[model.SourceType][]model.Source)
		for _, s := range sources {
			byID[s.ID] = s
			if s.URL != "" {
				byURL[s.URL] = s
			}
			byType[s.Type] = append(byType[s.Type], s)
		}

		sc.mu.Lock()
		sc.byID, sc.byURL, sc.byType = byID, byURL, byType
		sc.mu.Unlock()
		return nil, nil
	})
	return err
}
