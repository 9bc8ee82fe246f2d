package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/catalogsync/marker"
	"github.com/persistorai/catalogsync/model"
	"github.com/persistorai/catalogsync/query"
)

// SourceLister returns the sources currently known to the catalog.
type SourceLister interface {
	List(ctx context.Context) ([]model.Source, error)
}

// Options configures an Extractor.
type Options struct {
	Sources      SourceLister
	Entities     Fetcher
	Relations    Fetcher
	Limit        int
	MaxGroupSize int
	Logger       *logrus.Logger
}

// Extractor combines the source registry with marker arithmetic to build
// incremental entity and relation iterators.
type Extractor struct {
	sources      SourceLister
	entities     Fetcher
	relations    Fetcher
	limit        int
	maxGroupSize int
	log          *logrus.Logger
}

// NewExtractor creates an Extractor. A nil logger discards output.
func NewExtractor(opts Options) *Extractor {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Extractor{
		sources:      opts.Sources,
		entities:     opts.Entities,
		relations:    opts.Relations,
		limit:        opts.Limit,
		maxGroupSize: opts.MaxGroupSize,
		log:          log,
	}
}

// Request selects what to extract. Blank queries match everything. A blank
// StartMarker extracts everything regardless of run; a blank EndMarker
// extracts up to the current state of every source.
type Request struct {
	EntityQuery   string
	RelationQuery string
	StartMarker   string
	EndMarker     string
}

// Result holds lazy iterators over the extracted records and the marker to
// resume from once both have been drained.
type Result struct {
	Entities  *Iterator
	Relations *Iterator
	Marker    string
	Tokens    int
}

// Extract resolves the markers of req and returns iterators over the
// matching entities and relations. No records are fetched until the
// iterators are advanced.
func (x *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	p, err := x.plan(ctx, req)
	if err != nil {
		return nil, err
	}

	entities := NewIterator(x.entities, req.EntityQuery, p.groups, x.limit)
	entities.kind = "entities"
	relations := NewIterator(x.relations, req.RelationQuery, p.groups, x.limit)
	relations.kind = "relations"

	return &Result{
		Entities:  entities,
		Relations: relations,
		Marker:    p.end.String(),
		Tokens:    p.tokens,
	}, nil
}

// Kinds passed to the ExtractParallel callback.
const (
	KindEntity   = "entity"
	KindRelation = "relation"
)

// ExtractParallel walks the same records as Extract with up to workers
// token groups fetched at once. All entities are delivered before any
// relation; order within a kind is unspecified. fn must be safe for
// concurrent use. The returned marker is only meaningful when err is nil.
func (x *Extractor) ExtractParallel(ctx context.Context, req Request, workers int, fn func(ctx context.Context, kind string, rec Record) error) (string, error) {
	p, err := x.plan(ctx, req)
	if err != nil {
		return "", err
	}

	err = ParallelExtract(ctx, x.entities, req.EntityQuery, p.groups, x.limit, workers,
		func(ctx context.Context, rec Record) error { return fn(ctx, KindEntity, rec) })
	if err != nil {
		return "", err
	}
	err = ParallelExtract(ctx, x.relations, req.RelationQuery, p.groups, x.limit, workers,
		func(ctx context.Context, rec Record) error { return fn(ctx, KindRelation, rec) })
	if err != nil {
		return "", err
	}
	return p.end.String(), nil
}

type plan struct {
	end    marker.Marker
	groups [][]string
	tokens int
}

func (x *Extractor) plan(ctx context.Context, req Request) (*plan, error) {
	sources, err := x.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	end := marker.Current(sources, false)
	if req.EndMarker != "" {
		end, err = marker.Parse(req.EndMarker)
		if err != nil {
			return nil, fmt.Errorf("end marker: %w", err)
		}
		if err := end.CheckSources(sources); err != nil {
			return nil, fmt.Errorf("end marker: %w", err)
		}
	}

	start, err := marker.Parse(req.StartMarker)
	if err != nil {
		return nil, fmt.Errorf("start marker: %w", err)
	}

	p := &plan{end: end}
	if len(start) > 0 {
		list, err := marker.Diff(start.Merge(end), end)
		if err != nil {
			return nil, err
		}
		p.tokens = len(list)
		p.groups = query.Partition(list, x.maxGroupSize)
	}

	x.log.WithFields(logrus.Fields{
		"sources": len(sources),
		"tokens":  p.tokens,
		"groups":  len(p.groups),
		"full":    len(start) == 0,
	}).Info("extraction planned")

	return p, nil
}
