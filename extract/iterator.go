// Package extract pulls metadata out of the catalog incrementally. It turns
// a pair of extraction markers into run-token query groups and walks the
// cursor-paged search results lazily.
package extract

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/persistorai/catalogsync/internal/metrics"
	"github.com/persistorai/catalogsync/query"
)

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 1000

// StartCursor asks the catalog for the first page of a query.
const StartCursor = "*"

// ErrNoSuchElement is returned by Next once the iterator is exhausted.
var ErrNoSuchElement = errors.New("no such element")

// Record is one search result as decoded from the catalog.
type Record = map[string]any

// Batch is one page of search results.
type Batch struct {
	Results    []Record `json:"results"`
	NextCursor string   `json:"cursorMark"`
}

// Fetcher issues one paged search request.
type Fetcher interface {
	FetchBatch(ctx context.Context, q, cursor string, limit int) (*Batch, error)
}

type state int

const (
	stateInit state = iota
	stateInBatch
	stateAdvancing
	stateExhausted
	stateFailed
)

// Iterator walks every page of a base query, once per run-token group. It
// is not safe for concurrent use.
type Iterator struct {
	fetcher   Fetcher
	baseQuery string
	groups    [][]string
	limit     int
	kind      string

	state     state
	nextGroup int
	query     string
	cursor    string
	batch     []Record
	pos       int
	more      bool
	err       error
	fetches   int
	yielded   int
}

// NewIterator returns an iterator over baseQuery restricted, one group at a
// time, to the run tokens in groups. With no groups the base query is
// fetched as is. A non-positive limit selects DefaultLimit.
func NewIterator(fetcher Fetcher, baseQuery string, groups [][]string, limit int) *Iterator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Iterator{
		fetcher:   fetcher,
		baseQuery: baseQuery,
		groups:    groups,
		limit:     limit,
		kind:      "records",
	}
}

// HasNext reports whether another record is available, fetching pages as
// needed. A fetch error ends the iteration and is returned from every later
// call.
func (it *Iterator) HasNext(ctx context.Context) (bool, error) {
	for {
		switch it.state {
		case stateInit:
			it.startQuery()
			it.fetch(ctx)
		case stateInBatch:
			if it.pos < len(it.batch) {
				return true, nil
			}
			it.state = stateAdvancing
		case stateAdvancing:
			switch {
			case it.more:
				it.fetch(ctx)
			case it.nextGroup < len(it.groups):
				it.startQuery()
				it.fetch(ctx)
			default:
				it.state = stateExhausted
			}
		case stateExhausted:
			return false, nil
		case stateFailed:
			return false, it.err
		}
	}
}

// Next returns the next record, or ErrNoSuchElement when none is left.
func (it *Iterator) Next(ctx context.Context) (Record, error) {
	ok, err := it.HasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSuchElement
	}
	rec := it.batch[it.pos]
	it.pos++
	it.yielded++
	metrics.RecordsYielded.WithLabelValues(it.kind).Inc()
	return rec, nil
}

// All yields every remaining record. Iteration stops after the first error.
func (it *Iterator) All(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := it.Next(ctx)
			if errors.Is(err, ErrNoSuchElement) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Fetches returns the number of pages requested so far.
func (it *Iterator) Fetches() int { return it.fetches }

// Yielded returns the number of records returned so far.
func (it *Iterator) Yielded() int { return it.yielded }

// Query returns the query of the current group.
func (it *Iterator) Query() string { return it.query }

func (it *Iterator) startQuery() {
	q := it.baseQuery
	if it.nextGroup < len(it.groups) {
		q = query.Conjoin(q, query.BuildClause(query.FieldExtractorRunID, it.groups[it.nextGroup]))
		it.nextGroup++
	}
	if q == "" {
		q = query.MatchAll
	}
	it.query = q
	it.cursor = StartCursor
}

// fetch requests the page at the current cursor and moves to stateInBatch,
// or to stateFailed on error. A short page, or a cursor that does not move,
// ends the current query.
func (it *Iterator) fetch(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		it.fail(err)
		return
	}
	b, err := it.fetcher.FetchBatch(ctx, it.query, it.cursor, it.limit)
	it.fetches++
	if err != nil {
		it.fail(err)
		return
	}
	if b == nil {
		b = &Batch{}
	}
	it.batch, it.pos = b.Results, 0
	it.more = len(b.Results) >= it.limit && b.NextCursor != "" && b.NextCursor != it.cursor
	it.cursor = b.NextCursor
	it.state = stateInBatch
}

func (it *Iterator) fail(err error) {
	it.err = fmt.Errorf("fetching %q: %w", it.query, err)
	it.batch, it.pos = nil, 0
	it.state = stateFailed
}
