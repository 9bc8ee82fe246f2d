package extract

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/persistorai/catalogsync/marker"
	"github.com/persistorai/catalogsync/model"
)

var errBoom = errors.New("boom")

type call struct {
	query  string
	cursor string
}

// pagedFetcher serves pages of the given sizes per query. Cursors are page
// numbers; a cursor past the last page yields an empty page.
type pagedFetcher struct {
	mu     sync.Mutex
	pages  map[string][]int
	calls  []call
	failAt int
}

func (f *pagedFetcher) FetchBatch(_ context.Context, q, cursor string, limit int) (*Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{q, cursor})
	if f.failAt == len(f.calls) {
		return nil, errBoom
	}

	page := 0
	if cursor != StartCursor {
		page, _ = strconv.Atoi(cursor)
	}
	sizes := f.pages[q]
	if page >= len(sizes) {
		return &Batch{NextCursor: cursor}, nil
	}
	recs := make([]Record, sizes[page])
	for i := range recs {
		recs[i] = Record{"query": q, "n": page*limit + i}
	}
	return &Batch{Results: recs, NextCursor: strconv.Itoa(page + 1)}, nil
}

func drain(t *testing.T, it *Iterator) int {
	t.Helper()
	n := 0
	for _, err := range it.All(context.Background()) {
		if err != nil {
			t.Fatalf("iteration error: %v", err)
		}
		n++
	}
	return n
}

func TestIteratorPagesUntilShortBatch(t *testing.T) {
	f := &pagedFetcher{pages: map[string][]int{"q": {100, 100, 42}}}
	it := NewIterator(f, "q", nil, 100)
	ctx := context.Background()

	n := 0
	for {
		ok, err := it.HasNext(ctx)
		if err != nil {
			t.Fatalf("HasNext() error: %v", err)
		}
		if !ok {
			break
		}
		if _, err := it.Next(ctx); err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		n++
	}
	if n != 242 {
		t.Errorf("got %d records, want 242", n)
	}
	if _, err := it.Next(ctx); !errors.Is(err, ErrNoSuchElement) {
		t.Errorf("Next() after end error = %v, want ErrNoSuchElement", err)
	}
	if ok, _ := it.HasNext(ctx); ok {
		t.Error("HasNext() must stay false once exhausted")
	}
	if it.Fetches() != 3 {
		t.Errorf("fetches = %d, want 3", it.Fetches())
	}
	if f.calls[0].cursor != StartCursor || f.calls[1].cursor != "1" {
		t.Errorf("cursors = %v", f.calls)
	}
}

func TestIteratorExactMultipleOfLimit(t *testing.T) {
	f := &pagedFetcher{pages: map[string][]int{"q": {10, 10}}}
	it := NewIterator(f, "q", nil, 10)
	if n := drain(t, it); n != 20 {
		t.Errorf("got %d records, want 20", n)
	}
	// The third fetch returns the empty page that proves the query is done.
	if it.Fetches() != 3 {
		t.Errorf("fetches = %d, want 3", it.Fetches())
	}
}

func TestIteratorSkipsEmptyGroups(t *testing.T) {
	groups := [][]string{{"a##0"}, {"b##0"}, {"c##0"}, {"d##0"}}
	f := &pagedFetcher{pages: map[string][]int{
		"type:TABLE AND extractorRunId:(b##0)": {5},
		"type:TABLE AND extractorRunId:(d##0)": {3},
	}}
	it := NewIterator(f, "type:TABLE", groups, 10)
	if n := drain(t, it); n != 8 {
		t.Errorf("got %d records, want 8", n)
	}
	if it.Fetches() != 4 {
		t.Errorf("fetches = %d, want 4", it.Fetches())
	}
	for _, c := range f.calls {
		if c.cursor != StartCursor {
			t.Errorf("group query %q did not start at the wildcard cursor", c.query)
		}
	}
}

func TestIteratorEmptyThenNonEmptyGroup(t *testing.T) {
	f := &pagedFetcher{pages: map[string][]int{"extractorRunId:(s##1)": {5}}}
	it := NewIterator(f, "", [][]string{{"s##0"}, {"s##1"}}, 100)
	ok, err := it.HasNext(context.Background())
	if err != nil || !ok {
		t.Fatalf("HasNext() = %v, %v; want true after skipping the empty group", ok, err)
	}
	if n := drain(t, it); n != 5 {
		t.Errorf("got %d records, want 5", n)
	}
}

func TestIteratorNoGroupsUsesBaseQuery(t *testing.T) {
	f := &pagedFetcher{pages: map[string][]int{"*:*": {1}}}
	it := NewIterator(f, "", nil, 0)
	if n := drain(t, it); n != 1 {
		t.Errorf("got %d records, want 1", n)
	}
	if f.calls[0].query != "*:*" {
		t.Errorf("query = %q, want *:*", f.calls[0].query)
	}
}

func TestIteratorFetchErrorIsTerminal(t *testing.T) {
	f := &pagedFetcher{pages: map[string][]int{"q": {10, 10, 10}}, failAt: 2}
	it := NewIterator(f, "q", nil, 10)
	ctx := context.Background()

	n := 0
	var err error
	for {
		_, err = it.Next(ctx)
		if err != nil {
			break
		}
		n++
	}
	if !errors.Is(err, errBoom) {
		t.Fatalf("Next() error = %v, want errBoom", err)
	}
	if n != 10 {
		t.Errorf("got %d records before the error, want 10", n)
	}
	if _, err := it.HasNext(ctx); !errors.Is(err, errBoom) {
		t.Errorf("HasNext() after failure = %v, want errBoom", err)
	}
	if it.Fetches() != 2 {
		t.Errorf("fetches = %d, want no retry", it.Fetches())
	}
}

type echoFetcher struct{ calls int }

func (f *echoFetcher) FetchBatch(_ context.Context, _, cursor string, limit int) (*Batch, error) {
	f.calls++
	return &Batch{Results: make([]Record, limit), NextCursor: cursor}, nil
}

func TestIteratorStopsOnEchoedCursor(t *testing.T) {
	f := &echoFetcher{}
	it := NewIterator(f, "q", nil, 4)
	if n := drain(t, it); n != 4 {
		t.Errorf("got %d records, want 4", n)
	}
	if f.calls != 1 {
		t.Errorf("calls = %d, want 1", f.calls)
	}
}

func TestIteratorCancelledContext(t *testing.T) {
	f := &pagedFetcher{pages: map[string][]int{"q": {1}}}
	it := NewIterator(f, "q", nil, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := it.HasNext(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HasNext() error = %v, want context.Canceled", err)
	}
	if len(f.calls) != 0 {
		t.Error("no fetch expected on a cancelled context")
	}
}

type staticSources []model.Source

func (s staticSources) List(context.Context) ([]model.Source, error) { return s, nil }

func TestExtractIncrementalQuery(t *testing.T) {
	want := "type:TABLE AND extractorRunId:(srcA##0 OR srcA##1 OR srcA##2)"
	entities := &pagedFetcher{pages: map[string][]int{want: {2}}}
	relations := &pagedFetcher{}
	x := NewExtractor(Options{
		Sources:   staticSources{{ID: "srcA", ExtractIteration: 2}},
		Entities:  entities,
		Relations: relations,
	})

	res, err := x.Extract(context.Background(), Request{
		EntityQuery: "type:TABLE",
		StartMarker: marker.Marker{"srcA": 0}.String(),
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(entities.calls) != 0 {
		t.Error("Extract() must not fetch before iteration")
	}
	if n := drain(t, res.Entities); n != 2 {
		t.Errorf("got %d entities, want 2", n)
	}
	if entities.calls[0].query != want {
		t.Errorf("query = %q, want %q", entities.calls[0].query, want)
	}
	if n := drain(t, res.Relations); n != 0 {
		t.Errorf("got %d relations, want 0", n)
	}
	if relations.calls[0].query != "extractorRunId:(srcA##0 OR srcA##1 OR srcA##2)" {
		t.Errorf("relation query = %q", relations.calls[0].query)
	}
	if res.Marker != `{"srcA":2}` {
		t.Errorf("marker = %s", res.Marker)
	}
	if res.Tokens != 3 {
		t.Errorf("tokens = %d, want 3", res.Tokens)
	}
}

func TestExtractFullWhenNoStartMarker(t *testing.T) {
	entities := &pagedFetcher{}
	x := NewExtractor(Options{
		Sources:   staticSources{{ID: "a", ExtractIteration: 9}},
		Entities:  entities,
		Relations: &pagedFetcher{},
	})
	res, err := x.Extract(context.Background(), Request{EntityQuery: "type:FILE"})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	drain(t, res.Entities)
	if entities.calls[0].query != "type:FILE" {
		t.Errorf("query = %q, want the base query alone", entities.calls[0].query)
	}
	if res.Marker != `{"a":9}` {
		t.Errorf("marker = %s", res.Marker)
	}
}

func TestExtractAddsNewSources(t *testing.T) {
	entities := &pagedFetcher{}
	x := NewExtractor(Options{
		Sources:   staticSources{{ID: "a", ExtractIteration: 2}, {ID: "b", ExtractIteration: 1}},
		Entities:  entities,
		Relations: &pagedFetcher{},
	})
	res, err := x.Extract(context.Background(), Request{StartMarker: `{"a":1}`})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	drain(t, res.Entities)
	want := "extractorRunId:(a##1 OR a##2 OR b##0 OR b##1)"
	if entities.calls[0].query != want {
		t.Errorf("query = %q, want %q", entities.calls[0].query, want)
	}
}

func TestExtractPartitionsLargeRanges(t *testing.T) {
	entities := &pagedFetcher{}
	x := NewExtractor(Options{
		Sources:      staticSources{{ID: "a", ExtractIteration: 9}},
		Entities:     entities,
		Relations:    &pagedFetcher{},
		MaxGroupSize: 4,
	})
	res, err := x.Extract(context.Background(), Request{StartMarker: `{"a":0}`})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	drain(t, res.Entities)
	// 10 tokens in groups of 4, 4 and 2
	if len(entities.calls) != 3 {
		t.Errorf("fetches = %d, want 3", len(entities.calls))
	}
}

func TestExtractMarkerErrors(t *testing.T) {
	x := NewExtractor(Options{
		Sources:   staticSources{{ID: "a", ExtractIteration: 1}},
		Entities:  &pagedFetcher{},
		Relations: &pagedFetcher{},
	})
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"malformed start", Request{StartMarker: "nope"}, marker.ErrMalformedMarker},
		{"malformed end", Request{EndMarker: "[]"}, marker.ErrMalformedMarker},
		{"unknown end source", Request{EndMarker: `{"zzz":1}`}, marker.ErrUnknownSource},
		{"removed source", Request{StartMarker: `{"a":0,"gone":0}`}, marker.ErrInvalidMarkerRange},
		{"backwards", Request{StartMarker: `{"a":5}`}, marker.ErrInvalidMarkerRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := x.Extract(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type failingSources struct{}

func (failingSources) List(context.Context) ([]model.Source, error) { return nil, errBoom }

func TestExtractSourceListError(t *testing.T) {
	x := NewExtractor(Options{Sources: failingSources{}})
	if _, err := x.Extract(context.Background(), Request{}); !errors.Is(err, errBoom) {
		t.Errorf("Extract() error = %v, want errBoom", err)
	}
}

func TestParallelExtract(t *testing.T) {
	pages := map[string][]int{}
	var groups [][]string
	for i := range 6 {
		tok := fmt.Sprintf("s##%d", i)
		groups = append(groups, []string{tok})
		pages["q AND extractorRunId:("+tok+")"] = []int{10, i}
	}
	f := &pagedFetcher{pages: pages}

	var mu sync.Mutex
	var seen []string
	err := ParallelExtract(context.Background(), f, "q", groups, 10, 2, func(_ context.Context, r Record) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, fmt.Sprint(r["query"], r["n"]))
		return nil
	})
	if err != nil {
		t.Fatalf("ParallelExtract() error: %v", err)
	}
	// 6 groups of 10 plus 0+1+2+3+4+5
	if len(seen) != 75 {
		t.Errorf("got %d records, want 75", len(seen))
	}
	slices.Sort(seen)
	if len(slices.Compact(seen)) != 75 {
		t.Error("records were delivered more than once")
	}
}

func TestParallelExtractStopsOnError(t *testing.T) {
	groups := [][]string{{"a"}, {"b"}, {"c"}}
	f := &pagedFetcher{pages: map[string][]int{
		"extractorRunId:(a)": {1},
		"extractorRunId:(b)": {1},
		"extractorRunId:(c)": {1},
	}}
	errStop := errors.New("stop")
	err := ParallelExtract(context.Background(), f, "", groups, 10, 1, func(context.Context, Record) error {
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Errorf("ParallelExtract() error = %v, want errStop", err)
	}
}

func TestParallelExtractNoGroups(t *testing.T) {
	f := &pagedFetcher{pages: map[string][]int{"q": {3}}}
	n := 0
	err := ParallelExtract(context.Background(), f, "q", nil, 10, 4, func(context.Context, Record) error {
		n++
		return nil
	})
	if err != nil || n != 3 {
		t.Errorf("ParallelExtract() = %d records, %v", n, err)
	}
}

func TestExtractParallelDeliversEntitiesFirst(t *testing.T) {
	entities := &pagedFetcher{pages: map[string][]int{
		"extractorRunId:(a##1 OR a##2)": {3},
		"extractorRunId:(a##3)":         {2},
	}}
	relations := &pagedFetcher{pages: map[string][]int{
		"extractorRunId:(a##1 OR a##2)": {1},
	}}
	x := NewExtractor(Options{
		Sources:      staticSources{{ID: "a", ExtractIteration: 3}},
		Entities:     entities,
		Relations:    relations,
		MaxGroupSize: 2,
	})

	var mu sync.Mutex
	var kinds []string
	m, err := x.ExtractParallel(context.Background(), Request{StartMarker: `{"a":1}`}, 2,
		func(_ context.Context, kind string, _ Record) error {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, kind)
			return nil
		})
	if err != nil {
		t.Fatalf("ExtractParallel() error: %v", err)
	}
	want := []string{KindEntity, KindEntity, KindEntity, KindEntity, KindEntity, KindRelation}
	if !slices.Equal(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
	if m != `{"a":3}` {
		t.Errorf("marker = %s", m)
	}
}

func TestExtractParallelNoMarkerOnError(t *testing.T) {
	x := NewExtractor(Options{
		Sources:   staticSources{{ID: "a", ExtractIteration: 1}},
		Entities:  &pagedFetcher{failAt: 1},
		Relations: &pagedFetcher{},
	})
	m, err := x.ExtractParallel(context.Background(), Request{}, 2,
		func(context.Context, string, Record) error { return nil })
	if !errors.Is(err, errBoom) || m != "" {
		t.Errorf("ExtractParallel() = %q, %v; want errBoom and no marker", m, err)
	}
}
