package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/persistorai/catalogsync/extract"
	"github.com/persistorai/catalogsync/marker"
	"github.com/persistorai/catalogsync/model"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithAPIKey("test-key"))
	return srv, c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func TestSourcesList(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v9/sources": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("missing auth header")
			}
			if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
				t.Errorf("X-Request-ID is not a uuid: %q", r.Header.Get("X-Request-ID"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"identity":"src1","name":"hive1","sourceType":"HIVE","sourceUrl":"thrift://h:9083","sourceExtractIteration":4}]`)) //nolint:errcheck
		},
	})
	sources, err := c.Sources.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	s := sources[0]
	if s.ID != "src1" || s.Type != model.SourceTypeHive || s.ExtractIteration != 4 || s.URL != "thrift://h:9083" {
		t.Errorf("source = %+v", s)
	}
}

func TestSourcesGet(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v3/sources/src1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, model.Source{ID: "src1", Type: model.SourceTypeHDFS})
		},
	})
	c = New(c.baseURL, WithAPIVersion(3))
	src, err := c.Sources.Get(context.Background(), "src1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if src.Type != model.SourceTypeHDFS {
		t.Errorf("got type %q", src.Type)
	}
}

func TestEntityPaging(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v9/entities/paging": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("query") != "type:TABLE" || q.Get("cursorMark") != "*" || q.Get("limit") != "2" {
				t.Errorf("query params = %v", q)
			}
			jsonResponse(w, 200, map[string]any{
				"results":    []map[string]any{{"identity": "a"}, {"identity": "b"}},
				"cursorMark": "next-1",
			})
		},
	})
	b, err := c.Entities.FetchBatch(context.Background(), "type:TABLE", "*", 2)
	if err != nil {
		t.Fatalf("FetchBatch() error: %v", err)
	}
	if len(b.Results) != 2 || b.NextCursor != "next-1" || b.Results[1]["identity"] != "b" {
		t.Errorf("batch = %+v", b)
	}
}

func TestRelationPagingDrivesIterator(t *testing.T) {
	pages := map[string][]map[string]any{
		"*":  {{"identity": "r1"}, {"identity": "r2"}},
		"c1": {{"identity": "r3"}},
	}
	next := map[string]string{"*": "c1", "c1": "c2"}
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v9/relations/paging": func(w http.ResponseWriter, r *http.Request) {
			cur := r.URL.Query().Get("cursorMark")
			jsonResponse(w, 200, map[string]any{"results": pages[cur], "cursorMark": next[cur]})
		},
	})

	it := extract.NewIterator(c.Relations, "type:DATA_FLOW", nil, 2)
	var ids []any
	for rec, err := range it.All(context.Background()) {
		if err != nil {
			t.Fatalf("iteration error: %v", err)
		}
		ids = append(ids, rec["identity"])
	}
	if len(ids) != 3 || ids[2] != "r3" {
		t.Errorf("ids = %v", ids)
	}
}

func TestAPIError(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v9/sources/missing": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 404, map[string]string{"code": "not_found", "message": "no such source"})
		},
		"GET /api/v9/sources": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(401)
			w.Write([]byte("bad credentials")) //nolint:errcheck
		},
		"GET /api/v9/entities/paging": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 429, map[string]string{"code": "rate_limited", "message": "slow down"})
		},
	})
	ctx := context.Background()

	_, err := c.Sources.Get(ctx, "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "not_found" || apiErr.RequestID == "" {
		t.Errorf("APIError = %+v", apiErr)
	}

	_, err = c.Sources.List(ctx)
	if !IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if !errors.As(err, &apiErr) || apiErr.Code != "unknown" || apiErr.Message != "bad credentials" {
		t.Errorf("raw body error = %+v", apiErr)
	}

	it := extract.NewIterator(c.Entities, "q", nil, 10)
	if _, err := it.Next(ctx); !IsRateLimited(err) {
		t.Errorf("expected rate limited through the iterator, got %v", err)
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/api/v9/entities/paging?query=x": "/entities/paging",
		"/api/v12/sources":                "/sources",
		"/api/v9/sources/hive%2F1":        "/sources/:id",
		"/other":                          "/other",
	}
	for in, want := range tests {
		if got := endpointLabel(in); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSourceCache(t *testing.T) {
	var calls atomic.Int32
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v9/sources": func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			jsonResponse(w, 200, []model.Source{
				{ID: "h1", Type: model.SourceTypeHive, URL: "thrift://a"},
				{ID: "h2", Type: model.SourceTypeHive, URL: "thrift://b"},
				{ID: "f1", Type: model.SourceTypeHDFS, URL: "hdfs://nn"},
			})
		},
	})
	sc := NewSourceCache(c.Sources)
	ctx := context.Background()

	s, err := sc.ByID(ctx, "h1")
	if err != nil || s.URL != "thrift://a" {
		t.Fatalf("ByID() = %+v, %v", s, err)
	}
	s, err = sc.ByURL(ctx, "hdfs://nn")
	if err != nil || s.ID != "f1" {
		t.Fatalf("ByURL() = %+v, %v", s, err)
	}
	hive, err := sc.ByType(ctx, model.SourceTypeHive)
	if err != nil || len(hive) != 2 {
		t.Fatalf("ByType() = %v, %v", hive, err)
	}
	if calls.Load() != 1 {
		t.Errorf("registry calls = %d, want 1 for cached lookups", calls.Load())
	}

	if _, err := sc.ByID(ctx, "nope"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("ByID(nope) error = %v, want ErrSourceNotFound", err)
	}
	if calls.Load() != 2 {
		t.Errorf("registry calls = %d, want a reload on miss", calls.Load())
	}

	sc.Invalidate()
	if _, err := sc.ByID(ctx, "h2"); err != nil {
		t.Errorf("ByID() after Invalidate error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("registry calls = %d, want a reload after Invalidate", calls.Load())
	}
}

func TestSourceCacheConcurrent(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v9/sources": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, []model.Source{{ID: "s", Type: model.SourceTypeSDK}})
		},
	})
	sc := NewSourceCache(c.Sources)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sc.ByID(context.Background(), "s"); err != nil {
				t.Errorf("ByID() error: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestWriterWrite(t *testing.T) {
	var got WriteRequest
	var session, autocommit string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v9/metadata/plugin": func(w http.ResponseWriter, r *http.Request) {
			session = r.Header.Get("X-Session-ID")
			autocommit = r.URL.Query().Get("autocommit")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode body: %v", err)
			}
			jsonResponse(w, 200, WriteSummary{EntityUpdateCount: 3, RelationUpdateCount: 2})
		},
	})

	tbl := &model.Table{
		Base:     model.Base{Namespace: "ns", Name: "orders", SourceType: model.SourceTypeHive},
		Database: "sales",
		Columns: []*model.Column{{
			Base:       model.Base{Namespace: "ns", Name: "id", SourceType: model.SourceTypeHive},
			ParentPath: "sales.orders",
		}},
		Storage: []model.Entity{&model.File{
			Base:           model.Base{Namespace: "ns", SourceType: model.SourceTypeHDFS},
			FileSystemPath: "/warehouse/orders",
		}},
	}
	tbl.Tags.Append("gold")
	tbl.Properties.Set("owner_team", "sales")

	w := c.NewWriter(WriterOptions{Autocommit: true})
	summary, err := w.Write(context.Background(), tbl)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if summary.EntityUpdateCount != 3 || summary.RelationUpdateCount != 2 || summary.HasErrors() {
		t.Errorf("summary = %+v", summary)
	}
	if len(got.Entities) != 3 || len(got.Relations) != 2 {
		t.Errorf("sent %d entities, %d relations; want 3 and 2", len(got.Entities), len(got.Relations))
	}
	if got.Entities[0]["identity"] != tbl.Identity {
		t.Errorf("first entity = %v, want the table", got.Entities[0])
	}
	if session != w.SessionID() || autocommit != "true" {
		t.Errorf("session = %q, autocommit = %q", session, autocommit)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !tbl.Tags.IsEmpty() || !tbl.Properties.IsEmpty() {
		t.Error("Close() must reset change sets of written entities")
	}
	if _, err := w.Write(context.Background(), tbl); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Write() after Close error = %v, want ErrWriterClosed", err)
	}
}

func TestWriterValidationSendsNothing(t *testing.T) {
	posted := false
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v9/metadata/plugin": func(w http.ResponseWriter, _ *http.Request) {
			posted = true
			jsonResponse(w, 200, WriteSummary{})
		},
	})
	bad := &model.File{Base: model.Base{Namespace: "ns"}}
	w := c.NewWriter(WriterOptions{})
	if _, err := w.Write(context.Background(), bad); !errors.Is(err, model.ErrMissingRequiredProperty) {
		t.Errorf("Write() error = %v, want ErrMissingRequiredProperty", err)
	}
	if posted {
		t.Error("invalid graph must not be sent")
	}
}

func TestWriterSurfacesRejections(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v9/metadata/plugin": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"entityUpdateCount":0,"entityErrors":[{"identity":"x","message":"bad"}],"relationUpdateCount":0}`)) //nolint:errcheck
		},
	})
	op := &model.Operation{Base: model.Base{Namespace: "ns", Name: "etl"}}
	summary, err := c.NewWriter(WriterOptions{}).Write(context.Background(), op)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !summary.HasErrors() || len(summary.EntityErrors) != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestClientExtractor(t *testing.T) {
	var query string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v9/sources": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, []model.Source{{ID: "srcA", Type: model.SourceTypeHive, ExtractIteration: 2}})
		},
		"GET /api/v9/entities/paging": func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query().Get("query")
			jsonResponse(w, 200, map[string]any{"results": []map[string]any{{"identity": "t1"}}, "cursorMark": "x"})
		},
	})
	res, err := c.NewExtractor(ExtractorOptions{}).Extract(context.Background(), extract.Request{
		EntityQuery: "type:TABLE",
		StartMarker: marker.Marker{"srcA": 0}.String(),
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	n := 0
	for _, err := range res.Entities.All(context.Background()) {
		if err != nil {
			t.Fatalf("iteration error: %v", err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("got %d entities, want 1", n)
	}
	if want := "type:TABLE AND extractorRunId:(srcA##0 OR srcA##1 OR srcA##2)"; query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
}
