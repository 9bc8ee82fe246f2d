package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/catalogsync/graph"
	"github.com/persistorai/catalogsync/internal/metrics"
	"github.com/persistorai/catalogsync/model"
)

// ErrWriterClosed is returned by Write after Close.
var ErrWriterClosed = errors.New("writer closed")

// MetadataService submits metadata to the catalog's plugin endpoint.
type MetadataService struct {
	c *Client
}

// Write posts one batch of entities and relations. sessionID, when set, is
// sent as X-Session-ID.
func (s *MetadataService) Write(ctx context.Context, req *WriteRequest, autocommit bool, sessionID string) (*WriteSummary, error) {
	path := s.c.path("/metadata/plugin") + "?autocommit=" + strconv.FormatBool(autocommit)
	var hdr http.Header
	if sessionID != "" {
		hdr = http.Header{"X-Session-Id": []string{sessionID}}
	}
	var summary WriteSummary
	if err := s.c.post(ctx, path, hdr, req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	Autocommit bool
}

// Writer is one write session. Entities written through it keep their
// pending tag and property changes until Close. A Writer is not safe for
// concurrent use.
type Writer struct {
	c          *Client
	autocommit bool
	sessionID  string
	written    map[string]model.Entity
	closed     bool
}

// NewWriter opens a write session.
func (c *Client) NewWriter(opts WriterOptions) *Writer {
	return &Writer{
		c:          c,
		autocommit: opts.Autocommit,
		sessionID:  uuid.NewString(),
		written:    make(map[string]model.Entity),
	}
}

// SessionID returns the id sent with every request of this session.
func (w *Writer) SessionID() string { return w.sessionID }

// Encode flattens the graph reachable from roots into a write request.
func Encode(roots ...model.Entity) (*WriteRequest, *graph.Result, error) {
	res, err := graph.Build(roots...)
	if err != nil {
		return nil, nil, err
	}
	req := &WriteRequest{
		Entities:  make([]map[string]any, 0, len(res.Entities)),
		Relations: res.RelationList(),
	}
	for _, e := range res.EntityList() {
		req.Entities = append(req.Entities, model.Encode(e))
	}
	return req, res, nil
}

// Write builds the graph reachable from roots and sends it to the catalog.
// Nothing is sent when the graph fails validation.
func (w *Writer) Write(ctx context.Context, roots ...model.Entity) (*WriteSummary, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	req, res, err := Encode(roots...)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	summary, err := w.c.Metadata.Write(ctx, req, w.autocommit, w.sessionID)
	if err != nil {
		return nil, err
	}
	for id, e := range res.Entities {
		w.written[id] = e
	}

	metrics.EntitiesWritten.Add(float64(summary.EntityUpdateCount))
	metrics.RelationsWritten.Add(float64(summary.RelationUpdateCount))
	metrics.WriteErrors.WithLabelValues("entity").Add(float64(len(summary.EntityErrors)))
	metrics.WriteErrors.WithLabelValues("relation").Add(float64(len(summary.RelationErrors)))

	entry := w.c.log.WithFields(logrus.Fields{
		"session":          w.sessionID,
		"entities":         len(req.Entities),
		"relations":        len(req.Relations),
		"entity_updates":   summary.EntityUpdateCount,
		"relation_updates": summary.RelationUpdateCount,
	})
	if summary.HasErrors() {
		entry.WithFields(logrus.Fields{
			"entity_errors":   len(summary.EntityErrors),
			"relation_errors": len(summary.RelationErrors),
		}).Warn("catalog rejected part of the write")
	} else {
		entry.Info("metadata written")
	}
	return summary, nil
}

// Close ends the session and clears the pending tag and property changes of
// every entity written through it.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	for _, e := range w.written {
		b := e.Core()
		b.Tags.Reset()
		b.Properties.Reset()
	}
	clear(w.written)
	w.closed = true
	return nil
}
