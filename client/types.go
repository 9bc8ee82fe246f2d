package client

import (
	"encoding/json"

	"github.com/persistorai/catalogsync/model"
)

// WriteRequest is the payload of a metadata write: flat, deduplicated
// entities and relations.
type WriteRequest struct {
	Entities  []map[string]any  `json:"entities"`
	Relations []*model.Relation `json:"relations"`
}

// WriteSummary is the catalog's report on a metadata write. Error entries
// are passed through as returned by the catalog.
type WriteSummary struct {
	EntityUpdateCount   int               `json:"entityUpdateCount"`
	EntityErrors        []json.RawMessage `json:"entityErrors,omitempty"`
	RelationUpdateCount int               `json:"relationUpdateCount"`
	RelationErrors      []json.RawMessage `json:"relationErrors,omitempty"`
}

// HasErrors reports whether the catalog rejected any entity or relation.
func (s *WriteSummary) HasErrors() bool {
	return len(s.EntityErrors) > 0 || len(s.RelationErrors) > 0
}
