// Package graph flattens a reference-based entity graph into deduplicated
// entity and relation collections ready to be written to the catalog.
package graph

import (
	"fmt"

	"github.com/persistorai/catalogsync/model"
	"github.com/persistorai/catalogsync/relation"
)

// Result holds the entities and relations reached from a set of roots, keyed
// by identity. It is scratch state for one write.
type Result struct {
	Entities  map[string]model.Entity
	Relations map[string]*model.Relation

	entityOrder   []string
	relationOrder []string
}

func newResult() *Result {
	return &Result{
		Entities:  make(map[string]model.Entity),
		Relations: make(map[string]*model.Relation),
	}
}

// EntityList returns the entities in traversal order.
func (r *Result) EntityList() []model.Entity {
	out := make([]model.Entity, 0, len(r.entityOrder))
	for _, id := range r.entityOrder {
		out = append(out, r.Entities[id])
	}
	return out
}

// RelationList returns the relations in the order they were materialized.
func (r *Result) RelationList() []*model.Relation {
	out := make([]*model.Relation, 0, len(r.relationOrder))
	for _, id := range r.relationOrder {
		out = append(out, r.Relations[id])
	}
	return out
}

func (r *Result) addRelation(rel *model.Relation) {
	if _, ok := r.Relations[rel.Identity]; ok {
		return
	}
	r.Relations[rel.Identity] = rel
	r.relationOrder = append(r.relationOrder, rel.Identity)
}

// Build walks every root depth-first. Entities without an identity get a
// generated one, each entity is validated, and every declared relation is
// materialized once its connected entities have been visited. References are
// used as relation endpoints only. Any validation error aborts the build.
func Build(roots ...model.Entity) (*Result, error) {
	res := newResult()
	for _, root := range roots {
		if root == nil {
			continue
		}
		if err := visit(res, root); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func visit(res *Result, e model.Entity) error {
	if err := model.Prepare(e); err != nil {
		return err
	}
	if model.IsReference(e) {
		return nil
	}

	id := e.Core().Identity
	if _, seen := res.Entities[id]; seen {
		return nil
	}
	res.Entities[id] = e
	res.entityOrder = append(res.entityOrder, id)

	for _, rf := range e.Schema().Relations {
		targets := rf.Targets(e)
		if len(targets) == 0 {
			continue
		}
		for _, t := range targets {
			if err := visit(res, t); err != nil {
				return err
			}
		}
		if coveredByInverse(e, rf, targets) {
			continue
		}
		rel, err := relation.New(rf.Kind, e, targets, rf.Role, e.Core().Namespace)
		if err != nil {
			return fmt.Errorf("%s %s.%s: %w", e.Core().EntityType, id, rf.Name, err)
		}
		res.addRelation(rel)
	}
	return nil
}

// coveredByInverse reports whether every target declares the same link back
// to e in a field with more members than rf, in which case the relation is
// materialized from the target's side. Equal-sized declarations converge on
// one identity and need no deferral.
func coveredByInverse(e model.Entity, rf model.RelationField, targets []model.Entity) bool {
	selfRole, ok := rf.Kind.Counterpart(rf.Role)
	if !ok {
		return false
	}
	for _, t := range targets {
		if model.IsReference(t) || !declaresBack(t, e, rf.Kind, selfRole, len(targets)) {
			return false
		}
	}
	return true
}

func declaresBack(t, e model.Entity, kind model.RelationKind, role model.Role, size int) bool {
	id := e.Core().Identity
	for _, inv := range t.Schema().Relations {
		if inv.Kind != kind || inv.Role != role {
			continue
		}
		back := inv.Targets(t)
		if len(back) <= size {
			continue
		}
		for _, b := range back {
			if b == e || (id != "" && b.Core().Identity == id) {
				return true
			}
		}
	}
	return false
}
