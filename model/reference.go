package model

// Reference stands in for an entity that is not written by this client. It
// carries only what the catalog needs to resolve it: an identity, or identity
// attributes. References are never traversed and never written as entities.
type Reference struct {
	Base
	IDAttrs map[string]string
}

var referenceSchema = NewSchema("", nil, nil, nil)

// Schema implements Entity. References declare no fields or relations.
func (*Reference) Schema() *Schema { return referenceSchema }

// NewReference refers to an existing entity by identity.
func NewReference(entityType EntityType, sourceType SourceType, id string) *Reference {
	return &Reference{Base: Base{Identity: id, EntityType: entityType, SourceType: sourceType}}
}

// NewReferenceByAttrs refers to an entity by the attributes the catalog
// derives its identity from.
func NewReferenceByAttrs(entityType EntityType, sourceType SourceType, sourceID string, attrs map[string]string) *Reference {
	return &Reference{
		Base:    Base{EntityType: entityType, SourceType: sourceType, SourceID: sourceID},
		IDAttrs: attrs,
	}
}

// RefTo returns a reference to e.
func RefTo(e Entity) *Reference {
	b := e.Core()
	return &Reference{Base: Base{
		Identity: b.Identity, EntityType: b.EntityType, SourceType: b.SourceType, SourceID: b.SourceID,
	}}
}

// IsReference reports whether e is a reference proxy.
func IsReference(e Entity) bool {
	_, ok := e.(*Reference)
	return ok
}

func (r *Reference) validate() error {
	const subject = "REFERENCE"
	if r.Identity == "" && len(r.IDAttrs) == 0 {
		return missing(subject, "identity")
	}
	if r.EntityType == "" {
		return missing(subject, "entityType")
	}
	if r.SourceType == "" {
		return missing(subject, "sourceType")
	}
	return nil
}
