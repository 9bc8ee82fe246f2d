package model

import "fmt"

// Field describes one attribute of an entity type.
type Field struct {
	Name     string
	Required bool
	Value    func(Entity) any
}

// RelationField declares a relation from an entity to the entities returned
// by Targets. Role is the role those targets play; the owning entity takes
// the counterpart role.
type RelationField struct {
	Name    string
	Kind    RelationKind
	Role    Role
	Targets func(Entity) []Entity
}

// Schema is the static declaration of an entity type. It is built once per
// type and shared by every value of that type.
type Schema struct {
	EntityType        EntityType
	DefaultSourceType SourceType
	IDFields          []string
	Fields            []Field
	Relations         []RelationField

	byName map[string]int
}

// commonFields are present on every schema, ahead of the type's own fields.
var commonFields = []Field{
	{Name: "identity", Required: true, Value: func(e Entity) any { return e.Core().Identity }},
	{Name: "sourceType", Required: true, Value: func(e Entity) any { return e.Core().SourceType }},
	{Name: "entityType", Required: true, Value: func(e Entity) any { return e.Core().EntityType }},
	{Name: "namespace", Required: true, Value: func(e Entity) any { return e.Core().Namespace }},
	{Name: "sourceId", Value: func(e Entity) any { return e.Core().SourceID }},
	{Name: "name", Value: func(e Entity) any { return e.Core().Name }},
	{Name: "description", Value: func(e Entity) any { return e.Core().Description }},
	{Name: "owner", Value: func(e Entity) any { return e.Core().Owner }},
	{Name: "created", Value: func(e Entity) any { return e.Core().Created }},
	{Name: "deleted", Value: func(e Entity) any { return e.Core().Deleted }},
}

// NewSchema builds a schema. idFields name, in order, the fields whose values
// derive the identity of entities without an explicit one. It panics when an
// id field is not declared, since schemas are package-level values.
func NewSchema(entityType EntityType, idFields []string, fields []Field, relations []RelationField) *Schema {
	s := &Schema{
		EntityType:        entityType,
		DefaultSourceType: SourceTypeSDK,
		IDFields:          idFields,
		Fields:            append(append([]Field{}, commonFields...), fields...),
		Relations:         relations,
		byName:            make(map[string]int),
	}
	for i, f := range s.Fields {
		s.byName[f.Name] = i
	}
	for _, name := range idFields {
		if _, ok := s.byName[name]; !ok {
			panic(fmt.Sprintf("model: schema %s: unknown id field %q", entityType, name))
		}
	}
	for _, r := range relations {
		if !r.Kind.HasRole(r.Role) {
			panic(fmt.Sprintf("model: schema %s: relation %s: role %s not valid for %s", entityType, r.Name, r.Role, r.Kind))
		}
	}
	return s
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}
