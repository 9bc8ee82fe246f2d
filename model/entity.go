package model

import (
	"strconv"
	"time"

	"github.com/persistorai/catalogsync/changeset"
	"github.com/persistorai/catalogsync/identity"
)

// EntityType names the kind of a catalog entity.
type EntityType string

// Entity types used by the built-in entities.
const (
	EntityTypeTable              EntityType = "TABLE"
	EntityTypeField              EntityType = "FIELD"
	EntityTypeFile               EntityType = "FILE"
	EntityTypeDirectory          EntityType = "DIRECTORY"
	EntityTypeOperation          EntityType = "OPERATION"
	EntityTypeOperationExecution EntityType = "OPERATION_EXECUTION"
)

// Base holds the attributes shared by every entity. Concrete entities embed it.
type Base struct {
	Identity    string
	SourceType  SourceType
	EntityType  EntityType
	Namespace   string
	SourceID    string
	Name        string
	Description string
	Owner       string
	Created     time.Time
	Deleted     bool
	Tags        changeset.Tags
	Properties  changeset.Properties
}

// Core returns the shared attributes.
func (b *Base) Core() *Base { return b }

// Entity is a catalog object that can be written to the catalog. Two
// entities are the same entity iff their identities are equal.
type Entity interface {
	Core() *Base
	Schema() *Schema
}

// GenerateID derives the identity of e from its schema's id fields. Every id
// field must be set.
func GenerateID(e Entity) (string, error) {
	s := e.Schema()
	parts := make([]string, 0, len(s.IDFields))
	for _, name := range s.IDFields {
		f, _ := s.Field(name)
		v := f.Value(e)
		if isZero(v) {
			return "", missing(string(s.EntityType), name)
		}
		parts = append(parts, formatComponent(v))
	}
	return identity.Hash(parts...), nil
}

// Prepare fills defaults from the schema, assigns a generated identity when
// none is set and validates required fields.
func Prepare(e Entity) error {
	if ref, ok := e.(*Reference); ok {
		return ref.validate()
	}

	b, s := e.Core(), e.Schema()
	if b.EntityType == "" {
		b.EntityType = s.EntityType
	}
	if b.SourceType == "" {
		b.SourceType = s.DefaultSourceType
	}
	if b.Identity == "" {
		id, err := GenerateID(e)
		if err != nil {
			return err
		}
		b.Identity = id
	}
	return Validate(e)
}

// Validate checks that every required field of e is set.
func Validate(e Entity) error {
	if ref, ok := e.(*Reference); ok {
		return ref.validate()
	}
	s := e.Schema()
	for _, f := range s.Fields {
		if f.Required && isZero(f.Value(e)) {
			return missing(string(s.EntityType), f.Name)
		}
	}
	return nil
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case SourceType:
		return x == ""
	case EntityType:
		return x == ""
	case time.Time:
		return x.IsZero()
	case []string:
		return len(x) == 0
	default:
		return false
	}
}

func formatComponent(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case SourceType:
		return string(x)
	case EntityType:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
