// Package relation materializes typed relations between entities and derives
// their identities.
package relation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/persistorai/catalogsync/identity"
	"github.com/persistorai/catalogsync/model"
)

// GenerateID derives a relation identity. Each id list is sorted on a copy
// first, so the identity does not depend on the order members were given in.
// Every member is its own length-prefixed component behind a member count,
// so no split of one endpoint's ids can collide with another.
func GenerateID(kind model.RelationKind, ep1IDs []string, ep1SourceType model.SourceType, ep2IDs []string, ep2SourceType model.SourceType) string {
	parts := make([]string, 0, len(ep1IDs)+len(ep2IDs)+5)
	parts = append(parts, string(kind))
	parts = appendEndpoint(parts, ep1IDs)
	parts = append(parts, string(ep1SourceType))
	parts = appendEndpoint(parts, ep2IDs)
	parts = append(parts, string(ep2SourceType))
	return identity.Hash(parts...)
}

func appendEndpoint(parts, ids []string) []string {
	s := append([]string(nil), ids...)
	sort.Strings(s)
	parts = append(parts, strconv.Itoa(len(s)))
	for _, id := range s {
		parts = append(parts, lengthPrefixed(id))
	}
	return parts
}

func lengthPrefixed(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}

// New builds the relation of the given kind between self and others, where
// others play roleOfOther and self takes the counterpart role. All members of
// others must share one entity type and one source type. Identities must
// already be resolved.
func New(kind model.RelationKind, self model.Entity, others []model.Entity, roleOfOther model.Role, namespace string) (*model.Relation, error) {
	selfRole, ok := kind.Counterpart(roleOfOther)
	if !ok {
		return nil, &model.ValidationError{
			Err: model.ErrInvalidRole, Subject: string(kind), Field: "role",
			Detail: string(roleOfOther),
		}
	}

	selfEp := endpointOf(selfRole, []model.Entity{self})
	otherEp, err := homogeneousEndpoint(kind, roleOfOther, others)
	if err != nil {
		return nil, err
	}

	ep1Role, _, _ := kind.Roles()
	rel := &model.Relation{Kind: kind, Namespace: namespace}
	if selfRole == ep1Role {
		rel.Ep1, rel.Ep2 = selfEp, otherEp
	} else {
		rel.Ep1, rel.Ep2 = otherEp, selfEp
	}

	if err := checkArity(rel); err != nil {
		return nil, err
	}

	rel.Identity = GenerateID(kind, endpointKeys(&rel.Ep1), rel.Ep1.SourceType, endpointKeys(&rel.Ep2), rel.Ep2.SourceType)

	if err := Validate(rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// Validate checks the required attributes of a relation.
func Validate(rel *model.Relation) error {
	subject := string(rel.Kind)
	if subject == "" {
		subject = "RELATION"
	}
	switch {
	case rel.Kind == "":
		return &model.ValidationError{Err: model.ErrMissingRequiredProperty, Subject: subject, Field: "type"}
	case rel.Namespace == "":
		return &model.ValidationError{Err: model.ErrMissingRequiredProperty, Subject: subject, Field: "namespace"}
	case rel.Identity == "":
		return &model.ValidationError{Err: model.ErrMissingRequiredProperty, Subject: subject, Field: "identity"}
	case rel.Ep1.Size() == 0:
		return &model.ValidationError{Err: model.ErrMissingRequiredProperty, Subject: subject, Field: "ep1Ids"}
	case rel.Ep2.Size() == 0:
		return &model.ValidationError{Err: model.ErrMissingRequiredProperty, Subject: subject, Field: "ep2Ids"}
	}
	return nil
}

// checkArity enforces the "exactly one" side of each kind. INSTANCE_OF links
// one template with one instance.
func checkArity(rel *model.Relation) error {
	var single []*model.Endpoint
	switch rel.Kind {
	case model.ParentChild, model.LogicalPhysical:
		single = []*model.Endpoint{&rel.Ep1}
	case model.InstanceOf:
		single = []*model.Endpoint{&rel.Ep1, &rel.Ep2}
	}
	for _, ep := range single {
		if ep.Size() != 1 {
			return &model.ValidationError{
				Err: model.ErrEndpointArity, Subject: string(rel.Kind), Field: string(ep.Role),
				Detail: fmt.Sprintf("got %d", ep.Size()),
			}
		}
	}
	return nil
}

func homogeneousEndpoint(kind model.RelationKind, role model.Role, members []model.Entity) (model.Endpoint, error) {
	if len(members) > 1 {
		first := members[0].Core()
		for _, m := range members[1:] {
			b := m.Core()
			if b.EntityType != first.EntityType || b.SourceType != first.SourceType {
				return model.Endpoint{}, &model.ValidationError{
					Err: model.ErrInconsistentEndpoint, Subject: string(kind), Field: string(role),
					Detail: fmt.Sprintf("%s/%s vs %s/%s", first.SourceType, first.EntityType, b.SourceType, b.EntityType),
				}
			}
		}
	}
	return endpointOf(role, members), nil
}

func endpointOf(role model.Role, members []model.Entity) model.Endpoint {
	ep := model.Endpoint{Role: role}
	for i, m := range members {
		b := m.Core()
		if i == 0 {
			ep.EntityType, ep.SourceType, ep.SourceID = b.EntityType, b.SourceType, b.SourceID
		} else if ep.SourceID != b.SourceID {
			ep.SourceID = ""
		}
		if b.Identity != "" {
			ep.IDs = append(ep.IDs, b.Identity)
			continue
		}
		if ref, ok := m.(*model.Reference); ok && len(ref.IDAttrs) > 0 {
			ep.IDAttrs = append(ep.IDAttrs, ref.IDAttrs)
		}
	}
	return ep
}

// endpointKeys lists the keys of an endpoint's members. Identities are
// tagged "i" and members named by identity attributes are tagged "a" with
// every key and value length-prefixed, so the two forms never overlap.
func endpointKeys(ep *model.Endpoint) []string {
	keys := make([]string, 0, ep.Size())
	for _, id := range ep.IDs {
		keys = append(keys, "i"+id)
	}
	for _, attrs := range ep.IDAttrs {
		names := make([]string, 0, len(attrs))
		for k := range attrs {
			names = append(names, k)
		}
		sort.Strings(names)
		var b strings.Builder
		b.WriteByte('a')
		for _, k := range names {
			b.WriteString(lengthPrefixed(k))
			b.WriteString(lengthPrefixed(attrs[k]))
		}
		keys = append(keys, b.String())
	}
	return keys
}
