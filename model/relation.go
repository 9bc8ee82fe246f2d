package model

import "encoding/json"

// RelationKind is one of the four fixed relation kinds.
type RelationKind string

// Relation kinds.
const (
	DataFlow        RelationKind = "DATA_FLOW"
	ParentChild     RelationKind = "PARENT_CHILD"
	LogicalPhysical RelationKind = "LOGICAL_PHYSICAL"
	InstanceOf      RelationKind = "INSTANCE_OF"
)

// Role is the part an endpoint plays in a relation.
type Role string

// Endpoint roles. The first role of each pair always sits on endpoint 1.
const (
	RoleSource   Role = "SOURCE"
	RoleTarget   Role = "TARGET"
	RoleParent   Role = "PARENT"
	RoleChild    Role = "CHILD"
	RoleLogical  Role = "LOGICAL"
	RolePhysical Role = "PHYSICAL"
	RoleTemplate Role = "TEMPLATE"
	RoleInstance Role = "INSTANCE"
)

var kindRoles = map[RelationKind][2]Role{
	DataFlow:        {RoleSource, RoleTarget},
	ParentChild:     {RoleParent, RoleChild},
	LogicalPhysical: {RoleLogical, RolePhysical},
	InstanceOf:      {RoleTemplate, RoleInstance},
}

// Roles returns the endpoint 1 and endpoint 2 roles of k.
func (k RelationKind) Roles() (ep1, ep2 Role, ok bool) {
	r, ok := kindRoles[k]
	return r[0], r[1], ok
}

// HasRole reports whether r is one of k's roles.
func (k RelationKind) HasRole(r Role) bool {
	roles, ok := kindRoles[k]
	return ok && (roles[0] == r || roles[1] == r)
}

// Counterpart returns the role paired with r within kind k.
func (k RelationKind) Counterpart(r Role) (Role, bool) {
	roles, ok := kindRoles[k]
	switch {
	case !ok:
		return "", false
	case roles[0] == r:
		return roles[1], true
	case roles[1] == r:
		return roles[0], true
	default:
		return "", false
	}
}

// Endpoint is one side of a relation. Members are named by identity, or by
// identity attributes the catalog resolves itself.
type Endpoint struct {
	Role       Role
	IDs        []string
	IDAttrs    []map[string]string
	EntityType EntityType
	SourceType SourceType
	SourceID   string
}

// Size returns the number of members.
func (ep *Endpoint) Size() int { return len(ep.IDs) + len(ep.IDAttrs) }

// Relation is a directed, typed link between two endpoints.
type Relation struct {
	Identity   string
	Kind       RelationKind
	Namespace  string
	Ep1        Endpoint
	Ep2        Endpoint
	Properties map[string]string
}

type relationWire struct {
	Identity      string              `json:"identity"`
	Type          RelationKind        `json:"type"`
	Namespace     string              `json:"namespace"`
	Ep1IDs        []string            `json:"ep1Ids,omitempty"`
	Ep1IDAttrs    []map[string]string `json:"ep1IdAttrs,omitempty"`
	Ep1Type       EntityType          `json:"ep1Type"`
	Ep1SourceType SourceType          `json:"ep1SourceType"`
	Ep1SourceID   string              `json:"ep1SourceId,omitempty"`
	Ep2IDs        []string            `json:"ep2Ids,omitempty"`
	Ep2IDAttrs    []map[string]string `json:"ep2IdAttrs,omitempty"`
	Ep2Type       EntityType          `json:"ep2Type"`
	Ep2SourceType SourceType          `json:"ep2SourceType"`
	Ep2SourceID   string              `json:"ep2SourceId,omitempty"`
	Properties    map[string]string   `json:"userProperties,omitempty"`
}

// MarshalJSON renders the catalog's flat relation form.
func (r *Relation) MarshalJSON() ([]byte, error) {
	return json.Marshal(relationWire{
		Identity:      r.Identity,
		Type:          r.Kind,
		Namespace:     r.Namespace,
		Ep1IDs:        r.Ep1.IDs,
		Ep1IDAttrs:    r.Ep1.IDAttrs,
		Ep1Type:       r.Ep1.EntityType,
		Ep1SourceType: r.Ep1.SourceType,
		Ep1SourceID:   r.Ep1.SourceID,
		Ep2IDs:        r.Ep2.IDs,
		Ep2IDAttrs:    r.Ep2.IDAttrs,
		Ep2Type:       r.Ep2.EntityType,
		Ep2SourceType: r.Ep2.SourceType,
		Ep2SourceID:   r.Ep2.SourceID,
		Properties:    r.Properties,
	})
}

// UnmarshalJSON parses the flat relation form. Roles are restored from the kind.
func (r *Relation) UnmarshalJSON(data []byte) error {
	var w relationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ep1Role, ep2Role, _ := w.Type.Roles()
	*r = Relation{
		Identity:  w.Identity,
		Kind:      w.Type,
		Namespace: w.Namespace,
		Ep1: Endpoint{
			Role: ep1Role, IDs: w.Ep1IDs, IDAttrs: w.Ep1IDAttrs,
			EntityType: w.Ep1Type, SourceType: w.Ep1SourceType, SourceID: w.Ep1SourceID,
		},
		Ep2: Endpoint{
			Role: ep2Role, IDs: w.Ep2IDs, IDAttrs: w.Ep2IDAttrs,
			EntityType: w.Ep2Type, SourceType: w.Ep2SourceType, SourceID: w.Ep2SourceID,
		},
		Properties: w.Properties,
	}
	return nil
}
