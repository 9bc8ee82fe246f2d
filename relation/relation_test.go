package relation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/persistorai/catalogsync/identity"
	"github.com/persistorai/catalogsync/model"
)

func entity(t *testing.T, et model.EntityType, st model.SourceType, name string) model.Entity {
	t.Helper()
	return model.NewReference(et, st, identity.Hash(string(et), name))
}

func TestGenerateIDOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for run := 0; run < 100; run++ {
		ep1 := make([]string, 1+rng.IntN(5))
		ep2 := make([]string, 1+rng.IntN(20))
		for i := range ep1 {
			ep1[i] = identity.Hash(fmt.Sprint("a", run, i))
		}
		for i := range ep2 {
			ep2[i] = identity.Hash(fmt.Sprint("b", run, i))
		}

		want := GenerateID(model.DataFlow, ep1, model.SourceTypeHive, ep2, model.SourceTypeHDFS)

		rev1, rev2 := slices.Clone(ep1), slices.Clone(ep2)
		slices.Reverse(rev1)
		slices.Reverse(rev2)
		if got := GenerateID(model.DataFlow, rev1, model.SourceTypeHive, rev2, model.SourceTypeHDFS); got != want {
			t.Fatalf("run %d: reversed ids changed identity", run)
		}

		rng.Shuffle(len(ep2), func(i, j int) { ep2[i], ep2[j] = ep2[j], ep2[i] })
		if got := GenerateID(model.DataFlow, ep1, model.SourceTypeHive, ep2, model.SourceTypeHDFS); got != want {
			t.Fatalf("run %d: shuffled ids changed identity", run)
		}
	}
}

func TestGenerateIDDoesNotMutateInput(t *testing.T) {
	ids := []string{"c", "a", "b"}
	GenerateID(model.DataFlow, ids, model.SourceTypeSDK, []string{"x"}, model.SourceTypeSDK)
	if !slices.Equal(ids, []string{"c", "a", "b"}) {
		t.Errorf("input reordered: %v", ids)
	}
}

func TestGenerateIDDistinguishesKindAndDirection(t *testing.T) {
	a, b := []string{"a"}, []string{"b"}
	df := GenerateID(model.DataFlow, a, model.SourceTypeSDK, b, model.SourceTypeSDK)
	if df == GenerateID(model.ParentChild, a, model.SourceTypeSDK, b, model.SourceTypeSDK) {
		t.Error("kind does not affect identity")
	}
	if df == GenerateID(model.DataFlow, b, model.SourceTypeSDK, a, model.SourceTypeSDK) {
		t.Error("direction does not affect identity")
	}
}

func TestNewRoleMapping(t *testing.T) {
	self := entity(t, model.EntityTypeTable, model.SourceTypeHive, "self")
	other := entity(t, model.EntityTypeFile, model.SourceTypeHDFS, "other")

	tests := []struct {
		kind     model.RelationKind
		role     model.Role
		selfRole model.Role
		selfOnEp int
	}{
		{model.DataFlow, model.RoleSource, model.RoleTarget, 2},
		{model.DataFlow, model.RoleTarget, model.RoleSource, 1},
		{model.ParentChild, model.RoleParent, model.RoleChild, 2},
		{model.ParentChild, model.RoleChild, model.RoleParent, 1},
		{model.LogicalPhysical, model.RoleLogical, model.RolePhysical, 2},
		{model.LogicalPhysical, model.RolePhysical, model.RoleLogical, 1},
		{model.InstanceOf, model.RoleTemplate, model.RoleInstance, 2},
		{model.InstanceOf, model.RoleInstance, model.RoleTemplate, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.kind, tt.role), func(t *testing.T) {
			rel, err := New(tt.kind, self, []model.Entity{other}, tt.role, "ns")
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			selfEp, otherEp := rel.Ep1, rel.Ep2
			if tt.selfOnEp == 2 {
				selfEp, otherEp = rel.Ep2, rel.Ep1
			}
			if selfEp.Role != tt.selfRole || selfEp.IDs[0] != self.Core().Identity {
				t.Errorf("self endpoint = %+v", selfEp)
			}
			if otherEp.Role != tt.role || otherEp.IDs[0] != other.Core().Identity {
				t.Errorf("other endpoint = %+v", otherEp)
			}
			if !identity.Valid(rel.Identity) {
				t.Errorf("identity %q is not a valid digest", rel.Identity)
			}
		})
	}
}

func TestNewIdentityIndependentOfMemberOrder(t *testing.T) {
	parent := entity(t, model.EntityTypeTable, model.SourceTypeHive, "t")
	cols := []model.Entity{
		entity(t, model.EntityTypeField, model.SourceTypeHive, "c1"),
		entity(t, model.EntityTypeField, model.SourceTypeHive, "c2"),
		entity(t, model.EntityTypeField, model.SourceTypeHive, "c3"),
	}
	a, err := New(model.ParentChild, parent, cols, model.RoleChild, "ns")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	reversed := slices.Clone(cols)
	slices.Reverse(reversed)
	b, err := New(model.ParentChild, parent, reversed, model.RoleChild, "ns")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if a.Identity != b.Identity {
		t.Error("member order changed the relation identity")
	}
}

func TestNewArity(t *testing.T) {
	child := entity(t, model.EntityTypeField, model.SourceTypeHive, "c")
	parents := []model.Entity{
		entity(t, model.EntityTypeTable, model.SourceTypeHive, "p1"),
		entity(t, model.EntityTypeTable, model.SourceTypeHive, "p2"),
	}
	tests := []struct {
		name string
		kind model.RelationKind
		role model.Role
	}{
		{"two parents", model.ParentChild, model.RoleParent},
		{"two logicals", model.LogicalPhysical, model.RoleLogical},
		{"two templates", model.InstanceOf, model.RoleTemplate},
		{"two instances", model.InstanceOf, model.RoleInstance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.kind, child, parents, tt.role, "ns")
			if !errors.Is(err, model.ErrEndpointArity) {
				t.Errorf("New() error = %v, want ErrEndpointArity", err)
			}
		})
	}

	// The many side accepts collections.
	if _, err := New(model.DataFlow, child, parents, model.RoleSource, "ns"); err != nil {
		t.Errorf("DATA_FLOW with two sources: %v", err)
	}
	if _, err := New(model.ParentChild, parents[0], []model.Entity{child, child}, model.RoleChild, "ns"); err != nil {
		t.Errorf("PARENT_CHILD with two children: %v", err)
	}
}

func TestNewInconsistentEndpoint(t *testing.T) {
	self := entity(t, model.EntityTypeOperationExecution, model.SourceTypeSDK, "run")
	mixed := []model.Entity{
		entity(t, model.EntityTypeTable, model.SourceTypeHive, "t"),
		entity(t, model.EntityTypeFile, model.SourceTypeHDFS, "f"),
	}
	_, err := New(model.DataFlow, self, mixed, model.RoleSource, "ns")
	if !errors.Is(err, model.ErrInconsistentEndpoint) {
		t.Fatalf("New() error = %v, want ErrInconsistentEndpoint", err)
	}
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Subject != "DATA_FLOW" || verr.Field != "SOURCE" {
		t.Errorf("error = %v, want DATA_FLOW/SOURCE", err)
	}
}

func TestNewInvalidRole(t *testing.T) {
	self := entity(t, model.EntityTypeTable, model.SourceTypeHive, "t")
	_, err := New(model.DataFlow, self, []model.Entity{self}, model.RoleParent, "ns")
	if !errors.Is(err, model.ErrInvalidRole) {
		t.Errorf("New() error = %v, want ErrInvalidRole", err)
	}
}

func TestNewMissingRequired(t *testing.T) {
	self := entity(t, model.EntityTypeTable, model.SourceTypeHive, "t")
	other := entity(t, model.EntityTypeFile, model.SourceTypeHDFS, "f")

	_, err := New(model.LogicalPhysical, self, []model.Entity{other}, model.RolePhysical, "")
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "namespace" {
		t.Errorf("missing namespace: error = %v", err)
	}

	_, err = New(model.DataFlow, self, nil, model.RoleTarget, "ns")
	if !errors.As(err, &verr) || verr.Field != "ep2Ids" {
		t.Errorf("empty target endpoint: error = %v", err)
	}
}

func TestNewWithAttributeReference(t *testing.T) {
	self := entity(t, model.EntityTypeOperationExecution, model.SourceTypeSDK, "run")
	byAttrs := model.NewReferenceByAttrs(model.EntityTypeFile, model.SourceTypeHDFS, "hdfs1",
		map[string]string{"fileSystemPath": "/data/in"})

	rel, err := New(model.DataFlow, self, []model.Entity{byAttrs}, model.RoleSource, "ns")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if len(rel.Ep1.IDs) != 0 || len(rel.Ep1.IDAttrs) != 1 || rel.Ep1.SourceID != "hdfs1" {
		t.Errorf("source endpoint = %+v", rel.Ep1)
	}
}

func TestGenerateIDUnambiguousMembers(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
	}{
		{"comma inside id", []string{"a,b"}, []string{"a", "b"}},
		{"split point", []string{"ab", "c"}, []string{"a", "bc"}},
		{"empty member", []string{""}, nil},
		{"separator byte", []string{"a\x00b"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := GenerateID(model.DataFlow, tt.a, model.SourceTypeSDK, []string{"c"}, model.SourceTypeSDK)
			y := GenerateID(model.DataFlow, tt.b, model.SourceTypeSDK, []string{"c"}, model.SourceTypeSDK)
			if x == y {
				t.Errorf("%q and %q share identity %s", tt.a, tt.b, x)
			}
		})
	}
}

func TestNewAttributeMemberDistinctFromIdentity(t *testing.T) {
	self := entity(t, model.EntityTypeOperationExecution, model.SourceTypeSDK, "run")
	byAttrs := model.NewReferenceByAttrs(model.EntityTypeFile, model.SourceTypeHDFS, "",
		map[string]string{"k": "v"})
	byID := model.NewReference(model.EntityTypeFile, model.SourceTypeHDFS, "k=v")

	a, err := New(model.DataFlow, self, []model.Entity{byAttrs}, model.RoleSource, "ns")
	if err != nil {
		t.Fatalf("New(attrs) error: %v", err)
	}
	b, err := New(model.DataFlow, self, []model.Entity{byID}, model.RoleSource, "ns")
	if err != nil {
		t.Fatalf("New(id) error: %v", err)
	}
	if a.Identity == b.Identity {
		t.Error("attribute member and identity member share a relation identity")
	}
}
