package schema

import (
	"strings"
	"testing"

	"github.com/mbarbier/studium/internal/model"
)

const testSchema = `{
  "types": [
    {
      "name": "person",
      "attributes": [
        {"name": "name", "kind": "string", "identifying": true},
        {"name": "active", "kind": "date"},
        {"name": "grade", "kind": "enum", "values": ["bachelor", "master", "doctor"]},
        {"name": "see_also", "kind": "reference"}
      ]
    },
    {"name": "master", "parent": "person"},
    {
      "name": "place",
      "attributes": [{"name": "name", "kind": "string", "identifying": true}]
    },
    {
      "name": "university",
      "parent": "place",
      "attributes": [{"name": "founded", "kind": "date"}]
    }
  ],
  "relations": [
    {"name": "studied_at", "source": "person", "target": "place", "cardinality": "one-to-many"},
    {"name": "taught_at", "source": "master", "target": "university"}
  ]
}`

func mustParse(t *testing.T, data string) *Registry {
	t.Helper()
	r, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return r
}

func TestParse_Valid(t *testing.T) {
	r := mustParse(t, testSchema)

	if !r.HasType("person") || !r.HasType("university") {
		t.Error("Expected declared types to be present")
	}
	if r.HasType("dragon") {
		t.Error("Expected undeclared type to be absent")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "empty",
			doc:  `{"types": []}`,
			want: "no types",
		},
		{
			name: "duplicate type",
			doc:  `{"types": [{"name": "a"}, {"name": "a"}]}`,
			want: "duplicate type",
		},
		{
			name: "unknown kind",
			doc:  `{"types": [{"name": "a", "attributes": [{"name": "x", "kind": "float"}]}]}`,
			want: "unknown kind",
		},
		{
			name: "enum without values",
			doc:  `{"types": [{"name": "a", "attributes": [{"name": "x", "kind": "enum"}]}]}`,
			want: "enum kind requires values",
		},
		{
			name: "two identifying attributes",
			doc: `{"types": [{"name": "a", "attributes": [
				{"name": "x", "kind": "string", "identifying": true},
				{"name": "y", "kind": "string", "identifying": true}]}]}`,
			want: "identifying",
		},
		{
			name: "missing parent",
			doc:  `{"types": [{"name": "a", "parent": "ghost"}]}`,
			want: "not declared",
		},
		{
			name: "hierarchy cycle",
			doc:  `{"types": [{"name": "a", "parent": "b"}, {"name": "b", "parent": "a"}]}`,
			want: "cycle",
		},
		{
			name: "relation endpoint missing",
			doc:  `{"types": [{"name": "a"}], "relations": [{"name": "r", "source": "a", "target": "ghost"}]}`,
			want: "not declared",
		},
		{
			name: "unknown cardinality",
			doc:  `{"types": [{"name": "a"}], "relations": [{"name": "r", "source": "a", "target": "a", "cardinality": "some"}]}`,
			want: "cardinality",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if _, ok := err.(*SchemaError); !ok {
				t.Errorf("Expected *SchemaError, got %T", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Expected error containing %q, got %q", tc.want, err.Error())
			}
		})
	}
}

func TestRegistry_IsAssignable(t *testing.T) {
	r := mustParse(t, testSchema)

	if !r.IsAssignable("master", "person") {
		t.Error("Expected subtype to be assignable to parent")
	}
	if !r.IsAssignable("person", "person") {
		t.Error("Expected type to be assignable to itself")
	}
	if r.IsAssignable("person", "master") {
		t.Error("Expected parent not to be assignable to subtype")
	}
	if r.IsAssignable("person", "place") {
		t.Error("Expected unrelated types not to be assignable")
	}
}

func TestRegistry_Root(t *testing.T) {
	r := mustParse(t, testSchema)

	if got := r.Root("university"); got != "place" {
		t.Errorf("Expected root place, got %q", got)
	}
	if got := r.Root("person"); got != "person" {
		t.Errorf("Expected root person, got %q", got)
	}
}

func TestRegistry_AttributeInheritance(t *testing.T) {
	r := mustParse(t, testSchema)

	// Declared on the type itself
	if _, ok := r.Attribute("university", "founded"); !ok {
		t.Error("Expected own attribute to be found")
	}
	// Inherited from the parent
	spec, ok := r.Attribute("master", "active")
	if !ok {
		t.Fatal("Expected inherited attribute to be found")
	}
	if spec.Kind != model.KindDate {
		t.Errorf("Expected date kind, got %q", spec.Kind)
	}
	if _, ok := r.Attribute("place", "active"); ok {
		t.Error("Expected attribute not to leak across hierarchies")
	}
}

func TestRegistry_IdentifyingAttribute(t *testing.T) {
	r := mustParse(t, testSchema)

	if got := r.IdentifyingAttribute("person"); got != "name" {
		t.Errorf("Expected name, got %q", got)
	}
	// Inherited through the parent
	if got := r.IdentifyingAttribute("master"); got != "name" {
		t.Errorf("Expected inherited name, got %q", got)
	}
}

func TestRegistry_RelationAllowed(t *testing.T) {
	r := mustParse(t, testSchema)

	if !r.RelationAllowed("studied_at", "person", "place") {
		t.Error("Expected exact endpoint match to be allowed")
	}
	// Subtypes stand in for declared endpoint types
	if !r.RelationAllowed("studied_at", "master", "university") {
		t.Error("Expected subtype endpoints to be allowed")
	}
	if r.RelationAllowed("taught_at", "person", "university") {
		t.Error("Expected supertype source to be rejected")
	}
	if r.RelationAllowed("studied_at", "place", "person") {
		t.Error("Expected swapped endpoints to be rejected")
	}
	if r.RelationAllowed("ghost", "person", "place") {
		t.Error("Expected unknown relation to be rejected")
	}
}

func TestAttributeSpec_EnumAllows(t *testing.T) {
	r := mustParse(t, testSchema)
	spec, ok := r.Attribute("person", "grade")
	if !ok {
		t.Fatal("grade attribute missing")
	}

	if !spec.EnumAllows("master") || !spec.EnumAllows("MASTER") {
		t.Error("Expected case-insensitive enum match")
	}
	if spec.EnumAllows("apprentice") {
		t.Error("Expected undeclared value to be rejected")
	}
}
