// Package schema loads the ontology and answers type-compatibility
// queries. A Registry is validated once at load time and read-only
// afterwards, so every later stage shares it without locking.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mbarbier/studium/internal/model"
)

// SchemaError reports a malformed or inconsistent ontology. It is fatal:
// the run aborts before any factoid is processed.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string {
	return "schema: " + e.Detail
}

func schemaErrorf(format string, a ...interface{}) *SchemaError {
	return &SchemaError{Detail: fmt.Sprintf(format, a...)}
}

// Cardinality is the relation cardinality hint
type Cardinality string

const (
	OneToOne   Cardinality = "one-to-one"
	OneToMany  Cardinality = "one-to-many"
	ManyToMany Cardinality = "many-to-many"
)

// AttributeSpec declares one allowed attribute of an ontology type
type AttributeSpec struct {
	Name        string          `json:"name"`
	Kind        model.ValueKind `json:"kind"`
	Identifying bool            `json:"identifying,omitempty"` // Rejecting this attribute rejects the whole factoid
	Values      []string        `json:"values,omitempty"`      // Allowed values for enum kind
}

// TypeSpec declares one ontology type
type TypeSpec struct {
	Name       string          `json:"name"`
	Parent     string          `json:"parent,omitempty"`
	Attributes []AttributeSpec `json:"attributes,omitempty"`
}

// RelationSpec declares one relation type with its endpoint constraints
type RelationSpec struct {
	Name        string      `json:"name"`
	Source      string      `json:"source"`
	Target      string      `json:"target"`
	Cardinality Cardinality `json:"cardinality,omitempty"`
}

type document struct {
	Types     []TypeSpec     `json:"types"`
	Relations []RelationSpec `json:"relations"`
}

// Registry is the loaded, validated ontology
type Registry struct {
	types     map[string]*TypeSpec
	relations map[string]*RelationSpec
}

// Load reads and validates an ontology schema from a JSON file
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schemaErrorf("read %s: %v", path, err)
	}
	return Parse(data)
}

// Parse validates an ontology schema from raw JSON
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, schemaErrorf("decode: %v", err)
	}
	if len(doc.Types) == 0 {
		return nil, schemaErrorf("no types declared")
	}

	r := &Registry{
		types:     make(map[string]*TypeSpec, len(doc.Types)),
		relations: make(map[string]*RelationSpec, len(doc.Relations)),
	}

	for i := range doc.Types {
		t := &doc.Types[i]
		if t.Name == "" {
			return nil, schemaErrorf("type #%d has no name", i)
		}
		if _, dup := r.types[t.Name]; dup {
			return nil, schemaErrorf("duplicate type %q", t.Name)
		}
		identifying := 0
		for _, a := range t.Attributes {
			switch a.Kind {
			case model.KindString, model.KindDate, model.KindEnum, model.KindReference:
			default:
				return nil, schemaErrorf("type %q attribute %q: unknown kind %q", t.Name, a.Name, a.Kind)
			}
			if a.Kind == model.KindEnum && len(a.Values) == 0 {
				return nil, schemaErrorf("type %q attribute %q: enum kind requires values", t.Name, a.Name)
			}
			if a.Identifying {
				identifying++
			}
		}
		if identifying > 1 {
			return nil, schemaErrorf("type %q declares %d identifying attributes, at most one allowed", t.Name, identifying)
		}
		r.types[t.Name] = t
	}

	// Parent references must exist and the hierarchy must be acyclic
	for name, t := range r.types {
		if t.Parent == "" {
			continue
		}
		if _, ok := r.types[t.Parent]; !ok {
			return nil, schemaErrorf("type %q: parent %q not declared", name, t.Parent)
		}
		seen := map[string]bool{name: true}
		for cur := t.Parent; cur != ""; cur = r.types[cur].Parent {
			if seen[cur] {
				return nil, schemaErrorf("type hierarchy cycle through %q", cur)
			}
			seen[cur] = true
		}
	}

	for i := range doc.Relations {
		rel := &doc.Relations[i]
		if rel.Name == "" {
			return nil, schemaErrorf("relation #%d has no name", i)
		}
		if _, dup := r.relations[rel.Name]; dup {
			return nil, schemaErrorf("duplicate relation %q", rel.Name)
		}
		if _, ok := r.types[rel.Source]; !ok {
			return nil, schemaErrorf("relation %q: source type %q not declared", rel.Name, rel.Source)
		}
		if _, ok := r.types[rel.Target]; !ok {
			return nil, schemaErrorf("relation %q: target type %q not declared", rel.Name, rel.Target)
		}
		switch rel.Cardinality {
		case "", OneToOne, OneToMany, ManyToMany:
		default:
			return nil, schemaErrorf("relation %q: unknown cardinality %q", rel.Name, rel.Cardinality)
		}
		r.relations[rel.Name] = rel
	}

	return r, nil
}

// HasType reports whether the type is declared
func (r *Registry) HasType(name string) bool {
	_, ok := r.types[name]
	return ok
}

// IsAssignable reports whether an instance of instanceType can stand where
// declaredType is expected (identity or ancestry)
func (r *Registry) IsAssignable(instanceType, declaredType string) bool {
	for cur := instanceType; cur != ""; {
		if cur == declaredType {
			return true
		}
		t, ok := r.types[cur]
		if !ok {
			return false
		}
		cur = t.Parent
	}
	return false
}

// Root returns the topmost ancestor of a type (the type itself if it has
// no parent). Used as the coarse component of blocking keys so subtypes
// of the same root block together.
func (r *Registry) Root(name string) string {
	cur := name
	for {
		t, ok := r.types[cur]
		if !ok || t.Parent == "" {
			return cur
		}
		cur = t.Parent
	}
}

// Attribute returns the attribute spec declared on the type or inherited
// from an ancestor
func (r *Registry) Attribute(typeName, attrName string) (*AttributeSpec, bool) {
	for cur := typeName; cur != ""; {
		t, ok := r.types[cur]
		if !ok {
			return nil, false
		}
		for i := range t.Attributes {
			if t.Attributes[i].Name == attrName {
				return &t.Attributes[i], true
			}
		}
		cur = t.Parent
	}
	return nil, false
}

// AttributeKind returns the declared kind of an attribute, if any
func (r *Registry) AttributeKind(typeName, attrName string) (model.ValueKind, bool) {
	spec, ok := r.Attribute(typeName, attrName)
	if !ok {
		return "", false
	}
	return spec.Kind, true
}

// IdentifyingAttribute returns the name of the type's identifying
// attribute. Falls back to "name" when the type declares one.
func (r *Registry) IdentifyingAttribute(typeName string) string {
	for cur := typeName; cur != ""; {
		t, ok := r.types[cur]
		if !ok {
			return ""
		}
		for _, a := range t.Attributes {
			if a.Identifying {
				return a.Name
			}
		}
		cur = t.Parent
	}
	if _, ok := r.Attribute(typeName, "name"); ok {
		return "name"
	}
	return ""
}

// EnumAllows reports whether the value is one of the enum's declared
// values (case-insensitive)
func (s *AttributeSpec) EnumAllows(value string) bool {
	for _, v := range s.Values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// Relation returns the relation spec by name
func (r *Registry) Relation(name string) (*RelationSpec, bool) {
	rel, ok := r.relations[name]
	return rel, ok
}

// RelationAllowed reports whether a relation of relationType may connect
// the given source and target entity types
func (r *Registry) RelationAllowed(relationType, sourceType, targetType string) bool {
	rel, ok := r.relations[relationType]
	if !ok {
		return false
	}
	return r.IsAssignable(sourceType, rel.Source) && r.IsAssignable(targetType, rel.Target)
}
