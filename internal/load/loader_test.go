package load

import (
	"reflect"
	"testing"

	"github.com/mbarbier/studium/internal/export"
)

func TestNodeLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"person", "Person"},
		{"master", "Master"},
		{"university", "University"},
		{"legal entity", "Legal_entity"},
		{"", "Entity"},
		{"123", "Entity"},
	}
	for _, tc := range cases {
		if got := nodeLabel(tc.in); got != tc.want {
			t.Errorf("nodeLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRelTypeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"studied_at", "STUDIED_AT"},
		{"taught at", "TAUGHT_AT"},
		{"knows", "KNOWS"},
		{"", "RELATED_TO"},
	}
	for _, tc := range cases {
		if got := relTypeName(tc.in); got != tc.want {
			t.Errorf("relTypeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeIdent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"person", "person"},
		{"studied_at", "studied_at"},
		{"has space", "has_space"},
		{"semi;colon", "semi_colon"},
		{"1abc", "abc"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitizeIdent(tc.in); got != tc.want {
			t.Errorf("sanitizeIdent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupEntities(t *testing.T) {
	rows := []export.EntityRow{
		{ID: "a", Type: "person"},
		{ID: "b", Type: "master"},
		{ID: "c", Type: "person"},
	}
	grouped := groupEntities(rows)

	if len(grouped) != 2 {
		t.Fatalf("Expected 2 labels, got %d", len(grouped))
	}
	if len(grouped["Person"]) != 2 {
		t.Errorf("Expected 2 Person rows, got %d", len(grouped["Person"]))
	}
	if len(grouped["Master"]) != 1 {
		t.Errorf("Expected 1 Master row, got %d", len(grouped["Master"]))
	}
	if grouped["Person"][0].ID != "a" || grouped["Person"][1].ID != "c" {
		t.Error("Expected grouping to preserve row order")
	}
}

func TestGroupRelations(t *testing.T) {
	rows := []export.RelationRow{
		{SourceID: "a", TargetID: "b", Type: "studied_at"},
		{SourceID: "a", TargetID: "c", Type: "knows"},
	}
	grouped := groupRelations(rows)

	if len(grouped) != 2 {
		t.Fatalf("Expected 2 types, got %d", len(grouped))
	}
	if len(grouped["STUDIED_AT"]) != 1 || len(grouped["KNOWS"]) != 1 {
		t.Error("Expected one row per relationship type")
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string][]int{"c": nil, "a": nil, "b": nil}
	want := []string{"a", "b", "c"}
	if got := sortedKeys(m); !reflect.DeepEqual(got, want) {
		t.Errorf("sortedKeys = %v, want %v", got, want)
	}
}
