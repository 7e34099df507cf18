package jsonschema

import (
	"reflect"
	"testing"
)

type innerShape struct {
	Note string `json:"note"`
}

type sampleShape struct {
	Next    string         `json:"next" jsonschema:"required,enum=a|b,next agent"`
	Count   int            `json:"count,omitempty"`
	Ready   bool           `json:"ready" jsonschema:"required"`
	Tags    []string       `json:"tags"`
	Lookup  map[string]int `json:"lookup"`
	Inner   innerShape     `json:"inner"`
	Pointer *innerShape    `json:"pointer"`
	skipped string         `json:"skipped"`
	Ignored string         `json:"-"`
}

func TestGenerate(t *testing.T) {
	schema := Generate[sampleShape]()

	if schema.Type != "object" {
		t.Fatalf("root type = %q, want object", schema.Type)
	}
	if _, ok := schema.Properties["skipped"]; ok {
		t.Error("unexported field must not appear in properties")
	}
	if _, ok := schema.Properties["Ignored"]; ok {
		t.Error(`json:"-" field must not appear in properties`)
	}

	next := schema.Properties["next"]
	if next == nil || next.Type != "string" {
		t.Fatalf("next property = %+v, want string schema", next)
	}
	if next.Description != "next agent" {
		t.Errorf("next description = %q", next.Description)
	}
	if !reflect.DeepEqual(next.Enum, []any{"a", "b"}) {
		t.Errorf("next enum = %v", next.Enum)
	}

	wantRequired := []string{"next", "ready"}
	if !reflect.DeepEqual(schema.Required, wantRequired) {
		t.Errorf("required = %v, want %v", schema.Required, wantRequired)
	}

	if got := schema.Properties["count"].Type; got != "integer" {
		t.Errorf("count type = %q", got)
	}
	if got := schema.Properties["tags"]; got.Type != "array" || got.Items.Type != "string" {
		t.Errorf("tags schema = %+v", got)
	}
	if got := schema.Properties["lookup"]; got.Type != "object" {
		t.Errorf("lookup schema = %+v", got)
	}
	if got := schema.Properties["inner"]; got.Type != "object" || got.Properties["note"] == nil {
		t.Errorf("inner schema = %+v", got)
	}
	if got := schema.Properties["pointer"]; got.Type != "object" {
		t.Errorf("pointer schema = %+v", got)
	}
}

type recursiveShape struct {
	Name     string            `json:"name"`
	Children []*recursiveShape `json:"children"`
}

func TestGenerateRecursive(t *testing.T) {
	schema := Generate[recursiveShape]()
	children := schema.Properties["children"]
	if children == nil || children.Type != "array" {
		t.Fatalf("children schema = %+v", children)
	}
	// The nested occurrence terminates as an open object instead of recursing.
	if children.Items == nil || children.Items.Type != "object" {
		t.Errorf("children items = %+v", children.Items)
	}
}
