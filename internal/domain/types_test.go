package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPageJSONRoundTrip(t *testing.T) {
	p := PageData{
		Name: "RoundTrip",
		Sections: []*Section{
			{ID: "s1", Row: 1, Elements: []*Element{
				{ID: "e1", Column: 1, ColumnSpan: 12, Type: ElementPrimitive, Properties: map[string]any{"content": "hi", "extra": map[string]any{"x": 1.0}}},
			}},
		},
		Footer: &Footer{Elements: []*Element{}},
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got PageData
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSectionCloneFreshIDs(t *testing.T) {
	src := &Section{ID: "s1", Row: 3, BackgroundColor: "#fff", Elements: []*Element{
		{ID: "c1", Column: 1, ColumnSpan: 6, Type: ElementComposite, Properties: map[string]any{"list": []any{"a", map[string]any{"b": 2.0}}},
			Elements: []*Element{{ID: "n1", Column: 1, ColumnSpan: 12, Type: ElementPrimitive}}},
		{ID: "p1", Column: 7, ColumnSpan: 6, Type: ElementPrimitive, Module: &ModuleRef{Name: "text", Dependencies: map[string]any{"a": "1"}}},
	}}
	n := 0
	cp := src.Clone(func(string) string { n++; return "new-" + string(rune('a'+n)) })

	if n != 4 {
		t.Fatalf("expected 4 ids generated, got %d", n)
	}
	seen := map[string]bool{}
	var walk func([]*Element)
	walk = func(es []*Element) {
		for _, e := range es {
			if e.ID == "c1" || e.ID == "n1" || e.ID == "p1" {
				t.Fatalf("clone kept original id %s", e.ID)
			}
			if seen[e.ID] {
				t.Fatalf("duplicate id %s", e.ID)
			}
			seen[e.ID] = true
			walk(e.Elements)
		}
	}
	walk(cp.Elements)

	// Payload identical modulo ids.
	ignoreIDs := cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".ID" }, cmp.Ignore())
	if diff := cmp.Diff(src, cp, ignoreIDs); diff != "" {
		t.Fatalf("clone payload differs (-src +clone):\n%s", diff)
	}

	// Deep copy: mutating the clone leaves the source alone.
	cp.Elements[0].Properties["list"].([]any)[1].(map[string]any)["b"] = 3.0
	cp.Elements[1].Module.Dependencies["a"] = "2"
	if src.Elements[0].Properties["list"].([]any)[1].(map[string]any)["b"] != 2.0 {
		t.Fatalf("nested properties shared between clone and source")
	}
	if src.Elements[1].Module.Dependencies["a"] != "1" {
		t.Fatalf("module dependencies shared between clone and source")
	}
}

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name string
		els  []*Element
		want error
	}{
		{"empty", nil, nil},
		{"full", []*Element{{ID: "a", Column: 1, ColumnSpan: 12}}, nil},
		{"two", []*Element{{ID: "a", Column: 1, ColumnSpan: 6}, {ID: "b", Column: 7, ColumnSpan: 6}}, nil},
		{"overlap", []*Element{{ID: "a", Column: 1, ColumnSpan: 6}, {ID: "b", Column: 6, ColumnSpan: 3}}, ErrColumnOverlap},
		{"span zero", []*Element{{ID: "a", Column: 1, ColumnSpan: 0}}, ErrSpanRange},
		{"span 13", []*Element{{ID: "a", Column: 1, ColumnSpan: 13}}, ErrSpanRange},
		{"past edge", []*Element{{ID: "a", Column: 10, ColumnSpan: 4}}, ErrColumnRange},
		{"column zero", []*Element{{ID: "a", Column: 0, ColumnSpan: 4}}, ErrColumnRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRow(tt.els)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFreeColumn(t *testing.T) {
	els := []*Element{{ID: "a", Column: 1, ColumnSpan: 3}, {ID: "b", Column: 7, ColumnSpan: 3}}
	if c, ok := FreeColumn(els, 3); !ok || c != 4 {
		t.Fatalf("FreeColumn(3) = %d,%v want 4,true", c, ok)
	}
	if c, ok := FreeColumn(els, 4); ok {
		t.Fatalf("FreeColumn(4) = %d, expected no gap", c)
	}
	if c, ok := FreeColumn(nil, 12); !ok || c != 1 {
		t.Fatalf("FreeColumn on empty row = %d,%v", c, ok)
	}
}

func TestFindElementNested(t *testing.T) {
	p := &PageData{Sections: []*Section{
		{ID: "s1", Elements: []*Element{{ID: "a"}}},
		{ID: "s2", Elements: []*Element{{ID: "c", Type: ElementComposite, Elements: []*Element{{ID: "x"}, {ID: "y"}}}}},
	}}
	loc, ok := p.FindElement("y")
	if !ok {
		t.Fatalf("element y not found")
	}
	if loc.Section.ID != "s2" || loc.Parent == nil || loc.Parent.ID != "c" || loc.Index != 1 {
		t.Fatalf("unexpected location %+v", loc)
	}
	if _, ok := p.FindElement("missing"); ok {
		t.Fatalf("found missing element")
	}
	Renumber(p.Sections)
	if p.Sections[0].Row != 1 || p.Sections[1].Row != 2 {
		t.Fatalf("renumber failed")
	}
}

func TestModuleRefCategoryForms(t *testing.T) {
	doc := `{"id":"e","column":1,"columnSpan":3,"type":"primitive","module":{
		"name":"nft","category":[{"icon":"i","idx":"1","name":"components"}],
		"chainId":43113,"packageId":7,"projectId":9,"dependencies":{"@scom/x":{"path":"x"}}}}`
	var el Element
	if err := json.Unmarshal([]byte(doc), &el); err != nil {
		t.Fatalf("unmarshal registry shape: %v", err)
	}
	m := el.Module
	if !m.Category.Is("components") || m.ChainID != 43113 || m.ProjectID != 9 {
		t.Fatalf("unexpected module: %+v", m)
	}
	if d := cmp.Diff(map[string]any{"@scom/x": map[string]any{"path": "x"}}, m.Dependencies); d != "" {
		t.Fatalf("dependencies (-want +got):\n%s", d)
	}
	b, err := json.Marshal(&el)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Element
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal again: %v", err)
	}
	if d := cmp.Diff(el, back); d != "" {
		t.Fatalf("list form not kept (-want +got):\n%s", d)
	}

	var plain ModuleRef
	if err := json.Unmarshal([]byte(`{"name":"md","category":"components"}`), &plain); err != nil {
		t.Fatalf("unmarshal name form: %v", err)
	}
	if plain.Category.Name != "components" || plain.Category.Tags != nil {
		t.Fatalf("name form lost: %+v", plain.Category)
	}
	out, _ := json.Marshal(plain)
	if string(out) != `{"name":"md","category":"components"}` {
		t.Fatalf("name form re-encoded as %s", out)
	}
	out, _ = json.Marshal(ModuleRef{Name: "bare"})
	if string(out) != `{"name":"bare"}` {
		t.Fatalf("empty category should be omitted, got %s", out)
	}
	if err := json.Unmarshal([]byte(`{"name":"x","category":5}`), &plain); err == nil {
		t.Fatalf("expected error for numeric category")
	}
}
