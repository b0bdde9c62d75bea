package osm

import (
	"strings"
	"testing"
)

func TestBuildIndex_Basic(t *testing.T) {
	elements := []Element{
		{Type: "node", ID: 1, Tags: map[string]string{"wikidata": "Q100", "name": "Duomo"}},
		{Type: "way", ID: 2, Tags: map[string]string{"wikidata": "q200"}},
		{Type: "relation", ID: 3}, // no tags
		{Type: "node", ID: 4, Tags: map[string]string{"name": "untagged"}},
	}

	idx := BuildIndex(elements)

	if len(idx) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(idx), idx)
	}
	if ref, _ := idx.Lookup("Q100"); ref != "node/1" {
		t.Errorf("expected node/1 for Q100, got %s", ref)
	}
	if ref, _ := idx.Lookup("Q200"); ref != "way/2" {
		t.Errorf("expected way/2 for Q200 (case-folded), got %s", ref)
	}
}

func TestBuildIndex_LastWriteWins(t *testing.T) {
	elements := []Element{
		{Type: "node", ID: 1, Tags: map[string]string{"wikidata": "Q100"}},
		{Type: "way", ID: 2, Tags: map[string]string{"wikidata": "Q100"}},
	}

	idx := BuildIndex(elements)
	if len(idx) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(idx))
	}
	if ref, _ := idx.Lookup("Q100"); ref != "way/2" {
		t.Errorf("expected last-processed element to win, got %s", ref)
	}
}

func TestBuildIndex_MultiValueTag(t *testing.T) {
	elements := []Element{
		{Type: "node", ID: 7, Tags: map[string]string{"wikidata": "Q1;Q2, q3"}},
	}

	idx := BuildIndex(elements)
	for _, id := range []string{"Q1", "Q2", "Q3"} {
		if ref, ok := idx.Lookup(id); !ok || ref != "node/7" {
			t.Errorf("expected node/7 for %s, got %q (ok=%v)", id, ref, ok)
		}
	}
}

func TestBuildIndex_NamespacedKey(t *testing.T) {
	elements := []Element{
		{Type: "node", ID: 9, Tags: map[string]string{"brand:wikidata": "Q300"}},
	}

	idx := BuildIndex(elements)
	if ref, ok := idx.Lookup("Q300"); !ok || ref != "node/9" {
		t.Errorf("expected brand:wikidata to be indexed, got %q (ok=%v)", ref, ok)
	}
}

func TestBuildIndex_DropsMalformed(t *testing.T) {
	elements := []Element{
		{Type: "node", ID: 1, Tags: map[string]string{"wikidata": "not-an-id"}},
	}
	if idx := BuildIndex(elements); len(idx) != 0 {
		t.Errorf("expected empty index, got %v", idx)
	}
}

func TestParseResponse(t *testing.T) {
	body := []byte(`{"elements":[{"type":"node","id":42,"tags":{"wikidata":"Q1"}}]}`)
	resp, err := ParseResponse(body)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(resp.Elements) != 1 || resp.Elements[0].Ref() != "node/42" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestParseResponse_Garbage(t *testing.T) {
	if _, err := ParseResponse([]byte("<html>rate limited</html>")); err == nil {
		t.Error("expected error for non-JSON payload")
	}
}

func TestBuildAreaQuery_RelationOffset(t *testing.T) {
	q := BuildAreaQuery(41977)
	if want := "area(3600041977)"; !strings.Contains(q, want) {
		t.Errorf("expected %s in query:\n%s", want, q)
	}

	// Already-offset ids pass through unchanged
	q = BuildAreaQuery(3600041977)
	if want := "area(3600041977)"; !strings.Contains(q, want) {
		t.Errorf("expected %s in query:\n%s", want, q)
	}
}
