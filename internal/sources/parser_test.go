package sources

import "testing"

func TestParseSourceList(t *testing.T) {
	refs := ParseSourceList("json|HTML:archive| mock ")
	if len(refs) != 3 {
		t.Fatalf("expected 3 sources got %d", len(refs))
	}
	if refs[1].Name != "html" || refs[1].Alias != "archive" {
		t.Fatalf("unexpected parse result: %+v", refs[1])
	}
	if got := ParseSourceList("  "); len(got) != 1 || got[0].Name != "mock" {
		t.Fatalf("empty list should default to mock, got %+v", got)
	}
}
