package models

import (
	"encoding/json"
	"testing"
)

func TestMapRecordLookup(t *testing.T) {
	rec := MapRecord{
		"rank":    "=12",
		"score":   94.5,
		"num":     json.Number("7"),
		"missing": nil,
		"nested":  map[string]any{"x": 1},
	}
	cases := []struct {
		field string
		want  string
		ok    bool
	}{
		{"rank", "=12", true},
		{"score", "94.5", true},
		{"num", "7", true},
		{"missing", "", false},
		{"nested", "", false},
		{"absent", "", false},
	}
	for _, c := range cases {
		got, ok := rec.Lookup(c.field)
		if got != c.want || ok != c.ok {
			t.Fatalf("lookup %q: got (%q,%v) want (%q,%v)", c.field, got, ok, c.want, c.ok)
		}
	}
}

func TestDefectString(t *testing.T) {
	d := Defect{Kind: DefectRecord, Page: 2, Index: 5, Field: "rank", Value: "N/A", Reason: "no integer in rank"}
	want := `record defect page=2 index=5 field=rank value="N/A": no integer in rank`
	if d.String() != want {
		t.Fatalf("got %q want %q", d.String(), want)
	}
}
