package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawRecord is a single untyped record as delivered by one source page.
type RawRecord interface {
	// Lookup returns the field rendered as text, or false when the field is
	// missing, null or not a scalar.
	Lookup(field string) (string, bool)
}

// MapRecord adapts a decoded JSON object (or any string-keyed map) to RawRecord.
type MapRecord map[string]any

func (m MapRecord) Lookup(field string) (string, bool) {
	v, ok := m[field]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// Page is one fetched page of raw records.
type Page struct {
	Index   int
	Records []RawRecord
	// HasMore is the source's own continuation signal.
	HasMore bool
	// TotalPages is the source-reported page count, 0 when unknown.
	TotalPages int
	// ShapeErr is set when the payload lacked its expected top-level wrapper.
	ShapeErr error
}

type DefectKind string

const (
	DefectRecord DefectKind = "record"
	DefectPage   DefectKind = "page"
)

// Defect describes one dropped record or page. Defects never fail a run.
type Defect struct {
	Kind   DefectKind `json:"kind"`
	Page   int        `json:"page"`
	Index  int        `json:"index"`
	Field  string     `json:"field,omitempty"`
	Value  string     `json:"value,omitempty"`
	Reason string     `json:"reason"`
}

func (d Defect) String() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	b.WriteString(" defect page=")
	b.WriteString(strconv.Itoa(d.Page))
	if d.Kind == DefectRecord {
		b.WriteString(" index=")
		b.WriteString(strconv.Itoa(d.Index))
	}
	if d.Field != "" {
		b.WriteString(" field=")
		b.WriteString(d.Field)
		b.WriteString(" value=")
		b.WriteString(strconv.Quote(d.Value))
	}
	b.WriteString(": ")
	b.WriteString(d.Reason)
	return b.String()
}
