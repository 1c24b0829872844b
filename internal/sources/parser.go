package sources

import "strings"

type SourceRef struct {
	Raw   string
	Name  string
	Alias string
}

// ParseSourceList parses "json|html:archive|mock" style lists.
func ParseSourceList(raw string) []SourceRef {
	parts := strings.Split(raw, "|")
	out := make([]SourceRef, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ref := SourceRef{Raw: p}
		if strings.Contains(p, ":") {
			x := strings.SplitN(p, ":", 2)
			ref.Name = strings.ToLower(strings.TrimSpace(x[0]))
			ref.Alias = strings.TrimSpace(x[1])
		} else {
			ref.Name = strings.ToLower(p)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, SourceRef{Raw: "mock", Name: "mock"})
	}
	return out
}
