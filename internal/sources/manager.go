package sources

import (
	"fmt"

	"rankledger/internal/config"
)

type Manager struct {
	cfg     config.Config
	sources []Source
}

// NewManager builds every source named in cfg.Sources, in list order.
func NewManager(cfg config.Config) (*Manager, error) {
	refs := ParseSourceList(cfg.Sources)
	m := &Manager{cfg: cfg}
	for _, ref := range refs {
		s, err := buildSource(cfg, ref)
		if err != nil {
			return nil, err
		}
		m.sources = append(m.sources, s)
	}
	return m, nil
}

// Primary is the first configured source.
func (m *Manager) Primary() Source {
	return m.sources[0]
}

// Lookup finds a source by alias or kind.
func (m *Manager) Lookup(name string) (Source, bool) {
	for _, s := range m.sources {
		info := s.Info()
		if info.Alias == name || info.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Select returns the source named by alias or kind, or the primary one when name is empty.
func (m *Manager) Select(name string) (Source, error) {
	if name == "" {
		return m.Primary(), nil
	}
	s, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no configured source named %q", name)
	}
	return s, nil
}

func (m *Manager) Sources() []Source {
	return append([]Source(nil), m.sources...)
}

func buildSource(cfg config.Config, ref SourceRef) (Source, error) {
	switch ref.Name {
	case "json":
		return NewJSONSource(JSONOptions{
			Alias:     ref.Alias,
			BaseURL:   cfg.SourceBaseURL,
			Path:      cfg.SourcePath,
			NID:       cfg.SourceNID,
			UserAgent: cfg.UserAgent,
			Referer:   cfg.Referer,
			Timeout:   cfg.HTTPTimeout,
		}), nil
	case "html":
		return NewHTMLSource(HTMLOptions{
			Alias:     ref.Alias,
			BaseURL:   cfg.SourceBaseURL,
			Path:      cfg.SourcePath,
			UserAgent: cfg.UserAgent,
			Referer:   cfg.Referer,
			Timeout:   cfg.HTTPTimeout,
			FirstPage: cfg.StartPage,
		}), nil
	case "mock":
		return NewMockSource(MockOptions{Alias: ref.Alias, Total: 95}), nil
	default:
		return nil, fmt.Errorf("unsupported source: %s", ref.Raw)
	}
}
