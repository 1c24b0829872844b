package sources

import (
	"context"
	"testing"

	"rankledger/internal/config"
)

func TestMockSourceIsDeterministicAndPaged(t *testing.T) {
	m := NewMockSource(MockOptions{Total: 45})
	a, err := m.Fetch(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := m.Fetch(context.Background(), 1, 20)
	if len(a.Records) != 20 || a.TotalPages != 3 || !a.HasMore {
		t.Fatalf("unexpected page: records=%d total=%d more=%v", len(a.Records), a.TotalPages, a.HasMore)
	}
	sa, _ := a.Records[0].Lookup("overall_score")
	sb, _ := b.Records[0].Lookup("overall_score")
	if sa != sb {
		t.Fatalf("expected deterministic scores, got %q vs %q", sa, sb)
	}
	last, _ := m.Fetch(context.Background(), 2, 20)
	if len(last.Records) != 5 || last.HasMore {
		t.Fatalf("unexpected last page: records=%d more=%v", len(last.Records), last.HasMore)
	}
}

func TestMockSourceHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockSource(MockOptions{Total: 5}).Fetch(ctx, 0, 5); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestManagerBuildsConfiguredSources(t *testing.T) {
	cfg := config.Config{Sources: "mock:offline|json", SourceBaseURL: "http://127.0.0.1:1", SourcePath: "/rankings/endpoint"}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Primary().Info().Name != "mock" {
		t.Fatalf("expected mock primary, got %+v", m.Primary().Info())
	}
	if _, ok := m.Lookup("offline"); !ok {
		t.Fatalf("expected alias lookup to work")
	}
	if _, ok := m.Lookup("json"); !ok {
		t.Fatalf("expected kind lookup to work")
	}
	if got := m.Sources(); len(got) != 2 || got[1].Info().Name != "json" {
		t.Fatalf("expected sources in list order, got %d", len(got))
	}
	if s, err := m.Select(""); err != nil || s != m.Primary() {
		t.Fatalf("empty selection should be the primary source")
	}
	if s, err := m.Select("json"); err != nil || s.Info().Name != "json" {
		t.Fatalf("expected json selection, got %v", err)
	}
	if _, err := m.Select("archive"); err == nil {
		t.Fatalf("expected unknown source selection to fail")
	}
	if _, err := NewManager(config.Config{Sources: "ftp"}); err == nil {
		t.Fatalf("expected unsupported source error")
	}
}
