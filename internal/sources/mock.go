package sources

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"rankledger/internal/models"
)

type MockOptions struct {
	Alias string
	// Total is the number of entities the mock listing holds.
	Total int
}

// MockSource serves a deterministic offline listing. Every tenth rank is reported as a
// tie band and scores are derived from the name hash so repeated runs see identical data.
type MockSource struct {
	opts MockOptions
}

func NewMockSource(opts MockOptions) *MockSource {
	if opts.Total < 0 {
		opts.Total = 0
	}
	return &MockSource{opts: opts}
}

func (m *MockSource) Info() SourceInfo {
	return SourceInfo{Name: "mock", Alias: m.opts.Alias}
}

func (m *MockSource) Fetch(ctx context.Context, pageIndex, pageSize int) (models.Page, error) {
	if err := ctx.Err(); err != nil {
		return models.Page{Index: pageIndex}, Classify(err)
	}
	if pageSize <= 0 {
		pageSize = 30
	}
	totalPages := (m.opts.Total + pageSize - 1) / pageSize
	page := models.Page{Index: pageIndex, TotalPages: totalPages, HasMore: pageIndex+1 < totalPages}

	start := pageIndex * pageSize
	for i := start; i < start+pageSize && i < m.opts.Total; i++ {
		rank := i + 1
		rankText := fmt.Sprintf("%d", rank)
		if rank%10 == 0 {
			rankText = fmt.Sprintf("=%d", rank)
		}
		name := fmt.Sprintf("Mock University %03d", rank)
		sum := sha256.Sum256([]byte(name))
		frac := binary.BigEndian.Uint16(sum[:2]) % 10
		score := fmt.Sprintf("%d.%d", 100-rank%100, frac)
		page.Records = append(page.Records, models.MapRecord{
			"rank_display":  rankText,
			"overall_score": score,
			"title":         name,
			"city":          "Mock City",
			"country":       "Mockland",
			"region":        "Mock Region",
		})
	}
	return page, nil
}
