package sources

import (
	"context"

	"rankledger/internal/models"
)

type SourceInfo struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Source is a paginated producer of raw records. Errors returned from Fetch should be
// tagged with util.Transient or util.Fatal; untagged errors are run through Classify.
type Source interface {
	Fetch(ctx context.Context, pageIndex, pageSize int) (models.Page, error)
	Info() SourceInfo
}
