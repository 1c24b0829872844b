package workflows

import "rankledger/internal/models"

type CaptureInput struct {
	// Period overrides the month derived from the workflow clock (YYYY-MM).
	Period string `json:"period,omitempty"`
	Policy string `json:"policy,omitempty"`
}

type CaptureOutput struct {
	Result       models.RunResult `json:"result"`
	ManifestPath string           `json:"manifest_path,omitempty"`
}
