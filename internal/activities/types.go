package activities

import "rankledger/internal/models"

type CaptureSnapshotInput struct {
	// Period is YYYY-MM or YYYY-MM-DD; empty means the current month.
	Period string `json:"period"`
	Policy string `json:"policy"`
}

type CaptureSnapshotOutput struct {
	Result models.RunResult `json:"result"`
}

type WriteRunManifestInput struct {
	Result models.RunResult `json:"result"`
}

type WriteRunManifestOutput struct {
	Path string `json:"path"`
}
