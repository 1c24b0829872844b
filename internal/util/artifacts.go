package util

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"rankledger/internal/models"
)

func WriteJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return WriteFileAtomic(path, append(b, '\n'))
}

// ManifestPath is where a run's result is recorded under the output root.
func ManifestPath(outRoot string, res models.RunResult) string {
	return filepath.Join(outRoot, "runs", res.Period.String(), res.RunID+".json")
}

// WriteRunManifest records res under outRoot and returns the file path.
func WriteRunManifest(outRoot string, res models.RunResult) (string, error) {
	path := ManifestPath(outRoot, res)
	if err := WriteJSONAtomic(path, res); err != nil {
		return "", fmt.Errorf("write run manifest: %w", err)
	}
	return path, nil
}
