package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dubber/internal/services"
)

// Missing reports an absent input from an earlier step, tagged with marker.
func Missing(marker error, stageName, what string) error {
	return services.Wrap(marker, stageName, "prepare", fmt.Sprintf("missing %s; earlier step did not run", what), nil)
}

// ArtifactPath returns the location of a named JSON artifact for the run.
func ArtifactPath(run *Run, name string) string {
	return filepath.Join(run.WorkDir, "artifacts", name+".json")
}

// WriteArtifact stores v as indented JSON under the run's artifact directory
// so intermediate results can be inspected after a failure.
func WriteArtifact(run *Run, name string, v any) error {
	path := ArtifactPath(run, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s artifact: %w", name, err)
	}
	return nil
}
