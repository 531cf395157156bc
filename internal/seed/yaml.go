package seed

import (
	"fmt"
	"os"
)

// LoadYAML reads a snapshot from a YAML file with the same layout as the
// embedded default dataset.
func LoadYAML(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return parseYAML(data)
}
