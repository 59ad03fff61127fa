package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadIndex reads a report.json file.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- report path chosen by the user
	if err != nil {
		return nil, err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &index, nil
}

// ReadReport reads the index of a report directory.
func ReadReport(reportDir string) (*Index, error) {
	return ReadIndex(filepath.Join(reportDir, "report.json"))
}
