package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSON exports the run as pretty-printed JSON.
func WriteJSON(run *Run, path string) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal run: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
