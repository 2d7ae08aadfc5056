package report

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// WritePDF exports the run as a PDF: one page per image, ordered per target
// as baseline, current, diff (diff only for changed targets). Targets whose
// baseline was just created contribute their current capture only.
func WritePDF(run *Run, path string) error {
	var images []string
	for _, t := range run.Targets {
		if t.Error != "" {
			continue
		}
		if t.BaselineCreated {
			if t.CurrentPath != "" {
				images = append(images, t.CurrentPath)
			}
			continue
		}
		if t.BaselinePath != "" {
			images = append(images, t.BaselinePath)
		}
		if t.CurrentPath != "" {
			images = append(images, t.CurrentPath)
		}
		if t.Changed && t.DiffImagePath != "" {
			images = append(images, t.DiffImagePath)
		}
	}
	if len(images) == 0 {
		return fmt.Errorf("report: no images to export")
	}

	if err := api.ImportImagesFile(images, path, nil, nil); err != nil {
		return fmt.Errorf("report: pdf export: %w", err)
	}
	return nil
}
