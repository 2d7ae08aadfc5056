// Package report turns comparison results into human-viewable artifacts:
// an HTML report with thumbnails, plus JSON, Markdown and PDF exports. It
// consumes snapshot/imagediff data only; it never re-reads pixels.
package report

import (
	"time"

	"github.com/hazyhaar/dasite/imagediff"
	"github.com/hazyhaar/dasite/snapshot"
)

// TargetResult is one row of a run report.
type TargetResult struct {
	Target          string             `json:"target"`
	URL             string             `json:"url,omitempty"`
	Title           string             `json:"title,omitempty"`
	BaselineCreated bool               `json:"baseline_created,omitempty"`
	Changed         bool               `json:"changed"`
	DiffPercentage  float64            `json:"diff_percentage"`
	DiffPixels      int                `json:"diff_pixels"`
	TotalPixels     int                `json:"total_pixels"`
	Regions         []imagediff.Region `json:"regions,omitempty"`
	CurrentPath     string             `json:"current_path,omitempty"`
	BaselinePath    string             `json:"baseline_path,omitempty"`
	DiffImagePath   string             `json:"diff_image_path,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// Run is a complete report for one compare invocation.
type Run struct {
	ID               string         `json:"id"`
	StartURL         string         `json:"start_url,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	Threshold        float64        `json:"threshold"`
	Targets          []TargetResult `json:"targets"`
	ChangedCount     int            `json:"changed_count"`
	CreatedBaselines int            `json:"created_baselines"`
	Errors           int            `json:"errors,omitempty"`
	MaxDiff          float64        `json:"max_diff"`
	Passed           bool           `json:"passed"`
}

// Build assembles a Run from comparison outcomes. The run fails when the
// maximum diff percentage across changed targets is strictly greater than
// the threshold (a diff exactly at the threshold passes), or when any
// target's comparison errored: an unreadable baseline must never look like
// a green run.
func Build(id, startURL string, threshold float64, comparisons []snapshot.Comparison) *Run {
	run := &Run{
		ID:        id,
		StartURL:  startURL,
		StartedAt: time.Now().UTC(),
		Threshold: threshold,
	}

	for _, c := range comparisons {
		tr := TargetResult{
			Target:          c.Target.ID,
			URL:             c.Meta.URL,
			Title:           c.Meta.Title,
			BaselineCreated: c.BaselineCreated,
			CurrentPath:     c.Target.CurrentPath,
			BaselinePath:    c.Target.BaselinePath,
		}
		if c.Err != nil {
			tr.Error = c.Err.Error()
			run.Errors++
		}
		if c.BaselineCreated {
			run.CreatedBaselines++
		}
		if c.Result != nil {
			tr.Changed = c.Result.Changed()
			tr.DiffPercentage = c.Result.DiffPercentage
			tr.DiffPixels = c.Result.DiffPixels
			tr.TotalPixels = c.Result.TotalPixels
			tr.Regions = c.Result.Regions
			tr.DiffImagePath = c.Target.DiffPath
			if tr.Changed {
				run.ChangedCount++
				if tr.DiffPercentage > run.MaxDiff {
					run.MaxDiff = tr.DiffPercentage
				}
			}
		}
		run.Targets = append(run.Targets, tr)
	}

	run.Passed = run.MaxDiff <= threshold && run.Errors == 0
	return run
}
