package snapshot

import (
	"fmt"

	"github.com/hazyhaar/dasite/imagediff"
)

// Comparison is the per-target outcome of a compare-all pass.
type Comparison struct {
	Target          Target
	Meta            Meta
	BaselineCreated bool
	Result          *imagediff.Result // nil when the baseline was just created
	Err             error
}

// Changed reports whether the comparison found any pixel difference.
func (c Comparison) Changed() bool {
	return c.Result != nil && c.Result.Changed()
}

// CompareAll compares every target's current capture against its baseline.
// Targets without a baseline are bootstrapped: current is copied to baseline
// and no comparison runs in the same pass, so first use never compares an
// image against itself. Per-target failures are recorded and the batch
// continues; only a store-level scan failure aborts.
func (s *Store) CompareAll(opts imagediff.Options) ([]Comparison, error) {
	targets, err := s.Targets()
	if err != nil {
		return nil, err
	}

	comparisons := make([]Comparison, 0, len(targets))
	for _, t := range targets {
		c := Comparison{Target: t}
		c.Meta, _ = s.ReadMeta(t.ID)

		if !t.HasBaseline {
			if err := copyFile(t.CurrentPath, t.BaselinePath); err != nil {
				c.Err = fmt.Errorf("snapshot: create baseline for %s: %w", t.ID, err)
			} else {
				c.BaselineCreated = true
				s.logger.Info("snapshot: baseline created, re-run to compare", "target", t.ID)
			}
			comparisons = append(comparisons, c)
			continue
		}

		result, err := imagediff.CompareFiles(t.BaselinePath, t.CurrentPath, t.DiffPath, opts)
		if err != nil {
			c.Err = err
			s.logger.Error("snapshot: compare failed", "target", t.ID, "error", err)
		} else {
			c.Result = result
			s.logger.Info("snapshot: compared",
				"target", t.ID,
				"diff_pct", result.DiffPercentage,
				"regions", len(result.Regions))
		}
		comparisons = append(comparisons, c)
	}
	return comparisons, nil
}
