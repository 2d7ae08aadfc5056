package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/dasite/imagediff"
	"github.com/hazyhaar/dasite/snapshot"
)

func comparisonWithDiff(id string, pct float64, pixels int) snapshot.Comparison {
	return snapshot.Comparison{
		Target: snapshot.Target{ID: id},
		Result: &imagediff.Result{
			DiffPixels:     pixels,
			TotalPixels:    10000,
			DiffPercentage: pct,
		},
	}
}

func TestBuildThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		maxDiff   float64
		passed    bool
	}{
		{"diff below threshold passes", 1.0, 0.5, true},
		{"diff exactly at threshold passes", 1.0, 1.0, true},
		{"diff above threshold fails", 1.0, 1.0001, false},
		{"zero threshold fails on any diff", 0, 0.0001, false},
		{"zero threshold passes with no diff", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pixels := 0
			if tt.maxDiff > 0 {
				pixels = 1
			}
			run := Build("run_1", "https://example.com", tt.threshold, []snapshot.Comparison{
				comparisonWithDiff("example_com", tt.maxDiff, pixels),
			})
			if run.Passed != tt.passed {
				t.Errorf("Passed = %v, want %v (max %.4f vs threshold %.4f)",
					run.Passed, tt.passed, run.MaxDiff, run.Threshold)
			}
		})
	}
}

func TestBuildAggregates(t *testing.T) {
	comparisons := []snapshot.Comparison{
		comparisonWithDiff("a_example_com", 0, 0),
		comparisonWithDiff("b_example_com", 2.5, 250),
		comparisonWithDiff("c_example_com", 7.25, 725),
		{Target: snapshot.Target{ID: "d_example_com"}, BaselineCreated: true},
	}
	run := Build("run_2", "https://example.com", 10, comparisons)

	if len(run.Targets) != 4 {
		t.Fatalf("targets = %d, want 4", len(run.Targets))
	}
	if run.ChangedCount != 2 {
		t.Errorf("ChangedCount = %d, want 2", run.ChangedCount)
	}
	if run.CreatedBaselines != 1 {
		t.Errorf("CreatedBaselines = %d, want 1", run.CreatedBaselines)
	}
	if run.MaxDiff != 7.25 {
		t.Errorf("MaxDiff = %.4f, want 7.25", run.MaxDiff)
	}
	if !run.Passed {
		t.Error("run under threshold must pass")
	}
}

func TestBuildErroredComparisonFails(t *testing.T) {
	run := Build("run_err", "https://example.com", 100, []snapshot.Comparison{
		comparisonWithDiff("clean_example_com", 0, 0),
		{
			Target: snapshot.Target{ID: "broken_example_com"},
			Err:    errors.New("decode baseline: not a png"),
		},
	})

	if run.Passed {
		t.Error("a run with an errored comparison must fail regardless of threshold")
	}
	if run.Errors != 1 {
		t.Errorf("Errors = %d, want 1", run.Errors)
	}
	if run.Targets[1].Error == "" {
		t.Error("the errored target must carry its error message")
	}
	if run.MaxDiff != 0 {
		t.Errorf("MaxDiff = %.4f, errored targets must not fake a diff", run.MaxDiff)
	}
}

func TestBuildNewBaselinesDoNotFail(t *testing.T) {
	run := Build("run_3", "", 0, []snapshot.Comparison{
		{Target: snapshot.Target{ID: "example_com"}, BaselineCreated: true},
	})
	if !run.Passed {
		t.Error("a bootstrap-only run must pass")
	}
	if run.CreatedBaselines != 1 {
		t.Errorf("CreatedBaselines = %d, want 1", run.CreatedBaselines)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	run := Build("run_4", "https://example.com", 1.5, []snapshot.Comparison{
		comparisonWithDiff("example_com", 0.75, 75),
	})

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSON(run, path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Run
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "run_4" || got.Threshold != 1.5 || len(got.Targets) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
	if got.Targets[0].DiffPercentage != 0.75 {
		t.Errorf("target diff = %.4f, want 0.75", got.Targets[0].DiffPercentage)
	}
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	run := Build("run_5", "https://example.com", 0, []snapshot.Comparison{
		comparisonWithDiff("example_com_about", 3.5, 350),
	})

	path, err := WriteHTML(run, dir, "nightly visual check")
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	for _, want := range []string{"nightly visual check", "example_com_about", "FAIL", "3.5000"} {
		if !strings.Contains(html, want) {
			t.Errorf("report.html missing %q", want)
		}
	}
}

func TestWriteHTMLSanitizesTitles(t *testing.T) {
	dir := t.TempDir()
	run := Build("run_6", "", 100, []snapshot.Comparison{
		{
			Target: snapshot.Target{ID: "example_com"},
			Meta:   snapshot.Meta{Title: `<script>alert(1)</script>Home`},
			Result: &imagediff.Result{TotalPixels: 100},
		},
	})

	path, err := WriteHTML(run, dir, "report")
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "<script>alert(1)</script>") {
		t.Error("page title markup leaked into the report unsanitized")
	}
	if !strings.Contains(string(data), "Home") {
		t.Error("sanitizer stripped the title text itself")
	}
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()
	run := Build("run_7", "https://example.com", 0, []snapshot.Comparison{
		comparisonWithDiff("example_com", 0, 0),
	})

	path := filepath.Join(dir, "report.md")
	if err := WriteMarkdown(run, dir, "visual check", path); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	if !strings.Contains(md, "visual check") || !strings.Contains(md, "example_com") {
		t.Errorf("markdown export missing content:\n%s", md)
	}
	if strings.Contains(md, "<table>") {
		t.Error("markdown export still contains raw HTML tables")
	}
}

func TestWritePDFNoImages(t *testing.T) {
	run := Build("run_8", "", 0, nil)
	if err := WritePDF(run, filepath.Join(t.TempDir(), "report.pdf")); err == nil {
		t.Error("PDF export with no images must error")
	}
}

func TestStatusStrings(t *testing.T) {
	tests := []struct {
		tr   TargetResult
		want string
	}{
		{TargetResult{Error: "boom"}, "error: boom"},
		{TargetResult{BaselineCreated: true}, "baseline created"},
		{TargetResult{Changed: true}, "changed"},
		{TargetResult{}, "unchanged"},
	}
	for _, tt := range tests {
		if got := status(tt.tr); got != tt.want {
			t.Errorf("status(%+v) = %q, want %q", tt.tr, got, tt.want)
		}
	}
}
