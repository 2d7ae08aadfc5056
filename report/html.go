package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Page-derived strings (titles come from arbitrary crawled pages) are
// stripped of any markup before templating.
var sanitizer = bluemonday.StrictPolicy()

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
.summary { margin: 1rem 0; }
.summary .fail { color: #b00020; font-weight: 600; }
.summary .pass { color: #1a7f37; font-weight: 600; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 0.5rem; text-align: left; vertical-align: top; }
th { background: #f5f5f5; }
tr.changed td { background: #fff3f3; }
img.thumb { max-width: 240px; display: block; }
.pct { font-variant-numeric: tabular-nums; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="summary">
{{if .Run.Passed}}<span class="pass">PASS</span>{{else}}<span class="fail">FAIL</span>{{end}}
— {{len .Run.Targets}} targets, {{.Run.ChangedCount}} changed,
max diff {{printf "%.4f" .Run.MaxDiff}}% (threshold {{printf "%.4f" .Run.Threshold}}%),
{{.Run.CreatedBaselines}} baselines created.
<br>Run {{.Run.ID}} at {{.Run.StartedAt.Format "2006-01-02 15:04:05 MST"}}{{if .Run.StartURL}}, seed {{.Run.StartURL}}{{end}}.
</div>
<table>
<tr><th>Target</th><th>Status</th><th>Diff %</th><th>Regions</th><th>Baseline</th><th>Current</th><th>Diff</th></tr>
{{range .Rows}}
<tr{{if .Changed}} class="changed"{{end}}>
<td>{{.Target}}{{if .URL}}<br><small>{{.URL}}</small>{{end}}{{if .Title}}<br><small>{{.Title}}</small>{{end}}</td>
<td>{{.Status}}</td>
<td class="pct">{{printf "%.4f" .DiffPercentage}}</td>
<td>{{.RegionSummary}}</td>
<td>{{if .BaselineRel}}<a href="{{.BaselineRel}}"><img class="thumb" src="{{.BaselineThumb}}" alt="baseline"></a>{{end}}</td>
<td>{{if .CurrentRel}}<a href="{{.CurrentRel}}"><img class="thumb" src="{{.CurrentThumb}}" alt="current"></a>{{end}}</td>
<td>{{if .DiffRel}}<a href="{{.DiffRel}}"><img class="thumb" src="{{.DiffThumb}}" alt="diff"></a>{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`

var reportTmpl = template.Must(template.New("report").Parse(htmlTemplate))

type htmlRow struct {
	Target         string
	URL            string
	Title          string
	Status         string
	Changed        bool
	DiffPercentage float64
	RegionSummary  string
	BaselineRel    string
	CurrentRel     string
	DiffRel        string
	BaselineThumb  string
	CurrentThumb   string
	DiffThumb      string
}

type htmlData struct {
	Title string
	Run   *Run
	Rows  []htmlRow
}

// WriteHTML renders the run as report.html inside dir, with image paths
// relative to dir and downscaled thumbnails generated beside each image.
// Thumbnail failures degrade to linking the full image; they never fail the
// report.
func WriteHTML(run *Run, dir, title string) (string, error) {
	path := filepath.Join(dir, "report.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := renderHTML(run, dir, title, true, f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("report: close %s: %w", path, err)
	}
	return path, nil
}

// renderHTML writes the report document to w. With thumbs disabled (the
// Markdown/export path) image cells link the full images directly and no
// thumbnail files are generated.
func renderHTML(run *Run, dir, title string, thumbs bool, w io.Writer) error {
	data := htmlData{Title: title, Run: run}

	for _, t := range run.Targets {
		row := htmlRow{
			Target:         t.Target,
			URL:            t.URL,
			Title:          sanitizer.Sanitize(t.Title),
			Changed:        t.Changed,
			DiffPercentage: t.DiffPercentage,
			Status:         status(t),
			RegionSummary:  regionSummary(t),
		}
		row.BaselineRel, row.BaselineThumb = relImage(dir, t.BaselinePath, thumbs)
		row.CurrentRel, row.CurrentThumb = relImage(dir, t.CurrentPath, thumbs)
		if t.Changed {
			row.DiffRel, row.DiffThumb = relImage(dir, t.DiffImagePath, thumbs)
		}
		data.Rows = append(data.Rows, row)
	}

	if err := reportTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

func status(t TargetResult) string {
	switch {
	case t.Error != "":
		return "error: " + t.Error
	case t.BaselineCreated:
		return "baseline created"
	case t.Changed:
		return "changed"
	default:
		return "unchanged"
	}
}

func regionSummary(t TargetResult) string {
	if len(t.Regions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(t.Regions))
	for _, r := range t.Regions {
		parts = append(parts, fmt.Sprintf("(%d,%d)-(%d,%d) %dpx", r.X1, r.Y1, r.X2, r.Y2, r.Pixels))
	}
	return strings.Join(parts, "; ")
}

// relImage returns the image path relative to the report directory and the
// src to render in the cell — a generated thumbnail when thumbs is on, the
// full image otherwise.
func relImage(dir, imgPath string, thumbs bool) (rel, src string) {
	if imgPath == "" {
		return "", ""
	}
	if _, err := os.Stat(imgPath); err != nil {
		return "", ""
	}
	rel, err := filepath.Rel(dir, imgPath)
	if err != nil {
		rel = imgPath
	}
	rel = filepath.ToSlash(rel)

	if !thumbs {
		return rel, rel
	}
	thumbPath := strings.TrimSuffix(imgPath, ".png") + ".thumb.png"
	if err := writeThumbnail(imgPath, thumbPath, 240); err != nil {
		return rel, rel
	}
	trel, err := filepath.Rel(dir, thumbPath)
	if err != nil {
		return rel, rel
	}
	return rel, filepath.ToSlash(trel)
}
