// Package imagediff compares two raster images pixel by pixel. It computes
// a difference percentage over the overlapping extent, renders a highlight
// overlay diff image, and clusters changed pixels into bounding-box regions.
// Pure functions over decoded images; no state is kept between calls.
package imagediff

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

// Options tune the per-pixel comparison and the diff overlay.
type Options struct {
	// PixelThreshold is the Euclidean RGB distance above which a pixel
	// counts as changed. 0 means any difference counts. Independent from
	// the overall pass/fail threshold applied to the diff percentage.
	PixelThreshold float64

	// Highlight is the overlay colour for changed pixels.
	Highlight color.RGBA

	// Alpha is the blend factor of the highlight over the current pixel,
	// in [0, 1]. The diff image is a visual overlay, not a binary mask.
	Alpha float64

	// ProximityPx is the window in both axes within which a changed pixel
	// extends the open region.
	ProximityPx int

	// MinRegionPixels is the pixel count a region must exceed to be kept.
	MinRegionPixels int
}

func (o *Options) applyDefaults() {
	if o.Highlight == (color.RGBA{}) {
		o.Highlight = color.RGBA{R: 255, A: 255}
	}
	if o.Alpha <= 0 || o.Alpha > 1 {
		o.Alpha = 0.5
	}
	if o.ProximityPx <= 0 {
		o.ProximityPx = 20
	}
	if o.MinRegionPixels <= 0 {
		o.MinRegionPixels = 10
	}
}

// Result is the outcome of one comparison.
type Result struct {
	DiffPixels     int      `json:"diff_pixels"`
	TotalPixels    int      `json:"total_pixels"`
	DiffPercentage float64  `json:"diff_percentage"`
	Regions        []Region `json:"regions,omitempty"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
}

// Changed reports whether any pixel differed.
func (r *Result) Changed() bool { return r.DiffPixels > 0 }

// Compare diffs baseline against current. The canvas spans the maximum of
// both dimensions so size drift between runs does not fail the comparison;
// only the overlapping extent is compared and counted in TotalPixels.
// Pixels outside the overlap copy through from whichever image has them.
func Compare(baseline, current image.Image, opts Options) (*Result, *image.RGBA) {
	opts.applyDefaults()

	bb, cb := baseline.Bounds(), current.Bounds()
	bw, bh := bb.Dx(), bb.Dy()
	cw, ch := cb.Dx(), cb.Dy()

	w, h := max(bw, cw), max(bh, ch)
	overlapW, overlapH := min(bw, cw), min(bh, ch)

	diff := image.NewRGBA(image.Rect(0, 0, w, h))
	cl := newClusterer(opts.ProximityPx, opts.MinRegionPixels)
	diffPixels := 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inCurrent := x < cw && y < ch
			inBaseline := x < bw && y < bh

			switch {
			case inCurrent:
				diff.Set(x, y, current.At(cb.Min.X+x, cb.Min.Y+y))
			case inBaseline:
				diff.Set(x, y, baseline.At(bb.Min.X+x, bb.Min.Y+y))
			}

			if !inCurrent || !inBaseline {
				continue
			}

			d := pixelDistance(
				baseline.At(bb.Min.X+x, bb.Min.Y+y),
				current.At(cb.Min.X+x, cb.Min.Y+y),
			)
			if d > opts.PixelThreshold {
				diffPixels++
				diff.SetRGBA(x, y, blend(diff.RGBAAt(x, y), opts.Highlight, opts.Alpha))
				cl.add(x, y)
			}
		}
	}

	total := overlapW * overlapH
	pct := 0.0
	if total > 0 {
		pct = float64(diffPixels) / float64(total) * 100
	}

	return &Result{
		DiffPixels:     diffPixels,
		TotalPixels:    total,
		DiffPercentage: pct,
		Regions:        cl.finish(),
		Width:          w,
		Height:         h,
	}, diff
}

// CompareFiles decodes two PNG files, compares them, and writes the diff
// overlay to diffPath (parent directories created as needed).
func CompareFiles(baselinePath, currentPath, diffPath string, opts Options) (*Result, error) {
	baseline, err := decodePNG(baselinePath)
	if err != nil {
		return nil, err
	}
	current, err := decodePNG(currentPath)
	if err != nil {
		return nil, err
	}

	result, diff := Compare(baseline, current, opts)

	if err := os.MkdirAll(filepath.Dir(diffPath), 0o755); err != nil {
		return nil, fmt.Errorf("imagediff: mkdir for %s: %w", diffPath, err)
	}
	f, err := os.Create(diffPath)
	if err != nil {
		return nil, fmt.Errorf("imagediff: create %s: %w", diffPath, err)
	}
	if err := png.Encode(f, diff); err != nil {
		f.Close()
		return nil, fmt.Errorf("imagediff: encode %s: %w", diffPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("imagediff: close %s: %w", diffPath, err)
	}
	return result, nil
}

// pixelDistance is the Euclidean distance between two pixels in RGB space,
// on 8-bit channels. Alpha is ignored.
func pixelDistance(a, b color.Color) float64 {
	ar, ag, ab_, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	dr := float64(ar>>8) - float64(br>>8)
	dg := float64(ag>>8) - float64(bg>>8)
	db := float64(ab_>>8) - float64(bb>>8)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func blend(under, over color.RGBA, alpha float64) color.RGBA {
	mix := func(u, o uint8) uint8 {
		return uint8(float64(u)*(1-alpha) + float64(o)*alpha)
	}
	return color.RGBA{
		R: mix(under.R, over.R),
		G: mix(under.G, over.G),
		B: mix(under.B, over.B),
		A: 255,
	}
}

// ParseHexColor parses "#rrggbb" (or "rrggbb") into an opaque RGBA.
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("imagediff: invalid hex colour %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("imagediff: invalid hex colour %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imagediff: open %s: %w", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imagediff: decode %s: %w", path, err)
	}
	return img, nil
}
