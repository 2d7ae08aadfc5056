package report

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// writeThumbnail scales src down to maxWidth (preserving aspect ratio) and
// writes it as PNG to dst. Images already narrower than maxWidth are copied
// through a re-encode at original size.
func writeThumbnail(src, dst string, maxWidth int) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("report: open %s: %w", src, err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("report: decode %s: %w", src, err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxWidth {
		h = h * maxWidth / w
		if h < 1 {
			h = 1
		}
		w = maxWidth
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", dst, err)
	}
	if err := png.Encode(out, scaled); err != nil {
		out.Close()
		return fmt.Errorf("report: encode %s: %w", dst, err)
	}
	return out.Close()
}
