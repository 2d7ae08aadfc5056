package imagediff

// Region is an axis-aligned bounding box around spatially-proximate changed
// pixels. X1 <= X2 and Y1 <= Y2 always hold.
type Region struct {
	X1     int `json:"x1"`
	Y1     int `json:"y1"`
	X2     int `json:"x2"`
	Y2     int `json:"y2"`
	Pixels int `json:"pixels"`
}

// contains reports whether (x, y) lies within the region's bounds expanded
// by the proximity window.
func (r Region) within(x, y, window int) bool {
	return x >= r.X1-window && x <= r.X2+window &&
		y >= r.Y1-window && y <= r.Y2+window
}

// clusterer groups changed pixels into regions in a single raster-order
// pass. A changed pixel extends the open region when it falls within the
// proximity window of the region's bounding box; otherwise the open region
// is closed (kept only if it exceeds the minimum pixel count) and a new one
// starts. This greedy pass approximates connected-component labeling:
// regions revisited later in raster order are never re-merged, an accepted
// precision/performance trade-off.
type clusterer struct {
	window    int
	minPixels int
	open      bool
	cur       Region
	regions   []Region
}

func newClusterer(window, minPixels int) *clusterer {
	return &clusterer{window: window, minPixels: minPixels}
}

func (c *clusterer) add(x, y int) {
	if c.open && c.cur.within(x, y, c.window) {
		if x < c.cur.X1 {
			c.cur.X1 = x
		}
		if x > c.cur.X2 {
			c.cur.X2 = x
		}
		if y < c.cur.Y1 {
			c.cur.Y1 = y
		}
		if y > c.cur.Y2 {
			c.cur.Y2 = y
		}
		c.cur.Pixels++
		return
	}
	c.close()
	c.cur = Region{X1: x, Y1: y, X2: x, Y2: y, Pixels: 1}
	c.open = true
}

func (c *clusterer) close() {
	if c.open && c.cur.Pixels > c.minPixels {
		c.regions = append(c.regions, c.cur)
	}
	c.open = false
}

// finish closes the open region and returns all kept regions.
func (c *clusterer) finish() []Region {
	c.close()
	return c.regions
}
