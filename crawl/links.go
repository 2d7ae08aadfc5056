package crawl

import (
	"io"

	"github.com/hazyhaar/dasite/crawl/internal/links"
)

// ExtractHrefs parses an HTML document and returns all anchor hrefs in
// document order, unresolved and unfiltered. Useful for Page implementations
// that work from raw HTML instead of a live browser.
func ExtractHrefs(r io.Reader) ([]string, error) {
	return links.FromHTML(r)
}
