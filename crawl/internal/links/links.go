// Package links extracts and filters navigable same-domain links. It is
// stateless: callers pass the page's own location (so relative hrefs on deep
// pages resolve correctly) and the crawl origin used for domain matching.
package links

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Filter resolves raw hrefs against the page's location and keeps only
// navigable same-domain links: javascript: hrefs, pure fragments, non-HTTP
// schemes, cross-host links and the page's own URL are dropped, and the
// result is de-duplicated preserving document order. Malformed hrefs are
// silently skipped.
func Filter(pageURL, origin *url.URL, hrefs []string) []string {
	seen := make(map[string]bool)
	var out []string

	self := stripFragment(*pageURL)

	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := pageURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		if !strings.EqualFold(abs.Hostname(), origin.Hostname()) {
			continue
		}
		link := stripFragment(*abs)
		if link == self || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
	}
	return out
}

// FromHTML parses an HTML document and returns all anchor hrefs in document
// order, unresolved and unfiltered.
func FromHTML(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs, nil
}

func stripFragment(u url.URL) string {
	u.Fragment = ""
	return u.String()
}
