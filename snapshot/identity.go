// Package snapshot manages the on-disk screenshot layout: one directory per
// URL identity holding current.png, baseline.png and diff.png. The identity
// is derived from hostname+path with the query string stripped, so repeated
// visits to the same page stay comparable across runs.
package snapshot

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Identity derives the filesystem-safe identity of a URL: lowercased
// hostname+path, query string dropped, runs of non-alphanumeric characters
// collapsed to a single underscore. Two URLs differing only in query or in
// hostname case map to the same identity.
func Identity(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("snapshot: parse url %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("snapshot: url %q has no hostname", rawURL)
	}
	return nonAlnum.ReplaceAllString(host+u.Path, "_"), nil
}
