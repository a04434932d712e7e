package extract

import (
	"fmt"
	"regexp"
)

// The book page embeds its data as JSON (entity-escaped in some renders),
// so these fields are scanned with regexes instead of selectors.
var (
	ratingsCountPattern = regexp.MustCompile(`(?:"|&quot;)ratingsCount(?:"|&quot;)\s*:\s*(\d+)`)
	shelvesPathPattern  = regexp.MustCompile(`(?:"|&quot;)[^"&]*(work/shelves[^"&]+)(?:"|&quot;)`)
)

// RatingsCount scans a book page for the total number of ratings. Its
// absence means the page did not render as a book page at all, which
// usually indicates a broken login.
func RatingsCount(page []byte) (string, error) {
	m := ratingsCountPattern.FindSubmatch(page)
	if m == nil {
		return "", ErrExtraction{Err: fmt.Errorf("no ratings count on book page, maybe the markup changed or the login expired")}
	}
	return string(m[1]), nil
}

// ShelvesPath scans a book page for the site-relative path of its
// shelves/votes page. Not every book links one.
func ShelvesPath(page []byte) (string, bool) {
	m := shelvesPathPattern.FindSubmatch(page)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}
