package sites

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/wlsync/internal/shared"
)

// Document parses a page body.
func Document(page []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrParseFailed, err)
	}
	return doc, nil
}

// Required returns the first match of selector or an [shared.ErrParseFailed] naming it.
func Required(s *goquery.Selection, selector string) (*goquery.Selection, error) {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: missing %s", shared.ErrParseFailed, selector)
	}
	return found, nil
}

// Canonical returns the canonical link of a page.
func Canonical(doc *goquery.Document) string {
	href, _ := doc.Find(`head link[rel="canonical"]`).Attr("href")
	return href
}

// LastSegment returns the part of a URL path after the final slash.
func LastSegment(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	return href[strings.LastIndex(href, "/")+1:]
}

var digits = regexp.MustCompile(`\d+`)

// FirstNumber returns the first run of digits in s.
func FirstNumber(s string) (int, bool) {
	m := digits.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// Text returns the trimmed text of a selection.
func Text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
