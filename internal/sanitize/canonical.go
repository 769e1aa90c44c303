package sanitize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CanonicalURL scans all <link> elements of a sanitized document in document
// order and returns the href of the first one whose rel equals "canonical".
// It returns "" when no canonical link exists; malformed HTML is treated the
// same way, never as an error.
func CanonicalURL(sanitizedHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitizedHTML))
	if err != nil {
		return ""
	}

	var href string
	doc.Find("link").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if rel, _ := sel.Attr("rel"); rel == "canonical" {
			href, _ = sel.Attr("href")
			return false
		}
		return true
	})

	return href
}
