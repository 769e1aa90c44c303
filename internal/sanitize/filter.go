package sanitize

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// ContentTags is the fixed allow list applied to extracted article bodies:
// structural containers, headings, paragraph and inline emphasis, figures
// and captions, anchors, and the vector-graphic elements used by embedded
// diagrams. It is configuration, never user input.
var ContentTags = []string{
	"a", "b", "blockquote", "br", "caption", "circle", "code", "div", "em",
	"figcaption", "figure", "g", "h1", "h2", "h3", "h4", "h5", "h6", "i",
	"img", "li", "line", "ol", "p", "path", "polygon", "polyline", "pre",
	"rect", "section", "small", "span", "strong", "sub", "sup", "svg",
	"table", "tbody", "td", "th", "thead", "tr", "u", "ul",
}

// FilterTags strips every element whose tag is outside the allow list while
// keeping allowed elements' content and nesting. Script and style elements
// lose their contents as well. This is the last pass before extracted
// content is stored, so nothing outside the list survives arbitrarily
// nested input.
func FilterTags(htmlStr string, allowedTags []string) string {
	allowed := make(map[string]bool, len(allowedTags))
	for _, tag := range allowedTags {
		allowed[strings.ToLower(tag)] = true
	}

	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	cleanTree(doc, func(name string) bool {
		// html/head/body come from the parser, not the input; they are
		// skipped at render time below.
		return allowed[name] || name == "html" || name == "head" || name == "body"
	})

	body := findElement(doc, "body")
	if body == nil {
		return ""
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}
