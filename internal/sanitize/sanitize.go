// Package sanitize cleans raw fetched HTML before it reaches the extraction
// engine or the store. Document is the broad whole-document pass that removes
// execution vectors while keeping <head> content needed for canonical-link
// discovery; FilterTags is the narrow allow-list pass applied to extracted
// article bodies before persistence.
package sanitize

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Options extends the set of elements Document keeps beyond the built-in
// allow list.
type Options struct {
	PreserveTags []string
}

var whitespaceRunRe = regexp.MustCompile(`\s\s+`)

// collapseWhitespace shrinks runs of two or more whitespace characters to a
// single space, cutting payload size before any parsing happens.
func collapseWhitespace(s string) string {
	return whitespaceRunRe.ReplaceAllString(s, " ")
}

// droppedTags are removed together with their contents. Everything else that
// is not allowed gets unwrapped, keeping its children.
var droppedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"iframe": true, "frame": true, "frameset": true, "object": true,
	"embed": true, "applet": true, "base": true,
	"form": true, "input": true, "button": true, "select": true,
	"textarea": true, "option": true,
}

// documentTags is the whole-document allow list. <link> is kept by default
// even though it carries no visible content: the canonical URL resolver
// depends on it.
var documentTags = map[string]bool{
	"html": true, "head": true, "body": true, "title": true, "link": true,
	"main": true, "article": true, "aside": true, "header": true,
	"footer": true, "nav": true, "section": true, "address": true,
	"div": true, "p": true, "hr": true, "br": true, "wbr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"blockquote": true, "pre": true, "code": true, "samp": true, "kbd": true,
	"var": true, "cite": true, "q": true, "abbr": true, "dfn": true,
	"time": true, "data": true, "mark": true, "small": true, "s": true,
	"u": true, "b": true, "strong": true, "i": true, "em": true,
	"sub": true, "sup": true, "span": true, "a": true, "img": true,
	"figure": true, "figcaption": true, "caption": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true,
	"tr": true, "td": true, "th": true, "col": true, "colgroup": true,
	"del": true, "ins": true,
	"svg": true, "path": true, "g": true, "circle": true, "rect": true,
	"line": true, "polyline": true, "polygon": true,
}

var allowedAttrs = map[string]bool{
	"id": true, "class": true, "title": true, "lang": true, "dir": true,
	"href": true, "src": true, "alt": true, "width": true, "height": true,
	"rel": true, "type": true, "datetime": true, "cite": true,
	"colspan": true, "rowspan": true, "scope": true, "start": true,
	// svg geometry
	"d": true, "viewbox": true, "fill": true, "stroke": true, "points": true,
	"cx": true, "cy": true, "r": true, "x": true, "y": true,
	"x1": true, "y1": true, "x2": true, "y2": true,
}

// Document sanitizes a whole HTML document: collapses whitespace runs, drops
// script execution vectors and inline event handlers, and unwraps elements
// outside the allow list while keeping their content. Deterministic and
// idempotent: same input and options always produce the same output.
func Document(rawHTML string, opts Options) string {
	collapsed := collapseWhitespace(rawHTML)

	doc, err := html.Parse(strings.NewReader(collapsed))
	if err != nil {
		// net/html recovers from almost anything; a hard parse error means
		// the input is not HTML at all.
		return ""
	}

	preserve := make(map[string]bool, len(opts.PreserveTags))
	for _, tag := range opts.PreserveTags {
		preserve[strings.ToLower(tag)] = true
	}

	cleanTree(doc, func(name string) bool {
		return documentTags[name] || preserve[name]
	})

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return ""
	}
	return buf.String()
}

// cleanTree removes dropped elements, unwraps disallowed ones and strips
// unsafe attributes, depth-first over n's subtree.
func cleanTree(n *html.Node, allowed func(string) bool) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling

		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)

		case c.Type == html.ElementNode && droppedTags[c.Data]:
			n.RemoveChild(c)

		case c.Type == html.ElementNode && !allowed(c.Data):
			// Unwrap: hoist the children into the parent, then drop the
			// element itself. The hoisted nodes are revisited next.
			first := c.FirstChild
			for gc := c.FirstChild; gc != nil; {
				gcNext := gc.NextSibling
				c.RemoveChild(gc)
				n.InsertBefore(gc, c)
				gc = gcNext
			}
			n.RemoveChild(c)
			if first != nil {
				next = first
			}

		case c.Type == html.ElementNode:
			c.Attr = filterAttrs(c.Attr)
			cleanTree(c, allowed)
		}

		c = next
	}
}

func filterAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") || !allowedAttrs[key] {
			continue
		}
		if key == "href" || key == "src" {
			val := strings.ToLower(strings.TrimSpace(a.Val))
			if strings.HasPrefix(val, "javascript:") || strings.HasPrefix(val, "vbscript:") {
				continue
			}
		}
		kept = append(kept, a)
	}
	return kept
}
