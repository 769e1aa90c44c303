// Package extract wraps the readability engine behind a strict schema so the
// rest of the pipeline never sees the engine's loosely shaped output.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"readlater/internal/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract runs readability over the sanitized HTML of pageURL. The HTML is
// handed over as bytes, not text, so non-ASCII characters survive exactly as
// fetched. An engine failure or an empty result wraps
// domain.ErrExtractionFailed: callers can tell "no article on this page"
// apart from transport errors.
func (e *Extractor) Extract(pageURL string, htmlBytes []byte) (*domain.ExtractedArticle, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", domain.ErrExtractionFailed, err)
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	if strings.TrimSpace(article.TextContent) == "" {
		return nil, fmt.Errorf("%w: no readable content at %s", domain.ErrExtractionFailed, pageURL)
	}

	return &domain.ExtractedArticle{
		Title:         article.Title,
		Author:        article.Byline,
		Excerpt:       article.Excerpt,
		Content:       article.Content,
		DatePublished: article.PublishedTime,
	}, nil
}
