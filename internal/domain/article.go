package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

const MaxTagLength = 20

var alphanumericRe = regexp.MustCompile(`^\w+$`)

// Article is the canonical persisted unit. ID is the store's internal key
// and UserID the owner reference; neither appears in the client-facing
// shape built by View().
type Article struct {
	ID            int64
	UniqueID      string
	UserID        int64
	URL           string
	CanonicalURL  string
	Slug          string
	Title         *string
	Author        *string
	Excerpt       *string
	DatePublished *time.Time
	Content       string
	CreatedOn     time.Time
	RefreshedAt   time.Time
	TimeToFetch   int64 // milliseconds
	TimeToParse   int64 // milliseconds
	SizeInBytes   int64
	Tags          []string
}

// ArticleView is the public JSON shape of an article.
type ArticleView struct {
	UniqueID      string   `json:"uniqueId"`
	URL           string   `json:"url"`
	CanonicalURL  string   `json:"canonicalUrl"`
	Slug          string   `json:"slug"`
	Title         *string  `json:"title"`
	Author        *string  `json:"author"`
	Excerpt       *string  `json:"excerpt"`
	DatePublished *string  `json:"datePublished"`
	Content       string   `json:"content"`
	CreatedOn     string   `json:"createdOn"`
	TimeToFetch   int64    `json:"timeToFetch"`
	TimeToParse   int64    `json:"timeToParse"`
	SizeInBytes   int64    `json:"sizeInBytes"`
	Tags          []string `json:"tags"`
}

func (a *Article) View() ArticleView {
	var published *string
	if a.DatePublished != nil {
		s := a.DatePublished.UTC().Format(time.RFC3339)
		published = &s
	}

	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}

	return ArticleView{
		UniqueID:      a.UniqueID,
		URL:           a.URL,
		CanonicalURL:  a.CanonicalURL,
		Slug:          a.Slug,
		Title:         a.Title,
		Author:        a.Author,
		Excerpt:       a.Excerpt,
		DatePublished: published,
		Content:       a.Content,
		CreatedOn:     a.CreatedOn.UTC().Format(time.RFC3339),
		TimeToFetch:   a.TimeToFetch,
		TimeToParse:   a.TimeToParse,
		SizeInBytes:   a.SizeInBytes,
		Tags:          tags,
	}
}

// ExtractedArticle is the strict schema the extraction adapter coerces the
// readability engine's output into.
type ExtractedArticle struct {
	Title         string
	Author        string
	Excerpt       string
	Content       string
	DatePublished *time.Time
}

// Patch is an explicit tagged update: a non-empty RefreshURL re-runs the
// whole extraction pipeline against it and replaces derived fields; the
// remaining fields are then merged one by one, nil meaning "leave as is".
type Patch struct {
	RefreshURL string
	Title      *string
	Author     *string
	Tags       []string
}

// IsValidTag reports whether a tag is a short alphanumeric string.
func IsValidTag(tag string) bool {
	return len(tag) <= MaxTagLength && alphanumericRe.MatchString(tag)
}

// MergeTags trims incoming tags, merges them with existing, drops duplicates
// and returns the result bytewise-sorted (uppercase before lowercase).
func MergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))

	for _, tag := range existing {
		if !seen[tag] {
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	for _, tag := range incoming {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}

	sort.Strings(merged)
	return merged
}
