package adapter

import (
	"context"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// rootCandidates are tried in order; the first present one is the subtree
// handed to the Scorer.
var rootCandidates = []cascadia.Selector{
	cascadia.MustCompile("main"),
	cascadia.MustCompile("article"),
	cascadia.MustCompile(".article"),
	cascadia.MustCompile(".content"),
	cascadia.MustCompile("body"),
}

var firstHeading = cascadia.MustCompile("h1")

// wordsPerMinute converts a word count into the readingTime estimate.
const wordsPerMinute = 200

// Generic extracts any page with the Scorer. Metadata comes from meta tags,
// with readability filling the gaps.
type Generic struct{}

var _ Adapter = (*Generic)(nil)

// NewGeneric returns the fallback adapter.
func NewGeneric() *Generic { return &Generic{} }

func (g *Generic) Name() string { return NameGeneric }

// Extract never fails on a missing body: an empty Content is reported by the
// orchestrator as EmptyExtraction. Only a page without any title fails.
func (g *Generic) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	rec := newRecord(page, "")
	root := contentRoot(page)
	article, hasArticle := cleaner.ReadArticleMeta(page)

	rec.Title = page.Title
	if rec.Title == "" && hasArticle {
		rec.Title = article.Title
	}
	if rec.Title == "" {
		return nil, missing(NameGeneric, "title")
	}

	heading := strings.TrimSpace(page.FindMatcher(firstHeading).First().Text())
	rec.Content = dropLeadingTitle(cleaner.ExtractMainContent(page, root), rec.Title, heading)

	meta := &rec.Metadata
	meta.Author = page.Meta("name", "author")
	if meta.Author == "" && hasArticle {
		meta.Author = article.Byline
	}
	meta.Description = page.Meta("name", "description")
	if meta.Description == "" && hasArticle {
		meta.Description = article.Excerpt
	}
	meta.Keywords = page.Meta("name", "keywords")
	meta.PublishTime = page.Meta("property", "article:published_time")
	meta.Source = page.Hostname()
	meta.Images = cleaner.CollectImages(page, root)

	extra := map[string]any{
		"readingTime": readingTime(rec.Content),
	}
	if hasArticle && article.SiteName != "" {
		extra["siteName"] = article.SiteName
	}
	if hasArticle && article.Language != "" {
		extra["language"] = article.Language
	}
	meta.Extra = extra

	return rec, nil
}

func contentRoot(page *dom.Page) *goquery.Selection {
	for _, m := range rootCandidates {
		if sel := page.FindMatcher(m); sel.Length() > 0 {
			return sel.First()
		}
	}
	return doc(page)
}

// dropLeadingTitle removes the first paragraph of content when it only
// repeats the title or the page heading.
func dropLeadingTitle(content string, titles ...string) string {
	first, rest, _ := strings.Cut(content, "\n\n")
	first = collapse(first)
	for _, t := range titles {
		if t = collapse(t); t != "" && first == t {
			return rest
		}
	}
	return content
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// readingTime is the estimated reading time in whole minutes.
func readingTime(content string) int {
	words := len(strings.Fields(content))
	return int(math.Ceil(float64(words) / wordsPerMinute))
}
