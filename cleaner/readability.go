package cleaner

import (
	"log/slog"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/pageclip/dom"
)

// ArticleMeta is the page-level metadata readability can infer when a page
// has no explicit meta tags.
type ArticleMeta struct {
	Title    string
	Byline   string
	Excerpt  string
	SiteName string
	Language string
}

// ReadArticleMeta runs the Mozilla Readability algorithm over the page
// snapshot and keeps only its metadata; body text always comes from
// ExtractMainContent. ok is false when readability could not parse the page.
func ReadArticleMeta(page *dom.Page) (ArticleMeta, bool) {
	if page == nil || page.Doc == nil || page.URL == nil {
		return ArticleMeta{}, false
	}

	rawHTML, err := page.Doc.Html()
	if err != nil {
		return ArticleMeta{}, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), page.URL)
	if err != nil {
		slog.Debug("readability: metadata extraction failed",
			"url", page.URL.String(), "error", err,
		)
		return ArticleMeta{}, false
	}

	return ArticleMeta{
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		Excerpt:  strings.TrimSpace(article.Excerpt),
		SiteName: strings.TrimSpace(article.SiteName),
		Language: strings.TrimSpace(article.Language),
	}, true
}
