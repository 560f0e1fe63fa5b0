package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
	"golang.org/x/net/html"
)

// CollectImages returns the images under sel with absolute URLs. Data URIs
// and avatars are skipped and duplicates dropped.
func CollectImages(page *dom.Page, sel *goquery.Selection) []models.Image {
	images := []models.Image{}
	if sel == nil {
		return images
	}

	seen := make(map[string]struct{})
	sel.Find("img").AddSelection(sel.Filter("img")).Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		if src == "" || strings.HasPrefix(src, "data:") {
			src = s.AttrOr("data-src", "")
		}
		if src == "" || strings.Contains(src, "data:image") || strings.Contains(src, "avatar") {
			return
		}

		absURL := page.Resolve(src)
		if absURL == "" {
			return
		}
		if _, ok := seen[absURL]; ok {
			return
		}
		seen[absURL] = struct{}{}

		w, h := dom.NaturalSize(s.Nodes[0])
		images = append(images, models.Image{
			URL:    absURL,
			Width:  w,
			Height: h,
			Alt:    strings.TrimSpace(s.AttrOr("alt", "")),
		})
	})

	return images
}

// LinkFilter decides whether an absolute http(s) link is kept.
type LinkFilter func(u *url.URL, text string) bool

// ExternalLinks lists the http(s) anchors under sel accepted by keep,
// deduplicated by URL.
func ExternalLinks(page *dom.Page, sel *goquery.Selection, keep LinkFilter) []models.Link {
	var links []models.Link
	if sel == nil {
		return links
	}

	seen := make(map[string]struct{})
	sel.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		u, ok := httpLink(page, s)
		if !ok {
			return
		}
		text := strings.TrimSpace(s.Text())
		if keep != nil && !keep(u, text) {
			return
		}
		if _, dup := seen[u.String()]; dup {
			return
		}
		seen[u.String()] = struct{}{}
		links = append(links, models.Link{Text: text, URL: u.String()})
	})
	return links
}

// InlineLinks returns the text of sel with " [url] " written after every
// anchor accepted by keep whose text does not already show the URL. The
// page itself is left untouched.
func InlineLinks(page *dom.Page, sel *goquery.Selection, keep LinkFilter) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	work := sel.First().Clone()
	work.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		u, ok := httpLink(page, s)
		if !ok {
			return
		}
		text := s.Text()
		if keep != nil && !keep(u, text) {
			return
		}
		if strings.Contains(text, u.String()) {
			return
		}
		s.AfterNodes(&html.Node{Type: html.TextNode, Data: " [" + u.String() + "] "})
	})
	return strings.TrimSpace(work.Text())
}

func httpLink(page *dom.Page, s *goquery.Selection) (*url.URL, bool) {
	abs := page.Resolve(s.AttrOr("href", ""))
	if abs == "" {
		return nil, false
	}
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	return u, true
}
