// Package dom is the read-only document accessor the scorer and the site
// adapters query. A Page is a parsed snapshot of one rendered page plus the
// layout facts the browser stamped onto its elements.
package dom

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MaxSettle caps the cooperative wait an adapter may request for
// late-loading content.
const MaxSettle = time.Second

// Refresher re-reads a live page after it had time to render more content.
type Refresher interface {
	Refresh(ctx context.Context) (*goquery.Document, error)
}

// Page is one page snapshot.
type Page struct {
	URL            *url.URL
	Title          string
	Doc            *goquery.Document
	ViewportHeight float64

	live Refresher
}

// Parse builds a static Page from raw HTML. A non-positive viewportHeight
// falls back to the height stamped on <html>, if any.
func Parse(rawURL, rawHTML string, viewportHeight float64) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dom: parse url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}
	return NewPage(u, doc, viewportHeight), nil
}

// NewPage wraps an already parsed document.
func NewPage(u *url.URL, doc *goquery.Document, viewportHeight float64) *Page {
	p := &Page{URL: u, Doc: doc, ViewportHeight: viewportHeight}
	p.load(doc)
	return p
}

// WithLive attaches a refresher, making Settle re-read the page.
func (p *Page) WithLive(r Refresher) *Page {
	p.live = r
	return p
}

// Live reports whether the page can still change under us.
func (p *Page) Live() bool { return p.live != nil }

// Hostname is the normalized host of the page URL.
func (p *Page) Hostname() string {
	if p.URL == nil {
		return ""
	}
	return NormalizeHost(p.URL.Hostname())
}

// NormalizeHost lowercases host, drops a port, a trailing dot and a leading
// "www." so registry lookups can stay exact.
func NormalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "www.")
}

// Find runs a selector against the whole document.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.Doc.Find(selector)
}

// FindMatcher runs a compiled selector against the whole document.
func (p *Page) FindMatcher(m goquery.Matcher) *goquery.Selection {
	return p.Doc.FindMatcher(m)
}

// Body returns the <body> element, or the document root when there is none.
func (p *Page) Body() *goquery.Selection {
	if body := p.Doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return p.Doc.Selection
}

// Meta returns the content attribute of the first meta tag matching attr=value.
func (p *Page) Meta(attr, value string) string {
	var out string
	p.Doc.Find("meta[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr(attr); strings.EqualFold(v, value) {
			out = strings.TrimSpace(s.AttrOr("content", ""))
			return false
		}
		return true
	})
	return out
}

// Resolve turns href into an absolute URL against the page URL. It returns
// "" for hrefs that cannot be parsed.
func (p *Page) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if p.URL == nil {
		return ref.String()
	}
	return p.URL.ResolveReference(ref).String()
}

// Settle gives a live page up to d (capped at MaxSettle) to load late
// content, then swaps in a fresh snapshot. Static pages return at once.
func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	if p.live == nil || d <= 0 {
		return nil
	}
	if d > MaxSettle {
		d = MaxSettle
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	doc, err := p.live.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("dom: refresh: %w", err)
	}
	p.Doc = doc
	p.load(doc)
	return nil
}

func (p *Page) load(doc *goquery.Document) {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		p.Title = title
	}
	if p.ViewportHeight <= 0 {
		if vh, ok := floatAttr(doc.Find("html").First().Nodes, AttrViewport); ok {
			p.ViewportHeight = vh
		}
	}
}
