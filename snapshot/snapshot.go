// Package snapshot produces dom.Page snapshots: from HTML the operator's
// browser posted, from a headless browser render, or from a plain fetch.
package snapshot

import (
	"context"
	_ "embed"
	"strings"

	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// StampJS stamps layout facts onto every element of the current document.
// It is a function expression: run it with page.Eval or wrap it as
// "(" + StampJS + ")()" in a browser.
//
//go:embed stamp.js
var StampJS string

// Source names where a snapshot came from.
type Source string

const (
	SourceSubmitted Source = "submitted"
	SourceBrowser   Source = "browser"
	SourceHTTP      Source = "http"
)

// FromHTML parses posted HTML. title, when set, overrides the document
// title.
func FromHTML(rawURL, rawHTML, title string, viewportHeight int) (*dom.Page, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "html is empty", nil)
	}
	page, err := dom.Parse(rawURL, rawHTML, float64(viewportHeight))
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "could not parse the submitted page", err)
	}
	if t := strings.TrimSpace(title); t != "" {
		page.Title = t
	}
	return page, nil
}

// Sources picks a snapshot source per capture request. Browser and Fetcher
// may be nil when that source is disabled.
type Sources struct {
	Browser *Browser
	Fetcher *Fetcher

	DefaultViewportHeight int
}

// Take returns the page for req and a release func the caller must call
// once extraction is done. Posted HTML wins; otherwise req.Render selects
// the browser or the plain fetch.
func (s *Sources) Take(ctx context.Context, req models.CaptureRequest) (*dom.Page, func(), error) {
	vh := req.ViewportHeight
	if vh <= 0 {
		vh = s.DefaultViewportHeight
	}
	if req.HTML != "" {
		page, err := FromHTML(req.URL, req.HTML, req.Title, vh)
		return page, func() {}, err
	}

	var (
		page    *dom.Page
		release = func() {}
		err     error
	)
	switch {
	case Source(req.Render) != SourceHTTP && s.Browser != nil:
		page, release, err = s.Browser.Open(ctx, req.URL, vh)
	case s.Fetcher != nil:
		page, err = s.Fetcher.Fetch(ctx, req.URL, vh)
	default:
		err = models.NewCaptureError(models.ErrCodeSnapshotFailed,
			"no snapshot source available; post the page html", nil)
	}
	if err != nil {
		return nil, func() {}, err
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		page.Title = t
	}
	return page, release, nil
}

// BrowserUp reports whether a browser source is configured.
func (s *Sources) BrowserUp() bool { return s.Browser != nil }
