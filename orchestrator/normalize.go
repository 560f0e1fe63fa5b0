package orchestrator

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Selection records are labeled with these instead of a platform adapter.
const (
	SelectionPlatform = "web selection"
	SelectionSource   = "selection"
	selectionPrefix   = "Excerpt from: "
)

// normalize brings an adapter's record into canonical shape in place and
// validates the body length.
func (o *Orchestrator) normalize(rec *models.ContentRecord, page *dom.Page, idea string) error {
	rec.Title = strings.TrimSpace(rec.Title)
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(page.Title)
	}
	if rec.Title == "" {
		return extractionFailed("page title not found", nil)
	}
	if rec.URL == "" && page.URL != nil {
		rec.URL = page.URL.String()
	}
	rec.Content = cleaner.NormalizeBody(rec.Content)
	if n := utf8.RuneCountInString(rec.Content); n < o.cfg.MinContentLength {
		return models.NewCaptureError(models.ErrCodeEmptyExtraction,
			fmt.Sprintf("extracted %d characters, need at least %d; the page does not look like an article", n, o.cfg.MinContentLength), nil)
	}
	o.stamp(rec, idea)
	return nil
}

// selectionRecord builds the record for operator-selected text.
func (o *Orchestrator) selectionRecord(sel models.SelectionRequest) (*models.ContentRecord, error) {
	content := cleaner.NormalizeBody(sel.Text)
	if content == "" {
		return nil, models.NewCaptureError(models.ErrCodeEmptyExtraction, "selection is empty", nil)
	}
	title := strings.TrimSpace(sel.Title)
	if title == "" {
		title = sel.URL
	}
	rec := &models.ContentRecord{
		Title:   selectionPrefix + title,
		URL:     sel.URL,
		Content: content,
		Metadata: models.Metadata{
			Platform: SelectionPlatform,
			Source:   SelectionSource,
			Extra: map[string]any{
				"selectionLength": utf8.RuneCountInString(content),
			},
		},
	}
	o.stamp(rec, sel.Idea)
	return rec, nil
}

// stamp fills the operator idea, the extraction time and the metadata
// defaults.
func (o *Orchestrator) stamp(rec *models.ContentRecord, idea string) {
	idea = strings.TrimSpace(idea)
	rec.Idea = idea
	m := &rec.Metadata
	m.UserIdea = idea
	m.ExtractionTime = o.deps.Clock.Now().UTC().Format(time.RFC3339)
	if strings.TrimSpace(m.Author) == "" {
		m.Author = models.UnknownAuthor
	}
	if m.Platform == "" {
		m.Platform = models.DefaultPlatform
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.Images == nil {
		m.Images = []models.Image{}
	}
}
