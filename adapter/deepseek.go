package adapter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

const deepSeekAuthor = "DeepSeek AI"

var deepSeekTags = []string{"AI", "chat", "DeepSeek"}

// DeepSeek extracts a chat transcript. Answers are rendered to markdown so
// code blocks and lists keep their shape.
type DeepSeek struct {
	rules    Rules
	markdown *converter.Converter
}

var _ Adapter = (*DeepSeek)(nil)

func NewDeepSeek(rules Rules, opts Options) *DeepSeek {
	return &DeepSeek{rules: rules, markdown: opts.Markdown}
}

func (d *DeepSeek) Name() string { return NameDeepSeek }

func (d *DeepSeek) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	root := doc(page)
	r := d.rules

	title := r.TextOr(root, "title", page.Title)
	if title == "" {
		return nil, missing(NameDeepSeek, "title")
	}

	content := d.messages(page, root)
	if content == "" {
		content = d.container(root)
	}
	if content == "" {
		work := page.Body().Clone()
		r.All(work, "exclude").Remove()
		content = cleaner.CleanContent(work.Text())
	}
	if content == "" {
		return nil, missing(NameDeepSeek, "conversation")
	}

	rec := newRecord(page, platformDeepSeek)
	rec.Title = title
	rec.Content = content
	rec.Metadata.Author = deepSeekAuthor
	rec.Metadata.Tags = append([]string(nil), deepSeekTags...)
	rec.Metadata.Extra = map[string]any{"chatType": NameDeepSeek}
	return rec, nil
}

// messages joins every question and answer block in order.
func (d *DeepSeek) messages(page *dom.Page, root *goquery.Selection) string {
	var parts []string
	d.rules.All(root, "messages").Each(func(_ int, s *goquery.Selection) {
		if text := d.render(page, s); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func (d *DeepSeek) render(page *dom.Page, s *goquery.Selection) string {
	if d.markdown == nil {
		return blockText(s)
	}
	fragment, err := goquery.OuterHtml(s)
	if err == nil {
		var md string
		md, err = cleaner.ToMarkdown(d.markdown, fragment, domainOf(page))
		if err == nil {
			return cleaner.NormalizeBody(md)
		}
	}
	slog.Debug("deepseek: markdown rendering failed, using text", "error", err)
	return blockText(s)
}

// container is the fallback for transcripts without message blocks.
func (d *DeepSeek) container(root *goquery.Selection) string {
	box := d.rules.Node(root, "container")
	if box.Length() == 0 {
		return ""
	}
	work := box.Clone()
	d.rules.All(work, "exclude").Remove()

	var parts []string
	d.rules.All(work, "paragraphs").Each(func(_ int, s *goquery.Selection) {
		if text := cleaner.CleanContent(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func domainOf(page *dom.Page) string {
	if page.URL == nil {
		return ""
	}
	return page.URL.Scheme + "://" + page.URL.Host
}
