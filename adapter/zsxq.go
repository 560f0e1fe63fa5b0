package adapter

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

const (
	zsxqFallbackTitle = "Zsxq topic"
	zsxqUnknownGroup  = "unknown group"
	zsxqGroupPrefix   = "来自："
)

var digits = regexp.MustCompile(`\d+`)

// ZsxqComment is one reply under a topic, stored in metadata.extra.
type ZsxqComment struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Time   string `json:"time,omitempty"`
}

// Zsxq extracts a topic from its detail panel. Every lookup is scoped to the
// panel so the group feed behind it never leaks in.
type Zsxq struct {
	rules  Rules
	settle time.Duration
}

var _ Adapter = (*Zsxq)(nil)

func NewZsxq(rules Rules, opts Options) *Zsxq {
	return &Zsxq{rules: rules, settle: opts.Settle}
}

func (z *Zsxq) Name() string { return NameZsxq }

// HasPanel reports whether the page shows a topic detail panel. Feed pages
// without one are rejected before any waiting.
func (z *Zsxq) HasPanel(page *dom.Page) bool {
	return z.rules.Node(doc(page), "panel").Length() > 0
}

func (z *Zsxq) Extract(ctx context.Context, page *dom.Page) (*models.ContentRecord, error) {
	if err := page.Settle(ctx, z.settle); err != nil {
		slog.Warn("zsxq: settle failed, reading current snapshot",
			"hostname", page.Hostname(), "error", err,
		)
	}

	r := z.rules
	panel := r.Node(doc(page), "panel")
	if panel.Length() == 0 {
		return nil, missing(NameZsxq, "topic detail panel")
	}

	body := r.Node(panel, "content")
	raw := strings.TrimSpace(body.Text())
	if raw == "" {
		return nil, missing(NameZsxq, "topic content")
	}

	rec := newRecord(page, platformZsxq)
	rec.Title = r.Text(body, "title")
	if rec.Title == "" {
		rec.Title = firstLine(raw)
	}
	if rec.Title == "" {
		rec.Title = zsxqFallbackTitle
	}
	rec.Content = cleaner.CleanContent(cleaner.InlineLinks(page, body, nil))

	group := strings.TrimSpace(strings.ReplaceAll(r.Text(panel, "group"), zsxqGroupPrefix, ""))
	if group == "" {
		group = zsxqUnknownGroup
	}

	meta := &rec.Metadata
	meta.Author = r.TextOr(panel, "author", models.UnknownAuthor)
	meta.PublishTime = r.Text(panel, "publish_time")
	meta.Tags = r.Texts(panel, "tags")
	meta.Source = "zsxq.com"
	meta.Images = cleaner.CollectImages(page, r.All(panel, "images"))
	meta.ExternalLinks = cleaner.ExternalLinks(page, body, nil)

	likes := models.ZeroCount
	if m := digits.FindString(r.Text(panel, "likes")); m != "" {
		likes = m
	}
	meta.Likes = models.Count(likes)

	comments := z.comments(panel)
	meta.Comments = models.Count(strconv.Itoa(len(comments)))
	meta.Extra = map[string]any{
		"group":    group,
		"comments": comments,
	}
	return rec, nil
}

func (z *Zsxq) comments(panel *goquery.Selection) []ZsxqComment {
	out := []ZsxqComment{}
	z.rules.All(panel, "comment_items").Each(func(_ int, item *goquery.Selection) {
		c := ZsxqComment{
			Author: z.rules.Text(item, "comment_author"),
			Text:   z.rules.Text(item, "comment_text"),
			Time:   z.rules.Text(item, "comment_time"),
		}
		if c.Author != "" && c.Text != "" {
			out = append(out, c)
		}
	})
	return out
}
