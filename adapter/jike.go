package adapter

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Jike extracts web.okjike.com posts. Posts render after the page shell, so
// the adapter settles before reading.
type Jike struct {
	rules  Rules
	settle time.Duration
}

var _ Adapter = (*Jike)(nil)

func NewJike(rules Rules, opts Options) *Jike {
	return &Jike{rules: rules, settle: opts.Settle}
}

func (j *Jike) Name() string { return NameJike }

func (j *Jike) Extract(ctx context.Context, page *dom.Page) (*models.ContentRecord, error) {
	if err := page.Settle(ctx, j.settle); err != nil {
		slog.Warn("jike: settle failed, reading current snapshot",
			"hostname", page.Hostname(), "error", err,
		)
	}

	root := doc(page)
	r := j.rules

	body := r.Node(root, "content")
	raw := strings.TrimSpace(body.Text())
	if raw == "" {
		return nil, missing(NameJike, "post content")
	}

	rec := newRecord(page, platformJike)
	rec.Title = firstLine(raw)
	rec.Content = cleaner.CleanContent(cleaner.InlineLinks(page, body, jikeExternal))

	meta := &rec.Metadata
	meta.Author = r.TextOr(root, "author", models.UnknownAuthor)
	meta.PublishTime = r.Text(root, "publish_time")
	meta.Tags = r.Texts(root, "tags")
	meta.Source = "web.okjike.com"
	meta.Images = cleaner.CollectImages(page, body)
	meta.ExternalLinks = cleaner.ExternalLinks(page, body, jikeExternal)
	meta.Likes = counter(r, root, "likes")
	meta.Comments = counter(r, root, "comments")
	meta.Shares = counter(r, root, "shares")
	return rec, nil
}

// jikeExternal keeps links that leave okjike.com.
func jikeExternal(u *url.URL, _ string) bool {
	return !strings.Contains(u.Host, "okjike.com")
}
