package adapter

import (
	"context"
	"strings"

	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Zhihu extracts questions with their shown answer, and column posts.
type Zhihu struct {
	rules Rules
}

var _ Adapter = (*Zhihu)(nil)

func NewZhihu(rules Rules) *Zhihu { return &Zhihu{rules: rules} }

func (z *Zhihu) Name() string { return NameZhihu }

func (z *Zhihu) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	r := z.rules
	root := doc(page)

	title := r.TextOr(root, "title", page.Title)
	if title == "" {
		return nil, missing(NameZhihu, "title")
	}

	var parts []string
	if q := blockText(r.Node(root, "question")); q != "" {
		parts = append(parts, q)
	}
	if answer := blockText(r.Node(root, "content")); answer != "" {
		parts = append(parts, answer)
	}
	if len(parts) == 0 {
		return nil, missing(NameZhihu, "question or answer body")
	}

	rec := newRecord(page, platformZhihu)
	rec.Title = title
	rec.Content = strings.Join(parts, "\n\n")

	meta := &rec.Metadata
	meta.Author = r.TextOr(root, "author", models.UnknownAuthor)
	meta.Images = cleaner.CollectImages(page, r.All(root, "images"))
	meta.Tags = r.Texts(root, "tags")
	meta.Likes = counter(r, root, "likes")
	meta.Comments = counter(r, root, "comments")
	return rec, nil
}
