package adapter

import (
	"context"
	"strings"

	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

const xiaohongshuTitleSuffix = " - 小红书 - 你的生活指南"

// Xiaohongshu reads a note's text. Notes without a recognizable text block
// fall back to the Scorer.
type Xiaohongshu struct {
	rules Rules
}

var _ Adapter = (*Xiaohongshu)(nil)

func NewXiaohongshu(rules Rules) *Xiaohongshu { return &Xiaohongshu{rules: rules} }

func (x *Xiaohongshu) Name() string { return NameXiaohongshu }

func (x *Xiaohongshu) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	r := x.rules
	root := doc(page)

	content := blockText(r.First(root, "content"))
	if content == "" {
		content = cleaner.ExtractMainContent(page, page.Body())
	}

	title := r.Text(root, "title")
	if title == "" {
		title = strings.TrimSpace(strings.TrimSuffix(page.Title, xiaohongshuTitleSuffix))
	}
	if title == "" {
		title = firstLine(content)
	}
	if title == "" {
		return nil, missing(NameXiaohongshu, "title")
	}

	rec := newRecord(page, platformXiaohongshu)
	rec.Title = title
	rec.Content = content
	rec.Metadata.Source = "xiaohongshu.com"
	return rec, nil
}

// XiaohongshuSocial reads a note's author, counters, tags and images.
type XiaohongshuSocial struct {
	rules Rules
}

var _ SocialExtractor = (*XiaohongshuSocial)(nil)

func NewXiaohongshuSocial(rules Rules) *XiaohongshuSocial {
	return &XiaohongshuSocial{rules: rules}
}

func (x *XiaohongshuSocial) ExtractSocial(_ context.Context, page *dom.Page) models.Metadata {
	r := x.rules
	root := doc(page)

	meta := models.Metadata{
		Platform:    platformXiaohongshu,
		Author:      models.UnknownAuthor,
		PublishTime: r.Text(root, "publish_time"),
		Likes:       counter(r, root, "likes"),
		Collects:    counter(r, root, "collects"),
		Comments:    counter(r, root, "comments"),
		Images:      cleaner.CollectImages(page, r.Earliest(root, "images")),
		Source:      "xiaohongshu.com",
	}

	if el := r.First(root, "author"); el.Length() > 0 {
		meta.Author = cleaner.CleanContent(el.Text())
		if link := r.Closest(el, "author_link"); link.Length() > 0 {
			meta.AuthorURL = page.Resolve(link.AttrOr("href", ""))
		}
	}

	var tags []string
	for _, tag := range r.Texts(root, "tags") {
		tags = append(tags, strings.TrimPrefix(tag, "#"))
	}
	meta.Tags = dedupe(tags)
	return meta
}
