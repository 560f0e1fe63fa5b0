package adapter

import (
	"context"
	"strings"

	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Bilibili extracts video pages into a labeled digest of the video facts.
type Bilibili struct {
	rules Rules
}

var _ Adapter = (*Bilibili)(nil)

func NewBilibili(rules Rules) *Bilibili { return &Bilibili{rules: rules} }

func (b *Bilibili) Name() string { return NameBilibili }

func (b *Bilibili) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	r := b.rules
	root := doc(page)

	title := r.Text(root, "title")
	if title == "" {
		return nil, missing(NameBilibili, "video title")
	}
	desc := r.Text(root, "description")
	author := r.Text(root, "author")
	published := r.Text(root, "publish_time")
	views := r.Text(root, "views")
	likes := r.Text(root, "likes")

	var c strings.Builder
	c.WriteString("Title: " + title + "\n\n")
	if desc != "" {
		c.WriteString("Description: " + desc + "\n\n")
	}
	c.WriteString("Author: " + author + "\n")
	if published != "" {
		c.WriteString("Published: " + published + "\n")
	}
	if views != "" {
		c.WriteString("Views: " + views + "\n")
	}
	if likes != "" {
		c.WriteString("Likes: " + likes + "\n")
	}

	rec := newRecord(page, platformBilibili)
	rec.Title = title
	rec.Content = strings.TrimSpace(c.String())

	meta := &rec.Metadata
	meta.Author = author
	if meta.Author == "" {
		meta.Author = models.UnknownAuthor
	}
	meta.PublishTime = published
	meta.Description = desc
	meta.Tags = r.Texts(root, "tags")
	if likes != "" {
		meta.Likes = models.Count(likes)
	}
	meta.Extra = map[string]any{}
	if views != "" {
		meta.Extra["views"] = views
	}
	if cover := page.Meta("property", "og:image"); cover != "" {
		meta.Extra["cover"] = page.Resolve(cover)
		meta.Images = append(meta.Images, models.Image{URL: page.Resolve(cover), Alt: title})
	}
	return rec, nil
}

// Kuaishou extracts short-video pages, whose only text is the caption.
type Kuaishou struct {
	rules Rules
}

var _ Adapter = (*Kuaishou)(nil)

func NewKuaishou(rules Rules) *Kuaishou { return &Kuaishou{rules: rules} }

func (k *Kuaishou) Name() string { return NameKuaishou }

func (k *Kuaishou) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	r := k.rules
	root := doc(page)

	caption := r.Text(root, "title")
	if caption == "" {
		return nil, missing(NameKuaishou, "video caption")
	}

	rec := newRecord(page, platformKuaishou)
	rec.Title = caption
	rec.Content = caption

	meta := &rec.Metadata
	meta.Author = r.TextOr(root, "author", models.UnknownAuthor)
	meta.PublishTime = r.Text(root, "publish_time")
	meta.Likes = optionalCounter(r, root, "likes")
	meta.Comments = optionalCounter(r, root, "comments")
	meta.Shares = optionalCounter(r, root, "shares")
	for _, tag := range r.Texts(root, "tags") {
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		meta.Tags = append(meta.Tags, tag)
	}
	return rec, nil
}

const douyinTimeLabel = "发布时间："

// Douyin reads the video caption as the body; counters come from
// DouyinSocial.
type Douyin struct {
	rules Rules
}

var _ Adapter = (*Douyin)(nil)

func NewDouyin(rules Rules) *Douyin { return &Douyin{rules: rules} }

func (d *Douyin) Name() string { return NameDouyin }

func (d *Douyin) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	caption := d.rules.Text(doc(page), "title")
	title := page.Title
	if title == "" {
		title = caption
	}
	if title == "" {
		return nil, missing(NameDouyin, "title")
	}

	rec := newRecord(page, platformDouyin)
	rec.Title = title
	rec.Content = caption
	rec.Metadata.Source = "douyin.com"
	return rec, nil
}

// DouyinSocial reads the engagement bar of a video page.
type DouyinSocial struct {
	rules Rules
}

var _ SocialExtractor = (*DouyinSocial)(nil)

func NewDouyinSocial(rules Rules) *DouyinSocial { return &DouyinSocial{rules: rules} }

func (d *DouyinSocial) ExtractSocial(_ context.Context, page *dom.Page) models.Metadata {
	r := d.rules
	root := doc(page)
	return models.Metadata{
		Platform:    platformDouyin,
		Author:      r.Text(root, "author"),
		PublishTime: strings.TrimSpace(strings.TrimPrefix(r.Text(root, "publish_time"), douyinTimeLabel)),
		Tags:        r.Texts(root, "tags"),
		Likes:       counter(r, root, "likes"),
		Comments:    counter(r, root, "comments"),
		Collects:    counter(r, root, "collects"),
		Shares:      counter(r, root, "shares"),
	}
}
