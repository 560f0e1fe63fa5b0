package adapter

import (
	"context"
	"strings"

	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Article extracts blog posts that share one layout shape: a root that
// proves the page finished loading, a title, a body, and a meta line.
// juejin.cn and blog.csdn.net both use it.
type Article struct {
	name     string
	platform string
	source   string
	rules    Rules
	noise    []string
	skipImg  string
}

var _ Adapter = (*Article)(nil)

// NewArticle returns the article adapter for name.
func NewArticle(name string, rules Rules) *Article {
	a := &Article{name: name, rules: rules}
	switch name {
	case NameJuejin:
		a.platform, a.source = platformJuejin, "juejin.cn"
	case NameCSDN:
		a.platform, a.source = platformCSDN, "csdn.net"
		a.noise = []string{"于", "发布", "阅读量", "点赞数"}
		a.skipImg = "mathcode"
	default:
		a.platform, a.source = name, name
	}
	return a
}

func (a *Article) Name() string { return a.name }

func (a *Article) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	r := a.rules
	root := doc(page)
	if r.Node(root, "root").Length() == 0 {
		return nil, missing(a.name, "article root (page not fully loaded)")
	}

	title := r.Text(root, "title")
	if title == "" {
		return nil, missing(a.name, "title")
	}
	content := blockText(r.First(root, "content"))
	if content == "" {
		return nil, missing(a.name, "content")
	}

	rec := newRecord(page, a.platform)
	rec.Title = title
	rec.Content = content

	meta := &rec.Metadata
	meta.Author = r.TextOr(root, "author", models.UnknownAuthor)
	meta.PublishTime = a.denoise(r.Text(root, "publish_time"))
	meta.Source = a.source
	meta.Tags = r.Texts(root, "tags")
	if v := a.denoise(r.Text(root, "likes")); v != "" {
		meta.Likes = models.Count(v)
	}

	for _, img := range cleaner.CollectImages(page, r.All(root, "images")) {
		if a.skipImg != "" && strings.Contains(img.URL, a.skipImg) {
			continue
		}
		meta.Images = append(meta.Images, img)
	}

	views := a.denoise(r.Text(root, "views"))
	if views == "" {
		views = models.ZeroCount
	}
	meta.Extra = map[string]any{"views": views}
	return rec, nil
}

// denoise strips the platform's label words from a meta value.
func (a *Article) denoise(v string) string {
	for _, n := range a.noise {
		v = strings.ReplaceAll(v, n, "")
	}
	return strings.TrimSpace(v)
}
