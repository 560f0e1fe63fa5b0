package adapter

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

const (
	weiboFallbackTitle = "Weibo post"
	weiboVideoText     = "Weibo video"
)

// Weibo extracts a single post, including the post it reposts.
type Weibo struct {
	rules Rules
}

var _ Adapter = (*Weibo)(nil)

func NewWeibo(rules Rules) *Weibo { return &Weibo{rules: rules} }

func (w *Weibo) Name() string { return NameWeibo }

func (w *Weibo) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	root := doc(page)
	r := w.rules

	body := r.Node(root, "content")
	raw := strings.TrimSpace(body.Text())
	content := cleaner.CleanContent(cleaner.InlineLinks(page, body, nil))

	rec := newRecord(page, platformWeibo)
	meta := &rec.Metadata

	if rt := r.Node(root, "retweet"); rt.Length() > 0 {
		retweet := w.retweet(page, rt)
		meta.Retweet = retweet
		if raw == "" && retweet.Content != "" {
			raw = "Retweet @" + retweet.Author + ": " + retweet.Content
			content = raw
		}
	}
	if content == "" {
		return nil, missing(NameWeibo, "post content")
	}

	rec.Title = firstLine(raw)
	if rec.Title == "" {
		rec.Title = weiboFallbackTitle
	}
	rec.Content = content

	meta.Author = r.TextOr(root, "author", models.UnknownAuthor)
	meta.PublishTime = r.Text(root, "publish_time")
	meta.Tags = r.Texts(root, "tags")
	meta.Images = cleaner.CollectImages(page, r.All(root, "images"))
	meta.Likes = counter(r, root, "likes")
	meta.Shares = counter(r, root, "shares")
	meta.Comments = counter(r, root, "comments")
	meta.ExternalLinks = w.links(page, root, body)
	return rec, nil
}

func (w *Weibo) retweet(page *dom.Page, rt *goquery.Selection) *models.Retweet {
	r := w.rules
	body := r.Node(rt, "retweet_content")
	when := r.Node(rt, "retweet_time")

	out := &models.Retweet{
		Author:      r.TextOr(rt, "retweet_author", models.UnknownAuthor),
		Content:     cleaner.CleanContent(cleaner.InlineLinks(page, body, notUserLink)),
		PublishTime: cleaner.CleanContent(when.Text()),
		Images:      cleaner.CollectImages(page, r.All(rt, "retweet_images")),
		Likes:       r.TextOr(rt, "retweet_likes", models.ZeroCount),
		Comments:    r.TextOr(rt, "retweet_comments", models.ZeroCount),
		Shares:      r.TextOr(rt, "retweet_shares", models.ZeroCount),
	}
	if href, ok := when.Attr("href"); ok {
		out.URL = page.Resolve(href)
	}
	return out
}

// links lists the body's outbound links followed by any video links on the
// page.
func (w *Weibo) links(page *dom.Page, root, body *goquery.Selection) []models.Link {
	links := cleaner.ExternalLinks(page, body, notTopicLink)

	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		seen[l.URL] = struct{}{}
	}
	w.rules.All(root, "videos").Each(func(_ int, s *goquery.Selection) {
		abs := page.Resolve(s.AttrOr("href", ""))
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			text = weiboVideoText
		}
		links = append(links, models.Link{Text: text, URL: abs, Type: "video"})
	})
	return links
}

// notUserLink drops @mention links.
func notUserLink(u *url.URL, _ string) bool {
	return !strings.Contains(u.Path, "/u/") && !strings.Contains(u.Path, "/n/")
}

// notTopicLink drops hashtag and @mention links.
func notTopicLink(u *url.URL, _ string) bool {
	return !strings.Contains(u.Path, "/topic/") && !strings.Contains(u.Path, "/n/")
}
