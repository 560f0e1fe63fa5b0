// Package adapter maps a page's hostname to the extraction strategy that
// understands its layout. Every strategy produces a models.ContentRecord;
// pages on unknown hosts go through the Scorer-backed generic adapter.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Adapter names, also used as keys into the selector table.
const (
	NameGeneric     = "generic"
	NameWeChat      = "wechat"
	NameJike        = "jike"
	NameDeepSeek    = "deepseek"
	NameWeibo       = "weibo"
	NameZsxq        = "zsxq"
	NameZhihu       = "zhihu"
	NameJuejin      = "juejin"
	NameCSDN        = "csdn"
	NameBilibili    = "bilibili"
	NameKuaishou    = "kuaishou"
	NameXiaohongshu = "xiaohongshu"
	NameDouyin      = "douyin"
)

// Adapter extracts a record from one family of page layouts. Missing
// optional elements degrade to defaults; only a missing title or body is an
// ExtractionFailed error.
type Adapter interface {
	Name() string
	Extract(ctx context.Context, page *dom.Page) (*models.ContentRecord, error)
}

// SocialExtractor reads engagement metadata (counters, author, tags, images)
// independently of the body text.
type SocialExtractor interface {
	ExtractSocial(ctx context.Context, page *dom.Page) models.Metadata
}

// Options are shared by the adapters built from a selector table.
type Options struct {
	// Settle is the late-content wait for adapters that need one.
	Settle time.Duration

	// Markdown renders rich chat answers. Nil disables markdown rendering.
	Markdown *converter.Converter
}

// WithSocial merges social's metadata into every record body produces.
func WithSocial(body Adapter, social SocialExtractor) Adapter {
	return &socialAdapter{body: body, social: social}
}

type socialAdapter struct {
	body   Adapter
	social SocialExtractor
}

var _ Adapter = (*socialAdapter)(nil)

func (a *socialAdapter) Name() string { return a.body.Name() }

func (a *socialAdapter) Extract(ctx context.Context, page *dom.Page) (*models.ContentRecord, error) {
	rec, err := a.body.Extract(ctx, page)
	if err != nil {
		return nil, err
	}
	rec.Metadata.Merge(a.social.ExtractSocial(ctx, page))
	return rec, nil
}

// ── shared helpers ──────────────────────────────────────────────────

func missing(adapter, what string) error {
	return models.NewCaptureError(models.ErrCodeExtractionFailed,
		fmt.Sprintf("%s: %s not found", adapter, what), nil)
}

func newRecord(page *dom.Page, platform string) *models.ContentRecord {
	rec := &models.ContentRecord{
		Metadata: models.Metadata{
			Platform: platform,
			Tags:     []string{},
			Images:   []models.Image{},
		},
	}
	if page.URL != nil {
		rec.URL = page.URL.String()
	}
	return rec
}

func doc(page *dom.Page) *goquery.Selection {
	return page.Doc.Selection
}

// counter reads an engagement counter, "0" when the element is missing.
func counter(r Rules, scope *goquery.Selection, name string) *string {
	return models.Count(r.TextOr(scope, name, models.ZeroCount))
}

// optionalCounter is nil when the element is missing.
func optionalCounter(r Rules, scope *goquery.Selection, name string) *string {
	if v := r.Text(scope, name); v != "" {
		return models.Count(v)
	}
	return nil
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return cleaner.CleanContent(text)
}

// blockText is the text of sel with a line break after every block-level
// element, so paragraphs survive the later normalization.
func blockText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	work := sel.First().Clone()
	work.Find("p, div, section, li, h1, h2, h3, h4, h5, h6, blockquote, pre, br").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "br" {
			s.ReplaceWithHtml("\n")
			return
		}
		s.AppendHtml("\n\n")
	})
	return cleaner.NormalizeBody(work.Text())
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
