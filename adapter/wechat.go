package adapter

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

// Display names written to metadata.platform.
const (
	platformWeChat      = "WeChat Official Account"
	platformJike        = "Jike"
	platformDeepSeek    = "DeepSeek"
	platformWeibo       = "Weibo"
	platformZsxq        = "Zsxq"
	platformZhihu       = "Zhihu"
	platformJuejin      = "Juejin"
	platformCSDN        = "CSDN"
	platformBilibili    = "Bilibili"
	platformKuaishou    = "Kuaishou"
	platformXiaohongshu = "Xiaohongshu"
	platformDouyin      = "Douyin"
)

// minWeChatParagraph is the rune count a paragraph block must exceed.
const minWeChatParagraph = 5

// weChatChrome marks blocks that belong to the share and recommendation
// widgets rather than the article.
var weChatChrome = []string{
	"微信扫一扫", "长按识别二维码", "预览时标签不可点", "继续滑动看下一个",
	"分享", "复制链接", "喜欢此内容的人还喜欢", "相关推荐",
}

// WeChat extracts mp.weixin.qq.com articles.
type WeChat struct {
	rules Rules
}

var _ Adapter = (*WeChat)(nil)

func NewWeChat(rules Rules) *WeChat { return &WeChat{rules: rules} }

func (w *WeChat) Name() string { return NameWeChat }

func (w *WeChat) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	root := doc(page)
	r := w.rules

	title := r.Text(root, "title")
	if title == "" {
		return nil, missing(NameWeChat, "title")
	}
	area := r.Node(root, "content")
	if area.Length() == 0 {
		return nil, missing(NameWeChat, "content area")
	}

	var paragraphs []string
	blocks := r.All(area, "paragraphs")
	blocks.Each(func(_ int, s *goquery.Selection) {
		// Outer sections repeat the text of the blocks inside them.
		if s.FindSelection(blocks).Length() > 0 {
			return
		}
		text := weChatBlockText(s)
		if utf8.RuneCountInString(text) <= minWeChatParagraph || isWeChatChrome(text) {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	paragraphs = dedupe(paragraphs)
	if len(paragraphs) == 0 {
		return nil, missing(NameWeChat, "article paragraphs")
	}

	rec := newRecord(page, platformWeChat)
	rec.Title = title
	rec.Content = strings.Join(paragraphs, "\n\n")
	rec.Metadata.Author = r.TextOr(root, "author", models.UnknownAuthor)
	rec.Metadata.PublishTime = r.Text(root, "publish_time")
	rec.Metadata.Images = cleaner.CollectImages(page, area)
	return rec, nil
}

// weChatBlockText is the text of a block without embedded media.
func weChatBlockText(s *goquery.Selection) string {
	work := s.Clone()
	work.Find("img, video, iframe").Remove()
	return cleaner.CleanContent(work.Text())
}

func isWeChatChrome(text string) bool {
	for _, marker := range weChatChrome {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
