package cleaner

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pageclip/dom"
	"golang.org/x/net/html"
)

// minArticleLength is the rune count the surviving text must reach before
// the page is treated as an article at all.
const minArticleLength = 100

// Filter thresholds applied after sorting.
const (
	shortTextLength  = 10
	shortTextWeight  = 2.0
	anchorTextLength = 100
	listItemLength   = 20
)

// boilerplateSelectors are subtrees stripped before any text is scored.
var boilerplateSelectors = []string{
	"script", "style", "iframe", "nav", "header", "footer",
	".advertisement", ".comment", ".sidebar", ".menu", ".nav",
	`[role="complementary"]`, `[role="navigation"]`,
	"form", "button", "input",
	".social-share", ".related-articles", ".recommended",
	"#comments", ".cookie-notice", ".popup", ".modal", ".overlay",
}

var boilerplate = cascadia.MustCompile(strings.Join(boilerplateSelectors, ", "))

// bareTimestamp matches text that is only a clock time or a short date.
var bareTimestamp = regexp.MustCompile(`^\d{1,2}[:/]\d{1,2}([:/]\d{1,2})?$`)

// scoredNode lives only for one ExtractMainContent call.
type scoredNode struct {
	text     string
	source   *html.Node
	fontSize float64
	weight   float64
}

// ExtractMainContent infers the article text under root. It works on a deep
// copy, so the page is never modified, and returns "" when the surviving
// text is too short to be an article. Callers treat "" as a soft failure.
func ExtractMainContent(page *dom.Page, root *goquery.Selection) string {
	if root == nil || root.Length() == 0 {
		return ""
	}

	// ── 1. Work on a detached copy ──────────────────────────────────
	work := root.First().Clone()

	// ── 2. Strip boilerplate subtrees ───────────────────────────────
	work.FindMatcher(boilerplate).Remove()

	// ── 3. Drop comments and whitespace-only text ───────────────────
	for _, n := range work.Nodes {
		pruneEmpty(n)
	}

	// ── 4-5. Score visible text nodes ───────────────────────────────
	var nodes []scoredNode
	for _, n := range work.Nodes {
		nodes = collectText(page, n, nodes)
	}

	// ── 6. Rank, document order breaks ties ─────────────────────────
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].weight > nodes[j].weight
	})

	// ── 7-8. Filter, clean, dedupe ──────────────────────────────────
	seen := make(map[string]struct{}, len(nodes))
	parts := make([]string, 0, len(nodes))
	for _, sn := range nodes {
		if rejected(sn) {
			continue
		}
		text := CleanContent(sn.text)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		parts = append(parts, text)
	}

	// ── 9. Article guard ────────────────────────────────────────────
	if utf8.RuneCountInString(strings.Join(parts, "\n")) < minArticleLength {
		return ""
	}
	return strings.Join(parts, "\n\n")
}

func pruneEmpty(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode:
			n.RemoveChild(c)
		case html.TextNode:
			if strings.TrimSpace(c.Data) == "" {
				n.RemoveChild(c)
			}
		case html.ElementNode:
			pruneEmpty(c)
		}
		c = next
	}
}

func collectText(page *dom.Page, n *html.Node, out []scoredNode) []scoredNode {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if dom.Hidden(n) {
				continue
			}
			text := strings.TrimSpace(c.Data)
			if text == "" {
				continue
			}
			out = append(out, scoredNode{
				text:     text,
				source:   n,
				fontSize: dom.FontSize(n),
				weight:   TextWeight(page, text, n),
			})
		case html.ElementNode:
			out = collectText(page, c, out)
		}
	}
	return out
}

func rejected(sn scoredNode) bool {
	n := utf8.RuneCountInString(sn.text)
	if n < shortTextLength && sn.weight < shortTextWeight {
		return true
	}
	if sn.source != nil {
		switch sn.source.Data {
		case "a":
			if n < anchorTextLength {
				return true
			}
		case "li":
			if n < listItemLength {
				return true
			}
		}
	}
	return bareTimestamp.MatchString(sn.text)
}
