package cleaner

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/pageclip/dom"
	"golang.org/x/net/html"
)

// Signal constants for the text-node weight. They are empirically tuned;
// changing any of them changes which text ends up in the body.
const (
	lengthDivisor      = 100.0
	lengthCap          = 10.0
	headingBase        = 7
	headingScale       = 2.0
	aboveFoldBonus     = 3.0
	sentenceDivisor    = 5.0
	sentenceCap        = 5.0
	keywordBonus       = 5.0
	keywordPenalty     = 5.0
	lexicalScale       = 5.0
	mediaBonus         = 3.0
	sentenceDelimiters = "。！？.!?"
)

// headingTags in rank order; a heading's index feeds (headingBase - index) * headingScale.
var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// positiveClassIDPatterns are substrings in class/id attributes that indicate
// main content areas.
var positiveClassIDPatterns = []string{
	"content", "article", "post", "text", "main", "body",
}

// negativeClassIDPatterns are substrings in class/id attributes that indicate
// non-content areas. "ad" is a plain substring and also hits words like
// "header" and "loading".
var negativeClassIDPatterns = []string{
	"comment", "sidebar", "footer", "header", "nav", "menu", "ad", "copyright",
}

// TextWeight scores one text node's text in the context of its parent
// element. The result is never negative.
func TextWeight(page *dom.Page, text string, el *html.Node) float64 {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)

	w := math.Min(float64(n)/lengthDivisor, lengthCap)
	w += headingWeight(el)
	w += aboveFoldWeight(page, el)
	w += math.Min(float64(sentenceCount(text))/sentenceDivisor, sentenceCap)
	w += classIDWeight(el)
	if n > 0 {
		w += float64(len(strings.Fields(text))) / float64(n) * lexicalScale
	}
	if containsImage(el) {
		w += mediaBonus
	}
	return math.Max(w, 0)
}

// headingWeight is (7 - index) * 2 for h1..h6 (index 0 for h1), 0 otherwise.
func headingWeight(el *html.Node) float64 {
	if el == nil || el.Type != html.ElementNode {
		return 0
	}
	for i, tag := range headingTags {
		if el.Data == tag {
			return float64(headingBase-i) * headingScale
		}
	}
	return 0
}

func aboveFoldWeight(page *dom.Page, el *html.Node) float64 {
	if page == nil || el == nil || page.ViewportHeight <= 0 {
		return 0
	}
	top, ok := dom.Top(el)
	if ok && top > 0 && top < page.ViewportHeight {
		return aboveFoldBonus
	}
	return 0
}

// sentenceCount is the number of pieces text splits into on the sentence
// delimiters, empty pieces included.
func sentenceCount(text string) int {
	count := 1
	for _, r := range text {
		if strings.ContainsRune(sentenceDelimiters, r) {
			count++
		}
	}
	return count
}

// classIDWeight scans the element's class and id attributes: +5 for every
// positive pattern present, -5 for every negative one.
func classIDWeight(el *html.Node) float64 {
	if el == nil {
		return 0
	}
	class := strings.ToLower(attrOf(el, "class"))
	id := strings.ToLower(attrOf(el, "id"))

	score := 0.0
	for _, pat := range positiveClassIDPatterns {
		if strings.Contains(class, pat) || strings.Contains(id, pat) {
			score += keywordBonus
		}
	}
	for _, pat := range negativeClassIDPatterns {
		if strings.Contains(class, pat) || strings.Contains(id, pat) {
			score -= keywordPenalty
		}
	}
	return score
}

func containsImage(el *html.Node) bool {
	if el == nil {
		return false
	}
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "img" || containsImage(c)) {
			return true
		}
	}
	return false
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
