package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Attributes the stamp script writes onto a rendered page. They survive
// serialization and deep copies, so layout facts travel with the nodes.
const (
	AttrHidden        = "data-pc-hidden"
	AttrTop           = "data-pc-top"
	AttrFontSize      = "data-pc-fs"
	AttrViewport      = "data-pc-vh"
	AttrNaturalWidth  = "data-pc-w"
	AttrNaturalHeight = "data-pc-h"
)

// DefaultFontSize is assumed when no element up the tree carries a stamp.
const DefaultFontSize = 16.0

// Hidden reports whether n, or any element above it, is not rendered.
// Stamped pages carry the computed answer; unstamped ones fall back to
// inline style and the hidden attribute.
func Hidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if v, ok := attr(cur, AttrHidden); ok {
			if v == "1" || v == "true" {
				return true
			}
			continue
		}
		if _, ok := attr(cur, "hidden"); ok {
			return true
		}
		if style, ok := attr(cur, "style"); ok && hiddenStyle(style) {
			return true
		}
	}
	return false
}

// Top returns the stamped bounding-box top of the nearest element at or
// above n. ok is false on unstamped pages.
func Top(n *html.Node) (float64, bool) {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if v, ok := floatAttr([]*html.Node{cur}, AttrTop); ok {
			return v, true
		}
	}
	return 0, false
}

// FontSize returns the stamped computed font size for n in CSS pixels.
func FontSize(n *html.Node) float64 {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if v, ok := floatAttr([]*html.Node{cur}, AttrFontSize); ok && v > 0 {
			return v
		}
	}
	return DefaultFontSize
}

// NaturalSize returns an image's stamped natural size, falling back to its
// width and height attributes.
func NaturalSize(n *html.Node) (width, height int) {
	width = intAttr(n, AttrNaturalWidth, "width")
	height = intAttr(n, AttrNaturalHeight, "height")
	return width, height
}

func hiddenStyle(style string) bool {
	s := strings.ToLower(strings.Join(strings.Fields(style), ""))
	for _, decl := range strings.Split(s, ";") {
		decl = strings.TrimSuffix(decl, "!important")
		if decl == "display:none" || decl == "visibility:hidden" {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func floatAttr(nodes []*html.Node, key string) (float64, bool) {
	if len(nodes) == 0 {
		return 0, false
	}
	v, ok := attr(nodes[0], key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func intAttr(n *html.Node, keys ...string) int {
	for _, k := range keys {
		v, ok := attr(n, k)
		if !ok {
			continue
		}
		v = strings.TrimSuffix(strings.TrimSpace(v), "px")
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return 0
}
