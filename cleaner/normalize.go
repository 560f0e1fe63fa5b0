package cleaner

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// invisible removes zero-width and other format runes (U+200B..U+200D,
// U+FEFF, soft hyphens, bidi marks) and control characters that are not
// whitespace. The predicate transformer keeps no state, so one value is
// safe to share.
var invisible = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.Is(unicode.Cf, r) || (unicode.IsControl(r) && !unicode.IsSpace(r))
}))

// CleanContent flattens text to a single line: invisible runes removed,
// every whitespace run collapsed to one space, ends trimmed.
func CleanContent(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(stripInvisible(text)), " ")
}

// NormalizeBody cleans a multi-paragraph body. Each line is cleaned like
// CleanContent, runs of blank lines shrink to one, and leading and trailing
// blank lines are dropped, so paragraph breaks survive.
func NormalizeBody(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(stripInvisible(text), "\r\n", "\n")

	var b strings.Builder
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blank {
				b.WriteByte('\n')
			}
		}
		blank = false
		b.WriteString(line)
	}
	return b.String()
}

func stripInvisible(text string) string {
	out, _, err := transform.String(invisible, text)
	if err != nil {
		return text
	}
	return out
}
