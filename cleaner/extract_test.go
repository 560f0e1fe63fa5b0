package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageclip/dom"
)

var paragraphs = []string{
	"The first paragraph explains what the article is about in some detail.",
	"The second paragraph adds background that a reader would find useful here.",
	"The third paragraph walks through the main argument one careful step at a time.",
	"The fourth paragraph offers a counterpoint and weighs it against the evidence.",
	"The fifth paragraph concludes the piece and suggests where to read further.",
}

func articlePage(t *testing.T, extra string) *dom.Page {
	t.Helper()
	var b strings.Builder
	b.WriteString("<html><head><title>T</title></head><body><h1>Title</h1><article>")
	for _, p := range paragraphs {
		b.WriteString("<p>" + p + "</p>")
	}
	b.WriteString(extra)
	b.WriteString("</article></body></html>")

	page, err := dom.Parse("https://example.com/post", b.String(), 0)
	require.NoError(t, err)
	return page
}

func TestExtractMainContentGenericPage(t *testing.T) {
	t.Parallel()

	page := articlePage(t, "")
	got := ExtractMainContent(page, page.Find("article"))

	require.NotEmpty(t, got)
	for _, p := range paragraphs {
		assert.Contains(t, got, p)
	}
	assert.NotContains(t, got, "Title")
	assert.Greater(t, len(got), 100)
	assert.Len(t, strings.Split(got, "\n\n"), len(paragraphs))
}

func TestExtractMainContentDropsAdvertisement(t *testing.T) {
	t.Parallel()

	ad := strings.Repeat("Buy our amazing product now! ", 7)
	page := articlePage(t, `<div class="advertisement">`+ad+`</div>`)
	got := ExtractMainContent(page, page.Find("article"))

	require.NotEmpty(t, got)
	assert.NotContains(t, got, "Buy our amazing product")
	for _, p := range paragraphs {
		assert.Contains(t, got, p)
	}
}

func TestExtractMainContentShortPage(t *testing.T) {
	t.Parallel()

	page, err := dom.Parse("https://example.com", `<body><p>Too short to be an article.</p><p>Still short.</p></body>`, 0)
	require.NoError(t, err)

	assert.Equal(t, "", ExtractMainContent(page, page.Body()))
}

func TestExtractMainContentEmptyRoot(t *testing.T) {
	t.Parallel()

	page := articlePage(t, "")
	assert.Equal(t, "", ExtractMainContent(page, page.Find("section")))
	assert.Equal(t, "", ExtractMainContent(page, nil))
}

func TestExtractMainContentIsDeterministicAndNonMutating(t *testing.T) {
	t.Parallel()

	page := articlePage(t, `<nav>Home About Contact and many more navigation links here</nav><!-- note -->`)
	before, err := page.Doc.Html()
	require.NoError(t, err)

	first := ExtractMainContent(page, page.Body())
	second := ExtractMainContent(page, page.Body())
	after, err := page.Doc.Html()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, after, "the live document must not change")
	assert.NotContains(t, first, "navigation links")
}

func TestExtractMainContentSkipsHiddenText(t *testing.T) {
	t.Parallel()

	hidden := `<div style="display:none"><p>` + strings.Repeat("Secret hidden paragraph text. ", 4) + `</p></div>` +
		`<p data-pc-hidden="1">` + strings.Repeat("Stamped hidden text here. ", 4) + `</p>`
	page := articlePage(t, hidden)
	got := ExtractMainContent(page, page.Find("article"))

	assert.NotContains(t, got, "Secret hidden")
	assert.NotContains(t, got, "Stamped hidden")
}

func TestExtractMainContentFilters(t *testing.T) {
	t.Parallel()

	extra := `<p>12:30</p>` +
		`<p><a href="/x">A short link text that is under one hundred characters.</a></p>` +
		`<ul><li>tiny item</li></ul>` +
		`<p>` + paragraphs[0] + `</p>`
	page := articlePage(t, extra)
	got := ExtractMainContent(page, page.Find("article"))

	assert.NotContains(t, got, "12:30")
	assert.NotContains(t, got, "A short link text")
	assert.NotContains(t, got, "tiny item")
	assert.Equal(t, 1, strings.Count(got, paragraphs[0]), "duplicates collapse")
}

func TestExtractMainContentRanksByWeight(t *testing.T) {
	t.Parallel()

	page, err := dom.Parse("https://example.com", `<body>
		<p>Plain paragraph text that is long enough to pass the filters easily.</p>
		<p class="post-content">Content paragraph text that carries positive class keywords.</p>
	</body>`, 0)
	require.NoError(t, err)

	got := ExtractMainContent(page, page.Body())
	parts := strings.Split(got, "\n\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "Content paragraph"))
}
