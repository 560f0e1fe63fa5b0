package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableCompiles(t *testing.T) {
	t.Parallel()

	table, err := DefaultTable()
	require.NoError(t, err)
	assert.Equal(t, []string{
		NameBilibili, NameCSDN, NameDeepSeek, NameDouyin, NameJike, NameJuejin,
		NameKuaishou, NameWeChat, NameWeibo, NameXiaohongshu, NameZhihu, NameZsxq,
	}, table.Platforms())
}

func TestLoadTableRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "wechat: [", "parse selector table"},
		{"bad selector", "wechat:\n  title: ['h1[']\n", "wechat.title"},
		{"empty list", "wechat:\n  title: []\n", "empty selector list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTable([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRulesLookups(t *testing.T) {
	t.Parallel()

	table, err := LoadTable([]byte(`
demo:
  title: [".missing", "h2", "h1"]
  name: [".empty", ".name"]
  tags: [".tag", ".label"]
`))
	require.NoError(t, err)
	r := table.Rules("demo")

	page := parse(t, "https://example.org", `<html><body>
<h1>first heading</h1><h2>second heading</h2>
<span class="empty"> </span><span class="name">  Ann   Lee </span>
<i class="label">b</i><i class="tag">a</i><i class="tag">b</i>
</body></html>`)
	root := doc(page)

	assert.True(t, r.Has("title"))
	assert.False(t, r.Has("nope"))
	assert.Equal(t, "second heading", r.Node(root, "title").Text(), "earliest matching selector wins")
	assert.Equal(t, "Ann Lee", r.Text(root, "name"), "elements without text are skipped")
	assert.Equal(t, "fallback", r.TextOr(root, "nope", "fallback"))
	assert.Equal(t, 3, r.All(root, "tags").Length())
	assert.Equal(t, []string{"b", "a"}, r.Texts(root, "tags"), "document order, deduplicated")
	assert.Equal(t, 0, r.Node(root, "nope").Length())
	assert.Equal(t, 1, r.Earliest(root, "name").Length())

	unknown := table.Rules("other")
	assert.Equal(t, "", unknown.Text(root, "title"))
	assert.Empty(t, unknown.Texts(root, "tags"))
}
