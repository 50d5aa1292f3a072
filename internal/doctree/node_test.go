package doctree

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() Node {
	return Doc(
		Heading(2, TextNode("Plan")),
		Paragraph(TextNode("line one"), HardBreak(), TextNode("line two", Mark{Type: MarkBold})),
		BulletList(ListItem(Paragraph(TextNode("a"))), ListItem(Paragraph(TextNode("b")))),
		CodeBlock("go", "x := 1"),
		HorizontalRule(),
	)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Plan\nline one\nline two\na\nb\nx := 1", PlainText(sampleDoc()))
}

func TestInlineSize(t *testing.T) {
	assert.Equal(t, 5, InlineSize(TextNode("héllo")))
	assert.Equal(t, 1, InlineSize(HardBreak()))
	assert.Equal(t, 1, InlineSize(Node{Type: "statusLabel"}))
	assert.Equal(t, 17, ContentSize(sampleDoc().Content[1]))
}

func TestCloneIsDeep(t *testing.T) {
	orig := Doc(Paragraph(TextNode("x", Link("https://a.example"))), Image("a.png", "alt"))
	cp := Clone(orig)
	require.Equal(t, orig, cp)

	cp.Content[0].Content[0].Text = "changed"
	cp.Content[0].Content[0].Marks[0].Attrs["href"] = "https://b.example"
	cp.Content[1].Attrs["src"] = "b.png"

	assert.Equal(t, "x", orig.Content[0].Content[0].Text)
	assert.Equal(t, "https://a.example", orig.Content[0].Content[0].Marks[0].Attrs["href"])
	assert.Equal(t, "a.png", orig.Content[1].Attrs["src"])
}

func TestWalkPathsAndSkip(t *testing.T) {
	var visited [][]int
	Walk(sampleDoc(), func(path []int, n Node) bool {
		visited = append(visited, append([]int(nil), path...))
		return n.Type != TypeBulletList
	})
	assert.Contains(t, visited, []int{2})
	assert.NotContains(t, visited, []int{2, 0})
	assert.Contains(t, visited, []int{1, 2})

	n, ok := At(sampleDoc(), []int{2, 1, 0, 0})
	require.True(t, ok)
	assert.Equal(t, "b", n.Text)
	_, ok = At(sampleDoc(), []int{9})
	assert.False(t, ok)
}

func TestParseRoundTrip(t *testing.T) {
	raw, err := json.Marshal(sampleDoc())
	require.NoError(t, err)

	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Content[0].IntAttr("level", 0))
	assert.Equal(t, PlainText(sampleDoc()), PlainText(got))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte(`[1,2]`))
	assert.True(t, errors.Is(err, ErrInvalidDocument))

	_, err = Parse([]byte(`{"content":[]}`))
	assert.True(t, errors.Is(err, ErrInvalidDocument))
}

func TestFromValue(t *testing.T) {
	n, err := FromValue(map[string]any{
		"type":    "doc",
		"content": []any{map[string]any{"type": "paragraph", "content": []any{map[string]any{"type": "text", "text": "hi"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", PlainText(n))
}
