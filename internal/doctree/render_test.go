package doctree

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"paragraph", Doc(Paragraph(TextNode("Hello"))), "<p>Hello</p>\n"},
		{"heading", Heading(3, TextNode("T")), "<h3>T</h3>\n"},
		{"escapes text", Paragraph(TextNode("<b>&")), "<p>&lt;b&gt;&amp;</p>\n"},
		{"marks nest outside in", TextNode("x", Mark{Type: MarkBold}, Mark{Type: MarkItalic}), "<strong><em>x</em></strong>"},
		{"link", TextNode("go", Link(`https://a.example/?q="1"`)), `<a href="https://a.example/?q=&#34;1&#34;">go</a>`},
		{"code block", CodeBlock("go", "a < b"), `<pre><code class="language-go">a &lt; b</code></pre>` + "\n"},
		{"ordered list", OrderedList(ListItem(Paragraph(TextNode("one")))), "<ol>\n<li><p>one</p>\n</li>\n</ol>\n"},
		{"quote caption", Node{Type: TypeBlockquote, Attrs: map[string]any{"caption": "me"}, Content: []Node{Paragraph(TextNode("q"))}}, "<blockquote>\n<p>q</p>\n<cite>me</cite>\n</blockquote>\n"},
		{"hard break and rule", Doc(Paragraph(TextNode("a"), HardBreak(), TextNode("b")), HorizontalRule()), "<p>a<br>b</p>\n<hr>\n"},
		{"unknown renders children", Node{Type: "callout", Content: []Node{Paragraph(TextNode("c"))}}, "<p>c</p>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderHTML(tt.node, nil))
		})
	}
}

func TestRenderHTMLDropsUnsafeURLs(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"javascript link", TextNode("x", Link("javascript:alert(1)")), "x"},
		{"mixed case scheme", TextNode("x", Link(" JavaScript:alert(1)")), "x"},
		{"data link", TextNode("x", Link("data:text/html,<b>")), "x"},
		{"mailto link", TextNode("mail", Link("mailto:a@b.example")), `<a href="mailto:a@b.example">mail</a>`},
		{"relative link", TextNode("r", Link("/docs/a")), `<a href="/docs/a">r</a>`},
		{"https image", Image("https://cdn.example/a.png", "a"), `<img src="https://cdn.example/a.png" alt="a">`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderHTML(tt.node, nil))
		})
	}

	out := RenderHTML(Paragraph(Image("javascript:alert(1)", "x")), nil)
	assert.NotContains(t, out, "javascript")
	assert.Contains(t, out, `data-node-type="image"`)
}

func TestRenderHTMLUsesHooks(t *testing.T) {
	hooks := Hooks{"statusLabel": func(n Node) (string, error) {
		return `<span data-type="status-label">` + n.StringAttr("status") + `</span>`, nil
	}}
	doc := Doc(Paragraph(TextNode("state: "), Node{Type: "statusLabel", Attrs: map[string]any{"status": "completed"}}))
	assert.Equal(t, `<p>state: <span data-type="status-label">completed</span></p>`+"\n", RenderHTML(doc, hooks))
}

func TestRenderHTMLIsolatesFailures(t *testing.T) {
	hooks := Hooks{
		"broken": func(Node) (string, error) { return "", errors.New("boom") },
		"panics": func(Node) (string, error) { panic("kaboom") },
	}
	doc := Doc(
		Paragraph(TextNode("before")),
		Node{Type: "broken"},
		Heading(9, TextNode("bad level")),
		Paragraph(Node{Type: "panics"}, TextNode(" after")),
		Image("", ""),
	)

	out := RenderHTML(doc, hooks)
	assert.True(t, strings.HasPrefix(out, "<p>before</p>\n"))
	assert.Contains(t, out, `data-node-type="broken"`)
	assert.Contains(t, out, `data-node-type="heading"`)
	assert.Contains(t, out, `<p><span class="render-error" data-node-type="panics"`)
	assert.Contains(t, out, " after</p>")
	assert.Contains(t, out, `data-node-type="image"`)
}
