package doctree

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

// Renderer renders a single node to HTML. Hook renderers are used for node
// types the tree does not know, such as the atomic metadata nodes.
type Renderer func(n Node) (string, error)

// Hooks maps node type names to renderers.
type Hooks map[string]Renderer

// RenderHTML renders n to HTML. A node that fails to render is replaced by an
// inline error marker and the rest of the document still renders.
func RenderHTML(n Node, hooks Hooks) string {
	var b strings.Builder
	renderSafe(&b, n, hooks)
	return b.String()
}

func renderSafe(b *strings.Builder, n Node, hooks Hooks) {
	out, err := renderGuarded(n, hooks)
	if err != nil {
		b.WriteString(errorMarker(n.Type, err))
		return
	}
	b.WriteString(out)
}

func renderGuarded(n Node, hooks Hooks) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render %s: %v", n.Type, r)
		}
	}()
	return renderNode(n, hooks)
}

func errorMarker(nodeType string, err error) string {
	return fmt.Sprintf(`<span class="render-error" data-node-type="%s" title="%s">[unrenderable %s]</span>`,
		html.EscapeString(nodeType), html.EscapeString(err.Error()), html.EscapeString(nodeType))
}

func renderNode(n Node, hooks Hooks) (string, error) {
	if hook, ok := hooks[n.Type]; ok && hook != nil {
		return hook(n)
	}

	switch n.Type {
	case "":
		return "", fmt.Errorf("node without type")
	case TypeDoc:
		return renderChildren(n, hooks), nil
	case TypeParagraph:
		return fmt.Sprintf("<p>%s</p>\n", renderChildren(n, hooks)), nil
	case TypeHeading:
		level := n.IntAttr("level", 1)
		if level < 1 || level > 6 {
			return "", fmt.Errorf("heading level %d out of range", level)
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderChildren(n, hooks), level), nil
	case TypeBulletList:
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderChildren(n, hooks)), nil
	case TypeOrderedList:
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderChildren(n, hooks)), nil
	case TypeListItem:
		return fmt.Sprintf("<li>%s</li>\n", renderChildren(n, hooks)), nil
	case TypeBlockquote:
		inner := renderChildren(n, hooks)
		if caption := n.StringAttr("caption"); caption != "" {
			inner += fmt.Sprintf("<cite>%s</cite>\n", html.EscapeString(caption))
		}
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", inner), nil
	case TypeCodeBlock:
		lang := n.StringAttr("language")
		code := html.EscapeString(InlineText(n))
		if lang != "" {
			return fmt.Sprintf(`<pre><code class="language-%s">%s</code></pre>`+"\n", html.EscapeString(lang), code), nil
		}
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", code), nil
	case TypeText:
		return renderTextWithMarks(n.Text, n.Marks), nil
	case TypeHardBreak:
		return "<br>", nil
	case TypeHorizontalRule:
		return "<hr>\n", nil
	case TypeImage:
		src := n.StringAttr("src")
		if src == "" {
			return "", fmt.Errorf("image without src")
		}
		if !SafeURL(src, false) {
			return "", fmt.Errorf("image src has an unsupported scheme")
		}
		return fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(src), html.EscapeString(n.StringAttr("alt"))), nil
	default:
		// Unknown node type - render content if any
		return renderChildren(n, hooks), nil
	}
}

func renderChildren(n Node, hooks Hooks) string {
	var b strings.Builder
	for _, child := range n.Content {
		renderSafe(&b, child, hooks)
	}
	return b.String()
}

// renderTextWithMarks applies marks from the outside in.
func renderTextWithMarks(text string, marks []Mark) string {
	if text == "" {
		return ""
	}
	out := html.EscapeString(text)
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case MarkBold:
			out = "<strong>" + out + "</strong>"
		case MarkItalic:
			out = "<em>" + out + "</em>"
		case MarkCode:
			out = "<code>" + out + "</code>"
		case MarkLink:
			href, _ := marks[i].Attrs["href"].(string)
			if SafeURL(href, true) {
				out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), out)
			}
		case MarkStrike:
			out = "<s>" + out + "</s>"
		case MarkUnderline:
			out = "<u>" + out + "</u>"
		}
	}
	return out
}

// SafeURL reports whether raw may be emitted as a link target or image
// source: a relative reference, or an absolute http or https URL. mailto is
// accepted for links only.
func SafeURL(raw string, link bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return true
	case "mailto":
		return link
	}
	return false
}
