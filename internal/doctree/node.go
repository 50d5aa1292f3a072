// Package doctree is the rich document tree edited in the section editor.
// Its JSON form is the ProseMirror document format.
package doctree

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	TypeDoc            = "doc"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeText           = "text"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeListItem       = "listItem"
	TypeBlockquote     = "blockquote"
	TypeCodeBlock      = "codeBlock"
	TypeHorizontalRule = "horizontalRule"
	TypeHardBreak      = "hardBreak"
	TypeImage          = "image"
)

const (
	MarkBold      = "bold"
	MarkItalic    = "italic"
	MarkCode      = "code"
	MarkLink      = "link"
	MarkStrike    = "strike"
	MarkUnderline = "underline"
)

// ErrInvalidDocument is returned by Parse when the input is not a node.
var ErrInvalidDocument = errors.New("invalid document")

// Node is one node of the document tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is inline formatting applied to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

func Doc(children ...Node) Node {
	return Node{Type: TypeDoc, Content: children}
}

func Paragraph(inline ...Node) Node {
	return Node{Type: TypeParagraph, Content: inline}
}

func Heading(level int, inline ...Node) Node {
	return Node{Type: TypeHeading, Attrs: map[string]any{"level": level}, Content: inline}
}

func TextNode(text string, marks ...Mark) Node {
	return Node{Type: TypeText, Text: text, Marks: marks}
}

func BulletList(items ...Node) Node {
	return Node{Type: TypeBulletList, Content: items}
}

func OrderedList(items ...Node) Node {
	return Node{Type: TypeOrderedList, Attrs: map[string]any{"start": 1}, Content: items}
}

func ListItem(children ...Node) Node {
	return Node{Type: TypeListItem, Content: children}
}

func Blockquote(children ...Node) Node {
	return Node{Type: TypeBlockquote, Content: children}
}

func CodeBlock(language, code string) Node {
	n := Node{Type: TypeCodeBlock, Attrs: map[string]any{"language": nil}}
	if language != "" {
		n.Attrs["language"] = language
	}
	if code != "" {
		n.Content = []Node{TextNode(code)}
	}
	return n
}

func HorizontalRule() Node {
	return Node{Type: TypeHorizontalRule}
}

func HardBreak() Node {
	return Node{Type: TypeHardBreak}
}

func Image(src, alt string) Node {
	return Node{Type: TypeImage, Attrs: map[string]any{"src": src, "alt": alt}}
}

func Link(href string) Mark {
	return Mark{Type: MarkLink, Attrs: map[string]any{"href": href}}
}

// IsTextblock reports whether n holds inline content directly.
func IsTextblock(n Node) bool {
	switch n.Type {
	case TypeParagraph, TypeHeading, TypeCodeBlock:
		return true
	}
	return false
}

// InlineSize is the width of an inline node in selection offsets. Text counts
// runes; every other inline node is a single position.
func InlineSize(n Node) int {
	if n.Type == TypeText {
		return utf8.RuneCountInString(n.Text)
	}
	return 1
}

// ContentSize is the sum of the inline sizes of a textblock's children.
func ContentSize(n Node) int {
	size := 0
	for _, child := range n.Content {
		size += InlineSize(child)
	}
	return size
}

// StringAttr returns a string attribute or "".
func (n Node) StringAttr(key string) string {
	s, _ := n.Attrs[key].(string)
	return s
}

// IntAttr returns a numeric attribute or fallback. JSON numbers decode as float64.
func (n Node) IntAttr(key string, fallback int) int {
	switch v := n.Attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}

// PlainText flattens n to text. Hard breaks become newlines and textblocks
// are separated by newlines.
func PlainText(n Node) string {
	var b strings.Builder
	writePlain(&b, n)
	return strings.TrimRight(b.String(), "\n")
}

func writePlain(b *strings.Builder, n Node) {
	switch {
	case n.Type == TypeText:
		b.WriteString(n.Text)
	case n.Type == TypeHardBreak:
		b.WriteByte('\n')
	case IsTextblock(n):
		for _, child := range n.Content {
			writePlain(b, child)
		}
		b.WriteByte('\n')
	default:
		for _, child := range n.Content {
			writePlain(b, child)
		}
	}
}

// InlineText returns the text of a textblock without a trailing newline.
func InlineText(n Node) string {
	var b strings.Builder
	for _, child := range n.Content {
		writePlain(&b, child)
	}
	return b.String()
}

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	out := Node{Type: n.Type, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = cloneMap(n.Attrs)
	}
	if n.Content != nil {
		out.Content = make([]Node, len(n.Content))
		for i, child := range n.Content {
			out.Content[i] = Clone(child)
		}
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, len(n.Marks))
		for i, m := range n.Marks {
			out.Marks[i] = Mark{Type: m.Type}
			if m.Attrs != nil {
				out.Marks[i].Attrs = cloneMap(m.Attrs)
			}
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Walk visits n and its descendants depth first. path holds child indexes from
// the root. Returning false from fn skips the node's children.
func Walk(n Node, fn func(path []int, n Node) bool) {
	walk(n, nil, fn)
}

func walk(n Node, path []int, fn func([]int, Node) bool) {
	if !fn(path, n) {
		return
	}
	for i, child := range n.Content {
		childPath := make([]int, len(path)+1)
		copy(childPath, path)
		childPath[len(path)] = i
		walk(child, childPath, fn)
	}
}

// At returns the node at path.
func At(root Node, path []int) (Node, bool) {
	n := root
	for _, idx := range path {
		if idx < 0 || idx >= len(n.Content) {
			return Node{}, false
		}
		n = n.Content[idx]
	}
	return n, true
}

// Parse decodes a JSON document.
func Parse(raw []byte) (Node, error) {
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if n.Type == "" {
		return Node{}, fmt.Errorf("%w: missing node type", ErrInvalidDocument)
	}
	return n, nil
}

// FromValue converts a decoded JSON value (for example a map from a generic
// payload) into a Node.
func FromValue(v any) (Node, error) {
	if n, ok := v.(Node); ok {
		return n, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Parse(raw)
}
