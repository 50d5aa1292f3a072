package editor

import (
	"reflect"
	"strings"

	"arp/api/internal/doctree"
)

// splitInline cuts inline content at offset, splitting a text node if needed.
func splitInline(content []doctree.Node, offset int) (before, after []doctree.Node) {
	pos := 0
	for _, n := range content {
		size := doctree.InlineSize(n)
		switch {
		case pos+size <= offset:
			before = append(before, n)
		case pos >= offset:
			after = append(after, n)
		default:
			runes := []rune(n.Text)
			cut := offset - pos
			left, right := doctree.Clone(n), doctree.Clone(n)
			left.Text, right.Text = string(runes[:cut]), string(runes[cut:])
			before = append(before, left)
			after = append(after, right)
		}
		pos += size
	}
	return before, after
}

func sliceInline(content []doctree.Node, from, to int) []doctree.Node {
	_, tail := splitInline(content, from)
	mid, _ := splitInline(tail, to-from)
	return mid
}

func deleteInline(content []doctree.Node, from, to int) []doctree.Node {
	before, _ := splitInline(content, from)
	_, after := splitInline(content, to)
	return normalizeInline(append(before, after...))
}

func insertInline(content []doctree.Node, at int, insert ...doctree.Node) []doctree.Node {
	before, after := splitInline(content, at)
	out := make([]doctree.Node, 0, len(before)+len(insert)+len(after))
	out = append(out, before...)
	out = append(out, insert...)
	out = append(out, after...)
	return normalizeInline(out)
}

// normalizeInline drops empty text nodes and merges neighbours with equal marks.
func normalizeInline(content []doctree.Node) []doctree.Node {
	var out []doctree.Node
	for _, n := range content {
		if n.Type == doctree.TypeText && n.Text == "" {
			continue
		}
		if last := len(out) - 1; last >= 0 && n.Type == doctree.TypeText && out[last].Type == doctree.TypeText && sameMarks(out[last].Marks, n.Marks) {
			out[last].Text += n.Text
			continue
		}
		out = append(out, n)
	}
	return out
}

func sameMarks(a, b []doctree.Mark) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func inlineString(content []doctree.Node) string {
	return doctree.InlineText(doctree.Node{Content: content})
}

// textToInline converts plain text to inline nodes. Code blocks keep newlines
// as text; elsewhere they become hard breaks.
func textToInline(text string, code bool) []doctree.Node {
	if text == "" {
		return nil
	}
	if code {
		return []doctree.Node{doctree.TextNode(text)}
	}
	var out []doctree.Node
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out = append(out, doctree.HardBreak())
		}
		if line != "" {
			out = append(out, doctree.TextNode(line))
		}
	}
	return out
}

func inlineWidth(content []doctree.Node) int {
	size := 0
	for _, n := range content {
		size += doctree.InlineSize(n)
	}
	return size
}
