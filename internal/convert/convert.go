// Package convert maps between the stored block list and the document tree.
package convert

import (
	"fmt"
	"strings"
	"time"

	"arp/api/internal/blocks"
	"arp/api/internal/doctree"
	"arp/api/internal/nodes"
)

// Converter converts block lists to document trees and back.
type Converter struct {
	Now func() time.Time
}

func New() *Converter {
	return &Converter{Now: time.Now}
}

// ToDoc builds a document from list. The result always contains at least one
// block node so an editor can place a cursor in it.
func (c *Converter) ToDoc(list []blocks.Block) doctree.Node {
	doc := doctree.Doc()
	for _, b := range list {
		doc.Content = append(doc.Content, blockToNode(b))
	}
	if len(doc.Content) == 0 {
		doc.Content = []doctree.Node{doctree.Paragraph()}
	}
	return doc
}

func blockToNode(b blocks.Block) doctree.Node {
	switch b.Type {
	case blocks.TypeHeading:
		return doctree.Heading(blocks.ClampLevel(b.Data.Level), inline(b.Data.Text)...)
	case blocks.TypeList:
		items := make([]doctree.Node, 0, len(b.Data.Items))
		for _, item := range b.Data.Items {
			items = append(items, doctree.ListItem(doctree.Paragraph(inline(item)...)))
		}
		if b.Data.Style == blocks.ListOrdered {
			return doctree.OrderedList(items...)
		}
		return doctree.BulletList(items...)
	case blocks.TypeQuote:
		quote := doctree.Blockquote(doctree.Paragraph(inline(b.Data.Text)...))
		if b.Data.Caption != "" {
			quote.Attrs = map[string]any{"caption": b.Data.Caption}
		}
		return quote
	case blocks.TypeCode:
		return doctree.CodeBlock(b.Data.Language, b.Data.Code)
	case blocks.TypeDivider:
		return doctree.HorizontalRule()
	default:
		return doctree.Paragraph(inline(b.Data.Text)...)
	}
}

// inline splits text into text nodes separated by hard breaks.
func inline(text string) []doctree.Node {
	if text == "" {
		return nil
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

// ToBlocks converts the top-level nodes of doc into blocks. Ids share one
// timestamp per call and are made unique by index. Unknown nodes become empty
// paragraphs; block-level metadata nodes have no block form and are dropped.
func (c *Converter) ToBlocks(doc doctree.Node) []blocks.Block {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	stamp := now().UnixMilli()

	out := make([]blocks.Block, 0, len(doc.Content))
	for _, n := range doc.Content {
		if nodes.IsAtomic(n.Type) {
			continue
		}
		b := nodeToBlock(n)
		b.ID = fmt.Sprintf("blk-%d-%d", stamp, len(out))
		out = append(out, b)
	}
	return blocks.Reorder(out)
}

func nodeToBlock(n doctree.Node) blocks.Block {
	switch n.Type {
	case doctree.TypeParagraph:
		return blocks.Paragraph("", doctree.InlineText(n))
	case doctree.TypeHeading:
		return blocks.Heading("", doctree.InlineText(n), n.IntAttr("level", blocks.MinHeadingLevel))
	case doctree.TypeBulletList, doctree.TypeOrderedList:
		items := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			items = append(items, containerText(item))
		}
		style := blocks.ListUnordered
		if n.Type == doctree.TypeOrderedList {
			style = blocks.ListOrdered
		}
		return blocks.List("", style, items...)
	case doctree.TypeBlockquote:
		return blocks.Quote("", containerText(n), n.StringAttr("caption"))
	case doctree.TypeCodeBlock:
		return blocks.Code("", doctree.InlineText(n), n.StringAttr("language"))
	case doctree.TypeHorizontalRule:
		return blocks.Divider("")
	default:
		return blocks.Paragraph("", "")
	}
}

// containerText joins the inline text of the textblocks inside n with "\n".
// Trailing breaks inside a textblock are kept.
func containerText(n doctree.Node) string {
	var parts []string
	collectTextblocks(n, &parts)
	return strings.Join(parts, "\n")
}

func collectTextblocks(n doctree.Node, parts *[]string) {
	for _, child := range n.Content {
		if doctree.IsTextblock(child) {
			*parts = append(*parts, doctree.InlineText(child))
			continue
		}
		collectTextblocks(child, parts)
	}
}
