package editor

import (
	"arp/api/internal/doctree"
)

// InsertInline inserts n at the caret, replacing any selected content. It
// fails without a live selection and inside code blocks, which only hold text.
func (e *Editor) InsertInline(n doctree.Node) bool {
	if e.sel == nil {
		return false
	}
	start, _ := e.ordered()
	if tb, ok := doctree.At(e.doc, start.Path); !ok || (tb.Type == doctree.TypeCodeBlock && n.Type != doctree.TypeText) {
		return false
	}
	e.deleteSelected()
	p := e.sel.Head
	tb := e.nodeAt(p.Path)
	tb.Content = insertInline(tb.Content, p.Offset, doctree.Clone(n))
	e.setCursor(p.Path, p.Offset+doctree.InlineSize(n))
	e.changed()
	return true
}

// InsertBlock inserts n as a top-level block after the block holding the
// caret, or at the end of the document when there is no selection. An empty
// paragraph at the caret is replaced instead.
func (e *Editor) InsertBlock(n doctree.Node) {
	idx, replace := len(e.doc.Content), false
	if e.sel != nil {
		top := e.sel.Head.Path[0]
		idx = top + 1
		if cur := e.doc.Content[top]; cur.Type == doctree.TypeParagraph && len(cur.Content) == 0 {
			idx, replace = top, true
		}
	}
	e.placeBlock(idx, replace, n)
}

// ReplaceSelection replaces the selection with text.
func (e *Editor) ReplaceSelection(text string) error {
	if e.sel == nil {
		return ErrNoSelection
	}
	e.deleteSelected()
	p := e.sel.Head
	tb := e.nodeAt(p.Path)
	ins := textToInline(text, tb.Type == doctree.TypeCodeBlock)
	tb.Content = insertInline(tb.Content, p.Offset, ins...)
	e.setCursor(p.Path, p.Offset+inlineWidth(ins))
	e.changed()
	return nil
}

// ReplaceSelectionWithBlock deletes the selection and places n as a block. A
// top-level textblock left empty by the deletion is replaced by n.
func (e *Editor) ReplaceSelectionWithBlock(n doctree.Node) error {
	if e.sel == nil {
		return ErrNoSelection
	}
	e.deleteSelected()
	p := e.sel.Head
	top := p.Path[0]
	if tb, _ := doctree.At(e.doc, p.Path); len(p.Path) == 1 && len(tb.Content) == 0 {
		e.placeBlock(top, true, n)
		return nil
	}
	e.placeBlock(top+1, false, n)
	return nil
}

// DeleteSelection removes the selected content. Textblocks spanned by the
// selection keep their structure; only their covered content goes.
func (e *Editor) DeleteSelection() error {
	if e.sel == nil {
		return ErrNoSelection
	}
	if e.deleteSelected() {
		e.changed()
	}
	return nil
}

func (e *Editor) deleteSelected() bool {
	if e.sel.Collapsed() {
		return false
	}
	start, _ := e.ordered()
	type span struct {
		path     []int
		from, to int
	}
	var spans []span
	e.eachSelected(func(path []int, from, to int) {
		spans = append(spans, span{path, from, to})
	})
	for _, s := range spans {
		tb := e.nodeAt(s.path)
		tb.Content = deleteInline(tb.Content, s.from, s.to)
	}
	e.setCursor(start.Path, start.Offset)
	return true
}

func (e *Editor) placeBlock(idx int, replace bool, n doctree.Node) {
	n = doctree.Clone(n)
	if replace {
		e.doc.Content[idx] = n
	} else {
		e.doc.Content = append(e.doc.Content, doctree.Node{})
		copy(e.doc.Content[idx+1:], e.doc.Content[idx:])
		e.doc.Content[idx] = n
	}
	e.caretAfterInsert(idx)
	e.changed()
}

// caretAfterInsert puts the caret at the end of the last textblock inside the
// inserted block, or at the start of the next textblock when it has none.
func (e *Editor) caretAfterInsert(idx int) {
	inserted := e.doc.Content[idx]
	if doctree.IsTextblock(inserted) {
		e.setCursor([]int{idx}, doctree.ContentSize(inserted))
		return
	}
	if inner := textblockPaths(inserted); len(inner) > 0 {
		last := inner[len(inner)-1]
		n, _ := doctree.At(inserted, last)
		e.setCursor(append([]int{idx}, last...), doctree.ContentSize(n))
		return
	}
	for j := idx + 1; j < len(e.doc.Content); j++ {
		if doctree.IsTextblock(e.doc.Content[j]) {
			e.setCursor([]int{j}, 0)
			return
		}
		if inner := textblockPaths(e.doc.Content[j]); len(inner) > 0 {
			e.setCursor(append([]int{j}, inner[0]...), 0)
			return
		}
	}
	e.doc.Content = append(e.doc.Content, doctree.Paragraph())
	e.setCursor([]int{len(e.doc.Content) - 1}, 0)
}

func (e *Editor) setCursor(path []int, offset int) {
	r := Cursor(Pos{Path: append([]int(nil), path...), Offset: offset})
	e.sel = &r
}

func (e *Editor) headTextblock() *doctree.Node {
	if e.sel == nil {
		return nil
	}
	if _, ok := doctree.At(e.doc, e.sel.Head.Path); !ok {
		return nil
	}
	return e.nodeAt(e.sel.Head.Path)
}

// inListItem reports whether any ancestor of path is a list item.
func (e *Editor) inListItem(path []int) bool {
	n := e.doc
	for _, idx := range path {
		if n.Type == doctree.TypeListItem {
			return true
		}
		n = n.Content[idx]
	}
	return false
}

// SetParagraph turns the textblock at the caret into a paragraph.
func (e *Editor) SetParagraph() bool {
	tb := e.headTextblock()
	if tb == nil {
		return false
	}
	switch tb.Type {
	case doctree.TypeParagraph:
		return true
	case doctree.TypeCodeBlock:
		tb.Content = textToInline(doctree.InlineText(*tb), false)
	}
	tb.Type = doctree.TypeParagraph
	tb.Attrs = nil
	e.changed()
	return true
}

// ToggleHeading switches the textblock at the caret between a heading of
// level and a paragraph. Headings are not allowed in list items or code.
func (e *Editor) ToggleHeading(level int) bool {
	tb := e.headTextblock()
	if tb == nil || level < 1 || level > 3 {
		return false
	}
	if tb.Type == doctree.TypeCodeBlock || e.inListItem(e.sel.Head.Path) {
		return false
	}
	if tb.Type == doctree.TypeHeading && tb.IntAttr("level", 0) == level {
		tb.Type = doctree.TypeParagraph
		tb.Attrs = nil
	} else {
		tb.Type = doctree.TypeHeading
		tb.Attrs = map[string]any{"level": level}
	}
	e.changed()
	return true
}

// ToggleList wraps the paragraph at the caret in a list, switches the kind of
// the list it is in, or lifts the list back to paragraphs. Only top-level
// paragraphs and direct list items qualify.
func (e *Editor) ToggleList(ordered bool) bool {
	tb := e.headTextblock()
	if tb == nil || tb.Type != doctree.TypeParagraph {
		return false
	}
	want := doctree.TypeBulletList
	if ordered {
		want = doctree.TypeOrderedList
	}
	path, offset := e.sel.Head.Path, e.sel.Head.Offset
	top := path[0]
	current := e.doc.Content[top]

	switch {
	case len(path) == 1:
		wrap := doctree.BulletList
		if ordered {
			wrap = doctree.OrderedList
		}
		e.doc.Content[top] = wrap(doctree.ListItem(current))
		e.setCursor([]int{top, 0, 0}, offset)
	case len(path) == 3 && (current.Type == doctree.TypeBulletList || current.Type == doctree.TypeOrderedList):
		if current.Type != want {
			switched := doctree.BulletList(current.Content...)
			if ordered {
				switched = doctree.OrderedList(current.Content...)
			}
			e.doc.Content[top] = switched
			break
		}
		var lifted []doctree.Node
		newIdx := top
		for i, item := range current.Content {
			if i < path[1] {
				newIdx += len(item.Content)
			}
			lifted = append(lifted, item.Content...)
		}
		newIdx += path[2]
		rest := append([]doctree.Node{}, e.doc.Content[top+1:]...)
		e.doc.Content = append(append(e.doc.Content[:top], lifted...), rest...)
		e.setCursor([]int{newIdx}, offset)
	default:
		return false
	}
	e.changed()
	return true
}

// ToggleBlockquote wraps the top-level block at the caret in a quote or lifts
// it out of one. Quotes are not allowed inside lists.
func (e *Editor) ToggleBlockquote() bool {
	if e.headTextblock() == nil {
		return false
	}
	path, offset := e.sel.Head.Path, e.sel.Head.Offset
	if e.inListItem(path) {
		return false
	}
	top := path[0]
	current := e.doc.Content[top]
	switch {
	case current.Type == doctree.TypeBlockquote && len(path) >= 2:
		rest := append([]doctree.Node{}, e.doc.Content[top+1:]...)
		e.doc.Content = append(append(e.doc.Content[:top], current.Content...), rest...)
		e.setCursor(append([]int{top + path[1]}, path[2:]...), offset)
	case len(path) == 1:
		e.doc.Content[top] = doctree.Blockquote(current)
		e.setCursor([]int{top, 0}, offset)
	default:
		return false
	}
	e.changed()
	return true
}

// SetHorizontalRule inserts a rule after the block at the caret.
func (e *Editor) SetHorizontalRule() bool {
	tb := e.headTextblock()
	if tb == nil || tb.Type == doctree.TypeCodeBlock {
		return false
	}
	e.placeBlock(e.sel.Head.Path[0]+1, false, doctree.HorizontalRule())
	return true
}

// SetLink applies a link mark to the selected text. The selection must be a
// non-empty span inside one textblock that is not code.
func (e *Editor) SetLink(href string) bool {
	if e.sel == nil || e.sel.Collapsed() || href == "" {
		return false
	}
	start, end := e.ordered()
	if !samePath(start.Path, end.Path) {
		return false
	}
	tb := e.nodeAt(start.Path)
	if tb.Type == doctree.TypeCodeBlock {
		return false
	}
	before, rest := splitInline(tb.Content, start.Offset)
	mid, after := splitInline(rest, end.Offset-start.Offset)
	for i := range mid {
		if mid[i].Type == doctree.TypeText {
			mid[i].Marks = withLink(mid[i].Marks, href)
		}
	}
	content := append(append(before, mid...), after...)
	tb.Content = normalizeInline(content)
	e.changed()
	return true
}

func withLink(marks []doctree.Mark, href string) []doctree.Mark {
	out := make([]doctree.Mark, 0, len(marks)+1)
	for _, m := range marks {
		if m.Type != doctree.MarkLink {
			out = append(out, m)
		}
	}
	return append(out, doctree.Link(href))
}

// SetImage inserts an inline image at the caret.
func (e *Editor) SetImage(src, alt string) bool {
	if src == "" {
		return false
	}
	return e.InsertInline(doctree.Image(src, alt))
}
