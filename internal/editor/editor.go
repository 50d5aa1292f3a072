// Package editor is a headless editing surface over a document tree. It holds
// the document and a live selection and offers the structural commands the
// command palette drives.
package editor

import (
	"errors"
	"fmt"
	"strings"

	"arp/api/internal/doctree"
)

var (
	ErrNoSelection     = errors.New("no live selection")
	ErrInvalidPosition = errors.New("invalid position")
)

// Pos addresses a point inside a textblock. Path holds child indexes from the
// document root to the textblock; Offset counts inline positions, where text
// counts runes and any other inline node counts one.
type Pos struct {
	Path   []int `json:"path"`
	Offset int   `json:"offset"`
}

// Range is a selection. Anchor is where it started, Head where it ends.
type Range struct {
	Anchor Pos `json:"anchor"`
	Head   Pos `json:"head"`
}

// Cursor returns a collapsed range at p.
func Cursor(p Pos) Range {
	return Range{Anchor: p, Head: p}
}

// Collapsed reports whether the range is a caret.
func (r Range) Collapsed() bool {
	return samePath(r.Anchor.Path, r.Head.Path) && r.Anchor.Offset == r.Head.Offset
}

func (p Pos) clone() Pos {
	return Pos{Path: append([]int(nil), p.Path...), Offset: p.Offset}
}

func (p Pos) String() string {
	return fmt.Sprintf("%v:%d", p.Path, p.Offset)
}

// Editor owns a document and an optional live selection. The selection is
// absent whenever focus is elsewhere (a dialog, another field).
type Editor struct {
	doc      doctree.Node
	sel      *Range
	OnChange func(doc doctree.Node)
}

// New creates an editor over a copy of doc without a live selection.
func New(doc doctree.Node) *Editor {
	e := &Editor{}
	e.load(doc)
	return e
}

func (e *Editor) load(doc doctree.Node) {
	doc = doctree.Clone(doc)
	doc.Type = doctree.TypeDoc
	if len(textblockPaths(doc)) == 0 {
		doc.Content = append(doc.Content, doctree.Paragraph())
	}
	e.doc = doc
}

// Doc returns a copy of the current document.
func (e *Editor) Doc() doctree.Node {
	return doctree.Clone(e.doc)
}

// SetDoc replaces the document and drops the selection without firing OnChange.
func (e *Editor) SetDoc(doc doctree.Node) {
	e.load(doc)
	e.sel = nil
}

func (e *Editor) changed() {
	if e.OnChange != nil {
		e.OnChange(e.Doc())
	}
}

// Selection returns the live selection, if any.
func (e *Editor) Selection() (Range, bool) {
	if e.sel == nil {
		return Range{}, false
	}
	return Range{Anchor: e.sel.Anchor.clone(), Head: e.sel.Head.clone()}, true
}

// SetSelection focuses the editor with r. Both ends must address textblocks
// within bounds.
func (e *Editor) SetSelection(r Range) error {
	for _, p := range []Pos{r.Anchor, r.Head} {
		if !e.validPos(p) {
			return fmt.Errorf("%w: %s", ErrInvalidPosition, p)
		}
	}
	r = Range{Anchor: r.Anchor.clone(), Head: r.Head.clone()}
	e.sel = &r
	return nil
}

// ClampRange moves both ends of r into the document. Offsets are clamped to
// their textblock; a path that no longer names a textblock moves to the end
// of the document.
func (e *Editor) ClampRange(r Range) Range {
	return Range{Anchor: e.clampPos(r.Anchor), Head: e.clampPos(r.Head)}
}

func (e *Editor) clampPos(p Pos) Pos {
	n, ok := doctree.At(e.doc, p.Path)
	if !ok || !doctree.IsTextblock(n) || len(p.Path) == 0 {
		return e.endPos()
	}
	size := doctree.ContentSize(n)
	off := p.Offset
	if off < 0 {
		off = 0
	}
	if off > size {
		off = size
	}
	return Pos{Path: append([]int(nil), p.Path...), Offset: off}
}

// Blur drops the live selection, as when focus moves to a dialog.
func (e *Editor) Blur() {
	e.sel = nil
}

// Focus gives focus to the editor. Without a selection the caret goes to the
// start of the document.
func (e *Editor) Focus() {
	if e.sel != nil {
		return
	}
	paths := textblockPaths(e.doc)
	r := Cursor(Pos{Path: paths[0]})
	e.sel = &r
}

// FocusEnd places the caret at the end of the document.
func (e *Editor) FocusEnd() {
	r := Cursor(e.endPos())
	e.sel = &r
}

func (e *Editor) endPos() Pos {
	paths := textblockPaths(e.doc)
	last := paths[len(paths)-1]
	n, _ := doctree.At(e.doc, last)
	return Pos{Path: last, Offset: doctree.ContentSize(n)}
}

func (e *Editor) validPos(p Pos) bool {
	if len(p.Path) == 0 {
		return false
	}
	n, ok := doctree.At(e.doc, p.Path)
	if !ok || !doctree.IsTextblock(n) {
		return false
	}
	return p.Offset >= 0 && p.Offset <= doctree.ContentSize(n)
}

// SelectedText returns the selected text. Textblocks are joined by newlines.
func (e *Editor) SelectedText() string {
	if e.sel == nil || e.sel.Collapsed() {
		return ""
	}
	var parts []string
	e.eachSelected(func(path []int, from, to int) {
		n, _ := doctree.At(e.doc, path)
		parts = append(parts, inlineString(sliceInline(n.Content, from, to)))
	})
	return strings.Join(parts, "\n")
}

// EnclosingText returns the full text of the textblock holding the head.
func (e *Editor) EnclosingText() string {
	if e.sel == nil {
		return ""
	}
	n, ok := doctree.At(e.doc, e.sel.Head.Path)
	if !ok {
		return ""
	}
	return doctree.InlineText(n)
}

// SelectEnclosing selects the whole textblock holding the head.
func (e *Editor) SelectEnclosing() bool {
	if e.sel == nil {
		return false
	}
	n, ok := doctree.At(e.doc, e.sel.Head.Path)
	if !ok {
		return false
	}
	path := append([]int(nil), e.sel.Head.Path...)
	r := Range{Anchor: Pos{Path: path}, Head: Pos{Path: append([]int(nil), path...), Offset: doctree.ContentSize(n)}}
	e.sel = &r
	return true
}

// ordered returns the selection ends in document order.
func (e *Editor) ordered() (Pos, Pos) {
	a, h := e.sel.Anchor, e.sel.Head
	if comparePos(textblockPaths(e.doc), a, h) > 0 {
		return h, a
	}
	return a, h
}

// eachSelected calls fn for every textblock touched by the selection with the
// selected offset span inside it.
func (e *Editor) eachSelected(fn func(path []int, from, to int)) {
	start, end := e.ordered()
	paths := textblockPaths(e.doc)
	si, ei := indexOfPath(paths, start.Path), indexOfPath(paths, end.Path)
	if si < 0 || ei < 0 {
		return
	}
	for i := si; i <= ei; i++ {
		n, _ := doctree.At(e.doc, paths[i])
		from, to := 0, doctree.ContentSize(n)
		if i == si {
			from = start.Offset
		}
		if i == ei {
			to = end.Offset
		}
		fn(paths[i], from, to)
	}
}

// nodeAt returns a pointer into the document for in-place edits.
func (e *Editor) nodeAt(path []int) *doctree.Node {
	n := &e.doc
	for _, idx := range path {
		n = &n.Content[idx]
	}
	return n
}

func textblockPaths(doc doctree.Node) [][]int {
	var out [][]int
	doctree.Walk(doc, func(path []int, n doctree.Node) bool {
		if doctree.IsTextblock(n) && len(path) > 0 {
			out = append(out, path)
			return false
		}
		return true
	})
	return out
}

func indexOfPath(paths [][]int, path []int) int {
	for i, p := range paths {
		if samePath(p, path) {
			return i
		}
	}
	return -1
}

func comparePos(paths [][]int, a, b Pos) int {
	ai, bi := indexOfPath(paths, a.Path), indexOfPath(paths, b.Path)
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

func samePath(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
