package editor

// Surface is the part of an editing surface the selection guard needs.
type Surface interface {
	Selection() (Range, bool)
	SetSelection(Range) error
	ClampRange(Range) Range
	FocusEnd()
}

// Guard keeps the caret position across focus loss. Save is called before
// focus leaves the surface (palette keystroke, command start, dialog open);
// Restore is called before any insertion that follows.
type Guard struct {
	saved *Range
}

// Save captures the live selection of s. It is a no-op when s has none, so an
// earlier capture survives a second save issued after focus already left.
func (g *Guard) Save(s Surface) bool {
	r, ok := s.Selection()
	if !ok {
		return false
	}
	g.saved = &r
	return true
}

// Restore re-applies the captured range to s, clamped to the current document.
// Without a capture the caret goes to the end of the document.
func (g *Guard) Restore(s Surface) {
	if g.saved == nil {
		s.FocusEnd()
		return
	}
	if err := s.SetSelection(s.ClampRange(*g.saved)); err != nil {
		s.FocusEnd()
	}
}

func (g *Guard) Saved() (Range, bool) {
	if g.saved == nil {
		return Range{}, false
	}
	return *g.saved, true
}

func (g *Guard) Clear() {
	g.saved = nil
}
