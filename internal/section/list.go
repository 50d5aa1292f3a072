package section

import (
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("section not found")

// List is the owned collection of sections for one owner. Update is the only
// way to change a stored section, and it always refreshes UpdatedAt.
type List struct {
	mu       sync.Mutex
	sections []Section
	now      func() time.Time
	onChange func([]Section)
}

// NewList takes ownership of copies of sections. A nil clock means time.Now.
func NewList(sections []Section, now func() time.Time) *List {
	if now == nil {
		now = time.Now
	}
	l := &List{now: now, sections: make([]Section, 0, len(sections))}
	for _, s := range sections {
		l.sections = append(l.sections, Clone(s))
	}
	return l
}

// OnChange registers fn to receive a snapshot after every mutation.
func (l *List) OnChange(fn func([]Section)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Add appends a new empty section and returns it.
func (l *List) Add(title string) Section {
	l.mu.Lock()
	s := New(title, l.now())
	l.sections = append(l.sections, s)
	out := Clone(s)
	l.mu.Unlock()
	l.notify()
	return out
}

// Update applies fn to the section with id and stamps UpdatedAt.
func (l *List) Update(id string, fn func(*Section)) (Section, error) {
	l.mu.Lock()
	idx := l.index(id)
	if idx < 0 {
		l.mu.Unlock()
		return Section{}, ErrNotFound
	}
	s := Clone(l.sections[idx])
	fn(&s)
	s.ID = id
	ensureArrays(&s)
	s.UpdatedAt = l.now()
	l.sections[idx] = s
	out := Clone(s)
	l.mu.Unlock()
	l.notify()
	return out, nil
}

func (l *List) Remove(id string) error {
	l.mu.Lock()
	idx := l.index(id)
	if idx < 0 {
		l.mu.Unlock()
		return ErrNotFound
	}
	l.sections = append(l.sections[:idx], l.sections[idx+1:]...)
	l.mu.Unlock()
	l.notify()
	return nil
}

func (l *List) Get(id string) (Section, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.index(id)
	if idx < 0 {
		return Section{}, false
	}
	return Clone(l.sections[idx]), true
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sections)
}

// Snapshot returns a deep copy of every section in order.
func (l *List) Snapshot() []Section {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *List) snapshotLocked() []Section {
	out := make([]Section, len(l.sections))
	for i, s := range l.sections {
		out[i] = Clone(s)
	}
	return out
}

func (l *List) index(id string) int {
	for i, s := range l.sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (l *List) notify() {
	l.mu.Lock()
	fn := l.onChange
	var snap []Section
	if fn != nil {
		snap = l.snapshotLocked()
	}
	l.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
