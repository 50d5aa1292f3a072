package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arp/api/internal/autosave"
	"arp/api/internal/convert"
	"arp/api/internal/doctree"
	"arp/api/internal/editor"
	"arp/api/internal/section"
)

// SaveState is the autosave indicator of a session.
type SaveState struct {
	Status  string     `json:"status"`
	Error   string     `json:"error,omitempty"`
	SavedAt *time.Time `json:"savedAt,omitempty"`
	Pending bool       `json:"pending"`
}

// Session is one owner's open editing state: the section list, an editor per
// opened section and the autosave scheduler. Editor changes are converted to
// blocks and written into the list, and every list change schedules a save.
type Session struct {
	ownerID   string
	list      *section.List
	scheduler *autosave.Scheduler
	converter *convert.Converter
	now       func() time.Time

	mu      sync.Mutex
	editors map[string]*openEditor

	stateMu sync.Mutex
	state   SaveState
}

func NewSession(ownerID string, sections []section.Section, persister autosave.Persister, cfg autosave.Config, now func() time.Time, logger zerolog.Logger) *Session {
	if now == nil {
		now = time.Now
	}
	list := section.NewList(sections, now)
	sess := &Session{
		ownerID:   ownerID,
		list:      list,
		converter: &convert.Converter{Now: now},
		now:       now,
		editors:   map[string]*openEditor{},
		state:     SaveState{Status: string(autosave.StatusSaved)},
	}
	sess.scheduler = autosave.New(ownerID, list, persister, cfg, logger)
	sess.scheduler.OnStatus(sess.record)
	list.OnChange(func([]section.Section) { sess.scheduler.Schedule() })
	return sess
}

func (s *Session) record(status autosave.Status, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state.Status = string(status)
	s.state.Error = ""
	switch status {
	case autosave.StatusSaved:
		t := s.now()
		s.state.SavedAt = &t
	case autosave.StatusFailed:
		if err != nil {
			s.state.Error = err.Error()
		}
	}
}

func (s *Session) SaveState() SaveState {
	s.stateMu.Lock()
	state := s.state
	s.stateMu.Unlock()
	state.Pending = s.scheduler.Pending()
	return state
}

func (s *Session) Sections() []section.Section {
	return s.list.Snapshot()
}

func (s *Session) Get(sectionID string) (section.Section, bool) {
	return s.list.Get(sectionID)
}

func (s *Session) Add(title string) section.Section {
	return s.list.Add(title)
}

func (s *Session) Remove(sectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.list.Remove(sectionID); err != nil {
		return err
	}
	delete(s.editors, sectionID)
	return nil
}

// Patch overlays patch on the section's persisted form and normalizes the
// result. The id, content and timestamps cannot be patched.
func (s *Session) Patch(sectionID string, patch map[string]any) (section.Section, error) {
	return s.list.Update(sectionID, func(sec *section.Section) {
		raw, err := json.Marshal(sec)
		if err != nil {
			return
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return
		}
		for key, value := range patch {
			switch key {
			case "id", "content", "createdAt", "updatedAt":
				continue
			}
			m[key] = value
		}
		content := sec.Content
		*sec = section.NormalizeAt(m, sec.CreatedAt)
		sec.Content = content
	})
}

func (s *Session) AttachAsset(sectionID string, asset section.Asset) error {
	_, err := s.list.Update(sectionID, func(sec *section.Section) {
		sec.Assets = append(sec.Assets, asset)
	})
	return err
}

// openEditor serializes the edits of one section.
type openEditor struct {
	mu sync.Mutex
	ed *editor.Editor
}

// Edit runs fn against the editor of sectionID and returns the resulting
// document. Edits of one section are serialized; other sections of the
// session stay editable while fn runs.
func (s *Session) Edit(sectionID string, fn func(ed *editor.Editor) error) (doctree.Node, error) {
	s.mu.Lock()
	open, err := s.editorFor(sectionID)
	s.mu.Unlock()
	if err != nil {
		return doctree.Node{}, err
	}

	open.mu.Lock()
	defer open.mu.Unlock()
	err = fn(open.ed)
	return open.ed.Doc(), err
}

// editorFor must be called with s.mu held.
func (s *Session) editorFor(sectionID string) (*openEditor, error) {
	if open, ok := s.editors[sectionID]; ok {
		return open, nil
	}
	sec, ok := s.list.Get(sectionID)
	if !ok {
		return nil, section.ErrNotFound
	}
	ed := editor.New(s.converter.ToDoc(sec.Content))
	ed.OnChange = func(doc doctree.Node) {
		_, _ = s.list.Update(sectionID, func(sec *section.Section) {
			sec.Content = s.converter.ToBlocks(doc)
		})
	}
	open := &openEditor{ed: ed}
	s.editors[sectionID] = open
	return open, nil
}

func (s *Session) Flush(ctx context.Context) error {
	return s.scheduler.Flush(ctx)
}

// Close saves pending edits and stops the scheduler.
func (s *Session) Close(ctx context.Context) error {
	var err error
	if s.scheduler.Pending() {
		err = s.scheduler.Flush(ctx)
	}
	s.scheduler.Close()
	return err
}

// session returns the open session of ownerID, opening it from persistence
// when needed. Expired sessions are closed on the way.
func (s *Service) session(ctx context.Context, ownerID string) (*Session, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	s.closeExpired(ctx)

	if sess, ok := s.liveSession(ownerID); ok {
		return sess, nil
	}
	sections, err := s.loadPersisted(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if rec, ok := s.sessions[ownerID]; ok {
		rec.expiresAt = s.now().Add(s.sessionTTL)
		s.sessions[ownerID] = rec
		return rec.session, nil
	}
	sess := NewSession(ownerID, sections, s, autosave.Config{Delay: s.cfg.AutosaveDelay}, s.now, s.log)
	s.sessions[ownerID] = sessionRecord{session: sess, expiresAt: s.now().Add(s.sessionTTL)}
	s.log.Debug().Str("owner", ownerID).Int("sections", len(sections)).Msg("editing session opened")
	return sess, nil
}

func (s *Service) liveSession(ownerID string) (*Session, bool) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	rec, ok := s.sessions[ownerID]
	if !ok || s.now().After(rec.expiresAt) {
		return nil, false
	}
	rec.expiresAt = s.now().Add(s.sessionTTL)
	s.sessions[ownerID] = rec
	return rec.session, true
}

func (s *Service) closeSession(ctx context.Context, ownerID string) {
	s.sessionMu.Lock()
	rec, ok := s.sessions[ownerID]
	delete(s.sessions, ownerID)
	s.sessionMu.Unlock()
	if ok {
		if err := rec.session.Close(ctx); err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("final save failed")
		}
	}
}

func (s *Service) closeExpired(ctx context.Context) {
	now := s.now()
	s.sessionMu.Lock()
	var expired []string
	for owner, rec := range s.sessions {
		if now.After(rec.expiresAt) {
			expired = append(expired, owner)
		}
	}
	s.sessionMu.Unlock()
	for _, owner := range expired {
		s.closeSession(ctx, owner)
	}
}

// CloseSessions saves and closes every open session. Called on shutdown.
func (s *Service) CloseSessions(ctx context.Context) {
	s.sessionMu.Lock()
	owners := make([]string, 0, len(s.sessions))
	for owner := range s.sessions {
		owners = append(owners, owner)
	}
	s.sessionMu.Unlock()
	for _, owner := range owners {
		s.closeSession(ctx, owner)
	}
}
