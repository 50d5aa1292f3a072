package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arp/api/internal/ai"
	"arp/api/internal/blocks"
	"arp/api/internal/config"
	"arp/api/internal/history"
	"arp/api/internal/search"
	"arp/api/internal/section"
	"arp/api/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	raw     map[string]json.RawMessage
	saves   int
	loads   int
	saveErr error
	pingFn  func(context.Context) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{raw: map[string]json.RawMessage{}}
}

func (f *fakeStore) SaveSections(_ context.Context, ownerID string, sections []section.Section) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	payload, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	f.raw[ownerID] = payload
	f.saves++
	return nil
}

func (f *fakeStore) LoadSectionsRaw(_ context.Context, ownerID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	raw, ok := f.raw[ownerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return raw, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) seed(ownerID string, sections ...section.Section) {
	payload, _ := json.Marshal(sections)
	f.mu.Lock()
	f.raw[ownerID] = payload
	f.mu.Unlock()
}

func (f *fakeStore) saved(ownerID string) ([]section.Section, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return section.NormalizeListJSON(f.raw[ownerID]), f.saves
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]json.RawMessage
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]json.RawMessage{}}
}

func (c *fakeCache) GetSections(_ context.Context, ownerID string) (json.RawMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[ownerID]
	return raw, ok, nil
}

func (c *fakeCache) PutSections(_ context.Context, ownerID string, payload json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ownerID] = payload
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, ownerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ownerID)
	c.invalidated++
	return nil
}

type recorded struct {
	ownerID  string
	sections []section.Section
	author   string
	message  string
}

type fakeHistory struct {
	mu       sync.Mutex
	records  []recorded
	versions map[string][]section.Section
}

func (h *fakeHistory) Record(ownerID string, sections []section.Section, author, message string) (history.Commit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, recorded{ownerID: ownerID, sections: sections, author: author, message: message})
	return history.Commit{Hash: "abc1234", Message: message, Author: author}, nil
}

func (h *fakeHistory) List(ownerID string, limit int) ([]history.Commit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	items := []history.Commit{}
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].ownerID == ownerID {
			items = append(items, history.Commit{Hash: "abc1234", Message: h.records[i].message, Author: h.records[i].author})
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (h *fakeHistory) Load(_ string, hash string) ([]section.Section, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sections, ok := h.versions[hash]
	if !ok {
		return nil, history.ErrNoHistory
	}
	return sections, nil
}

func (h *fakeHistory) last() (recorded, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return recorded{}, false
	}
	return h.records[len(h.records)-1], true
}

type fakeSearch struct {
	mu      sync.Mutex
	indexed []section.Section
	removed []section.Section
	queries []search.Query
}

func (s *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	return search.Response{
		Results: []search.Result{{ID: "owner-1__sec_1", SectionID: "sec_1", OwnerID: "owner-1", Title: "Launch"}},
		Total:   1,
		Query:   q.Text,
	}
}

func (s *fakeSearch) IndexSections(_ string, sections, removed []section.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = sections
	s.removed = removed
}

type fakeAssets struct {
	uploads int
}

func (a *fakeAssets) Upload(_ context.Context, ownerID, sectionID, name, contentType string, r io.Reader, _ int64) (section.Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return section.Asset{}, err
	}
	if len(data) == 0 {
		return section.Asset{}, errors.New("empty upload")
	}
	a.uploads++
	return section.Asset{ID: "ast_1", Name: name, Type: contentType, URL: "https://files.local/" + ownerID + "/" + sectionID + "/" + name}, nil
}

type fakeGenerator struct {
	reply string
	err   error
}

func (g *fakeGenerator) Chat(_ context.Context, req ai.ChatRequest) (ai.ChatResponse, error) {
	if g.err != nil {
		return ai.ChatResponse{}, g.err
	}
	return ai.ChatResponse{Response: g.reply + ": " + req.Message}, nil
}

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testSection(id, title string, content ...blocks.Block) section.Section {
	sec := section.New(title, testNow)
	sec.ID = id
	if content != nil {
		sec.Content = content
	}
	return sec
}

// newTestService builds a service whose autosave only runs on flush.
func newTestService(deps Deps) *Service {
	deps.Logger = zerolog.Nop()
	return New(config.Config{AutosaveDelay: time.Hour}, deps)
}
