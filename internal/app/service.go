package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arp/api/internal/ai"
	"arp/api/internal/autosave"
	"arp/api/internal/blocks"
	"arp/api/internal/collab"
	"arp/api/internal/config"
	"arp/api/internal/convert"
	"arp/api/internal/doctree"
	"arp/api/internal/editor"
	"arp/api/internal/export"
	"arp/api/internal/history"
	"arp/api/internal/palette"
	"arp/api/internal/search"
	"arp/api/internal/section"
	"arp/api/internal/store"
)

type dataStore interface {
	SaveSections(ctx context.Context, ownerID string, sections []section.Section) error
	LoadSectionsRaw(ctx context.Context, ownerID string) (json.RawMessage, error)
	Ping(ctx context.Context) error
}

type sectionCache interface {
	GetSections(ctx context.Context, ownerID string) (json.RawMessage, bool, error)
	PutSections(ctx context.Context, ownerID string, payload json.RawMessage) error
	Invalidate(ctx context.Context, ownerID string) error
}

type historyService interface {
	Record(ownerID string, sections []section.Section, author, message string) (history.Commit, error)
	List(ownerID string, limit int) ([]history.Commit, error)
	Load(ownerID, hash string) ([]section.Section, error)
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexSections(ownerID string, sections, removed []section.Section)
}

type assetService interface {
	Upload(ctx context.Context, ownerID, sectionID, name, contentType string, r io.Reader, size int64) (section.Asset, error)
}

// Deps are the collaborators of the service. Store is required; every other
// collaborator is optional and the features that need it report
// FEATURE_UNAVAILABLE when it is missing.
type Deps struct {
	Store         dataStore
	Cache         sectionCache
	History       historyService
	Search        searchService
	Assets        assetService
	Generator     ai.Generator
	Tasks         collab.TaskSource
	Users         collab.UserDirectory
	Notifications collab.NotificationSource
	Logger        zerolog.Logger
}

type sessionRecord struct {
	session   *Session
	expiresAt time.Time
}

type Service struct {
	cfg           config.Config
	store         dataStore
	cache         sectionCache
	history       historyService
	search        searchService
	assets        assetService
	gen           ai.Generator
	tasks         collab.TaskSource
	users         collab.UserDirectory
	notifications collab.NotificationSource
	export        *export.Service
	converter     *convert.Converter
	log           zerolog.Logger
	now           func() time.Time

	sessionTTL time.Duration
	sessionMu  sync.Mutex
	sessions   map[string]sessionRecord
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:           cfg,
		store:         deps.Store,
		cache:         deps.Cache,
		history:       deps.History,
		search:        deps.Search,
		assets:        deps.Assets,
		gen:           deps.Generator,
		tasks:         deps.Tasks,
		users:         deps.Users,
		notifications: deps.Notifications,
		export:        export.NewService(deps.Logger),
		converter:     convert.New(),
		log:           deps.Logger.With().Str("component", "app").Logger(),
		now:           time.Now,
		sessionTTL:    15 * time.Minute,
		sessions:      make(map[string]sessionRecord),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// LoadSections returns the normalized section list of ownerID. An owner
// without a stored list has no sections. A cached payload is preferred.
func (s *Service) LoadSections(ctx context.Context, ownerID string) ([]section.Section, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if rec, ok := s.liveSession(ownerID); ok {
		return rec.Sections(), nil
	}
	return s.loadPersisted(ctx, ownerID)
}

func (s *Service) loadPersisted(ctx context.Context, ownerID string) ([]section.Section, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.GetSections(ctx, ownerID)
		if err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("cache read failed")
		}
		if ok {
			return section.NormalizeListJSON(raw), nil
		}
	}

	raw, err := s.store.LoadSectionsRaw(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return []section.Section{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.PutSections(ctx, ownerID, raw); err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("cache write failed")
		}
	}
	return section.NormalizeListJSON(raw), nil
}

// SaveSections persists sections for ownerID. It satisfies autosave.Persister.
func (s *Service) SaveSections(ctx context.Context, ownerID string, sections []section.Section) error {
	return s.persist(ctx, ownerID, sections, "autosave", "")
}

// ReplaceSections normalizes raw, closes any open editing session of the owner
// and persists the result.
func (s *Service) ReplaceSections(ctx context.Context, ownerID string, raw any, author string) ([]section.Section, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if _, isList := raw.([]any); !isList {
		if m, isMap := raw.(map[string]any); !isMap || m["sections"] == nil {
			return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Expected a section list", nil)
		}
	}
	sections := section.NormalizeListAt(raw, s.now())
	s.closeSession(ctx, ownerID)
	if err := s.persist(ctx, ownerID, sections, author, ""); err != nil {
		return nil, err
	}
	return sections, nil
}

func (s *Service) persist(ctx context.Context, ownerID string, sections []section.Section, author, message string) error {
	var before []section.Section
	if s.search != nil {
		if prev, err := s.loadPersisted(ctx, ownerID); err == nil {
			before = prev
		}
	}

	if err := s.store.SaveSections(ctx, ownerID, sections); err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ownerID); err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("cache invalidate failed")
		}
	}
	if s.history != nil {
		if _, err := s.history.Record(ownerID, sections, author, message); err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("history commit failed")
		}
	}
	if s.search != nil {
		s.search.IndexSections(ownerID, sections, search.Removed(before, sections))
	}
	return nil
}

// Section returns one section of ownerID.
func (s *Service) Section(ctx context.Context, ownerID, sectionID string) (section.Section, error) {
	sections, err := s.LoadSections(ctx, ownerID)
	if err != nil {
		return section.Section{}, err
	}
	for _, sec := range sections {
		if sec.ID == sectionID {
			return sec, nil
		}
	}
	return section.Section{}, errSectionNotFound(sectionID)
}

// AddSection appends a new section through the owner's editing session.
func (s *Service) AddSection(ctx context.Context, ownerID, title string) (section.Section, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return section.Section{}, err
	}
	return sess.Add(title), nil
}

// UpdateSection applies a partial update to the metadata of a section.
func (s *Service) UpdateSection(ctx context.Context, ownerID, sectionID string, patch map[string]any) (section.Section, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return section.Section{}, err
	}
	updated, err := sess.Patch(sectionID, patch)
	if errors.Is(err, section.ErrNotFound) {
		return section.Section{}, errSectionNotFound(sectionID)
	}
	return updated, err
}

func (s *Service) DeleteSection(ctx context.Context, ownerID, sectionID string) error {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := sess.Remove(sectionID); errors.Is(err, section.ErrNotFound) {
		return errSectionNotFound(sectionID)
	} else if err != nil {
		return err
	}
	return nil
}

// FlushSession saves any pending edits of ownerID immediately.
func (s *Service) FlushSession(ctx context.Context, ownerID string) (SaveState, error) {
	sess, ok := s.liveSession(ownerID)
	if !ok {
		return SaveState{Status: string(autosave.StatusSaved)}, nil
	}
	err := sess.Flush(ctx)
	return sess.SaveState(), err
}

// CommandInput is a headless palette run against one section.
type CommandInput struct {
	Command   string          `json:"command"`
	Selection *editor.Range   `json:"selection,omitempty"`
	Answers   palette.Answers `json:"answers"`
	Flush     bool            `json:"flush"`
}

type Notice struct {
	Level   palette.Level `json:"level"`
	Message string        `json:"message"`
}

type CommandResult struct {
	Section section.Section `json:"section"`
	Doc     doctree.Node    `json:"doc"`
	HTML    string          `json:"html"`
	Notices []Notice        `json:"notices"`
	Save    SaveState       `json:"save"`
}

// Commands lists the palette commands matching query.
func (s *Service) Commands(query string) []palette.Command {
	p := palette.New(palette.Deps{Editor: editor.New(doctree.Doc()), Logger: s.log})
	defer p.Dispose()
	if strings.TrimSpace(query) == "" {
		return p.Commands()
	}
	return p.Filter(query)
}

// RunCommand executes a palette command in the section's editor. The caret is
// the given selection, or the end of the document when none is given.
// Command failures are reported as notices, not errors.
func (s *Service) RunCommand(ctx context.Context, ownerID, sectionID string, in CommandInput) (CommandResult, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return CommandResult{}, err
	}

	var notices []Notice
	var mu sync.Mutex
	notifier := palette.NotifierFunc(func(level palette.Level, message string) {
		mu.Lock()
		notices = append(notices, Notice{Level: level, Message: message})
		mu.Unlock()
	})

	doc, err := sess.Edit(sectionID, func(ed *editor.Editor) error {
		if in.Selection != nil {
			if err := ed.SetSelection(*in.Selection); err != nil {
				return domainError(http.StatusBadRequest, "INVALID_SELECTION", err.Error(), nil)
			}
		} else {
			ed.FocusEnd()
		}
		p := palette.New(palette.Deps{
			Editor:        ed,
			Generator:     s.gen,
			Dialogs:       palette.StaticDialogs(in.Answers),
			Tasks:         s.tasks,
			Users:         s.users,
			Notifications: s.notifications,
			Notifier:      notifier,
			Now:           s.now,
			Logger:        s.log,
		})
		defer p.Dispose()
		err := p.Execute(ctx, in.Command)
		if errors.Is(err, palette.ErrUnknownCommand) {
			return domainError(http.StatusNotFound, "UNKNOWN_COMMAND", "Unknown command", map[string]any{"command": in.Command})
		}
		return nil
	})
	if errors.Is(err, section.ErrNotFound) {
		return CommandResult{}, errSectionNotFound(sectionID)
	}
	if err != nil {
		return CommandResult{}, err
	}

	if in.Flush {
		if err := sess.Flush(ctx); err != nil {
			mu.Lock()
			notices = append(notices, Notice{Level: palette.LevelError, Message: "Saving failed. Your changes are kept and will be retried."})
			mu.Unlock()
		}
	}
	sec, ok := sess.Get(sectionID)
	if !ok {
		return CommandResult{}, errSectionNotFound(sectionID)
	}
	mu.Lock()
	defer mu.Unlock()
	if notices == nil {
		notices = []Notice{}
	}
	return CommandResult{
		Section: sec,
		Doc:     doc,
		HTML:    s.export.DocumentHTML(doc),
		Notices: notices,
		Save:    sess.SaveState(),
	}, nil
}

// Chat forwards a message to the configured text generator.
func (s *Service) Chat(ctx context.Context, message string) (ai.ChatResponse, error) {
	if s.gen == nil {
		return ai.ChatResponse{}, errFeatureUnavailable("The assistant")
	}
	if strings.TrimSpace(message) == "" {
		return ai.ChatResponse{}, errValidation("message is required")
	}
	resp, err := s.gen.Chat(ctx, ai.ChatRequest{Message: message})
	if err != nil {
		s.log.Warn().Err(err).Msg("chat failed")
		return ai.ChatResponse{}, domainError(http.StatusBadGateway, "AI_FAILED", ai.UserMessage(err), nil)
	}
	return resp, nil
}

func (s *Service) ToDoc(list []blocks.Block) doctree.Node {
	return s.converter.ToDoc(list)
}

func (s *Service) ToBlocks(doc doctree.Node) []blocks.Block {
	return s.converter.ToBlocks(doc)
}

func (s *Service) Export(ctx context.Context, ownerID, sectionID string, format export.Format) (*export.Result, error) {
	sec, err := s.Section(ctx, ownerID, sectionID)
	if err != nil {
		return nil, err
	}
	result, err := s.export.Export(ctx, sec, format)
	switch {
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return nil, errValidation(err.Error())
	case err != nil:
		return nil, fmt.Errorf("export section: %w", err)
	}
	return result, nil
}

// UploadAsset stores a file and attaches it to the section.
func (s *Service) UploadAsset(ctx context.Context, ownerID, sectionID, name, contentType string, r io.Reader, size int64) (section.Asset, error) {
	if s.assets == nil {
		return section.Asset{}, errFeatureUnavailable("Asset storage")
	}
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return section.Asset{}, err
	}
	if _, ok := sess.Get(sectionID); !ok {
		return section.Asset{}, errSectionNotFound(sectionID)
	}
	asset, err := s.assets.Upload(ctx, ownerID, sectionID, name, contentType, r, size)
	if err != nil {
		return section.Asset{}, domainError(http.StatusBadRequest, "UPLOAD_FAILED", err.Error(), nil)
	}
	if err := sess.AttachAsset(sectionID, asset); err != nil {
		return section.Asset{}, errSectionNotFound(sectionID)
	}
	return asset, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, errFeatureUnavailable("Search")
	}
	if strings.TrimSpace(q.Text) == "" {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(ctx, q), nil
}

func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]history.Commit, error) {
	if s.history == nil {
		return nil, errFeatureUnavailable("History")
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	return s.history.List(ownerID, limit)
}

// RestoreVersion persists the section list recorded at hash as the current one.
func (s *Service) RestoreVersion(ctx context.Context, ownerID, hash, author string) ([]section.Section, error) {
	if s.history == nil {
		return nil, errFeatureUnavailable("History")
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	sections, err := s.history.Load(ownerID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", map[string]any{"hash": hash})
	}
	s.closeSession(ctx, ownerID)
	if err := s.persist(ctx, ownerID, sections, author, "Restore "+hash); err != nil {
		return nil, err
	}
	return sections, nil
}
