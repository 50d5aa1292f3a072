// Package palette implements the in-document command palette: a slash-key
// menu of formatting, assisted-writing and metadata commands that insert into
// the editor at the caret the user had when the palette opened.
package palette

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/rs/zerolog"

	"arp/api/internal/ai"
	"arp/api/internal/collab"
	"arp/api/internal/doctree"
	"arp/api/internal/editor"
)

// TriggerKey opens the palette.
const TriggerKey = '/'

// DefaultMaxResults caps the filtered list.
const DefaultMaxResults = 10

// Editor is the editing surface the palette drives. *editor.Editor satisfies it.
type Editor interface {
	editor.Surface
	Blur()
	SelectedText() string
	EnclosingText() string
	SelectEnclosing() bool
	InsertInline(n doctree.Node) bool
	InsertBlock(n doctree.Node)
	ReplaceSelection(text string) error
	ReplaceSelectionWithBlock(n doctree.Node) error
	SetParagraph() bool
	ToggleHeading(level int) bool
	ToggleList(ordered bool) bool
	ToggleBlockquote() bool
	SetHorizontalRule() bool
	SetLink(href string) bool
	SetImage(src, alt string) bool
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// Family groups commands in the menu.
type Family string

const (
	FamilyFormatting Family = "formatting"
	FamilyAI         Family = "ai"
	FamilyMetadata   Family = "metadata"
)

// Command is one palette entry.
type Command struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Family      Family `json:"family"`

	run func(ctx context.Context) error
}

// Deps wires the palette to its collaborators. Only Editor is required;
// missing collaborators make the commands that need them report an error.
type Deps struct {
	Editor        Editor
	Generator     ai.Generator
	Dialogs       Dialogs
	Tasks         collab.TaskSource
	Users         collab.UserDirectory
	Notifications collab.NotificationSource
	Positioner    Positioner
	Notifier      Notifier
	Now           func() time.Time
	Logger        zerolog.Logger
	MaxResults    int
}

// Palette is the command menu for one editor.
type Palette struct {
	ed            Editor
	gen           ai.Generator
	dialogs       Dialogs
	tasks         collab.TaskSource
	users         collab.UserDirectory
	notifications collab.NotificationSource
	positioner    Positioner
	notifier      Notifier
	now           func() time.Time
	log           zerolog.Logger
	maxResults    int
	dates         *when.Parser

	guard    editor.Guard
	commands []Command
	disposed atomic.Bool

	mu        sync.Mutex
	open      bool
	query     string
	highlight int
	position  Point
}

func New(deps Deps) *Palette {
	p := &Palette{
		ed:            deps.Editor,
		gen:           deps.Generator,
		dialogs:       deps.Dialogs,
		tasks:         deps.Tasks,
		users:         deps.Users,
		notifications: deps.Notifications,
		positioner:    deps.Positioner,
		notifier:      deps.Notifier,
		now:           deps.Now,
		log:           deps.Logger.With().Str("component", "palette").Logger(),
		maxResults:    deps.MaxResults,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.maxResults <= 0 {
		p.maxResults = DefaultMaxResults
	}
	if p.dialogs == nil {
		p.dialogs = StaticDialogs(Answers{})
	}
	p.dates = when.New(nil)
	p.dates.Add(en.All...)
	p.dates.Add(common.All...)
	p.commands = p.buildCommands()
	return p
}

// Commands returns every command in menu order.
func (p *Palette) Commands() []Command {
	return append([]Command(nil), p.commands...)
}

// Filter returns the commands whose label or description contains query,
// ignoring case, capped at the result limit.
func (p *Palette) Filter(query string) []Command {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Command, 0, p.maxResults)
	for _, cmd := range p.commands {
		if len(out) == p.maxResults {
			break
		}
		if q == "" || strings.Contains(strings.ToLower(cmd.Label), q) || strings.Contains(strings.ToLower(cmd.Description), q) {
			out = append(out, cmd)
		}
	}
	return out
}

// State is a snapshot of the menu for display.
type State struct {
	Open      bool      `json:"open"`
	Query     string    `json:"query"`
	Highlight int       `json:"highlight"`
	Position  Point     `json:"position"`
	Results   []Command `json:"results"`
}

func (p *Palette) State() State {
	p.mu.Lock()
	st := State{Open: p.open, Query: p.query, Highlight: p.highlight, Position: p.position}
	p.mu.Unlock()
	if st.Open {
		st.Results = p.Filter(st.Query)
	}
	return st
}

// Open shows the palette at the caret and captures the selection.
func (p *Palette) Open() {
	if p.disposed.Load() {
		return
	}
	p.guard.Save(p.ed)
	pos := p.place()
	p.mu.Lock()
	p.open, p.query, p.highlight, p.position = true, "", 0, pos
	p.mu.Unlock()
}

// Close hides the palette and clears its query.
func (p *Palette) Close() {
	p.mu.Lock()
	p.open, p.query, p.highlight = false, "", 0
	p.mu.Unlock()
}

// Key is one keystroke. Name is set for special keys, Rune for printable ones.
type Key struct {
	Name string
	Rune rune
}

const (
	KeyEscape    = "Escape"
	KeyUp        = "ArrowUp"
	KeyDown      = "ArrowDown"
	KeyEnter     = "Enter"
	KeyBackspace = "Backspace"
)

// HandleKey routes a keystroke. It reports whether the palette consumed it.
func (p *Palette) HandleKey(ctx context.Context, k Key) bool {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()

	if !open {
		if k.Name == "" && k.Rune == TriggerKey {
			p.Open()
			return true
		}
		return false
	}

	switch k.Name {
	case KeyEscape:
		p.Close()
		p.guard.Restore(p.ed)
	case KeyUp, KeyDown:
		p.moveHighlight(k.Name == KeyDown)
	case KeyEnter:
		p.mu.Lock()
		query, idx := p.query, p.highlight
		p.mu.Unlock()
		results := p.Filter(query)
		if idx >= len(results) {
			p.Close()
			return true
		}
		_ = p.Execute(ctx, results[idx].ID)
	case KeyBackspace:
		p.mu.Lock()
		if p.query == "" {
			p.mu.Unlock()
			p.Close()
			p.guard.Restore(p.ed)
			return true
		}
		r := []rune(p.query)
		p.query, p.highlight = string(r[:len(r)-1]), 0
		p.mu.Unlock()
	case "":
		if unicode.IsPrint(k.Rune) {
			p.mu.Lock()
			p.query += string(k.Rune)
			p.highlight = 0
			p.mu.Unlock()
		}
	}
	return true
}

func (p *Palette) moveHighlight(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.Filter(p.query))
	if n == 0 {
		p.highlight = 0
		return
	}
	if down {
		p.highlight = (p.highlight + 1) % n
	} else {
		p.highlight = (p.highlight - 1 + n) % n
	}
}

// Execute runs the command with id. The palette is closed and its query
// cleared whether or not the command succeeds; failures are also reported to
// the notifier.
func (p *Palette) Execute(ctx context.Context, id string) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	p.guard.Save(p.ed)
	p.Close()

	cmd, ok := p.find(id)
	if !ok {
		return ErrUnknownCommand
	}
	err := cmd.run(ctx)
	if err != nil && !p.disposed.Load() {
		p.log.Warn().Err(err).Str("command", id).Msg("palette command failed")
		p.notify(LevelError, noticeFor(err))
	}
	return err
}

// Dispose detaches the palette. Commands still waiting on a collaborator
// finish without touching the editor.
func (p *Palette) Dispose() {
	p.disposed.Store(true)
	p.Close()
	p.guard.Clear()
}

func (p *Palette) find(id string) (Command, bool) {
	for _, cmd := range p.commands {
		if cmd.ID == id {
			return cmd, true
		}
	}
	return Command{}, false
}

func (p *Palette) notify(level Level, message string) {
	if p.notifier != nil {
		p.notifier.Notify(level, message)
	}
}
