package palette

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arp/api/internal/ai"
	"arp/api/internal/collab"
	"arp/api/internal/doctree"
	"arp/api/internal/editor"
	"arp/api/internal/nodes"
)

func sampleDoc() doctree.Node {
	return doctree.Doc(
		doctree.Heading(1, doctree.TextNode("Title")),
		doctree.Paragraph(doctree.TextNode("hello world")),
		doctree.CodeBlock("go", "x := 1"),
	)
}

type fakeGen struct {
	calls    []string
	response string
	err      error
}

func (g *fakeGen) Chat(_ context.Context, req ai.ChatRequest) (ai.ChatResponse, error) {
	g.calls = append(g.calls, req.Message)
	if g.err != nil {
		return ai.ChatResponse{}, g.err
	}
	return ai.ChatResponse{Response: g.response}, nil
}

type notice struct {
	level   Level
	message string
}

type recorder struct {
	notices []notice
}

func (r *recorder) Notify(level Level, message string) {
	r.notices = append(r.notices, notice{level, message})
}

type failingUsers struct{}

func (failingUsers) SearchUsers(context.Context, string) ([]collab.User, error) {
	return nil, errors.New("directory down")
}

type staticUsers []collab.User

func (s staticUsers) SearchUsers(context.Context, string) ([]collab.User, error) {
	return s, nil
}

// movingDialogs answers from a preset but first moves the editor caret, as a
// user clicking around while a dialog is open would.
type movingDialogs struct {
	Dialogs
	ed *editor.Editor
}

func (d movingDialogs) Status(ctx context.Context) (nodes.StatusAttrs, bool) {
	_ = d.ed.SetSelection(editor.Cursor(editor.Pos{Path: []int{0}, Offset: 0}))
	return d.Dialogs.Status(ctx)
}

func newPalette(t *testing.T, deps Deps) (*Palette, *editor.Editor, *recorder) {
	t.Helper()
	ed, ok := deps.Editor.(*editor.Editor)
	if !ok || ed == nil {
		ed = editor.New(sampleDoc())
		deps.Editor = ed
	}
	rec := &recorder{}
	if deps.Notifier == nil {
		deps.Notifier = rec
	}
	deps.Logger = zerolog.Nop()
	return New(deps), ed, rec
}

func caret(t *testing.T, ed *editor.Editor, offset int, path ...int) {
	t.Helper()
	require.NoError(t, ed.SetSelection(editor.Cursor(editor.Pos{Path: path, Offset: offset})))
}

func ids(cmds []Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	p, _, _ := newPalette(t, Deps{})

	assert.Equal(t, []string{"heading1", "heading2", "heading3"}, ids(p.Filter("HEAD")))
	assert.Equal(t, []string{"ai-summarize", "ai-improve", "ai-outline", "ai-generate"}, ids(p.Filter("with ai")))
	assert.Len(t, p.Filter(""), DefaultMaxResults)
	assert.Empty(t, p.Filter("zzz"))
	assert.Len(t, p.Commands(), 20)

	small := New(Deps{Editor: editor.New(sampleDoc()), MaxResults: 2, Logger: zerolog.Nop()})
	assert.Len(t, small.Filter("a"), 2)
}

func TestKeyboardFlow(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{})
	ctx := context.Background()
	caret(t, ed, 5, 1)

	assert.False(t, p.HandleKey(ctx, Key{Rune: 'x'}), "closed palette ignores keys")
	require.True(t, p.HandleKey(ctx, Key{Rune: TriggerKey}))
	for _, r := range "head" {
		p.HandleKey(ctx, Key{Rune: r})
	}
	st := p.State()
	assert.True(t, st.Open)
	assert.Equal(t, "head", st.Query)
	require.Len(t, st.Results, 3)

	p.HandleKey(ctx, Key{Name: KeyDown})
	p.HandleKey(ctx, Key{Name: KeyDown})
	p.HandleKey(ctx, Key{Name: KeyUp})
	assert.Equal(t, 1, p.State().Highlight)

	p.HandleKey(ctx, Key{Name: KeyEnter})
	st = p.State()
	assert.False(t, st.Open)
	assert.Empty(t, st.Query)

	heading := ed.Doc().Content[1]
	assert.Equal(t, doctree.TypeHeading, heading.Type)
	assert.Equal(t, 2, heading.IntAttr("level", 0))
}

func TestHighlightWraps(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{})
	ctx := context.Background()
	caret(t, ed, 0, 1)
	p.HandleKey(ctx, Key{Rune: TriggerKey})
	p.HandleKey(ctx, Key{Rune: 'h'})
	p.HandleKey(ctx, Key{Rune: 'e'})
	p.HandleKey(ctx, Key{Rune: 'a'})
	p.HandleKey(ctx, Key{Rune: 'd'})
	p.HandleKey(ctx, Key{Name: KeyUp})
	assert.Equal(t, 2, p.State().Highlight)
}

func TestEscapeClosesWithoutSideEffects(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{})
	ctx := context.Background()
	caret(t, ed, 3, 1)
	before := ed.Doc()

	p.HandleKey(ctx, Key{Rune: TriggerKey})
	p.HandleKey(ctx, Key{Rune: 'q'})
	ed.Blur()
	p.HandleKey(ctx, Key{Name: KeyEscape})

	assert.False(t, p.State().Open)
	assert.Equal(t, before, ed.Doc())
	sel, ok := ed.Selection()
	require.True(t, ok)
	assert.Equal(t, editor.Pos{Path: []int{1}, Offset: 3}, sel.Head)
}

func TestBackspace(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{})
	ctx := context.Background()
	caret(t, ed, 0, 1)

	p.HandleKey(ctx, Key{Rune: TriggerKey})
	p.HandleKey(ctx, Key{Rune: 'é'})
	p.HandleKey(ctx, Key{Rune: 'x'})
	p.HandleKey(ctx, Key{Name: KeyBackspace})
	assert.Equal(t, "é", p.State().Query)
	p.HandleKey(ctx, Key{Name: KeyBackspace})
	assert.True(t, p.State().Open)
	p.HandleKey(ctx, Key{Name: KeyBackspace})
	assert.False(t, p.State().Open)
}

func TestFormattingFallsBackToInsert(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{})
	caret(t, ed, 2, 2)

	require.NoError(t, p.Execute(context.Background(), "heading2"))
	doc := ed.Doc()
	require.Len(t, doc.Content, 4)
	assert.Equal(t, doctree.TypeCodeBlock, doc.Content[2].Type)
	assert.Equal(t, doctree.TypeHeading, doc.Content[3].Type)
}

func TestMetadataInsertsAtCapturedCaret(t *testing.T) {
	ed := editor.New(sampleDoc())
	dialogs := movingDialogs{Dialogs: StaticDialogs(Answers{Status: "in_progress"}), ed: ed}
	p, _, _ := newPalette(t, Deps{Editor: ed, Dialogs: dialogs})
	caret(t, ed, 5, 1)

	require.NoError(t, p.Execute(context.Background(), "status"))

	para := ed.Doc().Content[1]
	require.Len(t, para.Content, 3)
	assert.Equal(t, "hello", para.Content[0].Text)
	assert.Equal(t, string(nodes.KindStatus), para.Content[1].Type)
	assert.Equal(t, "in_progress", para.Content[1].Attrs["status"])
	assert.Equal(t, " world", para.Content[2].Text)
	assert.Equal(t, "Title", doctree.InlineText(ed.Doc().Content[0]))
}

func TestMetadataReparsesDialogValues(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{Dialogs: StaticDialogs(Answers{Status: "bogus"})})
	caret(t, ed, 0, 1)
	require.NoError(t, p.Execute(context.Background(), "status"))
	assert.Equal(t, "not_started", ed.Doc().Content[1].Content[0].Attrs["status"])
}

func TestCancelledDialogInsertsNothing(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{})
	caret(t, ed, 5, 1)
	before := ed.Doc()
	require.NoError(t, p.Execute(context.Background(), "priority"))
	assert.Equal(t, before, ed.Doc())
	_, ok := ed.Selection()
	assert.True(t, ok, "caret is given back")
}

func TestInlineNodeInCodeBlockGetsOwnParagraph(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{Dialogs: StaticDialogs(Answers{Priority: "high"})})
	caret(t, ed, 1, 2)
	require.NoError(t, p.Execute(context.Background(), "priority"))
	doc := ed.Doc()
	require.Len(t, doc.Content, 4)
	assert.Equal(t, doctree.TypeParagraph, doc.Content[3].Type)
	assert.Equal(t, string(nodes.KindPriority), doc.Content[3].Content[0].Type)
}

func TestProgressIsABlock(t *testing.T) {
	answers := Answers{Progress: map[string]any{"progress": 142.6, "title": "Launch", "linkType": "task", "linkId": "t1"}}
	p, ed, _ := newPalette(t, Deps{Dialogs: StaticDialogs(answers)})
	caret(t, ed, 5, 1)
	require.NoError(t, p.Execute(context.Background(), "progress"))

	doc := ed.Doc()
	require.Len(t, doc.Content, 4)
	block := doc.Content[2]
	assert.Equal(t, string(nodes.KindProgress), block.Type)
	assert.Equal(t, 100, block.Attrs["progress"])
	assert.Equal(t, "t1", block.Attrs["linkId"])
}

func TestAssigneeListFailureStillOpensDialog(t *testing.T) {
	p, ed, rec := newPalette(t, Deps{
		Users:   failingUsers{},
		Dialogs: StaticDialogs(Answers{AssigneeID: "u9", AssigneeName: "Typed Name"}),
	})
	caret(t, ed, 0, 1)

	require.NoError(t, p.Execute(context.Background(), "assignee"))
	require.Len(t, rec.notices, 1)
	assert.Equal(t, LevelError, rec.notices[0].level)

	chip := ed.Doc().Content[1].Content[0]
	assert.Equal(t, string(nodes.KindAssignee), chip.Type)
	assert.Equal(t, "Typed Name", chip.Attrs["name"])
}

func TestAssigneeFromDirectory(t *testing.T) {
	users := staticUsers{{ID: "u1", Name: "Ana", AvatarURL: "https://a.example/ana.png"}}
	p, ed, _ := newPalette(t, Deps{Users: users, Dialogs: StaticDialogs(Answers{AssigneeID: "u1"})})
	caret(t, ed, 0, 1)
	require.NoError(t, p.Execute(context.Background(), "assignee"))
	chip := ed.Doc().Content[1].Content[0]
	assert.Equal(t, "Ana", chip.Attrs["name"])
	assert.Equal(t, "https://a.example/ana.png", chip.Attrs["avatar"])
}

func TestDueDateNaturalLanguage(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	p, ed, _ := newPalette(t, Deps{Now: func() time.Time { return now }, Dialogs: StaticDialogs(Answers{DueDate: "tomorrow"})})
	caret(t, ed, 0, 1)
	require.NoError(t, p.Execute(context.Background(), "due-date"))
	assert.Equal(t, "2025-01-11", ed.Doc().Content[1].Content[0].Attrs["date"])
}

func TestDueDateUnparseable(t *testing.T) {
	p, ed, rec := newPalette(t, Deps{Dialogs: StaticDialogs(Answers{DueDate: "banana"})})
	caret(t, ed, 0, 1)
	before := ed.Doc()
	err := p.Execute(context.Background(), "due-date")
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.Equal(t, before, ed.Doc())
	require.Len(t, rec.notices, 1)
	assert.Equal(t, "That date could not be understood.", rec.notices[0].message)
}

func TestResolveDate(t *testing.T) {
	p, _, _ := newPalette(t, Deps{})
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	got, err := p.ResolveDate("2025-03-04", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", got)

	got, err = p.ResolveDate("2025-03-04T10:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", got)

	_, err = p.ResolveDate("2025-13-40", now)
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = p.ResolveDate("  ", now)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestImproveReplacesEnclosingBlock(t *testing.T) {
	gen := &fakeGen{response: "Hello, world."}
	p, ed, _ := newPalette(t, Deps{Generator: gen})
	caret(t, ed, 3, 1)

	require.NoError(t, p.Execute(context.Background(), "ai-improve"))
	require.Len(t, gen.calls, 1)
	assert.Contains(t, gen.calls[0], "hello world")
	assert.Equal(t, "Hello, world.", doctree.InlineText(ed.Doc().Content[1]))
}

func TestSummarizeSelection(t *testing.T) {
	gen := &fakeGen{response: "greeting"}
	p, ed, _ := newPalette(t, Deps{Generator: gen})
	require.NoError(t, ed.SetSelection(editor.Range{
		Anchor: editor.Pos{Path: []int{1}, Offset: 0},
		Head:   editor.Pos{Path: []int{1}, Offset: 5},
	}))

	require.NoError(t, p.Execute(context.Background(), "ai-summarize"))
	assert.Contains(t, gen.calls[0], "hello")
	assert.NotContains(t, gen.calls[0], "world")
	assert.Equal(t, "greeting world", doctree.InlineText(ed.Doc().Content[1]))
}

func TestSummarizeWithoutSelectionInsertsPlaceholder(t *testing.T) {
	gen := &fakeGen{response: "unused"}
	p, ed, _ := newPalette(t, Deps{Generator: gen})

	require.NoError(t, p.Execute(context.Background(), "ai-summarize"))
	assert.Empty(t, gen.calls)
	doc := ed.Doc()
	last := doc.Content[len(doc.Content)-1]
	if last.Type == doctree.TypeParagraph && len(last.Content) == 0 {
		last = doc.Content[len(doc.Content)-2]
	}
	assert.Equal(t, doctree.TypeBlockquote, last.Type)
	assert.Equal(t, SummaryPlaceholder, doctree.PlainText(last))
}

func TestAIFailureLeavesContent(t *testing.T) {
	gen := &fakeGen{err: &ai.Error{Message: "quota exceeded"}}
	p, ed, rec := newPalette(t, Deps{Generator: gen})
	caret(t, ed, 3, 1)
	before := ed.Doc()

	err := p.Execute(context.Background(), "ai-outline")
	require.Error(t, err)
	assert.Equal(t, before, ed.Doc())
	require.Len(t, rec.notices, 1)
	assert.Equal(t, notice{LevelError, "quota exceeded"}, rec.notices[0])
	assert.False(t, p.State().Open)
}

func TestOutlineBuildsBulletList(t *testing.T) {
	gen := &fakeGen{response: "- Plan\n- Build\n- Ship"}
	p, ed, _ := newPalette(t, Deps{Generator: gen})
	caret(t, ed, 0, 1)

	require.NoError(t, p.Execute(context.Background(), "ai-outline"))
	list := ed.Doc().Content[1]
	require.Equal(t, doctree.TypeBulletList, list.Type)
	require.Len(t, list.Content, 3)
	assert.Equal(t, "Build", doctree.PlainText(list.Content[1]))
}

func TestGenerateUsesPrompt(t *testing.T) {
	gen := &fakeGen{response: "More text."}
	p, ed, _ := newPalette(t, Deps{Generator: gen, Dialogs: StaticDialogs(Answers{Prompt: "continue"})})
	caret(t, ed, 11, 1)

	require.NoError(t, p.Execute(context.Background(), "ai-generate"))
	assert.Contains(t, gen.calls[0], "continue")
	assert.Contains(t, gen.calls[0], "hello world")
	assert.Equal(t, "hello worldMore text.", doctree.InlineText(ed.Doc().Content[1]))
}

func TestMissingGenerator(t *testing.T) {
	p, ed, rec := newPalette(t, Deps{})
	caret(t, ed, 0, 1)
	assert.ErrorIs(t, p.Execute(context.Background(), "ai-improve"), ErrNoGenerator)
	require.Len(t, rec.notices, 1)
	assert.Equal(t, "The assistant is not configured.", rec.notices[0].message)
}

type blockingGen struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGen) Chat(context.Context, ai.ChatRequest) (ai.ChatResponse, error) {
	close(g.started)
	<-g.release
	return ai.ChatResponse{Response: "late"}, nil
}

func TestCompletionAfterDisposeIsIgnored(t *testing.T) {
	gen := &blockingGen{started: make(chan struct{}), release: make(chan struct{})}
	p, ed, rec := newPalette(t, Deps{Generator: gen})
	caret(t, ed, 3, 1)
	before := ed.Doc()

	done := make(chan error, 1)
	go func() { done <- p.Execute(context.Background(), "ai-improve") }()
	<-gen.started
	p.Dispose()
	close(gen.release)

	require.NoError(t, <-done)
	assert.Equal(t, before, ed.Doc())
	assert.Empty(t, rec.notices)
	assert.ErrorIs(t, p.Execute(context.Background(), "paragraph"), ErrDisposed)
}

func TestUnknownCommand(t *testing.T) {
	p, _, rec := newPalette(t, Deps{})
	assert.ErrorIs(t, p.Execute(context.Background(), "nope"), ErrUnknownCommand)
	assert.Empty(t, rec.notices)
}

type fakePositioner struct {
	caret Rect
	err   error
}

func (f fakePositioner) CaretRect() (Rect, error) { return f.caret, f.err }
func (f fakePositioner) SurfaceRect() Rect         { return Rect{Left: 100, Top: 200, Width: 600, Height: 400} }

func TestPlacement(t *testing.T) {
	p, ed, _ := newPalette(t, Deps{Positioner: fakePositioner{caret: Rect{Left: 10, Top: 20, Height: 16}}})
	caret(t, ed, 0, 1)
	p.Open()
	assert.Equal(t, Point{X: 10, Y: 40}, p.State().Position)

	p, ed, _ = newPalette(t, Deps{Positioner: fakePositioner{err: errors.New("hidden")}})
	caret(t, ed, 0, 1)
	p.Open()
	assert.Equal(t, Point{X: 116, Y: 240}, p.State().Position)
}
