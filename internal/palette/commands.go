package palette

import (
	"context"
	"errors"
	"strings"

	"arp/api/internal/ai"
	"arp/api/internal/collab"
	"arp/api/internal/doctree"
	"arp/api/internal/nodes"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrDisposed       = errors.New("palette disposed")
	ErrNoGenerator    = errors.New("no text generator configured")
	ErrEmptyResponse  = errors.New("empty response from text generator")
)

// SummaryPlaceholder is inserted by summarize when there is nothing to
// summarize.
const SummaryPlaceholder = "Summary: select some text and run summarize again."

func noticeFor(err error) string {
	var aiErr *ai.Error
	switch {
	case errors.Is(err, ErrInvalidDate):
		return "That date could not be understood."
	case errors.Is(err, ErrNoGenerator):
		return "The assistant is not configured."
	case errors.Is(err, ErrEmptyResponse):
		return "The assistant returned an empty reply."
	case errors.Is(err, ErrUnknownCommand):
		return "Unknown command."
	case errors.As(err, &aiErr), errors.Is(err, context.DeadlineExceeded):
		return ai.UserMessage(err)
	}
	return "The command could not be completed."
}

func (p *Palette) buildCommands() []Command {
	cmd := func(id, label, desc string, fam Family, run func(context.Context) error) Command {
		return Command{ID: id, Label: label, Description: desc, Family: fam, run: run}
	}
	return []Command{
		cmd("paragraph", "Text", "Plain paragraph", FamilyFormatting, p.format(p.ed.SetParagraph, doctree.Paragraph())),
		cmd("heading1", "Heading 1", "Large section heading", FamilyFormatting, p.heading(1)),
		cmd("heading2", "Heading 2", "Medium section heading", FamilyFormatting, p.heading(2)),
		cmd("heading3", "Heading 3", "Small section heading", FamilyFormatting, p.heading(3)),
		cmd("bullet-list", "Bullet list", "Unordered list of items", FamilyFormatting,
			p.format(func() bool { return p.ed.ToggleList(false) }, doctree.BulletList(doctree.ListItem(doctree.Paragraph())))),
		cmd("numbered-list", "Numbered list", "Ordered list of items", FamilyFormatting,
			p.format(func() bool { return p.ed.ToggleList(true) }, doctree.OrderedList(doctree.ListItem(doctree.Paragraph())))),
		cmd("quote", "Quote", "Block quotation", FamilyFormatting, p.format(p.ed.ToggleBlockquote, doctree.Blockquote(doctree.Paragraph()))),
		cmd("divider", "Divider", "Horizontal rule", FamilyFormatting, p.format(p.ed.SetHorizontalRule, doctree.HorizontalRule())),
		cmd("link", "Link", "Link the selection to a URL", FamilyFormatting, p.link),
		cmd("image", "Image", "Embed an image by URL", FamilyFormatting, p.image),

		cmd("ai-summarize", "Summarize", "Summarize the selected text with AI", FamilyAI, p.summarize),
		cmd("ai-improve", "Improve writing", "Rewrite the selection for clarity with AI", FamilyAI, p.rewrite(ai.ImprovePrompt)),
		cmd("ai-outline", "Generate outline", "Turn the selection into a bullet outline with AI", FamilyAI, p.outline),
		cmd("ai-generate", "Generate", "Write new text from an instruction with AI", FamilyAI, p.generate),

		cmd("status", "Status", "Insert a status label", FamilyMetadata, p.status),
		cmd("priority", "Priority", "Insert a priority label", FamilyMetadata, p.priority),
		cmd("due-date", "Due date", "Insert a due date chip", FamilyMetadata, p.dueDate),
		cmd("assignee", "Assignee", "Mention the person responsible", FamilyMetadata, p.assignee),
		cmd("notification", "Notification", "Link a notification", FamilyMetadata, p.notification),
		cmd("progress", "Progress", "Track progress of a task or list", FamilyMetadata, p.progress),
	}
}

// format applies a structural toggle at the saved caret and falls back to
// inserting fallback as a new block when the toggle is rejected.
func (p *Palette) format(toggle func() bool, fallback doctree.Node) func(context.Context) error {
	return func(context.Context) error {
		p.guard.Restore(p.ed)
		if !toggle() {
			p.ed.InsertBlock(doctree.Clone(fallback))
		}
		return nil
	}
}

func (p *Palette) heading(level int) func(context.Context) error {
	return p.format(func() bool { return p.ed.ToggleHeading(level) }, doctree.Heading(level))
}

func (p *Palette) link(ctx context.Context) error {
	p.ed.Blur()
	href, ok := p.dialogs.Link(ctx)
	if p.disposed.Load() {
		return nil
	}
	p.guard.Restore(p.ed)
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return nil
	}
	if p.ed.SetLink(href) {
		return nil
	}
	text := doctree.TextNode(href, doctree.Link(href))
	if !p.ed.InsertInline(text) {
		p.ed.InsertBlock(doctree.Paragraph(text))
	}
	return nil
}

func (p *Palette) image(ctx context.Context) error {
	p.ed.Blur()
	src, alt, ok := p.dialogs.Image(ctx)
	if p.disposed.Load() {
		return nil
	}
	p.guard.Restore(p.ed)
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return nil
	}
	if !p.ed.SetImage(src, alt) {
		p.ed.InsertBlock(doctree.Paragraph(doctree.Image(src, alt)))
	}
	return nil
}

// source returns the text an assisted command works on and leaves it
// selected: the selection, or the enclosing textblock when the selection is
// collapsed. It reports false when the editor had no selection at all.
func (p *Palette) source() (string, bool) {
	p.guard.Restore(p.ed)
	if _, ok := p.guard.Saved(); !ok {
		return "", false
	}
	if text := p.ed.SelectedText(); strings.TrimSpace(text) != "" {
		return text, true
	}
	if strings.TrimSpace(p.ed.EnclosingText()) == "" || !p.ed.SelectEnclosing() {
		return "", true
	}
	p.guard.Save(p.ed)
	return p.ed.SelectedText(), true
}

// ask sends prompt and waits for the reply. A reply arriving after Dispose
// reports ok=false so the caller leaves the editor alone.
func (p *Palette) ask(ctx context.Context, prompt string) (string, bool, error) {
	if p.gen == nil {
		return "", false, ErrNoGenerator
	}
	p.ed.Blur()
	resp, err := p.gen.Chat(ctx, ai.ChatRequest{Message: prompt})
	if p.disposed.Load() {
		return "", false, nil
	}
	p.guard.Restore(p.ed)
	if err != nil {
		return "", false, err
	}
	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return "", false, ErrEmptyResponse
	}
	return text, true, nil
}

func (p *Palette) summarize(ctx context.Context) error {
	text, had := p.source()
	if !had || text == "" {
		p.ed.InsertBlock(doctree.Blockquote(doctree.Paragraph(doctree.TextNode(SummaryPlaceholder))))
		return nil
	}
	summary, ok, err := p.ask(ctx, ai.SummarizePrompt(text))
	if err != nil || !ok {
		return err
	}
	return p.ed.ReplaceSelection(summary)
}

func (p *Palette) rewrite(prompt func(string) string) func(context.Context) error {
	return func(ctx context.Context) error {
		text, _ := p.source()
		if text == "" {
			p.notify(LevelInfo, "Select some text first.")
			return nil
		}
		out, ok, err := p.ask(ctx, prompt(text))
		if err != nil || !ok {
			return err
		}
		return p.ed.ReplaceSelection(out)
	}
}

func (p *Palette) outline(ctx context.Context) error {
	text, _ := p.source()
	if text == "" {
		p.notify(LevelInfo, "Select some text first.")
		return nil
	}
	out, ok, err := p.ask(ctx, ai.OutlinePrompt(text))
	if err != nil || !ok {
		return err
	}
	lines := ai.OutlineItems(out)
	if len(lines) == 0 {
		return ErrEmptyResponse
	}
	items := make([]doctree.Node, 0, len(lines))
	for _, line := range lines {
		items = append(items, doctree.ListItem(doctree.Paragraph(doctree.TextNode(line))))
	}
	return p.ed.ReplaceSelectionWithBlock(doctree.BulletList(items...))
}

func (p *Palette) generate(ctx context.Context) error {
	p.ed.Blur()
	instruction, ok := p.dialogs.Prompt(ctx)
	if p.disposed.Load() {
		return nil
	}
	p.guard.Restore(p.ed)
	if !ok || strings.TrimSpace(instruction) == "" {
		return nil
	}
	surrounding := p.ed.SelectedText()
	if surrounding == "" {
		surrounding = p.ed.EnclosingText()
	}
	out, ok, err := p.ask(ctx, ai.GeneratePrompt(instruction, surrounding))
	if err != nil || !ok {
		return err
	}
	return p.ed.ReplaceSelection(out)
}

// insert re-parses a through the registry and places it at the saved caret.
// Inline nodes that cannot go inline are wrapped in a paragraph.
func (p *Palette) insert(a nodes.Attrs) error {
	parsed, err := nodes.Parse(a.Kind(), a.Map())
	if err != nil {
		return err
	}
	p.guard.Restore(p.ed)
	n := nodes.ToNode(parsed)
	if !nodes.IsInline(n.Type) {
		p.ed.InsertBlock(n)
		return nil
	}
	if !p.ed.InsertInline(n) {
		p.ed.InsertBlock(doctree.Paragraph(n))
	}
	return nil
}

// dialog blurs the editor, runs ask and reports whether to go on inserting.
// A cancelled dialog puts the caret back where it was.
func dialog[T any](p *Palette, ask func() (T, bool)) (T, bool) {
	p.ed.Blur()
	v, ok := ask()
	if p.disposed.Load() {
		return v, false
	}
	if !ok {
		p.guard.Restore(p.ed)
	}
	return v, ok
}

func (p *Palette) status(ctx context.Context) error {
	a, ok := dialog(p, func() (nodes.StatusAttrs, bool) { return p.dialogs.Status(ctx) })
	if !ok {
		return nil
	}
	return p.insert(a)
}

func (p *Palette) priority(ctx context.Context) error {
	a, ok := dialog(p, func() (nodes.PriorityAttrs, bool) { return p.dialogs.Priority(ctx) })
	if !ok {
		return nil
	}
	return p.insert(a)
}

func (p *Palette) dueDate(ctx context.Context) error {
	input, ok := dialog(p, func() (string, bool) { return p.dialogs.DueDate(ctx) })
	if !ok {
		return nil
	}
	date, err := p.ResolveDate(input, p.now())
	if err != nil {
		p.guard.Restore(p.ed)
		return err
	}
	return p.insert(nodes.DueDateAttrs{Date: date})
}

func (p *Palette) assignee(ctx context.Context) error {
	users := []collab.User{}
	if p.users != nil {
		list, err := p.users.SearchUsers(ctx, "")
		if err != nil {
			p.log.Warn().Err(err).Msg("user directory unavailable")
			p.notify(LevelError, "Could not load users.")
		} else {
			users = list
		}
	}
	if p.disposed.Load() {
		return nil
	}
	a, ok := dialog(p, func() (nodes.AssigneeAttrs, bool) { return p.dialogs.Assignee(ctx, users) })
	if !ok {
		return nil
	}
	return p.insert(a)
}

func (p *Palette) notification(ctx context.Context) error {
	list := []collab.Notification{}
	if p.notifications != nil {
		fetched, err := p.notifications.FetchNotifications(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("notifications unavailable")
			p.notify(LevelError, "Could not load notifications.")
		} else {
			list = fetched
		}
	}
	if p.disposed.Load() {
		return nil
	}
	a, ok := dialog(p, func() (nodes.NotificationAttrs, bool) { return p.dialogs.Notification(ctx, list) })
	if !ok {
		return nil
	}
	return p.insert(a)
}

func (p *Palette) progress(ctx context.Context) error {
	tasks := collab.DecodeTasks(nil)
	if p.tasks != nil {
		fetched, err := p.tasks.FetchTasks(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("tasks unavailable")
			p.notify(LevelError, "Could not load tasks.")
		} else {
			tasks = fetched
		}
	}
	if p.disposed.Load() {
		return nil
	}
	a, ok := dialog(p, func() (nodes.ProgressAttrs, bool) { return p.dialogs.Progress(ctx, tasks) })
	if !ok {
		return nil
	}
	return p.insert(a)
}
