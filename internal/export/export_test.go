package export

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"arp/api/internal/blocks"
	"arp/api/internal/doctree"
	"arp/api/internal/nodes"
	"arp/api/internal/section"
)

func sampleSection() section.Section {
	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	s := section.New("Launch <plan>", now)
	s.ID = "sec_1"
	s.Content = []blocks.Block{
		blocks.Heading("b1", "Goals", 2),
		blocks.Paragraph("b2", "Ship the beta"),
		blocks.List("b3", blocks.ListOrdered, "one", "two"),
		blocks.Quote("b4", "Less is more", "Mies"),
		blocks.Code("b5", "x := 1", "go"),
		blocks.Divider("b6"),
	}
	due := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s.DueDate = &due
	s.AssignedTo = "Avery"
	s.Tags = []string{"beta"}
	s.Progress = 40
	s.Status = section.StatusInProgress
	s.Comments = []section.Comment{{ID: "c1", Author: "Sam", Text: "ok"}}
	return s
}

func TestContentHTML(t *testing.T) {
	svc := NewService(zerolog.Nop())
	got := svc.ContentHTML(sampleSection())

	for _, want := range []string{
		"<h2>Goals</h2>",
		"<p>Ship the beta</p>",
		"<ol>\n<li><p>one</p>\n</li>",
		"<cite>Mies</cite>",
		`<pre><code class="language-go">x := 1</code></pre>`,
		"<hr>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ContentHTML() missing %q in:\n%s", want, got)
		}
	}
}

func TestDocumentHTMLRendersMetadataNodes(t *testing.T) {
	svc := NewService(zerolog.Nop())
	status, err := nodes.Parse(nodes.KindStatus, map[string]any{"status": "completed"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	doc := doctree.Doc(doctree.Paragraph(doctree.TextNode("state "), nodes.ToNode(status)))

	got := svc.DocumentHTML(doc)
	if !strings.Contains(got, `data-status="completed"`) || !strings.Contains(got, "Completed") {
		t.Fatalf("unexpected html: %s", got)
	}
}

func TestHTMLPage(t *testing.T) {
	svc := NewService(zerolog.Nop())
	page, err := svc.HTML(sampleSection())
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	for _, want := range []string{
		"<title>Launch &lt;plan&gt;</title>",
		"In progress",
		"Due May 1, 2025",
		`<span class="tag">beta</span>`,
		"<strong>Sam</strong>: ok",
		"<h2>Goals</h2>",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("HTML() missing %q", want)
		}
	}
}

func TestRenderDocumentHTMLEscapesFields(t *testing.T) {
	out, err := RenderDocumentHTML(TemplateData{
		Title:       "<script>",
		Status:      "not_started",
		Priority:    "low",
		ContentHTML: template.HTML("<p>trusted</p>"),
	})
	if err != nil {
		t.Fatalf("RenderDocumentHTML() error = %v", err)
	}
	if strings.Contains(out, "<title><script>") {
		t.Fatal("title was not escaped")
	}
	if !strings.Contains(out, "<p>trusted</p>") {
		t.Fatal("content html was escaped")
	}
	if strings.Contains(out, "Due ") {
		t.Fatal("expected no due date line")
	}
}

func TestMarkdown(t *testing.T) {
	data, err := Markdown(sampleSection())
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		t.Fatalf("expected frontmatter, got %q", text)
	}
	parts := strings.SplitN(text, "---\n", 3)
	if len(parts) != 3 {
		t.Fatalf("unexpected layout: %q", text)
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(parts[1]), &meta); err != nil {
		t.Fatalf("frontmatter is not yaml: %v", err)
	}
	if meta["id"] != "sec_1" || meta["status"] != "in_progress" || meta["due_date"] != "2025-05-01" {
		t.Fatalf("unexpected frontmatter: %v", meta)
	}

	for _, want := range []string{
		"# Launch <plan>\n",
		"\n### Goals\n",
		"\n1. one\n2. two\n",
		"> Less is more\n>\n> -- Mies",
		"```go\nx := 1\n```",
	} {
		if !strings.Contains(parts[2], want) {
			t.Errorf("Markdown() missing %q in:\n%s", want, parts[2])
		}
	}
}

func TestExportFormats(t *testing.T) {
	svc := NewService(zerolog.Nop())
	var gotHTML string
	svc.pdf = func(_ context.Context, html, title string) (*Result, error) {
		gotHTML = html
		return &Result{Data: []byte("%PDF"), Filename: sanitizeFilename(title) + ".pdf", MimeType: "application/pdf"}, nil
	}
	svc.docx = func(context.Context, string, string) (*Result, error) {
		return nil, ErrDOCXDependencyMissing
	}
	ctx := context.Background()

	res, err := svc.Export(ctx, sampleSection(), FormatPDF)
	if err != nil {
		t.Fatalf("Export(pdf) error = %v", err)
	}
	if res.Filename != "Launch-plan.pdf" || !strings.Contains(gotHTML, "<h2>Goals</h2>") {
		t.Fatalf("unexpected pdf result: %+v", res)
	}

	res, err = svc.Export(ctx, sampleSection(), FormatHTML)
	if err != nil || res.MimeType != "text/html; charset=utf-8" {
		t.Fatalf("Export(html) = %+v, %v", res, err)
	}

	res, err = svc.Export(ctx, sampleSection(), FormatMarkdown)
	if err != nil || res.Filename != "Launch-plan.md" {
		t.Fatalf("Export(md) = %+v, %v", res, err)
	}

	if _, err := svc.Export(ctx, sampleSection(), FormatDOCX); !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Fatalf("expected docx dependency error, got %v", err)
	}
	if _, err := svc.Export(ctx, sampleSection(), Format("rtf")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatHTML, false},
		{"PDF", FormatPDF, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"rtf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "section"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"é", "%C3%A9"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			want := "data:text/html;charset=utf-8," + tt.expected
			if result := dataURL(tt.input); result != want {
				t.Errorf("dataURL(%q) = %q, want %q", tt.input, result, want)
			}
		})
	}
}
