package export

import (
	"context"
	"fmt"
	"html/template"

	"github.com/rs/zerolog"

	"arp/api/internal/convert"
	"arp/api/internal/doctree"
	"arp/api/internal/nodes"
	"arp/api/internal/section"
)

// Service provides section export functionality
type Service struct {
	converter *convert.Converter
	hooks     doctree.Hooks
	log       zerolog.Logger

	pdf  func(ctx context.Context, html, title string) (*Result, error)
	docx func(ctx context.Context, html, title string) (*Result, error)
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{
		converter: convert.New(),
		hooks:     nodes.HTMLHooks(),
		log:       logger.With().Str("component", "export").Logger(),
		pdf:       exportPDF,
		docx:      exportDOCX,
	}
}

// ContentHTML renders the block content of sec through the document tree.
func (s *Service) ContentHTML(sec section.Section) string {
	return s.DocumentHTML(s.converter.ToDoc(sec.Content))
}

// DocumentHTML renders an editor document, including metadata nodes.
func (s *Service) DocumentHTML(doc doctree.Node) string {
	return doctree.RenderHTML(doc, s.hooks)
}

// HTML renders sec as a standalone HTML page.
func (s *Service) HTML(sec section.Section) (string, error) {
	data := TemplateData{
		Title:       sec.Title,
		Status:      string(sec.Status),
		Priority:    string(sec.Priority),
		Progress:    sec.Progress,
		AssignedTo:  sec.AssignedTo,
		DueDate:     sec.DueDate,
		Tags:        sec.Tags,
		ContentHTML: template.HTML(s.ContentHTML(sec)),
		UpdatedAt:   sec.UpdatedAt,
	}
	for _, c := range sec.Comments {
		data.Comments = append(data.Comments, TemplateComment{Author: c.Author, Text: c.Text})
	}
	for _, a := range sec.Assets {
		data.Assets = append(data.Assets, TemplateAsset{Name: a.Name, URL: a.URL})
	}
	return RenderDocumentHTML(data)
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, sec section.Section, format Format) (*Result, error) {
	if format == FormatMarkdown {
		data, err := Markdown(sec)
		if err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		return &Result{
			Data:     data,
			Filename: sanitizeFilename(sec.Title) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	}

	html, err := s.HTML(sec)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch format {
	case FormatHTML:
		result = &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(sec.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}
	case FormatPDF:
		result, err = s.pdf(ctx, html, sec.Title)
	case FormatDOCX:
		result, err = s.docx(ctx, html, sec.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("section", sec.ID).Str("format", string(format)).Msg("export failed")
		return nil, err
	}
	return result, nil
}

// sanitizeFilename creates a safe filename from a title
func sanitizeFilename(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	if len(out) > 50 {
		out = out[:50]
	}
	if len(out) == 0 {
		return "section"
	}
	return string(out)
}
