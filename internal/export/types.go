// Package export renders ARP sections as HTML, PDF, DOCX and Markdown.
package export

import (
	"errors"
	"strings"
)

type Format string

const (
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "md"
)

// ParseFormat maps a query value to a Format. "markdown" is accepted for md.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatPDF, FormatDOCX, FormatMarkdown:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	case "":
		return FormatHTML, nil
	}
	return "", ErrUnsupportedFormat
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
