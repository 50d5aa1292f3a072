package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate = template.Must(
	template.New("document.html").Funcs(template.FuncMap{
		"humanize": humanize,
		"formatDate": func(t *time.Time, layout string) string {
			if t == nil {
				return ""
			}
			return t.Format(layout)
		},
	}).ParseFS(templateFS, "templates/document.html"),
)

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title       string
	Status      string
	Priority    string
	Progress    int
	AssignedTo  string
	DueDate     *time.Time
	Tags        []string
	ContentHTML template.HTML
	Comments    []TemplateComment
	Assets      []TemplateAsset
	UpdatedAt   time.Time
}

type TemplateComment struct {
	Author string
	Text   string
}

type TemplateAsset struct {
	Name string
	URL  string
}

// RenderDocumentHTML renders the document template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
