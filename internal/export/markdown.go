package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"arp/api/internal/blocks"
	"arp/api/internal/section"
)

type frontmatter struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Status     string   `yaml:"status"`
	Priority   string   `yaml:"priority"`
	Progress   int      `yaml:"progress"`
	AssignedTo string   `yaml:"assigned_to,omitempty"`
	DueDate    string   `yaml:"due_date,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	UpdatedAt  string   `yaml:"updated_at"`
}

// Markdown renders sec as Markdown with a YAML frontmatter block.
func Markdown(sec section.Section) ([]byte, error) {
	meta := frontmatter{
		ID:         sec.ID,
		Title:      sec.Title,
		Status:     string(sec.Status),
		Priority:   string(sec.Priority),
		Progress:   sec.Progress,
		AssignedTo: sec.AssignedTo,
		Tags:       sec.Tags,
		UpdatedAt:  sec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if sec.DueDate != nil {
		meta.DueDate = sec.DueDate.Format("2006-01-02")
	}
	head, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s\n", sec.Title)
	for _, b := range sec.Content {
		if md := blockMarkdown(b); md != "" {
			buf.WriteString("\n")
			buf.WriteString(md)
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

func blockMarkdown(b blocks.Block) string {
	switch b.Type {
	case blocks.TypeHeading:
		// The section title is the h1; block headings shift down one level.
		return strings.Repeat("#", blocks.ClampLevel(b.Data.Level)+1) + " " + b.Data.Text
	case blocks.TypeList:
		lines := make([]string, 0, len(b.Data.Items))
		for i, item := range b.Data.Items {
			if b.Data.Style == blocks.ListOrdered {
				lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
			} else {
				lines = append(lines, "- "+item)
			}
		}
		return strings.Join(lines, "\n")
	case blocks.TypeQuote:
		lines := strings.Split(b.Data.Text, "\n")
		if b.Data.Caption != "" {
			lines = append(lines, "", "-- "+b.Data.Caption)
		}
		for i, line := range lines {
			lines[i] = strings.TrimRight("> "+line, " ")
		}
		return strings.Join(lines, "\n")
	case blocks.TypeCode:
		return "```" + b.Data.Language + "\n" + b.Data.Code + "\n```"
	case blocks.TypeDivider:
		return "---"
	default:
		return b.Data.Text
	}
}
