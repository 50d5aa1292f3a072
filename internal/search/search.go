// Package search indexes section text for lookup by title, tags and body.
package search

import (
	"context"
	"strings"

	"arp/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	SectionID string `json:"sectionId"`
	OwnerID   string `json:"ownerId"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
}

// Query describes a search request. OwnerID and Status narrow the hits.
type Query struct {
	Text    string
	OwnerID string
	Status  string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// SectionRecord is the data we index for a section.
type SectionRecord struct {
	ID        string `json:"id"`
	SectionID string `json:"sectionId"`
	OwnerID   string `json:"ownerId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Tags      string `json:"tags"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	DueDate   string `json:"dueDate,omitempty"`
}

// RecordID is the index key of a section. Index keys only allow
// alphanumerics, hyphens and underscores.
func RecordID(ownerID, sectionID string) string {
	return sanitizeKey(ownerID) + "__" + sanitizeKey(sectionID)
}

func sanitizeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// RecordsFromRows converts the store's search projection into index records.
func RecordsFromRows(rows []store.SearchRow) []SectionRecord {
	out := make([]SectionRecord, 0, len(rows))
	for _, row := range rows {
		rec := SectionRecord{
			ID:        RecordID(row.OwnerID, row.SectionID),
			SectionID: row.SectionID,
			OwnerID:   row.OwnerID,
			Title:     row.Title,
			Body:      row.Body,
			Tags:      row.Tags,
			Status:    row.Status,
			Priority:  row.Priority,
		}
		if row.DueDate != nil {
			rec.DueDate = row.DueDate.Format("2006-01-02")
		}
		out = append(out, rec)
	}
	return out
}

const snippetRunes = 160

// Snippet returns a short excerpt of body around the first query term.
func Snippet(body, query string) string {
	runes := []rune(body)
	if len(runes) <= snippetRunes {
		return body
	}
	start := 0
	lower := strings.ToLower(body)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if idx := strings.Index(lower, term); idx >= 0 {
			start = len([]rune(lower[:idx])) - snippetRunes/4
			break
		}
	}
	if start < 0 {
		start = 0
	}
	end := start + snippetRunes
	if end > len(runes) {
		end = len(runes)
		start = end - snippetRunes
	}
	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}
