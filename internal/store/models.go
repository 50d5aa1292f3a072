package store

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"arp/api/internal/blocks"
	"arp/api/internal/section"
)

var ErrNotFound = errors.New("not found")

// SectionDocument is the persisted section list of one owner.
type SectionDocument struct {
	OwnerID      string
	Payload      json.RawMessage
	SectionCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SearchRow is the denormalized, searchable projection of one section.
type SearchRow struct {
	OwnerID   string
	SectionID string
	Title     string
	Body      string
	Status    string
	Priority  string
	Tags      string
	DueDate   *time.Time
	UpdatedAt time.Time
}

// SearchRows projects sections into search rows. The body holds the block
// text followed by comment text.
func SearchRows(ownerID string, sections []section.Section) []SearchRow {
	rows := make([]SearchRow, 0, len(sections))
	for _, s := range sections {
		body := blocks.PlainText(s.Content)
		for _, c := range s.Comments {
			if text := strings.TrimSpace(c.Text); text != "" {
				body = strings.TrimSpace(body + "\n\n" + text)
			}
		}
		rows = append(rows, SearchRow{
			OwnerID:   ownerID,
			SectionID: s.ID,
			Title:     s.Title,
			Body:      body,
			Status:    string(s.Status),
			Priority:  string(s.Priority),
			Tags:      strings.Join(s.Tags, ", "),
			DueDate:   s.DueDate,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return rows
}

// ReminderEntry records a reminder email that went out.
type ReminderEntry struct {
	OwnerID      string
	SectionID    string
	ReminderDate time.Time
	Recipient    string
	SentAt       time.Time
}
