// Package section holds the ARP section model: a task-like record whose
// content is a block list, plus the defensive loader for persisted sections.
package section

import (
	"time"

	"arp/api/internal/blocks"
	"arp/api/internal/util"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Asset is a file attached to a section.
type Asset struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Type       string     `json:"type,omitempty"`
	Size       int64      `json:"size,omitempty"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
}

type Comment struct {
	ID        string     `json:"id"`
	Author    string     `json:"author,omitempty"`
	Text      string     `json:"text"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Section is one ARP section. Slice fields are never nil and every optional
// date is either a valid time or nil.
type Section struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Content            []blocks.Block `json:"content"`
	Assets             []Asset        `json:"assets"`
	RelatedBookmarkIDs []string       `json:"relatedBookmarkIds"`
	DueDate            *time.Time     `json:"dueDate,omitempty"`
	AssignedTo         string         `json:"assignedTo,omitempty"`
	Priority           Priority       `json:"priority"`
	Status             Status         `json:"status"`
	Progress           int            `json:"progress"`
	Tags               []string       `json:"tags"`
	EstimatedHours     *float64       `json:"estimatedHours,omitempty"`
	ActualHours        *float64       `json:"actualHours,omitempty"`
	Comments           []Comment      `json:"comments"`
	ReminderEnabled    bool           `json:"reminderEnabled"`
	ReminderDate       *time.Time     `json:"reminderDate,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// New returns an empty section with default values stamped at now.
func New(title string, now time.Time) Section {
	return Section{
		ID:                 util.NewID("sec"),
		Title:              title,
		Content:            []blocks.Block{},
		Assets:             []Asset{},
		RelatedBookmarkIDs: []string{},
		Priority:           PriorityMedium,
		Status:             StatusNotStarted,
		Tags:               []string{},
		Comments:           []Comment{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone returns a deep copy of s.
func Clone(s Section) Section {
	out := s
	out.Content = append([]blocks.Block{}, s.Content...)
	for i := range out.Content {
		if items := s.Content[i].Data.Items; items != nil {
			out.Content[i].Data.Items = append([]string{}, items...)
		}
	}
	out.Assets = append([]Asset{}, s.Assets...)
	for i := range out.Assets {
		out.Assets[i].UploadedAt = cloneTime(s.Assets[i].UploadedAt)
	}
	out.RelatedBookmarkIDs = append([]string{}, s.RelatedBookmarkIDs...)
	out.Tags = append([]string{}, s.Tags...)
	out.Comments = append([]Comment{}, s.Comments...)
	for i := range out.Comments {
		out.Comments[i].CreatedAt = cloneTime(s.Comments[i].CreatedAt)
	}
	out.DueDate = cloneTime(s.DueDate)
	out.ReminderDate = cloneTime(s.ReminderDate)
	out.EstimatedHours = cloneFloat(s.EstimatedHours)
	out.ActualHours = cloneFloat(s.ActualHours)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// ensureArrays restores the non-nil slice invariant after a caller mutation.
func ensureArrays(s *Section) {
	if s.Content == nil {
		s.Content = []blocks.Block{}
	}
	if s.Assets == nil {
		s.Assets = []Asset{}
	}
	if s.RelatedBookmarkIDs == nil {
		s.RelatedBookmarkIDs = []string{}
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	if s.Comments == nil {
		s.Comments = []Comment{}
	}
}

// DueReminders returns the sections whose reminder is enabled and due at now,
// skipping completed and cancelled work.
func DueReminders(sections []Section, now time.Time) []Section {
	var due []Section
	for _, s := range sections {
		if !s.ReminderEnabled || s.ReminderDate == nil || s.ReminderDate.After(now) {
			continue
		}
		if s.Status == StatusCompleted || s.Status == StatusCancelled {
			continue
		}
		due = append(due, s)
	}
	return due
}
