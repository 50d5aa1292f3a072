// Package nodes defines the atomic metadata nodes that can be embedded in a
// section document: status, priority, due date, assignee, notification and
// progress. Each node keeps all of its state in attributes.
package nodes

// Kind is the document node type name of an atomic node.
type Kind string

const (
	KindStatus       Kind = "statusLabel"
	KindPriority     Kind = "priorityLabel"
	KindDueDate      Kind = "dueDateChip"
	KindAssignee     Kind = "assigneeChip"
	KindNotification Kind = "notificationBadge"
	KindProgress     Kind = "progressBlock"
)

// Kinds lists every atomic node kind in palette order.
var Kinds = []Kind{KindStatus, KindPriority, KindDueDate, KindAssignee, KindNotification, KindProgress}

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusCancelled  Status = "cancelled"
)

var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// LinkType is what a progress block points at.
type LinkType string

const (
	LinkNone LinkType = ""
	LinkTask LinkType = "task"
	LinkList LinkType = "list"
)

// Attrs is the attribute record of one atomic node. The concrete types below
// are the only implementations.
type Attrs interface {
	Kind() Kind
	// Map returns the persisted attribute map. Absent optional values are nil.
	Map() map[string]any
}

type StatusAttrs struct {
	Status Status
}

type PriorityAttrs struct {
	Priority Priority
}

// DueDateAttrs holds a calendar date in YYYY-MM-DD form; "" means no date.
type DueDateAttrs struct {
	Date string
}

// AssigneeAttrs is either empty or carries both ID and Name.
type AssigneeAttrs struct {
	ID     string
	Name   string
	Avatar string
}

type NotificationAttrs struct {
	ID    string
	Title string
}

// ProgressAttrs tracks completion of a task or list. LinkID is only kept when
// LinkType is set.
type ProgressAttrs struct {
	Progress    int
	Title       string
	Description string
	LinkType    LinkType
	LinkID      string
}

func (StatusAttrs) Kind() Kind       { return KindStatus }
func (PriorityAttrs) Kind() Kind     { return KindPriority }
func (DueDateAttrs) Kind() Kind      { return KindDueDate }
func (AssigneeAttrs) Kind() Kind     { return KindAssignee }
func (NotificationAttrs) Kind() Kind { return KindNotification }
func (ProgressAttrs) Kind() Kind     { return KindProgress }

func (a StatusAttrs) Map() map[string]any {
	return map[string]any{"status": string(a.Status)}
}

func (a PriorityAttrs) Map() map[string]any {
	return map[string]any{"priority": string(a.Priority)}
}

func (a DueDateAttrs) Map() map[string]any {
	return map[string]any{"date": nullable(a.Date)}
}

func (a AssigneeAttrs) Map() map[string]any {
	return map[string]any{"id": nullable(a.ID), "name": nullable(a.Name), "avatar": nullable(a.Avatar)}
}

func (a NotificationAttrs) Map() map[string]any {
	return map[string]any{"id": nullable(a.ID), "title": nullable(a.Title)}
}

func (a ProgressAttrs) Map() map[string]any {
	return map[string]any{
		"progress":    a.Progress,
		"title":       a.Title,
		"description": a.Description,
		"linkType":    nullable(string(a.LinkType)),
		"linkId":      nullable(a.LinkID),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
