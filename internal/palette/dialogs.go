package palette

import (
	"context"

	"arp/api/internal/collab"
	"arp/api/internal/nodes"
)

// Dialogs gathers command parameters from the user. Every method reports
// false when the user cancels. Implementations may block until the dialog
// closes; the palette blurs the editor before calling them.
type Dialogs interface {
	Status(ctx context.Context) (nodes.StatusAttrs, bool)
	Priority(ctx context.Context) (nodes.PriorityAttrs, bool)
	// DueDate returns the raw input: an ISO date or a phrase like "next friday".
	DueDate(ctx context.Context) (string, bool)
	Assignee(ctx context.Context, users []collab.User) (nodes.AssigneeAttrs, bool)
	Notification(ctx context.Context, notifications []collab.Notification) (nodes.NotificationAttrs, bool)
	Progress(ctx context.Context, tasks collab.TaskData) (nodes.ProgressAttrs, bool)
	Link(ctx context.Context) (string, bool)
	Image(ctx context.Context) (src, alt string, ok bool)
	Prompt(ctx context.Context) (string, bool)
}

// Answers are preset dialog values for headless command runs. An empty value
// behaves like a cancelled dialog.
type Answers struct {
	Status            string         `json:"status,omitempty"`
	Priority          string         `json:"priority,omitempty"`
	DueDate           string         `json:"dueDate,omitempty"`
	AssigneeID        string         `json:"assigneeId,omitempty"`
	AssigneeName      string         `json:"assigneeName,omitempty"`
	NotificationID    string         `json:"notificationId,omitempty"`
	NotificationTitle string         `json:"notificationTitle,omitempty"`
	Progress          map[string]any `json:"progress,omitempty"`
	Href              string         `json:"href,omitempty"`
	ImageSrc          string         `json:"imageSrc,omitempty"`
	ImageAlt          string         `json:"imageAlt,omitempty"`
	Prompt            string         `json:"prompt,omitempty"`
}

// StaticDialogs answers every dialog from a.
func StaticDialogs(a Answers) Dialogs {
	return staticDialogs{a: a}
}

type staticDialogs struct {
	a Answers
}

func (d staticDialogs) Status(context.Context) (nodes.StatusAttrs, bool) {
	if d.a.Status == "" {
		return nodes.StatusAttrs{}, false
	}
	return nodes.StatusAttrs{Status: nodes.Status(d.a.Status)}, true
}

func (d staticDialogs) Priority(context.Context) (nodes.PriorityAttrs, bool) {
	if d.a.Priority == "" {
		return nodes.PriorityAttrs{}, false
	}
	return nodes.PriorityAttrs{Priority: nodes.Priority(d.a.Priority)}, true
}

func (d staticDialogs) DueDate(context.Context) (string, bool) {
	return d.a.DueDate, d.a.DueDate != ""
}

// Assignee prefers the directory entry with the requested id and falls back
// to the supplied name.
func (d staticDialogs) Assignee(_ context.Context, users []collab.User) (nodes.AssigneeAttrs, bool) {
	if d.a.AssigneeID == "" {
		return nodes.AssigneeAttrs{}, false
	}
	for _, u := range users {
		if u.ID == d.a.AssigneeID {
			return nodes.AssigneeAttrs{ID: u.ID, Name: u.Name, Avatar: u.AvatarURL}, true
		}
	}
	if d.a.AssigneeName == "" {
		return nodes.AssigneeAttrs{}, false
	}
	return nodes.AssigneeAttrs{ID: d.a.AssigneeID, Name: d.a.AssigneeName}, true
}

func (d staticDialogs) Notification(_ context.Context, notifications []collab.Notification) (nodes.NotificationAttrs, bool) {
	if d.a.NotificationID == "" {
		return nodes.NotificationAttrs{}, false
	}
	for _, n := range notifications {
		if n.ID == d.a.NotificationID {
			return nodes.NotificationAttrs{ID: n.ID, Title: n.Title}, true
		}
	}
	return nodes.NotificationAttrs{ID: d.a.NotificationID, Title: d.a.NotificationTitle}, true
}

func (d staticDialogs) Progress(context.Context, collab.TaskData) (nodes.ProgressAttrs, bool) {
	if d.a.Progress == nil {
		return nodes.ProgressAttrs{}, false
	}
	a, err := nodes.Parse(nodes.KindProgress, d.a.Progress)
	if err != nil {
		return nodes.ProgressAttrs{}, false
	}
	return a.(nodes.ProgressAttrs), true
}

func (d staticDialogs) Link(context.Context) (string, bool) {
	return d.a.Href, d.a.Href != ""
}

func (d staticDialogs) Image(context.Context) (string, string, bool) {
	return d.a.ImageSrc, d.a.ImageAlt, d.a.ImageSrc != ""
}

func (d staticDialogs) Prompt(context.Context) (string, bool) {
	return d.a.Prompt, d.a.Prompt != ""
}
