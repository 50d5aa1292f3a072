// Package collab reads the supporting lists shown in metadata dialogs: tasks
// and task lists, the user directory and notifications. Every decoder treats
// its input as untrusted and degrades to empty lists.
package collab

import (
	"context"
	"strings"

	"github.com/spf13/cast"
)

type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type TaskList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskData is the task fetch result.
type TaskData struct {
	Tasks     []Task     `json:"tasks"`
	TaskLists []TaskList `json:"taskLists"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Notification struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type TaskSource interface {
	FetchTasks(ctx context.Context) (TaskData, error)
}

type UserDirectory interface {
	SearchUsers(ctx context.Context, query string) ([]User, error)
}

type NotificationSource interface {
	FetchNotifications(ctx context.Context) ([]Notification, error)
}

// DecodeTasks reads {tasks:[{id,title}], taskLists:[{id,name}]}.
func DecodeTasks(raw any) TaskData {
	out := TaskData{Tasks: []Task{}, TaskLists: []TaskList{}}
	m, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	for _, item := range objects(m["tasks"]) {
		if id := scalar(item["id"]); id != "" {
			out.Tasks = append(out.Tasks, Task{ID: id, Title: firstOf(item, "title", "name")})
		}
	}
	for _, item := range objects(m["taskLists"]) {
		if id := scalar(item["id"]); id != "" {
			out.TaskLists = append(out.TaskLists, TaskList{ID: id, Name: firstOf(item, "name", "title")})
		}
	}
	return out
}

// DecodeUsers reads [{id, name|display_name|email, avatar_url?}].
func DecodeUsers(raw any) []User {
	out := []User{}
	for _, item := range objects(raw) {
		id := scalar(item["id"])
		if id == "" {
			continue
		}
		name := firstOf(item, "name", "display_name", "email")
		if name == "" {
			name = id
		}
		out = append(out, User{ID: id, Name: name, AvatarURL: scalar(item["avatar_url"])})
	}
	return out
}

// DecodeNotifications reads [{id, title|message}].
func DecodeNotifications(raw any) []Notification {
	out := []Notification{}
	for _, item := range objects(raw) {
		if id := scalar(item["id"]); id != "" {
			out = append(out, Notification{ID: id, Title: firstOf(item, "title", "message")})
		}
	}
	return out
}

func objects(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstOf(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalar(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) string {
	switch v.(type) {
	case nil, bool, map[string]any, []any:
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}
