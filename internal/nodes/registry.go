package nodes

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Definition describes one atomic node kind.
type Definition struct {
	Name     Kind
	Label    string
	Inline   bool
	Defaults func() Attrs
	Parse    func(map[string]any) Attrs
	Render   func(Attrs) Element
}

var registry = map[Kind]Definition{
	KindStatus: {
		Name:     KindStatus,
		Label:    "Status",
		Inline:   true,
		Defaults: func() Attrs { return StatusAttrs{Status: StatusNotStarted} },
		Parse:    parseStatus,
	},
	KindPriority: {
		Name:     KindPriority,
		Label:    "Priority",
		Inline:   true,
		Defaults: func() Attrs { return PriorityAttrs{Priority: PriorityLow} },
		Parse:    parsePriority,
	},
	KindDueDate: {
		Name:     KindDueDate,
		Label:    "Due date",
		Inline:   true,
		Defaults: func() Attrs { return DueDateAttrs{} },
		Parse:    parseDueDate,
	},
	KindAssignee: {
		Name:     KindAssignee,
		Label:    "Assignee",
		Inline:   true,
		Defaults: func() Attrs { return AssigneeAttrs{} },
		Parse:    parseAssignee,
	},
	KindNotification: {
		Name:     KindNotification,
		Label:    "Notification",
		Inline:   true,
		Defaults: func() Attrs { return NotificationAttrs{} },
		Parse:    parseNotification,
	},
	KindProgress: {
		Name:     KindProgress,
		Label:    "Progress",
		Inline:   false,
		Defaults: func() Attrs { return ProgressAttrs{} },
		Parse:    parseProgress,
	},
}

func init() {
	for kind, def := range registry {
		def.Render = renderElement
		registry[kind] = def
	}
}

// Lookup returns the definition registered for kind.
func Lookup(kind Kind) (Definition, bool) {
	def, ok := registry[kind]
	return def, ok
}

// IsAtomic reports whether a document node type is one of the atomic nodes.
func IsAtomic(nodeType string) bool {
	_, ok := registry[Kind(nodeType)]
	return ok
}

// IsInline reports whether a document node type is an inline atomic node.
func IsInline(nodeType string) bool {
	def, ok := registry[Kind(nodeType)]
	return ok && def.Inline
}

// Defaults returns the default attributes of kind.
func Defaults(kind Kind) (Attrs, error) {
	def, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
	return def.Defaults(), nil
}

// Parse reads persisted attributes for kind. It never fails for a known kind:
// missing or invalid values fall back to the kind's defaults.
func Parse(kind Kind, raw map[string]any) (Attrs, error) {
	def, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
	if raw == nil {
		return def.Defaults(), nil
	}
	return def.Parse(raw), nil
}

func parseStatus(raw map[string]any) Attrs {
	s := Status(text(raw["status"]))
	for _, known := range Statuses {
		if s == known {
			return StatusAttrs{Status: s}
		}
	}
	return StatusAttrs{Status: StatusNotStarted}
}

func parsePriority(raw map[string]any) Attrs {
	p := Priority(text(raw["priority"]))
	for _, known := range Priorities {
		if p == known {
			return PriorityAttrs{Priority: p}
		}
	}
	return PriorityAttrs{Priority: PriorityLow}
}

func parseDueDate(raw map[string]any) Attrs {
	return DueDateAttrs{Date: NormalizeDate(raw["date"])}
}

func parseAssignee(raw map[string]any) Attrs {
	a := AssigneeAttrs{ID: text(raw["id"]), Name: text(raw["name"]), Avatar: text(raw["avatar"])}
	if a.ID == "" || a.Name == "" {
		return AssigneeAttrs{}
	}
	return a
}

func parseNotification(raw map[string]any) Attrs {
	n := NotificationAttrs{ID: text(raw["id"]), Title: text(raw["title"])}
	if n.ID == "" {
		return NotificationAttrs{}
	}
	return n
}

func parseProgress(raw map[string]any) Attrs {
	p := ProgressAttrs{
		Progress:    ClampProgress(raw["progress"]),
		Title:       text(raw["title"]),
		Description: text(raw["description"]),
	}
	switch LinkType(text(raw["linkType"])) {
	case LinkTask:
		p.LinkType = LinkTask
	case LinkList:
		p.LinkType = LinkList
	}
	if p.LinkType != LinkNone {
		p.LinkID = text(raw["linkId"])
	}
	return p
}

// ClampProgress coerces v to an integer percentage in 0..100.
func ClampProgress(v any) int {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	f = math.Round(f)
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(f)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate returns v as a YYYY-MM-DD date, or "" when v is not a date.
func NormalizeDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return ""
		}
		return NormalizeDate(*t)
	}
	s := strings.TrimSpace(text(v))
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// text reads a scalar attribute as a string. Containers read as "".
func text(v any) string {
	switch t := v.(type) {
	case nil, map[string]any, []any:
		return ""
	case string:
		return strings.TrimSpace(t)
	}
	return cast.ToString(v)
}
