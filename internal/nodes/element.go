package nodes

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode"

	"arp/api/internal/doctree"
)

// Element is the rendered presentation of an atomic node. Its data attributes
// carry every attribute value so the node can be found again by lookup.
type Element struct {
	Tag   string
	Attrs map[string]string
	Label string
}

var dataTypes = map[Kind]string{
	KindStatus:       "status-label",
	KindPriority:     "priority-label",
	KindDueDate:      "due-date-chip",
	KindAssignee:     "assignee-chip",
	KindNotification: "notification-badge",
	KindProgress:     "progress-block",
}

// Render produces the element for a.
func Render(a Attrs) Element {
	def, ok := registry[a.Kind()]
	if !ok || def.Render == nil {
		return renderElement(a)
	}
	return def.Render(a)
}

func renderElement(a Attrs) Element {
	tag := "span"
	if !IsInline(string(a.Kind())) {
		tag = "div"
	}
	el := Element{
		Tag:   tag,
		Attrs: map[string]string{"data-type": dataTypes[a.Kind()]},
		Label: label(a),
	}
	for key, value := range a.Map() {
		if value == nil {
			continue
		}
		el.Attrs["data-"+kebab(key)] = fmt.Sprint(value)
	}
	return el
}

func label(a Attrs) string {
	switch v := a.(type) {
	case StatusAttrs:
		return humanize(string(v.Status))
	case PriorityAttrs:
		return humanize(string(v.Priority))
	case DueDateAttrs:
		if v.Date == "" {
			return "No due date"
		}
		return "Due " + v.Date
	case AssigneeAttrs:
		if v.Name == "" {
			return "Unassigned"
		}
		return "@" + v.Name
	case NotificationAttrs:
		if v.Title != "" {
			return v.Title
		}
		if v.ID != "" {
			return "Notification " + v.ID
		}
		return "Notification"
	case ProgressAttrs:
		if v.Title != "" {
			return fmt.Sprintf("%s: %d%%", v.Title, v.Progress)
		}
		return fmt.Sprintf("%d%%", v.Progress)
	}
	return ""
}

// HTML renders the element with attributes in a stable order.
func (e Element) HTML() string {
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<" + e.Tag)
	for _, k := range keys {
		fmt.Fprintf(&b, ` %s="%s"`, k, html.EscapeString(e.Attrs[k]))
	}
	b.WriteString(` contenteditable="false">`)
	b.WriteString(html.EscapeString(e.Label))
	b.WriteString("</" + e.Tag + ">")
	return b.String()
}

// ParseElement reads an atomic node back from the data attributes of its
// rendered element. ok is false when the element is not an atomic node.
func ParseElement(attrs map[string]string) (Attrs, bool) {
	dataType := attrs["data-type"]
	for kind, dt := range dataTypes {
		if dt != dataType {
			continue
		}
		raw := make(map[string]any, len(attrs))
		for k, v := range attrs {
			if k == "data-type" || !strings.HasPrefix(k, "data-") {
				continue
			}
			raw[camel(strings.TrimPrefix(k, "data-"))] = v
		}
		a, err := Parse(kind, raw)
		return a, err == nil
	}
	return nil, false
}

// HTMLHooks returns document renderers for every atomic node kind.
func HTMLHooks() doctree.Hooks {
	hooks := make(doctree.Hooks, len(registry))
	for kind := range registry {
		hooks[string(kind)] = func(n doctree.Node) (string, error) {
			a, ok := FromNode(n)
			if !ok {
				return "", fmt.Errorf("not an atomic node: %s", n.Type)
			}
			return Render(a).HTML(), nil
		}
	}
	return hooks
}

func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func kebab(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func camel(s string) string {
	parts := strings.Split(s, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
