package section

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"arp/api/internal/blocks"
	"arp/api/internal/util"
)

// SafeDate coerces a persisted timestamp. Strings are parsed in any of the
// common ISO forms, numbers are unix milliseconds. Anything unparseable
// yields nil.
func SafeDate(v any) *time.Time {
	var t time.Time
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return nil
		}
		t = *x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		parsed, err := cast.ToTimeE(s)
		if err != nil {
			return nil
		}
		t = parsed
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return fromMillis(f)
	case float64:
		return fromMillis(x)
	case float32:
		return fromMillis(float64(x))
	case int:
		return fromMillis(float64(x))
	case int64:
		return fromMillis(float64(x))
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromMillis(ms float64) *time.Time {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > 8.64e15 {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

// Normalize turns an arbitrary decoded value into a valid section stamped with
// the current time where timestamps are missing. It never panics.
func Normalize(raw any) Section {
	return NormalizeAt(raw, time.Now())
}

// NormalizeJSON decodes data and normalizes it. Invalid JSON yields a default section.
func NormalizeJSON(data []byte) Section {
	return NormalizeJSONAt(data, time.Now())
}

func NormalizeJSONAt(data []byte, now time.Time) Section {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return NormalizeAt(nil, now)
	}
	return NormalizeAt(raw, now)
}

// NormalizeList normalizes every element of an array. A value that is not an
// array, or an object wrapping one under "sections", yields an empty list.
func NormalizeList(raw any) []Section {
	return NormalizeListAt(raw, time.Now())
}

func NormalizeListAt(raw any, now time.Time) (out []Section) {
	out = []Section{}
	defer func() {
		if recover() != nil {
			out = []Section{}
		}
	}()

	if wrapper, ok := raw.(map[string]any); ok {
		raw = wrapper["sections"]
	}
	items, ok := raw.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		out = append(out, NormalizeAt(item, now))
	}
	return out
}

// NormalizeListJSON decodes and normalizes a persisted section list.
func NormalizeListJSON(data []byte) []Section {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return []Section{}
	}
	return NormalizeList(raw)
}

// NormalizeAt is Normalize with an explicit clock.
func NormalizeAt(raw any, now time.Time) (s Section) {
	defer func() {
		if recover() != nil {
			s = New("", now)
		}
	}()

	m, ok := raw.(map[string]any)
	if !ok {
		if existing, isSection := raw.(Section); isSection {
			m = toMap(existing)
		} else {
			return New("", now)
		}
	}

	s = New(str(m["title"]), now)
	if id, ok := m["id"].(string); ok && strings.TrimSpace(id) != "" {
		s.ID = id
	}
	s.Content = blocks.Coerce(m["content"])
	s.Assets = assets(m["assets"])
	s.RelatedBookmarkIDs = stringList(m["relatedBookmarkIds"])
	s.DueDate = SafeDate(m["dueDate"])
	s.AssignedTo = str(m["assignedTo"])
	if p := Priority(str(m["priority"])); p.Valid() {
		s.Priority = p
	}
	if st := Status(str(m["status"])); st.Valid() {
		s.Status = st
	}
	s.Progress = progress(m["progress"])
	s.Tags = stringList(m["tags"])
	s.EstimatedHours = hours(m["estimatedHours"])
	s.ActualHours = hours(m["actualHours"])
	s.Comments = comments(m["comments"])
	s.ReminderEnabled = flag(m["reminderEnabled"])
	s.ReminderDate = SafeDate(m["reminderDate"])
	if t := SafeDate(m["createdAt"]); t != nil {
		s.CreatedAt = *t
	}
	if t := SafeDate(m["updatedAt"]); t != nil {
		s.UpdatedAt = *t
	}
	return s
}

func toMap(s Section) map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}

func assets(v any) []Asset {
	out := []Asset{}
	items, _ := v.([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := Asset{
			ID:         str(m["id"]),
			Name:       str(m["name"]),
			URL:        str(m["url"]),
			Type:       str(m["type"]),
			UploadedAt: SafeDate(m["uploadedAt"]),
		}
		if a.ID == "" {
			a.ID = util.NewID("asset")
		}
		if size, err := cast.ToInt64E(m["size"]); err == nil && size > 0 {
			a.Size = size
		}
		out = append(out, a)
	}
	return out
}

func comments(v any) []Comment {
	out := []Comment{}
	items, _ := v.([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := Comment{
			ID:        str(m["id"]),
			Author:    str(m["author"]),
			Text:      str(m["text"]),
			CreatedAt: SafeDate(m["createdAt"]),
		}
		if c.ID == "" {
			c.ID = util.NewID("cmt")
		}
		out = append(out, c)
	}
	return out
}

func stringList(v any) []string {
	out := []string{}
	items, _ := v.([]any)
	for _, item := range items {
		if s := str(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func progress(v any) int {
	f, ok := number(v)
	if !ok {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(f))))
}

func hours(v any) *float64 {
	f, ok := number(v)
	if !ok || f < 0 {
		return nil
	}
	return &f
}

// number accepts JSON numbers and numeric strings.
func number(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool, map[string]any, []any:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func flag(v any) bool {
	switch v.(type) {
	case bool, string:
		b, err := cast.ToBoolE(v)
		return err == nil && b
	}
	return false
}

func str(v any) string {
	switch v.(type) {
	case nil, map[string]any, []any:
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}
