package blocks

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"

	"arp/api/internal/util"
)

// Coerce turns loosely typed persisted content into a well-formed block list.
// It never fails: anything that is not an array yields an empty list, and
// malformed elements degrade to the nearest valid block.
func Coerce(raw any) []Block {
	var items []any
	switch v := raw.(type) {
	case []Block:
		items = make([]any, len(v))
		for i, b := range v {
			items[i] = b
		}
	case []any:
		items = v
	case []map[string]any:
		items = make([]any, len(v))
		for i, m := range v {
			items[i] = m
		}
	case json.RawMessage:
		return CoerceJSON(v)
	default:
		return []Block{}
	}

	out := make([]Block, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		b, ok := coerceOne(item)
		if !ok {
			continue
		}
		if _, dup := seen[b.ID]; dup || strings.TrimSpace(b.ID) == "" {
			b.ID = util.NewID("blk")
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return Reorder(out)
}

// CoerceJSON decodes raw JSON and coerces it. Invalid JSON yields an empty list.
func CoerceJSON(data []byte) []Block {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return []Block{}
	}
	return Coerce(raw)
}

func coerceOne(item any) (Block, bool) {
	switch v := item.(type) {
	case Block:
		return sanitize(v), true
	case map[string]any:
		return fromMap(v), true
	case string:
		return Paragraph("", v), true
	default:
		return Block{}, false
	}
}

func fromMap(m map[string]any) Block {
	id, _ := m["id"].(string)
	data, _ := m["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	b := Block{ID: id, Type: Type(cast.ToString(m["type"]))}

	switch b.Type {
	case TypeParagraph:
		b.Data.Text = str(data["text"])
	case TypeHeading:
		b.Data.Text = str(data["text"])
		b.Data.Level = ClampLevel(number(data["level"], MinHeadingLevel))
	case TypeList:
		b.Data.Style = ListStyle(str(data["style"]))
		b.Data.Items = stringList(data["items"])
	case TypeQuote:
		b.Data.Text = str(data["text"])
		b.Data.Caption = str(data["caption"])
	case TypeCode:
		b.Data.Code = str(data["code"])
		b.Data.Language = str(data["language"])
	case TypeDivider:
	default:
		b.Type = TypeParagraph
		b.Data.Text = firstText(data)
	}
	return sanitize(b)
}

func sanitize(b Block) Block {
	switch b.Type {
	case TypeHeading:
		b.Data.Level = ClampLevel(b.Data.Level)
	case TypeList:
		if b.Data.Style != ListOrdered {
			b.Data.Style = ListUnordered
		}
		if b.Data.Items == nil {
			b.Data.Items = []string{}
		}
	case TypeParagraph, TypeQuote, TypeCode, TypeDivider:
	default:
		b = Paragraph(b.ID, Text(b))
	}
	return b
}

// firstText salvages readable text from an unknown block payload.
func firstText(data map[string]any) string {
	for _, key := range []string{"text", "code", "caption"} {
		if s := str(data[key]); s != "" {
			return s
		}
	}
	if items := stringList(data["items"]); len(items) > 0 {
		return strings.Join(items, "\n")
	}
	return ""
}

func str(v any) string {
	switch v.(type) {
	case nil, map[string]any, []any:
		return ""
	}
	return cast.ToString(v)
}

func number(v any, fallback int) int {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return fallback
	}
	// Clamp first: converting an out-of-range float is undefined.
	f = math.Max(math.Min(math.Round(f), math.MaxInt32), math.MinInt32)
	return int(f)
}

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return append([]string{}, ss...)
		}
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, str(item))
	}
	return out
}
