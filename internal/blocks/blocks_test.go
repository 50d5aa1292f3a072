package blocks

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		list    []Block
		wantErr []string
	}{
		{
			name: "valid list",
			list: []Block{
				Paragraph("a", "hello"),
				Heading("b", "Title", 2),
				List("c", ListOrdered, "one", "two"),
				Quote("d", "quoted", "someone"),
				Code("e", "x := 1", "go"),
				Divider("f"),
			},
		},
		{
			name:    "duplicate ids",
			list:    []Block{Paragraph("a", "x"), Paragraph("a", "y")},
			wantErr: []string{`id "a" already used`},
		},
		{
			name:    "missing id",
			list:    []Block{Paragraph(" ", "x")},
			wantErr: []string{"id is required"},
		},
		{
			name: "bad heading and list",
			list: []Block{
				{ID: "h", Type: TypeHeading, Data: Data{Text: "x", Level: 4}},
				{ID: "l", Type: TypeList, Data: Data{Style: "checklist"}},
			},
			wantErr: []string{"heading level", "list style"},
		},
		{
			name:    "unknown type",
			list:    []Block{{ID: "x", Type: "table"}},
			wantErr: []string{`unknown type "table"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.list)
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestReorderMatchesPosition(t *testing.T) {
	in := []Block{
		{ID: "a", Type: TypeParagraph, Order: 7},
		{ID: "b", Type: TypeDivider, Order: 0},
	}
	out := Reorder(in)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Order)
	assert.Equal(t, 1, out[1].Order)
	assert.Equal(t, 7, in[0].Order, "input must not be mutated")
}

func TestText(t *testing.T) {
	assert.Equal(t, "one\ntwo", Text(List("l", ListUnordered, "one", "two")))
	assert.Equal(t, "fmt.Println()", Text(Code("c", "fmt.Println()", "")))
	assert.Equal(t, "words\nauthor", Text(Quote("q", "words", "author")))
	assert.Equal(t, "", Text(Divider("d")))
	assert.Equal(t, "Heading", Text(Heading("h", "Heading", 1)))
}

func TestPlainTextSkipsEmptyBlocks(t *testing.T) {
	got := PlainText([]Block{Paragraph("a", "first"), Divider("b"), Paragraph("c", "  "), Paragraph("d", "second")})
	assert.Equal(t, "first\n\nsecond", got)
}

func TestHeadingConstructorClampsLevel(t *testing.T) {
	assert.Equal(t, 1, Heading("h", "x", 0).Data.Level)
	assert.Equal(t, 3, Heading("h", "x", 9).Data.Level)
}

func TestCoerceNonArray(t *testing.T) {
	for _, raw := range []any{nil, "text", 12, map[string]any{"type": "paragraph"}} {
		got := Coerce(raw)
		require.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestCoerceDegradesBadElements(t *testing.T) {
	raw := []any{
		map[string]any{"id": "p1", "type": "paragraph", "data": map[string]any{"text": "hello"}},
		map[string]any{"id": "h1", "type": "heading", "data": map[string]any{"text": "Big", "level": float64(7)}},
		map[string]any{"type": "list", "data": map[string]any{"style": "weird", "items": []any{"a", float64(2), true}}},
		map[string]any{"id": "t1", "type": "table", "data": map[string]any{"text": "salvaged"}},
		map[string]any{"id": "p1", "type": "divider"},
		float64(42),
		"bare string",
	}

	got := Coerce(raw)
	require.Len(t, got, 6)
	require.NoError(t, Validate(got))

	assert.Equal(t, Paragraph("p1", "hello"), got[0])
	assert.Equal(t, 3, got[1].Data.Level)

	assert.Equal(t, TypeList, got[2].Type)
	assert.Equal(t, ListUnordered, got[2].Data.Style)
	assert.Equal(t, []string{"a", "2", "true"}, got[2].Data.Items)
	assert.True(t, strings.HasPrefix(got[2].ID, "blk_"))

	assert.Equal(t, TypeParagraph, got[3].Type)
	assert.Equal(t, "salvaged", got[3].Data.Text)

	assert.Equal(t, TypeDivider, got[4].Type)
	assert.NotEqual(t, "p1", got[4].ID, "duplicate ids are replaced")

	assert.Equal(t, "bare string", got[5].Data.Text)
	for i, b := range got {
		assert.Equal(t, i, b.Order)
	}
}

func TestCoerceJSON(t *testing.T) {
	got := CoerceJSON([]byte(`[{"id":"c","type":"code","data":{"code":"ls","language":"sh"},"order":3}]`))
	require.Len(t, got, 1)
	assert.Equal(t, Code("c", "ls", "sh"), got[0])

	assert.Empty(t, CoerceJSON([]byte(`{not json`)))
}

func TestCoerceClampsHugeHeadingLevels(t *testing.T) {
	tests := []struct {
		level any
		want  int
	}{
		{"9e99", 3},
		{float64(1e300), 3},
		{"-9e99", 1},
		{"2.4", 2},
		{"nope", 1},
	}
	for _, tt := range tests {
		got := Coerce([]any{map[string]any{"id": "h", "type": "heading", "data": map[string]any{"text": "T", "level": tt.level}}})
		require.Len(t, got, 1)
		assert.Equal(t, tt.want, got[0].Data.Level, "level %v", tt.level)
	}
}

func TestMarshalListAlwaysCarriesItems(t *testing.T) {
	raw, err := json.Marshal(List("l1", ListOrdered))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"l1","type":"list","data":{"style":"ordered","items":[]},"order":0}`, string(raw))

	raw, err = json.Marshal(Block{ID: "l2", Type: TypeList, Data: Data{Style: ListUnordered}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"items":[]`)

	raw, err = json.Marshal(Paragraph("p1", "hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","type":"paragraph","data":{"text":"hi"},"order":0}`, string(raw))

	var back []Block
	require.NoError(t, json.Unmarshal([]byte(`[`+string(mustMarshal(t, List("l3", ListUnordered, "a")))+`]`), &back))
	assert.Equal(t, []string{"a"}, back[0].Data.Items)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(TypeCode))
	assert.False(t, Known("table"))
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
