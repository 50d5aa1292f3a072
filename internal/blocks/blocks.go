// Package blocks defines the portable block list used to store section content.
package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type identifies the kind of a block.
type Type string

const (
	TypeParagraph Type = "paragraph"
	TypeHeading   Type = "heading"
	TypeList      Type = "list"
	TypeQuote     Type = "quote"
	TypeCode      Type = "code"
	TypeDivider   Type = "divider"
)

// ListStyle is the numbering style of a list block.
type ListStyle string

const (
	ListOrdered   ListStyle = "ordered"
	ListUnordered ListStyle = "unordered"
)

const (
	MinHeadingLevel = 1
	MaxHeadingLevel = 3
)

// Data is the type-specific payload of a block. Which fields are meaningful
// depends on the block type:
//
//	paragraph  Text
//	heading    Text, Level
//	list       Style, Items
//	quote      Text, Caption
//	code       Code, Language
//	divider    (none)
type Data struct {
	Text     string    `json:"text,omitempty"`
	Level    int       `json:"level,omitempty"`
	Style    ListStyle `json:"style,omitempty"`
	Items    []string  `json:"items,omitempty"`
	Caption  string    `json:"caption,omitempty"`
	Code     string    `json:"code,omitempty"`
	Language string    `json:"language,omitempty"`
}

// Block is one unit of stored content.
type Block struct {
	ID    string `json:"id"`
	Type  Type   `json:"type"`
	Data  Data   `json:"data"`
	Order int    `json:"order"`
}

type listData struct {
	Style ListStyle `json:"style,omitempty"`
	Items []string  `json:"items"`
}

// MarshalJSON writes list blocks with their style and item sequence only,
// so an empty list still carries "items": [].
func (b Block) MarshalJSON() ([]byte, error) {
	type plain Block
	if b.Type != TypeList {
		return json.Marshal(plain(b))
	}
	items := b.Data.Items
	if items == nil {
		items = []string{}
	}
	return json.Marshal(struct {
		ID    string   `json:"id"`
		Type  Type     `json:"type"`
		Data  listData `json:"data"`
		Order int      `json:"order"`
	}{b.ID, b.Type, listData{Style: b.Data.Style, Items: items}, b.Order})
}

var knownTypes = map[Type]struct{}{
	TypeParagraph: {},
	TypeHeading:   {},
	TypeList:      {},
	TypeQuote:     {},
	TypeCode:      {},
	TypeDivider:   {},
}

// Known reports whether t is one of the block types.
func Known(t Type) bool {
	_, ok := knownTypes[t]
	return ok
}

func Paragraph(id, text string) Block {
	return Block{ID: id, Type: TypeParagraph, Data: Data{Text: text}}
}

func Heading(id, text string, level int) Block {
	return Block{ID: id, Type: TypeHeading, Data: Data{Text: text, Level: ClampLevel(level)}}
}

func List(id string, style ListStyle, items ...string) Block {
	if items == nil {
		items = []string{}
	}
	return Block{ID: id, Type: TypeList, Data: Data{Style: style, Items: items}}
}

func Quote(id, text, caption string) Block {
	return Block{ID: id, Type: TypeQuote, Data: Data{Text: text, Caption: caption}}
}

func Code(id, code, language string) Block {
	return Block{ID: id, Type: TypeCode, Data: Data{Code: code, Language: language}}
}

func Divider(id string) Block {
	return Block{ID: id, Type: TypeDivider}
}

// ClampLevel forces a heading level into the supported range.
func ClampLevel(level int) int {
	if level < MinHeadingLevel {
		return MinHeadingLevel
	}
	if level > MaxHeadingLevel {
		return MaxHeadingLevel
	}
	return level
}

// Validate checks the schema invariants of a block list and reports every
// violation it finds.
func Validate(list []Block) error {
	var errs []error
	seen := make(map[string]int, len(list))
	for i, b := range list {
		if strings.TrimSpace(b.ID) == "" {
			errs = append(errs, fmt.Errorf("block %d: id is required", i))
		} else if prev, dup := seen[b.ID]; dup {
			errs = append(errs, fmt.Errorf("block %d: id %q already used by block %d", i, b.ID, prev))
		} else {
			seen[b.ID] = i
		}

		switch b.Type {
		case TypeHeading:
			if b.Data.Level < MinHeadingLevel || b.Data.Level > MaxHeadingLevel {
				errs = append(errs, fmt.Errorf("block %d: heading level must be between %d and %d (got %d)", i, MinHeadingLevel, MaxHeadingLevel, b.Data.Level))
			}
		case TypeList:
			if b.Data.Style != ListOrdered && b.Data.Style != ListUnordered {
				errs = append(errs, fmt.Errorf("block %d: list style must be ordered or unordered (got %q)", i, b.Data.Style))
			}
		default:
			if !Known(b.Type) {
				errs = append(errs, fmt.Errorf("block %d: unknown type %q", i, b.Type))
			}
		}
	}
	return errors.Join(errs...)
}

// Reorder returns a copy of list whose Order fields match array position.
func Reorder(list []Block) []Block {
	out := make([]Block, len(list))
	for i, b := range list {
		b.Order = i
		out[i] = b
	}
	return out
}

// Text returns the plain text carried by a block.
func Text(b Block) string {
	switch b.Type {
	case TypeList:
		return strings.Join(b.Data.Items, "\n")
	case TypeCode:
		return b.Data.Code
	case TypeQuote:
		if b.Data.Caption != "" {
			return b.Data.Text + "\n" + b.Data.Caption
		}
		return b.Data.Text
	case TypeDivider:
		return ""
	default:
		return b.Data.Text
	}
}

// PlainText joins the text of every block with blank lines.
func PlainText(list []Block) string {
	parts := make([]string, 0, len(list))
	for _, b := range list {
		if text := strings.TrimSpace(Text(b)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
