package nodes

import (
	"github.com/spf13/cast"

	"arp/api/internal/doctree"
)

// ToNode builds the document node carrying a.
func ToNode(a Attrs) doctree.Node {
	return doctree.Node{Type: string(a.Kind()), Attrs: a.Map()}
}

// FromNode parses the attributes of an atomic document node.
func FromNode(n doctree.Node) (Attrs, bool) {
	a, err := Parse(Kind(n.Type), n.Attrs)
	if err != nil {
		return nil, false
	}
	return a, true
}

// Match is an atomic node found in a document.
type Match struct {
	Path  []int
	Attrs Attrs
}

// Find returns the atomic nodes of kind whose attribute key equals value.
// An empty key matches every node of kind.
func Find(doc doctree.Node, kind Kind, key, value string) []Match {
	var out []Match
	doctree.Walk(doc, func(path []int, n doctree.Node) bool {
		if n.Type != string(kind) {
			return true
		}
		a, ok := FromNode(n)
		if !ok {
			return false
		}
		if key == "" || attrString(a.Map()[key]) == value {
			out = append(out, Match{Path: path, Attrs: a})
		}
		return false
	})
	return out
}

func attrString(v any) string {
	if v == nil {
		return ""
	}
	return cast.ToString(v)
}
