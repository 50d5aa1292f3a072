// Package util holds small helpers shared by the domain packages.
package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier, prefixed as "<prefix>_<32 hex>" when a
// prefix is given. Ids only contain characters that are valid in search index
// keys and object storage paths.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
