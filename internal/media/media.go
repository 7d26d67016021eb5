// Package media stores interview recordings and uploaded documents as opaque
// blobs addressed by a reference string.
package media

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Blob is a stored object read back from a store.
type Blob struct {
	ContentType string
	Data        []byte
}

// NewKey builds a unique object key under prefix, keeping the file extension
// of name so downstream tools can sniff the format.
func NewKey(prefix, name string) string {
	ext := strings.ToLower(path.Ext(name))
	return path.Join(prefix, fmt.Sprintf("%s%s", uuid.NewString(), ext))
}
