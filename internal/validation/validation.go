// Package validation checks resource identifiers before they reach a
// backend, so malformed ids fail fast with a clear message instead of a
// backend-specific status code.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// maxIDLength matches the tightest limit among supported backends.
const maxIDLength = 255

// reservedChars are path and query delimiters that remote document stores
// reject or misroute inside resource ids.
const reservedChars = `/\#?`

// ValidateID checks a database or collection id. kind names the resource
// in the error message.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s id must not be empty", kind)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%s id exceeds %d characters", kind, maxIDLength)
	}
	if i := strings.IndexAny(id, reservedChars); i >= 0 {
		return fmt.Errorf("%s id contains reserved character %q", kind, id[i])
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s id contains a control character", kind)
		}
	}
	return nil
}
