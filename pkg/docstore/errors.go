package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationFailure reports field-level constraint violations found at
// insert/update time. Fields maps field name to the violation kind, one of
// "required", "maxlength" or "type".
type ValidationFailure struct {
	Collection string
	Fields     map[string]string
}

func (e *ValidationFailure) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name, kind := range e.Fields {
		names = append(names, name+": "+kind)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s validation failed: %s", e.Collection, strings.Join(names, ", "))
}

// DuplicateKey reports a unique-index violation. Label is the human-readable
// tag the index was declared with.
type DuplicateKey struct {
	Collection string
	Label      string
	Fields     []string
}

func (e *DuplicateKey) Error() string {
	return fmt.Sprintf("%s duplicate key on index %q", e.Collection, e.Label)
}
