package crud

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/karimivahid/crystal-core/pkg/docstore"
)

// ErrorEntry is one coded sub-error in the structured failure payload.
// Status, when non-zero, lets an entry carry its own response status; it is
// consulted for the first-error-wins rule but never serialized.
type ErrorEntry struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"-"`
}

// APIError is a failure that already knows its response status and its
// structured sub-errors. Every variant of the error taxonomy implements it.
type APIError interface {
	error
	Status() int
	Entries() []ErrorEntry
}

// NotFoundError signals that a tenant-scoped or id-scoped lookup matched
// zero records. A tenant mismatch is reported identically to a missing id.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string         { return e.Message }
func (e *NotFoundError) Status() int           { return http.StatusNotFound }
func (e *NotFoundError) Entries() []ErrorEntry { return nil }

// FieldError is one field-level constraint violation.
type FieldError struct {
	Field string
	Kind  string // "required", "maxlength" or "type"
}

// ValidationError carries one FieldError per offending field.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Status() int   { return http.StatusBadRequest }

func (e *ValidationError) Entries() []ErrorEntry {
	out := make([]ErrorEntry, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, ErrorEntry{Code: f.Field, Message: f.Kind})
	}
	return out
}

// DuplicateKeyError reports a uniqueness violation, tagged with the
// human-readable label the index was declared with.
type DuplicateKeyError struct {
	Label string
}

func (e *DuplicateKeyError) Error() string { return "Duplicated" }
func (e *DuplicateKeyError) Status() int   { return http.StatusBadRequest }

func (e *DuplicateKeyError) Entries() []ErrorEntry {
	return []ErrorEntry{{Code: e.Label, Message: "duplicated"}}
}

// BadRequestError covers malformed input the store rejects for reasons
// outside the other variants.
type BadRequestError struct {
	Message string
	Err     error
}

func (e *BadRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}
func (e *BadRequestError) Unwrap() error         { return e.Err }
func (e *BadRequestError) Status() int           { return http.StatusBadRequest }
func (e *BadRequestError) Entries() []ErrorEntry { return nil }

// CodedError is a downstream failure carrying a list of error codes to be
// resolved by the transport layer against its code table. A code may be a
// bare string or an already-structured ErrorEntry.
type CodedError struct {
	Message string
	Codes   []any
}

func (e *CodedError) Error() string { return e.Message }

// IsOperational reports whether a failure belongs to the known taxonomy.
// Anything else is treated as fatal to the request and, under the fail-fast
// policy, to the process.
func IsOperational(err error) bool {
	var api APIError
	if errors.As(err, &api) {
		return true
	}
	var coded *CodedError
	return errors.As(err, &coded)
}

// translateStoreError rewrites a document-store failure into the error
// taxonomy. Validation entries for the tenant field are suppressed: a tenant
// constraint firing is a system defect, never a client-facing issue.
func translateStoreError(err error, tenantField string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNoDocument) {
		return &NotFoundError{Message: "Empty Result"}
	}

	var vf *docstore.ValidationFailure
	if errors.As(err, &vf) {
		fields := make([]FieldError, 0, len(vf.Fields))
		for name, kind := range vf.Fields {
			if tenantField != "" && name == tenantField {
				continue
			}
			fields = append(fields, FieldError{Field: name, Kind: kind})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return &ValidationError{Message: "Validation Error", Fields: fields}
	}

	var dk *docstore.DuplicateKey
	if errors.As(err, &dk) {
		return &DuplicateKeyError{Label: dk.Label}
	}

	return &BadRequestError{Message: "Saving Error", Err: err}
}
