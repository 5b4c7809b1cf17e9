package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FieldType enumerates the value types a schema field can declare.
type FieldType int

const (
	TypeString FieldType = iota
	TypeNumber
	TypeBool
	TypeTime
	// TypeObject is a nested mapping, e.g. an identity sub-record.
	TypeObject
	// TypeRef holds the id of a document in another collection.
	TypeRef
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeObject:
		return "object"
	case TypeRef:
		return "ref"
	}
	return "unknown"
}

// Field describes one schema field and its constraints.
type Field struct {
	Name      string
	Type      FieldType
	Required  bool
	MaxLength int    // 0 = unbounded, strings only
	Ref       string // target collection, TypeRef only
	Index     bool
}

// UniqueIndex declares a uniqueness constraint over a set of fields.
// The label is surfaced in duplicate-key errors so clients get a readable
// name instead of an internal index identifier.
type UniqueIndex struct {
	Fields []string
	Label  string
}

// Schema is an immutable field-definition list plus its unique indexes.
// Build one per resource type at startup with NewSchema.
type Schema struct {
	fields []Field
	byName map[string]Field
	unique []UniqueIndex
}

// NewSchema validates the field descriptors and returns a schema.
func NewSchema(fields []Field) (*Schema, error) {
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema: field with empty name")
		}
		if f.Name == "_id" {
			return nil, fmt.Errorf("schema: _id is reserved")
		}
		if _, ok := byName[f.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		if f.MaxLength < 0 {
			return nil, fmt.Errorf("schema: field %q has negative maxlength", f.Name)
		}
		if f.MaxLength > 0 && f.Type != TypeString {
			return nil, fmt.Errorf("schema: field %q declares maxlength on a %s field", f.Name, f.Type)
		}
		if f.Type == TypeRef && f.Ref == "" {
			return nil, fmt.Errorf("schema: ref field %q names no target collection", f.Name)
		}
		byName[f.Name] = f
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return &Schema{fields: out, byName: byName}, nil
}

// WithField returns a copy of the schema with one extra field prepended.
// Used by the CRUD layer to inject tenant and audit fields.
func (s *Schema) WithField(f Field) (*Schema, error) {
	fields := append([]Field{f}, s.fields...)
	next, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	next.unique = append(next.unique, s.unique...)
	return next, nil
}

// AddUniqueIndex declares a uniqueness constraint enforced at insert/update.
func (s *Schema) AddUniqueIndex(fields []string, label string) {
	s.unique = append(s.unique, UniqueIndex{Fields: fields, Label: label})
}

// UniqueIndexes returns the declared uniqueness constraints.
func (s *Schema) UniqueIndexes() []UniqueIndex {
	return s.unique
}

// Field looks up a field descriptor by name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Fields returns the declared fields in order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Validate checks a document against the schema. It returns a map of field
// name to violation kind ("required", "maxlength", "type"), empty when the
// document is valid. Unknown fields are allowed and pass through unchecked,
// matching the loose document model.
func (s *Schema) Validate(doc Document) map[string]string {
	out := make(map[string]string)
	for _, f := range s.fields {
		val, present := doc[f.Name]
		if !present || val == nil || val == "" {
			if f.Required {
				out[f.Name] = "required"
			}
			continue
		}
		if !typeMatches(f.Type, val) {
			out[f.Name] = "type"
			continue
		}
		if f.MaxLength > 0 {
			if str, ok := val.(string); ok && len(str) > f.MaxLength {
				out[f.Name] = "maxlength"
			}
		}
	}
	return out
}

func typeMatches(t FieldType, val any) bool {
	switch t {
	case TypeString, TypeRef:
		_, ok := val.(string)
		return ok
	case TypeNumber:
		switch val.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case TypeBool:
		_, ok := val.(bool)
		return ok
	case TypeTime:
		switch v := val.(type) {
		case time.Time:
			return true
		case string:
			// Reloaded documents carry RFC 3339 strings.
			_, err := time.Parse(time.RFC3339Nano, v)
			return err == nil
		}
		return false
	case TypeObject:
		_, ok := val.(map[string]any)
		if !ok {
			_, ok = val.(Document)
		}
		return ok
	}
	return false
}

// indexKey builds the comparison key of a document under a unique index.
// The second return is false when any indexed field is absent, in which case
// the document does not participate in the constraint.
func indexKey(idx UniqueIndex, doc Document) (string, bool) {
	parts := make([]string, 0, len(idx.Fields))
	fields := append([]string(nil), idx.Fields...)
	sort.Strings(fields)
	for _, name := range fields {
		val, ok := doc[name]
		if !ok || val == nil {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("%s=%v", name, val))
	}
	return strings.Join(parts, "\x00"), true
}
