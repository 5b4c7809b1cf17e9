// Package crud builds tenant-scoped CRUD models on top of the document
// store. It owns the query normalization rules, the schema augmentation for
// tenant and audit fields, the five model operations and the translation of
// store failures into the structured API error contract.
package crud

import (
	"strconv"

	"github.com/karimivahid/crystal-core/pkg/docstore"
)

// Query is the loosely-shaped form a caller submits, typically assembled
// from a parsed query string. Criteria and Options may both be nil.
// Recognized option keys: "select", "fields" (alias of select), "limit",
// "page". A "page" key found in Criteria is treated as a misplaced option.
type Query struct {
	Criteria map[string]any
	Options  map[string]any
}

// StrictQuery is the canonical query shape every model operation consumes.
// Criteria and Select are always non-nil after Normalize.
type StrictQuery struct {
	Criteria map[string]any
	Select   docstore.Projection
	Page     int // 0 = first page
	Limit    int // 0 = unpaginated path
}

// Normalize converts any raw query into a strict one. It is a total,
// idempotent transformation:
//  1. a missing criteria map becomes an empty one
//  2. a missing options map becomes an empty one
//  3. a "page" entry found in criteria is hoisted into options
//  4. a "fields" option is an alias for "select"
//  5. a missing select becomes an empty projection (all fields)
func Normalize(q Query) StrictQuery {
	criteria := make(map[string]any, len(q.Criteria))
	for k, v := range q.Criteria {
		criteria[k] = v
	}
	options := make(map[string]any, len(q.Options))
	for k, v := range q.Options {
		options[k] = v
	}

	// Pagination is a presentation concern, never a filter.
	if page, ok := criteria["page"]; ok {
		options["page"] = page
		delete(criteria, "page")
	}
	if fields, ok := options["fields"]; ok {
		options["select"] = fields
		delete(options, "fields")
	}

	return StrictQuery{
		Criteria: criteria,
		Select:   toProjection(options["select"]),
		Page:     toInt(options["page"]),
		Limit:    toInt(options["limit"]),
	}
}

// Raw converts a strict query back into the loose form. Normalize(q.Raw())
// returns a query equal to q.
func (q StrictQuery) Raw() Query {
	options := map[string]any{"select": q.Select}
	if q.Page != 0 {
		options["page"] = q.Page
	}
	if q.Limit != 0 {
		options["limit"] = q.Limit
	}
	return Query{Criteria: q.Criteria, Options: options}
}

func toProjection(v any) docstore.Projection {
	switch sel := v.(type) {
	case docstore.Projection:
		out := make(docstore.Projection, len(sel))
		for k, include := range sel {
			out[k] = include
		}
		return out
	case map[string]bool:
		out := make(docstore.Projection, len(sel))
		for k, include := range sel {
			out[k] = include
		}
		return out
	case []string:
		out := make(docstore.Projection, len(sel))
		for _, name := range sel {
			out[name] = true
		}
		return out
	}
	return docstore.Projection{}
}

// toInt accepts the shapes a pagination value arrives in: native ints from
// callers, float64 from decoded JSON. Anything else counts as unset.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}
