package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/karimivahid/crystal-core/pkg/crud"
)

// parseQuery turns a request's query string into a raw crud.Query. Filter
// parameters become criteria; limit and fields become options. Page stays in
// criteria on purpose, Normalize hoists it, so a handler-built query and a
// hand-built one go through the same rules.
func parseQuery(values url.Values) crud.Query {
	criteria := make(map[string]any)
	options := make(map[string]any)

	for key, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		val := vals[0]
		switch key {
		case "limit":
			if n, err := strconv.Atoi(val); err == nil {
				options["limit"] = n
			}
		case "page":
			if n, err := strconv.Atoi(val); err == nil {
				criteria["page"] = n
			}
		case "fields", "select":
			options[key] = parseFieldList(val)
		case "id":
			criteria["_id"] = val
		default:
			criteria[key] = val
		}
	}
	return crud.Query{Criteria: criteria, Options: options}
}

// parseFieldList splits a comma-separated projection, e.g. "name,email".
func parseFieldList(val string) map[string]bool {
	out := make(map[string]bool)
	for _, name := range strings.Split(val, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out[name] = true
		}
	}
	return out
}
