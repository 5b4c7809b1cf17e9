package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karimivahid/crystal-core/pkg/crud"
)

// ErrorCode declares how one downstream error code maps to a client-facing
// message and response status.
type ErrorCode struct {
	Message string
	Status  int
}

// ErrorTable resolves error codes carried by downstream failures.
type ErrorTable map[string]ErrorCode

// shapeError maps a failure to its response status and body. The third
// return is false when the failure carries no coded structure at all and
// must fall through to the generic handler.
func shapeError(err error, table ErrorTable) (int, gin.H, bool) {
	var apiErr crud.APIError
	if errors.As(err, &apiErr) {
		body := gin.H{"message": apiErr.Error()}
		if entries := apiErr.Entries(); entries != nil {
			body["errors"] = entries
		}
		return apiErr.Status(), body, true
	}

	var coded *crud.CodedError
	if errors.As(err, &coded) {
		status, entries := resolveCodes(coded.Codes, table)
		return status, gin.H{"message": coded.Message, "errors": entries}, true
	}

	return 0, nil, false
}

// resolveCodes maps each code through the table. Unresolved codes pass
// through as bare entries; already-structured entries pass unchanged. The
// first entry with a declared status wins the overall response status,
// defaulting to 500 when none declares one.
func resolveCodes(codes []any, table ErrorTable) (int, []crud.ErrorEntry) {
	status := 0
	entries := make([]crud.ErrorEntry, 0, len(codes))

	for _, code := range codes {
		switch v := code.(type) {
		case crud.ErrorEntry:
			entries = append(entries, v)
			if status == 0 && v.Status != 0 {
				status = v.Status
			}
		case string:
			if resolved, ok := table[v]; ok {
				entries = append(entries, crud.ErrorEntry{Code: v, Message: resolved.Message, Status: resolved.Status})
				if status == 0 && resolved.Status != 0 {
					status = resolved.Status
				}
			} else {
				entries = append(entries, crud.ErrorEntry{Code: v})
			}
		}
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, entries
}
