package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karimivahid/crystal-core/internal/api"
	"github.com/karimivahid/crystal-core/internal/server"
	"github.com/karimivahid/crystal-core/pkg/crud"
	"github.com/karimivahid/crystal-core/pkg/docstore"
	"github.com/karimivahid/crystal-core/pkg/schema"
)

func setupTestApp(t *testing.T) *server.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	contactSchema, err := schema.NewContactSchema()
	if err != nil {
		t.Fatalf("Failed to build contact schema: %v", err)
	}
	store := docstore.NewMemStore(nil, nil)
	model := crud.NewModel(store, "contacts", contactSchema)

	app := server.New(server.Options{Logger: zap.NewNop()})
	app.Mount("contacts", api.NewCrudAPI(model))
	return app
}

func doJSON(t *testing.T, app *server.App, method, target, cid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cid != "" {
		req.Header.Set("x-cid", cid)
		req.Header.Set("x-uid", "uid-"+cid)
		req.Header.Set("x-username", "tester-"+cid)
	}
	w := httptest.NewRecorder()
	app.Engine().ServeHTTP(w, req)
	return w
}

func createContact(t *testing.T, app *server.App, cid, name, email string) string {
	t.Helper()
	w := doJSON(t, app, "POST", "/api/contacts", cid, map[string]any{"name": name, "email": email})
	if w.Code != http.StatusOK {
		t.Fatalf("Insert failed with %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Result.ID == "" {
		t.Fatalf("Insert returned no id: %s", w.Body.String())
	}
	return resp.Result.ID
}

func TestInsertAndFindAll(t *testing.T) {
	app := setupTestApp(t)
	for i := 0; i < 10; i++ {
		createContact(t, app, "1", fmt.Sprintf("contact%d", i), fmt.Sprintf("c%d@example.com", i))
	}

	w := doJSON(t, app, "GET", "/api/contacts", "1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("FindAll failed with %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result struct {
			Docs  []map[string]any `json:"docs"`
			Total int              `json:"total"`
		} `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Result.Docs) != 10 || resp.Result.Total != 10 {
		t.Fatalf("Expected 10 docs, got %d of %d", len(resp.Result.Docs), resp.Result.Total)
	}

	// Serialized records expose id but never the internal id or tenant field.
	doc := resp.Result.Docs[0]
	if doc["id"] == "" || doc["id"] == nil {
		t.Error("Serialized doc is missing id")
	}
	if _, ok := doc["_id"]; ok {
		t.Error("Serialized doc leaks _id")
	}
	if _, ok := doc["cid"]; ok {
		t.Error("Serialized doc leaks cid")
	}
	if doc["createdAt"] == nil || doc["createdBy"] == nil {
		t.Error("Serialized doc is missing audit fields")
	}
}

func TestFindAllWithFilterAndPagination(t *testing.T) {
	app := setupTestApp(t)
	for i := 0; i < 10; i++ {
		createContact(t, app, "1", fmt.Sprintf("contact%d", i), fmt.Sprintf("c%d@example.com", i))
	}

	w := doJSON(t, app, "GET", "/api/contacts?name=contact3", "1", nil)
	var resp struct {
		Result struct {
			Docs  []map[string]any `json:"docs"`
			Total int              `json:"total"`
		} `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Result.Docs) != 1 {
		t.Fatalf("Expected 1 filtered doc, got %d", len(resp.Result.Docs))
	}

	w = doJSON(t, app, "GET", "/api/contacts?limit=4&page=2", "1", nil)
	resp.Result.Docs = nil // Unmarshal merges into reused map elements; reset between decodes.
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Result.Docs) != 4 || resp.Result.Total != 10 {
		t.Errorf("Expected page of 4 with total 10, got %d of %d", len(resp.Result.Docs), resp.Result.Total)
	}

	w = doJSON(t, app, "GET", "/api/contacts?fields=name", "1", nil)
	resp.Result.Docs = nil
	json.Unmarshal(w.Body.Bytes(), &resp)
	if _, ok := resp.Result.Docs[0]["email"]; ok {
		t.Error("Projection leaked the email field")
	}
	if resp.Result.Docs[0]["name"] == nil {
		t.Error("Projection dropped the name field")
	}
}

func TestFindByIDUpdateDelete(t *testing.T) {
	app := setupTestApp(t)
	id := createContact(t, app, "1", "target", "target@example.com")

	w := doJSON(t, app, "GET", "/api/contacts/one?id="+id, "1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("FindByID failed with %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, app, "PUT", "/api/contacts?id="+id, "1", map[string]any{"name": "updateName"})
	if w.Code != http.StatusOK {
		t.Fatalf("Update failed with %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result map[string]any `json:"result"`
	}
	w = doJSON(t, app, "GET", "/api/contacts/one?id="+id, "1", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Result["name"] != "updateName" {
		t.Errorf("Expected updated name, got %v", resp.Result["name"])
	}

	w = doJSON(t, app, "DELETE", "/api/contacts?id="+id, "1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Delete failed with %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, app, "GET", "/api/contacts/one?id="+id, "1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
	var errResp struct {
		Message string `json:"message"`
	}
	json.Unmarshal(w.Body.Bytes(), &errResp)
	if errResp.Message != "Empty Result" {
		t.Errorf("Expected Empty Result, got %q", errResp.Message)
	}
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	app := setupTestApp(t)
	id := createContact(t, app, "1", "mine", "mine@example.com")

	// Another tenant cannot see, change or delete the record.
	if w := doJSON(t, app, "GET", "/api/contacts/one?id="+id, "2", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for foreign tenant read, got %d", w.Code)
	}
	if w := doJSON(t, app, "PUT", "/api/contacts?id="+id, "2", map[string]any{"name": "stolen"}); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for foreign tenant update, got %d", w.Code)
	}
	if w := doJSON(t, app, "DELETE", "/api/contacts?id="+id, "2", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for foreign tenant delete, got %d", w.Code)
	}

	w := doJSON(t, app, "GET", "/api/contacts", "2", nil)
	var resp struct {
		Result struct {
			Total int `json:"total"`
		} `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Result.Total != 0 {
		t.Errorf("Foreign tenant sees %d records", resp.Result.Total)
	}
}

func TestMissingTenantHeader(t *testing.T) {
	app := setupTestApp(t)

	w := doJSON(t, app, "GET", "/api/contacts", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without x-cid, got %d", w.Code)
	}
}

func TestInsertIgnoresClientSuppliedIDs(t *testing.T) {
	app := setupTestApp(t)

	w := doJSON(t, app, "POST", "/api/contacts", "1", map[string]any{
		"name": "spoof", "email": "spoof@example.com", "id": "evil", "_id": "evil",
	})
	var resp struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Result.ID == "evil" || resp.Result.ID == "" {
		t.Errorf("Store did not assign the id: %q", resp.Result.ID)
	}
}

func TestValidationErrorBody(t *testing.T) {
	app := setupTestApp(t)

	w := doJSON(t, app, "POST", "/api/contacts", "1", map[string]any{"email": "x@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Message string `json:"message"`
		Errors  []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Message != "Validation Error" {
		t.Errorf("Unexpected message: %q", resp.Message)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Code != "name" || resp.Errors[0].Message != "required" {
		t.Errorf("Unexpected errors: %+v", resp.Errors)
	}
}

func TestDuplicateEmailBody(t *testing.T) {
	app := setupTestApp(t)
	createContact(t, app, "1", "first", "same@example.com")

	w := doJSON(t, app, "POST", "/api/contacts", "1", map[string]any{"name": "second", "email": "same@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Message string `json:"message"`
		Errors  []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Errors) != 1 || resp.Errors[0].Code != "email" || resp.Errors[0].Message != "duplicated" {
		t.Errorf("Expected the configured index label, got %+v", resp.Errors)
	}

	// Same email under another tenant is fine.
	createContact(t, app, "2", "other", "same@example.com")
}

func TestMalformedBody(t *testing.T) {
	app := setupTestApp(t)

	req, _ := http.NewRequest("POST", "/api/contacts", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-cid", "1")
	w := httptest.NewRecorder()
	app.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", w.Code)
	}
}
