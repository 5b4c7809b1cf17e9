package sdk_test

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karimivahid/crystal-core/internal/api"
	"github.com/karimivahid/crystal-core/internal/server"
	"github.com/karimivahid/crystal-core/pkg/crud"
	"github.com/karimivahid/crystal-core/pkg/docstore"
	"github.com/karimivahid/crystal-core/pkg/schema"
	"github.com/karimivahid/crystal-core/pkg/sdk"
)

func startServer(t *testing.T) *httptest.Server {
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

	ts := httptest.NewServer(app.Engine())
	t.Cleanup(ts.Close)
	return ts
}

func TestSDKRoundtrip(t *testing.T) {
	ts := startServer(t)

	client, err := sdk.Connect(ts.URL, crud.Requester{CID: "1", UID: "u1", Username: "sdk_tester"})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	contacts := client.Resource("contacts")

	id, err := contacts.Create(map[string]any{"name": "via sdk", "email": "sdk@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned no id")
	}

	doc, err := contacts.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["name"] != "via sdk" {
		t.Errorf("Expected via sdk, got %v", doc["name"])
	}

	if err := contacts.Update(id, map[string]any{"name": "renamed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	list, err := contacts.List(url.Values{"name": {"renamed"}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if list.Total != 1 || len(list.Docs) != 1 {
		t.Fatalf("Expected 1 match, got %d of %d", len(list.Docs), list.Total)
	}

	if err := contacts.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err = contacts.Get(id)
	apiErr, ok := err.(*sdk.APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 404 || apiErr.Message != "Empty Result" {
		t.Errorf("Unexpected error: %+v", apiErr)
	}
}

func TestSDKTenantHeaders(t *testing.T) {
	ts := startServer(t)

	owner, _ := sdk.Connect(ts.URL, crud.Requester{CID: "1", UID: "u1", Username: "owner"})
	id, err := owner.Resource("contacts").Create(map[string]any{"name": "mine", "email": "mine@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	intruder, _ := sdk.Connect(ts.URL, crud.Requester{CID: "2", UID: "u2", Username: "intruder"})
	_, err = intruder.Resource("contacts").Get(id)
	apiErr, ok := err.(*sdk.APIError)
	if !ok || apiErr.StatusCode != 404 {
		t.Errorf("Expected 404 for foreign tenant, got %v", err)
	}
}

func TestSDKValidationError(t *testing.T) {
	ts := startServer(t)

	client, _ := sdk.Connect(ts.URL, crud.Requester{CID: "1", UID: "u1", Username: "tester"})
	_, err := client.Resource("contacts").Create(map[string]any{"email": "nameless@example.com"})

	apiErr, ok := err.(*sdk.APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || len(apiErr.Errors) != 1 || apiErr.Errors[0].Code != "name" {
		t.Errorf("Unexpected error: %+v", apiErr)
	}
}
